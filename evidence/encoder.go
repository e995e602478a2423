/*
Package evidence shrinks attached screenshots before they are dispatched.

PURPOSE:
  Submissions forward up to three attachments. Raw screenshots are often
  several megabytes; the Encoder decodes images, scales them down so the
  longest side is at most MaxDimension, and re-encodes them as JPEG.
  Non-image attachments pass through unchanged.

CACHING:
  Encoding is deterministic for a given input and settings, so results are
  cached by content hash (otter). A failed dispatch retried a minute later
  does not re-encode the same screenshots.
*/
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"path"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/maypok86/otter/v2"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/timesheet"
	"golang.org/x/image/draw"
)

// Config controls the re-encoding.
type Config struct {
	MaxDimension int           // longest side in pixels after scaling
	JPEGQuality  int           // 1-100
	CacheSize    int           // encoded blobs kept in memory
	CacheTTL     time.Duration // how long an encoded blob stays cached
}

// DefaultConfig matches the limits the dispatch channels accept comfortably.
func DefaultConfig() Config {
	return Config{
		MaxDimension: 1024,
		JPEGQuality:  60,
		CacheSize:    256,
		CacheTTL:     time.Hour,
	}
}

// Encoder implements timesheet.EvidenceEncoder.
type Encoder struct {
	cfg   Config
	cache *otter.Cache[string, timesheet.EncodedEvidence]
	log   *logrus.Entry
}

var _ timesheet.EvidenceEncoder = (*Encoder)(nil)

// NewEncoder validates cfg and builds the cache.
func NewEncoder(cfg Config, log *logrus.Entry) (*Encoder, error) {
	if cfg.MaxDimension <= 0 {
		return nil, fmt.Errorf("max dimension must be positive, got %d", cfg.MaxDimension)
	}
	if cfg.JPEGQuality < 1 || cfg.JPEGQuality > 100 {
		return nil, fmt.Errorf("jpeg quality must be in [1, 100], got %d", cfg.JPEGQuality)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	cache := otter.Must(&otter.Options[string, timesheet.EncodedEvidence]{
		MaximumSize:      cfg.CacheSize,
		ExpiryCalculator: otter.ExpiryWriting[string, timesheet.EncodedEvidence](cfg.CacheTTL),
	})

	return &Encoder{cfg: cfg, cache: cache, log: log.WithField("component", "evidence")}, nil
}

// Encode downsizes image attachments. Attachments that are not decodable
// images are returned as-is.
func (e *Encoder) Encode(ctx context.Context, ev timesheet.Evidence) (timesheet.EncodedEvidence, error) {
	if err := ctx.Err(); err != nil {
		return timesheet.EncodedEvidence{}, err
	}

	key := e.cacheKey(ev.Data)
	if cached, ok := e.cache.GetIfPresent(key); ok {
		cached.Filename = jpegName(ev.Filename, cached.ContentType)
		return cached, nil
	}

	img, format, err := image.Decode(bytes.NewReader(ev.Data))
	if err != nil {
		e.log.WithFields(logrus.Fields{"filename": ev.Filename, "bytes": len(ev.Data)}).
			Debug("Attachment is not a decodable image, forwarding unchanged")
		return timesheet.EncodedEvidence{Filename: ev.Filename, ContentType: ev.ContentType, Data: ev.Data}, nil
	}

	scaled := e.downscale(img)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: e.cfg.JPEGQuality}); err != nil {
		return timesheet.EncodedEvidence{}, fmt.Errorf("re-encoding %s: %w", ev.Filename, err)
	}

	out := timesheet.EncodedEvidence{
		Filename:    jpegName(ev.Filename, "image/jpeg"),
		ContentType: "image/jpeg",
		Data:        buf.Bytes(),
	}
	e.cache.Set(key, out)

	e.log.WithFields(logrus.Fields{
		"filename": ev.Filename,
		"format":   format,
		"before":   len(ev.Data),
		"after":    buf.Len(),
		"width":    scaled.Bounds().Dx(),
		"height":   scaled.Bounds().Dy(),
	}).Debug("Re-encoded attachment")
	return out, nil
}

// downscale shrinks img so its longest side fits MaxDimension, keeping the
// aspect ratio. Smaller images are returned untouched.
func (e *Encoder) downscale(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longest := max(w, h)
	if longest <= e.cfg.MaxDimension {
		return img
	}

	nw := max(1, w*e.cfg.MaxDimension/longest)
	nh := max(1, h*e.cfg.MaxDimension/longest)
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func (e *Encoder) cacheKey(data []byte) string {
	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%d|%d", e.cfg.MaxDimension, e.cfg.JPEGQuality)
	return hex.EncodeToString(h.Sum(nil))
}

// jpegName swaps the extension for .jpg when the content became JPEG.
func jpegName(filename, contentType string) string {
	if contentType != "image/jpeg" {
		return filename
	}
	ext := path.Ext(filename)
	if strings.EqualFold(ext, ".jpg") || strings.EqualFold(ext, ".jpeg") {
		return filename
	}
	return strings.TrimSuffix(filename, ext) + ".jpg"
}
