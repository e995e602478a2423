package timesheet

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// PERSISTED SCHEMA
// =============================================================================
// Dates are written as ISO-8601 instants: startDate at 00:00:00.000 and
// endDate at 23:59:59.999 of their day. On load only the calendar date in the
// instant's own offset is kept.

type cycleRecord struct {
	ID          string                    `json:"id"`
	StartDate   time.Time                 `json:"startDate"`
	EndDate     time.Time                 `json:"endDate"`
	Hours       map[string]generic.Amount `json:"hours"`
	TotalHours  generic.Amount            `json:"totalHours"` // informational, recomputed on load
	Evidence    []evidenceRecord          `json:"evidence"`
	Submitted   bool                      `json:"submitted"`
	IsEditable  bool                      `json:"isEditable"` // informational, always !submitted
	SubmittedAt *time.Time                `json:"submittedAt,omitempty"`
}

type evidenceRecord struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType,omitempty"`
	Data        []byte    `json:"data"`
	AttachedAt  time.Time `json:"attachedAt"`
}

type settingsRecord struct {
	StartDate string `json:"startDate"`
	Frequency string `json:"frequency"`
}

// Settings is the configured cycle layout for one owner.
type Settings struct {
	StartDate generic.TimePoint
	Frequency generic.Recurrence
}

// =============================================================================
// ENCODE
// =============================================================================

// EncodeCycles serializes a cycle collection.
func EncodeCycles(cycles []Cycle) (string, error) {
	records := make([]cycleRecord, 0, len(cycles))
	for _, c := range cycles {
		hours := make(map[string]generic.Amount, len(c.Hours))
		for k, v := range c.Hours {
			hours[k] = v
		}
		evidence := make([]evidenceRecord, 0, len(c.Evidence))
		for _, e := range c.Evidence {
			evidence = append(evidence, evidenceRecord(e))
		}
		records = append(records, cycleRecord{
			ID:          c.ID,
			StartDate:   c.StartDate.StartOfDay(),
			EndDate:     c.EndDate.EndOfDay(),
			Hours:       hours,
			TotalHours:  c.TotalHours(),
			Evidence:    evidence,
			Submitted:   c.Submitted,
			IsEditable:  c.IsEditable(),
			SubmittedAt: c.SubmittedAt,
		})
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", fmt.Errorf("encoding cycles: %w", err)
	}
	return string(data), nil
}

// EncodeSettings serializes settings.
func EncodeSettings(s Settings) (string, error) {
	data, err := json.Marshal(settingsRecord{
		StartDate: s.StartDate.String(),
		Frequency: string(s.Frequency),
	})
	if err != nil {
		return "", fmt.Errorf("encoding settings: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// DECODE - strict: shape is validated, never trusted
// =============================================================================

// DecodeCycles parses a stored collection. A value that is not a JSON array
// of cycle objects fails as a whole (err). Individual records that fail
// validation are dropped and reported in rejected; the rest are returned.
func DecodeCycles(key, raw string) (cycles []Cycle, rejected []error, err error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, nil, &generic.RecordError{Key: key, Index: -1, Reason: err.Error()}
	}

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		c, reason := decodeCycle(item)
		if reason == "" && seen[c.ID] {
			reason = "duplicate id " + c.ID
		}
		if reason != "" {
			rejected = append(rejected, &generic.RecordError{Key: key, Index: i, Reason: reason})
			continue
		}
		seen[c.ID] = true
		cycles = append(cycles, c)
	}
	return cycles, rejected, nil
}

func decodeCycle(item json.RawMessage) (Cycle, string) {
	dec := json.NewDecoder(strings.NewReader(string(item)))
	dec.DisallowUnknownFields()

	var r cycleRecord
	if err := dec.Decode(&r); err != nil {
		return Cycle{}, err.Error()
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return Cycle{}, "missing startDate or endDate"
	}

	start := generic.DateOf(r.StartDate)
	end := generic.DateOf(r.EndDate)
	if end.Before(start) {
		return Cycle{}, "endDate before startDate"
	}
	if r.ID != CycleID(start) {
		return Cycle{}, fmt.Sprintf("id %q does not match startDate %s", r.ID, start)
	}

	hours := make(map[string]generic.Amount, len(r.Hours))
	for day, h := range r.Hours {
		d, err := generic.ParseDate(day)
		if err != nil {
			return Cycle{}, err.Error()
		}
		if !h.ValidDailyHours() {
			return Cycle{}, fmt.Sprintf("hours for %s out of range: %s", day, h)
		}
		if h.IsZero() {
			continue
		}
		hours[d.String()] = h
	}

	evidence := make([]Evidence, 0, len(r.Evidence))
	for j, e := range r.Evidence {
		if e.Filename == "" {
			return Cycle{}, fmt.Sprintf("evidence %d has no filename", j)
		}
		evidence = append(evidence, Evidence(e))
	}

	return Cycle{
		ID:          r.ID,
		StartDate:   start,
		EndDate:     end,
		Hours:       hours,
		Evidence:    evidence,
		Submitted:   r.Submitted,
		SubmittedAt: r.SubmittedAt,
	}, ""
}

// DecodeSettings parses stored settings.
func DecodeSettings(key, raw string) (Settings, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var r settingsRecord
	if err := dec.Decode(&r); err != nil {
		return Settings{}, &generic.RecordError{Key: key, Index: -1, Reason: err.Error()}
	}
	start, err := generic.ParseDate(r.StartDate)
	if err != nil {
		return Settings{}, &generic.RecordError{Key: key, Index: -1, Reason: err.Error()}
	}
	freq, err := generic.ParseRecurrence(r.Frequency)
	if err != nil {
		return Settings{}, &generic.RecordError{Key: key, Index: -1, Reason: err.Error()}
	}
	return Settings{StartDate: start, Frequency: freq}, nil
}
