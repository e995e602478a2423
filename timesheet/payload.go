package timesheet

import (
	"context"
	"fmt"

	"github.com/warp/timesheet-engine/generic"
)

// =============================================================================
// SUBMISSION COLLABORATORS
// =============================================================================

// MaxDispatchedEvidence caps how many attachments are forwarded on submit.
const MaxDispatchedEvidence = 3

// EncodedEvidence is an attachment after size reduction.
type EncodedEvidence struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SubmissionPayload summarizes a cycle for the external dispatch.
type SubmissionPayload struct {
	OwnerID       generic.OwnerID
	CycleID       string
	PeriodStart   generic.TimePoint
	PeriodEnd     generic.TimePoint
	Frequency     generic.Recurrence
	TotalHours    generic.Amount
	PerDay        []DayHours
	Evidence      []EncodedEvidence // at most MaxDispatchedEvidence
	AttachedCount int               // evidence attached to the cycle, forwarded or not
}

// Dispatcher delivers a submission (email, chat, ...). A nil error means the
// submission was accepted; only then is the cycle locked.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload SubmissionPayload) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, payload SubmissionPayload) error

func (f DispatcherFunc) Dispatch(ctx context.Context, payload SubmissionPayload) error {
	return f(ctx, payload)
}

// EvidenceEncoder shrinks an attachment before dispatch.
type EvidenceEncoder interface {
	Encode(ctx context.Context, e Evidence) (EncodedEvidence, error)
}

// PassthroughEncoder forwards attachments unchanged.
type PassthroughEncoder struct{}

func (PassthroughEncoder) Encode(_ context.Context, e Evidence) (EncodedEvidence, error) {
	return EncodedEvidence{Filename: e.Filename, ContentType: e.ContentType, Data: e.Data}, nil
}

// BuildPayload encodes up to MaxDispatchedEvidence attachments and assembles
// the dispatch payload for c.
func BuildPayload(ctx context.Context, owner generic.OwnerID, freq generic.Recurrence, c Cycle, enc EvidenceEncoder) (SubmissionPayload, error) {
	n := min(len(c.Evidence), MaxDispatchedEvidence)
	encoded := make([]EncodedEvidence, 0, n)
	for _, e := range c.Evidence[:n] {
		ee, err := enc.Encode(ctx, e)
		if err != nil {
			return SubmissionPayload{}, fmt.Errorf("encoding evidence %s: %w", e.Filename, err)
		}
		encoded = append(encoded, ee)
	}

	return SubmissionPayload{
		OwnerID:       owner,
		CycleID:       c.ID,
		PeriodStart:   c.StartDate,
		PeriodEnd:     c.EndDate,
		Frequency:     freq,
		TotalHours:    c.TotalHours(),
		PerDay:        c.Days(),
		Evidence:      encoded,
		AttachedCount: len(c.Evidence),
	}, nil
}
