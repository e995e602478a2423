/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the timesheet domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Wrappers around several DTOs

DATES:
  Calendar days are "2006-01-02" strings. Hours are decimal strings
  ("7.5") so clients never see float rounding.

VALIDATION:
  Validation is done in handlers and the timesheet package, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - timesheet/codec.go: The persisted format, which is separate from this one
*/
package api

import (
	"time"

	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// =============================================================================
// REQUESTS
// =============================================================================

// SettingsRequest configures an owner's cycle layout.
type SettingsRequest struct {
	StartDate string `json:"startDate"`
	Frequency string `json:"frequency"`
}

// RecordHoursRequest sets the hours for one day. Zero clears the day.
type RecordHoursRequest struct {
	Hours generic.Amount `json:"hours"`
}

// AttachEvidenceRequest uploads an attachment. Data is base64 in JSON.
type AttachEvidenceRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// TimesheetDTO is an owner's full cycle list.
type TimesheetDTO struct {
	Owner     string     `json:"owner"`
	StartDate string     `json:"startDate"`
	Frequency string     `json:"frequency"`
	CurrentID string     `json:"currentCycleId,omitempty"`
	Cycles    []CycleDTO `json:"cycles"`
	Orphans   int        `json:"orphanedCycles"`
}

// CycleDTO represents one cycle. Evidence content is not included.
type CycleDTO struct {
	ID          string            `json:"id"`
	StartDate   string            `json:"startDate"`
	EndDate     string            `json:"endDate"`
	Hours       map[string]string `json:"hours"`
	TotalHours  string            `json:"totalHours"`
	Days        []DayDTO          `json:"days,omitempty"`
	Evidence    []EvidenceDTO     `json:"evidence"`
	Submitted   bool              `json:"submitted"`
	IsEditable  bool              `json:"isEditable"`
	SubmittedAt *time.Time        `json:"submittedAt,omitempty"`
}

// DayDTO is one day of a cycle's breakdown.
type DayDTO struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Hours   string `json:"hours"`
	Workday bool   `json:"workday"`
}

// EvidenceDTO describes an attachment without its bytes.
type EvidenceDTO struct {
	Index       int       `json:"index"`
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int       `json:"size"`
	AttachedAt  time.Time `json:"attachedAt"`
}

// ReminderDTO is a reminder computed for one day.
type ReminderDTO struct {
	Kind        string `json:"kind"`
	CycleID     string `json:"cycleId"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	Date        string `json:"date"`
	Message     string `json:"message"`
}

// ReminderRecordDTO is a reminder from the persisted log.
type ReminderRecordDTO struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Kind      string    `json:"kind"`
	CycleID   string    `json:"cycleId"`
	Date      string    `json:"date"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// DueCheckDTO summarizes one run of the due-date check.
type DueCheckDTO struct {
	RanAt     time.Time           `json:"ranAt"`
	Owners    int                 `json:"owners"`
	Reminders []ReminderRecordDTO `json:"reminders"`
	Failures  map[string]string   `json:"failures,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCycleDTO(c timesheet.Cycle, withDays bool) CycleDTO {
	dto := CycleDTO{
		ID:          c.ID,
		StartDate:   c.StartDate.String(),
		EndDate:     c.EndDate.String(),
		Hours:       make(map[string]string, len(c.Hours)),
		TotalHours:  c.TotalHours().String(),
		Evidence:    make([]EvidenceDTO, len(c.Evidence)),
		Submitted:   c.Submitted,
		IsEditable:  c.IsEditable(),
		SubmittedAt: c.SubmittedAt,
	}
	for day, h := range c.Hours {
		dto.Hours[day] = h.String()
	}
	for i, e := range c.Evidence {
		dto.Evidence[i] = EvidenceDTO{
			Index:       i,
			ID:          e.ID,
			Filename:    e.Filename,
			ContentType: e.ContentType,
			Size:        len(e.Data),
			AttachedAt:  e.AttachedAt,
		}
	}
	if withDays {
		for _, d := range c.Days() {
			dto.Days = append(dto.Days, DayDTO{
				Date:    d.Date.String(),
				Weekday: d.Date.Weekday().String(),
				Hours:   d.Hours.String(),
				Workday: d.Workday,
			})
		}
	}
	return dto
}

func toReminderDTO(r timesheet.Reminder) ReminderDTO {
	return ReminderDTO{
		Kind:        string(r.Kind),
		CycleID:     r.CycleID,
		PeriodStart: r.Period.Start.String(),
		PeriodEnd:   r.Period.End.String(),
		Date:        r.Date.String(),
		Message:     r.Message,
	}
}

func toReminderRecordDTO(r generic.ReminderRecord) ReminderRecordDTO {
	return ReminderRecordDTO{
		ID:        r.ID,
		Owner:     string(r.OwnerID),
		Kind:      r.Kind,
		CycleID:   r.CycleID,
		Date:      r.Date.String(),
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
	}
}
