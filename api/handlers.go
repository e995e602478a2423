/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes timesheet cycles via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the per-owner timesheet.Manager.

ENDPOINTS:
  Timesheets:
    GET    /api/owners                                        List configured owners
    GET    /api/timesheets/{owner}                            Cycle list, newest first
    PUT    /api/timesheets/{owner}/settings                   Set start date + frequency
    GET    /api/timesheets/{owner}/cycles/{cycleID}           One cycle with per-day breakdown
    PUT    /api/timesheets/{owner}/cycles/{cycleID}/hours/{date}   Record hours
    POST   /api/timesheets/{owner}/cycles/{cycleID}/evidence       Attach evidence
    DELETE /api/timesheets/{owner}/cycles/{cycleID}/evidence/{index} Remove evidence
    POST   /api/timesheets/{owner}/cycles/{cycleID}/submit         Submit and lock
    GET    /api/timesheets/{owner}/reminders?date=            Reminders for a day

  Reminders:
    GET    /api/reminders?owner=&from=&to=&limit=             Persisted reminder log

  Admin:
    POST   /api/admin/due-check                               Run the due check now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown cycle, unconfigured owner
  - 409: Cycle already submitted (locked)
  - 502: Submission dispatch failed
  - 500: Store and other internal errors

SECURITY NOTE:
  No authentication. The owner in the path is trusted as-is.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Scheduled due check
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/timesheet-engine/generic"
	"github.com/warp/timesheet-engine/timesheet"
)

// maxBodyBytes bounds request bodies; evidence arrives base64-encoded.
const maxBodyBytes = 20 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry  *timesheet.Registry
	Reminders generic.ReminderLog
	Scheduler *DueCheckScheduler

	log *logrus.Entry
}

// NewHandler creates a handler. reminders and scheduler may be nil; the
// endpoints that need them then answer 404.
func NewHandler(registry *timesheet.Registry, reminders generic.ReminderLog, scheduler *DueCheckScheduler, log *logrus.Entry) *Handler {
	return &Handler{
		Registry:  registry,
		Reminders: reminders,
		Scheduler: scheduler,
		log:       log.WithField("component", "api"),
	}
}

// manager resolves the {owner} path parameter.
func (h *Handler) manager(w http.ResponseWriter, r *http.Request) (*timesheet.Manager, bool) {
	m, err := h.Registry.Manager(r.Context(), generic.OwnerID(chi.URLParam(r, "owner")))
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return m, true
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// ListOwners returns every configured owner.
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.Registry.Owners(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]string, len(owners))
	for i, o := range owners {
		out[i] = string(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetTimesheet returns the owner's cycles, newest first.
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	h.writeTimesheet(w, m)
}

func (h *Handler) writeTimesheet(w http.ResponseWriter, m *timesheet.Manager) {
	cycles, err := m.Cycles()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	settings, _ := m.Settings()
	current, found, err := m.Current()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := TimesheetDTO{
		Owner:     string(m.Owner()),
		StartDate: settings.StartDate.String(),
		Frequency: string(settings.Frequency),
		Cycles:    make([]CycleDTO, len(cycles)),
		Orphans:   len(m.Orphans()),
	}
	if found {
		dto.CurrentID = current.ID
	}
	for i, c := range cycles {
		dto.Cycles[i] = toCycleDTO(c, false)
	}
	writeJSON(w, http.StatusOK, dto)
}

// PutSettings configures the start date and frequency and regenerates.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := generic.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid startDate", err)
		return
	}
	freq, err := generic.ParseRecurrence(req.Frequency)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	m, err := h.Registry.Configure(r.Context(), generic.OwnerID(chi.URLParam(r, "owner")), start, freq)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeTimesheet(w, m)
}

// GetCycle returns one cycle with its per-day breakdown.
func (h *Handler) GetCycle(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	c, err := m.Cycle(chi.URLParam(r, "cycleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c, true))
}

// RecordHours sets the hours for one day.
func (h *Handler) RecordHours(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	var req RecordHoursRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := m.RecordHours(r.Context(), chi.URLParam(r, "cycleID"), date, req.Hours)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c, true))
}

// AttachEvidence appends an attachment.
func (h *Handler) AttachEvidence(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	var req AttachEvidenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	contentType := req.ContentType
	if contentType == "" && len(req.Data) > 0 {
		contentType = http.DetectContentType(req.Data)
	}

	c, err := m.AttachEvidence(r.Context(), chi.URLParam(r, "cycleID"), timesheet.Evidence{
		Filename:    strings.TrimSpace(req.Filename),
		ContentType: contentType,
		Data:        req.Data,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCycleDTO(c, false))
}

// RemoveEvidence deletes the attachment at {index}.
func (h *Handler) RemoveEvidence(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid evidence index", err)
		return
	}

	c, err := m.RemoveEvidence(r.Context(), chi.URLParam(r, "cycleID"), index)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c, false))
}

// SubmitCycle dispatches the cycle and locks it.
func (h *Handler) SubmitCycle(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}
	c, err := m.Submit(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleDTO(c, false))
}

// GetOwnerReminders evaluates the reminder rules for ?date= (default today).
// Nothing is logged or sent.
func (h *Handler) GetOwnerReminders(w http.ResponseWriter, r *http.Request) {
	m, ok := h.manager(w, r)
	if !ok {
		return
	}

	var reminders []timesheet.Reminder
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := generic.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date", err)
			return
		}
		if reminders, err = m.RemindersOn(date); err != nil {
			h.writeDomainError(w, err)
			return
		}
	} else {
		var err error
		if reminders, err = m.CheckDueNotifications(r.Context()); err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	out := make([]ReminderDTO, len(reminders))
	for i, rem := range reminders {
		out[i] = toReminderDTO(rem)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// REMINDER LOG / ADMIN
// =============================================================================

// ListReminders returns the persisted reminder log, newest first.
func (h *Handler) ListReminders(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeError(w, http.StatusNotFound, "Reminder log not configured", nil)
		return
	}

	var filter generic.ReminderFilter
	q := r.URL.Query()
	if owner := q.Get("owner"); owner != "" {
		o := generic.OwnerID(owner)
		filter.OwnerID = &o
	}
	for _, p := range []struct {
		name string
		dst  **generic.TimePoint
	}{{"from", &filter.From}, {"to", &filter.To}} {
		if raw := q.Get(p.name); raw != "" {
			d, err := generic.ParseDate(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", p.name), err)
				return
			}
			*p.dst = &d
		}
	}
	filter.Limit = 100
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	records, err := h.Reminders.ListReminders(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	out := make([]ReminderRecordDTO, len(records))
	for i, rec := range records {
		out[i] = toReminderRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

// RunDueCheck runs the scheduled due check immediately.
func (h *Handler) RunDueCheck(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Due check not configured", nil)
		return
	}
	result, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dto := DueCheckDTO{
		RanAt:     result.RanAt,
		Owners:    result.Owners,
		Reminders: make([]ReminderRecordDTO, len(result.Reminders)),
	}
	for i, rec := range result.Reminders {
		dto.Reminders[i] = toReminderRecordDTO(rec)
	}
	if len(result.Failures) > 0 {
		dto.Failures = make(map[string]string, len(result.Failures))
		for owner, err := range result.Failures {
			dto.Failures[string(owner)] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, generic.ErrCycleLocked):
		writeError(w, http.StatusConflict, "Cycle is locked", err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case generic.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case errors.Is(err, generic.ErrDispatchFailed):
		writeError(w, http.StatusBadGateway, "Submission dispatch failed", err)
	default:
		h.log.WithError(err).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

// decodeJSON reads a bounded JSON body and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
