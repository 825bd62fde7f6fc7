package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// personName returns the {name} path parameter. chi routes on the raw path
// when the client's escaping differs from Go's, leaving the parameter
// percent-encoded.
func personName(r *http.Request) string {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath == "" {
		return name
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		return unescaped
	}
	return name
}

// EventLog lists logged attendance events. Only the PostgreSQL store has one.
type EventLog interface {
	Events(ctx context.Context, name string) ([]postgres.Event, error)
}

// PeopleHandler serves the admin panel.
type PeopleHandler struct {
	ledger     *ledger.Ledger
	enrollment *enrollment.Service
	events     EventLog
}

// NewPeopleHandler creates a new people handler. events may be nil.
func NewPeopleHandler(l *ledger.Ledger, svc *enrollment.Service, events EventLog) *PeopleHandler {
	return &PeopleHandler{ledger: l, enrollment: svc, events: events}
}

// ListResponse is the admin ledger view.
type ListResponse struct {
	People          []ledger.Record `json:"people"`
	Count           int             `json:"count"`
	TotalAttendance int             `json:"total_attendance"`
}

// List returns every ledger row with its attendance percentage.
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.ledger.List(r.Context())
	if err != nil {
		respondDomainError(w, err, "load ledger")
		return
	}

	resp := ListResponse{People: make([]ledger.Record, 0, len(people)), Count: len(people)}
	for _, p := range people {
		resp.People = append(resp.People, ledger.NewRecord(p))
		resp.TotalAttendance += p.DaysPresent
	}
	respondJSON(w, http.StatusOK, resp)
}

// Get returns one person.
func (h *PeopleHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.ledger.Get(r.Context(), personName(r))
	if err != nil {
		respondDomainError(w, err, "load person")
		return
	}
	respondJSON(w, http.StatusOK, ledger.NewRecord(p))
}

// Create enrolls a person from a multipart form with the fields name,
// roll_no, branch, mobile_no and the reference image.
func (h *PeopleHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		respondError(w, http.StatusBadRequest, "multipart form required")
		return
	}
	image, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	e := ledger.Enrollment{
		Name: r.FormValue("name"),
		Details: ledger.Details{
			RollNo:   r.FormValue("roll_no"),
			Branch:   r.FormValue("branch"),
			MobileNo: r.FormValue("mobile_no"),
		},
	}
	p, err := h.enrollment.Enroll(r.Context(), e, image)
	if err != nil {
		respondDomainError(w, err, "enroll person")
		return
	}
	respondJSON(w, http.StatusCreated, ledger.NewRecord(p))
}

// Update edits the roll number, branch and mobile number of a person.
func (h *PeopleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var d ledger.Details
	if !decodeJSON(w, r, &d) {
		return
	}
	p, err := h.ledger.Update(r.Context(), personName(r), d)
	if err != nil {
		respondDomainError(w, err, "update person")
		return
	}
	respondJSON(w, http.StatusOK, ledger.NewRecord(p))
}

// Delete removes a person, their image and their gallery entry.
func (h *PeopleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := personName(r)
	if err := h.enrollment.Delete(r.Context(), name); err != nil {
		respondDomainError(w, err, "delete person")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "name": name})
}

type absenceRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, defaults to today
}

// AbsenceResponse reports a recorded absence.
type AbsenceResponse struct {
	Record  ledger.Record `json:"record"`
	Date    string        `json:"date"`
	Changed bool          `json:"changed"`
}

// MarkAbsent records an absence for the person.
func (h *PeopleHandler) MarkAbsent(w http.ResponseWriter, r *http.Request) {
	var req absenceRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	date := req.Date
	if date == "" {
		date = h.ledger.Today()
	}
	day, err := ledger.ParseDay(date)
	if err != nil {
		respondError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	p, changed, err := h.ledger.MarkAbsent(r.Context(), personName(r), day)
	if err != nil {
		respondDomainError(w, err, "record absence")
		return
	}
	respondJSON(w, http.StatusOK, AbsenceResponse{
		Record:  ledger.NewRecord(p),
		Date:    date,
		Changed: changed,
	})
}

// Events lists the attendance event log of a person.
func (h *PeopleHandler) Events(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		respondError(w, http.StatusNotImplemented, "event log requires the PostgreSQL store")
		return
	}
	name := personName(r)
	if _, err := h.ledger.Get(r.Context(), name); err != nil {
		respondDomainError(w, err, "load person")
		return
	}
	events, err := h.events.Events(r.Context(), name)
	if err != nil {
		respondDomainError(w, err, "load events")
		return
	}
	if events == nil {
		events = []postgres.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}
