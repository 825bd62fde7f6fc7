package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/station"
)

// AttendanceHandler serves the capture station.
type AttendanceHandler struct {
	station *station.Station
	ledger  *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(st *station.Station, l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{station: st, ledger: l}
}

// Recognize matches an uploaded frame and credits attendance.
func (h *AttendanceHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	frame, err := readImage(w, r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.station.Recognize(r.Context(), frame)
	if err != nil {
		log.Printf("Recognition failed: %v", err)
		respondError(w, http.StatusBadGateway, "recognition failed")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Capture grabs a frame from the station camera and recognizes it.
func (h *AttendanceHandler) Capture(w http.ResponseWriter, r *http.Request) {
	res, err := h.station.Capture(r.Context())
	if errors.Is(err, station.ErrNoCamera) {
		respondError(w, http.StatusServiceUnavailable, "no camera configured")
		return
	}
	if err != nil {
		log.Printf("Capture failed: %v", err)
		respondError(w, http.StatusBadGateway, "capture failed")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// TotalResponse is the station's attendance counter.
type TotalResponse struct {
	Date            string `json:"date"`
	TotalAttendance int    `json:"total_attendance"`
}

// Total returns the sum of days present over all people.
func (h *AttendanceHandler) Total(w http.ResponseWriter, r *http.Request) {
	total, err := h.ledger.TotalAttendance(r.Context())
	if err != nil {
		respondDomainError(w, err, "load attendance")
		return
	}
	respondJSON(w, http.StatusOK, TotalResponse{Date: h.ledger.Today(), TotalAttendance: total})
}
