package handlers

import (
	"log"
	"net/http"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/station"
)

// GalleryHandler inspects and rebuilds the station's face gallery.
type GalleryHandler struct {
	loader    *gallery.Loader
	station   *station.Station
	tolerance float64
	reloading sync.Mutex
}

// NewGalleryHandler creates a new gallery handler
func NewGalleryHandler(loader *gallery.Loader, st *station.Station, tolerance float64) *GalleryHandler {
	return &GalleryHandler{loader: loader, station: st, tolerance: tolerance}
}

// GalleryResponse describes the gallery in use.
type GalleryResponse struct {
	Names     []string `json:"names"`
	Count     int      `json:"count"`
	Tolerance float64  `json:"tolerance"`
}

// Get lists the people the station can currently recognize.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	g := h.station.Gallery()
	names := g.Names()
	respondJSON(w, http.StatusOK, GalleryResponse{Names: names, Count: len(names), Tolerance: g.Tolerance()})
}

// Reload rebuilds the gallery from the dataset directory and swaps it in.
func (h *GalleryHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if !h.reloading.TryLock() {
		respondError(w, http.StatusConflict, "gallery reload already in progress")
		return
	}
	defer h.reloading.Unlock()

	g, report, err := h.loader.Load(r.Context(), h.tolerance)
	if err != nil {
		log.Printf("Gallery reload failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to reload gallery")
		return
	}
	h.station.ReplaceGallery(g)
	log.Printf("Gallery reloaded: %d of %d images", report.Loaded, report.Images)
	respondJSON(w, http.StatusOK, report)
}
