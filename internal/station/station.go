// Package station runs the capture/match flow: take a frame, find the face,
// match it against the gallery and credit attendance in the ledger.
package station

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/encoder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// ErrNoCamera is returned by Capture when the station has no camera attached.
var ErrNoCamera = errors.New("no camera attached")

// Status is the outcome of one recognition attempt.
type Status string

const (
	StatusNoFace        Status = "no_face"
	StatusNoMatch       Status = "no_match" // empty gallery
	StatusUnrecognized  Status = "unrecognized"
	StatusMarked        Status = "marked"
	StatusAlreadyMarked Status = "already_marked"
)

// Result is reported back to the person in front of the camera.
type Result struct {
	Status          Status         `json:"status"`
	Message         string         `json:"message"`
	Faces           int            `json:"faces"`
	Name            string         `json:"name,omitempty"`
	Distance        *float64       `json:"distance,omitempty"`
	Record          *ledger.Record `json:"record,omitempty"`
	TotalAttendance int            `json:"total_attendance"`
	FramePath       string         `json:"frame_path,omitempty"`
}

// Station wires a gallery, an encoder and a ledger together.
type Station struct {
	gallery     atomic.Pointer[facematch.Gallery]
	enc         encoder.Encoder
	ledger      *ledger.Ledger
	camera      camera.Source
	capturedDir string
	now         func() time.Time
}

// New creates a station. The gallery is used as loaded; see ReplaceGallery.
func New(g *facematch.Gallery, enc encoder.Encoder, l *ledger.Ledger) *Station {
	s := &Station{enc: enc, ledger: l, now: time.Now}
	if g == nil {
		g = facematch.NewGallery(0, nil)
	}
	s.gallery.Store(g)
	return s
}

// WithCamera attaches a frame source for Capture and Watch.
func (s *Station) WithCamera(src camera.Source) *Station {
	s.camera = src
	return s
}

// WithArchive stores every captured frame under dir. Empty disables archiving.
func (s *Station) WithArchive(dir string) *Station {
	s.capturedDir = dir
	return s
}

// Gallery returns the gallery currently in use.
func (s *Station) Gallery() *facematch.Gallery {
	return s.gallery.Load()
}

// ReplaceGallery swaps in a freshly built gallery.
func (s *Station) ReplaceGallery(g *facematch.Gallery) {
	s.gallery.Store(g)
}

// Forget removes a person from the gallery so they can no longer be matched.
func (s *Station) Forget(name string) bool {
	return s.gallery.Load().Remove(name)
}

// Recognize processes one frame. Only the first detected face is matched.
func (s *Station) Recognize(ctx context.Context, frame []byte) (Result, error) {
	faces, err := s.enc.Encode(ctx, frame)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}

	res := Result{Faces: len(faces)}
	if len(faces) == 0 {
		res.Status = StatusNoFace
		res.Message = "No face detected!"
		return s.archive(res, frame), nil
	}

	m := s.gallery.Load().Match(faces[0])
	if !math.IsInf(m.Distance, 1) {
		d := math.Round(m.Distance*10000) / 10000
		res.Distance = &d
	}

	switch m.Outcome {
	case facematch.NoMatch:
		res.Status = StatusNoMatch
		res.Message = "Face not recognized!"
		return s.archive(res, frame), nil
	case facematch.Unrecognized:
		res.Status = StatusUnrecognized
		res.Message = "Face not recognized!"
		return s.archive(res, frame), nil
	}

	person, outcome, err := s.ledger.MarkPresent(ctx, m.Name)
	if err != nil {
		return Result{}, fmt.Errorf("mark attendance for %s: %w", m.Name, err)
	}
	total, err := s.ledger.TotalAttendance(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("total attendance: %w", err)
	}

	rec := ledger.NewRecord(person)
	res.Name = m.Name
	res.Record = &rec
	res.TotalAttendance = total
	if outcome == ledger.OutcomeAlreadyMarked {
		res.Status = StatusAlreadyMarked
		res.Message = "Attendance for today is already marked."
	} else {
		res.Status = StatusMarked
		res.Message = fmt.Sprintf("Attendance Marked for: %s\nAttendance Percentage: %.2f%%", m.Name, rec.Percentage)
	}
	return s.archive(res, frame), nil
}

// Capture grabs a frame from the camera and recognizes it.
func (s *Station) Capture(ctx context.Context) (Result, error) {
	if s.camera == nil {
		return Result{}, ErrNoCamera
	}
	frame, err := s.camera.Frame(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to capture frame: %w", err)
	}
	return s.Recognize(ctx, frame)
}

// Watch captures every interval until ctx is canceled, handing each result
// to fn. Capture errors are passed to fn and do not stop the loop.
func (s *Station) Watch(ctx context.Context, interval time.Duration, fn func(Result, error)) error {
	if s.camera == nil {
		return ErrNoCamera
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		fn(s.Capture(ctx))

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// archive writes the frame to the archive directory, if enabled. Failures are
// logged; they never fail the recognition.
func (s *Station) archive(res Result, frame []byte) Result {
	if s.capturedDir == "" {
		return res
	}
	if err := os.MkdirAll(s.capturedDir, 0o755); err != nil {
		log.Printf("station: create archive directory: %v", err)
		return res
	}
	name := fmt.Sprintf("%s_%s", s.now().Format("20060102T150405.000"), res.Status)
	if res.Name != "" {
		name += "_" + res.Name
	}
	path := filepath.Join(s.capturedDir, name+extensionFor(frame))
	if err := os.WriteFile(path, frame, 0o644); err != nil {
		log.Printf("station: archive frame: %v", err)
		return res
	}
	res.FramePath = path
	return res
}

func extensionFor(frame []byte) string {
	switch encoder.DetectMIMEType(frame) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
