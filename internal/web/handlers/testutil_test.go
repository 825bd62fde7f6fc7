package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/station"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// fakeEncoder returns the faces registered for a frame's exact bytes and
// fallback for anything else.
type fakeEncoder struct {
	faces    map[string][][]float64
	fallback [][]float64
}

func (e *fakeEncoder) Encode(_ context.Context, data []byte) ([][]float64, error) {
	if faces, ok := e.faces[string(data)]; ok {
		return faces, nil
	}
	return e.fallback, nil
}

// testEnv wires the services behind the handlers with in-memory storage.
type testEnv struct {
	ledger     *ledger.Ledger
	store      *ledger.MemoryStore
	images     *gallery.ImageStore
	station    *station.Station
	enrollment *enrollment.Service
	loader     *gallery.Loader
	encoder    *fakeEncoder
	now        time.Time
}

func newTestEnv(t *testing.T, people ...ledger.Person) *testEnv {
	t.Helper()
	env := &testEnv{
		store: ledger.NewMemoryStore(people...),
		now:   time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		encoder: &fakeEncoder{
			faces: map[string][][]float64{
				"anita-frame":    {{0, 0, 0}},
				"stranger-frame": {{5, 5, 5}},
				"empty-frame":    nil,
			},
			fallback: [][]float64{{9, 9, 9}},
		},
	}
	env.ledger = ledger.New(env.store, func() time.Time { return env.now })
	env.images = gallery.NewImageStore(t.TempDir())
	env.loader = gallery.NewLoader(env.images, env.encoder, 2)
	env.station = station.New(facematch.NewGallery(0.6, []facematch.Reference{
		{Name: "Anita", Embedding: []float64{0, 0, 0}},
	}), env.encoder, env.ledger)
	env.enrollment = enrollment.New(env.ledger, env.images).
		WithFaces(env.loader).
		WithGallery(func() enrollment.Gallery { return env.station.Gallery() })
	return env
}

var anitaPerson = ledger.Person{Name: "Anita", RollNo: "42", Branch: "CSE", MobileNo: "9000000000"}

func personNamed(name string, present int) ledger.Person {
	return ledger.Person{Name: name, RollNo: "1", Branch: "ECE", MobileNo: "9000000001", DaysPresent: present}
}

// pngImage returns a small decodable image.
func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{G: 180, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

// multipartRequest builds a multipart request with the given fields and an
// optional image part.
func multipartRequest(t *testing.T, method, path string, fields map[string]string, img []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field: %v", err)
		}
	}
	if img != nil {
		part, err := mw.CreateFormFile("image", "frame.png")
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		part.Write(img)
	}
	mw.Close()

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// newTestSessionManager returns a session manager stopped at test end
func newTestSessionManager(t *testing.T) *middleware.SessionManager {
	t.Helper()
	sm := middleware.NewSessionManager("test-secret", nil)
	t.Cleanup(sm.Stop)
	return sm
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
