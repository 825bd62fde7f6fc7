package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/credentials"
	"github.com/kozaktomas/face-attendance/internal/enrollment"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/station"
	"golang.org/x/crypto/bcrypt"
)

type noFaces struct{}

func (noFaces) Encode(context.Context, []byte) ([][]float64, error) { return nil, nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{
		Matching: config.MatchingConfig{Tolerance: 0.6},
		Admin:    config.AdminConfig{SessionSecret: "test-secret"},
	}

	creds, err := credentials.Load(filepath.Join(t.TempDir(), "admins.yaml"))
	if err != nil {
		t.Fatalf("loading credentials: %v", err)
	}
	creds.WithCost(bcrypt.MinCost)
	if err := creds.Set("admin", "s3cret"); err != nil {
		t.Fatalf("setting password: %v", err)
	}

	l := ledger.New(ledger.NewMemoryStore(), func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) })
	images := gallery.NewImageStore(t.TempDir())
	st := station.New(facematch.NewGallery(0.6, nil), noFaces{}, l)

	s := NewServer(cfg, Deps{
		Ledger:      l,
		Station:     st,
		Enrollment:  enrollment.New(l, images),
		Loader:      gallery.NewLoader(images, noFaces{}, 1),
		Credentials: creds,
	}, 0, "127.0.0.1", nil)
	t.Cleanup(s.sessionManager.Stop)
	return s
}

func TestRoutes_Public(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/v1/health", "/api/v1/attendance/total", "/api/v1/auth/status"} {
		recorder := httptest.NewRecorder()
		s.Router().ServeHTTP(recorder, httptest.NewRequest("GET", path, nil))
		if recorder.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, recorder.Code)
		}
	}
}

func TestRoutes_AdminRequiresSession(t *testing.T) {
	s := newTestServer(t)

	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest("GET", "/api/v1/people", nil))
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", recorder.Code)
	}

	login := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewBufferString(`{"username":"admin","password":"s3cret"}`))
	recorder = httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, login)
	if recorder.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", recorder.Code, recorder.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parsing login response: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/people", nil)
	req.Header.Set("Authorization", "Bearer "+resp.SessionID)
	recorder = httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200 with session, got %d", recorder.Code)
	}
	if recorder.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers on API responses")
	}
}

func TestRoutes_PersonPathParameter(t *testing.T) {
	s := newTestServer(t)
	if _, _, err := s.deps.Ledger.MarkPresent(context.Background(), "Anita Rao"); err != nil {
		t.Fatalf("MarkPresent: %v", err)
	}
	session, err := s.sessionManager.CreateSession(context.Background(), "admin")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, _, err := s.deps.Ledger.MarkPresent(context.Background(), "Zoë O'Neil"); err != nil {
		t.Fatalf("MarkPresent: %v", err)
	}

	tests := []struct {
		path string
		name string
	}{
		{"/api/v1/people/Anita%20Rao", "Anita Rao"},
		// The apostrophe is left unescaped, unlike Go's own encoding.
		{"/api/v1/people/Zo%C3%AB%20O'Neil", "Zoë O'Neil"},
		{"/api/v1/people/Zo%C3%AB%20O%27Neil", "Zoë O'Neil"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		req.Header.Set("Authorization", "Bearer "+session.ID)
		recorder := httptest.NewRecorder()
		s.Router().ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d: %s", tt.path, recorder.Code, recorder.Body.String())
			continue
		}
		var rec ledger.Record
		if err := json.Unmarshal(recorder.Body.Bytes(), &rec); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if rec.Name != tt.name {
			t.Errorf("GET %s: got person %q, want %q", tt.path, rec.Name, tt.name)
		}
	}
}
