// Package camera provides frame sources for the capture station.
package camera

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// ErrUnavailable is returned when a source cannot deliver a frame.
var ErrUnavailable = errors.New("camera unavailable")

// Source delivers the current frame as encoded image bytes.
type Source interface {
	Frame(ctx context.Context) ([]byte, error)
	Close() error
}

// Open returns a source for target and probes it once. An http(s) URL is
// treated as a snapshot endpoint, anything else as a file path that another
// process keeps refreshing.
func Open(ctx context.Context, target string, timeout time.Duration) (Source, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: no camera configured (set CAMERA_URL)", ErrUnavailable)
	}

	var src Source
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		src = NewHTTPSnapshot(target, timeout)
	} else {
		src = NewFileSource(target)
	}

	if _, err := src.Frame(ctx); err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to open the camera: %w", err)
	}
	return src, nil
}

// HTTPSnapshot fetches JPEG snapshots from an IP camera endpoint.
type HTTPSnapshot struct {
	url    string
	client *http.Client
}

// NewHTTPSnapshot creates a snapshot source. A non-positive timeout selects 10s.
func NewHTTPSnapshot(url string, timeout time.Duration) *HTTPSnapshot {
	if timeout <= 0 {
		timeout = constants.CameraTimeout
	}
	return &HTTPSnapshot{url: url, client: &http.Client{Timeout: timeout}}
}

func (s *HTTPSnapshot) Frame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: snapshot returned status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading snapshot: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrUnavailable)
	}
	if len(data) > constants.MaxUploadSize {
		return nil, fmt.Errorf("%w: snapshot exceeds %d bytes", ErrUnavailable, constants.MaxUploadSize)
	}
	return data, nil
}

func (s *HTTPSnapshot) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// FileSource reads the frame from a file on every call.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Frame(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty frame file %s", ErrUnavailable, s.path)
	}
	return data, nil
}

func (s *FileSource) Close() error {
	return nil
}
