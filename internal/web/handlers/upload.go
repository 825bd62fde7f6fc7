package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

var errNoImage = errors.New("no image provided")

// readImage returns the uploaded image of r. Multipart requests carry it in
// the "image" field; any other content type is read as the raw image body.
func readImage(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
			return nil, fmt.Errorf("failed to parse form: %w", err)
		}
		file, _, err := r.FormFile("image")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, errNoImage
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read image field: %w", err)
		}
		defer file.Close()
		return readAllImage(file)
	}
	return readAllImage(r.Body)
}

func readAllImage(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errNoImage
	}
	return data, nil
}
