package gallery

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrInvalidName is returned for names that cannot be used as an image file name.
var ErrInvalidName = errors.New("name cannot be used as an image file name")

// imageExts lists the extensions picked up from the dataset directory.
var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true,
}

// backupExt marks images moved aside by Replace; List ignores them.
const backupExt = ".bak"

// Entry is one enrollment image on disk.
type Entry struct {
	Name string // person name, the file name without extension
	Path string
}

// ImageStore keeps one enrollment image per person in a directory. The
// file name is the person's name.
type ImageStore struct {
	dir string
}

// NewImageStore creates a store rooted at dir. The directory is created on first Save.
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{dir: dir}
}

// Dir returns the dataset directory.
func (s *ImageStore) Dir() string {
	return s.dir
}

// Path returns where Save writes the image of name.
func (s *ImageStore) Path(name string) string {
	return filepath.Join(s.dir, name+constants.ImageExt)
}

// List returns every image in the dataset directory sorted by file name.
// A missing directory yields no entries.
func (s *ImageStore) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dataset directory: %w", err)
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		ext := filepath.Ext(de.Name())
		if !imageExts[strings.ToLower(ext)] {
			continue
		}
		entries = append(entries, Entry{
			Name: strings.TrimSuffix(de.Name(), ext),
			Path: filepath.Join(s.dir, de.Name()),
		})
	}
	return entries, nil
}

// Find returns the entry for name, if any image exists for it.
func (s *ImageStore) Find(name string) (Entry, bool, error) {
	entries, err := s.List()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Save decodes imageData, applies EXIF orientation, shrinks it to fit
// constants.MaxImageSize and writes it as <name>.jpg, replacing any
// previous image of that person.
func (s *ImageStore) Save(name string, imageData []byte) (string, error) {
	normalized, err := NormalizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return "", err
	}
	r, err := s.Replace(name, normalized)
	if err != nil {
		return "", err
	}
	if err := r.Commit(); err != nil {
		return "", err
	}
	return r.Path, nil
}

// Replacement is an image written by Replace. Until Commit, the images it
// replaced are kept aside and Rollback puts them back.
type Replacement struct {
	Path  string
	moved map[string]string // original path -> backup path
}

// Replace writes jpegData verbatim as <name>.jpg. Other images of the same
// person are moved aside, since they would be loaded as duplicates.
func (s *ImageStore) Replace(name string, jpegData []byte) (*Replacement, error) {
	if !facematch.ValidFileName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset directory: %w", err)
	}

	entries, err := s.List()
	if err != nil {
		return nil, err
	}
	r := &Replacement{Path: s.Path(name), moved: map[string]string{}}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		backup := e.Path + backupExt
		if err := os.Rename(e.Path, backup); err != nil {
			r.restore()
			return nil, fmt.Errorf("move previous image aside: %w", err)
		}
		r.moved[e.Path] = backup
	}

	tmp := r.Path + ".tmp"
	if err := os.WriteFile(tmp, jpegData, 0o644); err != nil {
		r.restore()
		return nil, fmt.Errorf("write image: %w", err)
	}
	if err := os.Rename(tmp, r.Path); err != nil {
		os.Remove(tmp)
		r.restore()
		return nil, fmt.Errorf("store image: %w", err)
	}
	return r, nil
}

// Commit drops the replaced images.
func (r *Replacement) Commit() error {
	for _, backup := range r.moved {
		if err := os.Remove(backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove previous image: %w", err)
		}
	}
	r.moved = nil
	return nil
}

// Rollback removes the written image and restores the replaced ones.
func (r *Replacement) Rollback() error {
	if err := os.Remove(r.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return r.restore()
}

func (r *Replacement) restore() error {
	var errs []error
	for original, backup := range r.moved {
		if err := os.Rename(backup, original); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", filepath.Base(original), err))
		}
	}
	r.moved = nil
	return errors.Join(errs...)
}

// Delete removes every image of name. A person without images is not an error.
func (s *ImageStore) Delete(name string) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name != name {
			continue
		}
		if err := os.Remove(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete image: %w", err)
		}
	}
	return nil
}

// NormalizeImage decodes any supported format and re-encodes it as JPEG no
// larger than maxSize on either side.
func NormalizeImage(data []byte, maxSize int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > maxSize || b.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
