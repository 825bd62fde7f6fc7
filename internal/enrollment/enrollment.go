// Package enrollment keeps the ledger, the enrollment images and the live
// gallery consistent when people are added or removed.
package enrollment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
)

// ErrNoFace is returned when face checking is enabled and the enrollment
// image contains no detectable face.
var ErrNoFace = errors.New("no face detected in image")

// Faces extracts the reference embedding of an enrollment image.
type Faces interface {
	Encode(ctx context.Context, imageData []byte) ([]float64, error)
}

// Gallery is the live gallery updated on enrollment and deletion.
type Gallery interface {
	Put(ref facematch.Reference)
	Remove(name string) bool
}

// Images stores the reference image of each person.
type Images interface {
	Replace(name string, jpegData []byte) (*gallery.Replacement, error)
	Delete(name string) error
}

// embeddingPurger is implemented by caches that can drop a person's entries.
type embeddingPurger interface {
	DeleteByName(ctx context.Context, name string) (int64, error)
}

// Service enrolls and deletes people. Changes are serialized so the
// duplicate check and the image written for it cannot interleave.
type Service struct {
	ledger  *ledger.Ledger
	images  Images
	faces   Faces
	gallery func() Gallery
	cache   gallery.EmbeddingCache
	mu      sync.Mutex
}

// New creates a service. Face checking and gallery updates are off until
// WithFaces and WithGallery are called.
func New(l *ledger.Ledger, images Images) *Service {
	return &Service{ledger: l, images: images}
}

// WithFaces rejects enrollment images without a face and makes the
// computed embedding available to the gallery.
func (s *Service) WithFaces(f Faces) *Service {
	s.faces = f
	return s
}

// WithGallery registers the gallery to keep in sync. fn is called on every
// change so a gallery swapped in by a reload is picked up.
func (s *Service) WithGallery(fn func() Gallery) *Service {
	s.gallery = fn
	return s
}

// WithCache purges cached embeddings of deleted people.
func (s *Service) WithCache(cache gallery.EmbeddingCache) *Service {
	s.cache = cache
	return s
}

// Enroll registers a new person with their reference image. The input is
// validated before anything is written; if the ledger then rejects the
// person, the previous images of that name are restored.
func (s *Service) Enroll(ctx context.Context, e ledger.Enrollment, imageData []byte) (ledger.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Validate(e); err != nil {
		return ledger.Person{}, err
	}
	if stored, ok, err := s.ledger.Exists(ctx, e.Name); err != nil {
		return ledger.Person{}, err
	} else if ok {
		return ledger.Person{}, fmt.Errorf("%w: %s", ledger.ErrAlreadyEnrolled, stored)
	}
	if len(imageData) == 0 {
		return ledger.Person{}, fmt.Errorf("%w: image is required", ledger.ErrInvalid)
	}

	normalized, err := gallery.NormalizeImage(imageData, constants.MaxImageSize)
	if err != nil {
		return ledger.Person{}, fmt.Errorf("%w: %v", ledger.ErrInvalid, err)
	}

	var embedding []float64
	if s.faces != nil {
		embedding, err = s.faces.Encode(ctx, normalized)
		if err != nil {
			return ledger.Person{}, err
		}
		if embedding == nil {
			return ledger.Person{}, ErrNoFace
		}
	}

	replacement, err := s.images.Replace(strings.TrimSpace(e.Name), normalized)
	if err != nil {
		return ledger.Person{}, fmt.Errorf("failed to save image: %w", err)
	}

	person, err := s.ledger.Enroll(ctx, e)
	if err != nil {
		if rbErr := replacement.Rollback(); rbErr != nil {
			log.Printf("enrollment: restoring images of %s after failed enrollment: %v", e.Name, rbErr)
		}
		return ledger.Person{}, err
	}
	if err := replacement.Commit(); err != nil {
		log.Printf("enrollment: removing replaced images of %s: %v", person.Name, err)
	}

	if embedding != nil && s.gallery != nil {
		s.gallery().Put(facematch.Reference{Name: person.Name, Embedding: embedding})
	}
	return person, nil
}

// Delete removes a person's image, their gallery entry and their row, in
// that order. If the image cannot be removed nothing else changes.
func (s *Service) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.ledger.Get(ctx, name); err != nil {
		return err
	}
	if err := s.images.Delete(name); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if s.gallery != nil {
		s.gallery().Remove(name)
	}
	if err := s.ledger.Delete(ctx, name); err != nil {
		return err
	}
	if purger, ok := s.cache.(embeddingPurger); ok {
		if _, err := purger.DeleteByName(ctx, name); err != nil {
			log.Printf("enrollment: purging cached embeddings of %s: %v", name, err)
		}
	}
	return nil
}
