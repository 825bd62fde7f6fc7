// Package gallery manages the enrollment image directory and builds the
// in-memory face gallery from it.
package gallery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/encoder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

// EmbeddingCache stores reference embeddings keyed by the SHA-256 of the
// image they were computed from, so unchanged images skip the encoder.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, digest string) ([]float64, bool, error)
	PutEmbedding(ctx context.Context, digest, name string, embedding []float64) error
}

// Report summarizes a gallery build.
type Report struct {
	Images  int               `json:"images"`
	Loaded  int               `json:"loaded"`
	Cached  int               `json:"cached"`
	NoFace  []string          `json:"no_face,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
	Gallery []string          `json:"gallery"`
}

// Loader builds a facematch.Gallery from an ImageStore.
type Loader struct {
	images     *ImageStore
	enc        encoder.Encoder
	cache      EmbeddingCache
	workers    int
	onProgress func()
}

// NewLoader creates a loader using up to workers parallel encoder requests.
func NewLoader(images *ImageStore, enc encoder.Encoder, workers int) *Loader {
	if workers <= 0 {
		workers = constants.WorkerPoolSize
	}
	return &Loader{images: images, enc: enc, workers: workers}
}

// WithCache enables the embedding cache.
func (l *Loader) WithCache(cache EmbeddingCache) *Loader {
	l.cache = cache
	return l
}

// OnProgress registers fn to be called once per processed image.
func (l *Loader) OnProgress(fn func()) *Loader {
	l.onProgress = fn
	return l
}

// Count returns how many images a Load would process.
func (l *Loader) Count() (int, error) {
	entries, err := l.images.List()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

type loadResult struct {
	embedding []float64
	cached    bool
	err       error
}

// Load encodes every enrollment image and returns a gallery holding the
// first face of each. Images without a face or that fail to encode are
// skipped and listed in the report; only a failure to list the directory
// fails the whole load.
func (l *Loader) Load(ctx context.Context, tolerance float64) (*facematch.Gallery, Report, error) {
	entries, err := l.images.List()
	if err != nil {
		return nil, Report{}, err
	}

	results := make([]loadResult, len(entries))
	sem := make(chan struct{}, l.workers)
	var wg sync.WaitGroup

	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry Entry) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = l.loadOne(ctx, entry)
			if l.onProgress != nil {
				l.onProgress()
			}
		}(i, entry)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, Report{}, fmt.Errorf("loading gallery: %w", err)
	}

	report := Report{Images: len(entries), Failed: map[string]string{}}
	refs := make([]facematch.Reference, 0, len(entries))
	for i, res := range results {
		name := entries[i].Name
		switch {
		case res.err != nil:
			report.Failed[name] = res.err.Error()
			log.Printf("gallery: skipping %s: %v", name, res.err)
		case res.embedding == nil:
			report.NoFace = append(report.NoFace, name)
			log.Printf("gallery: no face found in %s", entries[i].Path)
		default:
			refs = append(refs, facematch.Reference{Name: name, Embedding: res.embedding})
			report.Gallery = append(report.Gallery, name)
			report.Loaded++
			if res.cached {
				report.Cached++
			}
		}
	}
	if len(report.Failed) == 0 {
		report.Failed = nil
	}

	return facematch.NewGallery(tolerance, refs), report, nil
}

// Encode returns the first face embedding found in imageData, or nil when
// the image contains no face.
func (l *Loader) Encode(ctx context.Context, imageData []byte) ([]float64, error) {
	faces, err := l.enc.Encode(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if len(faces) == 0 {
		return nil, nil
	}
	return faces[0], nil
}

func (l *Loader) loadOne(ctx context.Context, entry Entry) loadResult {
	if err := ctx.Err(); err != nil {
		return loadResult{err: err}
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return loadResult{err: fmt.Errorf("read image: %w", err)}
	}

	var digest string
	if l.cache != nil {
		sum := sha256.Sum256(data)
		digest = hex.EncodeToString(sum[:])
		emb, ok, err := l.cache.GetEmbedding(ctx, digest)
		if err != nil {
			log.Printf("gallery: cache lookup for %s failed: %v", entry.Name, err)
		} else if ok {
			return loadResult{embedding: emb, cached: true}
		}
	}

	emb, err := l.Encode(ctx, data)
	if err != nil {
		return loadResult{err: err}
	}
	if emb != nil && l.cache != nil {
		if err := l.cache.PutEmbedding(ctx, digest, entry.Name, emb); err != nil {
			log.Printf("gallery: caching embedding for %s failed: %v", entry.Name, err)
		}
	}
	return loadResult{embedding: emb}
}
