package facematch

import (
	"math"
	"slices"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/constants"
)

// Reference is one enrolled face: the person's name and the embedding
// computed from their enrollment image.
type Reference struct {
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// Outcome classifies a match attempt.
type Outcome int

const (
	// NoMatch means the gallery was empty.
	NoMatch Outcome = iota
	// Unrecognized means the closest reference was not within tolerance.
	Unrecognized
	// Matched means the closest reference was within tolerance.
	Matched
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case Unrecognized:
		return "unrecognized"
	default:
		return "no_match"
	}
}

// Match is the result of comparing a query embedding against a gallery.
// Name and Distance describe the closest reference and are empty/+Inf for NoMatch.
type Match struct {
	Outcome  Outcome
	Name     string
	Distance float64
}

// Gallery is the in-memory set of enrolled references used during a session.
// It is safe for concurrent use.
type Gallery struct {
	tolerance float64
	mu        sync.RWMutex
	refs      []Reference
}

// NewGallery creates a gallery; a non-positive tolerance selects constants.DefaultTolerance.
func NewGallery(tolerance float64, refs []Reference) *Gallery {
	if tolerance <= 0 {
		tolerance = constants.DefaultTolerance
	}
	return &Gallery{
		tolerance: tolerance,
		refs:      slices.Clone(refs),
	}
}

// Tolerance returns the match threshold.
func (g *Gallery) Tolerance() float64 {
	return g.tolerance
}

// Len returns the number of references.
func (g *Gallery) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.refs)
}

// Names returns the names of all references in gallery order.
func (g *Gallery) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, len(g.refs))
	for i, ref := range g.refs {
		names[i] = ref.Name
	}
	return names
}

// Match compares query to every reference and picks the first minimum distance.
// A minimum strictly below the tolerance is a match.
func (g *Gallery) Match(query []float64) Match {
	g.mu.RLock()
	defer g.mu.RUnlock()

	best := argMin(Distances(g.refs, query))
	if best < 0 {
		return Match{Outcome: NoMatch, Distance: math.Inf(1)}
	}

	ref := g.refs[best]
	dist := EuclideanDistance(ref.Embedding, query)
	if dist < g.tolerance {
		return Match{Outcome: Matched, Name: ref.Name, Distance: dist}
	}
	return Match{Outcome: Unrecognized, Name: ref.Name, Distance: dist}
}

// Remove drops every reference with the given name and reports whether any was removed.
func (g *Gallery) Remove(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	before := len(g.refs)
	g.refs = slices.DeleteFunc(g.refs, func(ref Reference) bool {
		return ref.Name == name
	})
	return len(g.refs) != before
}

// Put inserts ref, replacing an existing reference of the same name in place.
// New names are appended so earlier references keep winning ties.
func (g *Gallery) Put(ref Reference) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ref.Embedding = slices.Clone(ref.Embedding)
	if i := slices.IndexFunc(g.refs, func(r Reference) bool { return r.Name == ref.Name }); i >= 0 {
		g.refs[i] = ref
		return
	}
	g.refs = append(g.refs, ref)
}
