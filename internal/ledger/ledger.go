// Package ledger keeps the per-person attendance records and applies the
// once-per-day presence rule on top of a pluggable Store.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

var (
	// ErrNotFound is returned when no person with the given name exists.
	ErrNotFound = errors.New("person not found")
	// ErrAlreadyEnrolled is returned when enrolling a name that is already in the ledger.
	ErrAlreadyEnrolled = errors.New("person is already registered")
	// ErrAlreadyPresent is returned when recording an absence on a day the person was present.
	ErrAlreadyPresent = errors.New("person was present on that day")
	// ErrInvalid wraps validation failures of enrollment or update input.
	ErrInvalid = errors.New("invalid input")
)

// Store persists the full set of ledger rows. Load on a store that has never
// been written returns an empty slice.
type Store interface {
	Load(ctx context.Context) ([]Person, error)
	Save(ctx context.Context, people []Person) error
}

// Outcome describes what MarkPresent did.
type Outcome int

const (
	// OutcomeCreated means the person had no row and one was created.
	OutcomeCreated Outcome = iota
	// OutcomeMarked means days present was incremented.
	OutcomeMarked
	// OutcomeAlreadyMarked means presence was already credited today; nothing changed.
	OutcomeAlreadyMarked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeMarked:
		return "marked"
	default:
		return "already_marked"
	}
}

// Ledger applies attendance rules to a Store. Every mutation is a full
// load-modify-save cycle serialized by a mutex; it does not coordinate with
// other processes using the same store.
type Ledger struct {
	store    Store
	now      func() time.Time
	validate *validator.Validate
	mu       sync.Mutex
}

// New creates a ledger. A nil clock defaults to time.Now.
func New(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		store:    store,
		now:      now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Today returns the ledger date of the current clock reading.
func (l *Ledger) Today() string {
	return FormatDay(l.now())
}

// List returns all people in ledger order.
func (l *Ledger) List(ctx context.Context) ([]Person, error) {
	people, err := l.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return people, nil
}

// Get returns one person by exact name.
func (l *Ledger) Get(ctx context.Context, name string) (Person, error) {
	people, err := l.List(ctx)
	if err != nil {
		return Person{}, err
	}
	i := indexOf(people, name)
	if i < 0 {
		return Person{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return people[i], nil
}

// TotalAttendance returns the sum of days present over all people.
func (l *Ledger) TotalAttendance(ctx context.Context) (int, error) {
	people, err := l.List(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range people {
		total += p.DaysPresent
	}
	return total, nil
}

// MarkPresent credits name with presence for today. The first call of a day
// creates or increments the row; later calls on the same day change nothing
// and report OutcomeAlreadyMarked.
func (l *Ledger) MarkPresent(ctx context.Context, name string) (Person, Outcome, error) {
	if strings.TrimSpace(name) == "" {
		return Person{}, 0, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	today := l.Today()

	var (
		result  Person
		outcome Outcome
	)
	err := l.mutate(ctx, func(people []Person) ([]Person, bool, error) {
		i := indexOf(people, name)
		if i < 0 {
			result = Person{Name: name, Date: today, DaysPresent: 1}
			outcome = OutcomeCreated
			return append(people, result), true, nil
		}

		p := &people[i]
		if p.PresentOn(today) {
			result = *p
			outcome = OutcomeAlreadyMarked
			return people, false, nil
		}

		p.DaysPresent++
		p.Date = today
		// A presence overrides an absence recorded earlier for the same day.
		if p.AbsentOn(today) {
			p.AbsentDates = slices.DeleteFunc(p.AbsentDates, func(d string) bool { return d == today })
			p.DaysAbsent = max(p.DaysAbsent-1, 0)
		}
		result = *p
		outcome = OutcomeMarked
		return people, true, nil
	})
	if err != nil {
		return Person{}, 0, err
	}
	return result, outcome, nil
}

// MarkAbsent records day as an absence. Recording the same day twice is a
// no-op; the returned bool reports whether anything changed.
func (l *Ledger) MarkAbsent(ctx context.Context, name string, day time.Time) (Person, bool, error) {
	date := FormatDay(day)

	var (
		result  Person
		changed bool
	)
	err := l.mutate(ctx, func(people []Person) ([]Person, bool, error) {
		i := indexOf(people, name)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		p := &people[i]
		if p.PresentOn(date) {
			return nil, false, fmt.Errorf("%w: %s on %s", ErrAlreadyPresent, name, date)
		}
		if p.AbsentOn(date) {
			result = *p
			return people, false, nil
		}
		p.AbsentDates = normalizeDates(append(p.AbsentDates, date))
		p.DaysAbsent++
		result = *p
		changed = true
		return people, true, nil
	})
	if err != nil {
		return Person{}, false, err
	}
	return result, changed, nil
}

// Enroll adds a new person with zero attendance. Names that are equal after
// normalization (case, diacritics, dashes) are treated as duplicates.
func (l *Ledger) Enroll(ctx context.Context, e Enrollment) (Person, error) {
	e = trimEnrollment(e)
	if err := l.check(e); err != nil {
		return Person{}, err
	}

	p := Person{
		Name:     e.Name,
		RollNo:   e.RollNo,
		Branch:   e.Branch,
		MobileNo: e.MobileNo,
	}
	err := l.mutate(ctx, func(people []Person) ([]Person, bool, error) {
		if _, ok := l.findSimilar(people, e.Name); ok {
			return nil, false, fmt.Errorf("%w: %s", ErrAlreadyEnrolled, e.Name)
		}
		return append(people, p), true, nil
	})
	if err != nil {
		return Person{}, err
	}
	return p, nil
}

// Validate checks e the way Enroll does without reading the store.
func (l *Ledger) Validate(e Enrollment) error {
	return l.check(trimEnrollment(e))
}

// Exists reports whether a person with an equivalent name is already enrolled,
// returning the stored name.
func (l *Ledger) Exists(ctx context.Context, name string) (string, bool, error) {
	people, err := l.List(ctx)
	if err != nil {
		return "", false, err
	}
	stored, ok := l.findSimilar(people, strings.TrimSpace(name))
	return stored, ok, nil
}

// Update replaces the administrator-provided fields of a person.
func (l *Ledger) Update(ctx context.Context, name string, d Details) (Person, error) {
	d.RollNo = strings.TrimSpace(d.RollNo)
	d.Branch = strings.TrimSpace(d.Branch)
	d.MobileNo = strings.TrimSpace(d.MobileNo)
	if err := l.check(d); err != nil {
		return Person{}, err
	}

	var result Person
	err := l.mutate(ctx, func(people []Person) ([]Person, bool, error) {
		i := indexOf(people, name)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		people[i].RollNo = d.RollNo
		people[i].Branch = d.Branch
		people[i].MobileNo = d.MobileNo
		result = people[i]
		return people, true, nil
	})
	if err != nil {
		return Person{}, err
	}
	return result, nil
}

// Delete removes a person's row.
func (l *Ledger) Delete(ctx context.Context, name string) error {
	return l.mutate(ctx, func(people []Person) ([]Person, bool, error) {
		i := indexOf(people, name)
		if i < 0 {
			return nil, false, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return slices.Delete(people, i, i+1), true, nil
	})
}

// mutate runs fn under the ledger lock and saves the result when fn reports a change.
func (l *Ledger) mutate(ctx context.Context, fn func([]Person) ([]Person, bool, error)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	people, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	updated, changed, err := fn(people)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	if err := l.store.Save(ctx, updated); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func (l *Ledger) findSimilar(people []Person, name string) (string, bool) {
	for _, p := range people {
		if p.Name == name || facematch.SameName(p.Name, name) {
			return p.Name, true
		}
	}
	return "", false
}

// check validates v and converts validator errors to ErrInvalid.
func (l *Ledger) check(v any) error {
	err := l.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldLabel(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "max":
			msgs = append(msgs, field+" is too long")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, ", "))
}

func trimEnrollment(e Enrollment) Enrollment {
	e.Name = strings.TrimSpace(e.Name)
	e.RollNo = strings.TrimSpace(e.RollNo)
	e.Branch = strings.TrimSpace(e.Branch)
	e.MobileNo = strings.TrimSpace(e.MobileNo)
	return e
}

func fieldLabel(field string) string {
	switch field {
	case "RollNo":
		return "roll no"
	case "MobileNo":
		return "mobile no"
	default:
		return strings.ToLower(field)
	}
}

func indexOf(people []Person, name string) int {
	return slices.IndexFunc(people, func(p Person) bool { return p.Name == name })
}
