package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/lib/pq"
)

// Event kinds stored in attendance_events.
const (
	EventPresent = "present"
	EventAbsent  = "absent"
)

// Event is one row of the attendance event log.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Day        string    `json:"day"`
	Kind       string    `json:"kind"`
	RecordedAt time.Time `json:"recorded_at"`
}

// LedgerStore implements ledger.Store on PostgreSQL. The people table keeps
// the per-person aggregates; every presence and absence is additionally
// appended to attendance_events, unique per (name, day, kind).
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new PostgreSQL ledger store.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

var _ ledger.Store = (*LedgerStore)(nil)

// Load returns all people in enrollment order. Counters and the last-seen
// date come from the people row; absent dates come from the event log.
func (s *LedgerStore) Load(ctx context.Context) ([]ledger.Person, error) {
	query := `
		SELECT p.name, p.roll_no, p.branch, p.mobile_no,
			COALESCE(to_char(p.last_seen, 'YYYY-MM-DD'), ''),
			p.days_present, p.days_absent,
			COALESCE(array_agg(to_char(e.day, 'YYYY-MM-DD') ORDER BY e.day)
				FILTER (WHERE e.kind = 'absent'), '{}')
		FROM people p
		LEFT JOIN attendance_events e ON e.name = p.name
		GROUP BY p.seq, p.name
		ORDER BY p.seq
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query people: %w", err)
	}
	defer rows.Close()

	people := []ledger.Person{}
	for rows.Next() {
		var (
			p      ledger.Person
			absent pq.StringArray
		)
		if err := rows.Scan(&p.Name, &p.RollNo, &p.Branch, &p.MobileNo, &p.Date,
			&p.DaysPresent, &p.DaysAbsent, &absent); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		if len(absent) > 0 {
			p.AbsentDates = []string(absent)
		}
		people = append(people, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate people: %w", err)
	}
	return people, nil
}

// Save replaces the stored ledger with people in a single transaction.
// Events already logged are kept; absences no longer present in a person's
// absent dates are removed from the log.
func (s *LedgerStore) Save(ctx context.Context, people []ledger.Person) error {
	names := make([]string, 0, len(people))
	for _, p := range people {
		names = append(names, p.Name)
	}

	return s.pool.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM people WHERE NOT (name = ANY($1))", pq.Array(names)); err != nil {
			return fmt.Errorf("delete removed people: %w", err)
		}
		for _, p := range people {
			if err := savePerson(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func savePerson(ctx context.Context, tx *sql.Tx, p ledger.Person) error {
	upsert := `
		INSERT INTO people (name, roll_no, branch, mobile_no, last_seen, days_present, days_absent)
		VALUES ($1, $2, $3, $4, NULLIF($5, '')::date, $6, $7)
		ON CONFLICT (name) DO UPDATE SET
			roll_no = EXCLUDED.roll_no,
			branch = EXCLUDED.branch,
			mobile_no = EXCLUDED.mobile_no,
			last_seen = EXCLUDED.last_seen,
			days_present = EXCLUDED.days_present,
			days_absent = EXCLUDED.days_absent,
			updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, upsert, p.Name, p.RollNo, p.Branch, p.MobileNo,
		p.Date, p.DaysPresent, p.DaysAbsent); err != nil {
		return fmt.Errorf("save person %s: %w", p.Name, err)
	}

	if p.Date != "" {
		if err := insertEvent(ctx, tx, p.Name, p.Date, EventPresent); err != nil {
			return err
		}
	}

	absent := p.AbsentDates
	if absent == nil {
		absent = []string{}
	}
	prune := `
		DELETE FROM attendance_events
		WHERE name = $1 AND kind = 'absent'
			AND NOT (to_char(day, 'YYYY-MM-DD') = ANY($2))
	`
	if _, err := tx.ExecContext(ctx, prune, p.Name, pq.Array(absent)); err != nil {
		return fmt.Errorf("prune absences of %s: %w", p.Name, err)
	}
	for _, day := range absent {
		if err := insertEvent(ctx, tx, p.Name, day, EventAbsent); err != nil {
			return err
		}
	}
	return nil
}

func insertEvent(ctx context.Context, tx *sql.Tx, name, day, kind string) error {
	query := `
		INSERT INTO attendance_events (id, name, day, kind)
		VALUES ($1, $2, $3::date, $4)
		ON CONFLICT (name, day, kind) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, uuid.New(), name, day, kind); err != nil {
		return fmt.Errorf("record %s event for %s on %s: %w", kind, name, day, err)
	}
	return nil
}

// Events returns the logged events of name ordered by day, or of everyone
// when name is empty.
func (s *LedgerStore) Events(ctx context.Context, name string) ([]Event, error) {
	query := `
		SELECT id, name, to_char(day, 'YYYY-MM-DD'), kind, recorded_at
		FROM attendance_events
		WHERE $1 = '' OR name = $1
		ORDER BY day, name, kind
	`
	rows, err := s.pool.Query(ctx, query, name)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Day, &e.Kind, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
