//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		container.Terminate(ctx)
	}
	return pool, cleanup
}

func TestMigrate_Idempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	versions, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("MigrationsApplied: %v", err)
	}
	if len(versions) != 1 || versions[0] != "001_init.sql" {
		t.Errorf("unexpected migrations %v", versions)
	}
}

func TestLedgerStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	store := NewLedgerStore(pool)

	t.Run("EmptyLoad", func(t *testing.T) {
		people, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(people) != 0 {
			t.Errorf("expected empty ledger, got %d", len(people))
		}
	})

	t.Run("ThroughLedger", func(t *testing.T) {
		day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
		l := ledger.New(store, func() time.Time { return day })

		if _, err := l.Enroll(ctx, ledger.Enrollment{Name: "Anita", Details: ledger.Details{RollNo: "42", Branch: "CSE", MobileNo: "9000000000"}}); err != nil {
			t.Fatalf("Enroll: %v", err)
		}
		if _, err := l.Enroll(ctx, ledger.Enrollment{Name: "Ravi", Details: ledger.Details{RollNo: "7", Branch: "ECE", MobileNo: "9000000001"}}); err != nil {
			t.Fatalf("Enroll: %v", err)
		}
		if _, _, err := l.MarkAbsent(ctx, "Anita", day.AddDate(0, 0, -3)); err != nil {
			t.Fatalf("MarkAbsent: %v", err)
		}
		if _, _, err := l.MarkPresent(ctx, "Anita"); err != nil {
			t.Fatalf("MarkPresent: %v", err)
		}
		_, outcome, err := l.MarkPresent(ctx, "Anita")
		if err != nil {
			t.Fatalf("MarkPresent again: %v", err)
		}
		if outcome != ledger.OutcomeAlreadyMarked {
			t.Errorf("expected already marked, got %v", outcome)
		}

		people, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(people) != 2 || people[0].Name != "Anita" || people[1].Name != "Ravi" {
			t.Fatalf("unexpected people %+v", people)
		}
		anita := people[0]
		if anita.DaysPresent != 1 || anita.DaysAbsent != 1 || anita.Date != "2026-03-02" {
			t.Errorf("unexpected aggregates %+v", anita)
		}
		if len(anita.AbsentDates) != 1 || anita.AbsentDates[0] != "2026-02-27" {
			t.Errorf("unexpected absent dates %v", anita.AbsentDates)
		}

		events, err := store.Events(ctx, "Anita")
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
		if events[0].Kind != EventAbsent || events[1].Kind != EventPresent {
			t.Errorf("unexpected event order %+v", events)
		}

		if err := l.Delete(ctx, "Ravi"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		people, _ = store.Load(ctx)
		if len(people) != 1 {
			t.Errorf("expected one person after delete, got %d", len(people))
		}
	})

	t.Run("CountersComeFromPeopleRow", func(t *testing.T) {
		// Imported history: five days present but only one logged presence.
		imported := []ledger.Person{{Name: "Meera", Date: "2026-03-01", DaysPresent: 5, DaysAbsent: 2,
			AbsentDates: []string{"2026-02-20"}}}
		if err := store.Save(ctx, imported); err != nil {
			t.Fatalf("Save: %v", err)
		}

		people, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(people) != 1 || people[0].DaysPresent != 5 || people[0].DaysAbsent != 2 || people[0].Date != "2026-03-01" {
			t.Fatalf("expected stored counters, got %+v", people)
		}
		if len(people[0].AbsentDates) != 1 || people[0].AbsentDates[0] != "2026-02-20" {
			t.Errorf("expected absent dates from events, got %v", people[0].AbsentDates)
		}

		events, err := store.Events(ctx, "Meera")
		if err != nil {
			t.Fatalf("Events: %v", err)
		}
		if len(events) != 2 {
			t.Errorf("expected one absent and one present event, got %+v", events)
		}
	})
}

func TestEmbeddingCache(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	cache := NewEmbeddingCache(pool)

	if _, ok, err := cache.GetEmbedding(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	emb := make([]float64, 128)
	for i := range emb {
		emb[i] = float64(i) / 128
	}
	if err := cache.PutEmbedding(ctx, "abc", "Anita", emb); err != nil {
		t.Fatalf("PutEmbedding: %v", err)
	}
	got, ok, err := cache.GetEmbedding(ctx, "abc")
	if err != nil || !ok {
		t.Fatalf("GetEmbedding: ok=%v err=%v", ok, err)
	}
	if len(got) != 128 || got[64] != 0.5 {
		t.Errorf("unexpected embedding round trip: len=%d [64]=%v", len(got), got[64])
	}

	n, err := cache.DeleteByName(ctx, "Anita")
	if err != nil || n != 1 {
		t.Errorf("DeleteByName: n=%d err=%v", n, err)
	}
}

func TestSessionRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(pool)
	now := time.Now().UTC().Truncate(time.Second)

	if err := repo.Save(ctx, "live", "admin", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := repo.Save(ctx, "old", "admin", now.Add(-2*time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	s, err := repo.Get(ctx, "live")
	if err != nil || s == nil {
		t.Fatalf("Get: s=%v err=%v", s, err)
	}
	if s.Username != "admin" {
		t.Errorf("expected admin, got %q", s.Username)
	}
	if s, _ := repo.Get(ctx, "old"); s != nil {
		t.Error("expired session must not be returned")
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil || n != 1 {
		t.Errorf("DeleteExpired: n=%d err=%v", n, err)
	}
	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s, _ := repo.Get(ctx, "live"); s != nil {
		t.Error("deleted session must not be returned")
	}
}
