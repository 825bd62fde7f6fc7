package cmd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/spf13/cobra"
)

func TestResolveServeHostPort(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{}
		c.Flags().Int("port", 8080, "")
		c.Flags().String("host", "0.0.0.0", "")
		return c
	}

	t.Setenv("WEB_PORT", "")
	t.Setenv("WEB_HOST", "")
	if port, host := resolveServeHostPort(newCmd()); port != 8080 || host != "0.0.0.0" {
		t.Errorf("expected flag defaults, got %s:%d", host, port)
	}

	t.Setenv("WEB_PORT", "9090")
	t.Setenv("WEB_HOST", "127.0.0.1")
	if port, host := resolveServeHostPort(newCmd()); port != 9090 || host != "127.0.0.1" {
		t.Errorf("expected env override, got %s:%d", host, port)
	}

	t.Setenv("WEB_PORT", "not-a-port")
	if port, _ := resolveServeHostPort(newCmd()); port != 8080 {
		t.Errorf("expected invalid WEB_PORT to be ignored, got %d", port)
	}
}

func TestNewApp_CSVLedger(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ATTENDANCE_FILE", filepath.Join(dir, "logs", "attendance.csv"))
	t.Setenv("DATASET_DIR", filepath.Join(dir, "dataset"))

	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer a.Close()

	if a.pool != nil || a.events != nil || a.cache != nil {
		t.Fatal("expected no PostgreSQL wiring without DATABASE_URL")
	}

	e := ledger.Enrollment{Name: "Anita", Details: ledger.Details{RollNo: "1", Branch: "CSE", MobileNo: "900"}}
	if _, err := a.ledger.Enroll(ctx, e); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	// A second app over the same file sees the row.
	b, err := newApp(ctx)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer b.Close()
	if _, err := b.ledger.Get(ctx, "Anita"); err != nil {
		t.Errorf("expected persisted person, got %v", err)
	}
}
