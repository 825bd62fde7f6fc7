package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestLoad_MissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "admins.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Users()) != 0 {
		t.Errorf("expected no users, got %v", s.Users())
	}
	if err := s.Verify("admin", "admin"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestSetSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "admins.yaml")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s.WithCost(bcrypt.MinCost)

	if err := s.Set("admin", "s3cret"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("clerk", "pass"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if strings.Contains(string(data), "s3cret") {
		t.Error("plain-text password written to disk")
	}
	info, _ := os.Stat(path)
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %o", info.Mode().Perm())
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := reloaded.Users(); len(got) != 2 || got[0] != "admin" || got[1] != "clerk" {
		t.Errorf("unexpected users %v", got)
	}
	if err := reloaded.Verify("admin", "s3cret"); err != nil {
		t.Errorf("Verify correct password: %v", err)
	}
	if err := reloaded.Verify("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for wrong password, got %v", err)
	}
	if err := reloaded.Verify("nobody", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestSet_Invalid(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "admins.yaml"))

	if err := s.Set("admin", ""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
	if err := s.Set("  ", "pw"); err == nil {
		t.Error("expected error for empty username")
	}
}

func TestRemove(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "admins.yaml"))
	s.WithCost(bcrypt.MinCost)
	_ = s.Set("admin", "pw")

	if !s.Remove("admin") {
		t.Fatal("expected admin to be removed")
	}
	if s.Remove("admin") {
		t.Error("second Remove should report false")
	}
	if err := s.Verify("admin", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("removed user must not log in, got %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	if err := os.WriteFile(path, []byte("admins: [::"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_SkipsIncompleteEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "admins.yaml")
	content := "admins:\n  - username: admin\n  - username: \"\"\n    password_hash: x\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Users()) != 0 {
		t.Errorf("expected incomplete entries to be skipped, got %v", s.Users())
	}
}
