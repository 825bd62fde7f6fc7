// Package credentials stores admin accounts in a YAML file with bcrypt
// password hashes.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidCredentials is returned for an unknown user or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrEmptyPassword is returned when setting an empty password.
	ErrEmptyPassword = errors.New("password must not be empty")
)

// User is one admin account as stored on disk.
type User struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
}

type file struct {
	Admins []User `yaml:"admins"`
}

// Store holds admin accounts loaded from path.
type Store struct {
	path  string
	cost  int
	mu    sync.RWMutex
	users map[string]string
}

// Load reads the credentials file. A missing file yields an empty store,
// which rejects every login until a password is set.
func Load(path string) (*Store, error) {
	s := &Store{path: path, cost: bcrypt.DefaultCost, users: make(map[string]string)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", path, err)
	}
	for _, u := range f.Admins {
		name := strings.TrimSpace(u.Username)
		if name == "" || u.PasswordHash == "" {
			continue
		}
		s.users[name] = u.PasswordHash
	}
	return s, nil
}

// WithCost overrides the bcrypt cost used by Set.
func (s *Store) WithCost(cost int) *Store {
	s.cost = cost
	return s
}

// Path returns the file the store was loaded from.
func (s *Store) Path() string {
	return s.path
}

// Users returns the configured usernames, sorted.
func (s *Store) Users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usersLocked()
}

// Verify checks a username/password pair.
func (s *Store) Verify(username, password string) error {
	s.mu.RLock()
	hash, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Set creates or replaces the password of username. Call Save to persist it.
func (s *Store) Set(username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username must not be empty")
	}
	if password == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	s.mu.Lock()
	s.users[username] = string(hash)
	s.mu.Unlock()
	return nil
}

// Remove deletes username. It reports whether the user existed.
func (s *Store) Remove(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return false
	}
	delete(s.users, username)
	return true
}

// Save writes the accounts back to the credentials file with 0600 permissions.
func (s *Store) Save() error {
	var f file
	s.mu.RLock()
	for _, name := range s.usersLocked() {
		f.Admins = append(f.Admins, User{Username: name, PasswordHash: s.users[name]})
	}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	return nil
}

func (s *Store) usersLocked() []string {
	names := make([]string, 0, len(s.users))
	for name := range s.users {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
