// Package accounts stores account credentials in a flat username:value log.
//
// Values are either a legacy plaintext password or a salt|hash pair produced
// by auth.Hasher. The whole log is rewritten on every mutation; a crash in the
// middle of a save can truncate it, which is accepted rather than recovered.
package accounts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zhaobenny/voltbill/internal/auth"
	"github.com/zhaobenny/voltbill/internal/parser"
)

const hashSep = "|"

var (
	// ErrLoad wraps failures to read an existing credential log
	ErrLoad = errors.New("accounts: load failed")
	// ErrSave wraps failures to persist the credential log
	ErrSave = errors.New("accounts: save failed")
)

// Replicator receives a copy of every newly registered credential.
// It is best-effort: errors are logged and never fail a registration.
type Replicator interface {
	UpsertCredential(username, value string) error
}

// Store is the credential store
type Store struct {
	path        string
	hasher      auth.Hasher
	replicator  Replicator
	log         logrus.FieldLogger
	defaultUser string
	defaultPass string

	mu    sync.Mutex
	creds map[string]string
	order []string
	dirty bool
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for load/save diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// WithHasher overrides the password hasher
func WithHasher(h auth.Hasher) Option {
	return func(s *Store) { s.hasher = h }
}

// WithReplicator mirrors new registrations to a secondary backend
func WithReplicator(r Replicator) Option {
	return func(s *Store) { s.replicator = r }
}

// WithDefaultAccount sets the account seeded into an empty log
func WithDefaultAccount(username, password string) Option {
	return func(s *Store) {
		s.defaultUser = username
		s.defaultPass = password
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Open loads the credential log at path. When the log is missing or empty a
// single default account with a legacy plaintext password is seeded and
// written immediately.
//
// The returned store is always usable: if the log exists but cannot be read,
// Open returns an empty store together with an error wrapping ErrLoad.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:        path,
		hasher:      auth.DefaultHasher,
		log:         discardLogger(),
		defaultUser: "admin",
		defaultPass: "12345",
		creds:       make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return s, err
	}

	if len(s.creds) == 0 && s.defaultUser != "" {
		s.put(s.defaultUser, s.defaultPass)
		if err := s.save(); err != nil {
			return s, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoad, s.path, err)
	}

	creds, skipped, err := parser.ReadCredentials(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoad, s.path, err)
	}
	for _, c := range creds {
		s.put(c.Username, c.Value)
	}

	s.log.WithFields(logrus.Fields{
		"path":     s.path,
		"accounts": len(s.creds),
		"skipped":  skipped,
	}).Debug("loaded credential log")
	return nil
}

// save rewrites the whole log. On failure the in-memory map stays
// authoritative and the store is marked dirty for Close to retry.
func (s *Store) save() error {
	var buf bytes.Buffer
	if err := parser.WriteCredentials(&buf, s.snapshot()); err != nil {
		s.dirty = true
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0600); err != nil {
		s.dirty = true
		s.log.WithError(err).WithField("path", s.path).Warn("failed to save credential log")
		return fmt.Errorf("%w: %s: %w", ErrSave, s.path, err)
	}
	s.dirty = false
	s.log.WithFields(logrus.Fields{"path": s.path, "accounts": len(s.creds)}).Debug("saved credential log")
	return nil
}

func (s *Store) put(username, value string) {
	if _, ok := s.creds[username]; !ok {
		s.order = append(s.order, username)
	}
	s.creds[username] = value
}

func (s *Store) snapshot() []parser.Credential {
	out := make([]parser.Credential, 0, len(s.order))
	for _, u := range s.order {
		out = append(out, parser.Credential{Username: u, Value: s.creds[u]})
	}
	return out
}

// Exists reports whether username is registered
func (s *Store) Exists(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.creds[username]
	return ok
}

// Register stores a salted hash for a new user. It returns false without
// writing anything if the username is taken. A non-nil error with true means
// the account exists in memory but could not be persisted.
func (s *Store) Register(username, password string) (bool, error) {
	if s.Exists(username) {
		return false, nil
	}

	// Key derivation runs outside the lock
	salt, err := auth.GenerateSalt()
	if err != nil {
		return false, err
	}
	hash, err := s.hasher.Hash(password, salt)
	if err != nil {
		return false, err
	}
	value := salt + hashSep + hash

	s.mu.Lock()
	if _, taken := s.creds[username]; taken {
		s.mu.Unlock()
		return false, nil
	}
	s.put(username, value)
	saveErr := s.save()
	s.mu.Unlock()

	s.replicate(username, value)
	return true, saveErr
}

func (s *Store) replicate(username, value string) {
	if s.replicator == nil {
		return
	}
	if err := s.replicator.UpsertCredential(username, value); err != nil {
		s.log.WithError(err).WithField("username", username).Warn("credential mirror write failed")
	}
}

// Authenticate checks password against the stored credential. salt|hash
// values are verified with the hasher; anything else is a legacy plaintext
// password compared byte for byte.
func (s *Store) Authenticate(username, password string) bool {
	s.mu.Lock()
	stored, ok := s.creds[username]
	s.mu.Unlock()
	if !ok {
		return false
	}

	if sep := strings.Index(stored, hashSep); sep > 0 {
		return s.hasher.Verify(password, stored[:sep], stored[sep+1:])
	}
	return stored == password
}

// Entries returns every credential in log order
func (s *Store) Entries() []parser.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Close flushes the log if an earlier save failed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	return s.save()
}

// IsHashed reports whether a stored credential value is in salt|hash form
func IsHashed(value string) bool {
	return strings.Index(value, hashSep) > 0
}
