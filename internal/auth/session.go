package auth

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

const usernameKey = "username"

// Sessions keeps CLI logins alive between invocations. The session token is
// handed back to the caller, who stores it in the config file.
type Sessions struct {
	mgr *scs.SessionManager
}

// NewSessions creates a session manager backed by the sessions table of a
// SQLite database. Expired rows are not swept in the background since the
// CLI process is short-lived; scs ignores them on load.
func NewSessions(db *sql.DB, lifetime time.Duration) *Sessions {
	mgr := scs.New()
	mgr.Store = sqlite3store.NewWithCleanupInterval(db, 0)
	mgr.Lifetime = lifetime
	return &Sessions{mgr: mgr}
}

// Start creates a session for username and returns its token
func (s *Sessions) Start(username string) (string, time.Time, error) {
	ctx, err := s.mgr.Load(context.Background(), "")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create session: %w", err)
	}
	s.mgr.Put(ctx, usernameKey, username)

	token, expiry, err := s.mgr.Commit(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to save session: %w", err)
	}
	return token, expiry, nil
}

// Username returns the user bound to token, or "" when the session is
// unknown or expired
func (s *Sessions) Username(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	ctx, err := s.mgr.Load(context.Background(), token)
	if err != nil {
		return "", fmt.Errorf("failed to load session: %w", err)
	}
	return s.mgr.GetString(ctx, usernameKey), nil
}

// End destroys the session behind token
func (s *Sessions) End(token string) error {
	if token == "" {
		return nil
	}
	ctx, err := s.mgr.Load(context.Background(), token)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if err := s.mgr.Destroy(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}
