package database

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

// Mirror copies newly registered credentials to a relational users table.
// It implements accounts.Replicator.
//
// The connection is opened and migrated on first use, so an unreachable
// database only costs the registrations that try to reach it.
type Mirror struct {
	driver string
	dsn    string
	log    logrus.FieldLogger

	mu sync.Mutex
	db *DB
}

// NewMirror returns a mirror for the given driver and DSN. log may be nil.
func NewMirror(driver, dsn string, log logrus.FieldLogger) *Mirror {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Mirror{driver: driver, dsn: dsn, log: log}
}

// newMirrorFromDB returns a mirror over an already open connection
func newMirrorFromDB(db *DB, log logrus.FieldLogger) *Mirror {
	m := NewMirror(db.driver, "", log)
	m.db = db
	return m
}

func (m *Mirror) conn() (*DB, error) {
	if m.db != nil {
		return m.db, nil
	}
	db, err := Open(m.driver, m.dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	m.db = db
	return db, nil
}

// UpsertCredential writes the credential to the mirror
func (m *Mirror) UpsertCredential(username, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	logger := m.log.WithFields(logrus.Fields{
		"username": username,
		"driver":   m.driver,
	})

	db, err := m.conn()
	if err != nil {
		logger.WithError(err).Debug("mirror unavailable")
		return err
	}
	if err := db.UpsertCredential(username, value); err != nil {
		return err
	}
	logger.Debug("mirrored credential")
	return nil
}

// Close closes the underlying connection if one was opened
func (m *Mirror) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}
