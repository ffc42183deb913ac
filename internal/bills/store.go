// Package bills keeps the history of calculated bills per account.
//
// Each account may be billed at most once per period, and a meter identifier
// belongs to at most one account. The log format is one line per account:
//
//	username:period|units|amount|meter,period|units|amount|meter,...
//
// where a bare period token is a record whose units and amount are unknown.
// Every mutation rewrites the whole log; a crash in the middle of a save can
// truncate it, which is accepted rather than recovered.
package bills

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zhaobenny/voltbill/internal/model"
	"github.com/zhaobenny/voltbill/internal/parser"
)

var (
	// ErrLoad wraps failures to read an existing billing log
	ErrLoad = errors.New("bills: load failed")
	// ErrSave wraps failures to persist the billing log
	ErrSave = errors.New("bills: save failed")
	// ErrInvalidMeter is returned for a meter the log cannot hold
	ErrInvalidMeter = errors.New("bills: invalid meter")
)

// meterReserved are the log delimiters, line breaks and path separators
const meterReserved = ",|:\r\n/\\"

// ValidMeter reports whether meter can be stored and used in a file name.
// The empty meter is valid and means no meter was given.
func ValidMeter(meter string) bool {
	return !strings.ContainsAny(meter, meterReserved)
}

// AddResult describes what AddRecord did
type AddResult int

const (
	// Inserted means the period had no record and one was added
	Inserted AddResult = iota
	// Upgraded means a record without detail was replaced by a detailed one
	Upgraded
	// Unchanged means a detailed record already existed; nothing was written
	Unchanged
	// MeterInUse means the meter belongs to another account; nothing was written
	MeterInUse
)

func (r AddResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Upgraded:
		return "upgraded"
	case Unchanged:
		return "unchanged"
	case MeterInUse:
		return "meter in use"
	default:
		return fmt.Sprintf("AddResult(%d)", int(r))
	}
}

// Written reports whether the call stored a record
func (r AddResult) Written() bool {
	return r == Inserted || r == Upgraded
}

// account holds one user's records keyed by period, in insertion order
type account struct {
	records map[string]model.BillRecord
	periods []string
}

func newAccount() *account {
	return &account{records: make(map[string]model.BillRecord)}
}

func (a *account) put(r model.BillRecord) {
	if _, ok := a.records[r.PeriodKey]; !ok {
		a.periods = append(a.periods, r.PeriodKey)
	}
	a.records[r.PeriodKey] = r
}

// Store is the billing record store. A single mutex covers every operation,
// including read-only scans across accounts.
type Store struct {
	path string
	log  logrus.FieldLogger

	mu       sync.Mutex
	accounts map[string]*account
	order    []string
	dirty    bool
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for load/save diagnostics
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// Open loads the billing log at path. A missing log is an empty store.
//
// The returned store is always usable: if the log exists but cannot be read,
// Open returns an empty store together with an error wrapping ErrLoad.
func Open(path string, opts ...Option) (*Store, error) {
	l := logrus.New()
	l.SetOutput(io.Discard)

	s := &Store{
		path:     path,
		log:      l,
		accounts: make(map[string]*account),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s, s.load()
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoad, s.path, err)
	}

	accts, skipped, err := parser.ReadAccounts(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLoad, s.path, err)
	}

	records := 0
	for _, a := range accts {
		acct := s.account(a.Username)
		for _, r := range a.Records {
			acct.put(r)
			records++
		}
	}

	s.log.WithFields(logrus.Fields{
		"path":     s.path,
		"accounts": len(s.accounts),
		"records":  records,
		"skipped":  skipped,
	}).Debug("loaded billing log")
	return nil
}

func (s *Store) save() error {
	accts := make([]parser.Account, 0, len(s.order))
	for _, username := range s.order {
		acct := s.accounts[username]
		line := parser.Account{Username: username}
		for _, p := range acct.periods {
			line.Records = append(line.Records, acct.records[p])
		}
		accts = append(accts, line)
	}

	var buf bytes.Buffer
	if err := parser.WriteAccounts(&buf, accts); err != nil {
		s.dirty = true
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	if err := os.WriteFile(s.path, buf.Bytes(), 0644); err != nil {
		s.dirty = true
		s.log.WithError(err).WithField("path", s.path).Warn("failed to save billing log")
		return fmt.Errorf("%w: %s: %w", ErrSave, s.path, err)
	}
	s.dirty = false
	return nil
}

// account returns the record set for username, creating it if needed
func (s *Store) account(username string) *account {
	acct, ok := s.accounts[username]
	if !ok {
		acct = newAccount()
		s.accounts[username] = acct
		s.order = append(s.order, username)
	}
	return acct
}

// HasRecord reports whether username already has a record for the period
func (s *Store) HasRecord(username string, year, month int) bool {
	key := model.PeriodKey(year, month)

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[username]
	if !ok {
		return false
	}
	_, ok = acct.records[key]
	return ok
}

// AddRecord stores a calculated bill for the period (month is zero-based).
//
// A period is written once: if a detailed record already exists the call is
// a silent no-op and returns Unchanged, even when the new values differ. A
// record without detail may be upgraded once. A meter owned by another
// account is refused with MeterInUse.
//
// units and amount must be non-negative. A meter rejected by ValidMeter
// returns ErrInvalidMeter without touching the store. Any other error means
// the record was stored in memory but could not be persisted.
func (s *Store) AddRecord(username string, year, month int, units int64, amount float64, meter string) (AddResult, error) {
	meter = strings.TrimSpace(meter)
	if !ValidMeter(meter) {
		return Unchanged, fmt.Errorf("%w: %q", ErrInvalidMeter, meter)
	}
	return s.add(username, model.BillRecord{
		PeriodKey: model.PeriodKey(year, month),
		Units:     &units,
		Amount:    &amount,
		Meter:     meter,
	})
}

// AddLegacyRecord marks the period as billed without any detail, the way
// records were kept before units and amounts were stored
func (s *Store) AddLegacyRecord(username string, year, month int) (AddResult, error) {
	return s.add(username, model.BillRecord{PeriodKey: model.PeriodKey(year, month)})
}

func (s *Store) add(username string, rec model.BillRecord) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger := s.log.WithFields(logrus.Fields{
		"username": username,
		"period":   rec.PeriodKey,
	})

	if rec.Meter != "" && s.meterOwnedByOther(rec.Meter, username) {
		logger.WithField("meter", rec.Meter).Info("meter belongs to another account")
		return MeterInUse, nil
	}

	result := Inserted
	if acct, ok := s.accounts[username]; ok {
		if existing, ok := acct.records[rec.PeriodKey]; ok {
			if existing.HasDetail() {
				return Unchanged, nil
			}
			result = Upgraded
		}
	}

	s.account(username).put(rec)
	logger.WithField("result", result.String()).Debug("recorded bill")

	if err := s.save(); err != nil {
		return result, err
	}
	return result, nil
}

// ListRecords returns the user's records sorted by period, oldest first
func (s *Store) ListRecords(username string) []model.BillRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[username]
	if !ok {
		return nil
	}

	out := make([]model.BillRecord, 0, len(acct.records))
	for _, r := range acct.records {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].PeriodKey < out[j].PeriodKey
	})
	return out
}

// MeterOwnedByOther reports whether any account other than username has a
// record carrying meter. Comparison ignores case.
func (s *Store) MeterOwnedByOther(meter, username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meterOwnedByOther(meter, username)
}

func (s *Store) meterOwnedByOther(meter, username string) bool {
	for owner, acct := range s.accounts {
		if owner == username {
			continue
		}
		if acct.hasMeter(meter) {
			return true
		}
	}
	return false
}

func (a *account) hasMeter(meter string) bool {
	for _, r := range a.records {
		if r.Meter != "" && strings.EqualFold(r.Meter, meter) {
			return true
		}
	}
	return false
}

// OwnerOfMeter returns the account holding meter, if any
func (s *Store) OwnerOfMeter(meter string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, username := range s.order {
		if s.accounts[username].hasMeter(meter) {
			return username, true
		}
	}
	return "", false
}

// RecordByMeterAndPeriod finds the record for meter in the given period
func (s *Store) RecordByMeterAndPeriod(meter, periodKey string) (model.BillRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, username := range s.order {
		r, ok := s.accounts[username].records[periodKey]
		if ok && r.Meter != "" && strings.EqualFold(r.Meter, meter) {
			return r.Clone(), true
		}
	}
	return model.BillRecord{}, false
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
