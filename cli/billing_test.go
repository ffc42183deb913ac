package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaobenny/voltbill/internal/bills"
)

func TestParsePeriod(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p, err := parsePeriod(2025, "3", now)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", p.key())

	p, err = parsePeriod(2000, "december", now)
	require.NoError(t, err)
	assert.Equal(t, "2000-12", p.key())

	for _, tc := range []struct {
		year  int
		month string
	}{
		{1999, "1"},
		{2026, "1"},
		{2025, "13"},
		{2025, ""},
	} {
		_, err := parsePeriod(tc.year, tc.month, now)
		assert.Error(t, err, "%d/%s", tc.year, tc.month)
	}
}

func TestCheckBillable(t *testing.T) {
	store, err := bills.Open(filepath.Join(t.TempDir(), "user_bills.dat"))
	require.NoError(t, err)

	_, err = store.AddRecord("alice", 2025, 0, 80, 550, "M1")
	require.NoError(t, err)
	_, err = store.AddLegacyRecord("alice", 2025, 1)
	require.NoError(t, err)

	// Already billed with detail
	err = checkBillable(store, "alice", period{2025, 0}, "M1")
	assert.ErrorContains(t, err, "January 2025")

	// A legacy record may still be completed
	assert.NoError(t, checkBillable(store, "alice", period{2025, 1}, "M1"))

	// Someone else's meter, matched without regard to case
	err = checkBillable(store, "bob", period{2025, 0}, "m1")
	assert.ErrorContains(t, err, "alice")

	assert.NoError(t, checkBillable(store, "bob", period{2025, 0}, "M2"))
}

func TestValidateMeter(t *testing.T) {
	assert.NoError(t, validateMeter("MTR-1001"))
	assert.ErrorContains(t, validateMeter(""), "required")

	for _, meter := range []string{"M,1", "X|Y", "a:b", "M\n1", "M\r1", "../x", `a\b`} {
		assert.Error(t, validateMeter(meter), meter)
	}
}

func TestNewLogger_FallsBackToWarn(t *testing.T) {
	assert.Equal(t, "warning", newLogger("chatty").GetLevel().String())
	assert.Equal(t, "debug", newLogger("debug").GetLevel().String())
}
