package accounts

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaobenny/voltbill/internal/auth"
)

var testHasher = auth.Hasher{Iterations: 1000}

type mockReplicator struct {
	mu    sync.Mutex
	calls map[string]string
	err   error
}

func (m *mockReplicator) UpsertCredential(username, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]string)
	}
	m.calls[username] = value
	return m.err
}

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.dat")
	s, err := Open(path, append([]Option{WithHasher(testHasher)}, opts...)...)
	require.NoError(t, err)
	return s, path
}

func TestOpen_SeedsDefaultAccount(t *testing.T) {
	s, path := openTestStore(t)

	assert.True(t, s.Exists("admin"))
	assert.True(t, s.Authenticate("admin", "12345"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "admin:12345\n", string(data))
}

func TestOpen_CustomDefaultAccount(t *testing.T) {
	s, _ := openTestStore(t, WithDefaultAccount("root", "toor"))
	assert.True(t, s.Authenticate("root", "toor"))
	assert.False(t, s.Exists("admin"))
}

func TestOpen_ExistingLogIsNotSeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.dat")
	require.NoError(t, os.WriteFile(path, []byte("bob:hunter2\n"), 0600))

	s, err := Open(path, WithHasher(testHasher))
	require.NoError(t, err)
	assert.False(t, s.Exists("admin"))
	assert.True(t, s.Authenticate("bob", "hunter2"))
}

func TestOpen_UnreadableLogYieldsEmptyStore(t *testing.T) {
	// A directory in place of the log cannot be read as a file
	path := t.TempDir()

	s, err := Open(path, WithHasher(testHasher))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoad))
	require.NotNil(t, s)
	assert.False(t, s.Exists("admin"))
	assert.Empty(t, s.Entries())
}

func TestRegister(t *testing.T) {
	s, path := openTestStore(t)

	ok, err := s.Register("alice", "wonderland")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("alice"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "admin:12345", lines[0])

	value := strings.TrimPrefix(lines[1], "alice:")
	assert.True(t, IsHashed(value))
	assert.NotContains(t, value, "wonderland")
}

func TestRegister_DuplicateDoesNotMutate(t *testing.T) {
	s, path := openTestStore(t)

	ok, err := s.Register("alice", "first")
	require.NoError(t, err)
	require.True(t, ok)

	before, err := os.ReadFile(path)
	require.NoError(t, err)

	ok, err = s.Register("alice", "second")
	require.NoError(t, err)
	assert.False(t, ok)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.True(t, s.Authenticate("alice", "first"))
	assert.False(t, s.Authenticate("alice", "second"))
}

func TestRegister_UsernamesAreCaseSensitive(t *testing.T) {
	s, _ := openTestStore(t)

	ok, err := s.Register("Admin", "other")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Authenticate("Admin", "other"))
	assert.True(t, s.Authenticate("admin", "12345"))
}

func TestAuthenticate_Hashed(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := s.Register("alice", "wonderland")
	require.NoError(t, err)

	assert.True(t, s.Authenticate("alice", "wonderland"))
	for _, variant := range []string{"wonderlanD", "wonderlan", "wonderland!", "Wonderland", "xonderland"} {
		assert.False(t, s.Authenticate("alice", variant), variant)
	}
	assert.False(t, s.Authenticate("nobody", "wonderland"))
}

func TestAuthenticate_Legacy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.dat")
	require.NoError(t, os.WriteFile(path, []byte("carol:plain|text\ndave:|leading\n"), 0600))

	s, err := Open(path, WithHasher(testHasher))
	require.NoError(t, err)

	// A separator at index 0 is not a salt|hash pair
	assert.True(t, s.Authenticate("dave", "|leading"))
	// carol's value parses as salt|hash and "plain" is not valid base64 of a salt
	assert.False(t, s.Authenticate("carol", "plain|text"))
}

func TestRegister_PersistsAcrossReopen(t *testing.T) {
	s, path := openTestStore(t)
	_, err := s.Register("alice", "wonderland")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, WithHasher(testHasher))
	require.NoError(t, err)
	assert.True(t, reopened.Authenticate("alice", "wonderland"))
	assert.True(t, reopened.Authenticate("admin", "12345"))
	assert.Equal(t, s.Entries(), reopened.Entries())
}

func TestRegister_ReplicatorFailureIsIgnored(t *testing.T) {
	repl := &mockReplicator{err: errors.New("connection refused")}
	s, _ := openTestStore(t, WithReplicator(repl))

	ok, err := s.Register("alice", "wonderland")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Authenticate("alice", "wonderland"))

	require.Contains(t, repl.calls, "alice")
	assert.True(t, IsHashed(repl.calls["alice"]))
}

func TestRegister_DuplicateSkipsReplicator(t *testing.T) {
	repl := &mockReplicator{}
	s, _ := openTestStore(t, WithReplicator(repl))

	ok, err := s.Register("admin", "whatever")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, repl.calls)
}

func TestRegister_SaveFailureKeepsMemoryState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.dat")
	s, err := Open(path, WithHasher(testHasher))
	require.NoError(t, err)

	// Replace the log with a directory so the rewrite fails
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0700))

	ok, err := s.Register("alice", "wonderland")
	assert.True(t, ok)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSave))
	assert.True(t, s.Authenticate("alice", "wonderland"))

	// Once the path is writable again Close flushes the pending state
	require.NoError(t, os.Remove(path))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "alice:")
}

func TestStore_ConcurrentRegister(t *testing.T) {
	s, _ := openTestStore(t)

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Register("racer", "pw")
			assert.NoError(t, err)
			results[i] = ok
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Len(t, s.Entries(), 2)
}
