package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	home := t.TempDir()
	l := New(Config{
		Home:                home,
		LedgerDir:           ".adaad/ledger",
		LedgerFilename:      "events.jsonl",
		LedgerEnabled:       true,
		LedgerSchemaVersion: "1",
	})
	counter := 0
	l.WithClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })
	l.WithEventIDSource(func() string {
		counter++
		return filepath.Join("evt", itoa(counter))
	})
	return l
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestEnsureCreatesFile(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.Ensure())

	events, err := l.ReadEvents(0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAppendFirstEventHasNilPrevHash(t *testing.T) {
	l := newTestLedger(t)
	e, err := l.Append("alpha", "kernel", map[string]interface{}{"value": 1})
	require.NoError(t, err)
	assert.Nil(t, e.PrevHash)
	assert.Len(t, e.Hash, 64)
}

func TestAppendChainsPrevHash(t *testing.T) {
	l := newTestLedger(t)
	first, err := l.Append("alpha", "kernel", map[string]interface{}{"value": 1})
	require.NoError(t, err)
	second, err := l.Append("beta", "kernel", map[string]interface{}{"value": 2})
	require.NoError(t, err)

	require.NotNil(t, second.PrevHash)
	assert.Equal(t, first.Hash, *second.PrevHash)
}

func TestVerifyChainTrueForUntamperedEvents(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append("alpha", "kernel", map[string]interface{}{"value": 1})
	require.NoError(t, err)
	_, err = l.Append("beta", "kernel", map[string]interface{}{"value": 2})
	require.NoError(t, err)

	events, err := l.ReadEvents(0)
	require.NoError(t, err)
	assert.True(t, VerifyChain(events))
}

func TestVerifyChainFalseWhenPayloadTampered(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append("alpha", "kernel", map[string]interface{}{"value": 1})
	require.NoError(t, err)
	_, err = l.Append("beta", "kernel", map[string]interface{}{"value": 2})
	require.NoError(t, err)

	events, err := l.ReadEvents(0)
	require.NoError(t, err)
	events[1].Payload["value"] = 999.0

	assert.False(t, VerifyChain(events))
}

func TestVerifyChainFalseWhenEventsSwapped(t *testing.T) {
	l := newTestLedger(t)
	_, err := l.Append("alpha", "kernel", map[string]interface{}{"value": 1})
	require.NoError(t, err)
	_, err = l.Append("beta", "kernel", map[string]interface{}{"value": 2})
	require.NoError(t, err)

	events, err := l.ReadEvents(0)
	require.NoError(t, err)
	events[0], events[1] = events[1], events[0]

	assert.False(t, VerifyChain(events))
}

func TestReadOnlyLedgerRejectsAppend(t *testing.T) {
	home := t.TempDir()
	l := New(Config{
		Home:                home,
		LedgerDir:           ".adaad/ledger",
		LedgerFilename:      "events.jsonl",
		LedgerEnabled:       true,
		LedgerReadonly:      true,
		LedgerSchemaVersion: "1",
	})
	_, err := l.Append("alpha", "kernel", nil)
	assert.ErrorIs(t, err, ErrReadonly)
}

func TestReadEventsOnMissingFileReturnsEmpty(t *testing.T) {
	l := newTestLedger(t)
	events, err := l.ReadEvents(0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadEventsRespectsLimit(t *testing.T) {
	l := newTestLedger(t)
	for i := 0; i < 5; i++ {
		_, err := l.Append("tick", "kernel", map[string]interface{}{"i": i})
		require.NoError(t, err)
	}

	events, err := l.ReadEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, float64(3), events[0].Payload["i"])
	assert.Equal(t, float64(4), events[1].Payload["i"])
}

func TestEnsureRejectsPathThatIsADirectory(t *testing.T) {
	home := t.TempDir()
	l := New(Config{
		Home:                home,
		LedgerDir:           ".",
		LedgerFilename:      "events.jsonl",
		LedgerEnabled:       true,
		LedgerSchemaVersion: "1",
	})
	require.NoError(t, l.Ensure())

	// Replace the file with a directory at the same path to force the
	// is-a-directory failure path on a second Ensure.
	path := filepath.Join(home, "events.jsonl")
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.Mkdir(path, 0o755))
	err := l.Ensure()
	assert.Error(t, err)
}
