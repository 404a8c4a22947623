// Package ledger implements the Provenance Ledger: a single newline-
// delimited, hash-chained JSON file recording every kernel event. Entries
// are append-only; the file is the sole mutable persistent resource inside
// the kernel.
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
	"github.com/google/uuid"
)

// Event is a single ledger record, in the exact field order external
// consumers depend on for byte-level canonicality.
type Event struct {
	SchemaVersion string                 `json:"schema_version"`
	EventID       string                 `json:"event_id"`
	TS            string                 `json:"ts"`
	Actor         string                 `json:"actor"`
	Type          string                 `json:"type"`
	Payload       map[string]interface{} `json:"payload"`
	PrevHash      *string                `json:"prev_hash"`
	Hash          string                 `json:"hash"`
}

// ErrReadonly is returned by Append when the ledger is in read-only mode.
var ErrReadonly = fmt.Errorf("LEDGER_READONLY")

// ErrDisabled is returned when an operation requires the ledger to be
// enabled and it is not.
var ErrDisabled = fmt.Errorf("ledger is disabled")

// Ledger is a file-backed, hash-chained append-only event log. At most one
// appender may be in flight; callers needing multi-process safety must
// serialize externally (e.g. a filesystem lock spanning read-last-line and
// write).
type Ledger struct {
	mu            sync.Mutex
	path          string
	enabled       bool
	readonly      bool
	schemaVersion string
	clock         func() time.Time
	newEventID    func() string
}

// Config is the subset of kernel configuration the ledger needs to locate
// and gate itself; callers typically derive this from config.Config.
type Config struct {
	Home                string
	LedgerDir           string
	LedgerFilename      string
	LedgerEnabled       bool
	LedgerReadonly      bool
	LedgerSchemaVersion string
}

// New builds a Ledger rooted at home/ledgerDir/ledgerFilename.
func New(cfg Config) *Ledger {
	return &Ledger{
		path:          filepath.Join(cfg.Home, cfg.LedgerDir, cfg.LedgerFilename),
		enabled:       cfg.LedgerEnabled,
		readonly:      cfg.LedgerReadonly,
		schemaVersion: cfg.LedgerSchemaVersion,
		clock:         time.Now,
		newEventID:    func() string { return uuid.New().String() },
	}
}

// WithClock overrides the ledger's timestamp source, for deterministic
// tests.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// WithEventIDSource overrides event_id generation, for deterministic tests.
func (l *Ledger) WithEventIDSource(src func() string) *Ledger {
	l.newEventID = src
	return l
}

// Path returns the ledger's backing file path.
func (l *Ledger) Path() string { return l.path }

// Enabled reports whether the ledger is enabled.
func (l *Ledger) Enabled() bool { return l.enabled }

// Readonly reports whether the ledger currently rejects appends.
func (l *Ledger) Readonly() bool { return l.readonly }

// Ensure creates the ledger's parent directories and the backing file if
// absent. It fails if the path already exists but is a directory.
func (l *Ledger) Ensure() error {
	if !l.enabled {
		return ErrDisabled
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("ledger: create parent dirs: %w", err)
	}
	info, err := os.Stat(l.path)
	if err == nil {
		if info.IsDir() {
			return fmt.Errorf("ledger: path %s is a directory, expected a file", l.path)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("ledger: stat: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: create: %w", err)
	}
	return f.Close()
}

// lastHash returns the hash field of the last non-blank line in the ledger
// file, or nil if the file is absent or empty.
func (l *Ledger) lastHash() (*string, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	defer f.Close()

	var lastLine string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) != "" {
			lastLine = line
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}
	if lastLine == "" {
		return nil, nil
	}

	var last Event
	if err := json.Unmarshal([]byte(lastLine), &last); err != nil {
		return nil, fmt.Errorf("ledger: corrupt last event: %w", err)
	}
	h := last.Hash
	return &h, nil
}

// Append computes prev_hash from the current last event, builds and hashes
// the new event, and writes it to the file. Returns the written Event.
func (l *Ledger) Append(eventType, actor string, payload map[string]interface{}) (*Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.readonly {
		return nil, ErrReadonly
	}
	if err := l.Ensure(); err != nil {
		return nil, err
	}

	prevHash, err := l.lastHash()
	if err != nil {
		return nil, err
	}

	if payload == nil {
		payload = map[string]interface{}{}
	}

	withoutHash := map[string]interface{}{
		"schema_version": l.schemaVersion,
		"event_id":       l.newEventID(),
		"ts":             l.clock().UTC().Format("2006-01-02T15:04:05Z"),
		"actor":          actor,
		"type":           eventType,
		"payload":        payload,
		"prev_hash":      prevHashValue(prevHash),
	}

	hash, err := canonicalize.HashObject(withoutHash)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash event: %w", err)
	}

	event := &Event{
		SchemaVersion: l.schemaVersion,
		EventID:       withoutHash["event_id"].(string),
		TS:            withoutHash["ts"].(string),
		Actor:         actor,
		Type:          eventType,
		Payload:       payload,
		PrevHash:      prevHash,
		Hash:          hash,
	}

	full := withoutHash
	full["hash"] = hash
	line, err := canonicalize.Canonical(full)
	if err != nil {
		return nil, fmt.Errorf("ledger: canonicalize event: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("ledger: open for append: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("ledger: write: %w", err)
	}

	return event, nil
}

func prevHashValue(prevHash *string) interface{} {
	if prevHash == nil {
		return nil
	}
	return *prevHash
}

// ReadEvents parses every non-blank line of the ledger file, optionally
// retaining only the last n (n<=0 means all). A missing file is not an
// error; it returns an empty slice.
func (l *Ledger) ReadEvents(limit int) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Event{}, nil
		}
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("ledger: corrupt line: %w", err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan: %w", err)
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// VerifyChain walks events in order, recomputing each hash from the event
// minus its hash field and confirming prev_hash chains correctly.
func VerifyChain(events []Event) bool {
	var previous *string
	for i, e := range events {
		body := map[string]interface{}{
			"schema_version": e.SchemaVersion,
			"event_id":       e.EventID,
			"ts":             e.TS,
			"actor":          e.Actor,
			"type":           e.Type,
			"payload":        e.Payload,
			"prev_hash":      prevHashValue(e.PrevHash),
		}
		expected, err := canonicalize.HashObject(body)
		if err != nil || expected != e.Hash {
			return false
		}

		if i == 0 {
			if e.PrevHash != nil {
				return false
			}
		} else {
			if e.PrevHash == nil || previous == nil || *e.PrevHash != *previous {
				return false
			}
		}
		h := e.Hash
		previous = &h
	}
	return true
}
