// Package crypto supplies the HMAC-SHA256 signer/verifier and pluggable key
// provider behind the config signature (the non-repudiation mechanism named
// in the kernel's configuration contract).
package crypto

import (
	"os"
	"sort"
	"sync"
)

// KeyProvider resolves the HMAC key used to verify a config signature. Key
// returns ok=false when no key is available, which the caller must treat as
// a freeze condition rather than a zero-value key.
type KeyProvider interface {
	Key() (key []byte, ok bool)
}

// EnvKeyProvider reads the signing key from a single environment variable.
// It is the dev-mode provider only: production callers must supply a
// KeyProvider backed by a real secret store (see the kms package).
type EnvKeyProvider struct {
	EnvVar string
	Lookup func(string) (string, bool)
}

// NewEnvKeyProvider builds an EnvKeyProvider reading from the process
// environment.
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	return &EnvKeyProvider{EnvVar: envVar, Lookup: os.LookupEnv}
}

func (p *EnvKeyProvider) Key() ([]byte, bool) {
	lookup := p.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, ok := lookup(p.EnvVar)
	if !ok || v == "" {
		return nil, false
	}
	return []byte(v), true
}

// StaticKeyProvider returns a fixed key, chiefly useful for tests and for
// wrapping a key already retrieved from a KMS.
type StaticKeyProvider struct {
	KeyBytes []byte
}

func NewStaticKeyProvider(key []byte) *StaticKeyProvider {
	return &StaticKeyProvider{KeyBytes: key}
}

func (p *StaticKeyProvider) Key() ([]byte, bool) {
	if len(p.KeyBytes) == 0 {
		return nil, false
	}
	return p.KeyBytes, true
}

// FallbackKeyProvider always reports no key available. Production callers
// that end up here (because no real provider was wired) must force a
// freeze; the type exists so that code path is explicit rather than an
// EnvKeyProvider silently returning empty.
type FallbackKeyProvider struct{}

func (FallbackKeyProvider) Key() ([]byte, bool) { return nil, false }

// MultiKeyProvider holds several named keys and resolves deterministically
// to the lexicographically last key id — the same deterministic-selection
// idiom used for multi-key rotation elsewhere in this codebase, so that
// key-provider behavior never depends on map iteration order.
type MultiKeyProvider struct {
	mu   sync.RWMutex
	keys map[string][]byte
}

func NewMultiKeyProvider() *MultiKeyProvider {
	return &MultiKeyProvider{keys: make(map[string][]byte)}
}

func (m *MultiKeyProvider) Add(id string, key []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[id] = key
}

func (m *MultiKeyProvider) Key() ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.keys) == 0 {
		return nil, false
	}
	ids := make([]string, 0, len(m.keys))
	for id := range m.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	selected := ids[len(ids)-1]
	return m.keys[selected], true
}
