// Package evidence provides the content-addressed Evidence Store and the
// Cryovant Lineage Gate: the kernel's check that a proposal's claimed
// lineage resolves to a hash-verified node before execution proceeds.
package evidence

import (
	"strings"
	"sync"

	"github.com/dreezy-6/adaad6/pkg/canonicalize"
)

// Node is a lineage record, validated against its own content hash the
// same way every other DAG node in the kernel is.
type Node = map[string]interface{}

// Store is a concurrency-safe, in-memory map from content hash to lineage
// node. It refuses to return nodes whose stored hash disagrees with a
// fresh recomputation — the same tamper check the kernel applies to every
// other resolver.
type Store struct {
	mu       sync.RWMutex
	lineages map[string]Node
}

// NewStore creates an empty evidence store.
func NewStore() *Store {
	return &Store{lineages: make(map[string]Node)}
}

// AddLineage computes the content hash of payload (ignoring any existing
// hash field), stores it, and returns the hash.
func (s *Store) AddLineage(payload Node) (string, error) {
	hash, err := canonicalize.HashObject(withoutHash(payload))
	if err != nil {
		return "", err
	}
	record := withoutHash(payload)
	record["hash"] = hash

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineages[hash] = record
	return hash, nil
}

// ResolveLineage returns the node for lineageHash, or false if absent or
// if it fails its own hash check.
func (s *Store) ResolveLineage(lineageHash string) (Node, bool) {
	s.mu.RLock()
	node, ok := s.lineages[lineageHash]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	expected, err := canonicalize.HashObject(withoutHash(node))
	if err != nil || expected != lineageHash || node["hash"] != expected {
		return nil, false
	}
	return copyNode(node), true
}

func withoutHash(node Node) Node {
	out := make(Node, len(node))
	for k, v := range node {
		if k != "hash" {
			out[k] = v
		}
	}
	return out
}

func copyNode(node Node) Node {
	out := make(Node, len(node))
	for k, v := range node {
		out[k] = v
	}
	return out
}

// LineageGateResult is the outcome of the Cryovant Lineage Gate.
type LineageGateResult struct {
	OK          bool
	Reason      string
	LineageHash string
}

const (
	ReasonLineageMissing        = "cryovant_lineage_missing"
	ReasonEvidenceStoreMissing  = "cryovant_evidence_store_missing"
	ReasonLineageUnknown        = "cryovant_lineage_unknown"
	ReasonLineageHashMismatch   = "cryovant_lineage_hash_mismatch"
)

// CryovantLineageGate checks that lineageHash resolves to a hash-verified
// node in store. A missing hash, a nil store, an unresolvable hash, or a
// tamper-detected node all fail closed with a specific reason string —
// never a generic denial — so the caller's ledger event records exactly
// which condition tripped the gate.
func CryovantLineageGate(store *Store, lineageHash string) LineageGateResult {
	if strings.TrimSpace(lineageHash) == "" {
		return LineageGateResult{OK: false, Reason: ReasonLineageMissing}
	}
	if store == nil {
		return LineageGateResult{OK: false, Reason: ReasonEvidenceStoreMissing, LineageHash: lineageHash}
	}
	lineage, ok := store.ResolveLineage(lineageHash)
	if !ok {
		return LineageGateResult{OK: false, Reason: ReasonLineageUnknown, LineageHash: lineageHash}
	}
	expected, err := canonicalize.HashObject(withoutHash(lineage))
	if err != nil || expected != lineageHash {
		return LineageGateResult{OK: false, Reason: ReasonLineageHashMismatch, LineageHash: lineageHash}
	}
	return LineageGateResult{OK: true, LineageHash: lineageHash}
}
