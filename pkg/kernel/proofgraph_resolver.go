package kernel

import (
	"encoding/json"
	"sync"

	"github.com/dreezy-6/adaad6/pkg/proofgraph"
)

// ProofGraphResolver adapts a proofgraph DAG into a Resolver. Admissibility
// nodes (AuthoritySource, Proposal, GateResult, CapabilityToken,
// CounterfactualSummary) are durably recorded as ATTESTATION entries in the
// graph for their Lamport-ordered audit trail, while resolution itself goes
// through a content-hash index: the Admissibility Kernel always resolves by
// the hash it recomputes over a node's own body (§4.D), which is unrelated
// to the graph's head-chained NodeHash (that hash also covers kind, parents,
// and Lamport sequence — see proofgraph.Node.ComputeNodeHash).
type ProofGraphResolver struct {
	mu     sync.RWMutex
	byHash map[string]Node
}

// NewProofGraphResolver returns an empty resolver index.
func NewProofGraphResolver() *ProofGraphResolver {
	return &ProofGraphResolver{byHash: make(map[string]Node)}
}

// Record appends node to the graph as a durable attestation and indexes it
// under its content hash for later resolution. hash must already be the
// node's canonical content hash (as produced by canonicalize.HashObject over
// the node's fields) — the resolver trusts the caller for the index key but
// IsAdmissible/RefusalModeOf independently recompute and verify it before
// ever trusting a resolved node.
func (r *ProofGraphResolver) Record(graph *proofgraph.Graph, kind proofgraph.NodeType, principal string, seq uint64, hash string, node Node) error {
	payload, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if graph != nil {
		if _, err := graph.Append(kind, payload, principal, seq); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[hash] = node
	return nil
}

// Resolver returns a Resolver backed by this index.
func (r *ProofGraphResolver) Resolver() Resolver {
	return func(hash string) (Node, bool) {
		r.mu.RLock()
		defer r.mu.RUnlock()
		n, ok := r.byHash[hash]
		return n, ok
	}
}
