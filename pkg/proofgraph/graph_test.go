package proofgraph

import (
	"testing"
)

func TestGraph_AppendAndValidate(t *testing.T) {
	g := NewGraph()

	n1, err := g.Append(NodeTypeIntent, []byte(`{"intent":"create_file"}`), "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n1.Lamport != 1 {
		t.Errorf("lamport = %d, want 1", n1.Lamport)
	}

	n2, err := g.Append(NodeTypeAttestation, []byte(`{"decision":"PASS"}`), "", 2)
	if err != nil {
		t.Fatal(err)
	}
	if n2.Lamport != 2 {
		t.Errorf("lamport = %d, want 2", n2.Lamport)
	}
	// n2 should have n1 as parent
	if len(n2.Parents) != 1 || n2.Parents[0] != n1.NodeHash {
		t.Errorf("n2 parents = %v, want [%s]", n2.Parents, n1.NodeHash)
	}

	n3, err := g.Append(NodeTypeEffect, []byte(`{"effect":"file_created"}`), "", 3)
	if err != nil {
		t.Fatal(err)
	}

	// Validate full chain
	if err := g.ValidateChain(n3.NodeHash); err != nil {
		t.Fatalf("chain validation failed: %v", err)
	}

	if g.Len() != 3 {
		t.Errorf("graph len = %d, want 3", g.Len())
	}
}

func TestGraph_LamportMonotonicity(t *testing.T) {
	g := NewGraph()

	var prevClock uint64
	for i := 0; i < 100; i++ {
		n, err := g.Append(NodeTypeEffect, []byte(`{}`), "", uint64(i+1))
		if err != nil {
			t.Fatal(err)
		}
		if n.Lamport <= prevClock {
			t.Fatalf("lamport not monotonic: %d <= %d at step %d", n.Lamport, prevClock, i)
		}
		prevClock = n.Lamport
	}
}

func TestNode_HashIntegrity(t *testing.T) {
	n := NewNode(NodeTypeIntent, nil, []byte(`test`), 1, "", 1)
	if err := n.Validate(); err != nil {
		t.Fatalf("fresh node should validate: %v", err)
	}

	// Tamper with node hash
	n.NodeHash = "tampered"
	if err := n.Validate(); err == nil {
		t.Fatal("tampered node should fail validation")
	}
}

func TestGraph_TrustEvent(t *testing.T) {
	g := NewGraph()

	payload := []byte(`{"event":"KEY_ROTATED","key_id":"k-1","public_key":"abc123"}`)
	n, err := g.Append(NodeTypeTrustEvent, payload, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n.Kind != NodeTypeTrustEvent {
		t.Errorf("type = %s, want TRUST_EVENT", n.Kind)
	}
}
