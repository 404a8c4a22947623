package mutation

// MutationReport is the immutable outcome of a mutate_code attempt: the
// candidate mutated source, whether it parsed/sandboxed/allowlisted cleanly,
// and whether it qualifies for auto-promotion.
type MutationReport struct {
	MutatedSrc   string
	Score        float64
	ASTOk        bool
	SandboxOk    bool
	Timeout      bool
	AllowlistOk  bool
	Skipped      bool
	Reason       *string
	LedgerEvent  map[string]interface{}
	MutationKind *string
	AutoPromote  bool
	DoctorGateOk bool
	ResourceCaps map[string]interface{}
}

// ToMap renders the report the way it is returned from the action's Run
// stage and embedded in the mutation_attempt ledger payload.
func (r MutationReport) ToMap() map[string]interface{} {
	var reason, kind, ledgerEvent, caps interface{}
	if r.Reason != nil {
		reason = *r.Reason
	}
	if r.MutationKind != nil {
		kind = *r.MutationKind
	}
	if r.LedgerEvent != nil {
		ledgerEvent = r.LedgerEvent
	}
	if r.ResourceCaps != nil {
		caps = r.ResourceCaps
	}
	return map[string]interface{}{
		"mutated_src":    r.MutatedSrc,
		"score":          r.Score,
		"ast_ok":         r.ASTOk,
		"sandbox_ok":     r.SandboxOk,
		"timeout":        r.Timeout,
		"allowlist_ok":   r.AllowlistOk,
		"skipped":        r.Skipped,
		"reason":         reason,
		"ledger_event":   ledgerEvent,
		"mutation_kind":  kind,
		"auto_promote":   r.AutoPromote,
		"doctor_gate_ok": r.DoctorGateOk,
		"resource_caps":  caps,
	}
}
