package capabilities

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

var actionSpecIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ActionSpec is the immutable, planner-produced unit of work the Executor
// consumes: which action to run, its params, and the preconditions/effects
// that gate and classify it.
type ActionSpec struct {
	ID            string
	Action        string
	Params        map[string]interface{}
	Preconditions []string
	Effects       []string
	// CostHint is nil when unknown.
	CostHint *float64
}

// Validate enforces the field-level invariants every ActionSpec must carry
// before it reaches the executor: a non-empty identifier matching
// [A-Za-z0-9._-]+, a non-empty action name, and (if present) a finite cost
// hint.
func (s ActionSpec) Validate() error {
	trimmedID := strings.TrimSpace(s.ID)
	if trimmedID == "" {
		return fmt.Errorf("capabilities: action spec id cannot be empty")
	}
	if !actionSpecIDPattern.MatchString(trimmedID) {
		return fmt.Errorf("capabilities: action spec id must match %s", actionSpecIDPattern.String())
	}
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("capabilities: action spec action cannot be empty")
	}
	for i, p := range s.Preconditions {
		if strings.TrimSpace(p) == "" {
			return fmt.Errorf("capabilities: preconditions[%d] cannot be empty", i)
		}
	}
	for i, e := range s.Effects {
		if strings.TrimSpace(e) == "" {
			return fmt.Errorf("capabilities: effects[%d] cannot be empty", i)
		}
	}
	if s.CostHint != nil {
		v := *s.CostHint
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("capabilities: cost_hint must be finite")
		}
	}
	return nil
}

// HasEffect reports whether name is present among the spec's effects.
func (s ActionSpec) HasEffect(name string) bool {
	for _, e := range s.Effects {
		if e == name {
			return true
		}
	}
	return false
}

// mutationClassActions are the action names the Three-Stage Executor
// treats as mutation-class regardless of their declared effects.
var mutationClassActions = map[string]bool{
	"mutate_code":         true,
	"mutate":              true,
	"evolve":              true,
	"autopromote":         true,
	"autonomous_mutation": true,
}

// mutationClassEffects are effect names whose mere presence marks a step
// mutation-class.
var mutationClassEffects = map[string]bool{
	"mutation":  true,
	"evolution": true,
}

// IsMutationClass reports whether this step is subject to the mutation
// lineage gate: its action name is one of the fixed mutation actions, or
// one of its declared effects names a mutation-class effect.
func (s ActionSpec) IsMutationClass() bool {
	if mutationClassActions[s.Action] {
		return true
	}
	for _, e := range s.Effects {
		if mutationClassEffects[e] {
			return true
		}
	}
	return false
}

// ToMap renders the spec the way it appears embedded in ledger payloads.
func (s ActionSpec) ToMap() map[string]interface{} {
	params := make(map[string]interface{}, len(s.Params))
	for k, v := range s.Params {
		params[k] = v
	}
	preconditions := make([]interface{}, len(s.Preconditions))
	for i, p := range s.Preconditions {
		preconditions[i] = p
	}
	effects := make([]interface{}, len(s.Effects))
	for i, e := range s.Effects {
		effects[i] = e
	}
	var costHint interface{}
	if s.CostHint != nil {
		costHint = *s.CostHint
	}
	return map[string]interface{}{
		"id":            s.ID,
		"action":        s.Action,
		"params":        params,
		"preconditions": preconditions,
		"effects":       effects,
		"cost_hint":     costHint,
	}
}
