package orchestrator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
)

// Plan is a goal-scoped sequence of ActionSpecs plus the bookkeeping
// (truncated/time_capped/tier) that explains why the sequence stops where
// it does.
type Plan struct {
	Goal  string
	Steps []capabilities.ActionSpec
	Meta  map[string]interface{}
}

// ToMap renders the plan the way it is recorded in archetype ledger
// payloads.
func (p Plan) ToMap() map[string]interface{} {
	steps := make([]interface{}, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = s.ToMap()
	}
	return map[string]interface{}{
		"goal":  p.Goal,
		"steps": steps,
		"meta":  p.Meta,
	}
}

func costHint(v float64) *float64 { return &v }

// dependsOn builds a CEL-DP precondition expression asserting that effect
// was already satisfied by an earlier step in this run — the executor's
// admissibility stage evaluates it against phenotype_contract.satisfied_effects
// before the step is allowed to proceed, turning the pipeline's step
// ordering into a real, checked gate instead of an opaque string the
// planner merely documents.
func dependsOn(effect string) string {
	return fmt.Sprintf("%q in phenotype_contract.satisfied_effects", effect)
}

// baseActions is the fixed six-step planning pipeline the default planner
// produces for any non-blank goal: clarify, narrow constraints, survey
// context, propose options, pick the minimum credible path, and report.
// None of these action names ship a corresponding registered module in the
// reference implementation either — the default planner is illustrative,
// and a deployment wiring a real plan_factory/action_builder pair is
// expected to replace both together.
func baseActions(goal string) []capabilities.ActionSpec {
	return []capabilities.ActionSpec{
		{
			ID:       "clarify",
			Action:   "clarify_goal",
			Params:   map[string]interface{}{"goal": goal},
			Effects:  []string{"goal_clarity"},
			CostHint: costHint(0.05),
		},
		{
			ID:            "constraints",
			Action:        "identify_constraints",
			Params:        map[string]interface{}{"goal": goal},
			Preconditions: []string{dependsOn("goal_clarity")},
			Effects:       []string{"constraints_noted"},
			CostHint:      costHint(0.25),
		},
		{
			ID:            "context",
			Action:        "survey_context",
			Params:        map[string]interface{}{"goal": goal, "depth": "light"},
			Preconditions: []string{dependsOn("constraints_noted")},
			Effects:       []string{"context_profiled"},
			CostHint:      costHint(1.25),
		},
		{
			ID:            "options",
			Action:        "propose_actions",
			Params:        map[string]interface{}{"goal": goal, "fanout": 3},
			Preconditions: []string{dependsOn("constraints_noted")},
			Effects:       []string{"options_listed"},
			CostHint:      costHint(0.8),
		},
		{
			ID:            "select",
			Action:        "select_minimum_path",
			Params:        map[string]interface{}{"goal": goal, "preference": "credibility_first"},
			Preconditions: []string{dependsOn("options_listed")},
			Effects:       []string{"plan_candidate"},
			CostHint:      costHint(0.35),
		},
		{
			ID:            "report",
			Action:        "finalize_report",
			Params:        map[string]interface{}{"goal": goal},
			Preconditions: []string{dependsOn("plan_candidate")},
			Effects:       []string{"report_ready"},
			CostHint:      costHint(0.15),
		},
	}
}

// effectiveCost treats a missing cost hint as unbounded so it never slips
// under a tier's cutoff by omission.
func effectiveCost(spec capabilities.ActionSpec) float64 {
	if spec.CostHint == nil {
		return math.Inf(1)
	}
	return *spec.CostHint
}

func tierCutoff(tier config.ResourceTier) float64 {
	switch tier {
	case config.TierMobile:
		return 1.0
	case config.TierEdge:
		return 2.0
	default:
		return math.Inf(1)
	}
}

func filterForTier(actions []capabilities.ActionSpec, tier config.ResourceTier) []capabilities.ActionSpec {
	cutoff := tierCutoff(tier)
	out := make([]capabilities.ActionSpec, 0, len(actions))
	for _, a := range actions {
		if effectiveCost(a) <= cutoff {
			out = append(out, a)
		}
	}
	return out
}

func applyLimits(actions []capabilities.ActionSpec, cfg *config.Config, start time.Time, meta map[string]interface{}) []capabilities.ActionSpec {
	bounded := make([]capabilities.ActionSpec, 0, len(actions))
	for _, a := range actions {
		if time.Since(start).Seconds() > cfg.PlannerMaxSeconds {
			meta["time_capped"] = true
			break
		}
		if len(bounded) >= cfg.PlannerMaxSteps {
			meta["truncated"] = true
			break
		}
		bounded = append(bounded, a)
	}
	return bounded
}

func assignIDs(actions []capabilities.ActionSpec) []capabilities.ActionSpec {
	out := make([]capabilities.ActionSpec, len(actions))
	for i, a := range actions {
		a.ID = fmt.Sprintf("act-%03d", i+1)
		out[i] = a
	}
	return out
}

// MakePlan is the default PlanFactory: a fixed six-step credibility-first
// pipeline, filtered by the config's resource tier and bounded by its
// planner_max_steps/planner_max_seconds budget.
func MakePlan(goal string, cfg *config.Config) (Plan, error) {
	if err := cfg.Validate(); err != nil {
		return Plan{}, err
	}
	start := time.Now()
	meta := map[string]interface{}{
		"truncated":   false,
		"time_capped": false,
		"tier":        string(cfg.ResourceTier),
	}

	trimmed := strings.TrimSpace(goal)
	var actions []capabilities.ActionSpec
	if trimmed != "" {
		actions = baseActions(trimmed)
	}

	filtered := filterForTier(actions, cfg.ResourceTier)
	bounded := applyLimits(filtered, cfg, start, meta)
	numbered := assignIDs(bounded)

	for _, spec := range numbered {
		if err := spec.Validate(); err != nil {
			return Plan{}, fmt.Errorf("orchestrator: invalid plan step: %w", err)
		}
	}

	return Plan{Goal: goal, Steps: numbered, Meta: meta}, nil
}
