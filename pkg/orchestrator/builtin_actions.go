package orchestrator

import (
	"github.com/dreezy-6/adaad6/pkg/capabilities"
	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/dreezy-6/adaad6/pkg/kernel"
)

// plannerProvenance tags every builtin planner action module's origin so
// the monetizer archetype's revenue-safe filter (see monetizer.go) can
// distinguish kernel-shipped modules from a deployment's own.
const plannerProvenance = "github.com/dreezy-6/adaad6/pkg/orchestrator/planner"

// builtinPlannerActions implements the six action names MakePlan's default
// pipeline names. None of these have a corresponding module in the
// reference implementation's planning/actions package — the reference's
// make_plan is illustrative and its steps are only ever actually run when
// a deployment supplies its own plan_factory/action_builder pair. These
// Go implementations exist so the default boot -> plan -> execute path is
// runnable end to end without a caller override; each stage's Run is a
// deterministic, side-effect-free transform of its params into the
// effect it declares.
func builtinPlannerActions() []capabilities.ActionModule {
	return []capabilities.ActionModule{
		simplePlannerAction("clarify_goal", "goal_clarity", func(goal string) map[string]interface{} {
			return map[string]interface{}{"goal_clarity": goal}
		}),
		simplePlannerAction("identify_constraints", "constraints_noted", func(goal string) map[string]interface{} {
			return map[string]interface{}{"constraints_noted": []string{}}
		}),
		simplePlannerAction("survey_context", "context_profiled", func(goal string) map[string]interface{} {
			return map[string]interface{}{"context_profiled": true}
		}),
		simplePlannerAction("propose_actions", "options_listed", func(goal string) map[string]interface{} {
			return map[string]interface{}{"options_listed": []string{}}
		}),
		simplePlannerAction("select_minimum_path", "plan_candidate", func(goal string) map[string]interface{} {
			return map[string]interface{}{"plan_candidate": goal}
		}),
		simplePlannerAction("finalize_report", "report_ready", func(goal string) map[string]interface{} {
			return map[string]interface{}{"report_ready": true, "goal": goal}
		}),
	}
}

// simplePlannerAction builds a module whose validate requires a string
// goal param, whose run applies produce to it, and whose postcheck
// requires the declared effect key to be present in the result.
func simplePlannerAction(name, effectKey string, produce func(goal string) map[string]interface{}) capabilities.ActionModule {
	return capabilities.ActionModule{
		Name:       name,
		Provenance: plannerProvenance,
		Validate: func(params map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			goal, _ := params["goal"].(string)
			if goal == "" {
				return nil, kernel.NewValidationError("%s: params.goal must be a non-empty string", name)
			}
			out := make(map[string]interface{}, len(params))
			for k, v := range params {
				out[k] = v
			}
			return out, nil
		},
		Run: func(validated map[string]interface{}) (map[string]interface{}, error) {
			goal, _ := validated["goal"].(string)
			return produce(goal), nil
		},
		Postcheck: func(result map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			if _, ok := result[effectKey]; !ok {
				return nil, kernel.NewNotFoundError("%s: result missing %q", name, effectKey)
			}
			return result, nil
		},
	}
}
