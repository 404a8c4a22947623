package capabilities

import (
	"testing"

	"github.com/dreezy-6/adaad6/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(name string) ActionModule {
	return ActionModule{
		Name: name,
		Validate: func(params map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			return params, nil
		},
		Run: func(validated map[string]interface{}) (map[string]interface{}, error) {
			return validated, nil
		},
		Postcheck: func(result map[string]interface{}, cfg *config.Config) (map[string]interface{}, error) {
			return result, nil
		},
	}
}

func TestRegisterBuiltinPreservesOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterBuiltin(noop("alpha"), noop("beta")))
	assert.Equal(t, []string{"alpha", "beta"}, r.Names())
}

func TestRegisterUserOverlaysDistinctNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterBuiltin(noop("alpha")))
	require.NoError(t, r.RegisterUser(noop("custom")))
	assert.Equal(t, []string{"alpha", "custom"}, r.Names())
}

func TestRegisterUserRejectsDuplicateOfBuiltin(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterBuiltin(noop("alpha")))
	err := r.RegisterUser(noop("alpha"))
	assert.Error(t, err)
}

func TestRegisterRejectsMissingFunctions(t *testing.T) {
	r := NewRegistry()
	err := r.RegisterBuiltin(ActionModule{Name: "broken"})
	assert.Error(t, err)
}

func TestRegisterRejectsBlankName(t *testing.T) {
	r := NewRegistry()
	m := noop("")
	err := r.RegisterBuiltin(m)
	assert.Error(t, err)
}

func TestGetReturnsRegisteredModule(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterBuiltin(noop("alpha")))
	m, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", m.Name)

	_, ok = r.Get("missing")
	assert.False(t, ok)
}
