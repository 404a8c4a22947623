package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalKeyOrdering(t *testing.T) {
	v := map[string]interface{}{
		"zeta":  1,
		"alpha": 2,
		"mid":   3,
	}
	b, err := Canonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"mid":3,"zeta":1}`, string(b))
}

func TestCanonicalNestedOrdering(t *testing.T) {
	v := map[string]interface{}{
		"outer": map[string]interface{}{
			"b": 1,
			"a": 2,
		},
		"list": []interface{}{3, 1, 2},
	}
	b, err := Canonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"list":[3,1,2],"outer":{"a":2,"b":1}}`, string(b))
}

func TestCanonicalIsDeterministicAcrossKeyInsertionOrder(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2}
	b := map[string]interface{}{"y": 2, "x": 1}

	ab, err := Canonical(a)
	require.NoError(t, err)
	bb, err := Canonical(b)
	require.NoError(t, err)
	assert.Equal(t, string(ab), string(bb))
}

func TestCanonicalPreservesIntegerPrecision(t *testing.T) {
	v := map[string]interface{}{"n": 9007199254740993}
	b, err := Canonical(v)
	require.NoError(t, err)
	assert.Equal(t, `{"n":9007199254740993}`, string(b))
}

func TestCanonicalNoHTMLEscaping(t *testing.T) {
	v := map[string]interface{}{"s": "<tag>&\"quote\""}
	b, err := Canonical(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<tag>&")
}

func TestHashIsStableForEquivalentInput(t *testing.T) {
	a := map[string]interface{}{"a": 1, "b": 2}
	b := map[string]interface{}{"b": 2, "a": 1}

	ha, err := Hash(a)
	require.NoError(t, err)
	hb, err := Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestHashChangesWithContent(t *testing.T) {
	h1, err := Hash(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	h2, err := Hash(map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestAttachHashRoundTrip(t *testing.T) {
	node := map[string]interface{}{"kind": "proposal", "value": 42}

	withHash, err := AttachHash(node)
	require.NoError(t, err)
	require.Contains(t, withHash, "hash")

	ok, err := VerifyHash(withHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAttachHashIgnoresExistingHashField(t *testing.T) {
	node := map[string]interface{}{"kind": "proposal", "hash": "stale"}

	withHash, err := AttachHash(node)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", withHash["hash"])

	ok, err := VerifyHash(withHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyHashDetectsTamper(t *testing.T) {
	node := map[string]interface{}{"kind": "proposal", "value": 42}
	withHash, err := AttachHash(node)
	require.NoError(t, err)

	tampered := withoutHash(withHash)
	tampered["value"] = 43
	tampered["hash"] = withHash["hash"]

	ok, err := VerifyHash(tampered)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyHashRejectsMissingHash(t *testing.T) {
	ok, err := VerifyHash(map[string]interface{}{"kind": "proposal"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAttachHashDoesNotMutateInput(t *testing.T) {
	node := map[string]interface{}{"kind": "proposal"}
	_, err := AttachHash(node)
	require.NoError(t, err)
	_, hasHash := node["hash"]
	assert.False(t, hasHash)
}
