package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyHMACRoundTrip(t *testing.T) {
	key := []byte("a-signing-key")
	payload := []byte("MODE=prod\nVERSION=1\n")

	sig := SignHMAC(key, payload)
	assert.True(t, VerifyHMAC(key, payload, sig))
}

func TestVerifyHMACRejectsTamperedPayload(t *testing.T) {
	key := []byte("a-signing-key")
	sig := SignHMAC(key, []byte("payload-a"))
	assert.False(t, VerifyHMAC(key, []byte("payload-b"), sig))
}

func TestVerifyHMACRejectsWrongKey(t *testing.T) {
	payload := []byte("payload")
	sig := SignHMAC([]byte("key-a"), payload)
	assert.False(t, VerifyHMAC([]byte("key-b"), payload, sig))
}

func TestVerifyHMACRejectsMalformedHex(t *testing.T) {
	assert.False(t, VerifyHMAC([]byte("k"), []byte("p"), "not-hex"))
}

func TestEnvKeyProvider(t *testing.T) {
	p := &EnvKeyProvider{
		EnvVar: "ADAAD6_CONFIG_SIG_KEY",
		Lookup: func(name string) (string, bool) {
			if name == "ADAAD6_CONFIG_SIG_KEY" {
				return "secret", true
			}
			return "", false
		},
	}
	key, ok := p.Key()
	require.True(t, ok)
	assert.Equal(t, []byte("secret"), key)
}

func TestEnvKeyProviderMissing(t *testing.T) {
	p := &EnvKeyProvider{
		EnvVar: "ADAAD6_CONFIG_SIG_KEY",
		Lookup: func(string) (string, bool) { return "", false },
	}
	_, ok := p.Key()
	assert.False(t, ok)
}

func TestFallbackKeyProviderNeverResolves(t *testing.T) {
	_, ok := FallbackKeyProvider{}.Key()
	assert.False(t, ok)
}

func TestMultiKeyProviderDeterministicSelection(t *testing.T) {
	m := NewMultiKeyProvider()
	m.Add("v1", []byte("key-one"))
	m.Add("v2", []byte("key-two"))
	m.Add("v10", []byte("key-ten"))

	key, ok := m.Key()
	require.True(t, ok)
	// lexicographic ordering: "v1" < "v10" < "v2", so "v2" is selected.
	assert.Equal(t, []byte("key-two"), key)
}

func TestMultiKeyProviderEmpty(t *testing.T) {
	m := NewMultiKeyProvider()
	_, ok := m.Key()
	assert.False(t, ok)
}
