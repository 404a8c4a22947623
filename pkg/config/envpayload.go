package config

import (
	"sort"
	"strings"
)

const envPrefix = "ADAAD6_"

// sigExcludedKeys are the ADAAD6_* keys left out of the canonical env
// payload: the signature itself, its algorithm tag, and (dev-only) the raw
// signing key never participate in what they sign/protect.
var sigExcludedKeys = map[string]bool{
	"ADAAD6_CONFIG_SIG":     true,
	"ADAAD6_CONFIG_SIG_ALG": true,
	"ADAAD6_CONFIG_SIG_KEY": true,
}

// CanonicalEnvPayload builds the exact byte sequence the config signature is
// computed over: every ADAAD6_*-prefixed key except the signature triple,
// sorted ascending by key, each rendered as "KEY=VALUE\n", concatenated,
// UTF-8.
func CanonicalEnvPayload(env map[string]string) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		if !strings.HasPrefix(k, envPrefix) {
			continue
		}
		if sigExcludedKeys[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(env[k])
		b.WriteByte('\n')
	}
	return b.String()
}
