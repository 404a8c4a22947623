package config

import (
	"strings"

	"github.com/dreezy-6/adaad6/pkg/crypto"
)

// evaluateFreeze determines whether cfg must be frozen, returning the
// freeze reason (or FreezeNone). Order matches the precedence the freeze
// reasons are checked in: an explicit operator halt always wins, then
// schema mismatch, then signature verification, then the readiness gate.
func evaluateFreeze(cfg *Config, env map[string]string, keyProvider crypto.KeyProvider) FreezeReason {
	if cfg.EmergencyHalt {
		return FreezeEmergencyHalt
	}

	if cfg.ConfigSchemaVersion != CompiledSchemaVersion {
		return FreezeConfigSchemaVersionMismatch
	}

	if !cfg.ConfigSigRequired && cfg.ConfigSig == "" {
		return FreezeNone
	}

	if !strings.EqualFold(cfg.ConfigSigAlg, "HMAC-SHA256") {
		return FreezeConfigSigInvalid
	}

	key, provider, reason := resolveSigningKey(cfg, env, keyProvider)
	if reason != FreezeNone {
		return reason
	}

	payload := CanonicalEnvPayload(env)
	if !crypto.VerifyHMAC(key, []byte(payload), cfg.ConfigSig) {
		return FreezeConfigSigInvalid
	}
	_ = provider

	if cfg.MutationPolicy == MutationEvolutionary {
		if cfg.ReadinessGateSig == "" {
			return FreezeReadinessGateSignatureMissing
		}
		// The readiness signature cannot cover itself, so it is verified over
		// the canonical payload with its own key left out.
		readinessEnv := make(map[string]string, len(env))
		for k, v := range env {
			if k != envPrefix+"READINESS_GATE_SIG" {
				readinessEnv[k] = v
			}
		}
		if !crypto.VerifyHMAC(key, []byte(CanonicalEnvPayload(readinessEnv)), cfg.ReadinessGateSig) {
			return FreezeReadinessGateSignatureInvalid
		}
	}

	return FreezeNone
}

// resolveSigningKey picks the key used to verify the config signature: in
// dev mode, a KeyProvider if supplied, else ADAAD6_CONFIG_SIG_KEY read
// directly; in prod mode, a KeyProvider is mandatory — falling back to an
// env read in prod is itself the freeze condition the spec calls out.
func resolveSigningKey(cfg *Config, env map[string]string, keyProvider crypto.KeyProvider) ([]byte, crypto.KeyProvider, FreezeReason) {
	if keyProvider != nil {
		key, ok := keyProvider.Key()
		if !ok {
			return nil, nil, FreezeConfigSigKeyUnavailable
		}
		return key, keyProvider, FreezeNone
	}

	if cfg.Mode == ModeProd {
		return nil, nil, FreezeConfigSigKeyProviderRequired
	}

	raw, ok := env[envPrefix+"CONFIG_SIG_KEY"]
	if !ok || raw == "" {
		return nil, nil, FreezeConfigSigKeyUnavailable
	}
	return []byte(raw), nil, FreezeNone
}
