// Package canonicalize implements the single content-addressing primitive
// ADAAD-6 relies on: a canonical JSON byte form and a SHA-256 digest over
// it. Every persistent value in the kernel carries a hash field computed
// this way; no other encoding path is permitted to produce a content hash.
package canonicalize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonical returns the canonical JSON byte form of v: UTF-8, map keys
// sorted ascending by Unicode code point at every level, no insignificant
// whitespace, HTML escaping disabled, arrays preserving order.
//
// v is first run through the standard marshaler so struct tags are
// respected, then decoded with UseNumber (to avoid float64 round-off on
// integers) and re-encoded by marshalRecursive, which is the only encoder
// in this package trusted to produce canonical bytes.
func Canonical(v interface{}) ([]byte, error) {
	intermediate, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: marshal: %w", err)
	}

	var generic interface{}
	decoder := json.NewDecoder(bytes.NewReader(intermediate))
	decoder.UseNumber()
	if err := decoder.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: decode: %w", err)
	}

	return marshalRecursive(generic)
}

// CanonicalString returns Canonical(v) as a string.
func CanonicalString(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// HashBytes returns the lowercase hex SHA-256 digest of data.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hash returns the SHA-256 hex digest of Canonical(v).
func Hash(v interface{}) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashObject is the map[string]any-specific convenience form used
// throughout the kernel for DAG nodes and ledger events.
func HashObject(obj map[string]interface{}) (string, error) {
	return Hash(obj)
}

// AttachHash returns a shallow copy of obj with any existing "hash" field
// removed and a freshly computed "hash" field set, per the invariant
// hash = SHA256(canonical_json(node \ {"hash"})).
func AttachHash(obj map[string]interface{}) (map[string]interface{}, error) {
	return attachKeyedHash(obj, "hash")
}

// AttachContentHash returns a shallow copy of obj with any existing
// "content_hash" field removed and a freshly computed "content_hash" field
// set, per spec's payload invariant content_hash =
// SHA256(canonical_json(payload \ {"content_hash"})) — the payload-level
// analogue of AttachHash, which addresses DAG nodes and ledger events
// under the "hash" key instead.
func AttachContentHash(obj map[string]interface{}) (map[string]interface{}, error) {
	return attachKeyedHash(obj, "content_hash")
}

func attachKeyedHash(obj map[string]interface{}, key string) (map[string]interface{}, error) {
	h, err := HashObject(withoutKey(obj, key))
	if err != nil {
		return nil, err
	}
	out := withoutKey(obj, key)
	out[key] = h
	return out, nil
}

// withoutKey returns a shallow copy of obj with the given key removed.
func withoutKey(obj map[string]interface{}, key string) map[string]interface{} {
	out := make(map[string]interface{}, len(obj))
	for k, v := range obj {
		if k == key {
			continue
		}
		out[k] = v
	}
	return out
}

// VerifyHash reports whether obj's stored "hash" field matches the hash
// recomputed over the rest of obj.
func VerifyHash(obj map[string]interface{}) (bool, error) {
	return verifyKeyedHash(obj, "hash")
}

// VerifyContentHash reports whether obj's stored "content_hash" field
// matches the hash recomputed over the rest of obj.
func VerifyContentHash(obj map[string]interface{}) (bool, error) {
	return verifyKeyedHash(obj, "content_hash")
}

func verifyKeyedHash(obj map[string]interface{}, key string) (bool, error) {
	stored, _ := obj[key].(string)
	if stored == "" {
		return false, nil
	}
	expected, err := HashObject(withoutKey(obj, key))
	if err != nil {
		return false, err
	}
	return stored == expected, nil
}

func marshalRecursive(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	case []interface{}:
		buf.Reset()
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalRecursive(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		buf.Reset()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalRecursive(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')

			vb, err := marshalRecursive(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	}
}
