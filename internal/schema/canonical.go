package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Canonicalize returns a deep copy of s in canonical form together with the
// sorted, unique property names found under every "properties" mapping at any
// depth. Lists made only of strings are sorted; mappings, including mappings
// nested in lists, are canonicalized recursively. Applying Canonicalize to its
// own output is a no-op.
func Canonicalize(s map[string]any) (map[string]any, []string) {
	seen := make(map[string]struct{})
	out := canonicalMap(s, seen)

	fields := make([]string, 0, len(seen))
	for field := range seen {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return out, fields
}

func canonicalMap(m map[string]any, fields map[string]struct{}) map[string]any {
	out := make(map[string]any, len(m))
	for key, value := range m {
		if props, ok := value.(map[string]any); ok && key == "properties" {
			for field := range props {
				fields[field] = struct{}{}
			}
		}
		out[key] = canonicalValue(value, fields)
	}
	return out
}

func canonicalValue(v any, fields map[string]struct{}) any {
	switch val := v.(type) {
	case map[string]any:
		return canonicalMap(val, fields)
	case []any:
		return canonicalList(val, fields)
	default:
		return val
	}
}

func canonicalList(list []any, fields map[string]struct{}) []any {
	out := make([]any, len(list))
	allStrings := true
	for i, item := range list {
		if _, ok := item.(string); !ok {
			allStrings = false
		}
		out[i] = canonicalValue(item, fields)
	}
	if allStrings {
		sort.Slice(out, func(i, j int) bool {
			return out[i].(string) < out[j].(string)
		})
	}
	return out
}

// Marshal serializes a canonical schema with 4-space indentation. Map keys
// come out sorted and non-ASCII characters are written as \uXXXX escapes, so
// equal schemas always produce equal ASCII bytes.
func Marshal(s map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// escapeNonASCII rewrites every non-ASCII rune of encoded JSON as a
// lowercase \uXXXX escape, using a surrogate pair above the BMP. Such runes
// only occur inside JSON strings, where the escape is equivalent.
func escapeNonASCII(data []byte) []byte {
	ascii := true
	for _, b := range data {
		if b >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return data
	}

	out := make([]byte, 0, len(data)+len(data)/2)
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		switch {
		case r < utf8.RuneSelf:
			out = append(out, byte(r))
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, "\\u%04x\\u%04x", hi, lo)
		default:
			out = fmt.Appendf(out, "\\u%04x", r)
		}
	}
	return out
}

// ComputeDigest returns the hex encoded SHA-256 of data
func ComputeDigest(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ValidDigest reports whether s looks like a digest produced by ComputeDigest
func ValidDigest(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ObjectKey is the blob store key of the schema with the given digest
func ObjectKey(digest string) string {
	return digest + ".json"
}
