// Package canonical derives stable fingerprints for credential field mappings.
//
// The canonical form sorts keys by byte order and length-prefixes every key
// and value ("<len>:<bytes>"), so values may contain any character without
// escaping and two distinct mappings never share a canonical form.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	dErrors "shebacred/pkg/domain-errors"
)

// FingerprintLength is the length of a hex-encoded SHA-256 digest.
const FingerprintLength = sha256.Size * 2

// Canonicalize renders fields in their canonical byte form.
func Canonicalize(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		writeFramed(&b, k)
		writeFramed(&b, fields[k])
	}
	return []byte(b.String())
}

func writeFramed(b *strings.Builder, s string) {
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}

// Fingerprint returns the lowercase hex SHA-256 of the canonical form.
func Fingerprint(fields map[string]string) string {
	sum := sha256.Sum256(Canonicalize(fields))
	return hex.EncodeToString(sum[:])
}

// ParseFingerprint validates an externally supplied fingerprint.
func ParseFingerprint(s string) (string, error) {
	if len(s) != FingerprintLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be 64 hex characters")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", dErrors.New(dErrors.CodeInvalidInput, "fingerprint must be lowercase hex")
		}
	}
	return s, nil
}
