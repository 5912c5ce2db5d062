// Package hashing provides the content digests mfp uses for manifest
// invalidation and cache keys.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the lowercase hex SHA-256 digest of data. Used for
// swagger source_hash and for anything else that needs a stable content id.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeCode canonicalizes a code snippet for cache-key purposes: line
// endings become "\n", trailing whitespace is stripped from every line,
// blank lines are dropped entirely, and leading/trailing blank lines are
// trimmed. Comment and semantic stripping are deliberately not performed —
// two snippets that differ only in comments get different ids.
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	code = strings.ReplaceAll(code, "\r", "\n")

	lines := strings.Split(code, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "" {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.Join(kept, "\n")
}

// CodeID returns the cache id for a code snippet: sha256(normalize(code)).
// Stable under whitespace and blank-line variants of the same code.
func CodeID(code string) string {
	return ContentHash([]byte(NormalizeCode(code)))
}
