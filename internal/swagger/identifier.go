package swagger

import "strings"

// sanitizeIdentifier turns an arbitrary string into a valid Go identifier
// fragment: non-identifier runs collapse to a single underscore.
func sanitizeIdentifier(s string) string {
	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastWasUnderscore = false
			continue
		}
		if !lastWasUnderscore {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		out = "op"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// synthesizeOperationID builds an operation id from method and path when
// the document doesn't name one: {method_lower}_{path_sanitized}.
func synthesizeOperationID(method, path string) string {
	return strings.ToLower(method) + "_" + sanitizeIdentifier(path)
}
