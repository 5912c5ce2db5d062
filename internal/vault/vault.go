// Package vault is the only component permitted to read credential material
// from the process environment. It builds per-server env maps for the
// sandbox container and resolves ${VAR} placeholders in configuration
// values such as auth_header.
package vault

import (
	"regexp"
	"strings"

	"mfp/internal/config"
)

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Lookup abstracts environment variable lookup so callers can inject a fake
// environment in tests without touching the process's real one.
type Lookup func(key string) (string, bool)

// OSLookup looks up key in the real process environment.
func OSLookup(key string) (string, bool) {
	return osLookupEnv(key)
}

// BuildServerEnv reads MFP_{SERVER}_BASE_URL and MFP_{SERVER}_AUTH for the
// given server name and returns the env vars to inject into that server's
// sandbox container. Missing values are simply absent from the map — the
// generated library treats an empty base URL/auth as "unset".
func BuildServerEnv(serverName string, lookup Lookup) map[string]string {
	prefix := "MFP_" + strings.ToUpper(sanitizeEnvName(serverName))
	env := make(map[string]string, 2)

	if v, ok := lookup(prefix + "_BASE_URL"); ok {
		env[prefix+"_BASE_URL"] = v
	}
	if v, ok := lookup(prefix + "_AUTH"); ok {
		env[prefix+"_AUTH"] = v
	}
	return env
}

// Expand resolves every ${VAR} placeholder in value against lookup. An
// unresolved placeholder yields a *config.Error — the vault is the only
// place this particular ConfigError can originate.
func Expand(value string, lookup Lookup) (string, error) {
	var firstErr error
	expanded := placeholderPattern.ReplaceAllStringFunc(value, func(match string) string {
		if firstErr != nil {
			return match
		}
		name := placeholderPattern.FindStringSubmatch(match)[1]
		v, ok := lookup(name)
		if !ok {
			firstErr = config.NewError("unresolved environment placeholder ${"+name+"}", nil)
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return expanded, nil
}

// sanitizeEnvName replaces any non-identifier run with "_", mirroring the
// swagger parser's operation-id sanitization. It does not change case;
// BuildServerEnv upper-cases the result.
func sanitizeEnvName(name string) string {
	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range name {
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
	return b.String()
}
