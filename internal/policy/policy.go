// Package policy enforces the cheap, pre-execution checks the executor runs
// before anything touches a container: a hard code-size ceiling and an
// optional domain allowlist for outbound calls generated code makes.
package policy

import (
	"fmt"
	"net/url"
	"strings"
)

// PolicyViolation is raised when generated/submitted code would reach a
// host outside a configured domain allowlist.
type PolicyViolation struct {
	Host string
}

func (e *PolicyViolation) Error() string {
	return fmt.Sprintf("policy violation: host %q is not in the allowed domain list", e.Host)
}

// CodeSizeOK reports whether code is within the configured size ceiling.
// Exactly maxBytes is accepted; one byte more is rejected.
func CodeSizeOK(code []byte, maxBytes int64) bool {
	return int64(len(code)) <= maxBytes
}

// DomainAllowed reports whether rawURL's host is permitted. An empty
// allowlist means no restriction is configured — everything is allowed.
func DomainAllowed(rawURL string, allowed []string) error {
	if len(allowed) == 0 {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return &PolicyViolation{Host: rawURL}
	}
	host := u.Hostname()

	for _, a := range allowed {
		if strings.EqualFold(host, a) {
			return nil
		}
	}
	return &PolicyViolation{Host: host}
}
