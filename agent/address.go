package agent

import "strings"

// NormalizeAddress extracts the bare address from a header value such as "Jane Doe <jane@x.com>".
// Values without a complete, non-empty <...> pair are returned unchanged.
func NormalizeAddress(to string) string {
	start := strings.Index(to, "<")
	if start < 0 {
		return to
	}
	end := strings.Index(to[start+1:], ">")
	if end < 0 {
		return to
	}
	if addr := strings.TrimSpace(to[start+1 : start+1+end]); addr != "" {
		return addr
	}
	return to
}
