package regress

import (
	"sort"
	"strings"
)

// Mount and scheme prefixes that scanners leak into artifact URIs. /src/ is
// the container mount convention; file:// shows up in native SARIF output.
const (
	mountPrefix  = "/src/"
	schemePrefix = "file://"
)

func normalizeToken(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// normalizePath strips the scanner mount prefix or the file URI scheme from
// an artifact location. After this a path never starts with /src/ and never
// carries a scheme.
func normalizePath(uri string) string {
	switch {
	case strings.HasPrefix(uri, mountPrefix):
		return uri[len(mountPrefix):]
	case strings.HasPrefix(uri, schemePrefix):
		return uri[len(schemePrefix):]
	default:
		return uri
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
