package cache

import (
	"fmt"
	"sort"
	"strings"
)

// KeyPrefix is prepended to every cache key.
const KeyPrefix = "jsm"

// Key identifies a memoized result.
type Key struct {
	// Namespace groups keys by producer (e.g., "estimate", "regional")
	Namespace string

	// Params are the inputs the result depends on (e.g., {"period": "ALL"})
	Params map[string]string
}

// NewKey builds a key from alternating name/value pairs.
// A trailing name without a value is ignored.
func NewKey(namespace string, kv ...string) Key {
	k := Key{Namespace: namespace, Params: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		k.Params[kv[i]] = kv[i+1]
	}
	return k
}

// String generates a deterministic cache key string.
// Format: jsm:namespace:param1=val1:param2=val2
//
// Example:
//
//	jsm:regional:pages=3:period=ALL:region=A000
func (k Key) String() string {
	parts := []string{KeyPrefix}

	ns := strings.Trim(k.Namespace, ":")
	if ns != "" {
		parts = append(parts, ns)
	}

	// Params sorted for determinism
	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for name := range k.Params {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Params[name]))
		}
	}

	return strings.Join(parts, ":")
}
