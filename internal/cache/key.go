package cache

import "strings"

// Key identifies a cached resource: the resource name followed by its
// parameters, e.g. {"notifications", userID}.
type Key []string

// keySep joins key parts for map lookups and persisted snapshots.
const keySep = "/"

// String returns the flattened form used for lookups and persistence.
func (k Key) String() string {
	return strings.Join(k, keySep)
}

// HasPrefix reports whether every part of prefix matches the leading parts of k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func parseKey(s string) Key {
	if s == "" {
		return Key{}
	}
	return Key(strings.Split(s, keySep))
}
