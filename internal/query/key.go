// Package query caches remote read results by key and tracks mutation state.
package query

import "strings"

const keySeparator = ":"

// Key identifies a cached result. The first segment is the key family.
type Key string

// NewKey joins a family and its parameter segments into a Key.
func NewKey(family string, parts ...string) Key {
	if len(parts) == 0 {
		return Key(family)
	}
	return Key(family + keySeparator + strings.Join(parts, keySeparator))
}

// Family returns the first segment of the key.
func (k Key) Family() string {
	family, _, _ := strings.Cut(string(k), keySeparator)
	return family
}

// HasPrefix reports whether prefix names k itself or a whole-segment prefix of it.
func (k Key) HasPrefix(prefix string) bool {
	s := string(k)
	if prefix == "" {
		return true
	}
	return s == prefix || strings.HasPrefix(s, prefix+keySeparator)
}

func (k Key) String() string {
	return string(k)
}
