package scanner

import "sort"

// KeySet is a set of identity keys for content that physically exists
type KeySet map[string]struct{}

// NewKeySet builds a set from keys
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts key; empty keys are ignored
func (s KeySet) Add(key string) {
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

// Has reports whether key is present. A nil set has no keys.
func (s KeySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Union adds every key of other to s
func (s KeySet) Union(other KeySet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Len returns the number of keys
func (s KeySet) Len() int {
	return len(s)
}

// Sorted returns the keys in lexical order
func (s KeySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
