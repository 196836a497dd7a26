package utils

import "strings"

// SliceToSet converts a slice of any comparable type to a set represented by a map[T]struct{}.
func SliceToSet[T comparable](slice []T) map[T]struct{} {
	set := make(map[T]struct{}, len(slice))
	for _, item := range slice {
		set[item] = struct{}{}
	}
	return set
}

// OriginAllowed reports whether origin is in the allow set; "*" allows any.
// Matching ignores case and a trailing slash.
func OriginAllowed(allowed map[string]struct{}, origin string) bool {
	if _, ok := allowed["*"]; ok {
		return true
	}
	_, ok := allowed[strings.TrimSuffix(strings.ToLower(origin), "/")]
	return ok
}

// OriginSet normalizes origins into a set suitable for OriginAllowed.
func OriginSet(origins []string) map[string]struct{} {
	normalized := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(o)), "/")
		if o != "" {
			normalized = append(normalized, o)
		}
	}
	return SliceToSet(normalized)
}
