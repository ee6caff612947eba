package common

// Coalesce returns the first of values that is not the zero value of T, or the zero value when all are.
// Config getters use it to let an empty string fall back to a default.
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// Deref returns *p, or fallback when p is nil.
//
// Parameters:
//   - p: an optional value, typically a pointer field of a JSON config
//   - fallback: the value used when p is unset
//
// Returns:
//   - T: the dereferenced value or fallback
func Deref[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
