package fetch

// AllLoaded reports whether every state is Loaded. States never requested
// count as not loaded; an empty slice is vacuously loaded.
func AllLoaded[T any](states []State[T]) bool {
	for _, s := range states {
		if !s.IsLoaded() {
			return false
		}
	}
	return true
}

// MapIsLoaded reports whether every key maps to a Loaded state. Missing keys
// count as not loaded.
func MapIsLoaded[T any](states map[string]State[T], keys []string) bool {
	for _, key := range keys {
		s, ok := states[key]
		if !ok || !s.IsLoaded() {
			return false
		}
	}
	return true
}

// AnyPending reports whether any state is still Loading.
func AnyPending[T any](states []State[T]) bool {
	for _, s := range states {
		if s.IsPending() {
			return true
		}
	}
	return false
}

// AnyErrored returns the first error among states.
func AnyErrored[T any](states []State[T]) (bool, error) {
	for _, s := range states {
		if s.IsErrored() {
			return true, s.Err
		}
	}
	return false, nil
}

// Errors collects every error among states, in order.
func Errors[T any](states []State[T]) []error {
	var errs []error
	for _, s := range states {
		if s.IsErrored() {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Payloads returns the payloads of the Loaded states, in order.
func Payloads[T any](states []State[T]) []T {
	out := make([]T, 0, len(states))
	for _, s := range states {
		if s.IsLoaded() {
			out = append(out, s.Payload)
		}
	}
	return out
}
