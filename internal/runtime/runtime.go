// Package runtime holds small process-level helpers shared across nethost,
// kept separate from the domain packages so they stay free of import cycles.
package runtime

// Must panics on a non-nil error. Used for programmer errors that indicate a
// broken invariant at startup (e.g. a handler failing to register a route),
// never for errors that can occur in normal operation.
func Must(err error) {
	if err != nil {
		panic(err)
	}
}
