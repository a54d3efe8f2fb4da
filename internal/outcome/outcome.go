// Package outcome models the result of a call to an external system that is
// allowed to fail without failing its caller.
package outcome

// Result carries either a value or the reason it is unavailable
type Result[T any] struct {
	value  T
	ok     bool
	reason string
}

// Available wraps a value
func Available[T any](v T) Result[T] {
	return Result[T]{value: v, ok: true}
}

// Unavailable records why no value could be produced
func Unavailable[T any](reason string) Result[T] {
	return Result[T]{reason: reason}
}

// Get returns the value and whether it is present
func (r Result[T]) Get() (T, bool) {
	return r.value, r.ok
}

// OK reports whether a value is present
func (r Result[T]) OK() bool {
	return r.ok
}

// Reason is empty for available results
func (r Result[T]) Reason() string {
	return r.reason
}
