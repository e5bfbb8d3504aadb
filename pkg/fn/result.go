// Package fn provides the generic Result type and Stage combinators the
// ingest pipeline is built from.
package fn

import "fmt"

// Result carries either a value or an error.
type Result[T any] struct {
	val T
	err error
	ok  bool
}

// Ok wraps a value in a successful Result.
func Ok[T any](v T) Result[T] {
	return Result[T]{val: v, ok: true}
}

// Err wraps an error in a failed Result.
func Err[T any](err error) Result[T] {
	return Result[T]{err: err}
}

// Errf wraps a formatted error in a failed Result.
func Errf[T any](format string, args ...any) Result[T] {
	return Result[T]{err: fmt.Errorf(format, args...)}
}

// IsOk reports whether the result carries a value.
func (r Result[T]) IsOk() bool { return r.ok }

// IsErr reports whether the result carries an error.
func (r Result[T]) IsErr() bool { return !r.ok }

// Unwrap returns the value and error pair.
func (r Result[T]) Unwrap() (T, error) { return r.val, r.err }

// UnwrapOr returns the value, or fallback on error.
func (r Result[T]) UnwrapOr(fallback T) T {
	if !r.ok {
		return fallback
	}
	return r.val
}

// FromPair converts a (value, error) return into a Result.
func FromPair[T any](v T, err error) Result[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(v)
}

// Collect returns all values if every result is ok, or the first error.
func Collect[T any](results []Result[T]) Result[[]T] {
	out := make([]T, len(results))
	for i, r := range results {
		if !r.ok {
			return Err[[]T](r.err)
		}
		out[i] = r.val
	}
	return Ok(out)
}
