package models

// Status tells a caller whether a value is real data or a stand-in
type Status string

const (
	// StatusOK is real data from the store
	StatusOK Status = "ok"
	// StatusGuest is an empty/default value because there is no user
	StatusGuest Status = "guest"
	// StatusDegraded is a default value substituted after an infrastructure error
	StatusDegraded Status = "degraded"
)

// Result carries a value together with how it was obtained
type Result[T any] struct {
	Value  T      `json:"value"`
	Status Status `json:"status"`
	Err    error  `json:"-"`
}

// OK wraps a real value
func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

// Guest wraps a guest-mode default
func Guest[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusGuest}
}

// Degraded wraps a fallback value and the error that caused it
func Degraded[T any](v T, err error) Result[T] {
	return Result[T]{Value: v, Status: StatusDegraded, Err: err}
}

// IsDegraded reports whether the value is a fallback
func (r Result[T]) IsDegraded() bool {
	return r.Status == StatusDegraded
}
