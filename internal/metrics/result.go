package metrics

// State is the lifecycle position of a metric result
type State string

const (
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateFailed  State = "failed"
)

// Result is the envelope handed to callers for every metric.
// Loading results carry neither data nor error; failed results never carry data.
type Result[T any] struct {
	Data    *T      `json:"data"`
	Loading bool    `json:"loading"`
	Error   *string `json:"error"`
}

// Pending is a result whose computation has not settled yet
func Pending[T any]() Result[T] {
	return Result[T]{Loading: true}
}

// Ready wraps a computed value
func Ready[T any](v T) Result[T] {
	return Result[T]{Data: &v}
}

// ReadyNullable is a settled result whose value may be absent (lead rate with no sessions)
func ReadyNullable[T any](v *T) Result[T] {
	return Result[T]{Data: v}
}

// Failed wraps a store or dependency failure
func Failed[T any](err error) Result[T] {
	msg := err.Error()
	return Result[T]{Error: &msg}
}

func failedWith[T any](msg string) Result[T] {
	return Result[T]{Error: &msg}
}

// State reports where the result is in Loading -> (Ready | Failed)
func (r Result[T]) State() State {
	switch {
	case r.Loading:
		return StateLoading
	case r.Error != nil:
		return StateFailed
	default:
		return StateReady
	}
}

// Err returns the failure message or ""
func (r Result[T]) Err() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// Value returns the data and whether it is present
func (r Result[T]) Value() (T, bool) {
	if r.Data == nil {
		var zero T
		return zero, false
	}
	return *r.Data, true
}

// Map transforms ready data, passing loading and failed states through
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	switch r.State() {
	case StateLoading:
		return Pending[U]()
	case StateFailed:
		return failedWith[U](*r.Error)
	}
	if r.Data == nil {
		return ReadyNullable[U](nil)
	}
	return Ready(f(*r.Data))
}

// ComposeRate derives the lead conversion rate from its two dependencies.
// A failed dependency fails the rate (session count checked first), a loading
// one keeps it loading, and zero sessions yields a ready but null rate.
func ComposeRate(sessions, validLeads Result[int]) Result[float64] {
	if sessions.State() == StateFailed {
		return failedWith[float64](*sessions.Error)
	}
	if validLeads.State() == StateFailed {
		return failedWith[float64](*validLeads.Error)
	}
	if sessions.Loading || validLeads.Loading {
		return Pending[float64]()
	}

	s, _ := sessions.Value()
	if s <= 0 {
		return ReadyNullable[float64](nil)
	}
	l, _ := validLeads.Value()
	return Ready(float64(l) / float64(s))
}
