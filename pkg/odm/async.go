package odm

// Result carries the outcome of an operation started with Async.
type Result[T any] struct {
	Value T
	Err   error
}

// Async runs fn in a goroutine and delivers its outcome on the returned
// channel. The channel is buffered and closed after the single send, so
// callers may abandon it without leaking the goroutine.
func Async[T any](fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		defer close(ch)
		v, err := fn()
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}
