package stream

// Stream describes a lazy, forward-only stream of values.
// A stream is not restartable.
type Stream[T any] interface {
	// Next advances the stream. It must
	// be called once at the start to advance
	// to the first item in the stream. It returns
	// true if there is a value available
	// or false otherwise. It may return false in
	// case of an error. Error() will return
	// an error if this is the case and must be checked
	// after Next() returns false.
	Next() bool
	// Value returns the value at the current position
	// or the zero value if iteration is done.
	Value() T
	// Error returns the error that occurred, if any
	Error() error
	// Close releases any resources held by the stream.
	// It must be safe to call Close more than once.
	Close() error
}

// Processor is a function that returns a stream
// derived from a source stream.
type Processor[T any] func(Stream[T]) Stream[T]

// Pipeline connects a series of processors to a source
// stream and returns the derived stream. Pipeline can
// be useful to create code that is more readable than
// simply invoking processor functions in a nested way
// like this processor3(processor2(processor1(stream)))
func Pipeline[T any](stream Stream[T], processors ...Processor[T]) Stream[T] {
	for _, processor := range processors {
		if processor == nil {
			continue
		}

		stream = processor(stream)
	}

	return stream
}

// Collect drains the stream into a slice and closes it
func Collect[T any](stream Stream[T]) ([]T, error) {
	defer stream.Close()

	values := []T{}

	for stream.Next() {
		values = append(values, stream.Value())
	}

	if err := stream.Error(); err != nil {
		return nil, err
	}

	return values, stream.Close()
}

// FromFunc builds a stream whose values are produced by
// next. next returns false once the stream is exhausted.
// close, if not nil, is called exactly once by Close.
func FromFunc[T any](next func() (T, bool, error), close func() error) Stream[T] {
	return &funcStream[T]{next: next, close: close}
}

type funcStream[T any] struct {
	next   func() (T, bool, error)
	close  func() error
	value  T
	err    error
	done   bool
	closed bool
}

func (stream *funcStream[T]) Next() bool {
	var zero T

	if stream.done {
		stream.value = zero

		return false
	}

	value, ok, err := stream.next()

	if err != nil || !ok {
		stream.done = true
		stream.err = err
		stream.value = zero

		return false
	}

	stream.value = value

	return true
}

func (stream *funcStream[T]) Value() T {
	return stream.value
}

func (stream *funcStream[T]) Error() error {
	return stream.err
}

func (stream *funcStream[T]) Close() error {
	if stream.closed {
		return nil
	}

	stream.closed = true
	stream.done = true

	if stream.close == nil {
		return nil
	}

	return stream.close()
}
