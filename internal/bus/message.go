package bus

import "fmt"

// Event is a keyed message with an optional payload.
type Event[K any] struct {
	// Key identifies what happened.
	Key K

	// Data is the payload. Multiple payload values are carried as []any.
	Data any
}

// Payload returns the event payload.
func (e Event[K]) Payload() any {
	return e.Data
}

// String returns a readable form of the event.
func (e Event[K]) String() string {
	if e.Data == nil {
		return fmt.Sprint(e.Key)
	}
	return fmt.Sprintf("%v %v", e.Key, e.Data)
}

// Approver is implemented by messages that carry an approval flag.
// Dispatching stops as soon as Approved reports true.
type Approver interface {
	Approved() bool
}

// Request is an event that a subscriber may approve.
// Requests are always dispatched by pointer so approval is visible to the sender.
type Request[K any] struct {
	// Key identifies the request.
	Key K

	// Data is the payload. Multiple payload values are carried as []any.
	Data any

	approved bool
}

// Approve marks the request as approved. Subscribers ordered after the
// approving one will not see the request.
func (r *Request[K]) Approve() {
	r.approved = true
}

// Approved reports whether a subscriber approved the request.
func (r *Request[K]) Approved() bool {
	return r.approved
}

// Payload returns the request payload.
func (r *Request[K]) Payload() any {
	return r.Data
}

// String returns a readable form of the request.
func (r *Request[K]) String() string {
	if r.Data == nil {
		return fmt.Sprintf("request %v", r.Key)
	}
	return fmt.Sprintf("request %v %v", r.Key, r.Data)
}

// PayloadCarrier is implemented by messages that carry data.
type PayloadCarrier interface {
	Payload() any
}

// TryGetData extracts a typed payload from msg.
func TryGetData[T any](msg any) (T, bool) {
	var zero T
	pc, ok := msg.(PayloadCarrier)
	if !ok {
		return zero, false
	}
	data, ok := pc.Payload().(T)
	if !ok {
		return zero, false
	}
	return data, true
}

// GetData extracts a typed payload from msg, returning the zero value
// if msg carries no payload of type T.
func GetData[T any](msg any) T {
	data, _ := TryGetData[T](msg)
	return data
}

// TryGetDataAt extracts the i-th value of a multi-value payload.
// A payload carrying a single value is not indexable.
func TryGetDataAt[T any](msg any, i int) (T, bool) {
	var zero T
	values, ok := TryGetData[[]any](msg)
	if !ok || i < 0 || i >= len(values) {
		return zero, false
	}
	v, ok := values[i].(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// TryGetData2 extracts the first two values of a multi-value payload.
// It reports false, with zero values, if either is missing or of another type.
func TryGetData2[A, B any](msg any) (A, B, bool) {
	a, okA := TryGetDataAt[A](msg, 0)
	b, okB := TryGetDataAt[B](msg, 1)
	if !okA || !okB {
		var za A
		var zb B
		return za, zb, false
	}
	return a, b, true
}

// TryGetData3 extracts the first three values of a multi-value payload.
func TryGetData3[A, B, C any](msg any) (A, B, C, bool) {
	a, b, ok := TryGetData2[A, B](msg)
	c, okC := TryGetDataAt[C](msg, 2)
	if !ok || !okC {
		var za A
		var zb B
		var zc C
		return za, zb, zc, false
	}
	return a, b, c, true
}

// GetData2 is TryGetData2 without the report.
func GetData2[A, B any](msg any) (A, B) {
	a, b, _ := TryGetData2[A, B](msg)
	return a, b
}

// GetData3 is TryGetData3 without the report.
func GetData3[A, B, C any](msg any) (A, B, C) {
	a, b, c, _ := TryGetData3[A, B, C](msg)
	return a, b, c
}

// packData folds variadic payload arguments into a single value.
func packData(data []any) any {
	switch len(data) {
	case 0:
		return nil
	case 1:
		return data[0]
	default:
		return data
	}
}

// action is the message carried by SendAction.
type action[H any] struct {
	fn func(H)
}
