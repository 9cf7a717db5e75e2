package bus

// Send dispatches msg to every subscriber of T on e and its children.
func Send[T any](e *Engine, msg T) {
	e.dispatch(KeyOf[T](), msg, DefaultInvoker{})
}

// SendWith dispatches msg through inv.
func SendWith[T any](e *Engine, msg T, inv Invoker) {
	e.Dispatch(KeyOf[T](), msg, inv)
}

// SendEvent dispatches an Event[K] carrying key and the optional data.
func SendEvent[K any](e *Engine, key K, data ...any) {
	Send(e, Event[K]{Key: key, Data: packData(data)})
}

// SendRequest dispatches a *Request[K] and reports whether a subscriber
// approved it. Subscribers ordered after the approving one are not invoked.
// With no subscribers the request is not approved.
func SendRequest[K any](e *Engine, key K, data ...any) bool {
	req := &Request[K]{Key: key, Data: packData(data)}
	e.dispatch(KeyOf[*Request[K]](), req, RequestInvoker{})
	return req.Approved()
}

// SendAction calls fn on every owner registered with Handles[H].
func SendAction[H any](e *Engine, fn func(H)) {
	e.dispatch(KeyOf[action[H]](), action[H]{fn: fn}, DefaultInvoker{})
}

// Listen registers l for messages of type T and returns its handle.
func Listen[T any](e *Engine, l Listener[T], opts ...SubscribeOption) (Handle, error) {
	hs, err := e.register(l, []Capability{Listens[T](opts...)})
	if err != nil {
		return Handle{}, err
	}
	return hs[0], nil
}

// Subscribe registers fn for messages of type T on behalf of owner and
// returns its handle.
func Subscribe[T any](e *Engine, owner any, fn func(T), opts ...SubscribeOption) (Handle, error) {
	hs, err := e.register(owner, []Capability{On(fn, opts...)})
	if err != nil {
		return Handle{}, err
	}
	return hs[0], nil
}

// EventTo hands an Event[K] straight to one listener, bypassing any engine.
func EventTo[K any](l Listener[Event[K]], key K, data ...any) {
	l.React(Event[K]{Key: key, Data: packData(data)})
}

// RequestFrom asks a single listener and reports whether it approved.
func RequestFrom[K any](l Listener[*Request[K]], key K, data ...any) bool {
	req := &Request[K]{Key: key, Data: packData(data)}
	l.React(req)
	return req.Approved()
}
