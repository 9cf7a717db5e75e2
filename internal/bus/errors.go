package bus

import (
	"errors"
	"fmt"
)

// Sentinel errors for the dispatch engine.
var (
	// ErrNilOwner is returned when a nil owner is registered.
	ErrNilOwner = errors.New("owner cannot be nil")

	// ErrInvalidOwner is returned when an owner cannot be compared by identity.
	ErrInvalidOwner = errors.New("owner must be comparable")

	// ErrNoCapabilities is returned when an owner is registered without any reaction.
	ErrNoCapabilities = errors.New("owner has no capabilities")

	// ErrCapabilityMismatch is returned when an owner does not implement a requested capability.
	ErrCapabilityMismatch = errors.New("owner does not implement capability")

	// ErrAlreadyRegistered is returned when an owner is registered twice for the same key,
	// or a child engine is attached twice to the same parent.
	ErrAlreadyRegistered = errors.New("already registered")

	// ErrNilEngine is returned when a nil child engine is attached.
	ErrNilEngine = errors.New("engine cannot be nil")

	// ErrSelfChild is returned when an engine is attached to itself.
	ErrSelfChild = errors.New("engine cannot be its own child")

	// ErrEngineClosed is returned when registering on a closed engine.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrSubscriberPanic matches every SubscriberError.
	ErrSubscriberPanic = errors.New("subscriber panicked")
)

// SubscriberError describes a subscriber that panicked during dispatch.
type SubscriberError struct {
	// Engine is the name of the engine running the walk.
	Engine string

	// Subscriber is the diagnostic name of the failing subscriber.
	Subscriber string

	// Key is the message key being dispatched.
	Key Key

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *SubscriberError) Error() string {
	return fmt.Sprintf("subscriber %s failed on %s in engine %s: %v", e.Subscriber, e.Key, e.Engine, e.Value)
}

// Is allows errors.Is to match SubscriberError with ErrSubscriberPanic.
func (e *SubscriberError) Is(target error) bool {
	return target == ErrSubscriberPanic
}

// Unwrap returns the panic value if it is an error.
func (e *SubscriberError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// registrationError adds the owner and key to a registration failure.
func registrationError(name string, key Key, err error) error {
	return fmt.Errorf("register %s for %s: %w", name, key, err)
}
