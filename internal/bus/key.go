package bus

import (
	"fmt"
	"strings"
)

// Key identifies the shape of a message. Keys are comparable and are only
// used to bucket subscribers; the engine never interprets them.
type Key struct {
	token any
}

// KeyOf returns the key for messages of type T.
//
// The key is a typed nil pointer, so every instantiation of T yields a distinct
// token without walking type information at runtime.
func KeyOf[T any]() Key {
	return Key{token: (*T)(nil)}
}

// IsZero reports whether k is the zero Key.
func (k Key) IsZero() bool {
	return k.token == nil
}

// String returns the message type name.
func (k Key) String() string {
	if k.token == nil {
		return "<none>"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", k.token), "*")
}
