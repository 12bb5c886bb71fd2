package triggerbus

import (
	"errors"
	"fmt"
)

// Sentinel errors for event registration and subscription.
var (
	// ErrUnknownEvent indicates an operation named an event that was never registered.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrDuplicateEvent indicates RegisterEvent was called twice with the same name.
	ErrDuplicateEvent = errors.New("event already registered")

	// ErrEmptyEventName indicates RegisterEvent was called with an empty name.
	ErrEmptyEventName = errors.New("event name cannot be empty")

	// ErrNilCallback indicates On was called with a nil callback.
	ErrNilCallback = errors.New("callback cannot be nil")

	// ErrNilFunc indicates a triggerman was built around a nil function.
	ErrNilFunc = errors.New("function cannot be nil")
)

// Sentinel errors for dispatch.
var (
	// ErrNilContext indicates Trigger or Call was invoked with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrMaxDepth indicates nested dispatches exceeded the configured limit.
	ErrMaxDepth = errors.New("exceeded maximum dispatch depth")

	// ErrPayloadType indicates a payload element had an unexpected type.
	ErrPayloadType = errors.New("payload type mismatch")
)

// EventError wraps an error with the event it concerns.
type EventError struct {
	// Event is the event name.
	Event string
	// Op is the operation that failed ("register", "subscribe", "trigger", ...).
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EventError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("event %q: %s: %v", e.Event, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *EventError) Unwrap() error {
	return e.Err
}

// CallbackError reports a subscriber that failed during dispatch.
// The callback's error is kept unchanged in Err.
type CallbackError struct {
	// Event is the event being dispatched.
	Event string
	// Callback is the subscriber's name.
	Callback string
	// Index is the subscriber's position in the chain.
	Index int
	// Err is the error returned by the callback.
	Err error
}

// Error implements the error interface.
func (e *CallbackError) Error() string {
	return fmt.Sprintf("event %q: callback %d (%s): %v", e.Event, e.Index, e.Callback, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CallbackError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic recovered from a callback by RecoveryMiddleware.
// It includes the stack trace for debugging.
type PanicError struct {
	// Event is the event being dispatched.
	Event string
	// Callback is the subscriber that panicked.
	Callback string
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("event %q: callback %s panicked: %v", e.Event, e.Callback, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// MaxDepthError is returned when a dispatch would nest deeper than allowed.
type MaxDepthError struct {
	// Event is the event whose dispatch was refused.
	Event string
	// Max is the configured depth limit.
	Max int
}

// Error implements the error interface.
func (e *MaxDepthError) Error() string {
	return fmt.Sprintf("event %q: exceeded maximum dispatch depth (%d)", e.Event, e.Max)
}

// Unwrap returns ErrMaxDepth for errors.Is support.
func (e *MaxDepthError) Unwrap() error {
	return ErrMaxDepth
}

// PayloadTypeError reports a payload element that does not have the expected type.
type PayloadTypeError struct {
	// Event is the event whose payload was inspected. May be empty.
	Event string
	// Index is the element position.
	Index int
	// Want is the expected type.
	Want string
	// Got is the actual type, or "missing" when the payload was too short.
	Got string
}

// Error implements the error interface.
func (e *PayloadTypeError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("payload[%d]: want %s, got %s", e.Index, e.Want, e.Got)
	}
	return fmt.Sprintf("event %q: payload[%d]: want %s, got %s", e.Event, e.Index, e.Want, e.Got)
}

// Unwrap returns ErrPayloadType for errors.Is support.
func (e *PayloadTypeError) Unwrap() error {
	return ErrPayloadType
}
