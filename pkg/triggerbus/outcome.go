package triggerbus

import "fmt"

type outcomeKind uint8

const (
	kindContinue outcomeKind = iota
	kindModify
	kindStop
)

// Outcome is what a callback tells the dispatcher to do next.
//
// Build one with Continue, ModifyPayload or StopExecution. The zero
// Outcome is Continue.
type Outcome struct {
	kind        outcomeKind
	payload     Payload
	result      any
	triggerPost bool
}

// Continue leaves the payload unchanged and moves on to the next subscriber.
func Continue() Outcome {
	return Outcome{}
}

// ModifyPayload replaces the working payload with values. Later subscribers,
// and the caller once the dispatch ends, see the new payload.
func ModifyPayload(values ...any) Outcome {
	if values == nil {
		values = []any{}
	}
	return Outcome{kind: kindModify, payload: Payload(values)}
}

// StopExecution ends the dispatch. Remaining subscribers do not run.
//
// result is handed back to the caller of Trigger as Result.Value. When the
// dispatch is a triggerman's pre event, result becomes the call's return
// value and triggerPost decides whether the post event still fires.
func StopExecution(result any, triggerPost bool) Outcome {
	return Outcome{kind: kindStop, result: result, triggerPost: triggerPost}
}

// IsContinue reports whether o leaves the payload unchanged.
func (o Outcome) IsContinue() bool { return o.kind == kindContinue }

// IsModify reports whether o replaces the payload.
func (o Outcome) IsModify() bool { return o.kind == kindModify }

// IsStop reports whether o ends the dispatch.
func (o Outcome) IsStop() bool { return o.kind == kindStop }

// Payload returns the replacement payload of a ModifyPayload outcome.
func (o Outcome) Payload() Payload { return o.payload }

// Result returns the value carried by a StopExecution outcome.
func (o Outcome) Result() any { return o.result }

// TriggerPost returns the post-event flag of a StopExecution outcome.
func (o Outcome) TriggerPost() bool { return o.triggerPost }

// String returns a short description for logs.
func (o Outcome) String() string {
	switch o.kind {
	case kindModify:
		return fmt.Sprintf("modify(%d)", len(o.payload))
	case kindStop:
		return fmt.Sprintf("stop(trigger_post=%t)", o.triggerPost)
	default:
		return "continue"
	}
}

// Result describes how a dispatch ended.
type Result struct {
	// Payload is the final working payload. It is the caller's own slice
	// when no subscriber rewrote it.
	Payload Payload

	// Stopped is true when a subscriber returned StopExecution.
	Stopped bool

	// Value is the StopExecution result. Nil unless Stopped.
	Value any

	// TriggerPost is the StopExecution post-event flag. False unless Stopped.
	TriggerPost bool
}
