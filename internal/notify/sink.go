// Package notify delivers call-lifecycle events to the host application.
package notify

import "context"

// Event names understood by the host.
const (
	EventIncomingCall = "onIncomingCall"
	EventOutgoingCall = "onOutgoingCall"
	EventCallStarted  = "onCallStarted"
	EventCallEnded    = "onCallEnded"
	EventNewLeadSaved = "onNewLeadSaved"
	EventSaveContact  = "saveContact"
	EventSendSMS      = "sendSms"
)

// Sink is the host notification bridge. Implementations handle their own
// async delivery; a Notify call must never block call-state tracking.
type Sink interface {
	// Name returns the sink's identifier (e.g., "webhook", "nop").
	Name() string

	// Notify delivers one named event with its payload.
	Notify(ctx context.Context, event string, payload map[string]any) error

	// Start begins any background workers. Non-blocking.
	Start(ctx context.Context)
}

// NopSink discards all events. Used in tests and headless operation.
type NopSink struct{}

func (NopSink) Name() string                                         { return "nop" }
func (NopSink) Notify(context.Context, string, map[string]any) error { return nil }
func (NopSink) Start(context.Context)                                {}
