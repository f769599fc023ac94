// Package source abstracts the OS notification channels that report raw call
// state. Each channel is a Source selected and registered once at startup;
// arbitration between them belongs to the correlator, never to a source.
package source

import (
	"context"

	"github.com/callwatchio/callwatch/internal/types"
)

// EventSink receives raw events from a registered source.
type EventSink func(types.RawEvent)

// Source is one OS notification channel.
//
// Implementations must not interpret events: they forward whatever subset of
// {state, number, direction} their channel reports, at whatever time it fires.
type Source interface {
	// Name returns a unique identifier for this source.
	// Examples: "screening-hook", "legacy-broadcast", "modern-callback".
	Name() string

	// Kind returns the signal source kind stamped on forwarded events.
	Kind() types.SignalSourceKind

	// Register hooks the source up and begins forwarding events to sink.
	// A permission failure is returned as an error; the registry treats it
	// as degraded detection, not a fatal condition.
	Register(ctx context.Context, sink EventSink) error

	// Unregister detaches the source. Idempotent.
	Unregister() error
}
