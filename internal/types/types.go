package types

import (
	"time"

	"github.com/google/uuid"
)

// SignalSourceKind identifies which OS notification channel produced a raw event.
type SignalSourceKind string

const (
	// SourceScreening is the pre-ring screening hook. It is authoritative for
	// phone number and direction but never advances call state.
	SourceScreening SignalSourceKind = "screening"
	// SourceLegacyBroadcast is the legacy state broadcast. It supplies the
	// phone number for incoming calls directly.
	SourceLegacyBroadcast SignalSourceKind = "legacy-broadcast"
	// SourceModernCallback is the modern state-callback API. It reports state
	// only and never carries a phone number.
	SourceModernCallback SignalSourceKind = "modern-callback"
)

// RawState mirrors the OS telephony tri-state.
type RawState string

const (
	RawIdle    RawState = "idle"
	RawRinging RawState = "ringing"
	RawOffhook RawState = "offhook"
)

// Direction indicates who initiated the call.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// CallState is the canonical lifecycle state of a call session.
type CallState string

const (
	StateIdle    CallState = "idle"
	StateRinging CallState = "ringing"
	StateActive  CallState = "active"
	StateEnded   CallState = "ended"
)

// RawEvent is an unarbitrated report from a single signal source. Sources fire
// at different times with different payload completeness; only the correlator
// may interpret them.
type RawEvent struct {
	Source      SignalSourceKind
	State       RawState
	PhoneNumber string     // empty when the source does not know it
	Direction   *Direction // nil when the source cannot tell
	At          time.Time
}

// EventKind classifies a correlated, deduplicated call-lifecycle event.
type EventKind string

const (
	RingDetected EventKind = "ring-detected"
	Connected    EventKind = "connected"
	Ended        EventKind = "ended"
)

// CorrelatedEvent is the normalized output of the correlator, feeding the
// state machine.
type CorrelatedEvent struct {
	Kind        EventKind
	PhoneNumber string
	Direction   Direction
	At          time.Time
}

// CallSession is the single in-flight call being tracked. At most one exists
// at any time; the engine is its only owner.
type CallSession struct {
	ID            uuid.UUID
	PhoneNumber   string
	Direction     Direction
	State         CallState
	StartedAt     time.Time // zero until the session reaches StateActive
	SourceOfTruth SignalSourceKind
}

// Started reports whether the call was ever answered.
func (s *CallSession) Started() bool { return !s.StartedAt.IsZero() }

// CallerRecord is a resolved identity from the lead store. ID == 0 means the
// record has not been persisted.
type CallerRecord struct {
	ID          int64
	Name        string
	PhoneNumber string
	Email       string
	Category    string
	Status      string
	IsVIP       bool
	PhotoURL    string
	CreatedAt   time.Time
}

// CommType is the kind of communication being logged.
type CommType string

const (
	CommCall     CommType = "call"
	CommSMS      CommType = "sms"
	CommEmail    CommType = "email"
	CommWhatsApp CommType = "whatsapp"
)

// CommunicationRecord is an append-only log entry. Records are never updated
// or deleted by this engine, and never written for an unresolved caller
// (LeadID == 0).
type CommunicationRecord struct {
	LeadID    int64
	Type      CommType
	Direction Direction
	Recipient string
	Subject   string
	Body      string
	Timestamp time.Time
	Status    string
	Metadata  string
}

// Task is an entry in the follow-up task list attached to a lead.
type Task struct {
	ID        int64
	Task      string
	LeadID    int64
	Priority  string
	IsDone    bool
	CreatedAt time.Time
}

// Settings keys for the runtime auto-reply policy.
const (
	SettingAutoMessagesEnabled = "auto_messages_enabled"
	SettingAutoMessageText     = "auto_message_text"
)

// PlaceholderName is used when an unknown caller is auto-created and no
// contact book name can be resolved.
const PlaceholderName = "Unknown Caller"
