package correlator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/callwatchio/callwatch/internal/types"
)

const (
	// Rate limit: 20 raw events/second
	eventRateLimit = 20
	eventRateBurst = 40

	// Channel buffer size
	eventBuffer = 64
)

// CallHistory recovers the caller's number when the modern callback source
// detects a ring without one. The store-backed implementation reads the most
// recent incoming entry from the communications log.
type CallHistory interface {
	LastIncomingNumber(ctx context.Context) (string, error)
}

// Correlator normalizes raw events from heterogeneous signal sources into a
// single deduplicated stream of call-lifecycle events.
type Correlator struct {
	logger  *zap.Logger
	history CallHistory // optional
	events  chan types.CorrelatedEvent
	limiter *rate.Limiter

	mu            sync.Mutex
	lastRawState  types.RawState
	number        string
	direction     types.Direction
	directionSet  bool
	sourceOfTruth types.SignalSourceKind
	outgoing      string // number primed via RecordOutgoingNumber

	closeOnce sync.Once
}

// Options configures the Correlator.
type Options struct {
	// History is optional; if nil, number recovery for the modern callback
	// source is disabled.
	History CallHistory
}

// New creates a new Correlator.
func New(logger *zap.Logger) *Correlator {
	return NewWithOptions(logger, Options{})
}

// NewWithOptions creates a new Correlator with options.
func NewWithOptions(logger *zap.Logger, opts Options) *Correlator {
	return &Correlator{
		logger:       logger.Named("correlator"),
		history:      opts.History,
		events:       make(chan types.CorrelatedEvent, eventBuffer),
		limiter:      rate.NewLimiter(eventRateLimit, eventRateBurst),
		lastRawState: types.RawIdle,
	}
}

// Events returns the channel of correlated call-lifecycle events.
func (c *Correlator) Events() <-chan types.CorrelatedEvent {
	return c.events
}

// RecordOutgoingNumber primes the number for an outgoing call ahead of the
// idle-to-connected transition. Supplied by the host, which knows the dialed
// number before the OS reports any state change.
func (c *Correlator) RecordOutgoingNumber(number string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outgoing = number
	c.logger.Debug("Outgoing number recorded", zap.String("number", number))
}

// SourceOfTruth returns the signal source that first established the current
// call's number. Empty until a call is in flight.
func (c *Correlator) SourceOfTruth() types.SignalSourceKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sourceOfTruth
}

// Ingest arbitrates a single raw source event, forwarding at most one
// correlated event downstream. Safe for concurrent use by multiple sources.
func (c *Correlator) Ingest(ctx context.Context, ev types.RawEvent) {
	if !c.limiter.Allow() {
		c.logger.Debug("Raw event rate limited", zap.String("source", string(ev.Source)))
		return
	}

	c.mu.Lock()
	out, needNumber := c.arbitrate(ev)
	c.mu.Unlock()

	if out == nil {
		return
	}
	if needNumber {
		c.recoverNumber(ctx, out)
	}

	select {
	case c.events <- *out:
	case <-ctx.Done():
	default:
		// Dropping is preferable to blocking a source callback.
		c.logger.Warn("Event channel full, dropping correlated event",
			zap.String("kind", string(out.Kind)))
	}
}

// arbitrate applies the source priority rules. Caller holds c.mu. needNumber
// reports that the event left the lock without a number and the call-history
// fallback should fill it in.
func (c *Correlator) arbitrate(ev types.RawEvent) (out *types.CorrelatedEvent, needNumber bool) {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	// The screening hook is authoritative for number and direction when it
	// arrives before any other source has set them. It never advances state.
	if ev.Source == types.SourceScreening {
		if c.number == "" && ev.PhoneNumber != "" {
			c.number = ev.PhoneNumber
			c.sourceOfTruth = types.SourceScreening
		}
		if !c.directionSet && ev.Direction != nil {
			c.direction = *ev.Direction
			c.directionSet = true
		}
		c.logger.Debug("Screening report absorbed",
			zap.String("number", c.number),
			zap.Bool("direction_set", c.directionSet))
		return nil, false
	}

	// Duplicate state reports are suppressed.
	if ev.State == c.lastRawState {
		c.logger.Debug("Duplicate raw state suppressed",
			zap.String("source", string(ev.Source)),
			zap.String("state", string(ev.State)))
		return nil, false
	}
	prev := c.lastRawState
	c.lastRawState = ev.State

	// The legacy broadcast supplies the number directly on ringing.
	if ev.PhoneNumber != "" && c.number == "" {
		c.number = ev.PhoneNumber
		c.sourceOfTruth = ev.Source
	}

	switch ev.State {
	case types.RawRinging:
		if prev != types.RawIdle {
			return nil, false
		}
		if !c.directionSet {
			c.direction = types.DirectionIncoming
			c.directionSet = true
		}
		needNumber = c.number == "" && ev.Source == types.SourceModernCallback
		return &types.CorrelatedEvent{
			Kind:        types.RingDetected,
			PhoneNumber: c.number,
			Direction:   c.direction,
			At:          at,
		}, needNumber

	case types.RawOffhook:
		if prev == types.RawIdle {
			// Connected without a preceding ring: outgoing call.
			c.direction = types.DirectionOutgoing
			c.directionSet = true
			if c.outgoing != "" && c.number == "" {
				c.number = c.outgoing
				c.sourceOfTruth = ev.Source
			}
		}
		return &types.CorrelatedEvent{
			Kind:        types.Connected,
			PhoneNumber: c.number,
			Direction:   c.direction,
			At:          at,
		}, false

	case types.RawIdle:
		out := &types.CorrelatedEvent{
			Kind:        types.Ended,
			PhoneNumber: c.number,
			Direction:   c.direction,
			At:          at,
		}
		c.resetLocked()
		return out, false
	}
	return nil, false
}

// recoverNumber consults the call-history log for the most recent incoming
// number. The modern callback API never carries one. The store query runs
// without c.mu held so a slow store cannot stall ingestion from other
// sources; the result is reconciled under the lock in case another source
// established the number in the meantime.
func (c *Correlator) recoverNumber(ctx context.Context, out *types.CorrelatedEvent) {
	if c.history == nil {
		return
	}
	number, err := c.history.LastIncomingNumber(ctx)
	if err != nil {
		c.logger.Warn("Call history lookup failed", zap.Error(err))
		return
	}

	c.mu.Lock()
	if number != "" && c.number == "" {
		c.number = number
		c.sourceOfTruth = types.SourceModernCallback
		c.logger.Debug("Number recovered from call history", zap.String("number", number))
	}
	out.PhoneNumber = c.number
	c.mu.Unlock()
}

// resetLocked clears per-call arbitration state. Caller holds c.mu.
func (c *Correlator) resetLocked() {
	c.number = ""
	c.directionSet = false
	c.direction = ""
	c.sourceOfTruth = ""
	c.outgoing = ""
}

// Close closes the event stream. No Ingest calls may follow.
func (c *Correlator) Close() {
	c.closeOnce.Do(func() { close(c.events) })
}
