// Package engine owns the call session state machine. A single sequential
// event loop consumes correlated events and is the only writer of session
// state; blocking side effects (identity resolution, persistence, the
// auto-reply) run on worker goroutines whose results rejoin the loop.
package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/comms"
	"github.com/callwatchio/callwatch/internal/notify"
	"github.com/callwatchio/callwatch/internal/overlay"
	"github.com/callwatchio/callwatch/internal/resolver"
	"github.com/callwatchio/callwatch/internal/types"
)

// ErrNoSession is returned when a panel action arrives with no call in flight.
var ErrNoSession = errors.New("no active call session")

// effectBuffer bounds how many worker results can queue before workers block
// waiting for the loop.
const effectBuffer = 16

// EventStream is the correlator surface the engine consumes.
type EventStream interface {
	Events() <-chan types.CorrelatedEvent
	SourceOfTruth() types.SignalSourceKind
}

// LeadStore is the subset of the relational store the engine touches directly.
// Lookup goes through the resolver; this covers the save-contact path and the
// category labels shown on the form panel.
type LeadStore interface {
	InsertLead(ctx context.Context, lead types.CallerRecord) (int64, error)
	ListLabels(ctx context.Context) []string
}

// Engine drives call sessions from Ringing through Ended, coordinating the
// overlay, the caller resolver, communication logging and host notifications.
// At most one session exists at a time.
type Engine struct {
	logger    *zap.Logger
	stream    EventStream
	resolver  *resolver.Resolver
	overlay   *overlay.Manager
	leads     LeadStore
	comms     *comms.Logger
	responder *comms.AutoResponder
	sink      notify.Sink

	effects chan func()
	wg      sync.WaitGroup

	mu             sync.Mutex
	session        *types.CallSession
	caller         *types.CallerRecord
	stopSupervisor context.CancelFunc
}

// New creates an Engine. sink must not be nil; use notify.NopSink for
// headless operation.
func New(
	stream EventStream,
	res *resolver.Resolver,
	ovl *overlay.Manager,
	leads LeadStore,
	commLog *comms.Logger,
	responder *comms.AutoResponder,
	sink notify.Sink,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		logger:    logger.Named("engine"),
		stream:    stream,
		resolver:  res,
		overlay:   ovl,
		leads:     leads,
		comms:     commLog,
		responder: responder,
		sink:      sink,
		effects:   make(chan func(), effectBuffer),
	}
}

// Run consumes the event stream until ctx is cancelled or the stream closes.
// It is the only goroutine that mutates session state; call it exactly once.
func (e *Engine) Run(ctx context.Context) error {
	// Derived so that workers never outlive the loop, even when the stream
	// closes before the outer context is cancelled.
	ctx, cancel := context.WithCancel(ctx)
	e.overlay.SetTapHandler(func() { e.handleTap(ctx) })

	defer func() {
		cancel()
		e.teardown()
		e.wg.Wait()
	}()

	events := e.stream.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.effects:
			fn()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			e.handleEvent(ctx, ev)
		}
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev types.CorrelatedEvent) {
	callEventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	switch ev.Kind {
	case types.RingDetected:
		e.handleRing(ctx, ev)
	case types.Connected:
		e.handleConnected(ctx, ev)
	case types.Ended:
		e.handleEnded(ctx, ev)
	default:
		e.logger.Warn("Unknown event kind", zap.String("kind", string(ev.Kind)))
	}
}

// handleRing transitions Idle -> Ringing. A ring while a session is already in
// flight is a correlator artifact and is ignored.
func (e *Engine) handleRing(ctx context.Context, ev types.CorrelatedEvent) {
	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		e.logger.Debug("Ring during existing session, ignoring",
			zap.String("number", ev.PhoneNumber))
		return
	}
	e.mu.Unlock()

	e.beginSession(ctx, ev)
}

// handleConnected transitions Ringing -> Active. An offhook with no prior ring
// is an outgoing call being placed; the OS reports only that single
// idle-to-offhook transition, so the session opens and goes Active in one
// step: there is no later answer signal to wait for.
func (e *Engine) handleConnected(ctx context.Context, ev types.CorrelatedEvent) {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()

	if sess == nil {
		if ev.Direction != types.DirectionOutgoing {
			e.logger.Debug("Connected with no session and no outgoing hint, ignoring")
			return
		}
		if e.beginSession(ctx, ev) {
			e.activate(ctx, ev)
		}
		return
	}

	e.activate(ctx, ev)
}

// activate transitions the current session from Ringing to Active: records
// StartedAt, pins the indicator, starts the healing supervisor and notifies
// the host. No-op unless a session is Ringing.
func (e *Engine) activate(ctx context.Context, ev types.CorrelatedEvent) {
	e.mu.Lock()
	if e.session == nil || e.session.State != types.StateRinging {
		e.mu.Unlock()
		return
	}
	e.session.State = types.StateActive
	e.session.StartedAt = ev.At
	sess := e.session
	e.stopSupervisor = e.overlay.StartSupervisor(ctx)
	e.mu.Unlock()

	e.overlay.SetPinned(true)
	e.overlay.ShowIndicator()

	e.logger.Info("Call active",
		zap.String("session_id", sess.ID.String()),
		zap.String("direction", string(sess.Direction)),
	)
	e.notify(ctx, notify.EventCallStarted, map[string]any{
		"phoneNumber": sess.PhoneNumber,
		"direction":   string(sess.Direction),
		"timestamp":   ev.At.Format(time.RFC3339),
	})
}

// handleEnded closes the session: persist the call record, fire the auto-reply
// for incoming calls, tear down the overlay and reset to Idle. A call that was
// never answered gets duration zero.
func (e *Engine) handleEnded(ctx context.Context, ev types.CorrelatedEvent) {
	e.mu.Lock()
	sess := e.session
	caller := e.caller
	if sess == nil {
		e.mu.Unlock()
		e.logger.Debug("Ended with no session, ignoring")
		return
	}
	e.session = nil
	e.caller = nil
	e.stopSupervisorLocked()
	e.mu.Unlock()

	var duration time.Duration
	if sess.Started() {
		duration = ev.At.Sub(sess.StartedAt)
		if duration < 0 {
			duration = 0
		}
	}
	answered := sess.Started()

	e.overlay.SetPinned(false)
	e.overlay.HideAll()
	e.resolver.Reset()

	callsEndedTotal.WithLabelValues(string(sess.Direction), boolLabel(answered)).Inc()
	e.logger.Info("Call ended",
		zap.String("session_id", sess.ID.String()),
		zap.String("direction", string(sess.Direction)),
		zap.Duration("duration", duration),
		zap.Bool("answered", answered),
	)

	var leadID int64
	if caller != nil {
		leadID = caller.ID
	}
	number := sess.PhoneNumber
	direction := sess.Direction
	at := ev.At

	// Persistence and the auto-reply hit the store and the SMS transport;
	// keep them off the event loop.
	e.dispatch(ctx, func(ctx context.Context) func() {
		status := "completed"
		if !answered {
			status = "missed"
		}
		if err := e.comms.LogCommunication(ctx, types.CommunicationRecord{
			LeadID:    leadID,
			Type:      types.CommCall,
			Direction: direction,
			Recipient: number,
			Timestamp: at,
			Status:    status,
			Metadata:  durationMetadata(duration),
		}); err != nil {
			e.logger.Warn("Call log write failed", zap.Error(err))
		}
		if direction == types.DirectionIncoming {
			e.responder.MaybeReply(ctx, number, leadID)
		}
		return nil
	})

	e.notify(ctx, notify.EventCallEnded, map[string]any{
		"phoneNumber": number,
		"direction":   string(direction),
		"duration":    int64(duration.Seconds()),
		"answered":    answered,
		"timestamp":   at.Format(time.RFC3339),
	})
}

// beginSession opens a new session in Ringing, shows the overlay and kicks off
// asynchronous identity resolution. Numbers with fewer than six digits never
// produce a session. Reports whether a session was opened.
func (e *Engine) beginSession(ctx context.Context, ev types.CorrelatedEvent) bool {
	if !resolver.Valid(ev.PhoneNumber) {
		invalidNumberTotal.Inc()
		e.logger.Warn("Dropping call signal with invalid number",
			zap.String("number", ev.PhoneNumber))
		return false
	}

	sess := &types.CallSession{
		ID:            uuid.New(),
		PhoneNumber:   ev.PhoneNumber,
		Direction:     ev.Direction,
		State:         types.StateRinging,
		SourceOfTruth: e.stream.SourceOfTruth(),
	}

	e.mu.Lock()
	if e.session != nil {
		e.mu.Unlock()
		return false
	}
	e.session = sess
	e.mu.Unlock()

	e.logger.Info("Call session opened",
		zap.String("session_id", sess.ID.String()),
		zap.String("direction", string(sess.Direction)),
		zap.String("source_of_truth", string(sess.SourceOfTruth)),
	)

	e.overlay.ShowIndicator()
	e.overlay.ShowPanel(overlay.PanelViewModel{
		Kind:        overlay.PanelLoading,
		PhoneNumber: sess.PhoneNumber,
	})

	event := notify.EventIncomingCall
	if sess.Direction == types.DirectionOutgoing {
		event = notify.EventOutgoingCall
	}
	e.notify(ctx, event, map[string]any{
		"phoneNumber": sess.PhoneNumber,
		"timestamp":   ev.At.Format(time.RFC3339),
	})

	// Resolution hits the store; run it off the loop and rejoin with the
	// result. Auto-create only for incoming callers.
	sessID := sess.ID
	autoCreate := sess.Direction == types.DirectionIncoming
	e.dispatch(ctx, func(ctx context.Context) func() {
		rec, created := e.resolver.Resolve(ctx, sess.PhoneNumber, autoCreate)
		return func() { e.applyResolution(ctx, sessID, rec, created) }
	})
	return true
}

// applyResolution runs on the event loop once the resolver returns. The result
// is discarded if the session it belongs to is already gone.
func (e *Engine) applyResolution(ctx context.Context, sessID uuid.UUID, rec *types.CallerRecord, created bool) {
	e.mu.Lock()
	if e.session == nil || e.session.ID != sessID {
		e.mu.Unlock()
		return
	}
	e.caller = rec
	sess := e.session
	e.mu.Unlock()

	e.overlay.ShowPanel(e.panelFor(ctx, sess, rec))

	if created && rec != nil {
		e.notify(ctx, notify.EventNewLeadSaved, map[string]any{
			"leadId":      rec.ID,
			"name":        rec.Name,
			"phoneNumber": rec.PhoneNumber,
			"category":    rec.Category,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// SaveContact persists the identity entered on the form panel for the current
// session's number, refreshes the panel to the saved view and notifies the
// host. Invoked from the panel's save callback.
func (e *Engine) SaveContact(ctx context.Context, name, email, category string) error {
	e.mu.Lock()
	sess := e.session
	e.mu.Unlock()
	if sess == nil {
		return ErrNoSession
	}

	lead := types.CallerRecord{
		Name:        name,
		PhoneNumber: sess.PhoneNumber,
		Email:       email,
		Category:    category,
		Status:      "New",
	}
	id, err := e.leads.InsertLead(ctx, lead)
	if err != nil {
		e.logger.Error("Save contact failed", zap.Error(err))
		return err
	}
	lead.ID = id
	e.logger.Info("Contact saved from call panel",
		zap.Int64("lead_id", id),
		zap.String("category", category),
	)

	e.mu.Lock()
	if e.session != nil && e.session.ID == sess.ID {
		e.caller = &lead
	}
	e.mu.Unlock()

	e.overlay.ShowPanel(e.panelFor(ctx, sess, &lead))

	e.notify(ctx, notify.EventSaveContact, map[string]any{
		"name":        name,
		"phoneNumber": sess.PhoneNumber,
		"category":    category,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	e.notify(ctx, notify.EventNewLeadSaved, map[string]any{
		"leadId":      id,
		"name":        name,
		"phoneNumber": sess.PhoneNumber,
		"category":    category,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	return nil
}

// Session returns a copy of the in-flight session, or nil when idle.
func (e *Engine) Session() *types.CallSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	cp := *e.session
	return &cp
}

// handleTap toggles the panel from the indicator, re-using whatever content
// the session currently has.
func (e *Engine) handleTap(ctx context.Context) {
	e.mu.Lock()
	sess := e.session
	caller := e.caller
	e.mu.Unlock()
	if sess == nil {
		return
	}
	e.overlay.TogglePanel(e.panelFor(ctx, sess, caller))
}

// panelFor builds the panel content for the session: the saved view when the
// caller resolved, otherwise the new-contact form.
func (e *Engine) panelFor(ctx context.Context, sess *types.CallSession, caller *types.CallerRecord) overlay.PanelViewModel {
	if caller != nil {
		return overlay.PanelViewModel{
			Kind:        overlay.PanelSaved,
			PhoneNumber: sess.PhoneNumber,
			Caller:      caller,
		}
	}
	return overlay.PanelViewModel{
		Kind:        overlay.PanelForm,
		PhoneNumber: sess.PhoneNumber,
		Labels:      e.leads.ListLabels(ctx),
		OnSave: func(name, email, category string) {
			if err := e.SaveContact(ctx, name, email, category); err != nil {
				e.logger.Warn("Panel save rejected", zap.Error(err))
			}
		},
	}
}

// dispatch runs fn on a worker goroutine. The returned closure, if any, is
// handed back to the event loop, which is the only place session state may be
// mutated.
func (e *Engine) dispatch(ctx context.Context, fn func(context.Context) func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		apply := fn(ctx)
		if apply == nil {
			return
		}
		select {
		case e.effects <- apply:
		case <-ctx.Done():
		}
	}()
}

func (e *Engine) notify(ctx context.Context, event string, payload map[string]any) {
	if err := e.sink.Notify(ctx, event, payload); err != nil {
		e.logger.Warn("Host notification failed",
			zap.String("event", event),
			zap.Error(err),
		)
	}
}

// teardown force-hides the overlay and drops any in-flight session. Run calls
// it on the way out so no widget outlives the engine.
func (e *Engine) teardown() {
	e.mu.Lock()
	e.stopSupervisorLocked()
	e.session = nil
	e.caller = nil
	e.mu.Unlock()

	e.overlay.SetPinned(false)
	e.overlay.HideAll()
	e.logger.Info("Engine stopped")
}

// stopSupervisorLocked cancels the overlay supervisor if one is running.
// Caller holds e.mu.
func (e *Engine) stopSupervisorLocked() {
	if e.stopSupervisor != nil {
		e.stopSupervisor()
		e.stopSupervisor = nil
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func durationMetadata(d time.Duration) string {
	return "duration_seconds:" + strconv.FormatInt(int64(d.Seconds()), 10)
}
