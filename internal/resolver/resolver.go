// Package resolver matches normalized phone numbers against the lead store,
// auto-creating records for unknown incoming callers.
package resolver

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/types"
)

// LeadStore is the subset of the relational store the resolver needs.
type LeadStore interface {
	ListLeads(ctx context.Context) ([]types.CallerRecord, error)
	InsertLead(ctx context.Context, lead types.CallerRecord) (int64, error)
}

// ContactBook is an optional secondary lookup for a display name when an
// unknown number is auto-created (e.g. the OS contact store).
type ContactBook interface {
	DisplayName(ctx context.Context, phoneNumber string) (string, bool)
}

// Resolver resolves caller identities. Results are memoized per distinct raw
// number for the lifetime of a call session; the cache must be dropped when
// the session ends.
type Resolver struct {
	logger   *zap.Logger
	store    LeadStore
	contacts ContactBook // optional

	mu    sync.Mutex
	cache map[string]*types.CallerRecord
}

// New creates a Resolver. contacts may be nil.
func New(store LeadStore, contacts ContactBook, logger *zap.Logger) *Resolver {
	return &Resolver{
		logger:   logger.Named("resolver"),
		store:    store,
		contacts: contacts,
		cache:    make(map[string]*types.CallerRecord),
	}
}

// Resolve looks up the caller record for phoneNumber. Returns nil when the
// number is invalid or no identity could be established; store failures
// degrade to an unresolved identity, they never fail the call path. When
// autoCreate is true (incoming calls) and no match exists, a new lead is
// persisted with a placeholder or contact-book name and re-resolved to obtain
// its assigned id; created reports that this happened.
func (r *Resolver) Resolve(ctx context.Context, phoneNumber string, autoCreate bool) (rec *types.CallerRecord, created bool) {
	key := Normalize(phoneNumber)
	if len(key) < MinDigits {
		r.logger.Debug("Rejecting short number", zap.String("normalized", key))
		return nil, false
	}

	r.mu.Lock()
	if cached, ok := r.cache[phoneNumber]; ok {
		r.mu.Unlock()
		return cached, false
	}
	r.mu.Unlock()

	rec = r.lookup(ctx, key)
	if rec == nil && autoCreate {
		rec = r.createLead(ctx, phoneNumber, key)
		created = rec != nil
	}

	// Memoize whatever we found, including a miss, so the session never
	// re-queries the same number.
	r.mu.Lock()
	r.cache[phoneNumber] = rec
	r.mu.Unlock()
	return rec, created
}

// lookup scans all leads and returns the first whose normalized stored number
// matches exactly. No fuzzy or partial matching.
func (r *Resolver) lookup(ctx context.Context, normalized string) *types.CallerRecord {
	leads, err := r.store.ListLeads(ctx)
	if err != nil {
		r.logger.Warn("Lead store unavailable, proceeding unresolved", zap.Error(err))
		return nil
	}
	for i := range leads {
		if Normalize(leads[i].PhoneNumber) == normalized {
			return &leads[i]
		}
	}
	return nil
}

// createLead persists a new lead for an unknown incoming number and
// re-resolves it for the assigned id.
//
// Two near-simultaneous calls from the same unknown number can race past the
// initial lookup and create duplicate leads; the store's phone index narrows
// but does not close that window.
func (r *Resolver) createLead(ctx context.Context, phoneNumber, normalized string) *types.CallerRecord {
	name := types.PlaceholderName
	if r.contacts != nil {
		if display, ok := r.contacts.DisplayName(ctx, phoneNumber); ok && display != "" {
			name = display
		}
	}

	lead := types.CallerRecord{
		Name:        name,
		PhoneNumber: phoneNumber,
		Category:    "General",
		Status:      "New",
	}
	id, err := r.store.InsertLead(ctx, lead)
	if err != nil {
		r.logger.Warn("Auto-create lead failed", zap.Error(err))
		return nil
	}
	r.logger.Info("Auto-created lead for unknown caller",
		zap.Int64("lead_id", id),
		zap.String("name", name),
	)

	if rec := r.lookup(ctx, normalized); rec != nil {
		return rec
	}
	// Store round-trip failed after insert; fall back to the inserted values.
	lead.ID = id
	return &lead
}

// Reset drops the per-session memoization. Called when the session ends so no
// identity outlives the call.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.cache = make(map[string]*types.CallerRecord)
	r.mu.Unlock()
}
