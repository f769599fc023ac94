// Package overlay owns the lifetime of the two on-screen call affordances:
// the persistent indicator and the info/form panel. It enforces at most one
// live handle per kind and heals a lost indicator while a call is active.
package overlay

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/types"
)

// DefaultSupervisorInterval is how often the supervisor re-checks the
// indicator while a call is active.
const DefaultSupervisorInterval = 2 * time.Second

// ErrIndicatorPinned is returned when a non-forced hide is refused because a
// call is active. The caller-ID affordance must not be dismissible mid-call.
var ErrIndicatorPinned = errors.New("indicator pinned during active call")

// Handle is an opaque ownership token for a displayed resource. Its lifetime
// is bound to the process; it is never serialized.
type Handle interface{}

// PanelKind selects which panel view is rendered.
type PanelKind string

const (
	PanelLoading PanelKind = "loading"
	PanelSaved   PanelKind = "saved"
	PanelForm    PanelKind = "form"
)

// PanelViewModel describes the panel content. Saved carries the resolved
// caller; Form carries the number, category labels and a save callback.
type PanelViewModel struct {
	Kind        PanelKind
	PhoneNumber string
	Caller      *types.CallerRecord
	Labels      []string
	OnSave      func(name, email, category string)
}

// Renderer constructs the actual widgets. It is an external collaborator; the
// manager only tracks handle ownership.
type Renderer interface {
	RenderIndicator(onTap func()) (Handle, error)
	RenderPanel(vm PanelViewModel) (Handle, error)
	Destroy(h Handle) error
}

// Manager tracks the Hidden/Shown state of both overlay resources. All state
// transitions are serialized behind one mutex: two concurrent show calls for
// the same kind can never both allocate a handle.
type Manager struct {
	logger           *zap.Logger
	renderer         Renderer
	supervisorPeriod time.Duration

	mu        sync.Mutex
	indicator Handle // nil = hidden
	panel     Handle // nil = hidden
	pinned    bool
	onTap     func()
}

// Options configures the Manager.
type Options struct {
	// SupervisorInterval defaults to DefaultSupervisorInterval.
	SupervisorInterval time.Duration
}

// New creates a Manager.
func New(renderer Renderer, logger *zap.Logger) *Manager {
	return NewWithOptions(renderer, logger, Options{})
}

// NewWithOptions creates a Manager with options.
func NewWithOptions(renderer Renderer, logger *zap.Logger, opts Options) *Manager {
	period := opts.SupervisorInterval
	if period <= 0 {
		period = DefaultSupervisorInterval
	}
	return &Manager{
		logger:           logger.Named("overlay"),
		renderer:         renderer,
		supervisorPeriod: period,
	}
}

// SetTapHandler installs the indicator tap callback used by subsequent
// ShowIndicator calls.
func (m *Manager) SetTapHandler(fn func()) {
	m.mu.Lock()
	m.onTap = fn
	m.mu.Unlock()
}

// SetPinned marks the indicator as non-dismissible. The engine pins it while
// the session is active.
func (m *Manager) SetPinned(pinned bool) {
	m.mu.Lock()
	m.pinned = pinned
	m.mu.Unlock()
}

// ShowIndicator renders the indicator if it is hidden. No-op when already
// shown. A renderer failure leaves the state hidden and is logged, not
// retried synchronously; the supervisor retries while the call is active.
func (m *Manager) ShowIndicator() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showIndicatorLocked()
}

func (m *Manager) showIndicatorLocked() {
	if m.indicator != nil {
		return
	}
	h, err := m.renderer.RenderIndicator(m.onTap)
	if err != nil {
		m.logger.Warn("Indicator render failed, overlay degraded", zap.Error(err))
		return
	}
	m.indicator = h
	m.logger.Debug("Indicator shown")
}

// ShowPanel renders the panel with the given content. Re-invocation refreshes
// the content as hide-then-show, keeping handle ownership consistent instead
// of mutating a live widget.
func (m *Manager) ShowPanel(vm PanelViewModel) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panel != nil {
		if err := m.renderer.Destroy(m.panel); err != nil {
			m.logger.Warn("Panel destroy failed during refresh", zap.Error(err))
		}
		m.panel = nil
	}
	h, err := m.renderer.RenderPanel(vm)
	if err != nil {
		m.logger.Warn("Panel render failed, overlay degraded", zap.Error(err))
		return
	}
	m.panel = h
	m.logger.Debug("Panel shown", zap.String("kind", string(vm.Kind)))
}

// HideIndicator releases the indicator handle. A non-forced hide is refused
// while the indicator is pinned; force is used at genuine call end and
// teardown and always succeeds.
func (m *Manager) HideIndicator(force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pinned && !force {
		return ErrIndicatorPinned
	}
	if m.indicator == nil {
		return nil
	}
	if err := m.renderer.Destroy(m.indicator); err != nil {
		m.logger.Warn("Indicator destroy failed", zap.Error(err))
	}
	m.indicator = nil
	m.logger.Debug("Indicator hidden", zap.Bool("force", force))
	return nil
}

// HidePanel releases the panel handle. Always succeeds; idempotent.
func (m *Manager) HidePanel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panel == nil {
		return
	}
	if err := m.renderer.Destroy(m.panel); err != nil {
		m.logger.Warn("Panel destroy failed", zap.Error(err))
	}
	m.panel = nil
	m.logger.Debug("Panel hidden")
}

// HideAll force-hides both resources. Used at call end and engine teardown so
// no overlay state outlives the call.
func (m *Manager) HideAll() {
	if err := m.HideIndicator(true); err != nil {
		m.logger.Warn("Forced indicator hide failed", zap.Error(err))
	}
	m.HidePanel()
}

// IndicatorShown reports whether the indicator currently holds a live handle.
func (m *Manager) IndicatorShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indicator != nil
}

// PanelShown reports whether the panel currently holds a live handle.
func (m *Manager) PanelShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panel != nil
}

// TogglePanel shows the panel with the given content if hidden, hides it if
// shown. Bound to the indicator tap.
func (m *Manager) TogglePanel(vm PanelViewModel) {
	if m.PanelShown() {
		m.HidePanel()
		return
	}
	m.ShowPanel(vm)
}

// StartSupervisor launches the healing loop: while the returned cancel has
// not fired, the indicator is re-shown whenever the renderer loses it (the
// host may reclaim display space without telling us). Cancellation is
// synchronous; the loop observes it on the next tick at the latest and the
// returned cancel prevents any further heal.
func (m *Manager) StartSupervisor(ctx context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(m.supervisorPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.healIndicator(ctx)
			}
		}
	}()
	m.logger.Debug("Supervisor started", zap.Duration("interval", m.supervisorPeriod))
	return cancel
}

// healIndicator re-shows a lost indicator. Checked under the same mutex as
// every other overlay mutation, so a heal can never race a hide. Only a
// re-render that actually acquired a handle counts as a heal.
func (m *Manager) healIndicator(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil || m.indicator != nil {
		return
	}
	m.logger.Info("Indicator lost during active call, healing")
	m.showIndicatorLocked()
	if m.indicator != nil {
		supervisorHeals.Inc()
	}
}
