package source

import (
	"context"
	"sync"

	"github.com/callwatchio/callwatch/internal/types"
)

// ChannelSource adapts an externally fed event stream into a Source. The
// daemon uses one per signal kind to bridge the host's transport (control
// socket, test harness) into the registry.
type ChannelSource struct {
	name string
	kind types.SignalSourceKind
	in   <-chan types.RawEvent

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewChannelSource creates a ChannelSource reading from in.
func NewChannelSource(name string, kind types.SignalSourceKind, in <-chan types.RawEvent) *ChannelSource {
	return &ChannelSource{name: name, kind: kind, in: in}
}

// Name implements Source.
func (s *ChannelSource) Name() string { return s.name }

// Kind implements Source.
func (s *ChannelSource) Kind() types.SignalSourceKind { return s.kind }

// Register implements Source. Forwards events from the channel until the
// context is cancelled, the channel closes, or Unregister is called. Events
// are stamped with this source's kind regardless of what the feeder set.
func (s *ChannelSource) Register(ctx context.Context, sink EventSink) error {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		cancel()
		return nil // already registered
	}
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-s.in:
				if !ok {
					return
				}
				ev.Source = s.kind
				sink(ev)
			}
		}
	}()
	return nil
}

// Unregister implements Source.
func (s *ChannelSource) Unregister() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return nil
}
