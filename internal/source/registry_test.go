package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/types"
)

type fakeSource struct {
	name        string
	kind        types.SignalSourceKind
	registerErr error

	mu           sync.Mutex
	registered   bool
	unregistered int
}

func (f *fakeSource) Name() string                 { return f.name }
func (f *fakeSource) Kind() types.SignalSourceKind { return f.kind }

func (f *fakeSource) Register(ctx context.Context, sink EventSink) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) Unregister() error {
	f.mu.Lock()
	f.unregistered++
	f.mu.Unlock()
	return nil
}

func TestRegistryAddDuplicate(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	require.NoError(t, r.Add(&fakeSource{name: "screening-hook"}))
	err := r.Add(&fakeSource{name: "screening-hook"})
	assert.Error(t, err)
	assert.Equal(t, 1, r.Count())
}

func TestRegisterAllContinuesOnFailure(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	good := &fakeSource{name: "legacy-broadcast", kind: types.SourceLegacyBroadcast}
	denied := &fakeSource{name: "screening-hook", kind: types.SourceScreening,
		registerErr: errors.New("permission denied")}
	require.NoError(t, r.Add(good))
	require.NoError(t, r.Add(denied))

	n := r.RegisterAll(context.Background(), func(types.RawEvent) {})
	assert.Equal(t, 1, n, "detection degrades, it does not abort")
	assert.True(t, r.Registered("legacy-broadcast"))
	assert.False(t, r.Registered("screening-hook"))
}

func TestRegisterAllIdempotent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	src := &fakeSource{name: "modern-callback"}
	require.NoError(t, r.Add(src))

	assert.Equal(t, 1, r.RegisterAll(context.Background(), func(types.RawEvent) {}))
	assert.Equal(t, 1, r.RegisterAll(context.Background(), func(types.RawEvent) {}))
}

func TestUnregisterAll(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	src := &fakeSource{name: "modern-callback"}
	require.NoError(t, r.Add(src))
	r.RegisterAll(context.Background(), func(types.RawEvent) {})

	r.UnregisterAll()
	assert.False(t, r.Registered("modern-callback"))
	assert.Equal(t, 1, src.unregistered)

	// Second pass is a no-op for already-detached sources.
	r.UnregisterAll()
	assert.Equal(t, 1, src.unregistered)
}

func TestChannelSourceForwardsAndStampsKind(t *testing.T) {
	in := make(chan types.RawEvent, 1)
	s := NewChannelSource("modern-callback", types.SourceModernCallback, in)

	out := make(chan types.RawEvent, 1)
	require.NoError(t, s.Register(context.Background(), func(ev types.RawEvent) {
		out <- ev
	}))
	defer s.Unregister()

	// The feeder stamped the wrong kind; the source corrects it.
	in <- types.RawEvent{Source: types.SourceScreening, State: types.RawRinging}

	select {
	case ev := <-out:
		assert.Equal(t, types.SourceModernCallback, ev.Source)
		assert.Equal(t, types.RawRinging, ev.State)
	case <-time.After(time.Second):
		t.Fatal("event was not forwarded")
	}
}

func TestChannelSourceUnregisterStopsForwarding(t *testing.T) {
	in := make(chan types.RawEvent, 4)
	s := NewChannelSource("legacy-broadcast", types.SourceLegacyBroadcast, in)

	var mu sync.Mutex
	var got int
	require.NoError(t, s.Register(context.Background(), func(types.RawEvent) {
		mu.Lock()
		got++
		mu.Unlock()
	}))

	in <- types.RawEvent{State: types.RawRinging}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Unregister())
	require.NoError(t, s.Unregister(), "unregister is idempotent")
}
