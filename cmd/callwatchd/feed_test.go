package main

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/correlator"
	"github.com/callwatchio/callwatch/internal/types"
)

func newTestFeed() (*feed, *correlator.Correlator) {
	corr := correlator.New(zap.NewNop())
	return newFeed(corr, nil, zap.NewNop()), corr
}

func receiveRaw(t *testing.T, ch <-chan types.RawEvent) types.RawEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no raw event arrived")
		return types.RawEvent{}
	}
}

func TestHandleSignalRoutesBySource(t *testing.T) {
	f, _ := newTestFeed()
	ctx := context.Background()

	f.handleLine(ctx, []byte(`{"source":"legacy-broadcast","state":"ringing","phoneNumber":"5550123456","direction":"incoming"}`))

	ev := receiveRaw(t, f.channel(types.SourceLegacyBroadcast))
	assert.Equal(t, types.SourceLegacyBroadcast, ev.Source)
	assert.Equal(t, types.RawRinging, ev.State)
	assert.Equal(t, "5550123456", ev.PhoneNumber)
	require.NotNil(t, ev.Direction)
	assert.Equal(t, types.DirectionIncoming, *ev.Direction)
	assert.False(t, ev.At.IsZero(), "missing timestamp is filled in")
}

func TestHandleSignalUnknownSourceDropped(t *testing.T) {
	f, _ := newTestFeed()
	f.handleLine(context.Background(), []byte(`{"source":"carrier-pigeon","state":"ringing"}`))

	select {
	case ev := <-f.channel(types.SourceLegacyBroadcast):
		t.Fatalf("unexpected event routed: %+v", ev)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleLineMalformedJSON(t *testing.T) {
	f, _ := newTestFeed()
	// Must not panic.
	f.handleLine(context.Background(), []byte(`{not json`))
}

func TestOutgoingOpPrimesCorrelator(t *testing.T) {
	f, corr := newTestFeed()
	ctx := context.Background()

	f.handleLine(ctx, []byte(`{"op":"outgoing","phoneNumber":"5550123456"}`))

	// The primed number surfaces on the next idle-to-offhook transition.
	corr.Ingest(ctx, types.RawEvent{
		Source: types.SourceModernCallback,
		State:  types.RawOffhook,
		At:     time.Now(),
	})

	select {
	case ev := <-corr.Events():
		assert.Equal(t, types.Connected, ev.Kind)
		assert.Equal(t, "5550123456", ev.PhoneNumber)
		assert.Equal(t, types.DirectionOutgoing, ev.Direction)
	case <-time.After(time.Second):
		t.Fatal("no correlated event arrived")
	}
}

func TestServeReadsLineDelimitedStream(t *testing.T) {
	f, _ := newTestFeed()
	input := strings.Join([]string{
		`{"source":"screening","phoneNumber":"5550123456","direction":"incoming"}`,
		``,
		`{"source":"modern-callback","state":"ringing"}`,
	}, "\n")

	f.serve(context.Background(), strings.NewReader(input))

	ev := receiveRaw(t, f.channel(types.SourceScreening))
	assert.Equal(t, "5550123456", ev.PhoneNumber)

	ev = receiveRaw(t, f.channel(types.SourceModernCallback))
	assert.Equal(t, types.RawRinging, ev.State)
	assert.Empty(t, ev.PhoneNumber)
}

func TestServeReaderStopsOnCancel(t *testing.T) {
	f, _ := newTestFeed()
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.serveReader(ctx, pr)
	}()

	// Deliver one line, then cancel while the reader is blocked waiting for
	// the next one.
	_, err = pw.WriteString(`{"source":"modern-callback","state":"ringing"}` + "\n")
	require.NoError(t, err)
	receiveRaw(t, f.channel(types.SourceModernCallback))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not stop on cancellation")
	}
}
