package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/correlator"
	"github.com/callwatchio/callwatch/internal/engine"
	"github.com/callwatchio/callwatch/internal/types"
)

// feedLine is one line-delimited JSON message from the host bridge. Lines
// without an op are raw call signals; ops carry host commands.
type feedLine struct {
	Op string `json:"op,omitempty"` // "", "outgoing", "saveContact"

	// Raw signal fields.
	Source      string    `json:"source,omitempty"`
	State       string    `json:"state,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	Direction   string    `json:"direction,omitempty"`
	At          time.Time `json:"at,omitempty"`

	// saveContact fields.
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Category string `json:"category,omitempty"`
}

// feed bridges the host transport into the signal source channels and routes
// host commands to the correlator and engine.
type feed struct {
	logger *zap.Logger
	chans  map[types.SignalSourceKind]chan types.RawEvent
	corr   *correlator.Correlator
	eng    *engine.Engine
}

func newFeed(corr *correlator.Correlator, eng *engine.Engine, logger *zap.Logger) *feed {
	return &feed{
		logger: logger.Named("feed"),
		chans: map[types.SignalSourceKind]chan types.RawEvent{
			types.SourceScreening:       make(chan types.RawEvent, 16),
			types.SourceLegacyBroadcast: make(chan types.RawEvent, 16),
			types.SourceModernCallback:  make(chan types.RawEvent, 16),
		},
		corr: corr,
		eng:  eng,
	}
}

// channel returns the raw event channel for a signal source kind.
func (f *feed) channel(kind types.SignalSourceKind) <-chan types.RawEvent {
	return f.chans[kind]
}

// Run reads messages until ctx is cancelled or the transport closes. path is
// "-" for stdin, otherwise a unix socket to listen on.
func (f *feed) Run(ctx context.Context, path string) error {
	if path == "-" {
		f.logger.Info("Reading call signals from stdin")
		f.serveReader(ctx, os.Stdin)
		return nil
	}

	// Replace a stale socket left by a previous run.
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", path, err)
	}
	f.logger.Info("Listening for call signals", zap.String("socket", path))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			defer conn.Close()
			f.serve(ctx, conn)
		}()
	}
}

// serveReader serves r until ctx is cancelled or the stream ends. On
// cancellation the reader is closed to unblock a pending read; without that a
// shutdown signal would leave Run stuck until the peer closes its end.
func (f *feed) serveReader(ctx context.Context, r io.ReadCloser) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.serve(ctx, r)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.Close()
		<-done
	}
}

func (f *feed) serve(ctx context.Context, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		f.handleLine(ctx, line)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		f.logger.Warn("Feed read failed", zap.Error(err))
	}
}

func (f *feed) handleLine(ctx context.Context, data []byte) {
	var msg feedLine
	if err := json.Unmarshal(data, &msg); err != nil {
		f.logger.Warn("Discarding malformed feed line", zap.Error(err))
		return
	}

	switch msg.Op {
	case "":
		f.handleSignal(ctx, msg)
	case "outgoing":
		f.corr.RecordOutgoingNumber(msg.PhoneNumber)
	case "saveContact":
		if err := f.eng.SaveContact(ctx, msg.Name, msg.Email, msg.Category); err != nil {
			f.logger.Warn("Save contact command rejected", zap.Error(err))
		}
	default:
		f.logger.Warn("Unknown feed op", zap.String("op", msg.Op))
	}
}

func (f *feed) handleSignal(ctx context.Context, msg feedLine) {
	kind := types.SignalSourceKind(msg.Source)
	ch, ok := f.chans[kind]
	if !ok {
		f.logger.Warn("Unknown signal source", zap.String("source", msg.Source))
		return
	}

	ev := types.RawEvent{
		Source:      kind,
		State:       types.RawState(msg.State),
		PhoneNumber: msg.PhoneNumber,
		At:          msg.At,
	}
	if msg.Direction != "" {
		d := types.Direction(msg.Direction)
		ev.Direction = &d
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	select {
	case ch <- ev:
	case <-ctx.Done():
	default:
		f.logger.Warn("Signal channel full, dropping event",
			zap.String("source", msg.Source))
	}
}
