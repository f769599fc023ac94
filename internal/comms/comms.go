// Package comms persists communication records and sends the optional
// automatic reply at the end of incoming calls.
package comms

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/types"
)

// CommStore is the subset of the relational store this package needs.
type CommStore interface {
	InsertCommunication(ctx context.Context, rec types.CommunicationRecord) error
	GetSetting(ctx context.Context, key, fallback string) string
}

// MessageSender delivers an outbound text message. The real transport lives
// in the host; a nil sender disables auto-reply delivery.
type MessageSender interface {
	Send(ctx context.Context, to, body string) error
}

// Logger writes append-only communication records.
type Logger struct {
	logger *zap.Logger
	store  CommStore
}

// NewLogger creates a communication Logger.
func NewLogger(store CommStore, logger *zap.Logger) *Logger {
	return &Logger{logger: logger.Named("comms"), store: store}
}

// LogCommunication persists rec. Unresolved callers (LeadID == 0) are never
// logged; the call is a warning no-op.
func (l *Logger) LogCommunication(ctx context.Context, rec types.CommunicationRecord) error {
	if rec.LeadID == 0 {
		l.logger.Warn("Skipping communication log for unresolved caller",
			zap.String("recipient", rec.Recipient))
		return nil
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if err := l.store.InsertCommunication(ctx, rec); err != nil {
		l.logger.Error("Communication log write failed", zap.Error(err))
		return err
	}
	return nil
}

// AutoResponder sends the configured automatic reply after incoming calls.
type AutoResponder struct {
	logger *zap.Logger
	store  CommStore
	sender MessageSender
	comms  *Logger
}

// NewAutoResponder creates an AutoResponder. sender may be nil.
func NewAutoResponder(store CommStore, sender MessageSender, comms *Logger, logger *zap.Logger) *AutoResponder {
	return &AutoResponder{
		logger: logger.Named("autoresponder"),
		store:  store,
		sender: sender,
		comms:  comms,
	}
}

// MaybeReply reads the auto-reply settings and, when enabled with a non-empty
// message, sends it to phoneNumber and logs the send as an automatic
// communication. Fires at the end of every incoming call, answered or not.
func (a *AutoResponder) MaybeReply(ctx context.Context, phoneNumber string, leadID int64) {
	if a.sender == nil {
		return
	}
	enabled := a.store.GetSetting(ctx, types.SettingAutoMessagesEnabled, "false")
	if enabled != "true" && enabled != "1" {
		return
	}
	text := a.store.GetSetting(ctx, types.SettingAutoMessageText, "")
	if text == "" {
		return
	}

	if err := a.sender.Send(ctx, phoneNumber, text); err != nil {
		a.logger.Warn("Auto-reply send failed", zap.Error(err))
		return
	}
	a.logger.Info("Auto-reply sent", zap.String("to", phoneNumber))

	if err := a.comms.LogCommunication(ctx, types.CommunicationRecord{
		LeadID:    leadID,
		Type:      types.CommSMS,
		Direction: types.DirectionOutgoing,
		Recipient: phoneNumber,
		Body:      text,
		Timestamp: time.Now().UTC(),
		Status:    "sent",
		Metadata:  "automatic:true",
	}); err != nil {
		a.logger.Warn("Auto-reply log failed", zap.Error(err))
	}
}
