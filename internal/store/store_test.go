package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "callwatch.db")
	s, err := New(path, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestLeadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertLead(ctx, types.CallerRecord{
		Name:        "Ada Lovelace",
		PhoneNumber: "+1 555 012 3456",
		Email:       "ada@example.com",
		Category:    "Client",
		Status:      "New",
		IsVIP:       true,
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	rec, err := s.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", rec.Name)
	assert.Equal(t, "+1 555 012 3456", rec.PhoneNumber)
	assert.Equal(t, "ada@example.com", rec.Email)
	assert.Equal(t, "Client", rec.Category)
	assert.True(t, rec.IsVIP)
	assert.False(t, rec.CreatedAt.IsZero())

	leads, err := s.ListLeads(ctx)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, id, leads[0].ID)
}

func TestGetLeadNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetLead(context.Background(), 42)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateLead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertLead(ctx, types.CallerRecord{
		Name:        types.PlaceholderName,
		PhoneNumber: "5550123456",
		Category:    "General",
		Status:      "New",
	})
	require.NoError(t, err)

	require.NoError(t, s.UpdateLead(ctx, types.CallerRecord{
		ID:          id,
		Name:        "Grace Hopper",
		PhoneNumber: "5550123456",
		Email:       "grace@example.com",
		Category:    "Partner",
		Status:      "Contacted",
	}))

	rec, err := s.GetLead(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", rec.Name)
	assert.Equal(t, "Partner", rec.Category)
	assert.Equal(t, "Contacted", rec.Status)
}

func TestCommunicationLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, rec := range []types.CommunicationRecord{
		{LeadID: 1, Type: types.CommCall, Direction: types.DirectionIncoming, Recipient: "5550123456", Status: "completed"},
		{LeadID: 1, Type: types.CommSMS, Direction: types.DirectionOutgoing, Recipient: "5550123456", Body: "On a call", Status: "sent", Metadata: "automatic:true"},
		{LeadID: 2, Type: types.CommCall, Direction: types.DirectionIncoming, Recipient: "5550999999", Status: "missed"},
	} {
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.InsertCommunication(ctx, rec))
	}

	recs, err := s.ListCommunications(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	// Newest first.
	assert.Equal(t, "5550999999", recs[0].Recipient)
	assert.Equal(t, types.CommSMS, recs[1].Type)
	assert.Equal(t, "automatic:true", recs[1].Metadata)

	recs, err = s.ListCommunications(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestLastIncomingNumber(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LastIncomingNumber(ctx)
	assert.Error(t, err, "empty log has no incoming number")

	require.NoError(t, s.InsertCommunication(ctx, types.CommunicationRecord{
		LeadID: 1, Type: types.CommCall, Direction: types.DirectionIncoming,
		Recipient: "5550111111", Timestamp: base,
	}))
	require.NoError(t, s.InsertCommunication(ctx, types.CommunicationRecord{
		LeadID: 1, Type: types.CommCall, Direction: types.DirectionOutgoing,
		Recipient: "5550222222", Timestamp: base.Add(time.Minute),
	}))
	require.NoError(t, s.InsertCommunication(ctx, types.CommunicationRecord{
		LeadID: 2, Type: types.CommCall, Direction: types.DirectionIncoming,
		Recipient: "5550333333", Timestamp: base.Add(2 * time.Minute),
	}))

	number, err := s.LastIncomingNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "5550333333", number, "outgoing entries must not shadow the latest incoming")
}

func TestListLabelsFallback(t *testing.T) {
	s := newTestStore(t)
	labels := s.ListLabels(context.Background())
	assert.Equal(t, DefaultLabels, labels, "empty table falls back to defaults")
}

func TestTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertTask(ctx, types.Task{
		Task:     "Send proposal",
		LeadID:   3,
		Priority: "high",
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	tasks, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Send proposal", tasks[0].Task)
	assert.Equal(t, int64(3), tasks[0].LeadID)
	assert.False(t, tasks[0].IsDone)
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	assert.Equal(t, "false", s.GetSetting(ctx, types.SettingAutoMessagesEnabled, "false"))

	require.NoError(t, s.SetSetting(ctx, types.SettingAutoMessagesEnabled, "true"))
	assert.Equal(t, "true", s.GetSetting(ctx, types.SettingAutoMessagesEnabled, "false"))

	// Upsert overwrites.
	require.NoError(t, s.SetSetting(ctx, types.SettingAutoMessagesEnabled, "false"))
	assert.Equal(t, "false", s.GetSetting(ctx, types.SettingAutoMessagesEnabled, "true"))
}
