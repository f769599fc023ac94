// Package store provides the SQLite-backed relational store shared with the
// host application: leads, communications, labels, tasks and settings.
//
// Connections are opened, used and closed per operation. The database file is
// owned by the host; concurrent access is serialized by SQLite itself, and
// the engine never issues overlapping writes for the same call session.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/callwatchio/callwatch/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// DefaultLabels is used when the labels table is empty.
var DefaultLabels = []string{"Client", "Partner", "Vendor", "Other"}

// Store reads and writes the shared SQLite database.
type Store struct {
	path   string
	logger *zap.Logger
}

// New creates a Store for the database at path and ensures the schema exists.
func New(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger.Named("store")}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(schemaSQL)
	return err
}

func (s *Store) open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", s.path, err)
	}
	// The store is opened per operation; a single connection avoids SQLite
	// write lock contention between short-lived handles.
	db.SetMaxOpenConns(1)
	return db, nil
}

// ListLeads returns all lead records.
func (s *Store) ListLeads(ctx context.Context) ([]types.CallerRecord, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, phoneNumber, COALESCE(email, ''), category, status, isVip, COALESCE(photoUrl, ''), createdAt FROM leads`)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []types.CallerRecord
	for rows.Next() {
		var rec types.CallerRecord
		var vip int
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.PhoneNumber, &rec.Email,
			&rec.Category, &rec.Status, &vip, &rec.PhotoURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		rec.IsVIP = vip == 1
		rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		leads = append(leads, rec)
	}
	return leads, rows.Err()
}

// GetLead returns the lead with the given id, or sql.ErrNoRows.
func (s *Store) GetLead(ctx context.Context, id int64) (types.CallerRecord, error) {
	db, err := s.open()
	if err != nil {
		return types.CallerRecord{}, err
	}
	defer db.Close()

	var rec types.CallerRecord
	var vip int
	var createdAt string
	err = db.QueryRowContext(ctx,
		`SELECT id, name, phoneNumber, COALESCE(email, ''), category, status, isVip, COALESCE(photoUrl, ''), createdAt FROM leads WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.PhoneNumber, &rec.Email, &rec.Category, &rec.Status, &vip, &rec.PhotoURL, &createdAt)
	if err != nil {
		return types.CallerRecord{}, err
	}
	rec.IsVIP = vip == 1
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return rec, nil
}

// InsertLead persists a new lead and returns its assigned id.
func (s *Store) InsertLead(ctx context.Context, lead types.CallerRecord) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	vip := 0
	if lead.IsVIP {
		vip = 1
	}
	createdAt := lead.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO leads (name, phoneNumber, email, category, status, isVip, photoUrl, createdAt)
		 VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?)`,
		lead.Name, lead.PhoneNumber, lead.Email, lead.Category, lead.Status, vip, lead.PhotoURL,
		createdAt.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert lead: %w", err)
	}
	return res.LastInsertId()
}

// UpdateLead overwrites the mutable fields of an existing lead.
func (s *Store) UpdateLead(ctx context.Context, lead types.CallerRecord) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	vip := 0
	if lead.IsVIP {
		vip = 1
	}
	_, err = db.ExecContext(ctx,
		`UPDATE leads SET name = ?, phoneNumber = ?, email = NULLIF(?, ''), category = ?, status = ?, isVip = ? WHERE id = ?`,
		lead.Name, lead.PhoneNumber, lead.Email, lead.Category, lead.Status, vip, lead.ID)
	if err != nil {
		return fmt.Errorf("update lead %d: %w", lead.ID, err)
	}
	return nil
}

// InsertCommunication appends a communication log entry.
func (s *Store) InsertCommunication(ctx context.Context, rec types.CommunicationRecord) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO communications (leadId, type, direction, recipient, subject, body, timestamp, status, metadata)
		 VALUES (?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), NULLIF(?, ''))`,
		rec.LeadID, string(rec.Type), string(rec.Direction), rec.Recipient,
		rec.Subject, rec.Body, ts.Format(time.RFC3339), rec.Status, rec.Metadata)
	if err != nil {
		return fmt.Errorf("insert communication: %w", err)
	}
	return nil
}

// ListCommunications returns the most recent communication entries, newest first.
func (s *Store) ListCommunications(ctx context.Context, limit int) ([]types.CommunicationRecord, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT leadId, type, direction, recipient, COALESCE(subject, ''), COALESCE(body, ''), timestamp, COALESCE(status, ''), COALESCE(metadata, '')
		 FROM communications ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query communications: %w", err)
	}
	defer rows.Close()

	var recs []types.CommunicationRecord
	for rows.Next() {
		var rec types.CommunicationRecord
		var typ, dir, ts string
		if err := rows.Scan(&rec.LeadID, &typ, &dir, &rec.Recipient, &rec.Subject,
			&rec.Body, &ts, &rec.Status, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("scan communication: %w", err)
		}
		rec.Type = types.CommType(typ)
		rec.Direction = types.Direction(dir)
		rec.Timestamp, _ = time.Parse(time.RFC3339, ts)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// LastIncomingNumber returns the recipient of the most recent incoming call
// entry in the communications log. Used by the correlator to recover the
// number when the modern callback source detects a ring without one.
func (s *Store) LastIncomingNumber(ctx context.Context) (string, error) {
	db, err := s.open()
	if err != nil {
		return "", err
	}
	defer db.Close()

	var number string
	err = db.QueryRowContext(ctx,
		`SELECT recipient FROM communications
		 WHERE type = ? AND direction = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		string(types.CommCall), string(types.DirectionIncoming)).Scan(&number)
	if err != nil {
		return "", err
	}
	return number, nil
}

// ListLabels returns the category labels, falling back to DefaultLabels when
// the table is empty or unreadable.
func (s *Store) ListLabels(ctx context.Context) []string {
	db, err := s.open()
	if err != nil {
		return DefaultLabels
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT name FROM labels ORDER BY id ASC`)
	if err != nil {
		s.logger.Warn("Label query failed, using defaults", zap.Error(err))
		return DefaultLabels
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return DefaultLabels
		}
		labels = append(labels, name)
	}
	if len(labels) == 0 {
		return DefaultLabels
	}
	return labels
}

// ListTasks returns all follow-up tasks, newest first.
func (s *Store) ListTasks(ctx context.Context) ([]types.Task, error) {
	db, err := s.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx,
		`SELECT id, task, leadId, priority, isDone, createdAt FROM tasks ORDER BY createdAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []types.Task
	for rows.Next() {
		var t types.Task
		var done int
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Task, &t.LeadID, &t.Priority, &done, &createdAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.IsDone = done == 1
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// InsertTask appends a follow-up task.
func (s *Store) InsertTask(ctx context.Context, t types.Task) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	done := 0
	if t.IsDone {
		done = 1
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO tasks (task, leadId, priority, isDone, createdAt) VALUES (?, ?, ?, ?, ?)`,
		t.Task, t.LeadID, t.Priority, done, createdAt.Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	return res.LastInsertId()
}

// GetSetting returns the value for key, or fallback when unset.
func (s *Store) GetSetting(ctx context.Context, key, fallback string) string {
	db, err := s.open()
	if err != nil {
		return fallback
	}
	defer db.Close()

	var value string
	err = db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return fallback
	}
	return value
}

// SetSetting upserts a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
