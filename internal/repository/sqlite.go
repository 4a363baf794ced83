// Package store persists state reports and the delivery log.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/xiaot623/agentkit/internal/domain"
)

// SQLiteStore persists state reports and the delivery log in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS state_reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id TEXT NOT NULL,
			state TEXT NOT NULL,
			reported_at TEXT NOT NULL,
			details TEXT,
			received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_state_reports_agent ON state_reports(agent_id, id)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			delivery_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			target TEXT NOT NULL,
			url TEXT NOT NULL,
			status TEXT NOT NULL,
			http_status INTEGER NOT NULL DEFAULT 0,
			error TEXT,
			attempts INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_created ON deliveries(created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Databases created before webhook events were logged lack this column.
	return s.ensureColumn("deliveries", "event_type", "ALTER TABLE deliveries ADD COLUMN event_type TEXT")
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveStateReport appends a state report.
func (s *SQLiteStore) SaveStateReport(ctx context.Context, report *domain.StateReport) error {
	var details []byte
	if report.Details != nil {
		var err error
		details, err = json.Marshal(report.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO state_reports (agent_id, state, reported_at, details, received_at) VALUES (?, ?, ?, ?, ?)`,
		report.AgentID, string(report.State), report.Timestamp, nullStringBytes(details), report.ReceivedAt.UTC())
	return err
}

// LatestStateReport returns the most recent report for an agent, or nil.
func (s *SQLiteStore) LatestStateReport(ctx context.Context, agentID string) (*domain.StateReport, error) {
	var report domain.StateReport
	var state string
	var details sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT agent_id, state, reported_at, details, received_at FROM state_reports
		 WHERE agent_id = ? ORDER BY id DESC LIMIT 1`,
		agentID).Scan(&report.AgentID, &state, &report.Timestamp, &details, &report.ReceivedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	report.State = domain.AgentState(state)
	if details.Valid {
		if err := json.Unmarshal([]byte(details.String), &report.Details); err != nil {
			return nil, fmt.Errorf("failed to decode details: %w", err)
		}
	}
	return &report, nil
}

// RecordDelivery stores the outcome of a background delivery.
func (s *SQLiteStore) RecordDelivery(ctx context.Context, d *domain.Delivery) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deliveries (delivery_id, kind, target, event_type, url, status, http_status, error, attempts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DeliveryID, string(d.Kind), d.Target, nullString(d.EventType), d.URL, string(d.Status),
		d.HTTPStatus, nullString(d.Error), d.Attempts, d.CreatedAt.UTC())
	return err
}

// ListDeliveries returns the most recent deliveries first. kind filters when non-empty.
func (s *SQLiteStore) ListDeliveries(ctx context.Context, kind domain.DeliveryKind, limit int) ([]domain.Delivery, error) {
	query := `SELECT delivery_id, kind, target, event_type, url, status, http_status, error, attempts, created_at FROM deliveries`
	args := []interface{}{}

	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}

	query += ` ORDER BY created_at DESC, rowid DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := []domain.Delivery{}
	for rows.Next() {
		var d domain.Delivery
		var kindStr, status string
		var eventType, errStr sql.NullString
		if err := rows.Scan(&d.DeliveryID, &kindStr, &d.Target, &eventType, &d.URL, &status,
			&d.HTTPStatus, &errStr, &d.Attempts, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Kind = domain.DeliveryKind(kindStr)
		d.Status = domain.DeliveryStatus(status)
		d.EventType = eventType.String
		d.Error = errStr.String
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
