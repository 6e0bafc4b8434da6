package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mirelhart/cantus/internal/event"
)

// Entry is one recorded identity mutation. The log is append-only history
// for inspection; nothing ever replays or reverses an entry.
type Entry struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Service persists identity mutation events to the audit log.
type Service struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewService creates an audit service.
func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// HandleEvent is the event bus subscriber. Failures are logged and dropped;
// a full audit row is never worth failing the mutation that already
// committed.
func (s *Service) HandleEvent(e event.Event) {
	if err := s.Record(context.Background(), e); err != nil {
		s.logger.Error("recording audit entry", "type", string(e.Type), "error", err)
	}
}

// Record writes one event to the audit log.
func (s *Service) Record(ctx context.Context, e event.Event) error {
	detail := "{}"
	if len(e.Data) > 0 {
		data, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("encoding audit detail: %w", err)
		}
		detail = string(data)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, detail, created_at)
		VALUES (?, ?, ?, ?)
	`, uuid.New().String(), string(e.Type), detail, ts.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, detail, created_at FROM audit_log
		ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var detail, createdAt string
		if err := rows.Scan(&entry.ID, &entry.EventType, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if detail != "" && detail != "{}" {
			if err := json.Unmarshal([]byte(detail), &entry.Detail); err != nil {
				s.logger.Warn("undecodable audit detail", "id", entry.ID, "error", err)
			}
		}
		entry.CreatedAt = parseTime(createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// parseTime parses a time string, handling both RFC3339 and SQLite datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
