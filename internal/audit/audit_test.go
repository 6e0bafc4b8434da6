package audit

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mirelhart/cantus/internal/database"
	"github.com/mirelhart/cantus/internal/event"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testAudit(t *testing.T) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(setupTestDB(t), logger)
}

func TestRecordAndList(t *testing.T) {
	svc := testAudit(t)
	ctx := context.Background()

	err := svc.Record(ctx, event.Event{
		Type:      event.IdentityMerged,
		Data:      map[string]any{"source_identity_id": "a", "target_identity_id": "b"},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].EventType != string(event.IdentityMerged) {
		t.Errorf("expected merged event, got %s", entries[0].EventType)
	}
	if entries[0].Detail["source_identity_id"] != "a" {
		t.Errorf("expected decoded detail, got %+v", entries[0].Detail)
	}
}

func TestRecord_EmptyDetail(t *testing.T) {
	svc := testAudit(t)
	ctx := context.Background()

	if err := svc.Record(ctx, event.Event{Type: event.KindChanged}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := svc.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Detail != nil {
		t.Errorf("expected nil detail, got %+v", entries[0].Detail)
	}
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	svc := testAudit(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, typ := range []event.Type{event.IdentityCreated, event.AliasAdded, event.NameRenamed} {
		err := svc.Record(ctx, event.Event{
			Type:      typ,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := svc.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].EventType != string(event.NameRenamed) {
		t.Errorf("expected newest first, got %s", entries[0].EventType)
	}
}

func TestHandleEvent(t *testing.T) {
	svc := testAudit(t)

	// The bus subscriber path records without surfacing errors.
	svc.HandleEvent(event.Event{Type: event.MemberAdded, Timestamp: time.Now().UTC()})

	entries, err := svc.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
}
