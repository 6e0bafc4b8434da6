package credit

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mirelhart/cantus/internal/database"
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

// seedName inserts an identity with one name row and returns the name ID.
func seedName(t *testing.T, db *sql.DB, text string) string {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	identityID := uuid.New().String()
	nameID := uuid.New().String()

	if _, err := db.Exec(`
		INSERT INTO identities (id, kind, created_at, updated_at) VALUES (?, 'person', ?, ?)
	`, identityID, now, now); err != nil {
		t.Fatalf("inserting identity: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO artist_names (id, identity_id, text, fold_key, sort_key, is_primary, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
	`, nameID, identityID, text, strings.ToLower(text), strings.ToLower(text), now, now); err != nil {
		t.Fatalf("inserting name: %v", err)
	}
	return nameID
}

func seedSong(t *testing.T, db *sql.DB, title string) string {
	t.Helper()
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(`
		INSERT INTO songs (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, title, now, now); err != nil {
		t.Fatalf("inserting song: %v", err)
	}
	return id
}

func seedAlbum(t *testing.T, db *sql.DB, title string) string {
	t.Helper()
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.Exec(`
		INSERT INTO albums (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, id, title, now, now); err != nil {
		t.Fatalf("inserting album: %v", err)
	}
	return id
}

func TestSongCredits(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	nameID := seedName(t, db, "PJ Harvey")
	songID := seedSong(t, db, "Down by the Water")

	if err := ledger.AddSongCredit(ctx, songID, nameID, "performer"); err != nil {
		t.Fatalf("AddSongCredit: %v", err)
	}
	// The tuple is the primary key: re-adding is a no-op.
	if err := ledger.AddSongCredit(ctx, songID, nameID, "performer"); err != nil {
		t.Fatalf("repeated AddSongCredit: %v", err)
	}
	if err := ledger.AddSongCredit(ctx, songID, nameID, "composer"); err != nil {
		t.Fatalf("AddSongCredit composer: %v", err)
	}

	credits, err := ledger.SongCreditsForName(ctx, nameID)
	if err != nil {
		t.Fatalf("SongCreditsForName: %v", err)
	}
	if len(credits) != 2 {
		t.Fatalf("expected 2 credits, got %d", len(credits))
	}

	count, err := ledger.CountForName(ctx, nameID)
	if err != nil {
		t.Fatalf("CountForName: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}

	if err := ledger.RemoveSongCredit(ctx, songID, nameID, "composer"); err != nil {
		t.Fatalf("RemoveSongCredit: %v", err)
	}
	if err := ledger.RemoveSongCredit(ctx, songID, nameID, "composer"); err == nil {
		t.Error("expected error removing missing credit")
	}
}

func TestAlbumCredits(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	nameID := seedName(t, db, "Brian Eno")
	albumID := seedAlbum(t, db, "Another Green World")

	if err := ledger.AddAlbumCredit(ctx, albumID, nameID, "producer"); err != nil {
		t.Fatalf("AddAlbumCredit: %v", err)
	}

	credits, err := ledger.AlbumCreditsForName(ctx, nameID)
	if err != nil {
		t.Fatalf("AlbumCreditsForName: %v", err)
	}
	if len(credits) != 1 || credits[0].RoleID != "producer" {
		t.Fatalf("expected one producer credit, got %+v", credits)
	}

	count, err := ledger.CountForName(ctx, nameID)
	if err != nil {
		t.Fatalf("CountForName: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	if err := ledger.RemoveAlbumCredit(ctx, albumID, nameID, "producer"); err != nil {
		t.Fatalf("RemoveAlbumCredit: %v", err)
	}
	if err := ledger.RemoveAlbumCredit(ctx, albumID, nameID, "producer"); err == nil {
		t.Error("expected error removing missing credit")
	}
}

func TestListRoles(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewLedger(db)

	roles, err := ledger.ListRoles(context.Background())
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	if len(roles) != 4 {
		t.Fatalf("expected 4 seeded roles, got %d", len(roles))
	}

	found := map[string]bool{}
	for _, r := range roles {
		found[r.ID] = true
	}
	for _, id := range []string{"performer", "composer", "producer", "featured"} {
		if !found[id] {
			t.Errorf("expected seeded role %q", id)
		}
	}
}
