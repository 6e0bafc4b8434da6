package catalog

import (
	"context"
	"database/sql"
	"testing"

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

func TestCreateAndGetAlbum(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	album := &Album{Title: "In Rainbows", Year: 2007}
	if err := svc.CreateAlbum(ctx, album); err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}
	if album.ID == "" {
		t.Fatal("expected ID to be set after create")
	}

	got, err := svc.GetAlbum(ctx, album.ID)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if got.Title != "In Rainbows" || got.Year != 2007 {
		t.Errorf("unexpected album: %+v", got)
	}

	if err := svc.CreateAlbum(ctx, &Album{}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := svc.GetAlbum(ctx, "missing"); err == nil {
		t.Error("expected error for unknown album")
	}
}

func TestSongsByAlbum(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	album := &Album{Title: "OK Computer", Year: 1997}
	if err := svc.CreateAlbum(ctx, album); err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}

	for i, title := range []string{"Airbag", "Paranoid Android", "Karma Police"} {
		song := &Song{Title: title, AlbumID: album.ID, TrackNo: i + 1}
		if err := svc.CreateSong(ctx, song); err != nil {
			t.Fatalf("CreateSong(%q): %v", title, err)
		}
	}

	songs, err := svc.ListSongsByAlbum(ctx, album.ID)
	if err != nil {
		t.Fatalf("ListSongsByAlbum: %v", err)
	}
	if len(songs) != 3 {
		t.Fatalf("expected 3 songs, got %d", len(songs))
	}
	if songs[0].Title != "Airbag" || songs[2].Title != "Karma Police" {
		t.Errorf("expected track order, got %q ... %q", songs[0].Title, songs[2].Title)
	}
}

func TestCreateSong_Standalone(t *testing.T) {
	svc := NewService(setupTestDB(t))
	ctx := context.Background()

	// A song without an album stores a NULL album reference.
	song := &Song{Title: "Single Release"}
	if err := svc.CreateSong(ctx, song); err != nil {
		t.Fatalf("CreateSong: %v", err)
	}

	got, err := svc.GetSong(ctx, song.ID)
	if err != nil {
		t.Fatalf("GetSong: %v", err)
	}
	if got.AlbumID != "" {
		t.Errorf("expected empty album id, got %q", got.AlbumID)
	}

	if err := svc.CreateSong(ctx, &Song{}); err == nil {
		t.Error("expected error for missing title")
	}
}
