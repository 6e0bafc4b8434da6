package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const songColumns = `id, title, album_id, track_no, duration_secs, created_at, updated_at`

const albumColumns = `id, title, year, created_at, updated_at`

// Service provides song and album data operations.
type Service struct {
	db *sql.DB
}

// NewService creates a catalog service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// CreateAlbum inserts a new album.
func (s *Service) CreateAlbum(ctx context.Context, a *Album) error {
	if a.Title == "" {
		return fmt.Errorf("album title is required")
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO albums (id, title, year, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Year, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating album: %w", err)
	}
	return nil
}

// GetAlbum retrieves an album by primary key.
func (s *Service) GetAlbum(ctx context.Context, id string) (*Album, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+albumColumns+` FROM albums WHERE id = ?`, id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("album not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting album: %w", err)
	}
	return a, nil
}

// ListAlbums returns all albums ordered by title.
func (s *Service) ListAlbums(ctx context.Context) ([]Album, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+albumColumns+` FROM albums ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("listing albums: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var albums []Album
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning album: %w", err)
		}
		albums = append(albums, *a)
	}
	return albums, rows.Err()
}

// CreateSong inserts a new song. A non-empty AlbumID must reference an
// existing album.
func (s *Service) CreateSong(ctx context.Context, song *Song) error {
	if song.Title == "" {
		return fmt.Errorf("song title is required")
	}
	if song.ID == "" {
		song.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	song.CreatedAt = now
	song.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO songs (id, title, album_id, track_no, duration_secs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		song.ID, song.Title, nullableString(song.AlbumID),
		song.TrackNo, song.DurationSecs,
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating song: %w", err)
	}
	return nil
}

// GetSong retrieves a song by primary key.
func (s *Service) GetSong(ctx context.Context, id string) (*Song, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE id = ?`, id)
	song, err := scanSong(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("song not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting song: %w", err)
	}
	return song, nil
}

// ListSongsByAlbum returns an album's songs in track order.
func (s *Service) ListSongsByAlbum(ctx context.Context, albumID string) ([]Song, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+songColumns+` FROM songs WHERE album_id = ? ORDER BY track_no, title`, albumID)
	if err != nil {
		return nil, fmt.Errorf("listing album songs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var songs []Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning song: %w", err)
		}
		songs = append(songs, *song)
	}
	return songs, rows.Err()
}

// scanAlbum scans a database row into an Album struct.
func scanAlbum(row interface{ Scan(...any) error }) (*Album, error) {
	var a Album
	var createdAt, updatedAt string

	if err := row.Scan(&a.ID, &a.Title, &a.Year, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanSong scans a database row into a Song struct.
func scanSong(row interface{ Scan(...any) error }) (*Song, error) {
	var song Song
	var albumID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&song.ID, &song.Title, &albumID,
		&song.TrackNo, &song.DurationSecs,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if albumID.Valid {
		song.AlbumID = albumID.String
	}
	song.CreatedAt = parseTime(createdAt)
	song.UpdatedAt = parseTime(updatedAt)
	return &song, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
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
