package credit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Ledger stores song and album credits. It only ever adds or removes whole
// credit rows; re-pointing credits between names during identity mutations
// belongs to the identity service, which does it inside its own transaction.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a credit ledger.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// AddSongCredit records that a name is credited on a song in a role.
// Adding an existing credit is a no-op: the tuple is the primary key.
func (l *Ledger) AddSongCredit(ctx context.Context, songID, nameID, roleID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO song_credits (song_id, name_id, role_id, created_at)
		VALUES (?, ?, ?, ?)
	`, songID, nameID, roleID, now)
	if err != nil {
		return fmt.Errorf("inserting song credit: %w", err)
	}
	return nil
}

// RemoveSongCredit deletes a single song credit.
func (l *Ledger) RemoveSongCredit(ctx context.Context, songID, nameID, roleID string) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM song_credits WHERE song_id = ? AND name_id = ? AND role_id = ?
	`, songID, nameID, roleID)
	if err != nil {
		return fmt.Errorf("deleting song credit: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("song credit not found")
	}
	return nil
}

// AddAlbumCredit records that a name is credited on an album in a role.
func (l *Ledger) AddAlbumCredit(ctx context.Context, albumID, nameID, roleID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO album_credits (album_id, name_id, role_id, created_at)
		VALUES (?, ?, ?, ?)
	`, albumID, nameID, roleID, now)
	if err != nil {
		return fmt.Errorf("inserting album credit: %w", err)
	}
	return nil
}

// RemoveAlbumCredit deletes a single album credit.
func (l *Ledger) RemoveAlbumCredit(ctx context.Context, albumID, nameID, roleID string) error {
	result, err := l.db.ExecContext(ctx, `
		DELETE FROM album_credits WHERE album_id = ? AND name_id = ? AND role_id = ?
	`, albumID, nameID, roleID)
	if err != nil {
		return fmt.Errorf("deleting album credit: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("album credit not found")
	}
	return nil
}

// SongCreditsForName returns all song credits referencing a name.
func (l *Ledger) SongCreditsForName(ctx context.Context, nameID string) ([]SongCredit, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT song_id, name_id, role_id, created_at FROM song_credits
		WHERE name_id = ? ORDER BY song_id, role_id
	`, nameID)
	if err != nil {
		return nil, fmt.Errorf("listing song credits for name: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var credits []SongCredit
	for rows.Next() {
		var c SongCredit
		var createdAt string
		if err := rows.Scan(&c.SongID, &c.NameID, &c.RoleID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning song credit: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// AlbumCreditsForName returns all album credits referencing a name.
func (l *Ledger) AlbumCreditsForName(ctx context.Context, nameID string) ([]AlbumCredit, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT album_id, name_id, role_id, created_at FROM album_credits
		WHERE name_id = ? ORDER BY album_id, role_id
	`, nameID)
	if err != nil {
		return nil, fmt.Errorf("listing album credits for name: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var credits []AlbumCredit
	for rows.Next() {
		var c AlbumCredit
		var createdAt string
		if err := rows.Scan(&c.AlbumID, &c.NameID, &c.RoleID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning album credit: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// CountForName returns how many song and album credits reference a name.
func (l *Ledger) CountForName(ctx context.Context, nameID string) (int, error) {
	var count int
	err := l.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM song_credits WHERE name_id = ?) +
			(SELECT COUNT(*) FROM album_credits WHERE name_id = ?)
	`, nameID, nameID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting credits: %w", err)
	}
	return count, nil
}

// ListRoles returns all credit roles ordered by name.
func (l *Ledger) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, name FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
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
