package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so row helpers can run
// inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const identityColumns = `id, kind, created_at, updated_at`

const nameColumns = `id, identity_id, text, fold_key, sort_key, is_primary, promoted_at, created_at, updated_at`

// nameOrder lists names primary-first, then by sort key, with the row ID as
// a deterministic tie-break.
const nameOrder = ` ORDER BY is_primary DESC, sort_key, id`

func getIdentity(ctx context.Context, q dbtx, id string) (*Identity, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	ident, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting identity: %w", err)
	}
	return ident, nil
}

func getName(ctx context.Context, q dbtx, id string) (*ArtistName, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+nameColumns+` FROM artist_names WHERE id = ?`, id)
	n, err := scanName(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("name %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting name: %w", err)
	}
	return n, nil
}

func listNames(ctx context.Context, q dbtx, identityID string) ([]ArtistName, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+nameColumns+` FROM artist_names WHERE identity_id = ?`+nameOrder,
		identityID)
	if err != nil {
		return nil, fmt.Errorf("listing names: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var names []ArtistName
	for rows.Next() {
		n, err := scanName(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning name: %w", err)
		}
		names = append(names, *n)
	}
	return names, rows.Err()
}

func countNames(ctx context.Context, q dbtx, identityID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artist_names WHERE identity_id = ?`, identityID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting names: %w", err)
	}
	return count, nil
}

func insertIdentity(ctx context.Context, q dbtx, kind Kind) (*Identity, error) {
	now := time.Now().UTC()
	ident := &Identity{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO identities (id, kind, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, ident.ID, string(ident.Kind), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("inserting identity: %w", err)
	}
	return ident, nil
}

func insertName(ctx context.Context, q dbtx, identityID, text string, primary bool) (*ArtistName, error) {
	now := time.Now().UTC()
	n := &ArtistName{
		ID:         uuid.New().String(),
		IdentityID: identityID,
		Text:       text,
		FoldKey:    FoldKey(text),
		SortKey:    SortKeyFor(text),
		IsPrimary:  primary,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if primary {
		n.PromotedAt = &now
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO artist_names (id, identity_id, text, fold_key, sort_key, is_primary, promoted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		n.ID, n.IdentityID, n.Text, n.FoldKey, n.SortKey,
		boolToInt(primary), formatNullableTime(n.PromotedAt),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting name: %w", err)
	}
	return n, nil
}

// reparentNames moves every name of one identity to another. Moved names
// arrive non-primary; the target's primary, if any, stays in place and the
// integrity pass settles the rest.
func reparentNames(ctx context.Context, q dbtx, fromIdentityID, toIdentityID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := q.ExecContext(ctx, `
		UPDATE artist_names SET identity_id = ?, is_primary = 0, updated_at = ?
		WHERE identity_id = ?
	`, toIdentityID, now, fromIdentityID)
	if err != nil {
		return fmt.Errorf("re-parenting names: %w", err)
	}
	return nil
}

// reparentName moves a single name row to another identity.
func reparentName(ctx context.Context, q dbtx, nameID, toIdentityID string, primary bool) error {
	now := time.Now().UTC()
	var promotedAt any
	if primary {
		promotedAt = now.Format(time.RFC3339)
	}
	var err error
	if primary {
		_, err = q.ExecContext(ctx, `
			UPDATE artist_names SET identity_id = ?, is_primary = 1, promoted_at = ?, updated_at = ?
			WHERE id = ?
		`, toIdentityID, promotedAt, now.Format(time.RFC3339), nameID)
	} else {
		_, err = q.ExecContext(ctx, `
			UPDATE artist_names SET identity_id = ?, is_primary = 0, updated_at = ?
			WHERE id = ?
		`, toIdentityID, now.Format(time.RFC3339), nameID)
	}
	if err != nil {
		return fmt.Errorf("re-parenting name: %w", err)
	}
	return nil
}

// deleteIdentity removes an identity row along with any membership rows
// referencing it. Callers must have emptied or moved its names first.
func deleteIdentity(ctx context.Context, q dbtx, id string) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM group_memberships WHERE group_identity_id = ? OR member_identity_id = ?`,
		id, id); err != nil {
		return fmt.Errorf("clearing memberships for identity: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	return nil
}

// repointCredits moves all song and album credits from one name to another.
// The credit tuple is the primary key, so a credit that already exists under
// the target spelling collapses into it instead of duplicating.
func repointCredits(ctx context.Context, q dbtx, fromNameID, toNameID string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO song_credits (song_id, name_id, role_id, created_at)
		SELECT song_id, ?, role_id, ? FROM song_credits WHERE name_id = ?
	`, toNameID, now, fromNameID); err != nil {
		return fmt.Errorf("repointing song credits: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM song_credits WHERE name_id = ?`, fromNameID); err != nil {
		return fmt.Errorf("clearing source song credits: %w", err)
	}

	if _, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO album_credits (album_id, name_id, role_id, created_at)
		SELECT album_id, ?, role_id, ? FROM album_credits WHERE name_id = ?
	`, toNameID, now, fromNameID); err != nil {
		return fmt.Errorf("repointing album credits: %w", err)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM album_credits WHERE name_id = ?`, fromNameID); err != nil {
		return fmt.Errorf("clearing source album credits: %w", err)
	}

	return nil
}

// enforcePrimaryIntegrity settles the one-primary-per-identity invariant at
// the end of a mutating transaction. With names present and no primary, the
// most recently primary name wins, then the oldest; with several primaries,
// all but the most recently promoted are demoted. Running this in one place
// instead of per call site is what keeps two code paths from promoting
// different names.
func enforcePrimaryIntegrity(ctx context.Context, q dbtx, identityID string) error {
	total, err := countNames(ctx, q, identityID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	var primaries int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM artist_names WHERE identity_id = ? AND is_primary = 1`,
		identityID).Scan(&primaries); err != nil {
		return fmt.Errorf("counting primary names: %w", err)
	}
	if primaries == 1 {
		return nil
	}

	// Pick the winner: current primaries first, then most recently primary,
	// then oldest row, with the ID as a deterministic tie-break.
	var keepID string
	err = q.QueryRowContext(ctx, `
		SELECT id FROM artist_names WHERE identity_id = ?
		ORDER BY is_primary DESC, (promoted_at IS NULL), promoted_at DESC, created_at, id
		LIMIT 1
	`, identityID).Scan(&keepID)
	if err != nil {
		return fmt.Errorf("selecting primary candidate: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := q.ExecContext(ctx, `
		UPDATE artist_names SET is_primary = 0, updated_at = ?
		WHERE identity_id = ? AND id != ? AND is_primary = 1
	`, now, identityID, keepID); err != nil {
		return fmt.Errorf("demoting extra primaries: %w", err)
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE artist_names SET is_primary = 1, promoted_at = ?, updated_at = ?
		WHERE id = ? AND is_primary = 0
	`, now, now, keepID); err != nil {
		return fmt.Errorf("promoting primary name: %w", err)
	}

	return nil
}

// scanIdentity scans a database row into an Identity struct.
func scanIdentity(row interface{ Scan(...any) error }) (*Identity, error) {
	var ident Identity
	var kind string
	var createdAt, updatedAt string

	if err := row.Scan(&ident.ID, &kind, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	ident.Kind = Kind(kind)
	ident.CreatedAt = parseTime(createdAt)
	ident.UpdatedAt = parseTime(updatedAt)

	return &ident, nil
}

// scanName scans a database row into an ArtistName struct.
func scanName(row interface{ Scan(...any) error }) (*ArtistName, error) {
	var n ArtistName
	var isPrimary int
	var promotedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&n.ID, &n.IdentityID, &n.Text, &n.FoldKey, &n.SortKey,
		&isPrimary, &promotedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.IsPrimary = isPrimary == 1
	if promotedAt.Valid {
		t := parseTime(promotedAt.String)
		n.PromotedAt = &t
	}
	n.CreatedAt = parseTime(createdAt)
	n.UpdatedAt = parseTime(updatedAt)

	return &n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
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
