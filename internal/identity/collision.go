package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/text/cases"
)

// FoldKey returns the Unicode case-folded form of a spelling. Folding is
// done here rather than with a database collation: generic locale-insensitive
// collations conflate visually similar but distinct letters (ć vs č), while
// case folding only removes case distinctions. Whitespace is preserved
// byte-for-byte, so "Tom Waits" and "Tom  Waits" stay distinct spellings.
func FoldKey(text string) string {
	return cases.Fold().String(text)
}

// Collision describes an existing name that already owns a candidate
// spelling, including how much credit history ("baggage") it carries.
type Collision struct {
	NameID      string `json:"name_id"`
	IdentityID  string `json:"identity_id"`
	Text        string `json:"text"`
	CreditCount int    `json:"credit_count"`
}

// HasBaggage reports whether the colliding name carries any credits.
// Merging a baggage-free name is silent; merging one with history requires
// explicit confirmation.
func (c *Collision) HasBaggage() bool {
	return c.CreditCount > 0
}

// resolveCollision looks up the name owning the candidate spelling, if any.
// excludeNameID skips a given row so a name never collides with itself.
// Returns nil when the spelling is free.
func resolveCollision(ctx context.Context, q dbtx, text, excludeNameID string) (*Collision, error) {
	var c Collision
	err := q.QueryRowContext(ctx, `
		SELECT id, identity_id, text FROM artist_names
		WHERE fold_key = ? AND id != ?
	`, FoldKey(text), excludeNameID).Scan(&c.NameID, &c.IdentityID, &c.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking name collision: %w", err)
	}

	count, err := creditCountForName(ctx, q, c.NameID)
	if err != nil {
		return nil, err
	}
	c.CreditCount = count

	return &c, nil
}

// creditCountForName returns the total number of song and album credits
// referencing a name.
func creditCountForName(ctx context.Context, q dbtx, nameID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM song_credits WHERE name_id = ?) +
			(SELECT COUNT(*) FROM album_credits WHERE name_id = ?)
	`, nameID, nameID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting credits for name: %w", err)
	}
	return count, nil
}
