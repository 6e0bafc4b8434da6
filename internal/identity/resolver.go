package identity

import (
	"context"
	"fmt"
)

// SongCreditRef is one song credit as seen from an identity: which song,
// under which spelling, in which role.
type SongCreditRef struct {
	SongID     string `json:"song_id"`
	SongTitle  string `json:"song_title"`
	NameID     string `json:"name_id"`
	CreditedAs string `json:"credited_as"`
	RoleID     string `json:"role_id"`
	RoleName   string `json:"role_name"`
}

// AlbumCreditRef is one album credit as seen from an identity.
type AlbumCreditRef struct {
	AlbumID    string `json:"album_id"`
	AlbumTitle string `json:"album_title"`
	NameID     string `json:"name_id"`
	CreditedAs string `json:"credited_as"`
	RoleID     string `json:"role_id"`
	RoleName   string `json:"role_name"`
}

// RelatedIdentity is a group member or parent group with its display name.
type RelatedIdentity struct {
	IdentityID  string `json:"identity_id"`
	PrimaryName string `json:"primary_name"`
}

// IdentityView is the full read-only expansion of a name: its identity, all
// co-names, every credit reachable through any of those names, and group
// relations. Search and filtering consume this; it never mutates.
type IdentityView struct {
	IdentityID   string            `json:"identity_id"`
	Kind         Kind              `json:"kind"`
	Names        []ArtistName      `json:"names"`
	SongCredits  []SongCreditRef   `json:"song_credits"`
	AlbumCredits []AlbumCreditRef  `json:"album_credits"`
	Members      []RelatedIdentity `json:"members,omitempty"`
	MemberOf     []RelatedIdentity `json:"member_of,omitempty"`
}

// PrimaryName returns the view's primary name text, or "" if the identity
// has no names (which no committed state should exhibit).
func (v *IdentityView) PrimaryName() string {
	for _, n := range v.Names {
		if n.IsPrimary {
			return n.Text
		}
	}
	return ""
}

// Resolve expands a name to its identity, all co-names and all reachable
// credits. Reads run outside any mutation transaction and see either the
// pre- or post-state of a mutation, never an intermediate one.
func (s *Service) Resolve(ctx context.Context, nameID string) (*IdentityView, error) {
	n, err := getName(ctx, s.db, nameID)
	if err != nil {
		return nil, err
	}
	return s.ResolveIdentity(ctx, n.IdentityID)
}

// ResolveIdentity builds the IdentityView for an identity ID directly.
func (s *Service) ResolveIdentity(ctx context.Context, identityID string) (*IdentityView, error) {
	ident, err := getIdentity(ctx, s.db, identityID)
	if err != nil {
		return nil, err
	}

	view := &IdentityView{IdentityID: ident.ID, Kind: ident.Kind}

	view.Names, err = listNames(ctx, s.db, identityID)
	if err != nil {
		return nil, err
	}

	view.SongCredits, err = s.songCreditsForIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	view.AlbumCredits, err = s.albumCreditsForIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}

	if ident.Kind == KindGroup {
		view.Members, err = s.relatedIdentities(ctx, identityID, true)
	} else {
		view.MemberOf, err = s.relatedIdentities(ctx, identityID, false)
	}
	if err != nil {
		return nil, err
	}

	return view, nil
}

func (s *Service) songCreditsForIdentity(ctx context.Context, identityID string) ([]SongCreditRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sc.song_id, s.title, sc.name_id, an.text, sc.role_id, r.name
		FROM song_credits sc
		JOIN artist_names an ON an.id = sc.name_id
		JOIN songs s ON s.id = sc.song_id
		JOIN roles r ON r.id = sc.role_id
		WHERE an.identity_id = ?
		ORDER BY s.title, an.text, r.name
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("listing song credits: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var credits []SongCreditRef
	for rows.Next() {
		var c SongCreditRef
		if err := rows.Scan(&c.SongID, &c.SongTitle, &c.NameID, &c.CreditedAs, &c.RoleID, &c.RoleName); err != nil {
			return nil, fmt.Errorf("scanning song credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

func (s *Service) albumCreditsForIdentity(ctx context.Context, identityID string) ([]AlbumCreditRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ac.album_id, a.title, ac.name_id, an.text, ac.role_id, r.name
		FROM album_credits ac
		JOIN artist_names an ON an.id = ac.name_id
		JOIN albums a ON a.id = ac.album_id
		JOIN roles r ON r.id = ac.role_id
		WHERE an.identity_id = ?
		ORDER BY a.title, an.text, r.name
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("listing album credits: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var credits []AlbumCreditRef
	for rows.Next() {
		var c AlbumCreditRef
		if err := rows.Scan(&c.AlbumID, &c.AlbumTitle, &c.NameID, &c.CreditedAs, &c.RoleID, &c.RoleName); err != nil {
			return nil, fmt.Errorf("scanning album credit: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// relatedIdentities lists members of a group (members=true) or the groups a
// person belongs to (members=false), each with its primary name for display.
func (s *Service) relatedIdentities(ctx context.Context, identityID string, members bool) ([]RelatedIdentity, error) {
	matchCol, selectCol := "group_identity_id", "member_identity_id"
	if !members {
		matchCol, selectCol = "member_identity_id", "group_identity_id"
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT gm.`+selectCol+`, COALESCE(an.text, '')
		FROM group_memberships gm
		LEFT JOIN artist_names an ON an.identity_id = gm.`+selectCol+` AND an.is_primary = 1
		WHERE gm.`+matchCol+` = ?
		ORDER BY an.text
	`, identityID)
	if err != nil {
		return nil, fmt.Errorf("listing related identities: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var related []RelatedIdentity
	for rows.Next() {
		var r RelatedIdentity
		if err := rows.Scan(&r.IdentityID, &r.PrimaryName); err != nil {
			return nil, fmt.Errorf("scanning related identity: %w", err)
		}
		related = append(related, r)
	}
	return related, rows.Err()
}
