package identity

import (
	"strings"
	"time"
)

// Kind distinguishes a single person from a group. Memberships are only
// valid from a group to a person.
type Kind string

// Identity kinds.
const (
	KindPerson Kind = "person"
	KindGroup  Kind = "group"
)

// Valid reports whether k is a recognized identity kind.
func (k Kind) Valid() bool {
	return k == KindPerson || k == KindGroup
}

// Identity is the durable unit representing one real person or group.
// Names attach to it and can move between identities; the identity ID
// itself is stable and never reused.
type Identity struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArtistName is one credited spelling, owned by exactly one identity at a
// time. Credits reference the name row, never the identity, so a song keeps
// the spelling it was credited under no matter how identities are later
// merged or split.
type ArtistName struct {
	ID         string     `json:"id"`
	IdentityID string     `json:"identity_id"`
	Text       string     `json:"text"`
	FoldKey    string     `json:"fold_key"`
	SortKey    string     `json:"sort_key"`
	IsPrimary  bool       `json:"is_primary"`
	PromotedAt *time.Time `json:"promoted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Membership links a group identity to a person identity.
type Membership struct {
	GroupIdentityID  string    `json:"group_identity_id"`
	MemberIdentityID string    `json:"member_identity_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// leadingArticles are rotated to the end of the sort key so "The Beatles"
// sorts under B.
var leadingArticles = []string{"the ", "a ", "an "}

// SortKeyFor derives the display-sort string for a spelling. It lowercases
// via the same Unicode fold used for collision checks and rotates a leading
// English article to the end.
func SortKeyFor(text string) string {
	key := FoldKey(strings.TrimSpace(text))
	for _, article := range leadingArticles {
		if strings.HasPrefix(key, article) && len(key) > len(article) {
			return key[len(article):] + ", " + strings.TrimSpace(article)
		}
	}
	return key
}
