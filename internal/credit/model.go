package credit

import "time"

// Role qualifies a credit: performer, composer, producer, featured.
// Seeded by migration; user-defined roles can be added later.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SongCredit links an artist name to a song in a role. The tuple is the
// primary key. Credits reference a name, not an identity: "credited as" is
// a historical fact that survives merges and splits.
type SongCredit struct {
	SongID    string    `json:"song_id"`
	NameID    string    `json:"name_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

// AlbumCredit links an artist name to an album in a role.
type AlbumCredit struct {
	AlbumID   string    `json:"album_id"`
	NameID    string    `json:"name_id"`
	RoleID    string    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}
