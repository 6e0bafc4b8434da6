package catalog

import "time"

// Album is a minimal album record. Rich metadata (art, tags, release IDs)
// lives with the import side of the application, not here.
type Album struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Song is a minimal song record, optionally attached to an album.
type Song struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	AlbumID      string    `json:"album_id,omitempty"`
	TrackNo      int       `json:"track_no"`
	DurationSecs int       `json:"duration_secs"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
