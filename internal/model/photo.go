package model

import "time"

// Photo is an image stored with the configured photo host.
// ID is the host's public id.
type Photo struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	IsMain    bool      `json:"is_main"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
