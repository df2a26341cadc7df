// Package photos stores user photos with an image host and manages which
// photo is a user's main image.
package photos

import (
	"context"
	"errors"
	"io"
)

// ErrEmptyFile is returned when an upload has no content.
var ErrEmptyFile = errors.New("photo file is empty")

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult identifies a stored photo.
type UploadResult struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
}

// Accessor stores and removes images on a photo host.
//
// DeletePhoto returns "ok" when the host confirmed the delete and "" when it
// did not.
type Accessor interface {
	AddPhoto(ctx context.Context, file Upload) (*UploadResult, error)
	DeletePhoto(ctx context.Context, publicID string) (string, error)
}

// UploadError carries the host's message for a failed upload.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

const deleteOK = "ok"
