// Package media stores user profile images in an S3-compatible object store.
package media

import (
	"context"
)

// Image describes a stored profile image.
type Image struct {
	// ID is the object key in the backing store.
	ID string

	// URL is the publicly reachable address of the image.
	URL string
}

// Storage uploads and deletes profile images.
type Storage interface {
	// Upload stores content under a generated key inside folder and
	// returns the stored image's ID and public URL.
	Upload(ctx context.Context, content []byte, contentType, folder string) (*Image, error)

	// Delete removes a stored image by ID. Deleting a missing image is not
	// an error.
	Delete(ctx context.Context, id string) error
}

// NoopStorage rejects nothing and stores nothing. Used when media is
// disabled and in tests.
type NoopStorage struct{}

// NewNoopStorage creates a storage that discards uploads.
func NewNoopStorage() *NoopStorage {
	return &NoopStorage{}
}

func (s *NoopStorage) Upload(ctx context.Context, content []byte, contentType, folder string) (*Image, error) {
	return &Image{ID: "", URL: ""}, nil
}

func (s *NoopStorage) Delete(ctx context.Context, id string) error {
	return nil
}

var _ Storage = (*NoopStorage)(nil)
