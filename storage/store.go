package storage

import "context"

// ImageStore resolves and manages prize images kept in an object bucket.
// Objects are uploaded out of band; the service only references them by key.
type ImageStore interface {
	// Exists reports whether key is present in the bucket.
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
