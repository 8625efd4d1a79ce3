// Package storage provides a small interface over S3-compatible object storage.
package storage

import "context"

// ObjectStore writes immutable objects to a bucket.
type ObjectStore interface {
	// PutObject stores data under key, replacing any existing object.
	PutObject(ctx context.Context, bucket, key, contentType string, data []byte) error

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
