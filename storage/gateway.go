// Package storage is the object-store capability the upload and download paths
// are written against. Bytes never pass through it: clients write parts and read
// objects through the presigned requests it issues.
package storage

import (
	"context"
	"time"
)

// MaxParts is the largest part number an S3-compatible multipart upload accepts.
const MaxParts = 10000

// CompletedPart is a part the client reports as written, in the shape S3 expects
// when completing an upload.
type CompletedPart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"eTag"`
}

// PresignedRequest is a time-limited handle to read or write an object directly.
type PresignedRequest struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Gateway is implemented by S3Gateway and by storagetest.Fake.
type Gateway interface {
	CreateMultipartUpload(ctx context.Context, key, contentType string) (uploadID string, err error)
	PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (*PresignedRequest, error)
	CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error
	AbortMultipartUpload(ctx context.Context, key, uploadID string) error
	PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*PresignedRequest, error)
	DeleteObject(ctx context.Context, key string) error
	// PublicURL derives the bucket URL of key without signing it.
	PublicURL(key string) string
}
