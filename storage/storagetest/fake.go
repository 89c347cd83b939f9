// Package storagetest provides an in-memory storage.Gateway that validates
// multipart completion the way an S3-compatible store does.
package storagetest

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/storage"
)

type upload struct {
	key   string
	parts map[int32]string
}

// Fake is safe for concurrent use. Set Err to make every call fail with it.
type Fake struct {
	mu      sync.Mutex
	nextID  int
	uploads map[string]*upload
	objects map[string]bool

	Err     error
	Deleted []string
	Aborted []string
}

var _ storage.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		uploads: make(map[string]*upload),
		objects: make(map[string]bool),
	}
}

func (f *Fake) CreateMultipartUpload(_ context.Context, key, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &upload{key: key, parts: make(map[int32]string)}
	return id, nil
}

// WritePart simulates a client writing bytes through a presigned part handle and
// returns the ETag the store recorded.
func (f *Fake) WritePart(uploadID string, partNumber int32) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("no such upload %q", uploadID)
	}
	etag := fmt.Sprintf("\"etag-%s-%d\"", uploadID, partNumber)
	u.parts[partNumber] = etag
	return etag, nil
}

func (f *Fake) PresignUploadPart(_ context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (*storage.PresignedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	q := url.Values{}
	q.Set("uploadId", uploadID)
	q.Set("partNumber", fmt.Sprint(partNumber))
	return &storage.PresignedRequest{
		URL:       "https://fake.store/" + key + "?" + q.Encode(),
		Method:    "PUT",
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (f *Fake) CompleteMultipartUpload(_ context.Context, key, uploadID string, parts []storage.CompletedPart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	u, ok := f.uploads[uploadID]
	if !ok || u.key != key {
		return fmt.Errorf("complete multipart upload: %w: NoSuchUpload", apperrors.ErrIncompleteUpload)
	}
	var last int32
	for _, p := range parts {
		if p.PartNumber <= last {
			return fmt.Errorf("complete multipart upload: %w: InvalidPartOrder", apperrors.ErrIncompleteUpload)
		}
		last = p.PartNumber
		if etag, ok := u.parts[p.PartNumber]; !ok || etag != p.ETag {
			return fmt.Errorf("complete multipart upload: %w: InvalidPart", apperrors.ErrIncompleteUpload)
		}
	}
	delete(f.uploads, uploadID)
	f.objects[key] = true
	return nil
}

func (f *Fake) AbortMultipartUpload(_ context.Context, key, uploadID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	u, ok := f.uploads[uploadID]
	if !ok || u.key != key {
		return fmt.Errorf("abort multipart upload: %w: NoSuchUpload", apperrors.ErrIncompleteUpload)
	}
	delete(f.uploads, uploadID)
	f.Aborted = append(f.Aborted, uploadID)
	return nil
}

func (f *Fake) PresignGetObject(_ context.Context, key string, ttl time.Duration) (*storage.PresignedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return &storage.PresignedRequest{
		URL:       "https://fake.store/" + key + "?signature=fake",
		Method:    "GET",
		ExpiresAt: time.Now().Add(ttl),
	}, nil
}

func (f *Fake) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	delete(f.objects, key)
	f.Deleted = append(f.Deleted, key)
	return nil
}

func (f *Fake) PublicURL(key string) string {
	return "https://fake.store/" + key
}

// HasObject reports whether a completed upload made key readable.
func (f *Fake) HasObject(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.objects[key]
}

// PutObject marks key as readable without a multipart upload.
func (f *Fake) PutObject(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = true
}

// OpenUploads returns the number of uploads neither completed nor aborted.
func (f *Fake) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}
