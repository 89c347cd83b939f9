// Package upload coordinates multipart uploads against the object store.
// It keeps no state between calls: the store records the parts and clients
// resubmit their own part list to complete.
package upload

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/metrics"
	"github.com/basit/rushupload-backend/storage"
)

const defaultContentType = "application/octet-stream"

// State of one multipart upload. Initiated → PartsInFlight → Completed, or
// Initiated → Aborted.
type State string

const (
	StateInitiated     State = "initiated"
	StatePartsInFlight State = "parts_in_flight"
	StateCompleted     State = "completed"
	StateAborted       State = "aborted"
)

// Session describes an upload as of the call that returned it.
type Session struct {
	UploadID  string                  `json:"uploadId"`
	ObjectKey string                  `json:"key"`
	State     State                   `json:"state"`
	Parts     []storage.CompletedPart `json:"parts,omitempty"`
}

// PartHandle is a presigned write for one part.
type PartHandle struct {
	PartNumber int32     `json:"partNumber"`
	URL        string    `json:"url"`
	Method     string    `json:"method"`
	ExpiresAt  time.Time `json:"expiresAt"`
	State      State     `json:"state"`
}

type Orchestrator struct {
	store      storage.Gateway
	partURLTTL time.Duration
}

func NewOrchestrator(store storage.Gateway, partURLTTL time.Duration) *Orchestrator {
	return &Orchestrator{store: store, partURLTTL: partURLTTL}
}

// Initiate opens a multipart upload at objectKey. Store failures are returned
// unchanged; retrying is the caller's decision.
func (o *Orchestrator) Initiate(ctx context.Context, objectKey, contentType string) (*Session, error) {
	if strings.TrimSpace(objectKey) == "" {
		return nil, fmt.Errorf("%w: object key is required", apperrors.ErrValidation)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	uploadID, err := o.store.CreateMultipartUpload(ctx, objectKey, contentType)
	if err != nil {
		return nil, err
	}

	metrics.UploadsInitiated.Inc()
	log.Debug().Str("upload_id", uploadID).Str("key", objectKey).Msg("multipart upload initiated")

	return &Session{UploadID: uploadID, ObjectKey: objectKey, State: StateInitiated}, nil
}

// PartUploadHandle issues a presigned write for partNumber. Nothing changes in
// the store until the caller writes through it, so re-requesting is safe.
func (o *Orchestrator) PartUploadHandle(ctx context.Context, uploadID, objectKey string, partNumber int) (*PartHandle, error) {
	if err := requireIDs(uploadID, objectKey); err != nil {
		return nil, err
	}
	if partNumber < 1 || partNumber > storage.MaxParts {
		return nil, fmt.Errorf("%w: part number must be between 1 and %d", apperrors.ErrValidation, storage.MaxParts)
	}

	req, err := o.store.PresignUploadPart(ctx, objectKey, uploadID, int32(partNumber), o.partURLTTL)
	if err != nil {
		return nil, err
	}

	return &PartHandle{
		PartNumber: int32(partNumber),
		URL:        req.URL,
		Method:     req.Method,
		ExpiresAt:  req.ExpiresAt,
		State:      StatePartsInFlight,
	}, nil
}

// Complete assembles the upload. parts must be the client's full list, numbered
// 1..n without gaps in ascending order, each with the ETag the store returned.
// On success the object is durable and readable at objectKey.
func (o *Orchestrator) Complete(ctx context.Context, uploadID, objectKey string, parts []storage.CompletedPart) (*Session, error) {
	if err := requireIDs(uploadID, objectKey); err != nil {
		return nil, err
	}
	if err := ValidateParts(parts); err != nil {
		return nil, err
	}

	if err := o.store.CompleteMultipartUpload(ctx, objectKey, uploadID, parts); err != nil {
		return nil, err
	}

	metrics.UploadsCompleted.Inc()
	log.Info().Str("upload_id", uploadID).Int("parts", len(parts)).Msg("multipart upload completed")

	return &Session{UploadID: uploadID, ObjectKey: objectKey, State: StateCompleted, Parts: parts}, nil
}

// Abort discards an upload and any parts already written.
func (o *Orchestrator) Abort(ctx context.Context, uploadID, objectKey string) (*Session, error) {
	if err := requireIDs(uploadID, objectKey); err != nil {
		return nil, err
	}
	if err := o.store.AbortMultipartUpload(ctx, objectKey, uploadID); err != nil {
		return nil, err
	}

	metrics.UploadsAborted.Inc()
	log.Info().Str("upload_id", uploadID).Msg("multipart upload aborted")

	return &Session{UploadID: uploadID, ObjectKey: objectKey, State: StateAborted}, nil
}

// ValidateParts checks a completion list: non-empty, numbered 1..n in strictly
// ascending order, every part with an ETag.
func ValidateParts(parts []storage.CompletedPart) error {
	if len(parts) == 0 {
		return fmt.Errorf("%w: no parts supplied", apperrors.ErrIncompleteUpload)
	}
	if len(parts) > storage.MaxParts {
		return fmt.Errorf("%w: more than %d parts", apperrors.ErrIncompleteUpload, storage.MaxParts)
	}
	for i, p := range parts {
		want := int32(i + 1)
		switch {
		case p.PartNumber < want && i > 0:
			return fmt.Errorf("%w: part %d is out of order", apperrors.ErrIncompleteUpload, p.PartNumber)
		case p.PartNumber != want:
			return fmt.Errorf("%w: expected part %d, got %d", apperrors.ErrIncompleteUpload, want, p.PartNumber)
		case strings.TrimSpace(p.ETag) == "":
			return fmt.Errorf("%w: part %d has no ETag", apperrors.ErrIncompleteUpload, p.PartNumber)
		}
	}
	return nil
}

func requireIDs(uploadID, objectKey string) error {
	if strings.TrimSpace(uploadID) == "" {
		return fmt.Errorf("%w: upload id is required", apperrors.ErrValidation)
	}
	if strings.TrimSpace(objectKey) == "" {
		return fmt.Errorf("%w: object key is required", apperrors.ErrValidation)
	}
	return nil
}
