package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/basit/rushupload-backend/apperrors"
)

const defaultTimeout = 30 * time.Second

// S3Options configures an S3Gateway.
type S3Options struct {
	Bucket string
	Region string
	// PublicBaseURL overrides the virtual-hosted bucket URL used by PublicURL,
	// e.g. "https://bucket.s3.us-west-1.wasabisys.com".
	PublicBaseURL string
	// Timeout bounds every store call; zero means 30s.
	Timeout time.Duration
}

// S3Gateway implements Gateway on an S3-compatible store.
type S3Gateway struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    S3Options
}

func NewS3Gateway(client *s3.Client, opts S3Options) *S3Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &S3Gateway{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    opts,
	}
}

func (g *S3Gateway) CreateMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(g.opts.Bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	out, err := g.client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", classify("create multipart upload", err)
	}
	return aws.ToString(out.UploadId), nil
}

func (g *S3Gateway) PresignUploadPart(ctx context.Context, key, uploadID string, partNumber int32, ttl time.Duration) (*PresignedRequest, error) {
	req, err := g.presign.PresignUploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(g.opts.Bucket),
		Key:        aws.String(key),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, classify("presign upload part", err)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (g *S3Gateway) CompleteMultipartUpload(ctx context.Context, key, uploadID string, parts []CompletedPart) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	completed := make([]types.CompletedPart, 0, len(parts))
	for _, p := range parts {
		completed = append(completed, types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		})
	}

	_, err := g.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(g.opts.Bucket),
		Key:             aws.String(key),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return classify("complete multipart upload", err)
	}
	return nil
}

func (g *S3Gateway) AbortMultipartUpload(ctx context.Context, key, uploadID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	_, err := g.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(g.opts.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		return classify("abort multipart upload", err)
	}
	return nil
}

func (g *S3Gateway) PresignGetObject(ctx context.Context, key string, ttl time.Duration) (*PresignedRequest, error) {
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, classify("presign get object", err)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, ExpiresAt: time.Now().Add(ttl)}, nil
}

func (g *S3Gateway) DeleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return classify("delete object", err)
	}
	return nil
}

func (g *S3Gateway) PublicURL(key string) string {
	base := strings.TrimRight(g.opts.PublicBaseURL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", g.opts.Bucket, g.opts.Region)
	}
	return base + "/" + escapeKey(key)
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// classify maps SDK failures onto the error taxonomy. Part-list rejections
// become ErrIncompleteUpload; everything else, timeouts included, is
// ErrStoreUnavailable.
func classify(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "InvalidPart", "InvalidPartOrder", "NoSuchUpload", "EntityTooSmall":
			return fmt.Errorf("%s: %w: %s", op, apperrors.ErrIncompleteUpload, apiErr.ErrorCode())
		case "NoSuchKey":
			return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrStoreUnavailable, err)
}
