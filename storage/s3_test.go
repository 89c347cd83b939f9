package storage

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/rushupload-backend/apperrors"
)

func newTestGateway(t *testing.T, opts S3Options) *S3Gateway {
	t.Helper()
	client := s3.New(s3.Options{
		Region:       "us-west-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
		BaseEndpoint: aws.String("https://s3.example.test"),
		UsePathStyle: true,
	})
	return NewS3Gateway(client, opts)
}

func TestS3Gateway_PresignUploadPart(t *testing.T) {
	g := newTestGateway(t, S3Options{Bucket: "rush", Region: "us-west-1"})

	req, err := g.PresignUploadPart(context.Background(), "owner/abc/report.pdf", "upload-1", 3, 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "PUT", req.Method)
	assert.Equal(t, "/rush/owner/abc/report.pdf", u.Path)
	assert.Equal(t, "3", u.Query().Get("partNumber"))
	assert.Equal(t, "upload-1", u.Query().Get("uploadId"))
	assert.NotEmpty(t, u.Query().Get("X-Amz-Signature"))
	assert.Equal(t, "900", u.Query().Get("X-Amz-Expires"))
}

func TestS3Gateway_PresignGetObject(t *testing.T) {
	g := newTestGateway(t, S3Options{Bucket: "rush", Region: "us-west-1"})

	req, err := g.PresignGetObject(context.Background(), "owner/abc/photo.png", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "GET", req.Method)
	assert.True(t, strings.Contains(req.URL, "X-Amz-Signature="))
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), req.ExpiresAt, 5*time.Second)
}

func TestS3Gateway_PublicURL(t *testing.T) {
	t.Run("virtual hosted default", func(t *testing.T) {
		g := newTestGateway(t, S3Options{Bucket: "rush", Region: "us-west-1"})
		assert.Equal(t, "https://rush.s3.us-west-1.amazonaws.com/a/b/my%20file.txt", g.PublicURL("a/b/my file.txt"))
	})

	t.Run("configured base", func(t *testing.T) {
		g := newTestGateway(t, S3Options{Bucket: "rush", PublicBaseURL: "https://rush.s3.us-west-1.wasabisys.com/"})
		assert.Equal(t, "https://rush.s3.us-west-1.wasabisys.com/k/v.zip", g.PublicURL("k/v.zip"))
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"invalid part", &smithy.GenericAPIError{Code: "InvalidPart"}, apperrors.ErrIncompleteUpload},
		{"invalid order", &smithy.GenericAPIError{Code: "InvalidPartOrder"}, apperrors.ErrIncompleteUpload},
		{"no such upload", &smithy.GenericAPIError{Code: "NoSuchUpload"}, apperrors.ErrIncompleteUpload},
		{"no such key", &smithy.GenericAPIError{Code: "NoSuchKey"}, apperrors.ErrNotFound},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, apperrors.ErrStoreUnavailable},
		{"transport", errors.New("dial tcp: connection refused"), apperrors.ErrStoreUnavailable},
		{"timeout", context.DeadlineExceeded, apperrors.ErrStoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("op", tt.err), tt.want)
		})
	}
}
