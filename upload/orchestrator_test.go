package upload

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/storage"
	"github.com/basit/rushupload-backend/storage/storagetest"
)

func newOrchestrator(t *testing.T) (*Orchestrator, *storagetest.Fake) {
	t.Helper()
	store := storagetest.New()
	return NewOrchestrator(store, 15*time.Minute), store
}

func writeParts(t *testing.T, store *storagetest.Fake, uploadID string, n int) []storage.CompletedPart {
	t.Helper()
	parts := make([]storage.CompletedPart, 0, n)
	for i := 1; i <= n; i++ {
		etag, err := store.WritePart(uploadID, int32(i))
		require.NoError(t, err)
		parts = append(parts, storage.CompletedPart{PartNumber: int32(i), ETag: etag})
	}
	return parts
}

func TestUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)

	sess, err := o.Initiate(ctx, "owner/abc/report.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, sess.State)
	assert.NotEmpty(t, sess.UploadID)

	for n := 1; n <= 3; n++ {
		h, err := o.PartUploadHandle(ctx, sess.UploadID, sess.ObjectKey, n)
		require.NoError(t, err)
		assert.Equal(t, int32(n), h.PartNumber)
		assert.Equal(t, "PUT", h.Method)
		assert.Equal(t, StatePartsInFlight, h.State)
		assert.Contains(t, h.URL, "uploadId="+sess.UploadID)
	}

	parts := writeParts(t, store, sess.UploadID, 3)
	done, err := o.Complete(ctx, sess.UploadID, sess.ObjectKey, parts)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, done.State)
	assert.True(t, store.HasObject(sess.ObjectKey))
	assert.Zero(t, store.OpenUploads())
}

func TestPartUploadHandleIsRepeatable(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	sess, err := o.Initiate(ctx, "owner/abc/a.bin", "")
	require.NoError(t, err)

	first, err := o.PartUploadHandle(ctx, sess.UploadID, sess.ObjectKey, 2)
	require.NoError(t, err)
	second, err := o.PartUploadHandle(ctx, sess.UploadID, sess.ObjectKey, 2)
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
}

func TestPartUploadHandleRejectsPartNumber(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)

	for _, n := range []int{0, -1, storage.MaxParts + 1} {
		_, err := o.PartUploadHandle(ctx, "upload-1", "owner/abc/a.bin", n)
		assert.ErrorIs(t, err, apperrors.ErrValidation, "part %d", n)
	}

	_, err := o.PartUploadHandle(ctx, "upload-1", "owner/abc/a.bin", storage.MaxParts)
	assert.NoError(t, err)
}

func TestCompleteRejectsBadPartLists(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func([]storage.CompletedPart) []storage.CompletedPart
	}{
		{"empty", func([]storage.CompletedPart) []storage.CompletedPart { return nil }},
		{"gap", func(p []storage.CompletedPart) []storage.CompletedPart { return []storage.CompletedPart{p[0], p[2]} }},
		{"descending", func(p []storage.CompletedPart) []storage.CompletedPart {
			return []storage.CompletedPart{p[0], p[2], p[1]}
		}},
		{"duplicate", func(p []storage.CompletedPart) []storage.CompletedPart {
			return []storage.CompletedPart{p[0], p[0], p[1]}
		}},
		{"not starting at one", func(p []storage.CompletedPart) []storage.CompletedPart { return p[1:] }},
		{"missing etag", func(p []storage.CompletedPart) []storage.CompletedPart {
			p[1].ETag = ""
			return p
		}},
		{"wrong etag", func(p []storage.CompletedPart) []storage.CompletedPart {
			p[2].ETag = `"bogus"`
			return p
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, store := newOrchestrator(t)
			sess, err := o.Initiate(ctx, "owner/abc/a.bin", "")
			require.NoError(t, err)
			parts := tt.mutate(writeParts(t, store, sess.UploadID, 3))

			_, err = o.Complete(ctx, sess.UploadID, sess.ObjectKey, parts)
			assert.ErrorIs(t, err, apperrors.ErrIncompleteUpload)
			assert.False(t, store.HasObject(sess.ObjectKey))
		})
	}
}

func TestCompleteUnknownUpload(t *testing.T) {
	o, _ := newOrchestrator(t)
	parts := []storage.CompletedPart{{PartNumber: 1, ETag: `"x"`}}

	_, err := o.Complete(context.Background(), "upload-404", "owner/abc/a.bin", parts)
	assert.ErrorIs(t, err, apperrors.ErrIncompleteUpload)
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)
	sess, err := o.Initiate(ctx, "owner/abc/a.bin", "")
	require.NoError(t, err)
	writeParts(t, store, sess.UploadID, 2)

	aborted, err := o.Abort(ctx, sess.UploadID, sess.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, StateAborted, aborted.State)
	assert.Equal(t, []string{sess.UploadID}, store.Aborted)
	assert.Zero(t, store.OpenUploads())

	_, err = o.Complete(ctx, sess.UploadID, sess.ObjectKey, []storage.CompletedPart{{PartNumber: 1, ETag: `"x"`}})
	assert.ErrorIs(t, err, apperrors.ErrIncompleteUpload)
}

func TestStoreFailuresPassThrough(t *testing.T) {
	ctx := context.Background()
	o, store := newOrchestrator(t)
	store.Err = errors.Join(apperrors.ErrStoreUnavailable, errors.New("connection reset"))

	_, err := o.Initiate(ctx, "owner/abc/a.bin", "")
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)

	_, err = o.PartUploadHandle(ctx, "upload-1", "owner/abc/a.bin", 1)
	assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
}

func TestInitiateRequiresKey(t *testing.T) {
	o, _ := newOrchestrator(t)
	_, err := o.Initiate(context.Background(), "  ", "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestObjectKey(t *testing.T) {
	owner := uuid.New()

	a := ObjectKey(owner, "../../etc/passwd")
	b := ObjectKey(owner, "../../etc/passwd")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, owner.String()+"/"))
	assert.True(t, strings.HasSuffix(a, "/passwd"))
	assert.True(t, OwnsKey(owner, a))
	assert.False(t, OwnsKey(uuid.New(), a))
}

func TestOwnsKey(t *testing.T) {
	owner := uuid.New()
	prefix := owner.String()

	assert.True(t, OwnsKey(owner, prefix+"/n/file.txt"))
	assert.False(t, OwnsKey(owner, prefix))
	assert.False(t, OwnsKey(owner, prefix+"/"))
	assert.False(t, OwnsKey(owner, prefix+"/../other/file.txt"))
	assert.False(t, OwnsKey(owner, prefix+"x/n/file.txt"))
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"report.pdf":          "report.pdf",
		"dir/sub/report.pdf":  "report.pdf",
		`C:\Users\me\a b.txt`: "a b.txt",
		"bad\x00name\n.txt":   "badname.txt",
		"":                    "upload",
		"..":                  "upload",
		"/":                   "upload",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}
