package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
	"github.com/basit/rushupload-backend/testutil"
)

const week = 7 * 24 * time.Hour

func TestCreateLinkFillsQuotaToBoundary(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 1_000_000_000)

	link, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
		Title:     "Q3 report",
		Files:     []FileInput{fileFor(owner, "report.pdf", 73_741_824)},
		ExpiresIn: week,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, link.ID)
	require.Len(t, link.Files, 1)
	assert.Equal(t, int64(1_073_741_824), f.usage(t, owner.ID))
}

func TestCreateLinkQuotaExceeded(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 1_000_000_000)

	_, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
		Files:     []FileInput{fileFor(owner, "big.bin", 100_000_000)},
		ExpiresIn: week,
	})
	require.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
	assert.Equal(t, "QuotaExceeded", apperrors.ConstraintReason(err))

	assert.Equal(t, int64(1_000_000_000), f.usage(t, owner.ID))
	assert.Zero(t, f.count(t, &models.File{}))
	assert.Zero(t, f.count(t, &models.Link{}))
}

func TestCreateLinkExpiryTooLong(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)

	_, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
		Files:     []FileInput{fileFor(owner, "a.txt", 10)},
		ExpiresIn: 8 * 24 * time.Hour,
	})
	assert.ErrorIs(t, err, apperrors.ErrExpiryTooLong)
	assert.Zero(t, f.count(t, &models.File{}))
}

func TestCreateLinkBatchSharesExpiry(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.dist.now = func() time.Time { return fixed }

	link, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
		Files: []FileInput{
			fileFor(owner, "a.txt", 100),
			fileFor(owner, "b.txt", 200),
			fileFor(owner, "c.txt", 300),
		},
		ExpiresIn: 3 * 24 * time.Hour,
	})
	require.NoError(t, err)

	var files []models.File
	require.NoError(t, f.db.Where("link_id = ?", link.ID).Order("batch_index").Find(&files).Error)
	require.Len(t, files, 3)
	want := fixed.Add(3 * 24 * time.Hour)
	for i, file := range files {
		assert.Equal(t, i, file.BatchIndex)
		assert.True(t, want.Equal(file.ExpiredAt), "file %d expires at %s", i, file.ExpiredAt)
		assert.Equal(t, owner.ID, file.UserID)
	}
	assert.Equal(t, int64(600), f.usage(t, owner.ID))
}

func TestCreateLinkIsAtomic(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 500)

	injected := errors.New("injected usage failure")
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_usage", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			_ = tx.AddError(injected)
		}
	}))

	_, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
		Files:     []FileInput{fileFor(owner, "a.txt", 100), fileFor(owner, "b.txt", 200)},
		ExpiresIn: week,
	})
	require.ErrorIs(t, err, injected)

	assert.Equal(t, int64(500), f.usage(t, owner.ID))
	assert.Zero(t, f.count(t, &models.File{}))
	assert.Zero(t, f.count(t, &models.Link{}))
}

func TestCreateMailIsAtomic(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)

	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_usage", func(tx *gorm.DB) {
		if tx.Statement.Table == "users" {
			_ = tx.AddError(errors.New("injected"))
		}
	}))

	_, err := f.dist.CreateMail(context.Background(), owner.ID, MailInput{
		To:        []string{"new@example.com"},
		Files:     []FileInput{fileFor(owner, "a.txt", 100)},
		ExpiresIn: week,
	})
	require.Error(t, err)

	assert.Zero(t, f.count(t, &models.File{}))
	assert.Zero(t, f.count(t, &models.Mail{}))
	assert.Equal(t, int64(1), f.count(t, &models.User{}), "placeholder must roll back too")
	assert.Empty(t, f.notifier.sent)
}

func TestCreateLinkValidation(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)
	other := uuid.New()
	ctx := context.Background()

	tests := []struct {
		name  string
		files []FileInput
	}{
		{"no files", nil},
		{"foreign key", []FileInput{{OriginalName: "a", StorageKey: other.String() + "/n/a", Size: 1}}},
		{"missing name", []FileInput{{StorageKey: owner.ID.String() + "/n/a", Size: 1}}},
		{"negative size", []FileInput{{OriginalName: "a", StorageKey: owner.ID.String() + "/n/a", Size: -1}}},
		{"duplicate key", []FileInput{
			{OriginalName: "a", StorageKey: owner.ID.String() + "/n/a", Size: 1},
			{OriginalName: "a", StorageKey: owner.ID.String() + "/n/a", Size: 1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.dist.CreateLink(ctx, owner.ID, LinkInput{Files: tt.files, ExpiresIn: week})
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
	assert.Zero(t, f.count(t, &models.File{}))
}

func TestCreateLinkOwnerNotFound(t *testing.T) {
	f := setup(t)
	ghost := &models.User{ID: uuid.New()}

	_, err := f.dist.CreateLink(context.Background(), ghost.ID, LinkInput{
		Files:     []FileInput{fileFor(ghost, "a.txt", 1)},
		ExpiresIn: week,
	})
	assert.ErrorIs(t, err, apperrors.ErrOwnerNotFound)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCreateMailProvisionsPlaceholders(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)

	mail, err := f.dist.CreateMail(context.Background(), owner.ID, MailInput{
		To:        []string{" Alice@Example.com, bob@example.com", "alice@example.com"},
		Message:   "see attached",
		Files:     []FileInput{fileFor(owner, "a.txt", 100), fileFor(owner, "b.txt", 50)},
		ExpiresIn: week,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice@example.com", "bob@example.com"}, mail.To)
	assert.Equal(t, int64(150), f.usage(t, owner.ID))

	var recipients []models.User
	require.NoError(t, f.db.Where("email IN ?", mail.To).Order("email").Find(&recipients).Error)
	require.Len(t, recipients, 2)
	for _, r := range recipients {
		assert.Equal(t, models.TierFree, r.Tier)
		assert.Zero(t, r.UsedStorage)
		assert.Equal(t, quota.GiB, r.TotalStorage)
		assert.True(t, r.IsPlaceholder)
	}

	var files []models.File
	require.NoError(t, f.db.Preload("SharedTo").Where("mail_id = ?", mail.ID).Find(&files).Error)
	require.Len(t, files, 2)
	for _, file := range files {
		var shared []string
		for _, u := range file.SharedTo {
			shared = append(shared, u.Email)
		}
		assert.ElementsMatch(t, mail.To, shared)
	}

	require.Len(t, f.notifier.sent, 1)
	msg := f.notifier.sent[0]
	assert.Equal(t, "File Shared", msg.Subject)
	assert.Equal(t, mail.To, msg.To)
	assert.Equal(t, "https://app.example/preview/"+mail.ID.String(), msg.Link)
	assert.Contains(t, msg.Body, "owner@example.com shared 2 files with you.")
	assert.Contains(t, msg.Body, "see attached")
}

func TestCreateMailReusesExistingAccounts(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)
	existing := testutil.CreateUser(t, f.db, "pro@example.com", models.TierPro, 100*quota.GiB, 0)

	mail, err := f.dist.CreateMail(context.Background(), owner.ID, MailInput{
		To:        []string{"pro@example.com"},
		Title:     "Contract",
		Files:     []FileInput{fileFor(owner, "a.txt", 1)},
		ExpiresIn: week,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.count(t, &models.User{}))

	var reloaded models.User
	require.NoError(t, f.db.First(&reloaded, "id = ?", existing.ID).Error)
	assert.Equal(t, models.TierPro, reloaded.Tier)
	assert.False(t, reloaded.IsPlaceholder)

	shared, err := f.files.ListShared(context.Background(), existing.ID, "")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, mail.ID, *shared[0].MailID)
	assert.Equal(t, "Contract", f.notifier.sent[0].Subject)
}

func TestCreateMailRejectsBadRecipient(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", 0)

	_, err := f.dist.CreateMail(context.Background(), owner.ID, MailInput{
		To:        []string{"ok@example.com", "not-an-email"},
		Files:     []FileInput{fileFor(owner, "a.txt", 1)},
		ExpiresIn: week,
	})
	assert.ErrorIs(t, err, apperrors.ErrRecipientResolution)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, int64(1), f.count(t, &models.User{}))
	assert.Zero(t, f.count(t, &models.File{}))
	assert.Empty(t, f.notifier.sent)
}

func TestConcurrentTransfersCannotOvershootQuota(t *testing.T) {
	f := setup(t)
	owner := f.freeUser(t, "owner@example.com", quota.GiB-100)

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := f.dist.CreateLink(context.Background(), owner.ID, LinkInput{
				Files:     []FileInput{fileFor(owner, "a.txt", 60)},
				ExpiresIn: week,
			})
			errs <- err
		}()
	}

	var ok, rejected int
	for i := 0; i < 4; i++ {
		if err := <-errs; err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, apperrors.ErrQuotaExceeded)
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 3, rejected)
	assert.Equal(t, quota.GiB-40, f.usage(t, owner.ID))
	assert.Equal(t, int64(1), f.count(t, &models.File{}))
}
