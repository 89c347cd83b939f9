package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/mailer"
	"github.com/basit/rushupload-backend/metrics"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
	"github.com/basit/rushupload-backend/upload"
)

const defaultMailSubject = "File Shared"

// FileInput is one uploaded object to be distributed.
type FileInput struct {
	OriginalName string `json:"originalName"`
	StorageKey   string `json:"key"`
	Type         string `json:"type"`
	Size         int64  `json:"size"`
}

type LinkInput struct {
	Title     string
	Message   string
	Files     []FileInput
	ExpiresIn time.Duration
}

type MailInput struct {
	To        []string
	Title     string
	Message   string
	Files     []FileInput
	ExpiresIn time.Duration
}

// Notifier hands a message to the delivery transport without waiting for it.
type Notifier interface {
	Deliver(msg mailer.Message)
}

// DistributionService turns a batch of uploaded objects into File rows bound
// to a Link or a Mail. Each batch commits in one transaction together with the
// owner's usage delta.
type DistributionService struct {
	db            *gorm.DB
	enforcer      *quota.Enforcer
	notifier      Notifier
	clientBaseURL string
	now           func() time.Time
}

func NewDistributionService(db *gorm.DB, enforcer *quota.Enforcer, notifier Notifier, clientBaseURL string) *DistributionService {
	return &DistributionService{
		db:            db,
		enforcer:      enforcer,
		notifier:      notifier,
		clientBaseURL: strings.TrimRight(clientBaseURL, "/"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CreateLink persists the batch behind a new public link.
func (s *DistributionService) CreateLink(ctx context.Context, ownerID uuid.UUID, in LinkInput) (*models.Link, error) {
	owner, total, limits, err := s.admit(ctx, ownerID, in.Files, in.ExpiresIn)
	if err != nil {
		return nil, err
	}

	link := &models.Link{
		ID:      shortuuid.New(),
		UserID:  owner.ID,
		Title:   strings.TrimSpace(in.Title),
		Message: strings.TrimSpace(in.Message),
	}
	expiresAt := s.now().Add(in.ExpiresIn)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(link).Error; err != nil {
			return fmt.Errorf("create link: %w", err)
		}

		files := buildFiles(owner.ID, in.Files, expiresAt)
		for i := range files {
			files[i].LinkID = &link.ID
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("create files: %w", err)
		}

		if err := commitUsage(tx, owner.ID, total, limits.MaxStorageBytes); err != nil {
			return err
		}
		link.Files = files
		return nil
	})
	if err != nil {
		return nil, s.rejected(err)
	}

	metrics.TransfersCreated.WithLabelValues("link").Inc()
	metrics.TransferBytes.Add(float64(total))
	log.Info().Str("link_id", link.ID).Str("owner_id", owner.ID.String()).
		Int("files", len(link.Files)).Int64("bytes", total).Msg("link created")

	return link, nil
}

// CreateMail persists the batch, shares every file with each recipient and
// then queues the notification. Recipients without an account get a
// placeholder FREE account. Delivery happens after commit and its outcome
// never affects the result.
func (s *DistributionService) CreateMail(ctx context.Context, ownerID uuid.UUID, in MailInput) (*models.Mail, error) {
	recipients, err := NormalizeRecipients(in.To)
	if err != nil {
		return nil, err
	}

	owner, total, limits, err := s.admit(ctx, ownerID, in.Files, in.ExpiresIn)
	if err != nil {
		return nil, err
	}

	freeLimits, err := s.enforcer.Limits(models.TierFree)
	if err != nil {
		return nil, err
	}

	mail := &models.Mail{
		UserID:  owner.ID,
		To:      recipients,
		Title:   strings.TrimSpace(in.Title),
		Message: strings.TrimSpace(in.Message),
	}
	expiresAt := s.now().Add(in.ExpiresIn)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(mail).Error; err != nil {
			return fmt.Errorf("create mail: %w", err)
		}

		accounts, err := resolveRecipients(tx, recipients, freeLimits.MaxStorageBytes)
		if err != nil {
			return err
		}

		files := buildFiles(owner.ID, in.Files, expiresAt)
		for i := range files {
			files[i].MailID = &mail.ID
			files[i].SharedTo = accounts
		}
		if err := tx.Create(&files).Error; err != nil {
			return fmt.Errorf("create files: %w", err)
		}

		if err := commitUsage(tx, owner.ID, total, limits.MaxStorageBytes); err != nil {
			return err
		}
		mail.Files = files
		return nil
	})
	if err != nil {
		return nil, s.rejected(err)
	}

	metrics.TransfersCreated.WithLabelValues("mail").Inc()
	metrics.TransferBytes.Add(float64(total))
	log.Info().Str("mail_id", mail.ID.String()).Str("owner_id", owner.ID.String()).
		Int("files", len(mail.Files)).Int("recipients", len(recipients)).Msg("mail created")

	if s.notifier != nil {
		s.notifier.Deliver(s.mailMessage(owner, mail))
	}
	return mail, nil
}

// PreviewURL is where recipients open a mail.
func (s *DistributionService) PreviewURL(mailID uuid.UUID) string {
	return s.clientBaseURL + "/preview/" + mailID.String()
}

func (s *DistributionService) mailMessage(owner *models.User, mail *models.Mail) mailer.Message {
	subject := mail.Title
	if subject == "" {
		subject = defaultMailSubject
	}

	noun := "files"
	if len(mail.Files) == 1 {
		noun = "file"
	}
	body := fmt.Sprintf("%s shared %d %s with you.", owner.Email, len(mail.Files), noun)
	if mail.Message != "" {
		body += "\n\n" + mail.Message
	}

	return mailer.Message{
		To:      mail.To,
		Subject: subject,
		Body:    body,
		Link:    s.PreviewURL(mail.ID),
	}
}

// admit validates the batch and checks it against the owner's tier using the
// owner's current usage. It has no side effects.
func (s *DistributionService) admit(ctx context.Context, ownerID uuid.UUID, files []FileInput, expiresIn time.Duration) (*models.User, int64, quota.Limits, error) {
	total, err := validateFiles(ownerID, files)
	if err != nil {
		return nil, 0, quota.Limits{}, err
	}

	var owner models.User
	if err := s.db.WithContext(ctx).First(&owner, "id = ?", ownerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, quota.Limits{}, apperrors.ErrOwnerNotFound
		}
		return nil, 0, quota.Limits{}, fmt.Errorf("load owner: %w", err)
	}

	if err := s.enforcer.Validate(owner.Tier, total, expiresIn, owner.UsedStorage); err != nil {
		return nil, 0, quota.Limits{}, s.rejected(err)
	}
	limits, err := s.enforcer.Limits(owner.Tier)
	if err != nil {
		return nil, 0, quota.Limits{}, err
	}
	return &owner, total, limits, nil
}

func (s *DistributionService) rejected(err error) error {
	if reason := apperrors.ConstraintReason(err); reason != "" {
		metrics.ConstraintRejections.WithLabelValues(reason).Inc()
	}
	return err
}

func validateFiles(ownerID uuid.UUID, files []FileInput) (int64, error) {
	if len(files) == 0 {
		return 0, fmt.Errorf("%w: at least one file is required", apperrors.ErrValidation)
	}

	var total int64
	seen := make(map[string]struct{}, len(files))
	for i, f := range files {
		switch {
		case strings.TrimSpace(f.OriginalName) == "":
			return 0, fmt.Errorf("%w: file %d has no name", apperrors.ErrValidation, i)
		case !upload.OwnsKey(ownerID, f.StorageKey):
			return 0, fmt.Errorf("%w: file %d has an invalid key", apperrors.ErrValidation, i)
		case f.Size < 0:
			return 0, fmt.Errorf("%w: file %d has a negative size", apperrors.ErrValidation, i)
		case total > math.MaxInt64-f.Size:
			return 0, fmt.Errorf("%w: batch size overflows", apperrors.ErrValidation)
		}
		if _, dup := seen[f.StorageKey]; dup {
			return 0, fmt.Errorf("%w: file %d is listed twice", apperrors.ErrValidation, i)
		}
		seen[f.StorageKey] = struct{}{}
		total += f.Size
	}
	return total, nil
}

func buildFiles(ownerID uuid.UUID, inputs []FileInput, expiresAt time.Time) []models.File {
	files := make([]models.File, len(inputs))
	for i, in := range inputs {
		files[i] = models.File{
			UserID:       ownerID,
			OriginalName: strings.TrimSpace(in.OriginalName),
			StorageKey:   in.StorageKey,
			Type:         in.Type,
			Size:         in.Size,
			ExpiredAt:    expiresAt,
			BatchIndex:   i,
		}
	}
	return files
}

// commitUsage adds delta to the owner's usage in a single conditional update.
// The row only changes if the result stays within both the tier maximum and
// the account's total, so concurrent transfers cannot overshoot.
func commitUsage(tx *gorm.DB, ownerID uuid.UUID, delta, tierMax int64) error {
	if delta == 0 {
		return nil
	}
	res := tx.Model(&models.User{}).
		Where("id = ? AND used_storage + ? <= ? AND used_storage + ? <= total_storage", ownerID, delta, tierMax, delta).
		UpdateColumn("used_storage", gorm.Expr("used_storage + ?", delta))
	if res.Error != nil {
		return fmt.Errorf("update storage usage: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrQuotaExceeded
	}
	return nil
}

// resolveRecipients returns one account per address, creating placeholders
// for addresses never seen before. Concurrent creation of the same address is
// settled by the unique email index.
func resolveRecipients(tx *gorm.DB, emails []string, freeStorage int64) ([]models.User, error) {
	accounts := make([]models.User, 0, len(emails))
	for _, email := range emails {
		placeholder := models.User{
			Email:         email,
			Tier:          models.TierFree,
			TotalStorage:  freeStorage,
			UsedStorage:   0,
			IsPlaceholder: true,
		}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).Create(&placeholder).Error; err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrRecipientResolution, email, err)
		}

		var account models.User
		if err := tx.Where("email = ?", email).First(&account).Error; err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperrors.ErrRecipientResolution, email, err)
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}
