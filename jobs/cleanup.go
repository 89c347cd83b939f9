package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/metrics"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/storage"
)

const sweepBatchSize = 500

// ExpiryJob flags files past their expiry. With purge enabled it also deletes
// their objects; rows are always kept.
type ExpiryJob struct {
	db       *gorm.DB
	store    storage.Gateway
	interval time.Duration
	purge    bool
	now      func() time.Time
	done     chan struct{}
}

func NewExpiryJob(db *gorm.DB, store storage.Gateway, interval time.Duration, purge bool) *ExpiryJob {
	return &ExpiryJob{
		db:       db,
		store:    store,
		interval: interval,
		purge:    purge,
		now:      func() time.Time { return time.Now().UTC() },
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval until ctx is done.
func (j *ExpiryJob) Start(ctx context.Context) {
	log.Info().Dur("interval", j.interval).Bool("purge", j.purge).Msg("expiry job started")

	go func() {
		defer close(j.done)
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.sweep(ctx)
		for {
			select {
			case <-ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				log.Info().Msg("expiry job stopping")
				return
			}
		}
	}()
}

// Wait blocks until the job has stopped.
func (j *ExpiryJob) Wait() {
	<-j.done
}

func (j *ExpiryJob) sweep(ctx context.Context) {
	n, err := j.RunOnce(ctx)
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int("expired", n).Msg("expiry sweep complete")
	}
}

// RunOnce processes every file that has passed its expiry but is not yet
// flagged, and returns how many it flagged. A file whose object cannot be
// deleted stays unflagged so the next sweep retries it.
func (j *ExpiryJob) RunOnce(ctx context.Context) (int, error) {
	total := 0
	for {
		var batch []models.File
		err := j.db.WithContext(ctx).
			Select("id", "storage_key").
			Where("is_expired = ? AND expired_at <= ?", false, j.now()).
			Order("expired_at").
			Limit(sweepBatchSize).
			Find(&batch).Error
		if err != nil {
			return total, fmt.Errorf("find expired files: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		ids := make([]uuid.UUID, 0, len(batch))
		for _, f := range batch {
			if j.purge {
				if err := j.store.DeleteObject(ctx, f.StorageKey); err != nil {
					log.Warn().Err(err).Str("file_id", f.ID.String()).Msg("delete expired object failed")
					continue
				}
			}
			ids = append(ids, f.ID)
		}
		if len(ids) == 0 {
			return total, nil
		}

		res := j.db.WithContext(ctx).Model(&models.File{}).
			Where("id IN ? AND is_expired = ?", ids, false).
			UpdateColumn("is_expired", true)
		if res.Error != nil {
			return total, fmt.Errorf("flag expired files: %w", res.Error)
		}
		total += int(res.RowsAffected)
		metrics.FilesExpired.Add(float64(res.RowsAffected))

		if len(batch) < sweepBatchSize || len(ids) < len(batch) {
			return total, nil
		}
	}
}
