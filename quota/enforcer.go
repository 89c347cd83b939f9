// Package quota decides whether a transfer fits an account's tier. It has no
// side effects so it is tested without storage or network.
package quota

import (
	"fmt"
	"time"

	"github.com/basit/rushupload-backend/apperrors"
	"github.com/basit/rushupload-backend/models"
)

const (
	KiB int64 = 1 << 10
	MiB       = KiB << 10
	GiB       = MiB << 10
	TiB       = GiB << 10
)

// Limits is what one tier allows.
type Limits struct {
	MaxStorageBytes int64
	// MaxSingleTransferBytes of zero means the tier has no per-transfer cap.
	MaxSingleTransferBytes int64
	MaxExpiry              time.Duration
}

// Table maps every known tier to its limits.
type Table map[models.Tier]Limits

// DefaultTable is the version 1 tier table.
func DefaultTable() Table {
	return Table{
		models.TierFree: {
			MaxStorageBytes:        1 * GiB,
			MaxSingleTransferBytes: 1 * GiB,
			MaxExpiry:              7 * 24 * time.Hour,
		},
		models.TierPro: {
			MaxStorageBytes:        100 * GiB,
			MaxSingleTransferBytes: 20 * GiB,
			MaxExpiry:              30 * 24 * time.Hour,
		},
		models.TierPremium: {
			MaxStorageBytes: 1 * TiB,
			MaxExpiry:       90 * 24 * time.Hour,
		},
	}
}

type Enforcer struct {
	limits Table
}

func NewEnforcer(limits Table) *Enforcer {
	return &Enforcer{limits: limits}
}

// Limits returns the limits of tier.
func (e *Enforcer) Limits(tier models.Tier) (Limits, error) {
	l, ok := e.limits[tier]
	if !ok || !tier.Valid() {
		return Limits{}, fmt.Errorf("%w: unknown tier %q", apperrors.ErrValidation, tier)
	}
	return l, nil
}

// Validate checks a transfer of requestedBytes kept for expiry against tier,
// given usedBytes already stored. The first failing check wins: storage quota,
// then single transfer size, then expiry.
func (e *Enforcer) Validate(tier models.Tier, requestedBytes int64, expiry time.Duration, usedBytes int64) error {
	l, err := e.Limits(tier)
	if err != nil {
		return err
	}
	if requestedBytes < 0 {
		return fmt.Errorf("%w: requested size must not be negative", apperrors.ErrValidation)
	}
	if expiry <= 0 {
		return fmt.Errorf("%w: expiry must be positive", apperrors.ErrValidation)
	}
	if usedBytes < 0 {
		return fmt.Errorf("%w: used storage must not be negative", apperrors.ErrValidation)
	}

	// Written as a subtraction so huge requests cannot overflow.
	if requestedBytes > l.MaxStorageBytes-usedBytes {
		return fmt.Errorf("%w: used %d + requested %d > %d", apperrors.ErrQuotaExceeded, usedBytes, requestedBytes, l.MaxStorageBytes)
	}
	if l.MaxSingleTransferBytes > 0 && requestedBytes > l.MaxSingleTransferBytes {
		return fmt.Errorf("%w: requested %d > %d", apperrors.ErrTransferTooLarge, requestedBytes, l.MaxSingleTransferBytes)
	}
	if expiry > l.MaxExpiry {
		return fmt.Errorf("%w: requested %s > %s", apperrors.ErrExpiryTooLong, expiry, l.MaxExpiry)
	}
	return nil
}
