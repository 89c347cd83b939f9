package services

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/basit/rushupload-backend/apperrors"
)

var validate = validator.New()

// MaxRecipients bounds a single mail.
const MaxRecipients = 50

// NormalizeRecipients trims, lower-cases and validates each address, splitting
// entries on commas, and drops repeats keeping the first occurrence.
func NormalizeRecipients(raw []string) ([]string, error) {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(raw))

	for _, entry := range raw {
		for _, addr := range strings.Split(entry, ",") {
			addr = strings.ToLower(strings.TrimSpace(addr))
			if addr == "" {
				continue
			}
			if err := validate.Var(addr, "required,email"); err != nil {
				return nil, fmt.Errorf("%w: invalid email %q", apperrors.ErrRecipientResolution, addr)
			}
			if _, dup := seen[addr]; dup {
				continue
			}
			seen[addr] = struct{}{}
			out = append(out, addr)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", apperrors.ErrValidation)
	}
	if len(out) > MaxRecipients {
		return nil, fmt.Errorf("%w: at most %d recipients", apperrors.ErrValidation, MaxRecipients)
	}
	return out, nil
}
