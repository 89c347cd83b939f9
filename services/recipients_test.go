package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/rushupload-backend/apperrors"
)

func TestNormalizeRecipients(t *testing.T) {
	got, err := NormalizeRecipients([]string{" B@example.com ,a@example.com", "b@example.com", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com", "a@example.com"}, got)
}

func TestNormalizeRecipientsErrors(t *testing.T) {
	_, err := NormalizeRecipients(nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = NormalizeRecipients([]string{" , "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = NormalizeRecipients([]string{"a@example.com", "nope"})
	assert.ErrorIs(t, err, apperrors.ErrRecipientResolution)

	many := make([]string, MaxRecipients+1)
	for i := range many {
		many[i] = fmt.Sprintf("user%d@example.com", i)
	}
	_, err = NormalizeRecipients(many)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
