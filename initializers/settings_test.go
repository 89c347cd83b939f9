package initializers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
)

func TestDefaultSettingsMatchDefaultTable(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, SettingsVersion, s.Version)
	assert.False(t, s.Monetization)
	assert.Equal(t, quota.DefaultTable(), s.TierTable())
}

func TestParseSettingsMergesOverDefaults(t *testing.T) {
	s, err := ParseSettings([]byte(`
version: 1
monetization: true
tiers:
  FREE:
    max_storage_bytes: 2147483648
    max_expiry_days: 3
`))
	require.NoError(t, err)
	assert.True(t, s.Monetization)

	table := s.TierTable()
	assert.Equal(t, 2*quota.GiB, table[models.TierFree].MaxStorageBytes)
	assert.Equal(t, quota.GiB, table[models.TierFree].MaxSingleTransferBytes)
	assert.Equal(t, 3*24*time.Hour, table[models.TierFree].MaxExpiry)
	assert.Equal(t, quota.DefaultTable()[models.TierPro], table[models.TierPro])
}

func TestParseSettingsRejects(t *testing.T) {
	tests := map[string]string{
		"future version": "version: 2\n",
		"unknown tier":   "tiers:\n  GOLD:\n    max_storage_bytes: 1\n",
		"unknown field":  "tiers:\n  FREE:\n    max_files: 1\n",
		"zero storage":   "tiers:\n  PRO:\n    max_storage_bytes: 0\n",
		"malformed":      "tiers: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettings(t *testing.T) {
	s, err := LoadSettings("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("monetization: true\n"), 0o600))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.True(t, s.Monetization)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
