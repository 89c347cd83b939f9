package initializers

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
)

// SettingsVersion is the only settings schema this build understands.
const SettingsVersion = 1

// Settings are the runtime feature toggles and tier limits. They are loaded
// once at startup and shared read-only.
type Settings struct {
	Version      int                          `yaml:"version"`
	Monetization bool                         `yaml:"monetization"`
	Tiers        map[models.Tier]TierSettings `yaml:"tiers"`
}

type TierSettings struct {
	MaxStorageBytes        int64 `yaml:"max_storage_bytes"`
	MaxSingleTransferBytes int64 `yaml:"max_single_transfer_bytes"`
	MaxExpiryDays          int   `yaml:"max_expiry_days"`
}

func DefaultSettings() *Settings {
	s := &Settings{
		Version: SettingsVersion,
		Tiers:   make(map[models.Tier]TierSettings),
	}
	for tier, l := range quota.DefaultTable() {
		s.Tiers[tier] = TierSettings{
			MaxStorageBytes:        l.MaxStorageBytes,
			MaxSingleTransferBytes: l.MaxSingleTransferBytes,
			MaxExpiryDays:          int(l.MaxExpiry / (24 * time.Hour)),
		}
	}
	return s
}

// LoadSettings reads path over the defaults. An empty path yields the defaults.
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes YAML settings. Tiers that are present replace the
// default entry field by field; absent tiers keep their defaults.
func ParseSettings(data []byte) (*Settings, error) {
	var raw struct {
		Version      int                               `yaml:"version"`
		Monetization *bool                             `yaml:"monetization"`
		Tiers        map[models.Tier]map[string]*int64 `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	s := DefaultSettings()
	if raw.Version != 0 && raw.Version != SettingsVersion {
		return nil, fmt.Errorf("unsupported settings version %d", raw.Version)
	}
	if raw.Monetization != nil {
		s.Monetization = *raw.Monetization
	}

	for tier, fields := range raw.Tiers {
		if !tier.Valid() {
			return nil, fmt.Errorf("settings: unknown tier %q", tier)
		}
		ts := s.Tiers[tier]
		for name, v := range fields {
			if v == nil {
				continue
			}
			switch name {
			case "max_storage_bytes":
				ts.MaxStorageBytes = *v
			case "max_single_transfer_bytes":
				ts.MaxSingleTransferBytes = *v
			case "max_expiry_days":
				ts.MaxExpiryDays = int(*v)
			default:
				return nil, fmt.Errorf("settings: unknown field %q for tier %s", name, tier)
			}
		}
		s.Tiers[tier] = ts
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) validate() error {
	for _, tier := range models.Tiers {
		ts, ok := s.Tiers[tier]
		if !ok {
			return fmt.Errorf("settings: tier %s is not configured", tier)
		}
		if ts.MaxStorageBytes <= 0 || ts.MaxSingleTransferBytes < 0 || ts.MaxExpiryDays <= 0 {
			return fmt.Errorf("settings: tier %s has invalid limits", tier)
		}
	}
	return nil
}

// TierTable converts the tier settings for the quota enforcer.
func (s *Settings) TierTable() quota.Table {
	table := make(quota.Table, len(s.Tiers))
	for tier, ts := range s.Tiers {
		table[tier] = quota.Limits{
			MaxStorageBytes:        ts.MaxStorageBytes,
			MaxSingleTransferBytes: ts.MaxSingleTransferBytes,
			MaxExpiry:              time.Duration(ts.MaxExpiryDays) * 24 * time.Hour,
		}
	}
	return table
}
