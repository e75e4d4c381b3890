package press

import (
	"context"

	"github.com/gutterpress/gutterpress/pkg/press/cache"
)

// Settings operations
//
// Stored values override the defaults; a key with neither a stored value nor
// a default resolves to the empty string.

func (s *service) Setting(ctx context.Context, key string) (string, error) {
	snapshot, err := s.settingsSnapshot(ctx)
	if err != nil {
		return "", err
	}
	if v, ok := snapshot[key]; ok {
		return v, nil
	}
	return DefaultSettings[key], nil
}

func (s *service) SetSetting(ctx context.Context, key, value string) error {
	if key == "" {
		return &ValidationError{Field: "key", Reason: "is required"}
	}
	if err := s.repository.SetSetting(ctx, key, value); err != nil {
		return err
	}
	s.invalidateSettingsCache()
	s.logger.Info().Str("key", key).Msg("setting updated")
	return nil
}

func (s *service) UpdateSettings(ctx context.Context, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	for key := range values {
		if key == "" {
			return &ValidationError{Field: "key", Reason: "is required"}
		}
	}
	if err := s.repository.SetSettings(ctx, values); err != nil {
		return err
	}
	s.invalidateSettingsCache()
	s.logger.Info().Int("keys", len(values)).Msg("settings updated")
	return nil
}

// AllSettings returns the effective settings map: the defaults overlaid with
// every stored value.
func (s *service) AllSettings(ctx context.Context) (map[string]string, error) {
	snapshot, err := s.settingsSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(DefaultSettings)+len(snapshot))
	for k, v := range DefaultSettings {
		out[k] = v
	}
	for k, v := range snapshot {
		out[k] = v
	}
	return out, nil
}

func (s *service) settingsSnapshot(ctx context.Context) (map[string]string, error) {
	return cache.GetOrLoad(s.cache, SettingsCacheKey, SettingsCacheTTL, func() (map[string]string, error) {
		stored, err := s.repository.ListSettings(ctx)
		if err != nil {
			return nil, err
		}
		snapshot := make(map[string]string, len(stored))
		for _, setting := range stored {
			snapshot[setting.Key] = setting.Value
		}
		return snapshot, nil
	})
}

func (s *service) invalidateSettingsCache() {
	s.cache.Delete(SettingsCacheKey)
}
