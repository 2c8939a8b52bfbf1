package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LastSyncedAt reads the persisted last-sync timestamp; nil means never synced.
func LastSyncedAt(ctx context.Context, settings SettingsRepository) (*time.Time, error) {
	raw, err := settings.Get(ctx, SettingLastSync)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse last-sync timestamp: %w", err)
	}
	return &t, nil
}

// SetLastSyncedAt persists the last-sync timestamp.
func SetLastSyncedAt(ctx context.Context, settings SettingsRepository, t time.Time) error {
	return settings.Set(ctx, SettingLastSync, t.UTC().Format(time.RFC3339Nano))
}
