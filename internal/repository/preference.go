package repository

import (
	"context"
	"fmt"

	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
)

// PreferenceRepository stores scope-wide preferences.
type PreferenceRepository struct {
	store *kv.Store
}

// NewPreferenceRepository creates a new PreferenceRepository instance.
func NewPreferenceRepository(store *kv.Store) *PreferenceRepository {
	return &PreferenceRepository{store: store}
}

// Theme returns the stored theme, dark when unset.
func (r *PreferenceRepository) Theme(ctx context.Context) (string, error) {
	theme, err := kv.GetOr(ctx, r.store, r.store.Key("theme"), model.ThemeDark)
	if err != nil {
		return model.ThemeDark, fmt.Errorf("failed to load theme: %w", err)
	}
	return theme, nil
}

// SetTheme stores theme.
func (r *PreferenceRepository) SetTheme(ctx context.Context, theme string) error {
	if err := r.store.Set(ctx, r.store.Key("theme"), theme); err != nil {
		return fmt.Errorf("failed to save theme: %w", err)
	}
	return nil
}
