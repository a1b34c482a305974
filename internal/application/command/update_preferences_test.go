package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func TestUpdatePreferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	h := NewUpdatePreferencesHandler(f.store.Preferences(), nil)
	resolver := preference.NewThresholdResolver(f.store.Preferences(), nil)

	res, err := h.Handle(ctx, UpdatePreferencesCommand{UserID: "t1", AccuracyThreshold: ptr(82.5)})
	require.NoError(t, err)
	assert.Equal(t, []string{preference.KeyAccuracyThreshold}, res.ChangedFields)

	got, err := resolver.ResolveAccuracyThreshold(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, 82.5, got)

	res, err = h.Handle(ctx, UpdatePreferencesCommand{UserID: "t1"})
	require.NoError(t, err)
	assert.Empty(t, res.ChangedFields)

	_, err = h.Handle(ctx, UpdatePreferencesCommand{UserID: "t1", AccuracyThreshold: ptr(150)})
	assert.True(t, shared.IsInvalidInput(err))

	_, err = h.Handle(ctx, UpdatePreferencesCommand{AccuracyThreshold: ptr(50)})
	assert.True(t, shared.IsInvalidInput(err))

	got, err = resolver.ResolveAccuracyThreshold(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Equal(t, 82.5, got, "rejected updates leave the stored value")
}
