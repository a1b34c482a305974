package preference

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

type fakeRepo struct {
	values map[string]string
	err    error
}

func (f *fakeRepo) Get(_ context.Context, userID, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	v, ok := f.values[userID+"/"+key]
	if !ok {
		return "", shared.ErrPreferenceNotFound
	}
	return v, nil
}

func (f *fakeRepo) Set(_ context.Context, userID, key, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[userID+"/"+key] = value
	return nil
}

func ptr(v float64) *float64 { return &v }

func TestResolveAccuracyThreshold(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{values: map[string]string{
		"t-custom/" + KeyAccuracyThreshold: "82.5",
		"t-big/" + KeyAccuracyThreshold:    "150",
		"t-text/" + KeyAccuracyThreshold:   "high",
		"t-neg/" + KeyAccuracyThreshold:    "-1",
		"t-pad/" + KeyAccuracyThreshold:    " 60 ",
	}}
	r := NewThresholdResolver(repo, nil)

	tests := []struct {
		user string
		want float64
	}{
		{"t-none", 70},
		{"t-custom", 82.5},
		{"t-big", 70},
		{"t-text", 70},
		{"t-neg", 70},
		{"t-pad", 60},
		{"", 70},
	}
	for _, tt := range tests {
		got, err := r.ResolveAccuracyThreshold(ctx, tt.user, nil)
		require.NoError(t, err, tt.user)
		assert.Equal(t, tt.want, got, tt.user)
	}
}

func TestResolveAccuracyThreshold_Override(t *testing.T) {
	ctx := context.Background()
	repo := &fakeRepo{values: map[string]string{"t1/" + KeyAccuracyThreshold: "82"}}
	r := NewThresholdResolver(repo, nil)

	got, err := r.ResolveAccuracyThreshold(ctx, "t1", ptr(55))
	require.NoError(t, err)
	assert.Equal(t, 55.0, got)

	got, err = r.ResolveAccuracyThreshold(ctx, "t1", ptr(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	for _, bad := range []float64{-0.1, 100.01, math.NaN()} {
		_, err = r.ResolveAccuracyThreshold(ctx, "t1", ptr(bad))
		assert.True(t, shared.IsInvalidInput(err), "%v", bad)
	}
}

func TestResolveAccuracyThreshold_StoreFailureFallsBack(t *testing.T) {
	r := NewThresholdResolver(&fakeRepo{err: errors.New("connection refused")}, nil)

	got, err := r.ResolveAccuracyThreshold(context.Background(), "t1", nil)

	require.NoError(t, err)
	assert.Equal(t, DefaultAccuracyThreshold, got)
}

func TestBandFor(t *testing.T) {
	assert.Equal(t, BandNone, BandFor(nil, 70))
	assert.Equal(t, BandBelow, BandFor(ptr(69.99), 70))
	assert.Equal(t, BandMet, BandFor(ptr(70), 70))
	assert.Equal(t, BandMet, BandFor(ptr(0), 0))
}

func TestFormatThreshold(t *testing.T) {
	assert.Equal(t, "82.5", FormatThreshold(82.5))
	assert.Equal(t, "70", FormatThreshold(70))
}
