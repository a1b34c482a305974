// Package preference holds per-user settings and the accuracy threshold
// resolution rules built on them.
package preference

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
)

const (
	// KeyAccuracyThreshold is the preference key holding a teacher's threshold.
	KeyAccuracyThreshold = "accuracy_threshold"

	// DefaultAccuracyThreshold applies when no valid threshold is configured.
	DefaultAccuracyThreshold = 70.0

	MinThreshold = 0.0
	MaxThreshold = 100.0
)

// Repository stores string preferences keyed by (user, key).
type Repository interface {
	// Get returns shared.ErrPreferenceNotFound when the key is unset.
	Get(ctx context.Context, userID, key string) (string, error)

	// Set inserts or overwrites the value.
	Set(ctx context.Context, userID, key, value string) error
}

// ValidateThreshold rejects NaN and values outside [0, 100].
func ValidateThreshold(v float64) error {
	if math.IsNaN(v) || v < MinThreshold || v > MaxThreshold {
		return shared.ErrThresholdOutOfRange
	}
	return nil
}

// FormatThreshold renders a threshold the way it is stored.
func FormatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVER
// ══════════════════════════════════════════════════════════════════════════════

// ThresholdResolver decides which accuracy threshold applies to a request.
type ThresholdResolver struct {
	repo     Repository
	fallback float64
	log      *logger.Logger
}

// NewThresholdResolver creates a resolver. A nil log discards output.
func NewThresholdResolver(repo Repository, log *logger.Logger) *ThresholdResolver {
	if log == nil {
		log = logger.NewNop()
	}
	return &ThresholdResolver{
		repo:     repo,
		fallback: DefaultAccuracyThreshold,
		log:      log.With(logger.Component("threshold_resolver")),
	}
}

// ResolveAccuracyThreshold returns the override when given, otherwise the
// user's stored threshold, otherwise 70. Only an invalid override is an
// error; a bad stored value or a failing store degrades to the default.
func (r *ThresholdResolver) ResolveAccuracyThreshold(ctx context.Context, userID string, override *float64) (float64, error) {
	if override != nil {
		if err := ValidateThreshold(*override); err != nil {
			return 0, err
		}
		return *override, nil
	}

	if userID == "" || r.repo == nil {
		return r.fallback, nil
	}

	raw, err := r.repo.Get(ctx, userID, KeyAccuracyThreshold)
	if err != nil {
		if !shared.IsNotFound(err) {
			r.log.Warn("preference read failed, using default threshold",
				logger.String("user_id", userID),
				logger.Err(err),
			)
		}
		return r.fallback, nil
	}

	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || ValidateThreshold(v) != nil {
		r.log.Debug("stored threshold unusable, using default",
			logger.String("user_id", userID),
			logger.String("value", raw),
		)
		return r.fallback, nil
	}
	return v, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPLAY BAND
// ══════════════════════════════════════════════════════════════════════════════

// Band classifies an accuracy for display against the resolved threshold.
type Band string

const (
	BandNone  Band = "none"
	BandBelow Band = "below"
	BandMet   Band = "met"
)

// BandFor uses the same comparison as the alert engine so a value shown as
// "below" always has an open alert once checked.
func BandFor(accuracy *float64, threshold float64) Band {
	switch {
	case accuracy == nil:
		return BandNone
	case *accuracy < threshold:
		return BandBelow
	default:
		return BandMet
	}
}
