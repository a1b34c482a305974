package command

import (
	"context"

	"github.com/edutrack/progress-engine/internal/domain/preference"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Stores a teacher's accuracy threshold.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand contains the data to update preferences.
type UpdatePreferencesCommand struct {
	// UserID is the teacher whose preferences change.
	UserID string `validate:"required"`

	// AccuracyThreshold is the new threshold in [0, 100]. nil leaves it unchanged.
	AccuracyThreshold *float64
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if err := validateStruct("preference", "UpdatePreferences", c); err != nil {
		return err
	}
	if c.AccuracyThreshold != nil {
		return preference.ValidateThreshold(*c.AccuracyThreshold)
	}
	return nil
}

// UpdatePreferencesResult contains the result of updating preferences.
type UpdatePreferencesResult struct {
	UserID string

	// ChangedFields lists which preference keys were written.
	ChangedFields []string
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesHandler handles the UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	prefs preference.Repository
	log   *logger.Logger
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(prefs preference.Repository, log *logger.Logger) *UpdatePreferencesHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &UpdatePreferencesHandler{
		prefs: prefs,
		log:   log.With(logger.Component("update_preferences")),
	}
}

// Handle executes the update preferences command.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	changed := make([]string, 0, 1)
	if cmd.AccuracyThreshold != nil {
		value := preference.FormatThreshold(*cmd.AccuracyThreshold)
		if err := h.prefs.Set(ctx, cmd.UserID, preference.KeyAccuracyThreshold, value); err != nil {
			return nil, shared.StorageFailure("preference", "UpdatePreferences", err)
		}
		changed = append(changed, preference.KeyAccuracyThreshold)
		h.log.Info("accuracy threshold updated",
			logger.TenantID(cmd.UserID),
			logger.String("value", value))
	}

	return &UpdatePreferencesResult{UserID: cmd.UserID, ChangedFields: changed}, nil
}
