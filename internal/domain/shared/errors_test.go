package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("get topic progress: %w", ErrTopicNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsAccessDenied(err))
	assert.Equal(t, "progress.Find: topic not found", ErrTopicNotFound.Error())
}

func TestStorageFailure(t *testing.T) {
	driverErr := errors.New("conn reset by peer")

	err := StorageFailure("progress", "FindLogs", driverErr)
	assert.True(t, IsStorageFailure(err))
	assert.ErrorIs(t, err, driverErr)
	assert.Contains(t, err.Error(), "progress.FindLogs")

	// Domain kinds pass through so NotFound stays NotFound.
	assert.Same(t, ErrAlertNotFound, StorageFailure("alert", "Get", ErrAlertNotFound))
	assert.Nil(t, StorageFailure("alert", "Get", nil))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("progress", "LogProgress", "student_id is required")
	assert.True(t, IsInvalidInput(err))
	assert.True(t, IsInvalidInput(ErrThresholdOutOfRange))
	assert.True(t, IsAlreadyExists(ErrAlertAlreadyExists))
}
