package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func TestGetAssignmentPace(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.assignment(t, "s1", "t1", "tg", 100, 20)
	w.log(t, "s1", "t1", a, march10, progress.Counts{Right: 10, Wrong: 5})
	w.log(t, "s1", "t1", a, march10.AddDate(0, 0, 1), progress.Counts{Right: 18, Bonus: 4})
	w.log(t, "s1", "t1", a, march10.AddDate(0, 0, 2), progress.Counts{Right: 7})

	p, err := w.queries.GetAssignmentPace(ctx, a, "t1", march10.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 22, p.SolvedToday)
	assert.True(t, p.TargetMet)
	assert.Equal(t, 37, p.SolvedTotal, "logs after the day are excluded")
	assert.Equal(t, 63, p.Remaining)
	assert.False(t, p.IsPast)

	// Zero day means today: the clock reads March 12.
	p, err = w.queries.GetAssignmentPace(ctx, a, "t1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, march10.AddDate(0, 0, 2), p.Day)
	assert.Equal(t, 7, p.SolvedToday)
	assert.False(t, p.TargetMet)
	assert.Equal(t, 44, p.SolvedTotal)

	p, err = w.queries.GetAssignmentPace(ctx, a, "t1", march10.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.True(t, p.IsPast)
	assert.Zero(t, p.SolvedToday)
}

func TestGetAssignmentPace_Errors(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.assignment(t, "s1", "t1", "tg", 100, 20)

	_, err := w.queries.GetAssignmentPace(ctx, a, "t2", march10)
	assert.True(t, shared.IsAccessDenied(err))

	_, err = w.queries.GetAssignmentPace(ctx, "missing", "t1", march10)
	assert.True(t, shared.IsNotFound(err))

	_, err = w.queries.GetAssignmentPace(ctx, "", "t1", march10)
	assert.True(t, shared.IsInvalidInput(err))
}
