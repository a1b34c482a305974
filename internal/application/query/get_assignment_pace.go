package query

import (
	"context"
	"time"

	"github.com/edutrack/progress-engine/internal/domain/progress"
	"github.com/edutrack/progress-engine/internal/domain/shared"
	"github.com/edutrack/progress-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ASSIGNMENT PACE QUERY
// How much of an assignment was solved on a given day against its daily
// target, plus lifetime progress up to that day. Not cached.
// ══════════════════════════════════════════════════════════════════════════════

// GetAssignmentPace returns the pace of an assignment on day. A zero day
// means today in the configured timezone.
func (q *ProgressQueries) GetAssignmentPace(ctx context.Context, assignmentID, tenantID string, day time.Time) (*progress.Pace, error) {
	const op = "GetAssignmentPace"
	if err := requireIDs(op, assignmentID, tenantID); err != nil {
		return nil, err
	}

	a, err := q.assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, shared.StorageFailure("progress", op, err)
	}
	if err := q.authorize(ctx, op, a.StudentID, tenantID); err != nil {
		return nil, err
	}

	if day.IsZero() {
		day = timeutil.Today(q.clock, q.loc)
	} else {
		day = timeutil.Day(day, q.loc)
	}

	logs, err := q.logs.FindLogs(ctx, a.StudentID, progress.LogFilter{
		AssignmentID: a.ID,
		To:           day,
	})
	if err != nil {
		return nil, shared.StorageFailure("progress", op, err)
	}

	pace := progress.ComputePace(a, logs, day)
	return &pace, nil
}
