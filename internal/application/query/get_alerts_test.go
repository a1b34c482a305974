package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutrack/progress-engine/internal/domain/alert"
	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func TestGetAlerts(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	repo := w.store.Alerts()

	mk := func(id, student, topic string, at time.Time) {
		require.NoError(t, repo.Create(ctx, alert.New(id, alert.Key{StudentID: student, TopicID: topic}, 50, 70, at)))
	}
	mk("old", "s1", "tg", now.Add(-2*time.Hour))
	mk("new", "s1", "th", now.Add(-time.Hour))
	mk("gone", "s1", "tp", now.Add(-3*time.Hour))
	mk("other", "s2", "tg", now)
	require.NoError(t, repo.MarkResolved(ctx, "gone", now))

	h := NewGetAlertsHandler(repo, w.store.Catalog())

	open, err := h.Handle(ctx, GetAlertsQuery{TenantID: "t1"})
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "new", open[0].ID)
	assert.Equal(t, "old", open[1].ID)

	resolved := true
	closed, err := h.Handle(ctx, GetAlertsQuery{TenantID: "t1", StudentID: "s1", Resolved: &resolved})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, "gone", closed[0].ID)

	none, err := h.Handle(ctx, GetAlertsQuery{TenantID: "t3"})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = h.Handle(ctx, GetAlertsQuery{TenantID: "t1", StudentID: "s2"})
	assert.True(t, shared.IsAccessDenied(err))

	_, err = h.Handle(ctx, GetAlertsQuery{})
	assert.True(t, shared.IsInvalidInput(err))
}
