package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pct(v float64) *float64 { return &v }

func TestEvaluate(t *testing.T) {
	open := &Alert{ID: "a1"}

	tests := []struct {
		name     string
		existing *Alert
		accuracy *float64
		want     Decision
	}{
		{"no data, no alert", nil, nil, DecisionNone},
		{"no data keeps open alert", open, nil, DecisionNone},
		{"breach opens", nil, pct(55), DecisionCreate},
		{"breach refreshes", open, pct(40), DecisionUpdate},
		{"recovery resolves", open, pct(85), DecisionResolve},
		{"healthy without alert", nil, pct(90), DecisionNone},
		{"equal to threshold is healthy", nil, pct(70), DecisionNone},
		{"equal to threshold resolves", open, pct(70), DecisionResolve},
		{"zero accuracy breaches", nil, pct(0), DecisionCreate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.existing, tt.accuracy, 70))
		})
	}
}

func TestEvaluate_ZeroThresholdNeverBreaches(t *testing.T) {
	assert.Equal(t, DecisionNone, Evaluate(nil, pct(0), 0))
}

func TestAlert_Lifecycle(t *testing.T) {
	t0 := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	key := Key{StudentID: "s1", TopicID: "tp1"}

	a := New("a1", key, 55, 70, t0)
	assert.Equal(t, key, a.Key())
	assert.False(t, a.Resolved)
	assert.Equal(t, t0, a.CreatedAt)

	t1 := t0.Add(time.Hour)
	a.Breach(40, 75, t1)
	assert.Equal(t, 40.0, a.Accuracy)
	assert.Equal(t, 75.0, a.Threshold)
	assert.Equal(t, t0, a.CreatedAt)
	assert.Equal(t, t1, a.UpdatedAt)

	t2 := t1.Add(time.Hour)
	a.Resolve(t2)
	require.NotNil(t, a.ResolvedAt)
	assert.True(t, a.Resolved)
	assert.Equal(t, t2, *a.ResolvedAt)

	a.Resolve(t2.Add(time.Hour))
	assert.Equal(t, t2, *a.ResolvedAt, "resolving again keeps first timestamp")
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "create", DecisionCreate.String())
	assert.Equal(t, "none", DecisionNone.String())
}
