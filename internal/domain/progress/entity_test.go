package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edutrack/progress-engine/internal/domain/shared"
)

func TestCounts(t *testing.T) {
	c := Counts{Right: 5, Wrong: 2, Empty: 1, Bonus: 3}

	assert.NoError(t, c.Validate())
	assert.Equal(t, 8, c.Attempted())
	assert.Equal(t, 11, c.Total())
	assert.Equal(t, Counts{Right: 10, Wrong: 4, Empty: 2, Bonus: 6}, c.Add(c))

	bad := Counts{Right: 1, Empty: -1}
	err := bad.Validate()
	assert.ErrorIs(t, err, shared.ErrNegativeCount)
	assert.True(t, shared.IsInvalidInput(err))
}

func TestTenancy(t *testing.T) {
	s := &Student{ID: "s1", TeacherID: "t1"}
	assert.True(t, s.BelongsTo("t1"))
	assert.False(t, s.BelongsTo("t2"))
	assert.False(t, s.BelongsTo(""))

	global := &Lesson{ID: "l1"}
	owned := &Lesson{ID: "l2", TeacherID: "t1"}
	assert.True(t, global.IsGlobal())
	assert.True(t, global.AccessibleBy("t2"))
	assert.True(t, owned.AccessibleBy("t1"))
	assert.False(t, owned.AccessibleBy("t2"))

	topic := &Topic{ID: "tp", LessonID: "l2", Lesson: owned}
	assert.True(t, topic.AccessibleBy("t1"))
	assert.False(t, topic.AccessibleBy("t2"))
	assert.False(t, (&Topic{ID: "orphan"}).AccessibleBy("t1"))
}

func TestAssignment_IsPast(t *testing.T) {
	a := &Assignment{StartDate: day1, EndDate: day1.AddDate(0, 0, 2)}

	assert.False(t, a.IsPast(day1))
	assert.False(t, a.IsPast(day1.AddDate(0, 0, 2)), "end day itself is current")
	assert.True(t, a.IsPast(day1.AddDate(0, 0, 3)))
}
