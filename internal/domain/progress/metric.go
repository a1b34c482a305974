package progress

import "time"

// ScopeMetric is the aggregate for one topic or one lesson.
type ScopeMetric struct {
	// Accuracy is nil when nothing has been attempted.
	Accuracy       *float64  `json:"accuracy"`
	TotalQuestions int       `json:"total_questions"`
	TotalAttempted int       `json:"total_attempted"`
	RightCount     int       `json:"right_count"`
	WrongCount     int       `json:"wrong_count"`
	EmptyCount     int       `json:"empty_count"`
	BonusCount     int       `json:"bonus_count"`
	LastUpdated    time.Time `json:"last_updated"`
}

// DualMetric is the student-wide pair of pacing and correctness.
type DualMetric struct {
	// ProgramProgress is solved/assigned in percent. Uncapped.
	ProgramProgress float64 `json:"program_progress"`
	// ConceptMastery is nil when nothing has been attempted.
	ConceptMastery *float64  `json:"concept_mastery"`
	TotalSolved    int       `json:"total_solved"`
	TotalAssigned  int       `json:"total_assigned"`
	TotalRight     int       `json:"total_right"`
	TotalAttempted int       `json:"total_attempted"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Percent2 returns num/den*100 rounded half-up to two decimals.
// Integer arithmetic keeps results like 76.92 and 46.15 exact.
// den must be positive and num non-negative.
func Percent2(num, den int64) float64 {
	hundredths := (num*20000 + den) / (2 * den)
	return float64(hundredths) / 100
}

// sumLogs adds up the tallies and finds the newest update.
func sumLogs(logs []ProgressLog, now time.Time) (Counts, time.Time) {
	var total Counts
	var last time.Time
	for _, l := range logs {
		total = total.Add(l.Counts)
		if l.UpdatedAt.After(last) {
			last = l.UpdatedAt
		}
	}
	if len(logs) == 0 {
		last = now
	}
	return total, last
}

// AggregateScope computes a topic or lesson metric from its logs.
// The same rule serves both scopes; callers choose which logs to pass.
func AggregateScope(logs []ProgressLog, now time.Time) ScopeMetric {
	c, last := sumLogs(logs, now)

	m := ScopeMetric{
		TotalQuestions: c.Total(),
		TotalAttempted: c.Attempted(),
		RightCount:     c.Right,
		WrongCount:     c.Wrong,
		EmptyCount:     c.Empty,
		BonusCount:     c.Bonus,
		LastUpdated:    last,
	}
	if attempted := c.Attempted(); attempted > 0 {
		acc := Percent2(int64(c.Right), int64(attempted))
		m.Accuracy = &acc
	}
	return m
}

// AggregateDual computes program progress and concept mastery from every
// log of a student and the sum of question counts over their assignments.
func AggregateDual(logs []ProgressLog, totalAssigned int, now time.Time) DualMetric {
	c, last := sumLogs(logs, now)

	m := DualMetric{
		TotalSolved:    c.Total(),
		TotalAssigned:  totalAssigned,
		TotalRight:     c.Right,
		TotalAttempted: c.Attempted(),
		LastUpdated:    last,
	}
	if totalAssigned > 0 {
		m.ProgramProgress = Percent2(int64(c.Total()), int64(totalAssigned))
	}
	if attempted := c.Attempted(); attempted > 0 {
		mastery := Percent2(int64(c.Right), int64(attempted))
		m.ConceptMastery = &mastery
	}
	return m
}

// Pace is today's work on one assignment against its daily target.
type Pace struct {
	AssignmentID  string    `json:"assignment_id"`
	Day           time.Time `json:"day"`
	SolvedToday   int       `json:"solved_today"`
	DailyTarget   int       `json:"daily_target"`
	TargetMet     bool      `json:"target_met"`
	SolvedTotal   int       `json:"solved_total"`
	QuestionCount int       `json:"question_count"`
	Remaining     int       `json:"remaining"`
	IsPast        bool      `json:"is_past"`
}

// ComputePace splits an assignment's logs into the given day and lifetime.
func ComputePace(a *Assignment, logs []ProgressLog, day time.Time) Pace {
	p := Pace{
		AssignmentID:  a.ID,
		Day:           day,
		DailyTarget:   a.DailyTarget,
		QuestionCount: a.QuestionCount,
		IsPast:        a.IsPast(day),
	}
	for _, l := range logs {
		p.SolvedTotal += l.Total()
		if l.Date.Equal(day) {
			p.SolvedToday += l.Total()
		}
	}
	p.TargetMet = p.SolvedToday >= a.DailyTarget
	if rem := a.QuestionCount - p.SolvedTotal; rem > 0 {
		p.Remaining = rem
	}
	return p
}
