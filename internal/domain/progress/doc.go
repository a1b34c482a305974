// Package progress contains the progress tracking domain: the
// Lesson → Topic → Assignment → ProgressLog hierarchy, the aggregation rules
// that turn daily logs into accuracy and pacing metrics, and the contracts
// for the stores and the metric cache.
//
// Aggregation is pure. Functions in this package never perform I/O; the
// application layer loads rows through the repository interfaces and hands
// them to AggregateScope or AggregateDual.
//
// Two student-wide metrics are derived:
//
//	program progress = solved / assigned          (pacing, uncapped)
//	concept mastery  = right / (right+wrong+empty) (correctness, bonus excluded)
//
// Topic and lesson accuracy use the same formula as concept mastery. A nil
// accuracy means "no attempts yet" and is distinct from 0%.
package progress
