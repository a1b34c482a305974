package progress

import (
	"context"
	"fmt"
	"sync"
)

// ScopeKind identifies which family of metrics a cache entry holds.
type ScopeKind string

const (
	ScopeTopic  ScopeKind = "topic"
	ScopeLesson ScopeKind = "lesson"
	ScopeDual   ScopeKind = "dual"
)

// AllScopes lists every kind, used for a full per-student purge.
var AllScopes = []ScopeKind{ScopeTopic, ScopeLesson, ScopeDual}

// DependentScopes returns the kinds that must be purged together when the
// given kind is invalidated. Topic and lesson metrics are read from the same
// logs, so invalidating one drops both.
func DependentScopes(kind ScopeKind) []ScopeKind {
	switch kind {
	case ScopeTopic, ScopeLesson:
		return []ScopeKind{ScopeTopic, ScopeLesson}
	case ScopeDual:
		return []ScopeKind{ScopeDual}
	default:
		return nil
	}
}

// CacheKey addresses one cached metric. ScopeID is empty for dual metrics.
type CacheKey struct {
	Kind      ScopeKind
	StudentID string
	ScopeID   string
}

// TopicKey builds the key for a topic metric.
func TopicKey(studentID, topicID string) CacheKey {
	return CacheKey{Kind: ScopeTopic, StudentID: studentID, ScopeID: topicID}
}

// LessonKey builds the key for a lesson metric.
func LessonKey(studentID, lessonID string) CacheKey {
	return CacheKey{Kind: ScopeLesson, StudentID: studentID, ScopeID: lessonID}
}

// DualKey builds the key for the student-wide dual metric.
func DualKey(studentID string) CacheKey {
	return CacheKey{Kind: ScopeDual, StudentID: studentID}
}

func (k CacheKey) String() string {
	if k.ScopeID == "" {
		return fmt.Sprintf("progress:%s:%s", k.Kind, k.StudentID)
	}
	return fmt.Sprintf("progress:%s:%s:%s", k.Kind, k.StudentID, k.ScopeID)
}

// CachedMetric is the unit stored in a MetricCache. Exactly one field is
// set, matching the key's kind.
type CachedMetric struct {
	Scope *ScopeMetric `json:"scope,omitempty"`
	Dual  *DualMetric  `json:"dual,omitempty"`
}

// MetricCache memoizes computed metrics per student.
//
// Get and Set are best effort: a backend failure reads as a miss and a
// failed Set is dropped. Invalidate reports failures so callers can log them.
type MetricCache interface {
	Get(ctx context.Context, key CacheKey) (CachedMetric, bool)
	Set(ctx context.Context, key CacheKey, value CachedMetric)

	// Invalidate drops every entry of the student whose kind is in kinds.
	// No kinds means every kind.
	Invalidate(ctx context.Context, studentID string, kinds ...ScopeKind) error
}

// ExpandKinds resolves a requested kind set into the full set of kinds to
// purge, including dependents. An empty request expands to AllScopes.
func ExpandKinds(kinds []ScopeKind) map[ScopeKind]struct{} {
	if len(kinds) == 0 {
		kinds = AllScopes
	}
	out := make(map[ScopeKind]struct{}, len(AllScopes))
	for _, k := range kinds {
		for _, dep := range DependentScopes(k) {
			out[dep] = struct{}{}
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Generations
// ─────────────────────────────────────────────────────────────────────────────

// GenerationSource is implemented by caches that count invalidations per
// student. A reader that captured a generation before loading from the store
// must not cache its result if the generation moved meanwhile.
type GenerationSource interface {
	Generation(studentID string) uint64
}

// Generations is a per-student invalidation counter. The zero value is
// ready to use.
type Generations struct {
	mu   sync.Mutex
	gens map[string]uint64
}

// Bump records an invalidation for the student.
func (g *Generations) Bump(studentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens == nil {
		g.gens = make(map[string]uint64)
	}
	g.gens[studentID]++
}

// Current returns the student's invalidation count.
func (g *Generations) Current(studentID string) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[studentID]
}
