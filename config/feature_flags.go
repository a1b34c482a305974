package config

import (
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages engine feature toggles.
// A flag can be rolled out to a percentage of tenants; a tenant keeps its
// bucket for a given flag across processes.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// tenantOverrides win over rollout (tenantID -> feature -> enabled).
	tenantOverrides map[string]map[string]bool
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// RolloutPercent is 0-100. Tenants are bucketed by a hash of their ID.
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// Re-check accuracy alerts as soon as a progress log is written.
	FeatureAlertsOnWrite = "alerts.on_write"

	// Scopes covered by the on-write check.
	FeatureAlertsTopicScope   = "alerts.topic_scope"
	FeatureAlertsLessonScope  = "alerts.lesson_scope"
	FeatureAlertsStudentScope = "alerts.student_scope"
)

// LoadFeatureFlags loads defaults and then FEATURE_* overrides from the
// environment.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:        make(map[string]*Feature),
		tenantOverrides: make(map[string]map[string]bool),
	}
	ff.initializeDefaults()
	ff.loadFromEnvironment()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	// Off by default: alert checks stay an explicit step unless a
	// deployment opts in.
	ff.features[FeatureAlertsOnWrite] = &Feature{
		Name:        FeatureAlertsOnWrite,
		Description: "Check accuracy alerts after every progress write",
	}

	for name, desc := range map[string]string{
		FeatureAlertsTopicScope:   "On-write check covers the log's topic",
		FeatureAlertsLessonScope:  "On-write check covers the topic's lesson",
		FeatureAlertsStudentScope: "On-write check covers the student's overall mastery",
	} {
		ff.features[name] = &Feature{
			Name:           name,
			Description:    desc,
			Enabled:        true,
			RolloutPercent: 100,
		}
	}
}

// loadFromEnvironment applies overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_ALERTS_ON_WRITE=25 (a quarter of tenants)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}
		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			feature.RolloutPercent = 0
			if b {
				feature.RolloutPercent = 100
			}
			continue
		}
		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to its environment key.
// "alerts.on_write" -> "FEATURE_ALERTS_ON_WRITE"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks whether a feature is on for the tenant. An empty tenant
// only sees fully rolled-out features.
func (ff *FeatureFlags) IsEnabled(featureName, tenantID string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.tenantOverrides[tenantID]; ok {
		if enabled, ok := overrides[featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}
	if feature.RolloutPercent >= 100 {
		return true
	}
	if tenantID == "" {
		return false
	}
	return isInRollout(tenantID, featureName, feature.RolloutPercent)
}

// isInRollout maps tenant+feature onto a stable 0-99 bucket.
func isInRollout(tenantID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(tenantID))
	return int(h.Sum32()%100) < percent
}

// SetTenantOverride forces a feature on or off for one tenant.
func (ff *FeatureFlags) SetTenantOverride(tenantID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.tenantOverrides[tenantID] == nil {
		ff.tenantOverrides[tenantID] = make(map[string]bool)
	}
	ff.tenantOverrides[tenantID][featureName] = enabled
}

// ClearTenantOverrides removes every override for the tenant.
func (ff *FeatureFlags) ClearTenantOverrides(tenantID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.tenantOverrides, tenantID)
}

// Names returns the known feature names, sorted.
func (ff *FeatureFlags) Names() []string {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	names := make([]string, 0, len(ff.features))
	for name := range ff.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
