package ingestconfig

import (
	"time"

	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/scheduler"
	"github.com/brightpitch/fixtureflow/internal/scope"
)

// BuildScopePolicy translates the configured league-type defaults and
// overrides into a scope.Policy (§4.8 steps 2-3).
func (s Snapshot) BuildScopePolicy() *scope.Policy {
	opts := make([]scope.Option, 0, len(s.ScopePolicy.LeagueTypeDefaults)+len(s.ScopePolicy.Overrides))
	for typeName, endpoints := range s.ScopePolicy.LeagueTypeDefaults {
		eps := make([]scope.Endpoint, 0, len(endpoints))
		for _, e := range endpoints {
			eps = append(eps, scope.Endpoint(e))
		}
		opts = append(opts, scope.WithTypeDisabled(league.ParseType(typeName), eps...))
	}
	for _, o := range s.ScopePolicy.Overrides {
		opts = append(opts, scope.WithOverride(o.LeagueID, o.Season, scope.Endpoint(o.Endpoint), o.InScope))
	}
	return scope.New(opts...)
}

// CoverageTargetFor looks up the configured freshness/count budget for an
// endpoint. ok is false when the endpoint has no configured target, in
// which case callers should treat count coverage as not-applicable and
// pick a conservative default max-lag.
func (s Snapshot) CoverageTargetFor(endpoint string) (CoverageTarget, bool) {
	for _, t := range s.CoverageTargets {
		if t.Endpoint == endpoint {
			return t, true
		}
	}
	return CoverageTarget{}, false
}

// Trigger converts a job's declared interval into a scheduler.Trigger.
func (j JobSpec) Trigger() scheduler.Trigger {
	if j.Interval.Type == "interval" {
		return scheduler.Trigger{Interval: time.Duration(j.Interval.Seconds) * time.Second}
	}
	return scheduler.Trigger{Cron: j.Interval.Cron}
}
