// Package scope implements the fail-open Scope Policy of §4.8: whether an
// endpoint is in-scope for a given (league, season) pair.
package scope

import (
	"fmt"

	"github.com/brightpitch/fixtureflow/internal/domain/league"
)

// Endpoint identifies an upstream collection the pipeline may or may not
// fetch for a given league/season.
type Endpoint string

const (
	EndpointFixtures          Endpoint = "/fixtures"
	EndpointFixtureEvents     Endpoint = "/fixtures/events"
	EndpointFixtureStatistics Endpoint = "/fixtures/statistics"
	EndpointFixtureLineups    Endpoint = "/fixtures/lineups"
	EndpointFixturePlayers    Endpoint = "/fixtures/players"
	EndpointInjuries          Endpoint = "/injuries"
	EndpointStandings         Endpoint = "/standings"
	EndpointTopScorers        Endpoint = "/players/topscorers"
	EndpointTeamStatistics    Endpoint = "/teams/statistics"
)

// baseline is always in scope regardless of league type or override (§4.8
// step 1): fixtures, its sub-endpoints, and injuries.
var baseline = map[Endpoint]struct{}{
	EndpointFixtures:          {},
	EndpointFixtureEvents:     {},
	EndpointFixtureStatistics: {},
	EndpointFixtureLineups:    {},
	EndpointFixturePlayers:    {},
	EndpointInjuries:          {},
}

// defaultCupDisabled is the example given in §4.8: a Cup competition has no
// meaningful standings table or top-scorer/team-statistics rollup.
var defaultCupDisabled = map[Endpoint]struct{}{
	EndpointStandings:      {},
	EndpointTopScorers:     {},
	EndpointTeamStatistics: {},
}

// OverrideKey identifies a per-(league, season, endpoint) override.
type OverrideKey struct {
	LeagueID int64
	Season   int
	Endpoint Endpoint
}

// Decision is the outcome of a scope evaluation, always fail-open: every
// branch resolves to a concrete in/out decision with a reason, never an
// error (§9: tagged result types for expected outcomes).
type Decision struct {
	InScope bool
	Reason  string
}

// Policy evaluates scope decisions against a configured set of per-type
// defaults and per-(league, season, endpoint) overrides.
type Policy struct {
	typeDisabled map[league.Type]map[Endpoint]struct{}
	overrides    map[OverrideKey]bool
}

// Option configures a Policy at construction time.
type Option func(*Policy)

// WithTypeDisabled replaces the disabled-endpoint set for a league type.
// Passing an empty set re-enables every endpoint for that type.
func WithTypeDisabled(t league.Type, endpoints ...Endpoint) Option {
	return func(p *Policy) {
		set := make(map[Endpoint]struct{}, len(endpoints))
		for _, e := range endpoints {
			set[e] = struct{}{}
		}
		p.typeDisabled[t] = set
	}
}

// WithOverride enables or disables an endpoint for one (league, season)
// pair, taking precedence over the league type's defaults; baseline
// endpoints stay in scope regardless (§4.8 step 1 runs before step 2).
func WithOverride(leagueID int64, season int, endpoint Endpoint, enabled bool) Option {
	return func(p *Policy) {
		p.overrides[OverrideKey{LeagueID: leagueID, Season: season, Endpoint: endpoint}] = enabled
	}
}

// New builds a Policy with the spec's documented Cup defaults, adjustable
// via options.
func New(opts ...Option) *Policy {
	p := &Policy{
		typeDisabled: map[league.Type]map[Endpoint]struct{}{
			league.TypeCup: defaultCupDisabled,
		},
		overrides: map[OverrideKey]bool{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decide is a pure function of its inputs and the policy's configuration
// (§8: "ScopePolicy(league, season, endpoint) is a pure function").
func (p *Policy) Decide(leagueID int64, season int, endpoint Endpoint, leagueType league.Type) Decision {
	if _, ok := baseline[endpoint]; ok {
		return Decision{InScope: true, Reason: "baseline"}
	}

	key := OverrideKey{LeagueID: leagueID, Season: season, Endpoint: endpoint}
	if enabled, ok := p.overrides[key]; ok {
		return Decision{InScope: enabled, Reason: "override"}
	}

	if leagueType == league.TypeUnknown {
		return Decision{InScope: true, Reason: "unknown_type_fail_open"}
	}

	disabled := p.typeDisabled[leagueType]
	if _, ok := disabled[endpoint]; ok {
		return Decision{InScope: false, Reason: fmt.Sprintf("type_%s_disabled", leagueType)}
	}
	return Decision{InScope: true, Reason: fmt.Sprintf("type_%s_enabled", leagueType)}
}
