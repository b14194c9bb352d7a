// Package resolver ensures a fixture's league, teams, and venue exist in
// CORE before a fixture row is written, fetching anything missing and
// caching what it learns (§4.5).
package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/domain/team"
	"github.com/brightpitch/fixtureflow/internal/domain/teambootstrapprogress"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/platform/cache"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/rawarchive"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

// UpstreamGetter is the slice of upstream.Client the resolver depends on.
type UpstreamGetter interface {
	Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error)
}

// RawRecorder is the slice of rawarchive.Writer the resolver depends on.
type RawRecorder interface {
	Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error)
}

type Resolver struct {
	upstreamClient UpstreamGetter
	rawWriter      RawRecorder

	leagues   league.Repository
	teams     team.Repository
	venues    venue.Repository
	bootstrap teambootstrapprogress.Repository

	leagueCache *cache.Store
	logger      *logging.Logger
}

func New(
	upstreamClient UpstreamGetter,
	rawWriter RawRecorder,
	leagues league.Repository,
	teams team.Repository,
	venues venue.Repository,
	bootstrap teambootstrapprogress.Repository,
	logger *logging.Logger,
) *Resolver {
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		upstreamClient: upstreamClient,
		rawWriter:      rawWriter,
		leagues:        leagues,
		teams:          teams,
		venues:         venues,
		bootstrap:      bootstrap,
		leagueCache:    cache.NewStore(0),
		logger:         logger,
	}
}

// EnsureLeague fetches and upserts the league if it is not already present
// in CORE (§4.5).
func (r *Resolver) EnsureLeague(ctx context.Context, leagueID int64) error {
	if _, ok := r.leagueCache.Get(ctx, leagueCacheKey(leagueID)); ok {
		return nil
	}

	exists, err := r.leagues.Exists(ctx, leagueID)
	if err != nil {
		return fmt.Errorf("check league exists id=%d: %w", leagueID, err)
	}
	if exists {
		r.leagueCache.Set(ctx, leagueCacheKey(leagueID), true)
		return nil
	}

	r.logger.InfoContext(ctx, "resolver fallback fetch league", "league_id", leagueID)

	params := map[string]string{"id": fmt.Sprintf("%d", leagueID)}
	result, err := r.upstreamClient.Get(ctx, "/leagues", params)
	if err != nil {
		return fmt.Errorf("fetch league id=%d: %w", leagueID, err)
	}
	if _, err := r.rawWriter.Record(ctx, "/leagues", params, result); err != nil {
		r.logger.WarnContext(ctx, "resolver failed to archive league fetch", "league_id", leagueID, "error", err)
	}
	if result.Outcome != upstream.OutcomeOK {
		return fmt.Errorf("fetch league id=%d: upstream outcome %s", leagueID, result.Outcome)
	}

	leagues, err := parseLeagueResults(result.Envelope.Results)
	if err != nil {
		return fmt.Errorf("parse league results id=%d: %w", leagueID, err)
	}
	for _, l := range leagues {
		if err := r.leagues.Upsert(ctx, l); err != nil {
			return fmt.Errorf("upsert league id=%d: %w", l.ID, err)
		}
	}

	r.leagueCache.Set(ctx, leagueCacheKey(leagueID), true)
	return nil
}

// EnsureTeams makes sure both teams exist in CORE. It consults the team
// bootstrap cache first: if the league/season roster has never been
// fetched, it fetches the whole roster once. Either way, any team still
// missing after that is fetched by id (§4.5).
func (r *Resolver) EnsureTeams(ctx context.Context, leagueID int64, season int, teamIDs []int64) error {
	completed, err := r.bootstrap.IsCompleted(ctx, leagueID, season)
	if err != nil {
		return fmt.Errorf("check team bootstrap league_id=%d season=%d: %w", leagueID, season, err)
	}

	if !completed {
		r.logger.InfoContext(ctx, "resolver fallback fetch team roster", "league_id", leagueID, "season", season)
		if err := r.bootstrapTeams(ctx, leagueID, season); err != nil {
			return err
		}
		if err := r.bootstrap.MarkCompleted(ctx, leagueID, season); err != nil {
			return fmt.Errorf("mark team bootstrap completed league_id=%d season=%d: %w", leagueID, season, err)
		}
	}

	existing, err := r.teams.ExistsAll(ctx, teamIDs)
	if err != nil {
		return fmt.Errorf("check teams exist: %w", err)
	}

	for _, id := range teamIDs {
		if existing[id] {
			continue
		}
		if err := r.fetchTeamByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// EnsureVenue upserts the venue embedded in a fixture payload, if any.
// Per §4.5, a missing or zero venue id means the fixture's venue ref is
// stored as null — this is not an error.
func (r *Resolver) EnsureVenue(ctx context.Context, v *venue.Venue) error {
	if v == nil || v.ID == 0 {
		return nil
	}
	if err := r.venues.Upsert(ctx, *v); err != nil {
		return fmt.Errorf("upsert venue id=%d: %w", v.ID, err)
	}
	return nil
}

func (r *Resolver) bootstrapTeams(ctx context.Context, leagueID int64, season int) error {
	params := map[string]string{
		"league": fmt.Sprintf("%d", leagueID),
		"season": fmt.Sprintf("%d", season),
	}
	result, err := r.upstreamClient.Get(ctx, "/teams", params)
	if err != nil {
		return fmt.Errorf("fetch team roster league_id=%d season=%d: %w", leagueID, season, err)
	}
	if _, err := r.rawWriter.Record(ctx, "/teams", params, result); err != nil {
		r.logger.WarnContext(ctx, "resolver failed to archive team roster fetch", "league_id", leagueID, "season", season, "error", err)
	}
	if result.Outcome != upstream.OutcomeOK {
		return fmt.Errorf("fetch team roster league_id=%d season=%d: upstream outcome %s", leagueID, season, result.Outcome)
	}

	teams, err := parseTeamResults(result.Envelope.Results)
	if err != nil {
		return fmt.Errorf("parse team roster results league_id=%d season=%d: %w", leagueID, season, err)
	}
	for _, t := range teams {
		if err := r.teams.Upsert(ctx, t); err != nil {
			return fmt.Errorf("upsert team id=%d: %w", t.ID, err)
		}
	}
	return nil
}

func (r *Resolver) fetchTeamByID(ctx context.Context, teamID int64) error {
	r.logger.InfoContext(ctx, "resolver fallback fetch team by id", "team_id", teamID)

	params := map[string]string{"id": fmt.Sprintf("%d", teamID)}
	result, err := r.upstreamClient.Get(ctx, "/teams", params)
	if err != nil {
		return fmt.Errorf("fetch team id=%d: %w", teamID, err)
	}
	if _, err := r.rawWriter.Record(ctx, "/teams", params, result); err != nil {
		r.logger.WarnContext(ctx, "resolver failed to archive team fetch", "team_id", teamID, "error", err)
	}
	if result.Outcome != upstream.OutcomeOK {
		return fmt.Errorf("fetch team id=%d: upstream outcome %s", teamID, result.Outcome)
	}

	teams, err := parseTeamResults(result.Envelope.Results)
	if err != nil {
		return fmt.Errorf("parse team results id=%d: %w", teamID, err)
	}
	for _, t := range teams {
		if err := r.teams.Upsert(ctx, t); err != nil {
			return fmt.Errorf("upsert team id=%d: %w", t.ID, err)
		}
	}
	return nil
}

func leagueCacheKey(leagueID int64) string {
	return fmt.Sprintf("league:%d", leagueID)
}

type wireLeague struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Country string          `json:"country_code"`
	Seasons json.RawMessage `json:"seasons"`
}

func parseLeagueResults(raw json.RawMessage) ([]league.League, error) {
	items, err := decodeResultsArray[wireLeague](raw)
	if err != nil {
		return nil, err
	}
	out := make([]league.League, 0, len(items))
	for _, item := range items {
		out = append(out, league.League{
			ID: item.ID, Name: item.Name, Type: league.ParseType(item.Type),
			CountryCode: item.Country, SeasonsJSON: item.Seasons,
		})
	}
	return out, nil
}

type wireTeam struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Country string `json:"country_code"`
	Founded int    `json:"founded"`
	VenueID *int64 `json:"venue_id"`
}

func parseTeamResults(raw json.RawMessage) ([]team.Team, error) {
	items, err := decodeResultsArray[wireTeam](raw)
	if err != nil {
		return nil, err
	}
	out := make([]team.Team, 0, len(items))
	for _, item := range items {
		venueID := item.VenueID
		if venueID != nil && *venueID == 0 {
			venueID = nil
		}
		out = append(out, team.Team{
			ID: item.ID, Name: item.Name, CountryCode: item.Country,
			Founded: item.Founded, VenueID: venueID,
		})
	}
	return out, nil
}

// decodeResultsArray decodes an envelope's results field, which the
// provider sends as a bare JSON array for collection endpoints.
func decodeResultsArray[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode results array: %w", err)
	}
	return items, nil
}
