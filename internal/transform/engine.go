package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/brightpitch/fixtureflow/internal/domain/fixture"
	"github.com/brightpitch/fixtureflow/internal/domain/fixtureevent"
	"github.com/brightpitch/fixtureflow/internal/domain/fixturelineup"
	"github.com/brightpitch/fixtureflow/internal/domain/fixtureplayers"
	"github.com/brightpitch/fixtureflow/internal/domain/fixturestatistics"
	"github.com/brightpitch/fixtureflow/internal/domain/injury"
	"github.com/brightpitch/fixtureflow/internal/domain/standing"
	"github.com/brightpitch/fixtureflow/internal/domain/teamstatistics"
	"github.com/brightpitch/fixtureflow/internal/domain/topscorer"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
)

// SkipReason tags why a row was not written, matching §9's guidance to use
// tagged result types for expected outcomes instead of exceptions.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipDependencyMissing SkipReason = "dependency_missing"
	SkipMalformed         SkipReason = "malformed"
)

// RowResult is the per-row outcome of a bulk Apply call.
type RowResult struct {
	ID      int64
	Skipped bool
	Reason  SkipReason
	Err     error
}

// BatchResult summarises a bulk Apply call across all rows in one envelope.
type BatchResult struct {
	Written int
	Skipped int
	Rows    []RowResult
}

// DependencyResolver is the slice of resolver.Resolver the engine depends
// on to satisfy foreign keys before a fixture row is written.
type DependencyResolver interface {
	EnsureLeague(ctx context.Context, leagueID int64) error
	EnsureTeams(ctx context.Context, leagueID int64, season int, teamIDs []int64) error
	EnsureVenue(ctx context.Context, v *venue.Venue) error
}

// Engine projects envelopes into CORE rows and upserts them, resolving
// missing dependencies row-by-row rather than failing the whole batch
// (§4.6, §7: "Dependency missing -> Resolver backfills it or skips row").
type Engine struct {
	resolver DependencyResolver

	fixtures       fixture.Repository
	events         fixtureevent.Repository
	standings      standing.Repository
	injuries       injury.Repository
	topScorers     topscorer.Repository
	teamStats      teamstatistics.Repository
	fixtureStats   fixturestatistics.Repository
	lineups        fixturelineup.Repository
	fixturePlayers fixtureplayers.Repository

	pool   *ants.Pool
	logger *logging.Logger
}

type Repositories struct {
	Fixtures       fixture.Repository
	Events         fixtureevent.Repository
	Standings      standing.Repository
	Injuries       injury.Repository
	TopScorers     topscorer.Repository
	TeamStats      teamstatistics.Repository
	FixtureStats   fixturestatistics.Repository
	Lineups        fixturelineup.Repository
	FixturePlayers fixtureplayers.Repository
}

// New builds an Engine with a bounded worker pool for the fan-out in
// ApplyFixtures (§4.12, §5: CPU-bound transform work runs on an ants.Pool
// sized by configuration).
func New(resolver DependencyResolver, repos Repositories, workers int, logger *logging.Logger) (*Engine, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create transform worker pool: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		resolver:       resolver,
		fixtures:       repos.Fixtures,
		events:         repos.Events,
		standings:      repos.Standings,
		injuries:       repos.Injuries,
		topScorers:     repos.TopScorers,
		teamStats:      repos.TeamStats,
		fixtureStats:   repos.FixtureStats,
		lineups:        repos.Lineups,
		fixturePlayers: repos.FixturePlayers,
		pool:           pool,
		logger:         logger,
	}, nil
}

// Release frees the worker pool. Call once when the engine is no longer
// needed, mirroring the teacher's resync_service.go pool.Release() defer.
func (e *Engine) Release() {
	e.pool.Release()
}

// ApplyFixtures projects and upserts every fixture in the envelope,
// resolving each row's league/teams/venue dependency first. Rows whose
// dependencies cannot be resolved are skipped, not fatal to the batch.
func (e *Engine) ApplyFixtures(ctx context.Context, raw json.RawMessage, now time.Time) (BatchResult, error) {
	items, err := DecodeFixtures(raw)
	if err != nil {
		return BatchResult{}, fmt.Errorf("decode fixtures: %w", err)
	}

	results := make(chan RowResult, len(items))
	var wg sync.WaitGroup

	for _, item := range items {
		item := item
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			results <- e.applyOneFixture(ctx, item, now)
		})
		if submitErr != nil {
			wg.Done()
			return BatchResult{}, fmt.Errorf("submit fixture transform task: %w", submitErr)
		}
	}

	wg.Wait()
	close(results)

	var batch BatchResult
	for row := range results {
		batch.Rows = append(batch.Rows, row)
		if row.Skipped {
			batch.Skipped++
		} else if row.Err == nil {
			batch.Written++
		}
	}
	return batch, nil
}

func (e *Engine) applyOneFixture(ctx context.Context, item wireFixture, now time.Time) RowResult {
	row, err := ProjectFixture(item, now)
	if err != nil {
		e.logger.WarnContext(ctx, "transform skip malformed fixture", "fixture_id", item.ID, "error", err)
		return RowResult{ID: item.ID, Skipped: true, Reason: SkipMalformed, Err: err}
	}

	if err := e.resolver.EnsureLeague(ctx, row.LeagueID); err != nil {
		e.logger.WarnContext(ctx, "transform skip fixture: league dependency", "fixture_id", row.ID, "league_id", row.LeagueID, "error", err)
		return RowResult{ID: row.ID, Skipped: true, Reason: SkipDependencyMissing, Err: err}
	}
	if err := e.resolver.EnsureTeams(ctx, row.LeagueID, row.Season, []int64{row.HomeTeamID, row.AwayTeamID}); err != nil {
		e.logger.WarnContext(ctx, "transform skip fixture: team dependency", "fixture_id", row.ID, "error", err)
		return RowResult{ID: row.ID, Skipped: true, Reason: SkipDependencyMissing, Err: err}
	}
	if v := ExtractFixtureVenue(item); v != nil {
		if err := e.resolver.EnsureVenue(ctx, v); err != nil {
			e.logger.WarnContext(ctx, "transform fixture venue upsert failed, continuing with null ref", "fixture_id", row.ID, "venue_id", v.ID, "error", err)
			row.VenueID = nil
		}
	}

	if err := e.fixtures.Upsert(ctx, row); err != nil {
		return RowResult{ID: row.ID, Err: fmt.Errorf("upsert fixture id=%d: %w", row.ID, err)}
	}
	return RowResult{ID: row.ID}
}

// ApplyEvents upserts every event for one fixture in a single transaction.
func (e *Engine) ApplyEvents(ctx context.Context, fixtureID int64, raw json.RawMessage) (int, error) {
	events, err := ProjectEvents(fixtureID, raw)
	if err != nil {
		return 0, err
	}
	if err := e.events.UpsertMany(ctx, events); err != nil {
		return 0, fmt.Errorf("upsert fixture events fixture_id=%d: %w", fixtureID, err)
	}
	return len(events), nil
}

// ApplyStandings replaces the whole (league, season) table atomically.
func (e *Engine) ApplyStandings(ctx context.Context, leagueID int64, season int, raw json.RawMessage) (int, error) {
	rows, err := ProjectStandings(leagueID, season, raw)
	if err != nil {
		return 0, err
	}
	if err := e.standings.ReplaceForSeason(ctx, leagueID, season, rows); err != nil {
		return 0, fmt.Errorf("replace standings league_id=%d season=%d: %w", leagueID, season, err)
	}
	return len(rows), nil
}

// ApplyInjuries upserts every injury row for one (league, season).
func (e *Engine) ApplyInjuries(ctx context.Context, leagueID int64, season int, raw json.RawMessage) (int, error) {
	rows, err := ProjectInjuries(leagueID, season, raw)
	if err != nil {
		return 0, err
	}
	if err := e.injuries.UpsertMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert injuries league_id=%d season=%d: %w", leagueID, season, err)
	}
	return len(rows), nil
}

// ApplyTopScorers upserts the full ranked list for one (league, season).
func (e *Engine) ApplyTopScorers(ctx context.Context, leagueID int64, season int, raw json.RawMessage) (int, error) {
	rows, err := ProjectTopScorers(leagueID, season, raw)
	if err != nil {
		return 0, err
	}
	if err := e.topScorers.UpsertMany(ctx, rows); err != nil {
		return 0, fmt.Errorf("upsert top scorers league_id=%d season=%d: %w", leagueID, season, err)
	}
	return len(rows), nil
}

// ApplyTeamStatistics upserts the single profile row for one (league,
// season, team).
func (e *Engine) ApplyTeamStatistics(ctx context.Context, leagueID int64, season int, raw json.RawMessage) error {
	row, err := ProjectTeamStatistics(leagueID, season, raw)
	if err != nil {
		return err
	}
	if err := e.teamStats.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert team statistics league_id=%d season=%d team_id=%d: %w", leagueID, season, row.TeamID, err)
	}
	return nil
}

// ApplyFixtureStatistics upserts every (fixture, team) stat row.
func (e *Engine) ApplyFixtureStatistics(ctx context.Context, fixtureID int64, raw json.RawMessage) (int, error) {
	rows, err := ProjectFixtureStatistics(fixtureID, raw)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := e.fixtureStats.Upsert(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert fixture statistics fixture_id=%d team_id=%d: %w", fixtureID, row.TeamID, err)
		}
	}
	return len(rows), nil
}

// ApplyFixtureLineups upserts every (fixture, team) lineup row.
func (e *Engine) ApplyFixtureLineups(ctx context.Context, fixtureID int64, raw json.RawMessage) (int, error) {
	rows, err := ProjectFixtureLineups(fixtureID, raw)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := e.lineups.Upsert(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert fixture lineup fixture_id=%d team_id=%d: %w", fixtureID, row.TeamID, err)
		}
	}
	return len(rows), nil
}

// ApplyFixturePlayers upserts every (fixture, team, player) stat row.
func (e *Engine) ApplyFixturePlayers(ctx context.Context, fixtureID int64, raw json.RawMessage) (int, error) {
	rows, err := ProjectFixturePlayers(fixtureID, raw)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if err := e.fixturePlayers.Upsert(ctx, row); err != nil {
			return 0, fmt.Errorf("upsert fixture player stats fixture_id=%d team_id=%d player_id=%d: %w", fixtureID, row.TeamID, row.PlayerID, err)
		}
	}
	return len(rows), nil
}
