package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/fixture"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type FixtureRepository struct {
	db *sqlx.DB
}

func NewFixtureRepository(db *sqlx.DB) *FixtureRepository {
	return &FixtureRepository{db: db}
}

// Upsert writes a fixture row. Terminal statuses (FT/AET/PEN) can never be
// regressed by a stale NS/TBD response in the same UPSERT; goal/score
// corrections are always accepted regardless of status, per DESIGN.md's
// resolution of the monotone-transitions open question (§4.6).
func (r *FixtureRepository) Upsert(ctx context.Context, f fixture.Fixture) error {
	model := fixtureTableModel{
		ID:          f.ID,
		LeagueID:    f.LeagueID,
		Season:      f.Season,
		KickoffAt:   f.KickoffAt,
		VenueID:     nullInt64Ptr(f.VenueID),
		HomeTeamID:  f.HomeTeamID,
		AwayTeamID:  f.AwayTeamID,
		StatusShort: f.StatusShort,
		StatusLong:  f.StatusLong,
		Elapsed:     nullIntPtr(f.Elapsed),
		GoalsHome:   nullIntPtr(f.GoalsHome),
		GoalsAway:   nullIntPtr(f.GoalsAway),
		ScoreJSON:   jsonOrEmptyObject(f.ScoreJSON),
		Referee:     f.Referee,
		NeedsScoreVerification:    f.NeedsScoreVerification,
		VerificationState:         string(f.VerificationState),
		VerificationAttemptCount:  f.VerificationAttemptCount,
		VerificationLastAttemptAt: f.VerificationLastAttemptAt,
		UpdatedAt:                 f.UpdatedAt,
	}

	query, args, err := qb.InsertModel("core_fixtures", model, `ON CONFLICT (id)
DO UPDATE SET
    league_id = EXCLUDED.league_id,
    season = EXCLUDED.season,
    kickoff_at = EXCLUDED.kickoff_at,
    venue_id = EXCLUDED.venue_id,
    home_team_id = EXCLUDED.home_team_id,
    away_team_id = EXCLUDED.away_team_id,
    status_short = CASE
        WHEN core_fixtures.status_short IN ('FT', 'AET', 'PEN')
             AND EXCLUDED.status_short IN ('NS', 'TBD')
        THEN core_fixtures.status_short
        ELSE EXCLUDED.status_short
    END,
    status_long = CASE
        WHEN core_fixtures.status_short IN ('FT', 'AET', 'PEN')
             AND EXCLUDED.status_short IN ('NS', 'TBD')
        THEN core_fixtures.status_long
        ELSE EXCLUDED.status_long
    END,
    elapsed = CASE
        WHEN core_fixtures.status_short IN ('FT', 'AET', 'PEN')
             AND EXCLUDED.status_short IN ('NS', 'TBD')
        THEN core_fixtures.elapsed
        ELSE EXCLUDED.elapsed
    END,
    goals_home = EXCLUDED.goals_home,
    goals_away = EXCLUDED.goals_away,
    score_json = EXCLUDED.score_json,
    referee = EXCLUDED.referee,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert fixture query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert fixture id=%d: %w", f.ID, err)
	}
	return nil
}

func (r *FixtureRepository) GetByID(ctx context.Context, id int64) (fixture.Fixture, bool, error) {
	query, args, err := qb.Select(fixtureColumns...).From("core_fixtures").Where(qb.Eq("id", id)).ToSQL()
	if err != nil {
		return fixture.Fixture{}, false, fmt.Errorf("build get fixture by id query: %w", err)
	}

	var row fixtureTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return fixture.Fixture{}, false, nil
		}
		return fixture.Fixture{}, false, fmt.Errorf("get fixture by id: %w", err)
	}
	return fixtureFromRow(row), true, nil
}

func (r *FixtureRepository) ListAutoFinishCandidates(ctx context.Context, leagueIDs []int64, kickoffBefore, updatedBefore time.Time) ([]fixture.Fixture, error) {
	if len(leagueIDs) == 0 {
		return nil, nil
	}

	values := make([]any, 0, len(leagueIDs))
	for _, id := range leagueIDs {
		values = append(values, id)
	}

	query, args, err := qb.Select(fixtureColumns...).From("core_fixtures").
		Where(
			qb.In("league_id", values),
			qb.In("status_short", []any{"1H", "2H", "HT", "ET", "BT", "P", "LIVE", "SUSP", "INT", "NS", "TBD"}),
			qb.Expr("kickoff_at < ?", kickoffBefore),
			qb.Expr("updated_at < ?", updatedBefore),
		).
		OrderBy("kickoff_at").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list auto-finish candidates query: %w", err)
	}

	return r.selectFixtures(ctx, query, args)
}

func (r *FixtureRepository) ListNeedingVerification(ctx context.Context, cooldownBefore time.Time, limit int) ([]fixture.Fixture, error) {
	query, args, err := qb.Select(fixtureColumns...).From("core_fixtures").
		Where(
			qb.Eq("needs_score_verification", true),
			qb.Expr("(verification_last_attempt_at IS NULL OR verification_last_attempt_at < ?)", cooldownBefore),
		).
		OrderBy("kickoff_at").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list needing verification query: %w", err)
	}

	return r.selectFixtures(ctx, query, args)
}

func (r *FixtureRepository) ListStaleLive(ctx context.Context, staleBefore time.Time, limit int) ([]fixture.Fixture, error) {
	query, args, err := qb.Select(fixtureColumns...).From("core_fixtures").
		Where(
			qb.In("status_short", []any{"1H", "2H", "HT", "ET", "BT", "P", "LIVE", "SUSP", "INT"}),
			qb.Expr("updated_at < ?", staleBefore),
		).
		OrderBy("updated_at").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list stale live query: %w", err)
	}

	return r.selectFixtures(ctx, query, args)
}

func (r *FixtureRepository) ListPastKickoffPending(ctx context.Context, kickoffBefore time.Time, limit int) ([]fixture.Fixture, error) {
	query, args, err := qb.Select(fixtureColumns...).From("core_fixtures").
		Where(
			qb.In("status_short", []any{"NS", "TBD"}),
			qb.Expr("kickoff_at < ?", kickoffBefore),
		).
		OrderBy("kickoff_at").
		Limit(limit).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list past-kickoff pending query: %w", err)
	}

	return r.selectFixtures(ctx, query, args)
}

// ForceFinish is the auto-finish path that sets a fixture to FT without an
// upstream call and raises needs_score_verification (§4.10.1a).
func (r *FixtureRepository) ForceFinish(ctx context.Context, id int64, now time.Time) error {
	query, args, err := qb.Update("core_fixtures").
		Set("status_short", "FT").
		Set("status_long", "Match Finished").
		Set("needs_score_verification", true).
		Set("verification_state", string(fixture.VerificationPending)).
		Set("updated_at", now).
		Where(qb.Eq("id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build force finish query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("force finish fixture id=%d: %w", id, err)
	}
	return nil
}

// SetVerificationState transitions verification_state and bumps the attempt
// counter/cooldown timestamp. The caller is responsible for only calling
// this with a legal transition (pending -> verified|not_found|blocked);
// verified/not_found/blocked rows are all terminal and clear
// needs_score_verification so ListNeedingVerification stops reselecting
// them (§3, §4.10.2).
func (r *FixtureRepository) SetVerificationState(ctx context.Context, id int64, state fixture.VerificationState, attemptedAt time.Time) error {
	needsVerification := state == fixture.VerificationPending

	query, args, err := qb.Update("core_fixtures").
		Set("verification_state", string(state)).
		Set("needs_score_verification", needsVerification).
		SetExpr("verification_attempt_count", "verification_attempt_count + 1").
		Set("verification_last_attempt_at", attemptedAt).
		Where(
			qb.Eq("id", id),
			qb.In("verification_state", []any{string(fixture.VerificationPending)}),
		).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build set verification state query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set verification state fixture id=%d: %w", id, err)
	}
	return nil
}

func (r *FixtureRepository) selectFixtures(ctx context.Context, query string, args []any) ([]fixture.Fixture, error) {
	var rows []fixtureTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select fixtures: %w", err)
	}

	out := make([]fixture.Fixture, 0, len(rows))
	for _, row := range rows {
		out = append(out, fixtureFromRow(row))
	}
	return out, nil
}

var fixtureColumns = []string{
	"id", "league_id", "season", "kickoff_at", "venue_id", "home_team_id", "away_team_id",
	"status_short", "status_long", "elapsed", "goals_home", "goals_away", "score_json",
	"referee", "needs_score_verification", "verification_state",
	"verification_attempt_count", "verification_last_attempt_at", "updated_at",
}

func fixtureFromRow(row fixtureTableModel) fixture.Fixture {
	return fixture.Fixture{
		ID:          row.ID,
		LeagueID:    row.LeagueID,
		Season:      row.Season,
		KickoffAt:   row.KickoffAt,
		VenueID:     ptrFromNullInt64(row.VenueID),
		HomeTeamID:  row.HomeTeamID,
		AwayTeamID:  row.AwayTeamID,
		StatusShort: row.StatusShort,
		StatusLong:  row.StatusLong,
		Elapsed:     intPtrFromNullInt64(row.Elapsed),
		GoalsHome:   intPtrFromNullInt64(row.GoalsHome),
		GoalsAway:   intPtrFromNullInt64(row.GoalsAway),
		ScoreJSON:   row.ScoreJSON,
		Referee:     row.Referee,
		NeedsScoreVerification:    row.NeedsScoreVerification,
		VerificationState:         fixture.VerificationState(row.VerificationState),
		VerificationAttemptCount:  row.VerificationAttemptCount,
		VerificationLastAttemptAt: row.VerificationLastAttemptAt,
		UpdatedAt:                 row.UpdatedAt,
	}
}
