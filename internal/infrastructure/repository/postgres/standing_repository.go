package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/standing"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type standingTableModel struct {
	LeagueID int64 `db:"league_id"`
	Season   int   `db:"season"`
	TeamID   int64 `db:"team_id"`

	Rank   int `db:"rank"`
	Points int `db:"points"`

	AllPlayed int `db:"all_played"`
	AllWon    int `db:"all_won"`
	AllDraw   int `db:"all_draw"`
	AllLost   int `db:"all_lost"`
	AllFor    int `db:"all_goals_for"`
	AllAgainst int `db:"all_goals_against"`

	HomePlayed int `db:"home_played"`
	HomeWon    int `db:"home_won"`
	HomeDraw   int `db:"home_draw"`
	HomeLost   int `db:"home_lost"`
	HomeFor    int `db:"home_goals_for"`
	HomeAgainst int `db:"home_goals_against"`

	AwayPlayed int `db:"away_played"`
	AwayWon    int `db:"away_won"`
	AwayDraw   int `db:"away_draw"`
	AwayLost   int `db:"away_lost"`
	AwayFor    int `db:"away_goals_for"`
	AwayAgainst int `db:"away_goals_against"`

	FormJSON []byte `db:"form_json"`
}

type StandingRepository struct {
	db *sqlx.DB
}

func NewStandingRepository(db *sqlx.DB) *StandingRepository {
	return &StandingRepository{db: db}
}

// ReplaceForSeason deletes and reinserts a (league, season) standings table
// atomically, per §4.6's "replace-per-(league, season)" semantics — the
// provider always returns the whole table, so there is no meaningful
// per-row UPSERT to reconcile against stale rows.
func (r *StandingRepository) ReplaceForSeason(ctx context.Context, leagueID int64, season int, rows []standing.Standing) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx replace standings: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM core_standings WHERE league_id = $1 AND season = $2`, leagueID, season); err != nil {
		return fmt.Errorf("delete standings league_id=%d season=%d: %w", leagueID, season, err)
	}

	for _, row := range rows {
		model := standingTableModel{
			LeagueID: leagueID, Season: season, TeamID: row.TeamID,
			Rank: row.Rank, Points: row.Points,
			AllPlayed: row.All.Played, AllWon: row.All.Won, AllDraw: row.All.Draw, AllLost: row.All.Lost,
			AllFor: row.All.GoalsFor, AllAgainst: row.All.GoalsAgainst,
			HomePlayed: row.Home.Played, HomeWon: row.Home.Won, HomeDraw: row.Home.Draw, HomeLost: row.Home.Lost,
			HomeFor: row.Home.GoalsFor, HomeAgainst: row.Home.GoalsAgainst,
			AwayPlayed: row.Away.Played, AwayWon: row.Away.Won, AwayDraw: row.Away.Draw, AwayLost: row.Away.Lost,
			AwayFor: row.Away.GoalsFor, AwayAgainst: row.Away.GoalsAgainst,
			FormJSON: jsonOrEmptyObject(row.FormJSON),
		}
		query, args, err := qb.InsertModel("core_standings", model, "")
		if err != nil {
			return fmt.Errorf("build insert standing query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert standing league_id=%d season=%d team_id=%d: %w", leagueID, season, row.TeamID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace standings tx: %w", err)
	}
	return nil
}

func (r *StandingRepository) ListForSeason(ctx context.Context, leagueID int64, season int) ([]standing.Standing, error) {
	query, args, err := qb.Select("*").From("core_standings").
		Where(qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		OrderBy("rank").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list standings query: %w", err)
	}

	var rows []standingTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list standings league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]standing.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, standing.Standing{
			LeagueID: row.LeagueID, Season: row.Season, TeamID: row.TeamID,
			Rank: row.Rank, Points: row.Points,
			All:  standing.GoalStats{Played: row.AllPlayed, Won: row.AllWon, Draw: row.AllDraw, Lost: row.AllLost, GoalsFor: row.AllFor, GoalsAgainst: row.AllAgainst},
			Home: standing.GoalStats{Played: row.HomePlayed, Won: row.HomeWon, Draw: row.HomeDraw, Lost: row.HomeLost, GoalsFor: row.HomeFor, GoalsAgainst: row.HomeAgainst},
			Away: standing.GoalStats{Played: row.AwayPlayed, Won: row.AwayWon, Draw: row.AwayDraw, Lost: row.AwayLost, GoalsFor: row.AwayFor, GoalsAgainst: row.AwayAgainst},
			FormJSON: row.FormJSON,
		})
	}
	return out, nil
}
