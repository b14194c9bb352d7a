package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/topscorer"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type topScorerTableModel struct {
	LeagueID int64 `db:"league_id"`
	Season   int   `db:"season"`
	PlayerID int64 `db:"player_id"`

	Rank    int   `db:"rank"`
	TeamID  int64 `db:"team_id"`
	Goals   int   `db:"goals"`
	Assists int   `db:"assists"`
}

type TopScorerRepository struct {
	db *sqlx.DB
}

func NewTopScorerRepository(db *sqlx.DB) *TopScorerRepository {
	return &TopScorerRepository{db: db}
}

func (r *TopScorerRepository) Upsert(ctx context.Context, t topscorer.TopScorer) error {
	return r.upsertOne(ctx, r.db, t)
}

func (r *TopScorerRepository) UpsertMany(ctx context.Context, items []topscorer.TopScorer) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert top scorers: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, t := range items {
		if err := r.upsertOne(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert top scorers tx: %w", err)
	}
	return nil
}

func (r *TopScorerRepository) upsertOne(ctx context.Context, ex execer, t topscorer.TopScorer) error {
	model := topScorerTableModel{
		LeagueID: t.LeagueID, Season: t.Season, PlayerID: t.PlayerID,
		Rank: t.Rank, TeamID: t.TeamID, Goals: t.Goals, Assists: t.Assists,
	}
	query, args, err := qb.InsertModel("mart_top_scorers", model, `ON CONFLICT (league_id, season, player_id)
DO UPDATE SET rank = EXCLUDED.rank, team_id = EXCLUDED.team_id, goals = EXCLUDED.goals, assists = EXCLUDED.assists`)
	if err != nil {
		return fmt.Errorf("build upsert top scorer query: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert top scorer league_id=%d season=%d player_id=%d: %w", t.LeagueID, t.Season, t.PlayerID, err)
	}
	return nil
}

func (r *TopScorerRepository) ListForSeason(ctx context.Context, leagueID int64, season int) ([]topscorer.TopScorer, error) {
	query, args, err := qb.Select("league_id", "season", "player_id", "rank", "team_id", "goals", "assists").
		From("mart_top_scorers").Where(qb.Eq("league_id", leagueID), qb.Eq("season", season)).
		OrderBy("rank").ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list top scorers query: %w", err)
	}

	var rows []topScorerTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list top scorers league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]topscorer.TopScorer, 0, len(rows))
	for _, row := range rows {
		out = append(out, topscorer.TopScorer{
			LeagueID: row.LeagueID, Season: row.Season, PlayerID: row.PlayerID,
			Rank: row.Rank, TeamID: row.TeamID, Goals: row.Goals, Assists: row.Assists,
		})
	}
	return out, nil
}
