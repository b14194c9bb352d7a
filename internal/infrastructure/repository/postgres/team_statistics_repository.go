package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/teamstatistics"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type teamStatisticsTableModel struct {
	LeagueID    int64  `db:"league_id"`
	Season      int    `db:"season"`
	TeamID      int64  `db:"team_id"`
	ProfileJSON []byte `db:"profile_json"`
}

type TeamStatisticsRepository struct {
	db *sqlx.DB
}

func NewTeamStatisticsRepository(db *sqlx.DB) *TeamStatisticsRepository {
	return &TeamStatisticsRepository{db: db}
}

func (r *TeamStatisticsRepository) Upsert(ctx context.Context, s teamstatistics.Statistics) error {
	model := teamStatisticsTableModel{
		LeagueID:    s.LeagueID,
		Season:      s.Season,
		TeamID:      s.TeamID,
		ProfileJSON: jsonOrEmptyObject(s.ProfileJSON),
	}
	query, args, err := qb.InsertModel("mart_team_statistics", model, `ON CONFLICT (league_id, season, team_id)
DO UPDATE SET profile_json = EXCLUDED.profile_json`)
	if err != nil {
		return fmt.Errorf("build upsert team statistics query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert team statistics league_id=%d season=%d team_id=%d: %w", s.LeagueID, s.Season, s.TeamID, err)
	}
	return nil
}

func (r *TeamStatisticsRepository) GetForSeason(ctx context.Context, leagueID int64, season int, teamID int64) (teamstatistics.Statistics, bool, error) {
	query, args, err := qb.Select("league_id", "season", "team_id", "profile_json").
		From("mart_team_statistics").
		Where(qb.Eq("league_id", leagueID), qb.Eq("season", season), qb.Eq("team_id", teamID)).
		ToSQL()
	if err != nil {
		return teamstatistics.Statistics{}, false, fmt.Errorf("build get team statistics query: %w", err)
	}

	var row teamStatisticsTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return teamstatistics.Statistics{}, false, nil
		}
		return teamstatistics.Statistics{}, false, fmt.Errorf("get team statistics league_id=%d season=%d team_id=%d: %w", leagueID, season, teamID, err)
	}

	return teamstatistics.Statistics{
		LeagueID: row.LeagueID, Season: row.Season, TeamID: row.TeamID, ProfileJSON: row.ProfileJSON,
	}, true, nil
}
