package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/brightpitch/fixtureflow/internal/domain/injury"
	qb "github.com/brightpitch/fixtureflow/internal/platform/querybuilder"
)

type injuryTableModel struct {
	LeagueID  int64  `db:"league_id"`
	Season    int    `db:"season"`
	InjuryKey string `db:"injury_key"`

	TeamID   int64  `db:"team_id"`
	PlayerID int64  `db:"player_id"`
	Type     string `db:"type"`
	Reason   string `db:"reason"`
	Date     string `db:"occurred_on"`
}

type InjuryRepository struct {
	db *sqlx.DB
}

func NewInjuryRepository(db *sqlx.DB) *InjuryRepository {
	return &InjuryRepository{db: db}
}

func (r *InjuryRepository) Upsert(ctx context.Context, i injury.Injury) error {
	return r.upsertOne(ctx, r.db, i)
}

func (r *InjuryRepository) UpsertMany(ctx context.Context, items []injury.Injury) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx upsert injuries: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, i := range items {
		if err := r.upsertOne(ctx, tx, i); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert injuries tx: %w", err)
	}
	return nil
}

func (r *InjuryRepository) upsertOne(ctx context.Context, ex execer, i injury.Injury) error {
	model := injuryTableModel{
		LeagueID: i.LeagueID, Season: i.Season, InjuryKey: i.InjuryKey,
		TeamID: i.TeamID, PlayerID: i.PlayerID, Type: i.Type, Reason: i.Reason,
		Date: i.Date.Format("2006-01-02"),
	}
	query, args, err := qb.InsertModel("core_injuries", model, `ON CONFLICT (league_id, season, injury_key)
DO UPDATE SET
    team_id = EXCLUDED.team_id,
    player_id = EXCLUDED.player_id,
    type = EXCLUDED.type,
    reason = EXCLUDED.reason,
    occurred_on = EXCLUDED.occurred_on`)
	if err != nil {
		return fmt.Errorf("build upsert injury query: %w", err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert injury league_id=%d season=%d injury_key=%s: %w", i.LeagueID, i.Season, i.InjuryKey, err)
	}
	return nil
}

func (r *InjuryRepository) ListForSeason(ctx context.Context, leagueID int64, season int) ([]injury.Injury, error) {
	query, args, err := qb.Select("league_id", "season", "injury_key", "team_id", "player_id", "type", "reason", "occurred_on").
		From("core_injuries").Where(qb.Eq("league_id", leagueID), qb.Eq("season", season)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list injuries query: %w", err)
	}

	var rows []injuryTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list injuries league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]injury.Injury, 0, len(rows))
	for _, row := range rows {
		parsedDate, _ := parseDateOnly(row.Date)
		out = append(out, injury.Injury{
			LeagueID: row.LeagueID, Season: row.Season, InjuryKey: row.InjuryKey,
			TeamID: row.TeamID, PlayerID: row.PlayerID, Type: row.Type, Reason: row.Reason, Date: parsedDate,
		})
	}
	return out, nil
}
