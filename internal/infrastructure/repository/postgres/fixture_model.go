package postgres

import (
	"database/sql"
	"time"
)

type fixtureTableModel struct {
	ID       int64 `db:"id"`
	LeagueID int64 `db:"league_id"`
	Season   int   `db:"season"`

	KickoffAt  time.Time     `db:"kickoff_at"`
	VenueID    sql.NullInt64 `db:"venue_id"`
	HomeTeamID int64         `db:"home_team_id"`
	AwayTeamID int64         `db:"away_team_id"`

	StatusShort string        `db:"status_short"`
	StatusLong  string        `db:"status_long"`
	Elapsed     sql.NullInt64 `db:"elapsed"`

	GoalsHome sql.NullInt64 `db:"goals_home"`
	GoalsAway sql.NullInt64 `db:"goals_away"`
	ScoreJSON []byte        `db:"score_json"`

	Referee string `db:"referee"`

	NeedsScoreVerification    bool       `db:"needs_score_verification"`
	VerificationState         string     `db:"verification_state"`
	VerificationAttemptCount  int        `db:"verification_attempt_count"`
	VerificationLastAttemptAt *time.Time `db:"verification_last_attempt_at"`

	UpdatedAt time.Time `db:"updated_at"`
}
