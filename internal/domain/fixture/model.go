package fixture

import (
	"encoding/json"
	"time"
)

// VerificationState is the tri-state outcome of reconciler verification
// (§3, §4.10). Transitions are monotone: pending -> verified | not_found;
// verified and not_found are terminal. blocked marks a fixture the verifier
// gave up on without resolving it either way.
type VerificationState string

const (
	VerificationPending   VerificationState = "pending"
	VerificationVerified  VerificationState = "verified"
	VerificationNotFound  VerificationState = "not_found"
	VerificationBlocked   VerificationState = "blocked"
)

// Fixture is upserted from the upstream /fixtures* endpoints and mutated
// across its lifecycle (NS -> live -> FT/AET/PEN, §3, §4.10).
type Fixture struct {
	ID       int64
	LeagueID int64
	Season   int

	KickoffAt time.Time
	VenueID   *int64
	HomeTeamID int64
	AwayTeamID int64

	StatusShort string
	StatusLong  string
	Elapsed     *int

	GoalsHome *int
	GoalsAway *int
	ScoreJSON json.RawMessage

	Referee string

	NeedsScoreVerification     bool
	VerificationState          VerificationState
	VerificationAttemptCount   int
	VerificationLastAttemptAt  *time.Time

	UpdatedAt time.Time
}

// Terminal statuses may never be overwritten by a stale NS/TBD response
// (§4.6). Only the statuses in liveishStatuses (live play states plus
// NS/TBD) count as live-ish for the reconciler's auto-finish selection
// (§4.10); any other non-terminal status does not.
var terminalStatuses = map[string]struct{}{
	"FT":  {},
	"AET": {},
	"PEN": {},
}

func IsTerminalStatus(status string) bool {
	_, ok := terminalStatuses[status]
	return ok
}

var liveishStatuses = map[string]struct{}{
	"1H": {}, "2H": {}, "HT": {}, "ET": {}, "BT": {}, "P": {},
	"LIVE": {}, "SUSP": {}, "INT": {}, "NS": {}, "TBD": {},
}

func IsLiveish(status string) bool {
	_, ok := liveishStatuses[status]
	return ok
}

func IsPreKickoff(status string) bool {
	return status == "NS" || status == "TBD"
}
