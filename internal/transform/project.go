// Package transform projects upstream envelopes into CORE domain rows.
// Every function here is pure: given the same bytes it always returns the
// same rows, which is what makes a replay idempotent (§4.6, §8 replay law).
package transform

import (
	"encoding/json"
	"fmt"
	"time"

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
)

const upstreamDateLayout = "2006-01-02T15:04:05-07:00"

// ProjectFixtures decodes a /fixtures* results array into fixture rows.
// Events embedded in the payload are not projected here; ProjectEvents
// handles /fixtures/events payloads separately.
func ProjectFixtures(raw json.RawMessage, now time.Time) ([]fixture.Fixture, error) {
	items, err := DecodeFixtures(raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	out := make([]fixture.Fixture, 0, len(items))
	for _, item := range items {
		row, err := ProjectFixture(item, now)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// ProjectFixture projects a single already-decoded fixture item, so callers
// that need the embedded venue alongside the row (the Transform Engine)
// can decode once and derive both from the same wireFixture value.
func ProjectFixture(item wireFixture, now time.Time) (fixture.Fixture, error) {
	kickoff, err := parseUpstreamTime(item.Date)
	if err != nil {
		return fixture.Fixture{}, fmt.Errorf("parse fixture kickoff id=%d: %w", item.ID, err)
	}

	var venueID *int64
	if item.Venue != nil && item.Venue.ID != 0 {
		id := item.Venue.ID
		venueID = &id
	}

	return fixture.Fixture{
		ID:          item.ID,
		LeagueID:    item.LeagueID,
		Season:      item.Season,
		KickoffAt:   kickoff,
		VenueID:     venueID,
		HomeTeamID:  item.Teams.Home.ID,
		AwayTeamID:  item.Teams.Away.ID,
		StatusShort: item.Status.Short,
		StatusLong:  item.Status.Long,
		Elapsed:     item.Status.Elapsed,
		GoalsHome:   item.Goals.Home,
		GoalsAway:   item.Goals.Away,
		ScoreJSON:   rawOrEmptyObject(item.Score),
		Referee:     item.Referee,
		VerificationState: fixture.VerificationPending,
		UpdatedAt:   now,
	}, nil
}

// ExtractFixtureIDs returns the fixture ids present in a /fixtures* results
// array, without projecting the rest of each row. The reconciler uses this
// to tell which ids a batch-by-id fetch actually resolved versus which came
// back empty (§4.10.2: verified vs not_found).
func ExtractFixtureIDs(raw json.RawMessage) ([]int64, error) {
	items, err := DecodeFixtures(raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids, nil
}

// ProjectEvents decodes /fixtures/events results for a single fixture.
func ProjectEvents(fixtureID int64, raw json.RawMessage) ([]fixtureevent.Event, error) {
	items, err := decodeArray[wireEvent](raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixture events fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixtureevent.Event, 0, len(items))
	for _, item := range items {
		var teamID, playerID *int64
		if item.Team != nil {
			id := item.Team.ID
			teamID = &id
		}
		if item.Player != nil {
			id := item.Player.ID
			playerID = &id
		}
		minute := item.Minute.Elapsed
		extra := item.Minute.Extra

		out = append(out, fixtureevent.Event{
			FixtureID: fixtureID,
			EventKey:  EventKey(minute, extra, teamID, playerID, item.Type, item.Detail),
			Minute:    minute,
			Extra:     extra,
			Type:      item.Type,
			Detail:    item.Detail,
			TeamID:    teamID,
			PlayerID:  playerID,
		})
	}
	return out, nil
}

// ProjectStandings decodes a /standings results array for one (league,
// season). The provider always returns the full table, so these rows
// always fully replace the prior ones rather than being upserted (§4.6).
func ProjectStandings(leagueID int64, season int, raw json.RawMessage) ([]standing.Standing, error) {
	items, err := decodeArray[wireStanding](raw)
	if err != nil {
		return nil, fmt.Errorf("decode standings league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]standing.Standing, 0, len(items))
	for _, item := range items {
		out = append(out, standing.Standing{
			LeagueID: leagueID,
			Season:   season,
			TeamID:   item.Team.ID,
			Rank:     item.Rank,
			Points:   item.Points,
			All:      projectGoalStats(item.All),
			Home:     projectGoalStats(item.Home),
			Away:     projectGoalStats(item.Away),
			FormJSON: rawOrEmptyObject(item.Form),
		})
	}
	return out, nil
}

// ExtractFixtureVenue returns the venue opportunistically embedded in a
// fixture payload, or nil when the fixture carries no venue id (§4.5: a
// missing or zero venue id means the fixture's venue ref is null, not an
// error).
func ExtractFixtureVenue(item wireFixture) *venue.Venue {
	if item.Venue == nil || item.Venue.ID == 0 {
		return nil
	}
	return &venue.Venue{
		ID:       item.Venue.ID,
		Name:     item.Venue.Name,
		City:     item.Venue.City,
		Capacity: item.Venue.Capacity,
		Surface:  item.Venue.Surface,
	}
}

// DecodeFixtures is the raw-decode half of ProjectFixtures, exposed so
// callers can also extract each fixture's embedded venue before or after
// projecting the fixture row itself.
func DecodeFixtures(raw json.RawMessage) ([]wireFixture, error) {
	return decodeArray[wireFixture](raw)
}

func projectGoalStats(w wireGoalStats) standing.GoalStats {
	return standing.GoalStats{
		Played:       w.Played,
		Won:          w.Win,
		Draw:         w.Draw,
		Lost:         w.Lose,
		GoalsFor:     w.Goals.For,
		GoalsAgainst: w.Goals.Against,
	}
}

// ProjectInjuries decodes a /injuries results array for one (league, season).
func ProjectInjuries(leagueID int64, season int, raw json.RawMessage) ([]injury.Injury, error) {
	items, err := decodeArray[wireInjury](raw)
	if err != nil {
		return nil, fmt.Errorf("decode injuries league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]injury.Injury, 0, len(items))
	for _, item := range items {
		date, err := parseUpstreamDateOnly(item.Fixture.Date)
		if err != nil {
			return nil, fmt.Errorf("parse injury date team_id=%d player_id=%d: %w", item.Team.ID, item.Player.ID, err)
		}

		out = append(out, injury.Injury{
			LeagueID:  leagueID,
			Season:    season,
			InjuryKey: InjuryKey(item.Team.ID, item.Player.ID, item.Type, item.Reason, date),
			TeamID:    item.Team.ID,
			PlayerID:  item.Player.ID,
			Type:      item.Type,
			Reason:    item.Reason,
			Date:      date,
		})
	}
	return out, nil
}

// ProjectTopScorers decodes a /players/topscorers results array, where the
// provider's rank is implicit in array order.
func ProjectTopScorers(leagueID int64, season int, raw json.RawMessage) ([]topscorer.TopScorer, error) {
	items, err := decodeArray[wireTopScorer](raw)
	if err != nil {
		return nil, fmt.Errorf("decode top scorers league_id=%d season=%d: %w", leagueID, season, err)
	}

	out := make([]topscorer.TopScorer, 0, len(items))
	for i, item := range items {
		if len(item.Statistics) == 0 {
			continue
		}
		stats := item.Statistics[0]
		out = append(out, topscorer.TopScorer{
			LeagueID: leagueID,
			Season:   season,
			PlayerID: item.Player.ID,
			Rank:     i + 1,
			TeamID:   stats.Team.ID,
			Goals:    stats.Goals.Total,
			Assists:  stats.Goals.Assists,
		})
	}
	return out, nil
}

// ProjectTeamStatistics decodes a single /teams/statistics result object.
// Unlike the other endpoints this one is not an array: the provider
// returns one profile object per call.
func ProjectTeamStatistics(leagueID int64, season int, raw json.RawMessage) (teamstatistics.Statistics, error) {
	var item wireTeamStatistics
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &item); err != nil {
			return teamstatistics.Statistics{}, fmt.Errorf("decode team statistics league_id=%d season=%d: %w", leagueID, season, err)
		}
	}
	return teamstatistics.Statistics{
		LeagueID:    leagueID,
		Season:      season,
		TeamID:      item.Team.ID,
		ProfileJSON: rawOrEmptyObject(raw),
	}, nil
}

// ProjectFixtureStatistics decodes a /fixtures/statistics results array.
func ProjectFixtureStatistics(fixtureID int64, raw json.RawMessage) ([]fixturestatistics.Statistics, error) {
	items, err := decodeArray[wireFixtureStatistics](raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixture statistics fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixturestatistics.Statistics, 0, len(items))
	for _, item := range items {
		out = append(out, fixturestatistics.Statistics{
			FixtureID: fixtureID,
			TeamID:    item.Team.ID,
			StatsJSON: rawOrEmptyArray(item.Statistics),
		})
	}
	return out, nil
}

// ProjectFixtureLineups decodes a /fixtures/lineups results array.
func ProjectFixtureLineups(fixtureID int64, raw json.RawMessage) ([]fixturelineup.Lineup, error) {
	items, err := decodeArray[wireFixtureLineup](raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixture lineups fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixturelineup.Lineup, 0, len(items))
	for _, item := range items {
		out = append(out, fixturelineup.Lineup{
			FixtureID:   fixtureID,
			TeamID:      item.Team.ID,
			Formation:   item.Formation,
			StartXIJSON: rawOrEmptyArray(item.StartXI),
			SubsJSON:    rawOrEmptyArray(item.Substitutes),
			Coach:       item.Coach.Name,
			ColoursJSON: rawOrEmptyObject(item.Colours),
		})
	}
	return out, nil
}

// ProjectFixturePlayers decodes a /fixtures/players results array, which is
// nested one level deeper than the other endpoints (team -> players[]).
func ProjectFixturePlayers(fixtureID int64, raw json.RawMessage) ([]fixtureplayers.PlayerStats, error) {
	items, err := decodeArray[wireFixturePlayers](raw)
	if err != nil {
		return nil, fmt.Errorf("decode fixture players fixture_id=%d: %w", fixtureID, err)
	}

	out := make([]fixtureplayers.PlayerStats, 0)
	for _, item := range items {
		for _, p := range item.Players {
			out = append(out, fixtureplayers.PlayerStats{
				FixtureID: fixtureID,
				TeamID:    item.Team.ID,
				PlayerID:  p.Player.ID,
				StatsJSON: rawOrEmptyArray(p.Statistics),
			})
		}
	}
	return out, nil
}

func decodeArray[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// parseUpstreamTime defensively parses the provider's fixture timestamp.
// Malformed input is a transform error, not a panic (§9: tagged results,
// not exceptions, for expected outcomes).
func parseUpstreamTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty kickoff timestamp")
	}
	t, err := time.Parse(upstreamDateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func parseUpstreamDateOnly(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(upstreamDateLayout, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func rawOrEmptyObject(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("{}")
	}
	return raw
}

func rawOrEmptyArray(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("[]")
	}
	return raw
}
