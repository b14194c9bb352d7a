package bootstrap

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/brightpitch/fixtureflow/internal/domain/country"
	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/domain/team"
	"github.com/brightpitch/fixtureflow/internal/domain/timezone"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

type fakeUpstream struct {
	result upstream.Result
	err    error
}

func (f *fakeUpstream) Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error) {
	return f.result, f.err
}

type fakeRawWriter struct{ calls int }

func (f *fakeRawWriter) Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error) {
	f.calls++
	return int64(f.calls), nil
}

type fakeLeagueRepo struct{ upserted []league.League }

func (f *fakeLeagueRepo) Upsert(ctx context.Context, l league.League) error {
	f.upserted = append(f.upserted, l)
	return nil
}
func (f *fakeLeagueRepo) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (f *fakeLeagueRepo) GetByID(ctx context.Context, id int64) (league.League, bool, error) {
	return league.League{}, false, nil
}
func (f *fakeLeagueRepo) List(ctx context.Context) ([]league.League, error) { return f.upserted, nil }

type fakeTeamRepo struct{ upserted []team.Team }

func (f *fakeTeamRepo) Upsert(ctx context.Context, t team.Team) error {
	f.upserted = append(f.upserted, t)
	return nil
}
func (f *fakeTeamRepo) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (f *fakeTeamRepo) ExistsAll(ctx context.Context, ids []int64) (map[int64]bool, error) {
	return nil, nil
}
func (f *fakeTeamRepo) GetByID(ctx context.Context, id int64) (team.Team, bool, error) {
	return team.Team{}, false, nil
}

type fakeVenueRepo struct{ upserted []venue.Venue }

func (f *fakeVenueRepo) Upsert(ctx context.Context, v venue.Venue) error {
	f.upserted = append(f.upserted, v)
	return nil
}
func (f *fakeVenueRepo) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (f *fakeVenueRepo) GetByID(ctx context.Context, id int64) (venue.Venue, bool, error) {
	return venue.Venue{}, false, nil
}

type fakeCountryRepo struct{ upserted []country.Country }

func (f *fakeCountryRepo) UpsertMany(ctx context.Context, countries []country.Country) error {
	f.upserted = countries
	return nil
}
func (f *fakeCountryRepo) List(ctx context.Context) ([]country.Country, error) { return f.upserted, nil }

type fakeTimezoneRepo struct{ upserted []timezone.Timezone }

func (f *fakeTimezoneRepo) UpsertMany(ctx context.Context, zones []timezone.Timezone) error {
	f.upserted = zones
	return nil
}
func (f *fakeTimezoneRepo) List(ctx context.Context) ([]timezone.Timezone, error) {
	return f.upserted, nil
}

func newBootstrapper(result upstream.Result) (*Bootstrapper, *fakeLeagueRepo, *fakeTeamRepo, *fakeVenueRepo, *fakeCountryRepo, *fakeTimezoneRepo) {
	leagues := &fakeLeagueRepo{}
	teams := &fakeTeamRepo{}
	venues := &fakeVenueRepo{}
	countries := &fakeCountryRepo{}
	timezones := &fakeTimezoneRepo{}
	b := New(&fakeUpstream{result: result}, &fakeRawWriter{}, leagues, teams, venues, countries, timezones, nil)
	return b, leagues, teams, venues, countries, timezones
}

func TestSyncLeagues_UpsertsEveryResult(t *testing.T) {
	results, _ := json.Marshal([]map[string]any{
		{"id": 39, "name": "Premier League", "type": "League", "country_code": "GB", "seasons": []any{2025}},
		{"id": 61, "name": "Ligue 1", "type": "League", "country_code": "FR", "seasons": []any{2025}},
	})
	b, leagues, _, _, _, _ := newBootstrapper(upstream.Result{
		Outcome:  upstream.OutcomeOK,
		Envelope: upstream.Envelope{Results: results},
	})

	n, err := b.SyncLeagues(context.Background(), nil)
	if err != nil {
		t.Fatalf("SyncLeagues: %v", err)
	}
	if n != 2 || len(leagues.upserted) != 2 {
		t.Fatalf("upserted = %d, want 2", len(leagues.upserted))
	}
	if leagues.upserted[0].Type != league.TypeLeague {
		t.Fatalf("type = %q", leagues.upserted[0].Type)
	}
}

func TestSyncLeagues_PropagatesNonOKOutcome(t *testing.T) {
	b, _, _, _, _, _ := newBootstrapper(upstream.Result{Outcome: upstream.OutcomeRateLimited})
	if _, err := b.SyncLeagues(context.Background(), nil); err == nil {
		t.Fatal("expected error for non-ok outcome")
	}
}

func TestSyncTeams_UpsertsTeamAndEmbeddedVenue(t *testing.T) {
	results, _ := json.Marshal([]map[string]any{
		{
			"team":  map[string]any{"id": 33, "name": "Manchester United", "country_code": "GB", "founded": 1878},
			"venue": map[string]any{"id": 556, "name": "Old Trafford", "city": "Manchester", "capacity": 74879, "surface": "grass"},
		},
		{
			"team":  map[string]any{"id": 50, "name": "Manchester City", "country_code": "GB", "founded": 1880},
			"venue": nil,
		},
	})
	b, _, teams, venues, _, _ := newBootstrapper(upstream.Result{
		Outcome:  upstream.OutcomeOK,
		Envelope: upstream.Envelope{Results: results},
	})

	n, err := b.SyncTeams(context.Background(), 39, 2025)
	if err != nil {
		t.Fatalf("SyncTeams: %v", err)
	}
	if n != 2 || len(teams.upserted) != 2 {
		t.Fatalf("teams upserted = %d, want 2", len(teams.upserted))
	}
	if len(venues.upserted) != 1 || venues.upserted[0].ID != 556 {
		t.Fatalf("venues upserted = %+v", venues.upserted)
	}
	if teams.upserted[0].VenueID == nil || *teams.upserted[0].VenueID != 556 {
		t.Fatalf("team venue id = %v", teams.upserted[0].VenueID)
	}
	if teams.upserted[1].VenueID != nil {
		t.Fatalf("expected nil venue id for second team, got %v", teams.upserted[1].VenueID)
	}
}

func TestSyncCountries_UpsertsWholeBatch(t *testing.T) {
	results, _ := json.Marshal([]map[string]any{
		{"code": "GB", "name": "England", "flag": "https://flag/gb.svg"},
		{"code": "FR", "name": "France", "flag": "https://flag/fr.svg"},
	})
	b, _, _, _, countries, _ := newBootstrapper(upstream.Result{
		Outcome:  upstream.OutcomeOK,
		Envelope: upstream.Envelope{Results: results},
	})

	n, err := b.SyncCountries(context.Background())
	if err != nil {
		t.Fatalf("SyncCountries: %v", err)
	}
	if n != 2 || len(countries.upserted) != 2 {
		t.Fatalf("countries upserted = %d, want 2", len(countries.upserted))
	}
}

func TestSyncTimezones_UpsertsBareStringArray(t *testing.T) {
	results, _ := json.Marshal([]string{"Europe/London", "Europe/Paris"})
	b, _, _, _, _, timezones := newBootstrapper(upstream.Result{
		Outcome:  upstream.OutcomeOK,
		Envelope: upstream.Envelope{Results: results},
	})

	n, err := b.SyncTimezones(context.Background())
	if err != nil {
		t.Fatalf("SyncTimezones: %v", err)
	}
	if n != 2 || timezones.upserted[0].Name != "Europe/London" {
		t.Fatalf("timezones upserted = %+v", timezones.upserted)
	}
}
