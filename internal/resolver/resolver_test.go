package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/domain/team"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

type fakeUpstream struct {
	calls   []string
	results map[string]upstream.Result
}

func (f *fakeUpstream) Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error) {
	f.calls = append(f.calls, endpoint)
	if result, ok := f.results[endpoint]; ok {
		return result, nil
	}
	return upstream.Result{Outcome: upstream.OutcomeOK, Envelope: upstream.Envelope{Results: []byte("[]")}}, nil
}

type fakeRawWriter struct{}

func (f *fakeRawWriter) Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error) {
	return 1, nil
}

type fakeLeagueRepo struct {
	existing map[int64]bool
	upserted []league.League
}

func (f *fakeLeagueRepo) Upsert(ctx context.Context, l league.League) error {
	f.upserted = append(f.upserted, l)
	if f.existing == nil {
		f.existing = map[int64]bool{}
	}
	f.existing[l.ID] = true
	return nil
}
func (f *fakeLeagueRepo) Exists(ctx context.Context, id int64) (bool, error) { return f.existing[id], nil }
func (f *fakeLeagueRepo) GetByID(ctx context.Context, id int64) (league.League, bool, error) {
	return league.League{}, false, nil
}
func (f *fakeLeagueRepo) List(ctx context.Context) ([]league.League, error) { return nil, nil }

type fakeTeamRepo struct {
	existing map[int64]bool
	upserted []team.Team
}

func (f *fakeTeamRepo) Upsert(ctx context.Context, t team.Team) error {
	f.upserted = append(f.upserted, t)
	if f.existing == nil {
		f.existing = map[int64]bool{}
	}
	f.existing[t.ID] = true
	return nil
}
func (f *fakeTeamRepo) Exists(ctx context.Context, id int64) (bool, error) { return f.existing[id], nil }
func (f *fakeTeamRepo) ExistsAll(ctx context.Context, ids []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = f.existing[id]
	}
	return out, nil
}
func (f *fakeTeamRepo) GetByID(ctx context.Context, id int64) (team.Team, bool, error) {
	return team.Team{}, false, nil
}

type fakeVenueRepo struct {
	upserted []venue.Venue
}

func (f *fakeVenueRepo) Upsert(ctx context.Context, v venue.Venue) error {
	f.upserted = append(f.upserted, v)
	return nil
}
func (f *fakeVenueRepo) Exists(ctx context.Context, id int64) (bool, error) { return false, nil }
func (f *fakeVenueRepo) GetByID(ctx context.Context, id int64) (venue.Venue, bool, error) {
	return venue.Venue{}, false, nil
}

type fakeBootstrapRepo struct {
	completed map[string]bool
}

func bootstrapKey(leagueID int64, season int) string {
	return fmt.Sprintf("%d:%d", leagueID, season)
}

func (f *fakeBootstrapRepo) IsCompleted(ctx context.Context, leagueID int64, season int) (bool, error) {
	if f.completed == nil {
		return false, nil
	}
	return f.completed[bootstrapKey(leagueID, season)], nil
}
func (f *fakeBootstrapRepo) MarkCompleted(ctx context.Context, leagueID int64, season int) error {
	if f.completed == nil {
		f.completed = map[string]bool{}
	}
	f.completed[bootstrapKey(leagueID, season)] = true
	return nil
}

func TestResolver_EnsureLeague_SkipsFetchWhenExists(t *testing.T) {
	up := &fakeUpstream{}
	leagues := &fakeLeagueRepo{existing: map[int64]bool{8: true}}
	r := New(up, &fakeRawWriter{}, leagues, &fakeTeamRepo{}, &fakeVenueRepo{}, &fakeBootstrapRepo{}, nil)

	if err := r.EnsureLeague(context.Background(), 8); err != nil {
		t.Fatalf("ensure league: %v", err)
	}
	if len(up.calls) != 0 {
		t.Fatalf("expected no upstream calls for existing league, got %v", up.calls)
	}
}

func TestResolver_EnsureLeague_FetchesWhenMissing(t *testing.T) {
	up := &fakeUpstream{
		results: map[string]upstream.Result{
			"/leagues": {
				Outcome:  upstream.OutcomeOK,
				Envelope: upstream.Envelope{Results: []byte(`[{"id":8,"name":"Premier League","type":"League","country_code":"GB"}]`)},
			},
		},
	}
	leagues := &fakeLeagueRepo{}
	r := New(up, &fakeRawWriter{}, leagues, &fakeTeamRepo{}, &fakeVenueRepo{}, &fakeBootstrapRepo{}, nil)

	if err := r.EnsureLeague(context.Background(), 8); err != nil {
		t.Fatalf("ensure league: %v", err)
	}
	if len(leagues.upserted) != 1 || leagues.upserted[0].Name != "Premier League" {
		t.Fatalf("expected league upserted, got %+v", leagues.upserted)
	}

	up.calls = nil
	if err := r.EnsureLeague(context.Background(), 8); err != nil {
		t.Fatalf("ensure league second call: %v", err)
	}
	if len(up.calls) != 0 {
		t.Fatalf("expected cache hit to avoid refetch, got %v", up.calls)
	}
}

func TestResolver_EnsureTeams_BootstrapsRosterOnce(t *testing.T) {
	up := &fakeUpstream{
		results: map[string]upstream.Result{
			"/teams": {
				Outcome:  upstream.OutcomeOK,
				Envelope: upstream.Envelope{Results: []byte(`[{"id":1,"name":"Home FC"}]`)},
			},
		},
	}
	teams := &fakeTeamRepo{}
	bootstrap := &fakeBootstrapRepo{completed: map[string]bool{}}
	r := New(up, &fakeRawWriter{}, &fakeLeagueRepo{}, teams, &fakeVenueRepo{}, bootstrap, nil)

	if err := r.EnsureTeams(context.Background(), 8, 2026, []int64{1}); err != nil {
		t.Fatalf("ensure teams: %v", err)
	}
	if len(up.calls) != 1 || up.calls[0] != "/teams" {
		t.Fatalf("expected one roster fetch, got %v", up.calls)
	}
	if len(teams.upserted) != 1 {
		t.Fatalf("expected team upserted from roster fetch, got %+v", teams.upserted)
	}
}

func TestResolver_EnsureVenue_NilWhenZeroID(t *testing.T) {
	venues := &fakeVenueRepo{}
	r := New(&fakeUpstream{}, &fakeRawWriter{}, &fakeLeagueRepo{}, &fakeTeamRepo{}, venues, &fakeBootstrapRepo{}, nil)

	if err := r.EnsureVenue(context.Background(), nil); err != nil {
		t.Fatalf("ensure venue nil: %v", err)
	}
	if err := r.EnsureVenue(context.Background(), &venue.Venue{ID: 0}); err != nil {
		t.Fatalf("ensure venue zero id: %v", err)
	}
	if len(venues.upserted) != 0 {
		t.Fatalf("expected no venue upsert for nil/zero id, got %+v", venues.upserted)
	}

	if err := r.EnsureVenue(context.Background(), &venue.Venue{ID: 5, Name: "Stadium"}); err != nil {
		t.Fatalf("ensure venue: %v", err)
	}
	if len(venues.upserted) != 1 {
		t.Fatalf("expected venue upserted, got %+v", venues.upserted)
	}
}
