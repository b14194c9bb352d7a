// Package bootstrap fetches and upserts the static reference entities —
// leagues, countries, timezones, and a league's team roster — that the
// Transform Engine assumes already exist in CORE (§3, §4.1 "static"
// job category). Unlike the Dependency Resolver, which fetches these
// narrowly and on demand while projecting a fixture, a bootstrap job
// syncs a whole collection endpoint in one pass.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/brightpitch/fixtureflow/internal/domain/country"
	"github.com/brightpitch/fixtureflow/internal/domain/league"
	"github.com/brightpitch/fixtureflow/internal/domain/team"
	"github.com/brightpitch/fixtureflow/internal/domain/timezone"
	"github.com/brightpitch/fixtureflow/internal/domain/venue"
	"github.com/brightpitch/fixtureflow/internal/platform/logging"
	"github.com/brightpitch/fixtureflow/internal/rawarchive"
	"github.com/brightpitch/fixtureflow/internal/upstream"
)

// UpstreamGetter is the slice of upstream.Client the bootstrapper depends on.
type UpstreamGetter interface {
	Get(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error)
}

// RawRecorder is the slice of rawarchive.Writer the bootstrapper depends on.
type RawRecorder interface {
	Record(ctx context.Context, endpoint string, params map[string]string, result upstream.Result) (int64, error)
}

var _ RawRecorder = (*rawarchive.Writer)(nil)

type Bootstrapper struct {
	upstreamClient UpstreamGetter
	rawWriter      RawRecorder

	leagues   league.Repository
	teams     team.Repository
	venues    venue.Repository
	countries country.Repository
	timezones timezone.Repository

	logger *logging.Logger
}

func New(
	upstreamClient UpstreamGetter,
	rawWriter RawRecorder,
	leagues league.Repository,
	teams team.Repository,
	venues venue.Repository,
	countries country.Repository,
	timezones timezone.Repository,
	logger *logging.Logger,
) *Bootstrapper {
	if logger == nil {
		logger = logging.Default()
	}
	return &Bootstrapper{
		upstreamClient: upstreamClient,
		rawWriter:      rawWriter,
		leagues:        leagues,
		teams:          teams,
		venues:         venues,
		countries:      countries,
		timezones:      timezones,
		logger:         logger,
	}
}

// SyncLeagues fetches the full /leagues collection and upserts every row.
func (b *Bootstrapper) SyncLeagues(ctx context.Context, params map[string]string) (int, error) {
	result, err := b.fetch(ctx, "/leagues", params)
	if err != nil {
		return 0, err
	}
	items, err := decodeResultsArray[wireLeague](result.Envelope.Results)
	if err != nil {
		return 0, fmt.Errorf("decode leagues: %w", err)
	}
	for _, item := range items {
		l := league.League{
			ID: item.ID, Name: item.Name, Type: league.ParseType(item.Type),
			CountryCode: item.Country, SeasonsJSON: item.Seasons,
		}
		if err := b.leagues.Upsert(ctx, l); err != nil {
			return 0, fmt.Errorf("upsert league id=%d: %w", l.ID, err)
		}
	}
	return len(items), nil
}

// SyncTeams fetches one league/season's full roster and upserts every team
// and its embedded venue, if any.
func (b *Bootstrapper) SyncTeams(ctx context.Context, leagueID int64, season int) (int, error) {
	params := map[string]string{
		"league": fmt.Sprintf("%d", leagueID),
		"season": fmt.Sprintf("%d", season),
	}
	result, err := b.fetch(ctx, "/teams", params)
	if err != nil {
		return 0, err
	}
	items, err := decodeResultsArray[wireTeamEntry](result.Envelope.Results)
	if err != nil {
		return 0, fmt.Errorf("decode teams league_id=%d season=%d: %w", leagueID, season, err)
	}
	for _, item := range items {
		if item.Venue != nil && item.Venue.ID != 0 {
			v := venue.Venue{
				ID: item.Venue.ID, Name: item.Venue.Name, City: item.Venue.City,
				Capacity: item.Venue.Capacity, Surface: item.Venue.Surface,
			}
			if err := b.venues.Upsert(ctx, v); err != nil {
				return 0, fmt.Errorf("upsert venue id=%d: %w", v.ID, err)
			}
		}
		var venueID *int64
		if item.Venue != nil && item.Venue.ID != 0 {
			id := item.Venue.ID
			venueID = &id
		}
		t := team.Team{
			ID: item.Team.ID, Name: item.Team.Name, CountryCode: item.Team.Country,
			Founded: item.Team.Founded, VenueID: venueID,
		}
		if err := b.teams.Upsert(ctx, t); err != nil {
			return 0, fmt.Errorf("upsert team id=%d: %w", t.ID, err)
		}
	}
	return len(items), nil
}

// SyncCountries fetches the full /countries collection.
func (b *Bootstrapper) SyncCountries(ctx context.Context) (int, error) {
	result, err := b.fetch(ctx, "/countries", nil)
	if err != nil {
		return 0, err
	}
	items, err := decodeResultsArray[wireCountry](result.Envelope.Results)
	if err != nil {
		return 0, fmt.Errorf("decode countries: %w", err)
	}
	out := make([]country.Country, 0, len(items))
	for _, item := range items {
		out = append(out, country.Country{ISOCode: item.Code, Name: item.Name, Flag: item.Flag})
	}
	if err := b.countries.UpsertMany(ctx, out); err != nil {
		return 0, fmt.Errorf("upsert countries: %w", err)
	}
	return len(out), nil
}

// SyncTimezones fetches the full /timezone collection, which the provider
// returns as a bare array of IANA names rather than objects.
func (b *Bootstrapper) SyncTimezones(ctx context.Context) (int, error) {
	result, err := b.fetch(ctx, "/timezone", nil)
	if err != nil {
		return 0, err
	}
	names, err := decodeResultsArray[string](result.Envelope.Results)
	if err != nil {
		return 0, fmt.Errorf("decode timezones: %w", err)
	}
	out := make([]timezone.Timezone, 0, len(names))
	for _, name := range names {
		out = append(out, timezone.Timezone{Name: name})
	}
	if err := b.timezones.UpsertMany(ctx, out); err != nil {
		return 0, fmt.Errorf("upsert timezones: %w", err)
	}
	return len(out), nil
}

func (b *Bootstrapper) fetch(ctx context.Context, endpoint string, params map[string]string) (upstream.Result, error) {
	result, err := b.upstreamClient.Get(ctx, endpoint, params)
	if err != nil {
		return upstream.Result{}, fmt.Errorf("fetch %s: %w", endpoint, err)
	}
	if _, archiveErr := b.rawWriter.Record(ctx, endpoint, params, result); archiveErr != nil {
		b.logger.WarnContext(ctx, "bootstrap failed to archive fetch", "endpoint", endpoint, "error", archiveErr)
	}
	if result.Outcome != upstream.OutcomeOK {
		return upstream.Result{}, fmt.Errorf("fetch %s: upstream outcome %s", endpoint, result.Outcome)
	}
	return result, nil
}

type wireLeague struct {
	ID      int64           `json:"id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Country string          `json:"country_code"`
	Seasons json.RawMessage `json:"seasons"`
}

type wireVenue struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	City     string `json:"city"`
	Capacity int    `json:"capacity"`
	Surface  string `json:"surface"`
}

type wireTeamEntry struct {
	Team struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country_code"`
		Founded int    `json:"founded"`
	} `json:"team"`
	Venue *wireVenue `json:"venue"`
}

type wireCountry struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// decodeResultsArray decodes an envelope's results field, which the
// provider sends as a bare JSON array for collection endpoints.
func decodeResultsArray[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode results array: %w", err)
	}
	return items, nil
}
