package ingestconfig

import "fmt"

// resolve derives Snapshot.Jobs from the raw per-category job lists,
// filling in inherited tracked-league scope and inferred season per job
// (§4.1: "resolves derived fields: when a static job omits
// tracked_leagues, inherit from daily; when it omits season, infer only
// if safe").
func resolve(doc document) (Snapshot, error) {
	allLeagueIDs := make([]int64, 0, len(doc.TrackedLeagues))
	seasonByLeague := make(map[int64]int, len(doc.TrackedLeagues))
	for _, tl := range doc.TrackedLeagues {
		allLeagueIDs = append(allLeagueIDs, tl.ID)
		seasonByLeague[tl.ID] = tl.Season
	}

	categorized := []struct {
		category JobCategory
		jobs     []JobSpec
	}{
		{JobCategoryStatic, doc.Jobs.Static},
		{JobCategoryDaily, doc.Jobs.Daily},
		{JobCategoryBackfill, doc.Jobs.Backfill},
		{JobCategoryReconcile, doc.Jobs.Reconcile},
	}

	resolved := map[JobCategory][]JobSpec{}
	for _, group := range categorized {
		out := make([]JobSpec, 0, len(group.jobs))
		for _, job := range group.jobs {
			job.Category = group.category
			out = append(out, job)
		}
		resolved[group.category] = out
	}

	dailyLeagueIDs := unionTrackedLeagueIDs(resolved[JobCategoryDaily], allLeagueIDs)

	var jobs []JobSpec
	for _, group := range categorized {
		for _, job := range resolved[group.category] {
			switch {
			case len(job.Filters.TrackedLeagueIDs) > 0:
				job.resolvedTrackedLeagueIDs = job.Filters.TrackedLeagueIDs
			case job.Category == JobCategoryStatic:
				job.resolvedTrackedLeagueIDs = dailyLeagueIDs
			default:
				job.resolvedTrackedLeagueIDs = allLeagueIDs
			}

			if season, ok := commonSeason(job.resolvedTrackedLeagueIDs, seasonByLeague); ok {
				job.resolvedSeason = season
				job.seasonResolved = true
			}

			jobs = append(jobs, job)
		}
	}

	if err := validateIntervals(jobs); err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Upstream:        doc.Upstream,
		RateLimit:       doc.RateLimit,
		TrackedLeagues:  doc.TrackedLeagues,
		ScopePolicy:     doc.ScopePolicy,
		CoverageTargets: doc.CoverageTargets,
		Jobs:            jobs,
		Concurrency:     doc.Concurrency,
		Scheduler:       doc.Scheduler,
	}, nil
}

func unionTrackedLeagueIDs(jobs []JobSpec, fallback []int64) []int64 {
	if len(jobs) == 0 {
		return fallback
	}
	seen := map[int64]struct{}{}
	var out []int64
	for _, job := range jobs {
		ids := job.Filters.TrackedLeagueIDs
		if len(ids) == 0 {
			ids = fallback
		}
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func commonSeason(leagueIDs []int64, seasonByLeague map[int64]int) (int, bool) {
	if len(leagueIDs) == 0 {
		return 0, false
	}
	var season int
	for i, id := range leagueIDs {
		s, ok := seasonByLeague[id]
		if !ok {
			return 0, false
		}
		if i == 0 {
			season = s
			continue
		}
		if s != season {
			return 0, false
		}
	}
	return season, true
}

// validateIntervals fails loudly on malformed trigger payloads (§4.1:
// "fails loudly on unknown keys or malformed cron/interval specs"). Cron
// syntax itself is validated later by the scheduler's parser; this only
// catches shape mistakes the YAML schema can't express (oneof already
// covers Type).
func validateIntervals(jobs []JobSpec) error {
	for _, job := range jobs {
		switch job.Interval.Type {
		case "cron":
			if job.Interval.Cron == "" {
				return fmt.Errorf("ingestconfig: job %q declares interval.type=cron with no interval.cron", job.Name)
			}
		case "interval":
			if job.Interval.Seconds <= 0 {
				return fmt.Errorf("ingestconfig: job %q declares interval.type=interval with interval.seconds <= 0", job.Name)
			}
		}
	}
	return nil
}
