package app

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Organization owns the full repository list for a named organization and the
// ranking merged from the per-repository contributor sets.
//
// The merged ranking is rebuilt, never mutated concurrently with readers:
// readers only observe it after LoadContributors finished.
type Organization struct {
	Name         string
	Repositories []*Repository

	svc          *Service
	contributors []Contributor
	loaded       bool
}

// newOrganization fetches the organization's repository list and prepares a
// Repository for every repository that ever received a push.
func newOrganization(ctx context.Context, svc *Service, name string, forceRefresh bool) (*Organization, error) {
	if forceRefresh {
		svc.daemons.Cancel(name)
	}

	infos, err := svc.client.RepositoriesByOrg(ctx, name)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving repositories of organization %s", name)
	}

	o := Organization{
		Name: name,
		svc:  svc,
	}

	searcher := orgSearcher{svc: svc, org: name}
	for _, info := range infos {
		if info.PushedAt == nil {
			continue
		}
		repo := NewRepository(
			svc.client, svc.repoCache, searcher, svc.l,
			info.Name, info.URL, *info.PushedAt, forceRefresh,
		)
		o.Repositories = append(o.Repositories, repo)
	}

	// A repository about to reload may report changed contribution counts,
	// which invalidates any targeted last-commit lookups cached for its users.
	for _, repo := range o.Repositories {
		if !repo.NeedsLoad() {
			continue
		}
		for _, c := range repo.Contributors() {
			svc.commitCache.Delete(svc.commitCacheKey(name, c.Username))
		}
	}

	return &o, nil
}

// LastChanged returns the most recent push timestamp across all repositories.
func (o *Organization) LastChanged() time.Time {
	var last time.Time
	for _, repo := range o.Repositories {
		if repo.LastPush.After(last) {
			last = repo.LastPush
		}
	}

	return last
}

// ChangedSince checks if any repository has been pushed after dt.
func (o *Organization) ChangedSince(dt time.Time) bool {
	return o.LastChanged().After(dt)
}

// ContributorCount returns the size of the merged ranking. Zero until
// LoadContributors ran.
func (o *Organization) ContributorCount() int {
	return len(o.contributors)
}

// LoadContributors builds the merged contributor ranking. Idempotent: once
// built the ranking is reused until a new Organization is constructed.
//
// Contributor sets are loaded per repository in parallel; the fan-out is
// drained as a barrier before merging. Contributions are summed per username
// and sorted descending; ties keep first-seen repository order. Last commits
// are not resolved here, only when a page of results actually needs them.
func (o *Organization) LoadContributors(ctx context.Context) error {
	if o.loaded {
		return nil
	}

	results := forEachRepository(ctx, o.Repositories, o.svc.maxWorkers, func(ctx context.Context, r *Repository) error {
		return r.LoadContributors(ctx)
	})
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = errors.Wrapf(res.err, "loading contributors of organization %s", o.Name)
		}
	}
	if firstErr != nil {
		return firstErr
	}

	merged := make(map[string]*Contributor)
	var order []string
	for _, repo := range o.Repositories {
		for _, c := range repo.Contributors() {
			if el, ok := merged[c.Username]; ok {
				el.Contributions += c.Contributions
				continue
			}
			c := c
			c.LastCommit = nil
			merged[c.Username] = &c
			order = append(order, c.Username)
		}
	}

	list := make([]Contributor, 0, len(order))
	for _, name := range order {
		list = append(list, *merged[name])
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Contributions > list[j].Contributions
	})

	o.contributors = list
	o.loaded = true

	return nil
}

// TopContributors returns one page of the merged ranking and the total number
// of pages.
//
// count below 1 selects the whole ranking. A page outside [1, numPages]
// yields an empty slice with the correct page count. Last commits are
// resolved lazily, only for the page members still lacking one: every
// repository scans for exactly those usernames in parallel and the most
// recent commit across repositories wins.
func (o *Organization) TopContributors(ctx context.Context, count int, page int) ([]Contributor, int, error) {
	if err := o.LoadContributors(ctx); err != nil {
		return nil, 0, err
	}

	total := len(o.contributors)
	if count < 1 {
		count = total
	}
	if total == 0 {
		return []Contributor{}, 0, nil
	}

	numPages := int(math.Ceil(float64(total) / float64(count)))
	if page < 1 || page > numPages {
		return []Contributor{}, numPages, nil
	}

	start := (page - 1) * count
	end := page * count
	if end > total {
		end = total
	}
	top := make([]Contributor, end-start)
	copy(top, o.contributors[start:end])

	need := make(map[string]struct{})
	for _, c := range top {
		if c.LastCommit == nil {
			need[c.Username] = struct{}{}
		}
	}
	if len(need) == 0 {
		return top, numPages, nil
	}

	results := forEachRepository(ctx, o.Repositories, o.svc.maxWorkers, func(ctx context.Context, r *Repository) error {
		return r.LoadLastCommits(ctx, need)
	})
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(res.err, "loading last commits of organization %s", o.Name)
			}
			continue
		}

		for i := range top {
			c := &top[i]
			rc, ok := res.repo.Contributor(c.Username)
			if !ok || rc.LastCommit == nil {
				continue
			}
			if c.LastCommit == nil || c.LastCommit.Date.Before(rc.LastCommit.Date) {
				commit := *rc.LastCommit
				c.LastCommit = &commit
				c.Email = rc.Email
			}
		}
	}
	if firstErr != nil {
		return nil, 0, firstErr
	}

	// Keep resolved commits in the ranking so later calls don't redo the work.
	copy(o.contributors[start:end], top)

	return top, numPages, nil
}

// StartPreloader starts a best-effort background task resolving every
// repository's contributors and last commits, unless everything is already
// loaded or a task for this organization is running. At most one preloader
// per organization name is live at a time.
func (o *Organization) StartPreloader() {
	loaded := true
	for _, repo := range o.Repositories {
		if !repo.FullyLoaded() {
			loaded = false
			break
		}
	}
	if loaded {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	if !o.svc.daemons.Register(o.Name, cancel) {
		cancel()
		return
	}

	go func() {
		if err := o.preload(ctx); err != nil {
			o.svc.l.Warnf("preloader for organization %s: %v", o.Name, err)
		}
	}()
}

// preload fully resolves the organization: contributor rankings first, then
// every pending last commit.
func (o *Organization) preload(ctx context.Context) error {
	if err := o.LoadContributors(ctx); err != nil {
		return err
	}

	results := forEachRepository(ctx, o.Repositories, o.svc.maxWorkers, func(ctx context.Context, r *Repository) error {
		return r.LoadLastCommits(ctx, nil)
	})
	var firstErr error
	for res := range results {
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}

	return firstErr
}
