package app

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Adaptive fallback tuning. The scan gives up and switches to targeted
// searches when fewer than scanMinHitRatio contributors are resolved per
// scanned page and at most scanFallbackLimit names remain.
const (
	scanBatchSize     = 100
	scanMinHitRatio   = 0.25
	scanFallbackLimit = 10
)

// LastCommitSearcher resolves a contributor's most recent commit within the
// owning organization with a single targeted query. The second return value
// is false when no commit matched.
type LastCommitSearcher interface {
	LastCommitByAuthor(ctx context.Context, login string) (ContributorCommit, bool, error)
}

// Repository owns one repository's contributor set.
//
// A Repository is never used by more than one worker at a time; all methods
// assume single-goroutine access. Cross-repository state lives in the shared
// caches, which are internally synchronized.
type Repository struct {
	Name     string
	URL      string
	LastPush time.Time

	client   GithubClient
	store    KeyedCache
	searcher LastCommitSearcher
	l        logrus.FieldLogger

	needsLoad    bool
	contributors map[string]*Contributor
	order        []string
	pending      map[string]struct{}
	commits      CommitIter
}

// repoCacheRecord is the persisted form of a repository's contributor set.
// Contributors keep their upstream listing order.
type repoCacheRecord struct {
	LastPush     time.Time     `json:"last_push"`
	Contributors []Contributor `json:"contributors"`
}

// NewRepository builds the repository identified by url, seeding its state
// from the contributor cache.
//
// The repository is stale (needs a full reload) when the cached last-push
// timestamp differs from the organization-reported one, or when nothing was
// cached. On a fresh cache hit, contributors without a resolved last commit
// are queued for update.
func NewRepository(
	client GithubClient,
	store KeyedCache,
	searcher LastCommitSearcher,
	l logrus.FieldLogger,
	name string,
	url string,
	lastPush time.Time,
	forceRefresh bool,
) *Repository {
	r := Repository{
		Name:     name,
		URL:      url,
		LastPush: lastPush,

		client:   client,
		store:    store,
		searcher: searcher,
		l:        l,

		needsLoad:    true,
		contributors: make(map[string]*Contributor),
		pending:      make(map[string]struct{}),
	}

	if forceRefresh {
		store.Delete(url)
		return &r
	}

	data, ok := store.Get(url)
	if !ok {
		return &r
	}
	var rec repoCacheRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		l.Warnf("repository %s: unparsable cache record: %v", name, err)
		return &r
	}

	for i := range rec.Contributors {
		c := rec.Contributors[i]
		r.contributors[c.Username] = &c
		r.order = append(r.order, c.Username)
	}
	r.needsLoad = !rec.LastPush.Equal(lastPush)
	if !r.needsLoad {
		r.queuePending()
	}

	return &r
}

// NeedsLoad reports whether the contributor set is stale and requires a full reload.
func (r *Repository) NeedsLoad() bool {
	return r.needsLoad
}

// FullyLoaded reports whether the contributor set is fresh and every last
// commit has been resolved.
func (r *Repository) FullyLoaded() bool {
	return !r.needsLoad && len(r.pending) == 0
}

// Contributors returns the contributor set in upstream listing order.
func (r *Repository) Contributors() []Contributor {
	cs := make([]Contributor, 0, len(r.order))
	for _, name := range r.order {
		cs = append(cs, *r.contributors[name])
	}

	return cs
}

// Contributor returns the contributor with given username.
func (r *Repository) Contributor(username string) (Contributor, bool) {
	c, ok := r.contributors[username]
	if !ok {
		return Contributor{}, false
	}

	return *c, true
}

// LoadContributors makes sure the contributor set is fresh.
//
// When the repository is not stale this only requeues contributors with an
// unresolved last commit. Otherwise the full contributor list is fetched and
// rebuilt: contributors whose contribution count didn't change keep their
// cached email and last commit, everyone else is queued for a last-commit
// update. The new state is persisted on success.
func (r *Repository) LoadContributors(ctx context.Context) error {
	if !r.needsLoad {
		r.queuePending()
		return nil
	}

	infos, err := r.client.ContributorsByRepo(ctx, r.URL)
	if err != nil {
		if IsQuotaExceededError(err) {
			return err
		}
		return RepositoryLoadError{Repository: r.Name, Err: err}
	}

	fresh := make(map[string]*Contributor, len(infos))
	order := make([]string, 0, len(infos))
	pending := make(map[string]struct{})
	for _, info := range infos {
		c := Contributor{
			Username:      info.Login,
			AvatarURL:     info.AvatarURL,
			Contributions: info.Contributions,
		}
		if prev, ok := r.contributors[info.Login]; ok && prev.Contributions == info.Contributions {
			c.Email = prev.Email
			c.LastCommit = prev.LastCommit
		}
		if c.LastCommit == nil {
			pending[info.Login] = struct{}{}
		}
		fresh[info.Login] = &c
		order = append(order, info.Login)
	}

	r.contributors = fresh
	r.order = order
	r.pending = pending
	r.needsLoad = false
	r.persist()

	return nil
}

// LoadLastCommits resolves last commits for queued contributors, optionally
// restricted to the usernames in only.
//
// The commit history is scanned newest first, one page at a time, and the
// iterator survives between calls so a later page request continues where the
// previous one stopped. When scanning becomes inefficient and few names
// remain, the scan is abandoned for direct per-contributor searches.
//
// The contributor set is persisted after every call, win or partial progress.
func (r *Repository) LoadLastCommits(ctx context.Context, only map[string]struct{}) error {
	if len(r.pending) == 0 {
		return nil
	}
	if only != nil && len(r.neededSet(only)) == 0 {
		return nil
	}

	defer r.persist()

	if r.commits == nil {
		r.commits = r.client.Commits(r.URL)
	}

	count := 0
	found := 1 // seeded to avoid division by zero in the ratio check

	for {
		needed := r.neededSet(only)
		if len(needed) == 0 {
			return nil
		}

		ci, ok, err := r.commits.Next(ctx)
		if err != nil {
			return errors.Wrapf(err, "loading commits for repository %s (%d contributors unresolved)", r.Name, len(needed))
		}
		if !ok {
			// History exhausted; remaining names never authored anything we can see.
			return nil
		}
		count++

		if login, commit, email, matched := r.matchCommit(ci); matched {
			c := r.contributors[login]
			c.Email = email
			c.LastCommit = &commit
			delete(r.pending, login)
			if _, ok := needed[login]; ok {
				found++
			}
		}

		if count%scanBatchSize != 0 {
			continue
		}
		needed = r.neededSet(only)
		if len(needed) == 0 {
			return nil
		}
		ratio := float64(found) / math.Ceil(float64(count)/scanBatchSize)
		if ratio < scanMinHitRatio && len(needed) <= scanFallbackLimit {
			return r.searchLastCommits(ctx, needed)
		}
	}
}

// neededSet returns the pending usernames, restricted to only when non-nil.
func (r *Repository) neededSet(only map[string]struct{}) map[string]struct{} {
	needed := make(map[string]struct{}, len(r.pending))
	for name := range r.pending {
		if only != nil {
			if _, ok := only[name]; !ok {
				continue
			}
		}
		needed[name] = struct{}{}
	}

	return needed
}

// matchCommit checks a commit against the pending set, preferring the author
// attribution over the committer one.
func (r *Repository) matchCommit(ci CommitInfo) (login string, commit Commit, email string, ok bool) {
	if ci.AuthorLogin != "" {
		if _, pending := r.pending[ci.AuthorLogin]; pending {
			return ci.AuthorLogin, Commit{Message: ci.Message, Date: ci.AuthorDate}, ci.AuthorEmail, true
		}
	}
	if ci.CommitterLogin != "" {
		if _, pending := r.pending[ci.CommitterLogin]; pending {
			return ci.CommitterLogin, Commit{Message: ci.Message, Date: ci.CommitterDate}, ci.CommitterEmail, true
		}
	}

	return "", Commit{}, "", false
}

// searchLastCommits resolves the needed usernames with one targeted query
// each, issued concurrently. The set is small, bounded by scanFallbackLimit.
func (r *Repository) searchLastCommits(ctx context.Context, needed map[string]struct{}) error {
	type result struct {
		login string
		cc    ContributorCommit
		found bool
		err   error
	}

	results := make(chan result, len(needed))
	for login := range needed {
		delete(r.pending, login)
		go func(login string) {
			cc, found, err := r.searcher.LastCommitByAuthor(ctx, login)
			results <- result{login: login, cc: cc, found: found, err: err}
		}(login)
	}

	var firstErr error
	for i := 0; i < cap(results); i++ {
		res := <-results
		if res.err != nil {
			if firstErr == nil {
				firstErr = errors.Wrapf(res.err, "searching last commit of %s for repository %s", res.login, r.Name)
			}
			continue
		}
		if !res.found {
			r.l.Warnf("repository %s: no commits found for contributor %s", r.Name, res.login)
			continue
		}

		c := r.contributors[res.login]
		c.Email = res.cc.Email
		commit := res.cc.Commit
		c.LastCommit = &commit
	}

	return firstErr
}

// queuePending adds every contributor with an unresolved last commit to the
// pending set.
func (r *Repository) queuePending() {
	for _, name := range r.order {
		if r.contributors[name].LastCommit == nil {
			r.pending[name] = struct{}{}
		}
	}
}

// persist writes the contributor set to the repository cache. The cache entry
// cost equals the number of stored contributors, so the cache budget tracks
// data volume rather than entry count.
func (r *Repository) persist() {
	rec := repoCacheRecord{
		LastPush:     r.LastPush,
		Contributors: make([]Contributor, 0, len(r.order)),
	}
	for _, name := range r.order {
		rec.Contributors = append(rec.Contributors, *r.contributors[name])
	}

	data, err := json.Marshal(rec)
	if err != nil {
		r.l.Warnf("repository %s: serializing cache record: %v", r.Name, err)
		return
	}
	r.store.Set(r.URL, data, len(rec.Contributors))
}
