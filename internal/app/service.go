package app

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// GithubClient returns organization, contributor and commit data from the
// source-control hosting api.
type GithubClient interface {
	RepositoriesByOrg(ctx context.Context, org string) ([]RepositoryInfo, error)
	ContributorsByRepo(ctx context.Context, repoURL string) ([]ContributorInfo, error)
	Commits(repoURL string) CommitIter
	SearchLastCommit(ctx context.Context, login string, org string) (ContributorCommit, bool, error)
}

// CommitIter iterates a repository's commit history, newest first.
// The second return value is false when the history is exhausted.
type CommitIter interface {
	Next(ctx context.Context) (CommitInfo, bool, error)
}

// KeyedCache is a persistent keyed cache with explicit per-entry cost.
// Implementations must be safe for concurrent use.
type KeyedCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, cost int)
	Delete(key string)
}

const defaultMaxWorkers = 32

// Service is main apps entry point. Provides all app functionality.
//
// Both caches and the daemons registry live for the whole process and are
// passed by handle into every Organization and Repository the service builds,
// so tests can inject isolated instances.
type Service struct {
	client      GithubClient
	repoCache   KeyedCache
	commitCache KeyedCache
	daemons     *Daemons
	maxWorkers  int
	l           logrus.FieldLogger
}

// NewService creates new Service instance.
// maxWorkers caps the per-repository fan-out; values below 1 select the default.
func NewService(
	client GithubClient,
	repoCache KeyedCache,
	commitCache KeyedCache,
	maxWorkers int,
	l logrus.FieldLogger,
) *Service {
	if maxWorkers < 1 {
		maxWorkers = defaultMaxWorkers
	}

	return &Service{
		client:      client,
		repoCache:   repoCache,
		commitCache: commitCache,
		daemons:     NewDaemons(),
		maxWorkers:  maxWorkers,
		l:           l,
	}
}

// Organization fetches the repository list for name and builds an
// organization view over it. With forceRefresh all cached repository data for
// the organization is discarded and any registered preloader is cancelled.
func (s *Service) Organization(ctx context.Context, name string, forceRefresh bool) (*Organization, error) {
	if name == "" {
		return nil, InvalidRequestError("organization name cannot be empty")
	}

	return newOrganization(ctx, s, name, forceRefresh)
}

func (s *Service) commitCacheKey(org string, login string) string {
	return org + "/" + login
}

// orgSearcher resolves last commits with single targeted queries, caching
// results in the organization-level commit lookup cache.
type orgSearcher struct {
	svc *Service
	org string
}

var _ LastCommitSearcher = orgSearcher{}

func (s orgSearcher) LastCommitByAuthor(ctx context.Context, login string) (ContributorCommit, bool, error) {
	key := s.svc.commitCacheKey(s.org, login)
	if data, ok := s.svc.commitCache.Get(key); ok {
		var cc ContributorCommit
		if err := json.Unmarshal(data, &cc); err == nil {
			return cc, true, nil
		}
		// Unparsable entry degrades to a cache miss.
		s.svc.commitCache.Delete(key)
	}

	cc, ok, err := s.svc.client.SearchLastCommit(ctx, login, s.org)
	if err != nil || !ok {
		return ContributorCommit{}, ok, err
	}

	if data, err := json.Marshal(cc); err == nil {
		s.svc.commitCache.Set(key, data, 1)
	}

	return cc, true, nil
}
