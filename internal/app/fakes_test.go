package app

import (
	"context"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
)

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

// fakeClient implements GithubClient for tests.
type fakeClient struct {
	mu sync.Mutex

	repositories    []RepositoryInfo
	repositoriesErr error

	contributors     map[string][]ContributorInfo
	contributorsErr  map[string]error
	contributorCalls map[string]int

	commits map[string][]CommitInfo

	searchFunc  func(login string, org string) (ContributorCommit, bool, error)
	searchCalls []string
}

func (c *fakeClient) RepositoriesByOrg(ctx context.Context, org string) ([]RepositoryInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.repositoriesErr != nil {
		return nil, c.repositoriesErr
	}
	return c.repositories, nil
}

func (c *fakeClient) ContributorsByRepo(ctx context.Context, repoURL string) ([]ContributorInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.contributorCalls == nil {
		c.contributorCalls = make(map[string]int)
	}
	c.contributorCalls[repoURL]++
	if err := c.contributorsErr[repoURL]; err != nil {
		return nil, err
	}
	return c.contributors[repoURL], nil
}

func (c *fakeClient) Commits(repoURL string) CommitIter {
	c.mu.Lock()
	defer c.mu.Unlock()

	return &fakeCommitIter{commits: c.commits[repoURL]}
}

func (c *fakeClient) SearchLastCommit(ctx context.Context, login string, org string) (ContributorCommit, bool, error) {
	c.mu.Lock()
	c.searchCalls = append(c.searchCalls, org+"/"+login)
	fn := c.searchFunc
	c.mu.Unlock()

	if fn == nil {
		return ContributorCommit{}, false, nil
	}
	return fn(login, org)
}

func (c *fakeClient) contributorCallCount(repoURL string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.contributorCalls[repoURL]
}

func (c *fakeClient) searchCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.searchCalls)
}

// fakeCommitIter implements CommitIter over a fixed commit list.
// When err is set, it is returned once position errAt is reached.
type fakeCommitIter struct {
	commits []CommitInfo
	err     error
	errAt   int
	pos     int
}

func (it *fakeCommitIter) Next(ctx context.Context) (CommitInfo, bool, error) {
	if it.err != nil && it.pos >= it.errAt {
		return CommitInfo{}, false, it.err
	}
	if it.pos >= len(it.commits) {
		return CommitInfo{}, false, nil
	}
	ci := it.commits[it.pos]
	it.pos++

	return ci, true, nil
}

// fakeCache implements KeyedCache in memory.
type fakeCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	costs   map[string]int
	sets    []string
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		data:  make(map[string][]byte),
		costs: make(map[string]int),
	}
}

func (c *fakeCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(key string, value []byte, cost int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = value
	c.costs[key] = cost
	c.sets = append(c.sets, key)
}

func (c *fakeCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.data, key)
	c.deletes = append(c.deletes, key)
}

func (c *fakeCache) setCount(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, k := range c.sets {
		if k == key {
			n++
		}
	}
	return n
}

func (c *fakeCache) deleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range c.deletes {
		if k == key {
			return true
		}
	}
	return false
}

// fakeSearcher implements LastCommitSearcher with fixed results.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string]ContributorCommit
	err     error
	calls   []string
}

func (s *fakeSearcher) LastCommitByAuthor(ctx context.Context, login string) (ContributorCommit, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, login)
	if s.err != nil {
		return ContributorCommit{}, false, s.err
	}
	cc, ok := s.results[login]
	return cc, ok, nil
}

func (s *fakeSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}
