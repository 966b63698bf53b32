package app

import (
	"context"
	"sync"
)

// repoResult is one completed unit of a repository fan-out.
type repoResult struct {
	repo *Repository
	err  error
}

// forEachRepository applies fn to every repository concurrently and returns a
// channel yielding repositories in completion order, not input order. The
// channel is closed after the last repository finishes; draining it is the
// synchronization barrier for "all repositories reached this stage".
//
// At most maxWorkers operations run at once, and a single repository is only
// ever touched by one worker. Workers share no mutable state across
// repositories except the internally synchronized caches.
func forEachRepository(
	ctx context.Context,
	repos []*Repository,
	maxWorkers int,
	fn func(context.Context, *Repository) error,
) <-chan repoResult {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	results := make(chan repoResult, len(repos))
	sem := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	for _, repo := range repos {
		repo := repo
		wg.Add(1)
		go func() {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results <- repoResult{
				repo: repo,
				err:  fn(ctx, repo),
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
