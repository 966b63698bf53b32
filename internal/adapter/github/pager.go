package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/m-zajac/orgstats/internal/app"
)

// commitPager iterates a repository's commit history one page at a time.
// It implements app.CommitIter.
type commitPager struct {
	client *Client
	next   string
	first  bool
	buf    []app.CommitInfo
}

// Next returns the next commit in history order. The second return value is
// false when the history is exhausted.
func (p *commitPager) Next(ctx context.Context) (app.CommitInfo, bool, error) {
	for len(p.buf) == 0 {
		if p.next == "" {
			return app.CommitInfo{}, false, nil
		}

		var params url.Values
		if p.first {
			params = make(url.Values)
			params.Set("per_page", strconv.Itoa(p.client.pageSize))
			p.first = false
		}

		body, header, err := p.client.get(ctx, p.client.doer, p.next, params)
		if err != nil {
			return app.CommitInfo{}, false, err
		}

		var resp commitsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return app.CommitInfo{}, false, fmt.Errorf("unmarshalling response: %w", err)
		}
		p.buf = resp.ToCommits()
		p.next = nextPageLink(header)
	}

	ci := p.buf[0]
	p.buf = p.buf[1:]

	return ci, true, nil
}
