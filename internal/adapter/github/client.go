package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/m-zajac/orgstats/internal/app"
)

// HTTPDoer can execute http request.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

const (
	defaultPageSize    = 100
	defaultMaxBodySize = 1024 * 1024 * 10

	acceptHeader = "application/vnd.github.v3+json, application/vnd.github.cloak-preview+json"
)

// Client talks to the github rest api and tracks the request quota reported
// by response headers. This struct is an adapter for app.GithubClient.
//
// Rate state and the request counter are shared by all concurrent repository
// workers and guarded by a single lock.
type Client struct {
	doer       HTTPDoer
	searchDoer HTTPDoer
	address    string
	authToken  string

	pageSize    int
	maxBodySize int

	mu        sync.Mutex
	remaining int
	resetAt   time.Time
	requests  int64
}

var _ app.GithubClient = &Client{}

// NewClient creates new github client.
// searchDoer is used only for the targeted commit search endpoint, which has
// a stricter quota upstream; pass the same doer if no split is needed.
// authToken is optional.
func NewClient(doer HTTPDoer, searchDoer HTTPDoer, address string, authToken string) *Client {
	if searchDoer == nil {
		searchDoer = doer
	}

	return &Client{
		doer:       doer,
		searchDoer: searchDoer,
		address:    address,
		authToken:  authToken,

		pageSize:    defaultPageSize,
		maxBodySize: defaultMaxBodySize,

		remaining: 5000,
	}
}

// RateState returns the last known request quota and its reset time.
func (c *Client) RateState() (remaining int, resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.remaining, c.resetAt
}

// Requests returns the total number of requests issued by this client.
func (c *Client) Requests() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.requests
}

// RepositoriesByOrg returns all repositories of given organization.
func (c *Client) RepositoriesByOrg(ctx context.Context, org string) ([]app.RepositoryInfo, error) {
	if org == "" {
		return nil, app.InvalidRequestError("organization name cannot be empty")
	}

	var repos []app.RepositoryInfo
	u := c.address + "/orgs/" + url.PathEscape(org) + "/repos"
	err := c.listPages(ctx, c.doer, u, nil, func(body []byte) error {
		var resp repositoriesResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("unmarshalling response: %w", err)
		}
		repos = append(repos, resp.ToRepositories()...)
		return nil
	})
	if err != nil {
		if ue, ok := err.(app.UpstreamError); ok && ue.Status == http.StatusNotFound {
			return nil, app.OrganizationNotFoundError(org)
		}
		return nil, err
	}

	return repos, nil
}

// ContributorsByRepo returns all contributors of the repository identified by its api url.
func (c *Client) ContributorsByRepo(ctx context.Context, repoURL string) ([]app.ContributorInfo, error) {
	var contribs []app.ContributorInfo
	err := c.listPages(ctx, c.doer, repoURL+"/contributors", nil, func(body []byte) error {
		var resp contributorsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("unmarshalling response: %w", err)
		}
		contribs = append(contribs, resp.ToContributors()...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return contribs, nil
}

// Commits returns a lazy iterator over the repository's commit history,
// newest first. Pages are fetched on demand; the iterator is finite and not
// restartable.
func (c *Client) Commits(repoURL string) app.CommitIter {
	return &commitPager{
		client: c,
		next:   repoURL + "/commits",
		first:  true,
	}
}

// SearchLastCommit returns the most recent commit authored by login within
// the organization. The second return value is false when no commit matched.
func (c *Client) SearchLastCommit(ctx context.Context, login string, org string) (app.ContributorCommit, bool, error) {
	v := make(url.Values)
	v.Set("q", fmt.Sprintf("author:%s org:%s", login, org))
	v.Set("sort", "author-date")
	v.Set("order", "desc")
	v.Set("per_page", "1")

	body, _, err := c.get(ctx, c.searchDoer, c.address+"/search/commits", v)
	if err != nil {
		return app.ContributorCommit{}, false, err
	}

	var resp searchCommitsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return app.ContributorCommit{}, false, fmt.Errorf("unmarshalling response: %w", err)
	}
	if len(resp.Items) == 0 {
		return app.ContributorCommit{}, false, nil
	}

	info := resp.Items[0].ToCommitInfo()
	return app.ContributorCommit{
		Email: info.AuthorEmail,
		Commit: app.Commit{
			Message: info.Message,
			Date:    info.AuthorDate,
		},
	}, true, nil
}

// listPages fetches all pages starting at rawurl, following Link rel="next"
// headers until exhausted, and passes every page body to fn.
func (c *Client) listPages(ctx context.Context, doer HTTPDoer, rawurl string, params url.Values, fn func(body []byte) error) error {
	next := rawurl
	for first := true; next != ""; first = false {
		// Only the first request needs params, continuation links carry the full query.
		p := params
		if first {
			if p == nil {
				p = make(url.Values)
			}
			p.Set("per_page", strconv.Itoa(c.pageSize))
		} else {
			p = nil
		}

		body, header, err := c.get(ctx, doer, next, p)
		if err != nil {
			return err
		}
		if err := fn(body); err != nil {
			return err
		}

		next = nextPageLink(header)
	}

	return nil
}

func (c *Client) get(ctx context.Context, doer HTTPDoer, rawurl string, params url.Values) ([]byte, http.Header, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid url: %w", err)
	}
	if params != nil {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	httpReq, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating http request: %w", err)
	}
	httpReq.Header.Set("Accept", acceptHeader)
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "token "+c.authToken)
	}

	c.countRequest()

	resp, err := doer.Do(httpReq.WithContext(ctx))
	if err != nil {
		return nil, nil, fmt.Errorf("doing http request: %w", err)
	}
	// Always drain body before close to allow connection reuse.
	// See: http://tleyden.github.io/blog/2016/11/21/tuning-the-go-http-client-library-for-load-testing/
	defer func() {
		_, _ = io.CopyN(io.Discard, resp.Body, 1024)
		resp.Body.Close()
	}()

	c.updateRateState(resp.Header)

	if resp.StatusCode >= 400 {
		return nil, nil, c.responseError(resp)
	}

	b, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxBodySize)))
	if err != nil {
		return nil, nil, fmt.Errorf("reading http response body: %w", err)
	}

	return b, resp.Header, nil
}

func (c *Client) countRequest() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests++
}

// updateRateState updates quota counters from response headers.
// Unparsable values are skipped, keeping the previous state.
func (c *Client) updateRateState(h http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := h.Get("X-RateLimit-Remaining"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			c.remaining = v
		}
	}
	if s := h.Get("X-RateLimit-Reset"); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.resetAt = time.Unix(v, 0)
		}
	}
}

// responseError maps a non-2xx response to an app error.
// A throttling status with zero remaining quota means the quota is exhausted.
func (c *Client) responseError(resp *http.Response) error {
	throttled := resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests

	c.mu.Lock()
	remaining, resetAt := c.remaining, c.resetAt
	c.mu.Unlock()

	if throttled && remaining == 0 {
		return app.QuotaExceededError{ResetAt: resetAt}
	}

	var message string
	if body, err := io.ReadAll(io.LimitReader(resp.Body, int64(c.maxBodySize))); err == nil {
		var data struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(body, &data); err == nil {
			message = data.Message
		}
	}
	if message == "" {
		message = fmt.Sprintf(
			"an unknown error occurred: api request to %s returned status %d",
			resp.Request.URL, resp.StatusCode,
		)
	}

	return app.UpstreamError{
		Status:  resp.StatusCode,
		Message: message,
	}
}

// nextPageLink extracts the rel="next" url from a Link header.
// Returns empty string when there is no next page.
func nextPageLink(h http.Header) string {
	for _, link := range strings.Split(h.Get("Link"), ",") {
		parts := strings.SplitN(strings.TrimSpace(link), ";", 2)
		if len(parts) != 2 {
			continue
		}
		if !strings.Contains(parts[1], `rel="next"`) {
			continue
		}
		return strings.Trim(strings.TrimSpace(parts[0]), "<>")
	}

	return ""
}
