package github

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m-zajac/orgstats/internal/app"
	"github.com/m-zajac/orgstats/internal/mock"
)

const testAddress = "https://api.example.com"

func linkHeader(next string) http.Header {
	h := http.Header{}
	h.Set("Link", `<`+next+`>; rel="next", <`+testAddress+`/ignored?page=9>; rel="last"`)
	return h
}

func TestClientRepositoriesByOrg(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Bodies: [][]byte{
			[]byte(`[
				{"name": "r1", "url": "https://api.example.com/repos/acme/r1", "pushed_at": "2024-01-10T00:00:00Z"},
				{"name": "r2", "url": "https://api.example.com/repos/acme/r2", "pushed_at": null}
			]`),
			[]byte(`[
				{"name": "r3", "url": "https://api.example.com/repos/acme/r3", "pushed_at": "2024-01-12T00:00:00Z"}
			]`),
		},
		Headers: []http.Header{
			linkHeader(testAddress + "/orgs/acme/repos?page=2"),
			{},
		},
	}
	c := NewClient(doer, nil, testAddress, "secret-token")

	repos, err := c.RepositoriesByOrg(context.Background(), "acme")
	require.NoError(t, err)

	require.Len(t, repos, 3)
	assert.Equal(t, "r1", repos[0].Name)
	require.NotNil(t, repos[0].PushedAt)
	assert.True(t, repos[0].PushedAt.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, repos[1].PushedAt)
	assert.Equal(t, "r3", repos[2].Name)

	require.Len(t, doer.Requests, 2)
	first := doer.Requests[0]
	assert.Equal(t, "/orgs/acme/repos", first.URL.Path)
	assert.Equal(t, "100", first.URL.Query().Get("per_page"))
	assert.Equal(t, acceptHeader, first.Header.Get("Accept"))
	assert.Equal(t, "token secret-token", first.Header.Get("Authorization"))

	// The continuation request follows the Link header as-is.
	assert.Equal(t, "2", doer.Requests[1].URL.Query().Get("page"))
	assert.Empty(t, doer.Requests[1].URL.Query().Get("per_page"))

	assert.Equal(t, int64(2), c.Requests())
}

func TestClientRepositoriesByOrgEmptyName(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{}
	c := NewClient(doer, nil, testAddress, "")

	_, err := c.RepositoriesByOrg(context.Background(), "")
	require.Error(t, err)
	assert.True(t, app.IsInvalidRequestError(err))
	assert.Empty(t, doer.Requests)
}

func TestClientRepositoriesByOrgNotFound(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Statuses: []int{http.StatusNotFound},
		Bodies:   [][]byte{[]byte(`{"message": "Not Found"}`)},
	}
	c := NewClient(doer, nil, testAddress, "")

	_, err := c.RepositoriesByOrg(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, app.IsOrganizationNotFoundError(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestClientContributorsByRepo(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Bodies: [][]byte{[]byte(`[
			{"login": "alice", "avatar_url": "alice.png", "contributions": 5},
			{"login": "bob", "avatar_url": "bob.png", "contributions": 3}
		]`)},
	}
	c := NewClient(doer, nil, testAddress, "")

	contribs, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
	require.NoError(t, err)

	require.Len(t, contribs, 2)
	assert.Equal(t, app.ContributorInfo{Login: "alice", AvatarURL: "alice.png", Contributions: 5}, contribs[0])
	assert.Equal(t, app.ContributorInfo{Login: "bob", AvatarURL: "bob.png", Contributions: 3}, contribs[1])

	require.Len(t, doer.Requests, 1)
	assert.Equal(t, "/repos/acme/r1/contributors", doer.Requests[0].URL.Path)
}

func TestClientRateState(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "42")
	h.Set("X-RateLimit-Reset", "2000000000")

	doer := &mock.HTTPDoer{
		Bodies:  [][]byte{[]byte(`[]`)},
		Headers: []http.Header{h},
	}
	c := NewClient(doer, nil, testAddress, "")

	remaining, resetAt := c.RateState()
	assert.Equal(t, 5000, remaining)
	assert.True(t, resetAt.IsZero())

	_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
	require.NoError(t, err)

	remaining, resetAt = c.RateState()
	assert.Equal(t, 42, remaining)
	assert.True(t, resetAt.Equal(time.Unix(2000000000, 0)))
}

func TestClientRateStateKeepsUnparsableValues(t *testing.T) {
	t.Parallel()

	h := http.Header{}
	h.Set("X-RateLimit-Remaining", "not-a-number")

	doer := &mock.HTTPDoer{
		Bodies:  [][]byte{[]byte(`[]`)},
		Headers: []http.Header{h},
	}
	c := NewClient(doer, nil, testAddress, "")

	_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
	require.NoError(t, err)

	remaining, _ := c.RateState()
	assert.Equal(t, 5000, remaining)
}

func TestClientQuotaExceeded(t *testing.T) {
	t.Parallel()

	reset := time.Unix(2000000000, 0)

	tests := []struct {
		name      string
		status    int
		remaining string
		wantQuota bool
	}{
		{name: "forbidden with exhausted quota", status: http.StatusForbidden, remaining: "0", wantQuota: true},
		{name: "too many requests with exhausted quota", status: http.StatusTooManyRequests, remaining: "0", wantQuota: true},
		{name: "forbidden with quota left", status: http.StatusForbidden, remaining: "10", wantQuota: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			h.Set("X-RateLimit-Remaining", tt.remaining)
			h.Set("X-RateLimit-Reset", "2000000000")

			doer := &mock.HTTPDoer{
				Statuses: []int{tt.status},
				Bodies:   [][]byte{[]byte(`{"message": "API rate limit exceeded"}`)},
				Headers:  []http.Header{h},
			}
			c := NewClient(doer, nil, testAddress, "")

			_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
			require.Error(t, err)

			if tt.wantQuota {
				require.True(t, app.IsQuotaExceededError(err))
				var qe app.QuotaExceededError
				require.ErrorAs(t, err, &qe)
				assert.True(t, qe.ResetAt.Equal(reset))
			} else {
				require.True(t, app.IsUpstreamError(err))
				assert.False(t, app.IsQuotaExceededError(err))
				assert.Equal(t, tt.status, app.ErrorStatusCode(err))
			}
		})
	}
}

func TestClientUpstreamErrorMessage(t *testing.T) {
	t.Parallel()

	t.Run("message from response body", func(t *testing.T) {
		t.Parallel()

		doer := &mock.HTTPDoer{
			Statuses: []int{http.StatusBadGateway},
			Bodies:   [][]byte{[]byte(`{"message": "upstream exploded"}`)},
		}
		c := NewClient(doer, nil, testAddress, "")

		_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
		require.Error(t, err)
		require.True(t, app.IsUpstreamError(err))
		assert.Contains(t, err.Error(), "upstream exploded")
		assert.Equal(t, http.StatusBadGateway, app.ErrorStatusCode(err))
	})

	t.Run("synthesized message", func(t *testing.T) {
		t.Parallel()

		doer := &mock.HTTPDoer{
			Statuses: []int{http.StatusInternalServerError},
		}
		c := NewClient(doer, nil, testAddress, "")

		_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
		require.Error(t, err)
		require.True(t, app.IsUpstreamError(err))
		assert.Contains(t, err.Error(), "500")
	})
}

func TestClientRequestCounterIncludesFailures(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{
		Statuses: []int{http.StatusInternalServerError},
	}
	c := NewClient(doer, nil, testAddress, "")

	_, err := c.ContributorsByRepo(context.Background(), testAddress+"/repos/acme/r1")
	require.Error(t, err)
	assert.Equal(t, int64(1), c.Requests())
}

func TestClientSearchLastCommit(t *testing.T) {
	t.Parallel()

	doer := &mock.HTTPDoer{}
	searchDoer := &mock.HTTPDoer{
		Bodies: [][]byte{[]byte(`{
			"total_count": 1,
			"items": [{
				"author": {"login": "alice"},
				"commit": {
					"message": "fix all the things",
					"author": {"date": "2024-02-01T12:00:00Z", "email": "alice@acme.test"},
					"committer": {"date": "2024-02-01T13:00:00Z", "email": "bot@acme.test"}
				}
			}]
		}`)},
	}
	c := NewClient(doer, searchDoer, testAddress, "")

	cc, found, err := c.SearchLastCommit(context.Background(), "alice", "acme")
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "alice@acme.test", cc.Email)
	assert.Equal(t, "fix all the things", cc.Commit.Message)
	assert.True(t, cc.Commit.Date.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))

	// The dedicated search doer carries the query, the regular one stays idle.
	assert.Empty(t, doer.Requests)
	require.Len(t, searchDoer.Requests, 1)
	q := searchDoer.Requests[0].URL.Query()
	assert.Equal(t, "/search/commits", searchDoer.Requests[0].URL.Path)
	assert.Equal(t, "author:alice org:acme", q.Get("q"))
	assert.Equal(t, "author-date", q.Get("sort"))
	assert.Equal(t, "desc", q.Get("order"))
	assert.Equal(t, "1", q.Get("per_page"))
}

func TestClientSearchLastCommitNoMatch(t *testing.T) {
	t.Parallel()

	searchDoer := &mock.HTTPDoer{
		Bodies: [][]byte{[]byte(`{"total_count": 0, "items": []}`)},
	}
	c := NewClient(&mock.HTTPDoer{}, searchDoer, testAddress, "")

	_, found, err := c.SearchLastCommit(context.Background(), "ghost", "acme")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNextPageLink(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		link string
		want string
	}{
		{
			name: "next and last",
			link: `<https://api.example.com/x?page=2>; rel="next", <https://api.example.com/x?page=5>; rel="last"`,
			want: "https://api.example.com/x?page=2",
		},
		{
			name: "only prev",
			link: `<https://api.example.com/x?page=1>; rel="prev"`,
			want: "",
		},
		{
			name: "empty header",
			link: "",
			want: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := http.Header{}
			if tt.link != "" {
				h.Set("Link", tt.link)
			}
			assert.Equal(t, tt.want, nextPageLink(h))
		})
	}
}
