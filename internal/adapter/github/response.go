package github

import (
	"time"

	"github.com/m-zajac/orgstats/internal/app"
)

type repositoriesResponse []repositoryResponseItem

type repositoryResponseItem struct {
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	PushedAt *time.Time `json:"pushed_at"`
}

func (r repositoriesResponse) ToRepositories() []app.RepositoryInfo {
	rs := make([]app.RepositoryInfo, 0, len(r))
	for _, i := range r {
		rs = append(rs, app.RepositoryInfo{
			Name:     i.Name,
			URL:      i.URL,
			PushedAt: i.PushedAt,
		})
	}

	return rs
}

type contributorsResponse []contributorResponseItem

type contributorResponseItem struct {
	Login         string `json:"login"`
	AvatarURL     string `json:"avatar_url"`
	Contributions int    `json:"contributions"`
}

func (r contributorsResponse) ToContributors() []app.ContributorInfo {
	cs := make([]app.ContributorInfo, 0, len(r))
	for _, i := range r {
		cs = append(cs, app.ContributorInfo{
			Login:         i.Login,
			AvatarURL:     i.AvatarURL,
			Contributions: i.Contributions,
		})
	}

	return cs
}

type commitsResponse []commitResponseItem

type commitResponseItem struct {
	Author    *commitResponseUser `json:"author"`
	Committer *commitResponseUser `json:"committer"`
	Commit    struct {
		Message   string               `json:"message"`
		Author    commitResponsePerson `json:"author"`
		Committer commitResponsePerson `json:"committer"`
	} `json:"commit"`
}

type commitResponseUser struct {
	Login string `json:"login"`
}

type commitResponsePerson struct {
	Date  time.Time `json:"date"`
	Email string    `json:"email"`
}

func (i commitResponseItem) ToCommitInfo() app.CommitInfo {
	ci := app.CommitInfo{
		Message:        i.Commit.Message,
		AuthorDate:     i.Commit.Author.Date,
		CommitterDate:  i.Commit.Committer.Date,
		AuthorEmail:    i.Commit.Author.Email,
		CommitterEmail: i.Commit.Committer.Email,
	}
	if i.Author != nil {
		ci.AuthorLogin = i.Author.Login
	}
	if i.Committer != nil {
		ci.CommitterLogin = i.Committer.Login
	}

	return ci
}

func (r commitsResponse) ToCommits() []app.CommitInfo {
	cs := make([]app.CommitInfo, 0, len(r))
	for _, i := range r {
		cs = append(cs, i.ToCommitInfo())
	}

	return cs
}

type searchCommitsResponse struct {
	Items commitsResponse `json:"items"`
}
