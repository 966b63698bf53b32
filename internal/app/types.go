package app

import "time"

// Commit holds a single commit attribution: the message and when it was authored.
type Commit struct {
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Contributor entity.
// Within a repository Contributions is the count reported by the api.
// At the organization level it is the sum over all repositories containing the username.
type Contributor struct {
	Username      string  `json:"username"`
	Email         string  `json:"email,omitempty"`
	AvatarURL     string  `json:"image"`
	Contributions int     `json:"contributions"`
	LastCommit    *Commit `json:"last_commit"`
}

// ContributorCommit pairs a contributor's most recent commit with the author email.
type ContributorCommit struct {
	Email  string `json:"email"`
	Commit Commit `json:"last_commit"`
}

// RepositoryInfo describes one repository from an organization listing.
// PushedAt is nil for repositories that never received a push.
type RepositoryInfo struct {
	Name     string
	URL      string
	PushedAt *time.Time
}

// ContributorInfo is one row of a repository's contributor listing.
type ContributorInfo struct {
	Login         string
	AvatarURL     string
	Contributions int
}

// CommitInfo is one commit from a repository's history listing.
// Login fields are empty when the upstream user record is missing.
type CommitInfo struct {
	AuthorLogin    string
	CommitterLogin string
	Message        string
	AuthorDate     time.Time
	CommitterDate  time.Time
	AuthorEmail    string
	CommitterEmail string
}
