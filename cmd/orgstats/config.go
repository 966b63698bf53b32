package main

import "time"

// Config is the container for app configuration
type Config struct {
	// HTTPServerAddress - listen address for http server
	HTTPServerAddress string `default:"0.0.0.0:8080"`

	// HTTPProfileServerAddress - listen address for profiler http server. If empty, profiler server is disabled
	HTTPProfileServerAddress string `default:""`

	// RequestTimeout - timeout for handling a single http request
	RequestTimeout time.Duration `default:"60s"`

	// RequestsPerMinute - inbound request limit per client ip, 0 disables limiting
	RequestsPerMinute int `default:"120"`

	// GithubAPIAddress - address for rest api with protocol
	GithubAPIAddress string `default:"https://api.github.com"`

	// GithubAPIToken - auth token for rest github api (optional, rate limit is lower without this token)
	GithubAPIToken string `default:""`

	// GithubAPIRateLimit - max frequency for github rest api calls
	GithubAPIRateLimit float64 `default:"5"`

	// GithubSearchRateLimit - max frequency for github commit search calls (stricter quota upstream)
	GithubSearchRateLimit float64 `default:"0.5"`

	// GithubTimeout - timeout for github api calls
	GithubTimeout time.Duration `default:"30s"`

	// DBPath - filepath for bolt db data backing the persistent caches
	DBPath string `default:"./orgstats.data"`

	// RepoCacheMaxSize - repository cache budget, counted in stored contributors
	RepoCacheMaxSize int `default:"10000"`

	// CommitCacheMaxSize - maximum number of cached targeted commit lookups
	CommitCacheMaxSize int `default:"100000"`

	// ResponseCacheSize - maximum number of cached rendered responses
	ResponseCacheSize int `default:"10000"`

	// ResponseCacheTTL - maximum lifetime for cached rendered responses
	ResponseCacheTTL time.Duration `default:"1h"`

	// MaxRepositoryWorkers - upper cap for concurrent per-repository loads
	MaxRepositoryWorkers int `default:"32"`
}
