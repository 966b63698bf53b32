package main

import (
	netHttp "net/http"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/m-zajac/orgstats/internal/adapter/github"
	"github.com/m-zajac/orgstats/internal/api/http"
	"github.com/m-zajac/orgstats/internal/app"
	"github.com/m-zajac/orgstats/internal/cache"
	"github.com/m-zajac/orgstats/internal/database"
	"github.com/m-zajac/orgstats/internal/limiter"
)

func main() {
	l := logrus.New()
	l.Level = logrus.InfoLevel

	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		l.Fatalf("couldn't parse config: %v", err)
	}

	httpClient := &netHttp.Client{
		Timeout: conf.GithubTimeout,
	}
	limitedHTTPClient := limiter.NewHTTPDoer(
		httpClient,
		conf.GithubAPIRateLimit,
	)
	limitedSearchHTTPClient := limiter.NewHTTPDoer(
		httpClient,
		conf.GithubSearchRateLimit,
	)

	db, err := database.NewBolt(conf.DBPath)
	if err != nil {
		l.Fatalf("couldn't open bolt database: %v", err)
	}
	defer db.Close()

	repoKV, err := db.Bucket("repositories")
	if err != nil {
		l.Fatalf("couldn't create repository cache bucket: %v", err)
	}
	commitKV, err := db.Bucket("commits")
	if err != nil {
		l.Fatalf("couldn't create commit cache bucket: %v", err)
	}

	repoCache, err := cache.NewStore(repoKV, conf.RepoCacheMaxSize, l.WithField("component", "repoCache"))
	if err != nil {
		l.Fatalf("couldn't create repository cache: %v", err)
	}
	commitCache, err := cache.NewStore(commitKV, conf.CommitCacheMaxSize, l.WithField("component", "commitCache"))
	if err != nil {
		l.Fatalf("couldn't create commit lookup cache: %v", err)
	}

	githubClient := github.NewClient(
		limitedHTTPClient,
		limitedSearchHTTPClient,
		conf.GithubAPIAddress,
		conf.GithubAPIToken,
	)

	service := app.NewService(
		githubClient,
		repoCache,
		commitCache,
		conf.MaxRepositoryWorkers,
		l.WithField("component", "service"),
	)

	respCache, err := http.NewResponseCache(conf.ResponseCacheSize, conf.ResponseCacheTTL)
	if err != nil {
		l.Fatalf("couldn't create response cache: %v", err)
	}

	mux := http.NewMux(
		http.NewAppService(service),
		respCache,
		conf.RequestTimeout,
		conf.RequestsPerMinute,
		l.WithField("component", "mux"),
	)
	server := http.NewServer(
		conf.HTTPServerAddress,
		conf.HTTPProfileServerAddress,
		mux,
		l.WithField("component", "httpServer"),
	)

	server.Run()
}
