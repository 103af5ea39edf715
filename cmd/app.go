package main

import (
	"fmt"
	"log"

	"papertweets"
	"papertweets/arxiv"
	"papertweets/config"
	"papertweets/db"
	"papertweets/ingest"
	"papertweets/metrics"
	"papertweets/refresh"
	"papertweets/secrets"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg       *config.Config
	db        *gorm.DB
	store     *db.Store
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	twitter   *papertweets.Client
	engine    *ingest.Engine
	refresher *refresh.Refresher
}

// newApp loads config, opens and migrates the database and builds the
// ingestion pipeline. The Twitter client is only built when withTwitter is
// set, so commands that never call the API run without credentials.
func newApp(withTwitter bool) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	conn, err := db.InitDB(db.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		LogLevel:     cfg.Database.LogLevel,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(conn); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, db: conn, store: db.NewStore(conn), registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	fetcher := arxiv.NewFetcher(arxiv.FetcherConfig{
		BaseURL:     cfg.Arxiv.BaseURL,
		MinInterval: cfg.Arxiv.MinInterval,
		Timeout:     cfg.Arxiv.Timeout,
	})
	a.engine = ingest.NewEngine(a.store, fetcher, a.metrics)

	if withTwitter {
		if err := a.connectTwitter(); err != nil {
			a.close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) connectTwitter() error {
	t := a.cfg.Twitter
	if !a.cfg.HasTwitterCredentials() {
		return fmt.Errorf("%w: set twitter.bearer_token or twitter.consumer_key and twitter.consumer_secret", config.ErrInvalid)
	}
	if t.BearerToken != "" {
		log.Printf("🐦 Using bearer token %s", secrets.Mask(t.BearerToken))
	} else {
		log.Printf("🐦 Using consumer key %s", secrets.Mask(t.ConsumerKey))
	}

	client, err := papertweets.NewClient(papertweets.ClientConfig{
		BaseURL:        t.BaseURL,
		BearerToken:    t.BearerToken,
		ConsumerKey:    t.ConsumerKey,
		ConsumerSecret: t.ConsumerSecret,
		MinInterval:    t.MinInterval,
		MaxRetries:     t.MaxRetries,
		Timeout:        t.Timeout,
	})
	if err != nil {
		return err
	}
	a.twitter = client
	a.refresher = refresh.New(refresh.Config{
		Accounts:      a.cfg.ToFollow,
		FetchSearch:   a.cfg.FetchSearch,
		TimelineCount: t.TimelineCount,
		SearchCount:   t.SearchCount,
	}, client, a.engine, a.store, a.metrics)
	return nil
}

func (a *app) close() {
	if a.refresher != nil {
		a.refresher.Close()
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Printf("⚠️  Closing database: %v", err)
	}
}
