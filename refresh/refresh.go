// Package refresh pulls recent tweets for the followed accounts and feeds
// them through ingestion.
package refresh

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"papertweets"
	"papertweets/db"
	"papertweets/metrics"
	"papertweets/models"

	"golang.org/x/sync/singleflight"
)

// TweetSource is the subset of the Twitter client used by a refresh.
type TweetSource interface {
	UserTimeline(ctx context.Context, screenName string, count int) ([]papertweets.Status, error)
	Search(ctx context.Context, query string, count int) ([]papertweets.Status, error)
}

type Ingester interface {
	Ingest(ctx context.Context, status *papertweets.Status) (*models.Tweet, error)
}

type Counter interface {
	Counts(ctx context.Context) (db.Counts, error)
}

type Config struct {
	Accounts      []string
	FetchSearch   bool
	TimelineCount int
	SearchCount   int
}

// Report summarises one refresh.
type Report struct {
	NewPapers int64
	NewTweets int64
	Seen      int // statuses returned by the API
	Stored    int // statuses that linked to a paper and were stored
	Failed    int // fetches and ingests that errored
}

// Message is the text flashed to the user after a refresh.
func (r Report) Message() string {
	var msg string
	if r.NewPapers == 0 && r.NewTweets == 0 {
		msg = "No new papers or tweets were found"
	} else {
		msg = fmt.Sprintf("Added %d new %s and %d new %s",
			r.NewPapers, plural(r.NewPapers, "paper"),
			r.NewTweets, plural(r.NewTweets, "tweet"))
	}
	if r.Failed > 0 {
		msg += fmt.Sprintf(" (%d %s failed)", r.Failed, plural(int64(r.Failed), "request"))
	}
	return msg
}

func plural(n int64, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

// Refresher runs refreshes one at a time; callers arriving while a refresh
// is in progress wait for it and share its report.
type Refresher struct {
	cfg      Config
	source   TweetSource
	ingester Ingester
	counter  Counter
	metrics  *metrics.Metrics
	group    singleflight.Group

	// base bounds every shared run; Close cancels it.
	base   context.Context
	cancel context.CancelFunc
}

func New(cfg Config, source TweetSource, ingester Ingester, counter Counter, m *metrics.Metrics) *Refresher {
	if cfg.TimelineCount <= 0 {
		cfg.TimelineCount = 200
	}
	if cfg.SearchCount <= 0 {
		cfg.SearchCount = 100
	}
	cfg.Accounts = accounts(cfg.Accounts)
	base, cancel := context.WithCancel(context.Background())
	return &Refresher{
		cfg:      cfg,
		source:   source,
		ingester: ingester,
		counter:  counter,
		metrics:  m,
		base:     base,
		cancel:   cancel,
	}
}

// Run refreshes every followed account. Failed fetches and ingests are
// counted in the report and skipped.
//
// The refresh itself is not tied to ctx: a caller whose ctx ends stops
// waiting and gets ctx.Err(), while the refresh carries on for everyone else
// waiting on it. Only Close aborts a refresh in progress.
func (r *Refresher) Run(ctx context.Context) (Report, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return r.run(detached{Context: r.base, values: ctx})
	})

	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Printf("🔁 Joined a refresh that was already running")
		}
		report, _ := res.Val.(Report)
		return report, res.Err
	}
}

// Close aborts any refresh in progress; later calls to Run fail.
func (r *Refresher) Close() {
	r.cancel()
}

// detached takes deadline and cancellation from the refresher and values
// from the caller that started the refresh.
type detached struct {
	context.Context
	values context.Context
}

func (d detached) Value(key any) any {
	return d.values.Value(key)
}

func (r *Refresher) run(ctx context.Context) (Report, error) {
	var report Report
	start := time.Now()
	defer func() { r.metrics.ObserveRefresh(time.Since(start)) }()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	before, err := r.counter.Counts(ctx)
	if err != nil {
		return report, err
	}
	log.Printf("🚀 Refreshing %d accounts: %v", len(r.cfg.Accounts), r.cfg.Accounts)

	for _, account := range r.cfg.Accounts {
		statuses, err := r.source.UserTimeline(ctx, account, r.cfg.TimelineCount)
		if err := r.ingestAll(ctx, &report, statuses, err); err != nil {
			return report, err
		}

		if r.cfg.FetchSearch {
			query := fmt.Sprintf("@%s arxiv.org", account)
			statuses, err := r.source.Search(ctx, query, r.cfg.SearchCount)
			if err := r.ingestAll(ctx, &report, statuses, err); err != nil {
				return report, err
			}
		}
	}

	after, err := r.counter.Counts(ctx)
	if err != nil {
		return report, err
	}
	report.NewPapers = after.Papers - before.Papers
	report.NewTweets = after.Tweets - before.Tweets

	log.Printf("✅ Refresh done in %s: %s (seen %d, stored %d)",
		time.Since(start).Round(time.Millisecond), report.Message(), report.Seen, report.Stored)
	return report, nil
}

// ingestAll feeds statuses through ingestion in API order. fetchErr is the
// error from fetching them; it is logged and counted rather than returned.
func (r *Refresher) ingestAll(ctx context.Context, report *Report, statuses []papertweets.Status, fetchErr error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fetchErr != nil {
		log.Printf("⚠️  Fetch failed: %v", fetchErr)
		report.Failed++
		return nil
	}

	for i := range statuses {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Seen++
		tweet, err := r.ingester.Ingest(ctx, &statuses[i])
		if err != nil {
			log.Printf("❌ %v", err)
			report.Failed++
			continue
		}
		if tweet != nil {
			report.Stored++
		}
	}
	return nil
}

// Every runs a refresh each interval until ctx is done.
func (r *Refresher) Every(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Run(ctx); err != nil {
				log.Printf("⚠️  Scheduled refresh stopped: %v", err)
			}
		}
	}
}

// accounts trims "@" prefixes and drops duplicates, keeping the first
// spelling of each handle.
func accounts(in []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = strings.TrimPrefix(strings.TrimSpace(a), "@")
		key := strings.ToLower(a)
		if a == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}
