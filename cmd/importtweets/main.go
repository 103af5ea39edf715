package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"papertweets"
	"papertweets/arxiv"
	"papertweets/config"
	"papertweets/db"
	"papertweets/ingest"
	"papertweets/scripts/tweet"
	"papertweets/secrets"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	dummy   int
	seed    int64
)

var rootCmd = &cobra.Command{
	Use:   "importtweets [statuses.json]",
	Short: "Ingest saved or generated tweets without calling the Twitter API",
	Long: `importtweets feeds statuses through the same ingestion as a refresh.
The input is a JSON array of v1.1 statuses, as returned by
statuses/user_timeline.json with tweet_mode=extended. With --dummy N it
generates N statuses instead, which is handy for local development.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		var statuses []papertweets.Status
		switch {
		case dummy > 0:
			statuses = tweet.NewGenerator(seed, time.Now().AddDate(0, 0, -30)).Generate(dummy)
			log.Printf("🎲 Generated %d dummy statuses", len(statuses))
		case len(args) == 1:
			var err error
			if statuses, err = readStatuses(args[0]); err != nil {
				return err
			}
		default:
			return fmt.Errorf("pass a statuses file or --dummy N")
		}
		return run(cmd.Context(), statuses)
	},
}

func init() {
	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.Flags().IntVar(&dummy, "dummy", 0, "generate this many statuses instead of reading a file")
	rootCmd.Flags().Int64Var(&seed, "seed", 1, "random seed for --dummy")
}

func readStatuses(path string) ([]papertweets.Status, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var statuses []papertweets.Status
	if err := json.NewDecoder(f).Decode(&statuses); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	log.Printf("📂 Read %d statuses from %s", len(statuses), path)
	return statuses, nil
}

func run(ctx context.Context, statuses []papertweets.Status) error {
	if err := secrets.Load(); err != nil {
		return err
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	conn, err := db.InitDB(db.Config{
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		LogLevel:     cfg.Database.LogLevel,
	})
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := conn.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("⚠️  Closing database: %v", err)
			}
		}
	}()
	if err := db.Migrate(conn); err != nil {
		return err
	}

	var fetcher ingest.PaperFetcher = arxiv.NewFetcher(arxiv.FetcherConfig{
		BaseURL:     cfg.Arxiv.BaseURL,
		MinInterval: cfg.Arxiv.MinInterval,
		Timeout:     cfg.Arxiv.Timeout,
	})
	if dummy > 0 {
		// Generated ids do not exist on arXiv.
		fetcher = placeholderFetcher{}
	}

	res, err := importStatuses(ctx, db.NewStore(conn), fetcher, statuses)
	if err != nil {
		return err
	}
	log.Printf("✅ Imported %d of %d statuses (%d failed): %d new papers, %d new tweets",
		res.Stored, len(statuses), res.Failed, res.NewPapers, res.NewTweets)
	return nil
}

type importResult struct {
	Stored, Failed       int
	NewPapers, NewTweets int64
}

// importStatuses ingests statuses in order. A status that fails to ingest is
// logged and counted; the rest are still imported.
func importStatuses(ctx context.Context, store *db.Store, fetcher ingest.PaperFetcher, statuses []papertweets.Status) (importResult, error) {
	var res importResult
	engine := ingest.NewEngine(store, fetcher, nil)

	before, err := store.Counts(ctx)
	if err != nil {
		return res, err
	}
	for i := range statuses {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		t, err := engine.Ingest(ctx, &statuses[i])
		if err != nil {
			log.Printf("❌ %v", err)
			res.Failed++
			continue
		}
		if t != nil {
			res.Stored++
		}
	}
	after, err := store.Counts(ctx)
	if err != nil {
		return res, err
	}
	res.NewPapers = after.Papers - before.Papers
	res.NewTweets = after.Tweets - before.Tweets
	return res, nil
}

type placeholderFetcher struct{}

func (placeholderFetcher) Fetch(_ context.Context, id string) (*arxiv.Metadata, error) {
	return &arxiv.Metadata{
		ID:        id,
		Title:     "Generated paper " + id,
		Summary:   "Placeholder abstract for a generated arXiv id.",
		Authors:   []string{"A. Nonymous"},
		Published: time.Now().UTC(),
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("❌ %v", err)
	}
}
