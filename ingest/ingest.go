// Package ingest reconciles tweets that link to arXiv papers with the
// database: authors, tweets, papers and the retweet and paper associations.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"papertweets"
	"papertweets/arxiv"
	"papertweets/db"
	"papertweets/metrics"
	"papertweets/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxRetweetDepth bounds how far an original-tweet chain is followed.
const maxRetweetDepth = 8

// ErrScreenNameTaken is returned when a new user id arrives with a handle
// that is already stored for another author, typically a renamed or recycled
// account. Stored authors are never renamed, so the tweet is rejected.
var ErrScreenNameTaken = errors.New("screen name already belongs to another author")

// PaperFetcher supplies metadata for papers seen for the first time.
type PaperFetcher interface {
	Fetch(ctx context.Context, id string) (*arxiv.Metadata, error)
}

type Engine struct {
	store   *db.Store
	fetcher PaperFetcher
	metrics *metrics.Metrics
}

func NewEngine(store *db.Store, fetcher PaperFetcher, m *metrics.Metrics) *Engine {
	return &Engine{store: store, fetcher: fetcher, metrics: m}
}

// Ingest stores status if it links to at least one arXiv paper and returns
// the stored tweet. Statuses without a paper link are discarded: the result
// is nil and nothing is written. All writes for one call, including a
// retweet's original, commit together; any failure, such as an unreachable
// metadata service, rolls the whole call back.
func (e *Engine) Ingest(ctx context.Context, status *papertweets.Status) (*models.Tweet, error) {
	ids := PaperIDs(status)
	if len(ids) == 0 {
		e.metrics.Ingested(metrics.ResultDiscarded)
		return nil, nil
	}

	var tweet *models.Tweet
	err := e.store.Transaction(ctx, func(tx *gorm.DB) error {
		var err error
		tweet, err = e.ingest(ctx, tx, status, ids, make(map[int64]bool), 0)
		return err
	})
	if err != nil {
		e.metrics.Ingested(metrics.ResultFailed)
		return nil, fmt.Errorf("ingest tweet %d: %w", status.ID, err)
	}

	e.metrics.Ingested(metrics.ResultStored)
	return tweet, nil
}

// PaperIDs returns the distinct arXiv ids linked from the status's URL
// entities, in order of first appearance.
func PaperIDs(status *papertweets.Status) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, u := range status.ExpandedURLs() {
		id, ok := arxiv.ExtractID(u)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) ingest(ctx context.Context, tx *gorm.DB, status *papertweets.Status, ids []string, visited map[int64]bool, depth int) (*models.Tweet, error) {
	visited[status.ID] = true

	original, err := e.resolveOriginal(ctx, tx, status, ids, visited, depth)
	if err != nil {
		return nil, err
	}

	author, _, err := db.Upsert(tx, "id", status.User.ID, func(a *models.Author) error {
		profile, err := status.User.Profile()
		if err != nil {
			return fmt.Errorf("encode profile for user %d: %w", status.User.ID, err)
		}
		screenName := strings.ToLower(status.User.ScreenName)
		var holder models.Author
		result := tx.Limit(1).Find(&holder, "screen_name = ?", screenName)
		if result.Error != nil {
			return fmt.Errorf("lookup author @%s: %w", screenName, result.Error)
		}
		if result.RowsAffected > 0 {
			return fmt.Errorf("@%s for user %d: %w (user %d)", screenName, status.User.ID, ErrScreenNameTaken, holder.ID)
		}
		a.ID = status.User.ID
		a.ScreenName = screenName
		a.Profile = datatypes.JSON(profile)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tweet, created, err := db.Upsert(tx, "id", status.ID, func(t *models.Tweet) error {
		payload, err := status.Payload()
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		t.ID = status.ID
		t.Payload = datatypes.JSON(payload)
		t.IsRetweet = original != nil
		t.AuthorID = author.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	tweet.Author = author
	if created {
		log.Printf("💾 Stored tweet %d by @%s (retweet: %t)", tweet.ID, author.ScreenName, tweet.IsRetweet)
	}

	for _, id := range ids {
		paper, err := e.upsertPaper(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if _, err := db.AttachPaper(tx, paper.ID, tweet.ID); err != nil {
			return nil, err
		}
	}

	if original != nil {
		if _, err := db.AttachRetweeter(tx, original.ID, author.ID); err != nil {
			return nil, err
		}
	}
	return tweet, nil
}

// resolveOriginal returns the stored original of a retweet, ingesting it
// first when it is not stored yet. An original without paper links of its
// own is stored under the retweet's ids. It returns nil for plain tweets and
// for chains that loop or run too deep; those are stored as plain tweets.
func (e *Engine) resolveOriginal(ctx context.Context, tx *gorm.DB, status *papertweets.Status, ids []string, visited map[int64]bool, depth int) (*models.Tweet, error) {
	orig := status.RetweetedStatus
	if orig == nil {
		return nil, nil
	}
	if visited[orig.ID] || depth >= maxRetweetDepth {
		log.Printf("⚠️  Not following retweet chain %d -> %d (depth %d)", status.ID, orig.ID, depth)
		return nil, nil
	}

	var stored models.Tweet
	result := tx.Limit(1).Find(&stored, "id = ?", orig.ID)
	if result.Error != nil {
		return nil, fmt.Errorf("lookup original tweet %d: %w", orig.ID, result.Error)
	}
	if result.RowsAffected > 0 {
		return &stored, nil
	}

	origIDs := PaperIDs(orig)
	if len(origIDs) == 0 {
		origIDs = ids
	}
	return e.ingest(ctx, tx, orig, origIDs, visited, depth+1)
}

func (e *Engine) upsertPaper(ctx context.Context, tx *gorm.DB, arxivID string) (*models.Paper, error) {
	paper, created, err := db.Upsert(tx, "arxiv_id", arxivID, func(p *models.Paper) error {
		md, err := e.fetcher.Fetch(ctx, arxivID)
		if err != nil {
			return fmt.Errorf("fetch metadata for %s: %w", arxivID, err)
		}
		p.ArxivID = arxivID
		p.Title = md.Title
		p.Summary = md.Summary
		p.Authors = strings.Join(md.Authors, ", ")
		p.Published = md.Published
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		e.metrics.PaperFetched()
		log.Printf("📄 Added paper %s: %q", paper.ArxivID, paper.Title)
	}
	return paper, nil
}
