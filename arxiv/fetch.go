package arxiv

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

const DefaultBaseURL = "http://export.arxiv.org"

// ErrPaperNotFound is returned when the API has no entry for an id.
var ErrPaperNotFound = errors.New("arxiv: paper not found")

// Metadata is the subset of an arXiv entry stored for a paper.
type Metadata struct {
	ID        string
	Title     string
	Summary   string
	Authors   []string
	Published time.Time
}

type FetcherConfig struct {
	BaseURL     string
	MinInterval time.Duration
	Timeout     time.Duration
	UserAgent   string
}

// Fetcher looks papers up on the arXiv export API. Requests are spaced by
// MinInterval; arXiv asks clients to keep to one request every three seconds.
type Fetcher struct {
	parser  *gofeed.Parser
	baseURL string
	limiter *rate.Limiter
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "papertweets/1.0"
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	fp := gofeed.NewParser()
	fp.Client = &http.Client{Timeout: cfg.Timeout}
	fp.UserAgent = cfg.UserAgent

	return &Fetcher{
		parser:  fp,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Fetch retrieves title, abstract, authors and publication date for id.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Metadata, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"id_list":     {id},
		"max_results": {"10"},
	}
	feed, err := f.parser.ParseURLWithContext(f.baseURL+"/api/query?"+query.Encode(), ctx)
	if err != nil {
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			return nil, fmt.Errorf("arxiv query %s: http %d %s", id, httpErr.StatusCode, httpErr.Status)
		}
		return nil, fmt.Errorf("arxiv query %s: %w", id, err)
	}

	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrPaperNotFound, id)
	}
	entry := feed.Items[0]
	// Malformed ids come back as a single entry describing the error.
	if strings.Contains(entry.GUID, "/api/errors") || strings.TrimSpace(entry.Title) == "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrPaperNotFound, id, collapse(entry.Description))
	}

	md := &Metadata{
		ID:      id,
		Title:   collapse(entry.Title),
		Summary: collapse(entry.Description),
	}
	for _, a := range entry.Authors {
		if a == nil || strings.TrimSpace(a.Name) == "" {
			continue
		}
		md.Authors = append(md.Authors, strings.TrimSpace(a.Name))
	}
	if entry.PublishedParsed != nil {
		md.Published = entry.PublishedParsed.UTC()
	}

	log.Printf("📄 Fetched arXiv metadata for %s: %q", id, md.Title)
	return md, nil
}

// collapse folds the hard line breaks arXiv puts in titles and abstracts.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
