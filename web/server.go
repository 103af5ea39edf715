// Package web serves the paper and tweet listings and the gated refresh and
// rate-limit pages.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"papertweets"
	"papertweets/feed"
	"papertweets/models"
	"papertweets/refresh"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	flashCookie     = "flash"
	requestIDHeader = "X-Request-ID"
	deniedMessage   = "Refresh denied"
)

// Feed is the read side of the store.
type Feed interface {
	Papers(ctx context.Context, page, perPage int) (*feed.Page[*models.Paper], error)
	Tweets(ctx context.Context, page, perPage int) (*feed.Page[*models.Tweet], error)
	Paper(ctx context.Context, arxivID string) (*feed.PaperView, error)
}

type Refresher interface {
	Run(ctx context.Context) (refresh.Report, error)
}

type RateLimitSource interface {
	RateLimitStatus(ctx context.Context) (*papertweets.RateLimits, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	// Production turns on the passcode check for /refresh and /rate_limits.
	Production    bool
	RefreshSecret string
	PerPage       int
	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

type Server struct {
	opts      Options
	feed      Feed
	refresher Refresher
	rates     RateLimitSource
	pinger    Pinger
	router    *gin.Engine
}

func NewServer(opts Options, f Feed, r Refresher, rates RateLimitSource, p Pinger) (*Server, error) {
	if opts.PerPage < 1 {
		opts.PerPage = feed.DefaultPerPage
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{opts: opts, feed: f, refresher: r, rates: rates, pinger: p}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), requestID())
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.showPapers)
	router.GET("/papers/:page", s.showPapers)
	router.GET("/tweets", s.showTweets)
	router.GET("/tweets/:page", s.showTweets)
	router.GET("/abs/:arxiv_id", s.showPaper)

	gated := router.Group("", s.gate())
	gated.GET("/refresh", s.refresh)
	gated.GET("/refresh/:passcode", s.refresh)
	gated.GET("/rate_limits", s.showRateLimits)
	gated.GET("/rate_limits/:passcode", s.showRateLimits)

	router.GET("/healthz", s.healthz)
	if opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	router.NoRoute(func(c *gin.Context) {
		s.render(c, http.StatusNotFound, "error.html", gin.H{"Title": "Not found", "Message": "Nothing lives here."})
	})

	s.router = router
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// gate lets every request through outside production. In production the
// :passcode segment must match the refresh secret; an empty secret matches
// nothing. Denied requests are sent home with a flash.
func (s *Server) gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.opts.Production {
			c.Next()
			return
		}
		secret := []byte(s.opts.RefreshSecret)
		passcode := []byte(c.Param("passcode"))
		if len(secret) == 0 || subtle.ConstantTimeCompare(secret, passcode) != 1 {
			setFlash(c, deniedMessage)
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func setFlash(c *gin.Context, msg string) {
	c.SetCookie(flashCookie, msg, 60, "/", "", false, true)
}

// popFlash returns the pending flash message, if any, and clears it.
func popFlash(c *gin.Context) string {
	msg, err := c.Cookie(flashCookie)
	if err != nil || msg == "" {
		return ""
	}
	c.SetCookie(flashCookie, "", -1, "/", "", false, true)
	return msg
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format("2 Jan 2006")
	},
	"unix": func(sec int64) string {
		return time.Unix(sec, 0).UTC().Format(time.RFC1123)
	},
	"pageURL": pageURL,
}

// pageURL links to a listing page; page one of papers is the index.
func pageURL(listing string, page int) string {
	switch {
	case listing == "papers" && page <= 1:
		return "/"
	case page <= 1:
		return "/" + listing
	default:
		return fmt.Sprintf("/%s/%d", listing, page)
	}
}
