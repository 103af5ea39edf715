package web

import (
	"log"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
)

// pageParam parses the optional :page segment. ok is false for anything
// that is not a positive integer.
func pageParam(c *gin.Context) (int, bool) {
	raw := c.Param("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 0, false
	}
	return page, true
}

func (s *Server) render(c *gin.Context, status int, name string, data gin.H) {
	data["Flash"] = popFlash(c)
	c.HTML(status, name, data)
}

func (s *Server) notFound(c *gin.Context) {
	s.render(c, http.StatusNotFound, "error.html", gin.H{"Title": "Not found", "Message": "No such page."})
}

func (s *Server) serverError(c *gin.Context, err error) {
	log.Printf("❌ %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	s.render(c, http.StatusInternalServerError, "error.html", gin.H{"Title": "Error", "Message": "Something went wrong."})
}

func (s *Server) showPapers(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		s.notFound(c)
		return
	}
	papers, err := s.feed.Papers(c.Request.Context(), page, s.opts.PerPage)
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.render(c, http.StatusOK, "papers.html", gin.H{"Title": "Papers", "Papers": papers})
}

func (s *Server) showTweets(c *gin.Context) {
	page, ok := pageParam(c)
	if !ok {
		s.notFound(c)
		return
	}
	tweets, err := s.feed.Tweets(c.Request.Context(), page, s.opts.PerPage)
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.render(c, http.StatusOK, "tweets.html", gin.H{"Title": "Tweets", "Tweets": tweets})
}

func (s *Server) showPaper(c *gin.Context) {
	view, err := s.feed.Paper(c.Request.Context(), c.Param("arxiv_id"))
	if err != nil {
		s.serverError(c, err)
		return
	}
	s.render(c, http.StatusOK, "paper.html", gin.H{"Title": view.Paper.Title, "View": view})
}

func (s *Server) refresh(c *gin.Context) {
	report, err := s.refresher.Run(c.Request.Context())
	if err != nil {
		log.Printf("❌ Refresh failed: %v", err)
		setFlash(c, "Refresh failed: "+err.Error())
	} else {
		setFlash(c, report.Message())
	}
	c.Redirect(http.StatusFound, "/")
}

type rateRow struct {
	Resource  string
	Endpoint  string
	Limit     int
	Remaining int
	Reset     int64
}

func (s *Server) showRateLimits(c *gin.Context) {
	limits, err := s.rates.RateLimitStatus(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}

	var rows []rateRow
	for resource, endpoints := range limits.Resources {
		for endpoint, l := range endpoints {
			rows = append(rows, rateRow{resource, endpoint, l.Limit, l.Remaining, l.Reset})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Resource != rows[j].Resource {
			return rows[i].Resource < rows[j].Resource
		}
		return rows[i].Endpoint < rows[j].Endpoint
	})
	s.render(c, http.StatusOK, "rates.html", gin.H{"Title": "Rate limits", "Rates": rows})
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
