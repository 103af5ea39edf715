// Package tweet generates plausible timeline statuses for local development
// and demos, so the listings can be populated without Twitter credentials.
package tweet

import (
	"fmt"
	"math/rand"
	"time"

	"papertweets"
)

// Researcher accounts with how often they link papers and retweet.
var userProfiles = []struct {
	id          int64
	handle      string
	name        string
	linkRate    float32 // share of tweets that link an arXiv paper
	retweetRate float32
}{
	{1001, "hardmaru", "hardmaru", 0.6, 0.3},
	{1002, "karpathy", "Andrej Karpathy", 0.4, 0.1},
	{1003, "Smerity", "Smerity", 0.5, 0.2},
	{1004, "ylecun", "Yann LeCun", 0.3, 0.2},
	{1005, "goodfellow_ian", "Ian Goodfellow", 0.5, 0.1},
	{1006, "jackclarkSF", "Jack Clark", 0.7, 0.4},
	{1007, "fchollet", "François Chollet", 0.2, 0.1},
}

var tweetTemplates = map[string][]string{
	"paper": {
		"New paper on %s: %s",
		"Really enjoyed this one about %s %s",
		"If you care about %s, read this: %s",
		"%s, finally done properly %s",
	},
	"chatter": {
		"Anyone else at the %s workshop this week?",
		"Hot take: %s is overrated",
		"Spent the whole day debugging %s",
	},
}

var (
	topics  = []string{"attention", "memory networks", "GANs", "batch norm", "RL from pixels", "character-level LMs", "neural architecture search"}
	formats = []string{"https://arxiv.org/abs/%s", "http://arxiv.org/abs/%sv2", "https://arxiv.org/pdf/%sv1.pdf", "arxiv.org/pdf/%s"}
	blogs   = []string{"https://distill.pub", "https://example.com/blog", "https://github.com/openai/gym"}
)

// Generator produces statuses with increasing ids, timestamped from start.
type Generator struct {
	rng    *rand.Rand
	nextID int64
	start  time.Time
	// Papers is the pool of arXiv ids to link; a small pool makes several
	// tweets share a paper.
	Papers []string
}

func NewGenerator(seed int64, start time.Time) *Generator {
	g := &Generator{rng: rand.New(rand.NewSource(seed)), nextID: 700000000000000000, start: start}
	for i := 0; i < 25; i++ {
		g.Papers = append(g.Papers, fmt.Sprintf("16%02d.%05d", 1+g.rng.Intn(12), g.rng.Intn(20000)))
	}
	return g
}

// Generate returns n statuses, oldest first.
func (g *Generator) Generate(n int) []papertweets.Status {
	statuses := make([]papertweets.Status, 0, n)
	for i := 0; i < n; i++ {
		profile := userProfiles[g.rng.Intn(len(userProfiles))]
		created := g.start.Add(time.Duration(i) * 37 * time.Minute)

		if len(statuses) > 0 && g.rng.Float32() < profile.retweetRate {
			orig := statuses[g.rng.Intn(len(statuses))]
			if orig.RetweetedStatus == nil && orig.User.ID != profile.id {
				statuses = append(statuses, g.retweet(profile.id, profile.handle, profile.name, orig, created))
				continue
			}
		}

		s := g.status(profile.id, profile.handle, profile.name, created)
		if g.rng.Float32() < profile.linkRate {
			paper := g.Papers[g.rng.Intn(len(g.Papers))]
			link := fmt.Sprintf(formats[g.rng.Intn(len(formats))], paper)
			s.FullText = fmt.Sprintf(g.pick("paper"), topics[g.rng.Intn(len(topics))], "https://t.co/"+paper)
			s.Entities.URLs = append(s.Entities.URLs, papertweets.URLEntity{
				URL:         "https://t.co/" + paper,
				ExpandedURL: link,
				DisplayURL:  link,
			})
		} else {
			s.FullText = fmt.Sprintf(g.pick("chatter"), topics[g.rng.Intn(len(topics))])
			if g.rng.Float32() < 0.3 {
				s.Entities.URLs = append(s.Entities.URLs, papertweets.URLEntity{ExpandedURL: blogs[g.rng.Intn(len(blogs))]})
			}
		}
		statuses = append(statuses, s)
	}
	return statuses
}

func (g *Generator) pick(category string) string {
	templates := tweetTemplates[category]
	return templates[g.rng.Intn(len(templates))]
}

func (g *Generator) status(userID int64, handle, name string, created time.Time) papertweets.Status {
	g.nextID++
	return papertweets.Status{
		ID:        g.nextID,
		IDStr:     fmt.Sprint(g.nextID),
		CreatedAt: created.UTC().Format(time.RubyDate),
		User:      papertweets.User{ID: userID, ScreenName: handle, Name: name},
	}
}

func (g *Generator) retweet(userID int64, handle, name string, orig papertweets.Status, created time.Time) papertweets.Status {
	s := g.status(userID, handle, name, created)
	s.FullText = fmt.Sprintf("RT @%s: %s", orig.User.ScreenName, orig.FullText)
	s.Entities = orig.Entities
	s.RetweetedStatus = &orig
	return s
}
