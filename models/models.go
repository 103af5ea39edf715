package models

import (
	"encoding/json"
	"fmt"
	"html"
	"time"

	"gorm.io/datatypes"
)

// Author is a Twitter account that posted or retweeted a stored tweet.
// ID is the external user id.
type Author struct {
	ID         int64          `gorm:"primaryKey;autoIncrement:false"`
	ScreenName string         `gorm:"size:256;uniqueIndex"` // lowercased
	Profile    datatypes.JSON // raw user object
	CreatedAt  time.Time
}

// Tweet is a stored status that links to at least one paper. ID is the
// external tweet id.
type Tweet struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false"`
	Payload   datatypes.JSON // raw status object
	IsRetweet bool           `gorm:"index;default:false"`
	AuthorID  int64          `gorm:"index"`
	Author    *Author
	CreatedAt time.Time

	Papers      []*Paper  `gorm:"many2many:paper_tweets;"`
	RetweetedBy []*Author `gorm:"many2many:retweets;"`
}

// Paper is an arXiv paper referenced by one or more tweets.
type Paper struct {
	ID        uint      `gorm:"primaryKey"`
	ArxivID   string    `gorm:"size:256;uniqueIndex"`
	Title     string    `gorm:"size:512"`
	Summary   string    `gorm:"type:text"`
	Authors   string    `gorm:"type:text"` // comma separated
	Published time.Time `gorm:"index"`
	CreatedAt time.Time

	Tweets []*Tweet `gorm:"many2many:paper_tweets;"`
}

// PaperTweet is the paper_tweets join row. The composite key keeps each pair unique.
type PaperTweet struct {
	PaperID   uint  `gorm:"primaryKey"`
	TweetID   int64 `gorm:"primaryKey"`
	CreatedAt time.Time
}

// Retweet records that an author retweeted a stored tweet.
type Retweet struct {
	TweetID   int64 `gorm:"primaryKey"`
	AuthorID  int64 `gorm:"primaryKey"`
	CreatedAt time.Time
}

// Link points at the tweet on twitter.com. Author must be loaded.
func (t *Tweet) Link() string {
	name := "i/web"
	if t.Author != nil {
		name = t.Author.ScreenName
	}
	return fmt.Sprintf("https://twitter.com/%s/status/%d", name, t.ID)
}

// Text returns the tweet body from the stored payload, preferring the
// extended full_text. The API HTML-escapes a few characters; they are
// unescaped here so templates escape them exactly once.
func (t *Tweet) Text() string {
	var body struct {
		Text     string `json:"text"`
		FullText string `json:"full_text"`
	}
	if err := json.Unmarshal(t.Payload, &body); err != nil {
		return ""
	}
	if body.FullText != "" {
		return html.UnescapeString(body.FullText)
	}
	return html.UnescapeString(body.Text)
}

// Link points at the paper on arxiv.org; section is "abs" or "pdf".
func (p *Paper) Link(section string) string {
	return fmt.Sprintf("http://arxiv.org/%s/%s", section, p.ArxivID)
}
