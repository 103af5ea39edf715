package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"papertweets"
	"papertweets/arxiv"
	"papertweets/db"
	"papertweets/db/dbtest"
	"papertweets/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, id string) (*arxiv.Metadata, error) {
	args := m.Called(ctx, id)
	md, _ := args.Get(0).(*arxiv.Metadata)
	return md, args.Error(1)
}

func metadata(id string) *arxiv.Metadata {
	return &arxiv.Metadata{
		ID:        id,
		Title:     "Paper " + id,
		Summary:   "Abstract of " + id,
		Authors:   []string{"Ada Lovelace", "Alan Turing"},
		Published: time.Date(2016, 3, 4, 16, 24, 35, 0, time.UTC),
	}
}

func newEngine(t *testing.T) (*Engine, *gorm.DB, *mockFetcher) {
	t.Helper()
	conn := dbtest.Open(t)
	fetcher := &mockFetcher{}
	return NewEngine(db.NewStore(conn), fetcher, nil), conn, fetcher
}

func status(id, userID int64, screenName string, urls ...string) *papertweets.Status {
	s := &papertweets.Status{
		ID:       id,
		FullText: "tweet body",
		User:     papertweets.User{ID: userID, ScreenName: screenName},
	}
	for _, u := range urls {
		s.Entities.URLs = append(s.Entities.URLs, papertweets.URLEntity{ExpandedURL: u})
	}
	return s
}

func count(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}

func TestIngestStoresTweetAuthorAndPaper(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()

	tweet, err := engine.Ingest(context.Background(), status(42, 7, "Alice", "http://arxiv.org/abs/1603.01547"))
	require.NoError(t, err)
	require.NotNil(t, tweet)
	assert.Equal(t, int64(42), tweet.ID)
	assert.False(t, tweet.IsRetweet)

	var author models.Author
	require.NoError(t, conn.First(&author, 7).Error)
	assert.Equal(t, "alice", author.ScreenName)
	assert.NotEmpty(t, author.Profile)

	var paper models.Paper
	require.NoError(t, conn.Preload("Tweets").Where("arxiv_id = ?", "1603.01547").First(&paper).Error)
	assert.Equal(t, "Paper 1603.01547", paper.Title)
	assert.Equal(t, "Abstract of 1603.01547", paper.Summary)
	assert.Equal(t, "Ada Lovelace, Alan Turing", paper.Authors)
	assert.True(t, paper.Published.Equal(time.Date(2016, 3, 4, 16, 24, 35, 0, time.UTC)))
	require.Len(t, paper.Tweets, 1)
	assert.Equal(t, int64(42), paper.Tweets[0].ID)

	var stored models.Tweet
	require.NoError(t, conn.First(&stored, 42).Error)
	assert.Equal(t, int64(7), stored.AuthorID)
	assert.Equal(t, "tweet body", stored.Text())

	fetcher.AssertExpectations(t)
}

func TestIngestIsIdempotent(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil)

	s := status(42, 7, "Alice", "http://arxiv.org/abs/1603.01547")
	for i := 0; i < 3; i++ {
		_, err := engine.Ingest(context.Background(), s)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), count(t, conn, &models.Tweet{}))
	assert.Equal(t, int64(1), count(t, conn, &models.Author{}))
	assert.Equal(t, int64(1), count(t, conn, &models.Paper{}))
	assert.Equal(t, int64(1), count(t, conn, &models.PaperTweet{}))
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestIngestRejectsRecycledScreenName(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()

	_, err := engine.Ingest(context.Background(), status(42, 7, "alice", "http://arxiv.org/abs/1603.01547"))
	require.NoError(t, err)

	tweet, err := engine.Ingest(context.Background(), status(43, 9, "Alice", "http://arxiv.org/abs/1603.01547"))
	require.ErrorIs(t, err, ErrScreenNameTaken)
	assert.Contains(t, err.Error(), "@alice for user 9")
	assert.Nil(t, tweet)

	var author models.Author
	require.NoError(t, conn.First(&author, 7).Error)
	assert.Equal(t, "alice", author.ScreenName)
	assert.Equal(t, int64(1), count(t, conn, &models.Author{}))
	assert.Equal(t, int64(1), count(t, conn, &models.Tweet{}))
	assert.Equal(t, int64(1), count(t, conn, &models.PaperTweet{}))
}

func TestIngestDiscardsTweetsWithoutPaperLinks(t *testing.T) {
	engine, conn, fetcher := newEngine(t)

	tests := []*papertweets.Status{
		status(1, 7, "alice"),
		status(2, 7, "alice", "https://example.com/post", "https://arxiv.org/dog/1605.01335v1"),
	}
	for _, s := range tests {
		tweet, err := engine.Ingest(context.Background(), s)
		require.NoError(t, err)
		assert.Nil(t, tweet)
	}

	assert.Zero(t, count(t, conn, &models.Tweet{}))
	assert.Zero(t, count(t, conn, &models.Author{}))
	assert.Zero(t, count(t, conn, &models.Paper{}))
	fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestIngestRetweetStoresOriginalFirst(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1602.02218").Return(metadata("1602.02218"), nil).Once()

	original := status(40, 8, "Bob", "https://arxiv.org/pdf/1602.02218v2.pdf")
	rt := status(43, 7, "Alice", "https://arxiv.org/pdf/1602.02218v2.pdf")
	rt.RetweetedStatus = original

	for i := 0; i < 2; i++ {
		tweet, err := engine.Ingest(context.Background(), rt)
		require.NoError(t, err)
		require.NotNil(t, tweet)
		assert.True(t, tweet.IsRetweet)
	}

	assert.Equal(t, int64(2), count(t, conn, &models.Tweet{}))
	assert.Equal(t, int64(2), count(t, conn, &models.Author{}))

	var orig models.Tweet
	require.NoError(t, conn.Preload("RetweetedBy").Preload("Papers").First(&orig, 40).Error)
	assert.False(t, orig.IsRetweet)
	assert.Equal(t, int64(8), orig.AuthorID)
	require.Len(t, orig.RetweetedBy, 1)
	assert.Equal(t, int64(7), orig.RetweetedBy[0].ID)
	require.Len(t, orig.Papers, 1)

	var retweet models.Tweet
	require.NoError(t, conn.Preload("Papers").First(&retweet, 43).Error)
	assert.True(t, retweet.IsRetweet)
	require.Len(t, retweet.Papers, 1)
	assert.Equal(t, "1602.02218", retweet.Papers[0].ArxivID)

	assert.Equal(t, int64(1), count(t, conn, &models.Retweet{}))
	fetcher.AssertExpectations(t)
}

func TestIngestRetweetOfStoredOriginal(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()

	original := status(40, 8, "bob", "http://arxiv.org/abs/1603.01547")
	_, err := engine.Ingest(context.Background(), original)
	require.NoError(t, err)

	rt := status(43, 7, "alice", "http://arxiv.org/abs/1603.01547")
	rt.RetweetedStatus = original
	_, err = engine.Ingest(context.Background(), rt)
	require.NoError(t, err)

	var retweeters []models.Retweet
	require.NoError(t, conn.Find(&retweeters).Error)
	require.Len(t, retweeters, 1)
	assert.Equal(t, int64(40), retweeters[0].TweetID)
	assert.Equal(t, int64(7), retweeters[0].AuthorID)
	fetcher.AssertExpectations(t)
}

func TestIngestOriginalWithoutLinksInheritsPapers(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()

	rt := status(43, 7, "alice", "http://arxiv.org/abs/1603.01547")
	rt.RetweetedStatus = status(40, 8, "bob")

	_, err := engine.Ingest(context.Background(), rt)
	require.NoError(t, err)

	var orig models.Tweet
	require.NoError(t, conn.Preload("Papers").First(&orig, 40).Error)
	require.Len(t, orig.Papers, 1)
	assert.Equal(t, "1603.01547", orig.Papers[0].ArxivID)
	assert.Equal(t, int64(2), count(t, conn, &models.PaperTweet{}))
}

func TestIngestFetchFailureRollsBack(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	boom := errors.New("export.arxiv.org unreachable")
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil)
	fetcher.On("Fetch", mock.Anything, "1602.02218").Return(nil, boom)

	s := status(42, 7, "alice", "http://arxiv.org/abs/1603.01547", "http://arxiv.org/abs/1602.02218")
	tweet, err := engine.Ingest(context.Background(), s)
	require.ErrorIs(t, err, boom)
	assert.Nil(t, tweet)

	assert.Zero(t, count(t, conn, &models.Author{}))
	assert.Zero(t, count(t, conn, &models.Tweet{}))
	assert.Zero(t, count(t, conn, &models.Paper{}))
	assert.Zero(t, count(t, conn, &models.PaperTweet{}))
}

func TestIngestFetchesEachPaperOnce(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()
	fetcher.On("Fetch", mock.Anything, "1602.02218").Return(metadata("1602.02218"), nil).Once()

	first := status(1, 7, "alice",
		"http://arxiv.org/abs/1603.01547",
		"http://arxiv.org/pdf/1603.01547v2.pdf",
		"arxiv.org/pdf/1602.02218v2.pdf",
	)
	second := status(2, 8, "bob", "https://arxiv.org/abs/1602.02218")

	_, err := engine.Ingest(context.Background(), first)
	require.NoError(t, err)
	_, err = engine.Ingest(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, int64(2), count(t, conn, &models.Paper{}))
	assert.Equal(t, int64(3), count(t, conn, &models.PaperTweet{}))
	fetcher.AssertExpectations(t)
}

func TestIngestStopsOnRetweetCycle(t *testing.T) {
	engine, conn, fetcher := newEngine(t)
	fetcher.On("Fetch", mock.Anything, "1603.01547").Return(metadata("1603.01547"), nil).Once()

	a := status(1, 7, "alice", "http://arxiv.org/abs/1603.01547")
	b := status(2, 8, "bob", "http://arxiv.org/abs/1603.01547")
	a.RetweetedStatus = b
	b.RetweetedStatus = a
	// A cyclic struct cannot be marshalled, so give both a decoded payload.
	a.Raw = json.RawMessage(`{"id": 1}`)
	b.Raw = json.RawMessage(`{"id": 2}`)

	tweet, err := engine.Ingest(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, tweet.IsRetweet)

	var bStored models.Tweet
	require.NoError(t, conn.First(&bStored, 2).Error)
	assert.False(t, bStored.IsRetweet)
	assert.Equal(t, int64(2), count(t, conn, &models.Tweet{}))
}

func TestPaperIDs(t *testing.T) {
	s := status(1, 1, "x",
		"http://arxiv.org/abs/1603.01547",
		"https://example.com",
		"https://arxiv.org/pdf/1603.01547v3.pdf",
		"https://arxiv.org/abs/1605.01335v1",
	)
	assert.Equal(t, []string{"1603.01547", "1605.01335"}, PaperIDs(s))
	assert.Nil(t, PaperIDs(status(2, 1, "x")))
}
