package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"papertweets"
	"papertweets/db"
	"papertweets/db/dbtest"
	"papertweets/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statuses.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestReadStatuses(t *testing.T) {
	path := writeFile(t, `[
		{"id": 42, "full_text": "look", "user": {"id": 7, "screen_name": "Alice"},
		 "entities": {"urls": [{"expanded_url": "http://arxiv.org/abs/1603.01547"}]}},
		{"id": 43, "full_text": "no links", "user": {"id": 7, "screen_name": "Alice"}}
	]`)

	statuses, err := readStatuses(path)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, int64(42), statuses[0].ID)
	assert.Equal(t, "Alice", statuses[0].User.ScreenName)
	assert.Equal(t, []string{"http://arxiv.org/abs/1603.01547"}, statuses[0].ExpandedURLs())
	assert.Empty(t, statuses[1].ExpandedURLs())
}

func TestReadStatusesErrors(t *testing.T) {
	_, err := readStatuses(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = readStatuses(writeFile(t, `{"id": 42}`))
	assert.ErrorContains(t, err, "decode")
}

func linking(id, userID int64, screenName string, urls ...string) papertweets.Status {
	s := papertweets.Status{ID: id, FullText: "look", User: papertweets.User{ID: userID, ScreenName: screenName}}
	for _, u := range urls {
		s.Entities.URLs = append(s.Entities.URLs, papertweets.URLEntity{ExpandedURL: u})
	}
	return s
}

func TestImportStatusesWithPlaceholderPapers(t *testing.T) {
	conn := dbtest.Open(t)
	store := db.NewStore(conn)
	statuses := []papertweets.Status{
		linking(1, 7, "alice", "https://arxiv.org/abs/1603.01547"),
		linking(2, 7, "alice", "https://example.com"),
		linking(3, 8, "bob", "http://arxiv.org/abs/1603.01547v2", "arxiv.org/pdf/1602.02218"),
	}

	res, err := importStatuses(context.Background(), store, placeholderFetcher{}, statuses)
	require.NoError(t, err)
	assert.Equal(t, importResult{Stored: 2, NewPapers: 2, NewTweets: 2}, res)

	var paper models.Paper
	require.NoError(t, conn.First(&paper, "arxiv_id = ?", "1602.02218").Error)
	assert.Equal(t, "Generated paper 1602.02218", paper.Title)
	assert.Equal(t, "A. Nonymous", paper.Authors)

	again, err := importStatuses(context.Background(), store, placeholderFetcher{}, statuses)
	require.NoError(t, err)
	assert.Equal(t, importResult{Stored: 2}, again)
}
