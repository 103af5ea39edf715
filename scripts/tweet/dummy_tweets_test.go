package tweet

import (
	"testing"
	"time"

	"papertweets/arxiv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	statuses := NewGenerator(42, start).Generate(200)
	require.Len(t, statuses, 200)

	var linking, retweets int
	for i, s := range statuses {
		if i > 0 {
			assert.Greater(t, s.ID, statuses[i-1].ID)
		}
		assert.NotEmpty(t, s.User.ScreenName)
		if s.RetweetedStatus != nil {
			retweets++
			assert.NotEqual(t, s.User.ID, s.RetweetedStatus.User.ID)
			assert.Less(t, s.RetweetedStatus.ID, s.ID)
		}
		for _, u := range s.ExpandedURLs() {
			if _, ok := arxiv.ExtractID(u); ok {
				linking++
				break
			}
		}
	}
	assert.Positive(t, linking)
	assert.Positive(t, retweets)
	assert.Less(t, linking, 200)
}

func TestGenerateIsDeterministic(t *testing.T) {
	start := time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)
	a := NewGenerator(7, start).Generate(20)
	b := NewGenerator(7, start).Generate(20)
	for i := range a {
		assert.Equal(t, a[i].ID, b[i].ID)
		assert.Equal(t, a[i].FullText, b[i].FullText)
	}
}
