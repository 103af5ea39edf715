package arxiv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"http://arxiv.org/pdf/1603.01547v2.pdf", "1603.01547", true},
		{"arxiv.org/pdf/1602.02218v2.pdf", "1602.02218", true},
		{"http://arxiv.org/abs/1603.01547", "1603.01547", true},
		{"https://arxiv.org/abs/1605.01335v1", "1605.01335", true},
		{"https://arxiv.org/pdf/1605.01335", "1605.01335", true},
		{"https://www.arxiv.org/abs/1605.01335", "1605.01335", true},
		{"https://arxiv.org/dog/1605.01335v1", "", false},
		{"https://arxiv.org/abs/1605.0133", "", false},
		{"https://example.com/abs/1605.01335", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := ExtractID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractIDReturnsFirstMatch(t *testing.T) {
	s := "see arxiv.org/abs/1603.01547 and arxiv.org/pdf/1602.02218v2.pdf"

	id, ok := ExtractID(s)
	assert.True(t, ok)
	assert.Equal(t, "1603.01547", id)

	assert.Equal(t, []string{"1603.01547", "1602.02218"}, FindIDs(s))
}

func TestFindIDsNoMatch(t *testing.T) {
	assert.Nil(t, FindIDs("https://twitter.com/smerity"))
}
