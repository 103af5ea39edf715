package feed

import (
	"context"
	"errors"
	"fmt"

	"papertweets/models"

	"gorm.io/gorm"
)

const DefaultPerPage = 20

// Placeholder text shown for papers that were never stored.
const (
	StubTitle   = "This paper wasn't stored - but these links to arXiv will work"
	StubAuthors = "Mr. E."
)

// Service serves the paginated paper and tweet listings.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Page is one page of a listing. Pages past the end are empty rather than
// an error.
type Page[T any] struct {
	Items   []T
	Page    int
	PerPage int
	Total   int64
}

func (p *Page[T]) Pages() int {
	if p.Total == 0 {
		return 0
	}
	return int((p.Total + int64(p.PerPage) - 1) / int64(p.PerPage))
}

func (p *Page[T]) HasPrev() bool { return p.Page > 1 }
func (p *Page[T]) HasNext() bool { return p.Page < p.Pages() }
func (p *Page[T]) PrevNum() int  { return p.Page - 1 }
func (p *Page[T]) NextNum() int  { return p.Page + 1 }

// PaperView is a paper with its tweets; Stored is false for placeholders.
type PaperView struct {
	Paper  *models.Paper
	Stored bool
}

func normalize(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return page, perPage
}

// Papers lists papers, most recently published first, with the tweets that
// link to them.
func (s *Service) Papers(ctx context.Context, page, perPage int) (*Page[*models.Paper], error) {
	page, perPage = normalize(page, perPage)
	db := s.db.WithContext(ctx)

	result := &Page[*models.Paper]{Page: page, PerPage: perPage}
	if err := db.Model(&models.Paper{}).Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("count papers: %w", err)
	}

	if err := db.
		Preload("Tweets", func(tx *gorm.DB) *gorm.DB { return tx.Order("tweets.id DESC") }).
		Preload("Tweets.Author").
		Order("published DESC").
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&result.Items).Error; err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	return result, nil
}

// Tweets lists original (non-retweet) tweets, newest first.
func (s *Service) Tweets(ctx context.Context, page, perPage int) (*Page[*models.Tweet], error) {
	page, perPage = normalize(page, perPage)
	db := s.db.WithContext(ctx)

	result := &Page[*models.Tweet]{Page: page, PerPage: perPage}
	if err := db.Model(&models.Tweet{}).Where("is_retweet = ?", false).Count(&result.Total).Error; err != nil {
		return nil, fmt.Errorf("count tweets: %w", err)
	}

	if err := db.
		Preload("Author").
		Preload("Papers").
		Preload("RetweetedBy").
		Where("is_retweet = ?", false).
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&result.Items).Error; err != nil {
		return nil, fmt.Errorf("list tweets: %w", err)
	}
	return result, nil
}

// Paper returns the stored paper with its tweets, or a placeholder when the
// id has never been seen so the arXiv links can still be offered.
func (s *Service) Paper(ctx context.Context, arxivID string) (*PaperView, error) {
	var paper models.Paper
	err := s.db.WithContext(ctx).
		Preload("Tweets", func(tx *gorm.DB) *gorm.DB { return tx.Order("tweets.id DESC") }).
		Preload("Tweets.Author").
		Preload("Tweets.RetweetedBy").
		Where("arxiv_id = ?", arxivID).
		Take(&paper).Error
	switch {
	case err == nil:
		return &PaperView{Paper: &paper, Stored: true}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &PaperView{Paper: &models.Paper{
			ArxivID: arxivID,
			Title:   StubTitle,
			Authors: StubAuthors,
		}}, nil
	default:
		return nil, fmt.Errorf("get paper %s: %w", arxivID, err)
	}
}
