package db

import (
	"context"
	"errors"
	"fmt"

	"papertweets/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the connection shared by ingestion, refresh and the listings.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for read-side queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction runs fn in a single transaction, committing when it returns nil.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Counts is a snapshot of table sizes.
type Counts struct {
	Authors int64
	Tweets  int64
	Papers  int64
}

func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Author{}).Count(&c.Authors).Error; err != nil {
		return c, fmt.Errorf("count authors: %w", err)
	}
	if err := db.Model(&models.Tweet{}).Count(&c.Tweets).Error; err != nil {
		return c, fmt.Errorf("count tweets: %w", err)
	}
	if err := db.Model(&models.Paper{}).Count(&c.Papers).Error; err != nil {
		return c, fmt.Errorf("count papers: %w", err)
	}
	return c, nil
}

// Ping checks the connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Upsert looks up a T whose column equals value. When none exists, build
// fills in a new row which is then inserted. The bool reports whether the row
// was created. If build fails nothing is written.
func Upsert[T any](tx *gorm.DB, column string, value any, build func(*T) error) (*T, bool, error) {
	var row T
	err := tx.Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).Take(&row).Error
	if err == nil {
		return &row, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("lookup %T by %s=%v: %w", row, column, value, err)
	}

	if err := build(&row); err != nil {
		return nil, false, err
	}
	if err := tx.Create(&row).Error; err != nil {
		return nil, false, fmt.Errorf("create %T %s=%v: %w", row, column, value, err)
	}
	return &row, true, nil
}

// AttachPaper links a tweet to a paper unless the pair already exists.
func AttachPaper(tx *gorm.DB, paperID uint, tweetID int64) (bool, error) {
	return insertPair(tx, &models.PaperTweet{PaperID: paperID, TweetID: tweetID})
}

// AttachRetweeter records author as a retweeter of tweet unless already recorded.
func AttachRetweeter(tx *gorm.DB, tweetID, authorID int64) (bool, error) {
	return insertPair(tx, &models.Retweet{TweetID: tweetID, AuthorID: authorID})
}

func insertPair(tx *gorm.DB, row any) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, fmt.Errorf("insert %T: %w", row, result.Error)
	}
	return result.RowsAffected > 0, nil
}
