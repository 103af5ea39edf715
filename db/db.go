package db

import (
	"fmt"
	"log"
	"strings"
	"time"

	"papertweets/models"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and tunes the backing database.
type Config struct {
	Driver       string
	DSN          string
	MaxOpenConns int
	MaxIdleConns int
	LogLevel     string // silent, error, warn or info
}

// InitDB opens the database described by cfg and configures its pool.
func InitDB(cfg Config) (*gorm.DB, error) {
	log.Printf("🔌 Initializing %s database connection...", cfg.Driver)

	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dsn, err := postgresDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "tweet.db"
		}
		dialector = sqlite.Open(dsn)
		// SQLite allows one writer at a time.
		cfg.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		log.Printf("❌ Database connection failed: %v", err)
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	log.Println("✅ Database connection ready")

	return db, nil
}

// Migrate creates or updates the schema. Join tables are registered with
// their models first so the composite primary keys are created.
func Migrate(db *gorm.DB) error {
	joins := []struct {
		model any
		field string
		join  any
	}{
		{&models.Paper{}, "Tweets", &models.PaperTweet{}},
		{&models.Tweet{}, "Papers", &models.PaperTweet{}},
		{&models.Tweet{}, "RetweetedBy", &models.Retweet{}},
	}
	for _, j := range joins {
		if err := db.SetupJoinTable(j.model, j.field, j.join); err != nil {
			return fmt.Errorf("failed to set up join table for %s: %w", j.field, err)
		}
	}

	if err := db.AutoMigrate(
		&models.Author{},
		&models.Tweet{},
		&models.Paper{},
		&models.PaperTweet{},
		&models.Retweet{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// postgresDSN accepts either a postgres:// URL or a key/value DSN and returns
// a key/value DSN pinned to UTC.
func postgresDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		kv, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid postgres URL: %w", err)
		}
		dsn = kv
	}
	if !strings.Contains(dsn, "TimeZone=") {
		dsn = strings.TrimSpace(dsn + " TimeZone=UTC")
	}
	return dsn, nil
}

func logLevel(s string) logger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return logger.Silent
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Error
	}
}
