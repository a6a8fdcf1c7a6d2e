package db

import (
	"fmt"
	"strings"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"yard-anpr-service/internal/config"
)

const (
	embeddedUser     = "postgres"
	embeddedPassword = "postgres"
	embeddedDatabase = "yard_anpr"
)

// DB wraps gorm.DB and the embedded PostgreSQL process when one was started.
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
	log      zerolog.Logger
}

// Connect opens the configured database, starting an embedded PostgreSQL when no DSN is
// set, and applies migrations.
func Connect(cfg config.DatabaseConfig, log zerolog.Logger) (*DB, error) {
	log = log.With().Str("component", "db").Logger()

	var embedded *embeddedpostgres.EmbeddedPostgres
	dsn := cfg.DSN
	if cfg.Embedded() {
		log.Info().
			Uint32("port", cfg.EmbeddedPort).
			Str("data_path", cfg.EmbeddedPath).
			Msg("no DB_DSN configured, starting embedded PostgreSQL")

		embedded = embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
			DataPath(cfg.EmbeddedPath).
			Port(cfg.EmbeddedPort).
			Database(embeddedDatabase).
			Username(embeddedUser).
			Password(embeddedPassword))
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}
		dsn = fmt.Sprintf(
			"host=localhost port=%d user=%s password=%s dbname=%s sslmode=disable",
			cfg.EmbeddedPort, embeddedUser, embeddedPassword, embeddedDatabase,
		)
	}

	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.New(gormWriter{log: log}, logger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := runMigrations(gdb); err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, err
	}

	log.Info().Bool("embedded", embedded != nil).Msg("database ready")
	return &DB{DB: gdb, embedded: embedded, log: log}, nil
}

// Close closes the pool and stops the embedded process, if any.
func (d *DB) Close() error {
	var closeErr error
	if sqlDB, err := d.DB.DB(); err == nil {
		closeErr = sqlDB.Close()
	}
	if d.embedded != nil {
		d.log.Info().Msg("stopping embedded PostgreSQL")
		if err := d.embedded.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Info().Msgf(format, args...)
}

func gormLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
