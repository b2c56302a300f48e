package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billflow/internal/config"
	"billflow/internal/logger"
	"billflow/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type DB struct {
	*gorm.DB
	sqlDB        *sql.DB
	driver       string
	queryTimeout time.Duration
	log          *zap.Logger
}

// Open returns the GORM dialector for the configured driver
func Open(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.DSN), nil
	case "postgres":
		return postgres.Open(cfg.DSN), nil
	case "mysql":
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func New(cfg *config.DatabaseConfig, log *zap.Logger) (*DB, error) {
	dialector, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	// TranslateError turns driver unique violations into gorm.ErrDuplicatedKey.
	// Cached statements are left unset on sqlite: a cached statement that
	// returned rows keeps the connection busy and blocks every later commit.
	gormConfig := &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.GormLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt:    cfg.Driver != "sqlite",
		TranslateError: true,
	}

	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("database connected",
		zap.String("driver", cfg.Driver),
		zap.Int("max_open", cfg.MaxOpenConns),
		zap.Int("max_idle", cfg.MaxIdleConns),
		zap.Duration("lifetime", cfg.ConnMaxLifetime),
	)

	return &DB{DB: db, sqlDB: sqlDB, driver: cfg.Driver, queryTimeout: cfg.QueryTimeout, log: log}, nil
}

func (db *DB) Migrate() error {
	db.log.Info("running database migrations")

	if db.driver == "sqlite" {
		if _, err := db.sqlDB.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.log.Warn("failed to set WAL mode", zap.Error(err))
		}
		if _, err := db.sqlDB.Exec("PRAGMA busy_timeout = 5000"); err != nil {
			db.log.Warn("failed to set busy timeout", zap.Error(err))
		}
	}

	err := db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.CatalogItem{},
		&models.Invoice{},
		&models.InvoiceItem{},
		&models.RecurringRun{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}

	db.log.Info("migrations completed")
	return nil
}

// Ping checks database connectivity within the configured query timeout
func (db *DB) Ping(ctx context.Context) error {
	timeout := db.queryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return db.sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics
func (db *DB) Stats() sql.DBStats {
	return db.sqlDB.Stats()
}

// Close closes database connections gracefully
func (db *DB) Close() error {
	if db.sqlDB != nil {
		db.sqlDB.SetMaxOpenConns(0)
		db.sqlDB.SetMaxIdleConns(0)

		return db.sqlDB.Close()
	}
	return nil
}
