package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/justsurfingit/jobtrackr/internal/config"
	"github.com/justsurfingit/jobtrackr/internal/logger"
	"github.com/justsurfingit/jobtrackr/internal/models"
)

// Connect opens the Postgres pool described by cfg.
func Connect(cfg *config.DatabaseConfig, log logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: NewGormLogger(log, 200*time.Millisecond),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infow("database connection established", "database", cfg.Name, "host", cfg.Host)
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// gormLogger forwards gorm's query log to the application logger.
type gormLogger struct {
	log           logger.Interface
	slowThreshold time.Duration
	level         gormlogger.LogLevel
}

func NewGormLogger(log logger.Interface, slowThreshold time.Duration) gormlogger.Interface {
	return &gormLogger{log: log.Named("gorm"), slowThreshold: slowThreshold, level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Info {
		l.log.Debugw(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Warnw(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= gormlogger.Error {
		l.log.Errorw(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && err != gorm.ErrRecordNotFound && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Errorw("database error", "sql", compact(sql), "rows", rows, "elapsed", elapsed, "error", err)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warnw("slow query", "sql", compact(sql), "rows", rows, "elapsed", elapsed)
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debugw("database query", "sql", compact(sql), "rows", rows, "elapsed", elapsed)
	}
}

func compact(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
