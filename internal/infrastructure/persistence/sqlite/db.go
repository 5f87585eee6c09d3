// Package sqlite implements the embedded, file-backed store on top of GORM.
// Key components:
//   - Open: connection with foreign keys enabled and schema bootstrap
//   - StudentModel / GradeModel: the ORM row mapping
//   - StudentStore: student.Store implementation
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/student-tracker/pkg/logger"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Options configures the embedded database.
type Options struct {
	// Path is the database file, or ":memory:".
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	BusyTimeout time.Duration

	// Logger receives SQL traces when LogQueries is set.
	Logger     *logger.Logger
	LogQueries bool
}

// DSN returns the driver connection string with the pragmas the store relies on.
// foreign_keys must be on for ON DELETE CASCADE to fire.
func (o Options) DSN() string {
	busy := o.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	sep := "?"
	if strings.Contains(o.Path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", o.Path, sep, busy.Milliseconds())
}

// ══════════════════════════════════════════════════════════════════════════════
// CONNECTION
// ══════════════════════════════════════════════════════════════════════════════

// Open opens the database and creates the tables if they are missing.
func Open(ctx context.Context, opts Options) (*gorm.DB, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite: database path is required")
	}

	db, err := gorm.Open(gormsqlite.Open(opts.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         newQueryLogger(opts.Logger, opts.LogQueries),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", opts.Path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get sql.DB: %w", err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	sqlDB.SetMaxOpenConns(1)

	if err := db.WithContext(ctx).Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: failed to enable foreign keys: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(&StudentModel{}, &GradeModel{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite: failed to ensure schema: %w", err)
	}

	return db, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY LOGGER
// ══════════════════════════════════════════════════════════════════════════════

// queryLogger forwards GORM logs into the structured logger.
type queryLogger struct {
	log     *logger.Logger
	level   gormlogger.LogLevel
	queries bool
}

func newQueryLogger(log *logger.Logger, queries bool) gormlogger.Interface {
	if log == nil {
		log = logger.Nop()
	}
	return &queryLogger{
		log:     log.With(logger.Component("sqlite")),
		level:   gormlogger.Warn,
		queries: queries,
	}
}

func (q *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Info {
		q.log.Info(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Warn {
		q.log.Warn(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if q.level >= gormlogger.Error {
		q.log.Error(fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if !q.queries || q.level == gormlogger.Silent {
		return
	}
	sql, rows := fc()
	fields := []logger.Field{
		logger.String("sql", sql),
		logger.Int64("rows", rows),
		logger.Latency(time.Since(begin)),
	}
	// Not-found lookups are expected control flow, not failures.
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		q.log.Debug("query failed", append(fields, logger.Err(err))...)
		return
	}
	q.log.Debug("query", fields...)
}
