// Package tracker is the single entry point of the student tracker.
// Every operation runs in exactly one store transaction, maps rows to a
// student.Student value object at the boundary and publishes a domain event
// after a successful commit of a mutation.
package tracker

import (
	"context"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

// DefaultExportPath is used when ExportToTxt receives an empty path and no
// other default was configured.
const DefaultExportPath = "backup_students.txt"

// Service is what the presentation adapters depend on.
type Service interface {
	AddStudent(ctx context.Context, name, rollNumber string) (*student.Student, error)
	AddGrades(ctx context.Context, rollNumber string, grades map[string]float64) (*student.Student, error)
	ViewStudentDetails(ctx context.Context, rollNumber string) (*student.Student, error)
	CalculateAverage(ctx context.Context, rollNumber string) (float64, error)
	SubjectTopper(ctx context.Context, subject string) (student.Topper, bool, error)
	ClassAverageForSubject(ctx context.Context, subject string) (float64, bool, error)
	ExportToTxt(ctx context.Context, path string) (string, error)

	ListStudents(ctx context.Context) ([]*student.Student, error)
	EditStudent(ctx context.Context, rollNumber, name, newRollNumber string) (*student.Student, error)
	DeleteStudent(ctx context.Context, rollNumber string) error

	Ping(ctx context.Context) error
}

// ══════════════════════════════════════════════════════════════════════════════
// TRACKER
// ══════════════════════════════════════════════════════════════════════════════

// Config holds the collaborators of a Tracker.
type Config struct {
	// Store is required.
	Store student.Store

	// Publisher receives events after commit. Defaults to a no-op.
	Publisher shared.EventPublisher

	// Logger defaults to logger.Nop().
	Logger *logger.Logger

	// ExportPath is the target used by ExportToTxt("").
	ExportPath string
}

// Tracker implements Service on top of a student.Store.
type Tracker struct {
	store      student.Store
	publisher  shared.EventPublisher
	logger     *logger.Logger
	exportPath string
}

var _ Service = (*Tracker)(nil)

// New creates a Tracker. It panics if cfg.Store is nil.
func New(cfg Config) *Tracker {
	if cfg.Store == nil {
		panic("tracker: store is required")
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nopPublisher{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.ExportPath == "" {
		cfg.ExportPath = DefaultExportPath
	}

	return &Tracker{
		store:      cfg.Store,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger.With(logger.Component("tracker")),
		exportPath: cfg.ExportPath,
	}
}

// Ping reports whether the store is reachable.
func (t *Tracker) Ping(ctx context.Context) error {
	return t.store.Ping(ctx)
}

// publish hands the event to the publisher. Failures are logged only:
// the transaction has already committed.
func (t *Tracker) publish(ctx context.Context, event shared.Event) {
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.logger.Warn("failed to publish event",
			logger.String("event_type", string(event.EventType())),
			logger.RollNumber(event.AggregateID()),
			logger.Err(err),
		)
	}
}

// loadStudent reads a student and their grades inside tx.
func loadStudent(ctx context.Context, tx student.Tx, rollNumber string) (*student.Record, *student.Student, error) {
	rec, err := tx.StudentByRoll(ctx, rollNumber)
	if err != nil {
		return nil, nil, err
	}
	grades, err := tx.GradesOf(ctx, rec.ID)
	if err != nil {
		return nil, nil, err
	}
	return rec, student.FromRecords(*rec, grades), nil
}

// normalizeIdentity trims name and roll number and applies the domain limits.
func normalizeIdentity(name, rollNumber string) (string, string, error) {
	name, err := student.NormalizeName(name)
	if err != nil {
		return "", "", err
	}
	rollNumber, err = student.NormalizeRollNumber(rollNumber)
	if err != nil {
		return "", "", err
	}
	return name, rollNumber, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, shared.Event) error { return nil }
