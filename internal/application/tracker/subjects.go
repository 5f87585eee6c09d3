package tracker

import (
	"context"

	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// SubjectTopper returns the best result in a subject. Equal scores go to the
// lower roll number. ok is false when nobody has a grade in the subject.
func (t *Tracker) SubjectTopper(ctx context.Context, subject string) (student.Topper, bool, error) {
	subject, err := student.NormalizeSubject(subject)
	if err != nil {
		return student.Topper{}, false, err
	}

	var top *student.Topper
	err = t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		var err error
		top, err = tx.SubjectTopper(ctx, subject)
		return err
	})
	if err != nil {
		return student.Topper{}, false, err
	}

	if top == nil {
		t.logger.Debug("no grades for subject", logger.Subject(subject))
		return student.Topper{}, false, nil
	}
	return *top, true, nil
}

// ClassAverageForSubject returns the mean score across all students in a subject.
// ok is false, not a zero average, when the subject has no grades.
func (t *Tracker) ClassAverageForSubject(ctx context.Context, subject string) (float64, bool, error) {
	subject, err := student.NormalizeSubject(subject)
	if err != nil {
		return 0, false, err
	}

	var (
		avg   float64
		count int
	)
	err = t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		var err error
		avg, count, err = tx.SubjectAverage(ctx, subject)
		return err
	})
	if err != nil {
		return 0, false, err
	}

	if count == 0 {
		return 0, false, nil
	}
	t.logger.Debug("class average computed", logger.Subject(subject), logger.Int("count", count))
	return avg, true, nil
}
