package tracker

import (
	"context"
	"strings"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// AddStudent registers a new student with no grades.
// Returns ErrStudentAlreadyExists if the roll number is taken.
func (t *Tracker) AddStudent(ctx context.Context, name, rollNumber string) (*student.Student, error) {
	name, rollNumber, err := normalizeIdentity(name, rollNumber)
	if err != nil {
		return nil, err
	}

	err = t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		if _, err := tx.StudentByRoll(ctx, rollNumber); err == nil {
			return shared.ErrStudentAlreadyExists
		} else if !shared.IsNotFound(err) {
			return err
		}
		return tx.CreateStudent(ctx, &student.Record{Name: name, RollNumber: rollNumber})
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("student added", logger.RollNumber(rollNumber), logger.String("name", name))
	t.publish(ctx, shared.NewStudentAddedEvent(rollNumber, name))
	return student.New(name, rollNumber), nil
}

// ViewStudentDetails returns the current snapshot of a student.
func (t *Tracker) ViewStudentDetails(ctx context.Context, rollNumber string) (*student.Student, error) {
	rollNumber = strings.TrimSpace(rollNumber)

	var s *student.Student
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		var err error
		_, s, err = loadStudent(ctx, tx, rollNumber)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("student viewed", logger.RollNumber(rollNumber))
	return s, nil
}

// ListStudents returns every student in store order.
func (t *Tracker) ListStudents(ctx context.Context) ([]*student.Student, error) {
	var students []*student.Student
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		var err error
		students, err = snapshotAll(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	t.logger.Debug("students listed", logger.Int("count", len(students)))
	return students, nil
}

// EditStudent changes the name and roll number of an existing student.
// Keeping the same roll number is allowed; taking another student's is a conflict.
func (t *Tracker) EditStudent(ctx context.Context, rollNumber, name, newRollNumber string) (*student.Student, error) {
	rollNumber = strings.TrimSpace(rollNumber)
	name, newRollNumber, err := normalizeIdentity(name, newRollNumber)
	if err != nil {
		return nil, err
	}

	var s *student.Student
	err = t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		rec, err := tx.StudentByRoll(ctx, rollNumber)
		if err != nil {
			return err
		}

		if newRollNumber != rec.RollNumber {
			other, err := tx.StudentByRoll(ctx, newRollNumber)
			switch {
			case err == nil && other.ID != rec.ID:
				return shared.ErrStudentAlreadyExists
			case err != nil && !shared.IsNotFound(err):
				return err
			}
		}

		rec.Name = name
		rec.RollNumber = newRollNumber
		if err := tx.UpdateStudent(ctx, rec); err != nil {
			return err
		}

		grades, err := tx.GradesOf(ctx, rec.ID)
		if err != nil {
			return err
		}
		s = student.FromRecords(*rec, grades)
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.logger.Info("student updated",
		logger.RollNumber(newRollNumber),
		logger.String("previous_roll_number", rollNumber),
	)
	t.publish(ctx, shared.NewStudentUpdatedEvent(rollNumber, newRollNumber, name))
	return s, nil
}

// DeleteStudent removes a student; the store cascades the delete to all grades.
func (t *Tracker) DeleteStudent(ctx context.Context, rollNumber string) error {
	rollNumber = strings.TrimSpace(rollNumber)

	err := t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		rec, err := tx.StudentByRoll(ctx, rollNumber)
		if err != nil {
			return err
		}
		return tx.DeleteStudent(ctx, rec.ID)
	})
	if err != nil {
		return err
	}

	t.logger.Info("student deleted", logger.RollNumber(rollNumber))
	t.publish(ctx, shared.NewStudentDeletedEvent(rollNumber))
	return nil
}

// snapshotAll builds value objects for every student inside tx.
func snapshotAll(ctx context.Context, tx student.Tx) ([]*student.Student, error) {
	records, err := tx.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	students := make([]*student.Student, 0, len(records))
	for _, rec := range records {
		grades, err := tx.GradesOf(ctx, rec.ID)
		if err != nil {
			return nil, err
		}
		students = append(students, student.FromRecords(rec, grades))
	}
	return students, nil
}
