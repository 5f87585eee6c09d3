package tracker

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADES
// ══════════════════════════════════════════════════════════════════════════════

// AddGrades upserts a batch of subject scores for a student.
// The whole batch is validated before the first write: one bad pair rejects
// all of them and leaves the store unchanged.
func (t *Tracker) AddGrades(ctx context.Context, rollNumber string, grades map[string]float64) (*student.Student, error) {
	rollNumber = strings.TrimSpace(rollNumber)

	var (
		s     *student.Student
		batch []gradeEntry
	)
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		rec, err := tx.StudentByRoll(ctx, rollNumber)
		if err != nil {
			return err
		}

		batch, err = validateBatch(grades)
		if err != nil {
			return err
		}

		for _, g := range batch {
			if err := tx.UpsertGrade(ctx, rec.ID, g.subject, g.score); err != nil {
				return err
			}
		}

		stored, err := tx.GradesOf(ctx, rec.ID)
		if err != nil {
			return err
		}
		s = student.FromRecords(*rec, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(batch) > 0 {
		recorded := make(map[string]float64, len(batch))
		for _, g := range batch {
			recorded[g.subject] = g.score
			t.logger.Debug("grade recorded", logger.RollNumber(rollNumber), logger.Subject(g.subject), logger.Score(g.score))
		}
		t.logger.Info("grades recorded", logger.RollNumber(rollNumber), logger.Int("count", len(batch)))
		t.publish(ctx, shared.NewGradesRecordedEvent(rollNumber, recorded, s.Average()))
	}
	return s, nil
}

// CalculateAverage returns the mean score of a student, 0 when they have no grades.
func (t *Tracker) CalculateAverage(ctx context.Context, rollNumber string) (float64, error) {
	s, err := t.ViewStudentDetails(ctx, rollNumber)
	if err != nil {
		return 0, err
	}
	return s.Average(), nil
}

type gradeEntry struct {
	subject string
	score   float64
}

// validateBatch normalizes every pair and returns them sorted by subject.
func validateBatch(grades map[string]float64) ([]gradeEntry, error) {
	batch := make([]gradeEntry, 0, len(grades))
	seen := make(map[string]struct{}, len(grades))

	for raw, score := range grades {
		subject, err := student.NormalizeSubject(raw)
		if err != nil {
			return nil, err
		}
		if err := student.ValidateScore(score); err != nil {
			return nil, err
		}
		if _, dup := seen[subject]; dup {
			return nil, shared.Validation("grade", "AddGrades", "subject %q given more than once", subject)
		}
		seen[subject] = struct{}{}
		batch = append(batch, gradeEntry{subject: subject, score: score})
	}

	sort.Slice(batch, func(i, j int) bool { return batch[i].subject < batch[j].subject })
	return batch, nil
}

// ParseGradeEntry parses one "subject=score" line of console input.
func ParseGradeEntry(line string) (string, float64, error) {
	rawSubject, rawScore, ok := strings.Cut(line, "=")
	if !ok {
		return "", 0, shared.ErrMalformedEntry
	}

	subject, err := student.NormalizeSubject(rawSubject)
	if err != nil {
		return "", 0, err
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(rawScore), 64)
	if err != nil {
		return "", 0, shared.ErrMalformedEntry
	}
	if err := student.ValidateScore(score); err != nil {
		return "", 0, err
	}
	return subject, score, nil
}
