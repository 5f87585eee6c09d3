package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentStore implements student.Store on an embedded SQLite database.
type StudentStore struct {
	db *gorm.DB
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(db *gorm.DB) *StudentStore {
	return &StudentStore{db: db}
}

// WithinTx implements student.Store.
func (s *StudentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx student.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(ctx, &studentTx{db: gtx})
	})
	return asStorageError("WithinTx", err)
}

// Ping implements student.Store.
func (s *StudentStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements student.Store.
func (s *StudentStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// asStorageError leaves domain errors untouched and wraps everything else.
func asStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.Storage(op, err)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isCheckViolation(err error) bool {
	return errors.Is(err, gorm.ErrCheckConstraintViolated) || strings.Contains(err.Error(), "CHECK constraint failed")
}

// ─────────────────────────────────────────────────────────────────────────────
// Transaction-scoped operations
// ─────────────────────────────────────────────────────────────────────────────

type studentTx struct {
	db *gorm.DB
}

func (t *studentTx) CreateStudent(ctx context.Context, rec *student.Record) error {
	model := StudentModel{Name: rec.Name, RollNumber: rec.RollNumber}
	if err := t.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return shared.Storage("CreateStudent", fmt.Errorf("failed to create student: %w", err))
	}
	rec.ID = model.ID
	return nil
}

func (t *studentTx) StudentByRoll(ctx context.Context, rollNumber string) (*student.Record, error) {
	var model StudentModel
	err := t.db.WithContext(ctx).Where("roll_number = ?", rollNumber).Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.Storage("StudentByRoll", fmt.Errorf("failed to get student: %w", err))
	}
	rec := model.toRecord()
	return &rec, nil
}

func (t *studentTx) UpdateStudent(ctx context.Context, rec *student.Record) error {
	result := t.db.WithContext(ctx).
		Model(&StudentModel{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"name":        rec.Name,
			"roll_number": rec.RollNumber,
		})
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return shared.ErrStudentAlreadyExists
		}
		return shared.Storage("UpdateStudent", fmt.Errorf("failed to update student: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (t *studentTx) DeleteStudent(ctx context.Context, id int64) error {
	result := t.db.WithContext(ctx).Delete(&StudentModel{}, id)
	if result.Error != nil {
		return shared.Storage("DeleteStudent", fmt.Errorf("failed to delete student: %w", result.Error))
	}
	if result.RowsAffected == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (t *studentTx) ListStudents(ctx context.Context) ([]student.Record, error) {
	var models []StudentModel
	if err := t.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, shared.Storage("ListStudents", fmt.Errorf("failed to query students: %w", err))
	}

	records := make([]student.Record, 0, len(models))
	for _, m := range models {
		records = append(records, m.toRecord())
	}
	return records, nil
}

func (t *studentTx) GradesOf(ctx context.Context, studentID int64) ([]student.GradeRecord, error) {
	var models []GradeModel
	err := t.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, shared.Storage("GradesOf", fmt.Errorf("failed to query grades: %w", err))
	}

	grades := make([]student.GradeRecord, 0, len(models))
	for _, m := range models {
		grades = append(grades, m.toRecord())
	}
	return grades, nil
}

func (t *studentTx) UpsertGrade(ctx context.Context, studentID int64, subject string, score float64) error {
	model := GradeModel{StudentID: studentID, Subject: subject, Score: score}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "subject"}},
			DoUpdates: clause.AssignmentColumns([]string{"score"}),
		}).
		Create(&model).Error
	if err != nil {
		if isCheckViolation(err) {
			return shared.ErrScoreOutOfRange
		}
		return shared.Storage("UpsertGrade", fmt.Errorf("failed to upsert grade: %w", err))
	}
	return nil
}

type topperRow struct {
	Name       string
	RollNumber string
	Score      float64
}

func (t *studentTx) SubjectTopper(ctx context.Context, subject string) (*student.Topper, error) {
	var rows []topperRow
	err := t.db.WithContext(ctx).
		Table("grades").
		Select("students.name AS name, students.roll_number AS roll_number, grades.score AS score").
		Joins("JOIN students ON students.id = grades.student_id").
		Where("grades.subject = ?", subject).
		Order("grades.score DESC").
		Order("students.roll_number COLLATE BINARY ASC").
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, shared.Storage("SubjectTopper", fmt.Errorf("failed to query topper: %w", err))
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return &student.Topper{Name: rows[0].Name, RollNumber: rows[0].RollNumber, Score: rows[0].Score}, nil
}

func (t *studentTx) SubjectAverage(ctx context.Context, subject string) (float64, int, error) {
	var row struct {
		Avg sql.NullFloat64
		N   int64
	}
	err := t.db.WithContext(ctx).
		Model(&GradeModel{}).
		Select("AVG(score) AS avg, COUNT(*) AS n").
		Where("subject = ?", subject).
		Scan(&row).Error
	if err != nil {
		return 0, 0, shared.Storage("SubjectAverage", fmt.Errorf("failed to query class average: %w", err))
	}

	if !row.Avg.Valid || row.N == 0 {
		return 0, 0, nil
	}
	return row.Avg.Float64, int(row.N), nil
}
