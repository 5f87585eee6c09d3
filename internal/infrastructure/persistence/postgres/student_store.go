package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentStore implements student.Store for PostgreSQL.
type StudentStore struct {
	conn *Connection
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(conn *Connection) *StudentStore {
	return &StudentStore{conn: conn}
}

// WithinTx implements student.Store.
func (s *StudentStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx student.Tx) error) error {
	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(ctx, &studentTx{tx: tx})
	})
	return asStorageError("WithinTx", err)
}

// Ping implements student.Store.
func (s *StudentStore) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close implements student.Store.
func (s *StudentStore) Close() error {
	s.conn.Close()
	return nil
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

// ─────────────────────────────────────────────────────────────────────────────
// Transaction-scoped operations
// ─────────────────────────────────────────────────────────────────────────────

type studentTx struct {
	tx pgx.Tx
}

func (t *studentTx) CreateStudent(ctx context.Context, rec *student.Record) error {
	query := `
		INSERT INTO students (name, roll_number)
		VALUES ($1, $2)
		RETURNING id
	`

	err := t.tx.QueryRow(ctx, query, rec.Name, rec.RollNumber).Scan(&rec.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return shared.Storage("CreateStudent", fmt.Errorf("failed to create student: %w", err))
	}

	return nil
}

func (t *studentTx) StudentByRoll(ctx context.Context, rollNumber string) (*student.Record, error) {
	query := `
		SELECT id, name, roll_number
		FROM students
		WHERE roll_number = $1
	`

	var rec student.Record
	err := t.tx.QueryRow(ctx, query, rollNumber).Scan(&rec.ID, &rec.Name, &rec.RollNumber)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, shared.Storage("StudentByRoll", fmt.Errorf("failed to get student: %w", err))
	}

	return &rec, nil
}

func (t *studentTx) UpdateStudent(ctx context.Context, rec *student.Record) error {
	query := `
		UPDATE students SET
			name = $1,
			roll_number = $2,
			updated_at = NOW()
		WHERE id = $3
	`

	result, err := t.tx.Exec(ctx, query, rec.Name, rec.RollNumber, rec.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrStudentAlreadyExists
		}
		return shared.Storage("UpdateStudent", fmt.Errorf("failed to update student: %w", err))
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

func (t *studentTx) DeleteStudent(ctx context.Context, id int64) error {
	result, err := t.tx.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return shared.Storage("DeleteStudent", fmt.Errorf("failed to delete student: %w", err))
	}

	if result.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

func (t *studentTx) ListStudents(ctx context.Context) ([]student.Record, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, name, roll_number FROM students ORDER BY id`)
	if err != nil {
		return nil, shared.Storage("ListStudents", fmt.Errorf("failed to query students: %w", err))
	}
	defer rows.Close()

	var records []student.Record
	for rows.Next() {
		var rec student.Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.RollNumber); err != nil {
			return nil, shared.Storage("ListStudents", fmt.Errorf("failed to scan student row: %w", err))
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.Storage("ListStudents", err)
	}
	return records, nil
}

func (t *studentTx) GradesOf(ctx context.Context, studentID int64) ([]student.GradeRecord, error) {
	query := `
		SELECT id, student_id, subject, score
		FROM grades
		WHERE student_id = $1
		ORDER BY id
	`

	rows, err := t.tx.Query(ctx, query, studentID)
	if err != nil {
		return nil, shared.Storage("GradesOf", fmt.Errorf("failed to query grades: %w", err))
	}
	defer rows.Close()

	var grades []student.GradeRecord
	for rows.Next() {
		var g student.GradeRecord
		if err := rows.Scan(&g.ID, &g.StudentID, &g.Subject, &g.Score); err != nil {
			return nil, shared.Storage("GradesOf", fmt.Errorf("failed to scan grade row: %w", err))
		}
		grades = append(grades, g)
	}

	if err := rows.Err(); err != nil {
		return nil, shared.Storage("GradesOf", err)
	}
	return grades, nil
}

func (t *studentTx) UpsertGrade(ctx context.Context, studentID int64, subject string, score float64) error {
	query := `
		INSERT INTO grades (student_id, subject, score)
		VALUES ($1, $2, $3)
		ON CONFLICT (student_id, subject) DO UPDATE SET score = EXCLUDED.score
	`

	if _, err := t.tx.Exec(ctx, query, studentID, subject, score); err != nil {
		if IsCheckViolation(err) {
			return shared.ErrScoreOutOfRange
		}
		return shared.Storage("UpsertGrade", fmt.Errorf("failed to upsert grade: %w", err))
	}

	return nil
}

func (t *studentTx) SubjectTopper(ctx context.Context, subject string) (*student.Topper, error) {
	query := `
		SELECT s.name, s.roll_number, g.score
		FROM grades g
		JOIN students s ON s.id = g.student_id
		WHERE g.subject = $1
		ORDER BY g.score DESC, s.roll_number COLLATE "C" ASC
		LIMIT 1
	`

	var top student.Topper
	err := t.tx.QueryRow(ctx, query, subject).Scan(&top.Name, &top.RollNumber, &top.Score)
	if err != nil {
		if IsNoRows(err) {
			return nil, nil
		}
		return nil, shared.Storage("SubjectTopper", fmt.Errorf("failed to query topper: %w", err))
	}

	return &top, nil
}

func (t *studentTx) SubjectAverage(ctx context.Context, subject string) (float64, int, error) {
	var (
		avg   *float64
		count int
	)
	err := t.tx.QueryRow(ctx,
		`SELECT AVG(score), COUNT(*) FROM grades WHERE subject = $1`, subject,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, shared.Storage("SubjectAverage", fmt.Errorf("failed to query class average: %w", err))
	}

	if avg == nil {
		return 0, 0, nil
	}
	return *avg, count, nil
}
