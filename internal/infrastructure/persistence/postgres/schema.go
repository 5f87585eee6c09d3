package postgres

import (
	"context"
	"fmt"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEMA
// Idempotent bootstrap, equivalent of "create all tables". There is no
// versioning: every statement is IF NOT EXISTS.
// ══════════════════════════════════════════════════════════════════════════════

const schemaSQL = `
CREATE TABLE IF NOT EXISTS students (
    id BIGSERIAL PRIMARY KEY,
    name VARCHAR(120) NOT NULL,
    roll_number VARCHAR(50) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_students_roll_number UNIQUE (roll_number)
);

CREATE TABLE IF NOT EXISTS grades (
    id BIGSERIAL PRIMARY KEY,
    student_id BIGINT NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    subject VARCHAR(50) NOT NULL,
    score DOUBLE PRECISION NOT NULL,

    CONSTRAINT uq_grades_student_subject UNIQUE (student_id, subject),
    CONSTRAINT chk_grades_score CHECK (score >= 0 AND score <= 100)
);

-- Topper and class-average lookups filter by subject
CREATE INDEX IF NOT EXISTS idx_grades_subject_score ON grades(subject, score DESC);
`

// EnsureSchema creates the students and grades tables if they are missing.
func EnsureSchema(ctx context.Context, conn *Connection) error {
	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: failed to ensure schema: %w", err)
	}
	return nil
}
