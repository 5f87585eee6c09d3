package sqlite

import (
	"time"

	"github.com/alem-hub/student-tracker/internal/domain/student"
)

// StudentModel is the ORM mapping of the students table.
type StudentModel struct {
	ID         int64  `gorm:"primaryKey"`
	Name       string `gorm:"size:120;not null"`
	RollNumber string `gorm:"size:50;not null;uniqueIndex:uq_students_roll_number"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the GORM default.
func (StudentModel) TableName() string { return "students" }

// GradeModel is the ORM mapping of the grades table.
// The belongs-to relation puts the cascading foreign key on grades.student_id.
type GradeModel struct {
	ID        int64         `gorm:"primaryKey"`
	StudentID int64         `gorm:"not null;uniqueIndex:uq_grades_student_subject"`
	Student   *StudentModel `gorm:"constraint:OnDelete:CASCADE"`
	Subject   string        `gorm:"size:50;not null;uniqueIndex:uq_grades_student_subject;index:idx_grades_subject"`
	Score     float64       `gorm:"not null;check:chk_grades_score,score >= 0 AND score <= 100"`
}

// TableName overrides the GORM default.
func (GradeModel) TableName() string { return "grades" }

func (m StudentModel) toRecord() student.Record {
	return student.Record{ID: m.ID, Name: m.Name, RollNumber: m.RollNumber}
}

func (m GradeModel) toRecord() student.GradeRecord {
	return student.GradeRecord{ID: m.ID, StudentID: m.StudentID, Subject: m.Subject, Score: m.Score}
}
