package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// PERSISTED ROWS
// Единственное представление строк хранилища. Маппинг в Student делается
// на границе фасада через FromRecords.
// ══════════════════════════════════════════════════════════════════════════════

// Record - строка таблицы students.
type Record struct {
	// ID - суррогатный ключ, назначается хранилищем.
	ID int64

	// Name - имя студента.
	Name string

	// RollNumber - уникальный номер (UNIQUE на уровне хранилища).
	RollNumber string
}

// GradeRecord - строка таблицы grades.
type GradeRecord struct {
	ID        int64
	StudentID int64
	Subject   string
	Score     float64
}

// FromRecords собирает value object из строки студента и его оценок.
func FromRecords(rec Record, grades []GradeRecord) *Student {
	s := New(rec.Name, rec.RollNumber)
	for _, g := range grades {
		s.Grades[g.Subject] = g.Score
	}
	return s
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Store - реляционное хранилище студентов и оценок.
// Уникальность roll_number, уникальность (student, subject) и каскадное
// удаление оценок обеспечиваются самим хранилищем.
type Store interface {
	// WithinTx выполняет fn в одной транзакции: commit при nil, rollback при ошибке или панике.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error

	// Close освобождает ресурсы хранилища.
	Close() error
}

// Tx - операции, доступные внутри транзакции.
type Tx interface {
	// ─────────────────────────────────────────────────────────────────────────
	// Students
	// ─────────────────────────────────────────────────────────────────────────

	// CreateStudent вставляет студента и заполняет rec.ID.
	// Возвращает ErrStudentAlreadyExists при нарушении уникальности.
	CreateStudent(ctx context.Context, rec *Record) error

	// StudentByRoll возвращает студента по roll_number.
	// Возвращает ErrStudentNotFound, если студент не найден.
	StudentByRoll(ctx context.Context, rollNumber string) (*Record, error)

	// UpdateStudent обновляет имя и roll_number.
	// Возвращает ErrStudentNotFound или ErrStudentAlreadyExists.
	UpdateStudent(ctx context.Context, rec *Record) error

	// DeleteStudent удаляет студента; оценки удаляются каскадно.
	DeleteStudent(ctx context.Context, id int64) error

	// ListStudents возвращает всех студентов в естественном порядке (id по возрастанию).
	ListStudents(ctx context.Context) ([]Record, error)

	// ─────────────────────────────────────────────────────────────────────────
	// Grades
	// ─────────────────────────────────────────────────────────────────────────

	// GradesOf возвращает все оценки студента.
	GradesOf(ctx context.Context, studentID int64) ([]GradeRecord, error)

	// UpsertGrade вставляет оценку или обновляет существующую для (student, subject).
	UpsertGrade(ctx context.Context, studentID int64, subject string, score float64) error

	// ─────────────────────────────────────────────────────────────────────────
	// Aggregates
	// ─────────────────────────────────────────────────────────────────────────

	// SubjectTopper возвращает лучший результат по предмету.
	// При равенстве баллов выигрывает меньший roll_number. nil, если оценок нет.
	SubjectTopper(ctx context.Context, subject string) (*Topper, error)

	// SubjectAverage возвращает среднее по предмету и количество оценок.
	SubjectAverage(ctx context.Context, subject string) (avg float64, count int, err error)
}
