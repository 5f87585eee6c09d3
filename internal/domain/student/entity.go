package student

import (
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Границы допустимой оценки (включительно).
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// ValidateScore проверяет, что оценка конечна и лежит в [0, 100].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < MinScore || score > MaxScore {
		return shared.ErrScoreOutOfRange
	}
	return nil
}

// Максимальные длины в символах после обрезки пробелов.
// Совпадают с размерами колонок в обоих хранилищах.
const (
	MaxNameLength       = 120
	MaxRollNumberLength = 50
	MaxSubjectLength    = 50
)

// NormalizeSubject обрезает пробелы и проверяет, что предмет не пустой.
func NormalizeSubject(subject string) (string, error) {
	s := strings.TrimSpace(subject)
	if s == "" {
		return "", shared.ErrEmptySubject
	}
	if utf8.RuneCountInString(s) > MaxSubjectLength {
		return "", shared.ErrSubjectTooLong
	}
	return s, nil
}

// NormalizeName обрезает пробелы и проверяет имя.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return "", shared.ErrEmptyName
	}
	if utf8.RuneCountInString(n) > MaxNameLength {
		return "", shared.ErrNameTooLong
	}
	return n, nil
}

// NormalizeRollNumber обрезает пробелы и проверяет номер.
// Номер используется как сегмент пути в HTTP API, поэтому '/' запрещён.
func NormalizeRollNumber(rollNumber string) (string, error) {
	r := strings.TrimSpace(rollNumber)
	if r == "" {
		return "", shared.ErrEmptyRollNumber
	}
	if utf8.RuneCountInString(r) > MaxRollNumberLength {
		return "", shared.ErrRollNumberTooLong
	}
	if strings.Contains(r, "/") {
		return "", shared.ErrInvalidRollNumber
	}
	return r, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT (value object)
// ══════════════════════════════════════════════════════════════════════════════

// Student - снимок студента и его оценок в памяти.
// Собирается заново из хранилища при каждом чтении и никогда не является источником истины.
type Student struct {
	// Name - имя студента.
	Name string

	// RollNumber - уникальный внешний идентификатор студента.
	RollNumber string

	// Grades - оценки по предметам; каждый предмет встречается один раз.
	Grades map[string]float64
}

// New создаёт студента без оценок.
func New(name, rollNumber string) *Student {
	return &Student{
		Name:       name,
		RollNumber: rollNumber,
		Grades:     make(map[string]float64),
	}
}

// AddGrade добавляет или перезаписывает оценку по предмету (только в памяти).
func (s *Student) AddGrade(subject string, score float64) error {
	if err := ValidateScore(score); err != nil {
		return err
	}
	if s.Grades == nil {
		s.Grades = make(map[string]float64)
	}
	s.Grades[subject] = score
	return nil
}

// Average возвращает среднее арифметическое всех оценок.
// Для студента без оценок среднее равно 0.
func (s *Student) Average() float64 {
	if len(s.Grades) == 0 {
		return 0
	}
	var sum float64
	for _, subject := range s.Subjects() {
		sum += s.Grades[subject]
	}
	return sum / float64(len(s.Grades))
}

// Subjects возвращает предметы в алфавитном порядке.
func (s *Student) Subjects() []string {
	subjects := make([]string, 0, len(s.Grades))
	for subject := range s.Grades {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Info - каноническое внешнее представление студента.
// Используется для веба, консоли и экспорта.
type Info struct {
	Name       string             `json:"name"`
	RollNumber string             `json:"roll_number"`
	Grades     map[string]float64 `json:"grades"`
	Average    float64            `json:"average"`
}

// Info возвращает структурированный снимок студента.
func (s *Student) Info() Info {
	grades := make(map[string]float64, len(s.Grades))
	for subject, score := range s.Grades {
		grades[subject] = score
	}
	return Info{
		Name:       s.Name,
		RollNumber: s.RollNumber,
		Grades:     grades,
		Average:    s.Average(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TOPPER
// ══════════════════════════════════════════════════════════════════════════════

// Topper - лучший результат по предмету.
type Topper struct {
	Name       string  `json:"name"`
	RollNumber string  `json:"roll_number"`
	Score      float64 `json:"score"`
}
