package tracker_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alem-hub/student-tracker/internal/application/tracker"
	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/internal/infrastructure/messaging"
	"github.com/alem-hub/student-tracker/internal/infrastructure/persistence/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	tracker   *tracker.Tracker
	publisher *messaging.RecordingPublisher
	dir       string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.Open(context.Background(), sqlite.Options{Path: filepath.Join(dir, "students.db")})
	require.NoError(t, err)
	store := sqlite.NewStudentStore(db)
	t.Cleanup(func() { _ = store.Close() })

	pub := messaging.NewRecordingPublisher()
	return fixture{
		tracker: tracker.New(tracker.Config{
			Store:      store,
			Publisher:  pub,
			ExportPath: filepath.Join(dir, "backup_students.txt"),
		}),
		publisher: pub,
		dir:       dir,
	}
}

func TestAddStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.tracker.AddStudent(ctx, "  Asha ", " R1 ")
	require.NoError(t, err)
	assert.Equal(t, "Asha", s.Name)
	assert.Equal(t, "R1", s.RollNumber)
	assert.Empty(t, s.Grades)

	_, err = f.tracker.AddStudent(ctx, "Someone Else", "R1")
	assert.True(t, shared.IsConflict(err))

	_, err = f.tracker.AddStudent(ctx, "", "R2")
	assert.ErrorIs(t, err, shared.ErrEmptyName)

	_, err = f.tracker.AddStudent(ctx, "Ravi", "   ")
	assert.ErrorIs(t, err, shared.ErrEmptyRollNumber)

	assert.Equal(t, []shared.EventType{shared.EventStudentAdded}, f.publisher.Types())
}

func TestAddStudent_Limits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, strings.Repeat("n", student.MaxNameLength+1), "R1")
	assert.ErrorIs(t, err, shared.ErrNameTooLong)

	_, err = f.tracker.AddStudent(ctx, "Asha", strings.Repeat("7", student.MaxRollNumberLength+1))
	assert.ErrorIs(t, err, shared.ErrRollNumberTooLong)

	_, err = f.tracker.AddStudent(ctx, "Asha", "2024/R1")
	assert.ErrorIs(t, err, shared.ErrInvalidRollNumber)
	assert.True(t, shared.IsValidation(err))

	// Limits count runes after trimming.
	s, err := f.tracker.AddStudent(ctx, "  "+strings.Repeat("é", student.MaxNameLength)+"  ", strings.Repeat("я", student.MaxRollNumberLength))
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("я", student.MaxRollNumberLength), s.RollNumber)

	_, err = f.tracker.EditStudent(ctx, s.RollNumber, "Asha", "R/2")
	assert.ErrorIs(t, err, shared.ErrInvalidRollNumber)

	_, err = f.tracker.AddGrades(ctx, s.RollNumber, map[string]float64{strings.Repeat("ü", student.MaxSubjectLength): 90})
	require.NoError(t, err)

	assert.Equal(t, []shared.EventType{shared.EventStudentAdded, shared.EventGradesRecorded}, f.publisher.Types())
}

func TestAshaScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)

	s, err := f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 95, "Science": 88})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Math": 95, "Science": 88}, s.Grades)

	avg, err := f.tracker.CalculateAverage(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 91.5, avg)

	events := f.publisher.Events()
	require.Len(t, events, 2)
	recorded, ok := events[1].(shared.GradesRecordedEvent)
	require.True(t, ok)
	assert.Equal(t, 91.5, recorded.Average)
	assert.Equal(t, "R1", recorded.AggregateID())
}

func TestAddGrades_RejectsWholeBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 70})
	require.NoError(t, err)

	for name, batch := range map[string]map[string]float64{
		"above range":   {"Math": 90, "Science": 101},
		"below range":   {"Science": -0.5, "Art": 50},
		"empty subject": {"  ": 50, "Art": 50},
		"duplicate":     {"Art": 50, " Art ": 60},
		"long subject":  {strings.Repeat("S", student.MaxSubjectLength+1): 90},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.tracker.AddGrades(ctx, "R1", batch)
			assert.True(t, shared.IsValidation(err), "got %v", err)

			s, err := f.tracker.ViewStudentDetails(ctx, "R1")
			require.NoError(t, err)
			assert.Equal(t, map[string]float64{"Math": 70}, s.Grades)
		})
	}
}

func TestAddGrades_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 90})
		require.NoError(t, err)
	}

	s, err := f.tracker.ViewStudentDetails(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Math": 90}, s.Grades)

	s, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{" Math ": 60})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Math": 60}, s.Grades)
}

func TestAddGrades_UnknownStudent(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.AddGrades(context.Background(), "R404", map[string]float64{"Math": 200})
	assert.True(t, shared.IsNotFound(err))
	assert.Empty(t, f.publisher.Events())
}

func TestAddGrades_EmptyBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)

	s, err := f.tracker.AddGrades(ctx, "R1", nil)
	require.NoError(t, err)
	assert.Empty(t, s.Grades)
	assert.Equal(t, []shared.EventType{shared.EventStudentAdded}, f.publisher.Types())
}

func TestCalculateAverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)

	avg, err := f.tracker.CalculateAverage(ctx, "R1")
	require.NoError(t, err)
	assert.Zero(t, avg)

	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 80, "Science": 90})
	require.NoError(t, err)
	avg, err = f.tracker.CalculateAverage(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, 85.0, avg)

	_, err = f.tracker.CalculateAverage(ctx, "R404")
	assert.True(t, shared.IsNotFound(err))
}

func TestSubjectAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, st := range []struct{ name, roll string }{{"Ravi", "R2"}, {"Asha", "R1"}, {"Mina", "R3"}} {
		_, err := f.tracker.AddStudent(ctx, st.name, st.roll)
		require.NoError(t, err)
	}
	_, err := f.tracker.AddGrades(ctx, "R2", map[string]float64{"Math": 90, "Art": 70})
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 90})
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R3", map[string]float64{"Art": 90})
	require.NoError(t, err)

	t.Run("topper tie goes to lower roll number", func(t *testing.T) {
		top, ok, err := f.tracker.SubjectTopper(ctx, "Math")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, student.Topper{Name: "Asha", RollNumber: "R1", Score: 90}, top)
	})

	t.Run("topper without grades", func(t *testing.T) {
		_, ok, err := f.tracker.SubjectTopper(ctx, "History")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("class average", func(t *testing.T) {
		avg, ok, err := f.tracker.ClassAverageForSubject(ctx, "Art")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 80.0, avg)
	})

	t.Run("class average without grades", func(t *testing.T) {
		avg, ok, err := f.tracker.ClassAverageForSubject(ctx, "History")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Zero(t, avg)
	})

	t.Run("blank subject", func(t *testing.T) {
		_, _, err := f.tracker.ClassAverageForSubject(ctx, " ")
		assert.True(t, shared.IsValidation(err))
	})
}

func TestEditStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)
	_, err = f.tracker.AddStudent(ctx, "Ravi", "R2")
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 95})
	require.NoError(t, err)

	s, err := f.tracker.EditStudent(ctx, "R1", "Asha K", "R10")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", s.Name)
	assert.Equal(t, "R10", s.RollNumber)
	assert.Equal(t, map[string]float64{"Math": 95}, s.Grades)

	_, err = f.tracker.ViewStudentDetails(ctx, "R1")
	assert.True(t, shared.IsNotFound(err))

	s, err = f.tracker.EditStudent(ctx, "R10", "Asha", "R10")
	require.NoError(t, err)
	assert.Equal(t, "Asha", s.Name)

	_, err = f.tracker.EditStudent(ctx, "R10", "Asha", "R2")
	assert.True(t, shared.IsConflict(err))

	_, err = f.tracker.EditStudent(ctx, "R404", "X", "R5")
	assert.True(t, shared.IsNotFound(err))

	updated := f.publisher.Events()[len(f.publisher.Events())-1]
	assert.Equal(t, shared.EventStudentUpdated, updated.EventType())
}

func TestDeleteStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 95})
	require.NoError(t, err)

	require.NoError(t, f.tracker.DeleteStudent(ctx, "R1"))

	_, err = f.tracker.ViewStudentDetails(ctx, "R1")
	assert.True(t, shared.IsNotFound(err))

	_, ok, err := f.tracker.ClassAverageForSubject(ctx, "Math")
	require.NoError(t, err)
	assert.False(t, ok, "grades must be removed with the student")

	assert.True(t, shared.IsNotFound(f.tracker.DeleteStudent(ctx, "R1")))

	// The roll number is free again.
	_, err = f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)
}

func TestListStudents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.tracker.ListStudents(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.tracker.AddStudent(ctx, "Ravi", "R2")
	require.NoError(t, err)
	_, err = f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)

	list, err = f.tracker.ListStudents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "R2", list[0].RollNumber)
	assert.Equal(t, "R1", list[1].RollNumber)
}

func TestExportToTxt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.tracker.AddStudent(ctx, "Asha", "R1")
	require.NoError(t, err)
	_, err = f.tracker.AddGrades(ctx, "R1", map[string]float64{"Math": 95, "Science": 88})
	require.NoError(t, err)
	_, err = f.tracker.AddStudent(ctx, "Ravi", "R2")
	require.NoError(t, err)

	target := filepath.Join(f.dir, "out.txt")
	require.NoError(t, os.WriteFile(target, []byte("stale content that must disappear\nmore\nmore\n"), 0o644))

	path, err := f.tracker.ExportToTxt(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, target, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, strings.HasSuffix(string(data), "\n"))

	lines := strings.Split(string(data), "\n")
	require.Len(t, lines, 2)

	list, err := f.tracker.ListStudents(ctx)
	require.NoError(t, err)
	for i, line := range lines {
		var got student.Info
		require.NoError(t, json.Unmarshal([]byte(line), &got))
		want := list[i].Info()
		assert.Equal(t, want.Name, got.Name)
		assert.Equal(t, want.RollNumber, got.RollNumber)
		assert.Equal(t, want.Average, got.Average)
		assert.Equal(t, len(want.Grades), len(got.Grades))
		for subject, score := range want.Grades {
			assert.Equal(t, score, got.Grades[subject])
		}
	}
	assert.Contains(t, lines[0], `"average":91.5`)
}

func TestExportToTxt_DefaultPath(t *testing.T) {
	f := newFixture(t)

	path, err := f.tracker.ExportToTxt(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "backup_students.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestExportToTxt_UnwritablePath(t *testing.T) {
	f := newFixture(t)

	_, err := f.tracker.ExportToTxt(context.Background(), filepath.Join(f.dir, "missing", "out.txt"))
	assert.True(t, shared.IsStorage(err))
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t)
	f.publisher.Err = errors.New("broker down")

	s, err := f.tracker.AddStudent(context.Background(), "Asha", "R1")
	require.NoError(t, err)
	assert.Equal(t, "R1", s.RollNumber)
	assert.Len(t, f.publisher.Events(), 1)
}

func TestParseGradeEntry(t *testing.T) {
	subject, score, err := tracker.ParseGradeEntry(" Math = 95.5 ")
	require.NoError(t, err)
	assert.Equal(t, "Math", subject)
	assert.Equal(t, 95.5, score)

	for _, line := range []string{"Math", "Math=abc", "=90", "Math=101", "Math=-1", "Math=NaN"} {
		_, _, err := tracker.ParseGradeEntry(line)
		assert.True(t, shared.IsValidation(err), "line %q", line)
	}
}

func TestNew_RequiresStore(t *testing.T) {
	assert.Panics(t, func() { tracker.New(tracker.Config{}) })
}
