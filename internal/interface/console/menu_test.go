package console_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alem-hub/student-tracker/internal/application/tracker"
	"github.com/alem-hub/student-tracker/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/student-tracker/internal/interface/console"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) (*tracker.Tracker, string) {
	t.Helper()
	dir := t.TempDir()

	db, err := sqlite.Open(context.Background(), sqlite.Options{Path: filepath.Join(dir, "students.db")})
	require.NoError(t, err)
	store := sqlite.NewStudentStore(db)
	t.Cleanup(func() { _ = store.Close() })

	exportPath := filepath.Join(dir, "backup_students.txt")
	return tracker.New(tracker.Config{Store: store, ExportPath: exportPath}), exportPath
}

func run(t *testing.T, svc tracker.Service, script ...string) string {
	t.Helper()
	in := strings.NewReader(strings.Join(script, "\n") + "\n")
	var out bytes.Buffer
	require.NoError(t, console.NewMenu(svc, in, &out).Run(context.Background()))
	return out.String()
}

func TestMenu_AshaScenario(t *testing.T) {
	svc, _ := newTracker(t)

	out := run(t, svc,
		"1", "Asha", "R1",
		"2", "R1", "Math=95", "Science = 88", "",
		"4", "R1",
		"3", "R1",
		"0",
	)

	assert.Contains(t, out, `Added: {"name":"Asha","roll_number":"R1","grades":{},"average":0}`)
	assert.Contains(t, out, `"grades":{"Math":95,"Science":88},"average":91.5`)
	assert.Contains(t, out, "Average: 91.50")
	assert.Contains(t, out, "Goodbye!")
}

func TestMenu_GradeEntryErrors(t *testing.T) {
	svc, _ := newTracker(t)

	out := run(t, svc,
		"1", "Asha", "R1",
		"2", "R1", "Math95", "Math=abc", "Art=150", "Math=90", "",
		"0",
	)

	assert.Contains(t, out, "Invalid format. Use subject=score")
	assert.Contains(t, out, "Error: grade must be between 0 and 100")
	assert.Contains(t, out, `"grades":{"Math":90}`)
}

func TestMenu_ErrorsDoNotStopLoop(t *testing.T) {
	svc, _ := newTracker(t)

	out := run(t, svc,
		"1", "Asha", "R1",
		"1", "Other", "R1",
		"3", "R404",
		"42",
		"0",
	)

	assert.Contains(t, out, "Error: roll number already exists")
	assert.Contains(t, out, "Error: student not found")
	assert.Contains(t, out, "Invalid choice.")
	assert.Contains(t, out, "Goodbye!")
}

func TestMenu_SubjectQueries(t *testing.T) {
	svc, _ := newTracker(t)

	out := run(t, svc,
		"1", "Ravi", "R2",
		"1", "Asha", "R1",
		"2", "R2", "Math=70", "",
		"2", "R1", "Math=90", "",
		"5", "Math",
		"6", "Math",
		"5", "History",
		"6", "History",
		"0",
	)

	assert.Contains(t, out, "Topper in Math: Asha (R1) - 90")
	assert.Contains(t, out, "Class average for Math: 80.00")
	assert.Equal(t, 2, strings.Count(out, "No data for that subject yet."))
}

func TestMenu_ListEditDeleteExport(t *testing.T) {
	svc, exportPath := newTracker(t)

	out := run(t, svc,
		"8",
		"1", "Asha", "R1",
		"9", "R1", "", "R7",
		"8",
		"7",
		"10", "R7", "n",
		"10", "R7", "y",
		"0",
	)

	assert.Contains(t, out, "No students yet.")
	assert.Contains(t, out, `Updated: {"name":"Asha","roll_number":"R7"`)
	assert.Contains(t, out, "Exported to "+exportPath)
	assert.Contains(t, out, "Cancelled.")
	assert.Contains(t, out, "Deleted R7")

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"roll_number":"R7"`)

	list, err := svc.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMenu_EndOfInput(t *testing.T) {
	svc, _ := newTracker(t)

	out := run(t, svc, "1", "Asha")
	assert.NotContains(t, out, "Goodbye!")

	list, err := svc.ListStudents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}
