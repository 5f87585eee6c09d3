package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExporter struct {
	paths []string
	err   error
}

func (f *fakeExporter) ExportToTxt(_ context.Context, path string) (string, error) {
	f.paths = append(f.paths, path)
	if f.err != nil {
		return "", f.err
	}
	if path == "" {
		path = "backup_students.txt"
	}
	return path, nil
}

func TestBackupJob(t *testing.T) {
	exp := &fakeExporter{}
	job := NewBackupJob(exp, "nightly.txt", nil)

	assert.Equal(t, "backup", job.Name())
	assert.NotEmpty(t, job.Description())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, []string{"nightly.txt"}, exp.paths)

	exp.err = errors.New("read-only file system")
	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")
}
