package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

// ExportToTxt writes one JSON Info object per student, in store order, to path.
// Lines are newline-joined and the file is overwritten. An empty path selects
// the configured default. The written path is returned.
func (t *Tracker) ExportToTxt(ctx context.Context, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = t.exportPath
	}

	var students []*student.Student
	err := t.store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		var err error
		students, err = snapshotAll(ctx, tx)
		return err
	})
	if err != nil {
		return "", err
	}

	data, err := EncodeSnapshot(students)
	if err != nil {
		return "", shared.Storage("ExportToTxt", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", shared.Storage("ExportToTxt", fmt.Errorf("write %s: %w", path, err))
	}

	t.logger.Info("students exported", logger.String("path", path), logger.Int("count", len(students)))
	return path, nil
}

// EncodeSnapshot renders students in the export line format.
func EncodeSnapshot(students []*student.Student) ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range students {
		line, err := json.Marshal(s.Info())
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", s.RollNumber, err)
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(line)
	}
	return buf.Bytes(), nil
}
