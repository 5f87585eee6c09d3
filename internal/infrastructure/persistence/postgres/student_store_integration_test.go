//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/alem-hub/student-tracker/internal/domain/shared"
	"github.com/alem-hub/student-tracker/internal/domain/student"
	"github.com/alem-hub/student-tracker/internal/infrastructure/persistence/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStore starts a PostgreSQL container and returns a store on a fresh schema.
func setupStore(t *testing.T) *postgres.StudentStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		// Debian image: the database collation is en_US.utf8, not bytewise.
		"postgres:16",
		tcpostgres.WithDatabase("tracker"),
		tcpostgres.WithUsername("tracker"),
		tcpostgres.WithPassword("tracker"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := postgres.NewConnectionFromURL(ctx, dsn, postgres.PoolOptions{MaxConns: 4})
	require.NoError(t, err)
	require.NoError(t, postgres.EnsureSchema(ctx, conn))
	// Bootstrap must be idempotent.
	require.NoError(t, postgres.EnsureSchema(ctx, conn))

	store := postgres.NewStudentStore(conn)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStudentStore_Postgres(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	var asha student.Record
	err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
		asha = student.Record{Name: "Asha", RollNumber: "R1"}
		if err := tx.CreateStudent(ctx, &asha); err != nil {
			return err
		}
		ravi := student.Record{Name: "Ravi", RollNumber: "R2"}
		if err := tx.CreateStudent(ctx, &ravi); err != nil {
			return err
		}
		for _, g := range []struct {
			id      int64
			subject string
			score   float64
		}{
			{asha.ID, "Math", 90}, {asha.ID, "Math", 95}, {ravi.ID, "Math", 95}, {ravi.ID, "Art", 70},
		} {
			if err := tx.UpsertGrade(ctx, g.id, g.subject, g.score); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	t.Run("unique roll number", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			return tx.CreateStudent(ctx, &student.Record{Name: "Other", RollNumber: "R1"})
		})
		assert.True(t, shared.IsConflict(err))
	})

	t.Run("upsert keeps one row per subject", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			grades, err := tx.GradesOf(ctx, asha.ID)
			require.NoError(t, err)
			require.Len(t, grades, 1)
			assert.Equal(t, 95.0, grades[0].Score)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("topper tie-break and class average", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			top, err := tx.SubjectTopper(ctx, "Math")
			require.NoError(t, err)
			require.NotNil(t, top)
			assert.Equal(t, "R1", top.RollNumber)

			avg, n, err := tx.SubjectAverage(ctx, "Math")
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, 95.0, avg)

			_, n, err = tx.SubjectAverage(ctx, "History")
			require.NoError(t, err)
			assert.Zero(t, n)

			none, err := tx.SubjectTopper(ctx, "History")
			require.NoError(t, err)
			assert.Nil(t, none)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("topper ties compare roll numbers bytewise", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			for _, roll := range []string{"T1", "t0", "T-2"} {
				rec := student.Record{Name: "Tie " + roll, RollNumber: roll}
				require.NoError(t, tx.CreateStudent(ctx, &rec))
				require.NoError(t, tx.UpsertGrade(ctx, rec.ID, "Chemistry", 88))
			}

			top, err := tx.SubjectTopper(ctx, "Chemistry")
			require.NoError(t, err)
			require.NotNil(t, top)
			assert.Equal(t, "T-2", top.RollNumber)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("delete cascades to grades", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			return tx.DeleteStudent(ctx, asha.ID)
		})
		require.NoError(t, err)

		var remaining int
		err = store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			grades, err := tx.GradesOf(ctx, asha.ID)
			remaining = len(grades)
			return err
		})
		require.NoError(t, err)
		assert.Zero(t, remaining)
	})

	t.Run("check constraint rejects out of range", func(t *testing.T) {
		err := store.WithinTx(ctx, func(ctx context.Context, tx student.Tx) error {
			rec, err := tx.StudentByRoll(ctx, "R2")
			if err != nil {
				return err
			}
			return tx.UpsertGrade(ctx, rec.ID, "Math", 101)
		})
		assert.True(t, shared.IsValidation(err))
	})
}
