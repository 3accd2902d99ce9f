package registry_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_toolkit/internal/domain"
	"review_toolkit/internal/registry"
	"review_toolkit/internal/shared"
	"review_toolkit/internal/storage/csvfile"
)

func testDeps(t *testing.T) registry.Deps {
	t.Helper()
	return registry.Deps{
		Config: shared.Config{DBHost: "localhost:3306", DBUser: "root", DBName: "wordpress"},
		OpenDB: func(dsn string) (*sql.DB, error) {
			t.Fatalf("unexpected database connection for dsn %s", dsn)
			return nil, nil
		},
	}
}

func TestInvoke_UnknownOperator(t *testing.T) {
	reg := registry.Default(testDeps(t))
	_, err := reg.Invoke(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownOperator)
}

func TestInvoke_MissingRequiredParameter(t *testing.T) {
	reg := registry.Default(testDeps(t))
	_, err := reg.Invoke(context.Background(), "replace-word", map[string]string{"replace": "x", "csv": "a.csv"})

	var missing *domain.MissingParameterError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "search", missing.Name)
}

func TestInvoke_UnknownParameterRejected(t *testing.T) {
	reg := registry.Default(testDeps(t))
	_, err := reg.Invoke(context.Background(), "extract", map[string]string{"product": "42", "bogus": "1"})

	var invalid *domain.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "bogus", invalid.Name)
}

func TestInvoke_ThresholdRangeEnforced(t *testing.T) {
	reg := registry.Default(testDeps(t))
	for _, bad := range []string{"0", "6", "four"} {
		_, err := reg.Invoke(context.Background(), "modify-reviews", map[string]string{
			"csv": "a.csv", "threshold": bad,
		})
		var invalid *domain.InvalidParameterError
		require.ErrorAs(t, err, &invalid, "threshold=%s", bad)
		assert.Equal(t, "threshold", invalid.Name)
	}
}

func TestInvoke_ValidationPrecedesExecution(t *testing.T) {
	// A bad threshold on a nonexistent file must fail on the parameter, not
	// on the missing file: validation runs before any side effect.
	reg := registry.Default(testDeps(t))
	_, err := reg.Invoke(context.Background(), "modify-reviews", map[string]string{
		"csv": filepath.Join(t.TempDir(), "missing.csv"), "threshold": "9",
	})
	var invalid *domain.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestInvoke_TransformOnCSVTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reviews.csv")
	batch := []domain.Review{
		{Author: "Ana", Rating: 2, Body: "meh", Date: time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC), SourceID: "r-1"},
		{Author: "Bob", Rating: 5, Body: "top", Date: time.Date(2024, 5, 17, 9, 31, 0, 0, time.UTC), SourceID: "r-2"},
	}
	require.NoError(t, csvfile.Export(path, batch))

	reg := registry.Default(testDeps(t))
	res, err := reg.Invoke(context.Background(), "modify-reviews", map[string]string{
		"csv": path, "threshold": "4", "seed": "11",
	})
	require.NoError(t, err)
	require.NotNil(t, res.Change)
	assert.Equal(t, 1, res.Change.Changed)
	assert.Equal(t, "modify-reviews", res.Operator)
	assert.NotEmpty(t, res.RunID)

	out, _, err := csvfile.Import(path)
	require.NoError(t, err)
	assert.NotEqual(t, "Ana", out[0].Author)
	assert.Equal(t, "Bob", out[1].Author)
}

func TestInvoke_TransformWithoutTargetRejected(t *testing.T) {
	reg := registry.Default(testDeps(t))
	// post-id defaults to 0 and csv is empty: no target to operate on. The
	// stub OpenDB in testDeps fails the test if a connection is attempted.
	_, err := reg.Invoke(context.Background(), "rename-authors", map[string]string{"seed": "1"})
	var invalid *domain.InvalidParameterError
	require.ErrorAs(t, err, &invalid)
}

func TestInvoke_ImportSchemaMismatchAbortsBeforeWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, writeFile(path, "author,rating\nAna,5\n"))

	deps := testDeps(t)
	dbOpened := false
	deps.OpenDB = func(dsn string) (*sql.DB, error) {
		dbOpened = true
		// sql.Open with the mysql driver does not dial; the import must fail
		// on the schema before any query runs.
		return sql.Open("mysql", dsn)
	}
	reg := registry.Default(deps)
	_, err := reg.Invoke(context.Background(), "insert", map[string]string{
		"csv": path, "post-id": "8348",
	})
	assert.True(t, errors.Is(err, domain.ErrSchemaMismatch), "got %v", err)
	assert.True(t, dbOpened)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

func TestOperators_SortedCatalog(t *testing.T) {
	reg := registry.Default(testDeps(t))
	ops := reg.Operators()
	require.Len(t, ops, 5)
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"extract", "insert", "modify-reviews", "rename-authors", "replace-word"}, names)
}
