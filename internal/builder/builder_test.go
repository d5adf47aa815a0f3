package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixturesnap/fixturesnap/internal/config"
	"github.com/fixturesnap/fixturesnap/internal/database/postgres"
	"github.com/fixturesnap/fixturesnap/internal/serialize"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		FixturesDir: filepath.Join(dir, "fixtures"),
		TmpDir:      filepath.Join(dir, "tmp"),
		Database:    config.Database{Provider: "postgresql", URLEnv: "DATABASE_URL"},
	}
	require.NoError(t, os.MkdirAll(cfg.FixturesDir, 0755))
	return cfg
}

func newMock(t *testing.T) (*postgres.Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewWithDB(db), mock
}

func expectClean(mock sqlmock.Sqlmock, tables ...string) {
	mock.ExpectExec("SET session_replication_role = replica").
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, table := range tables {
		mock.ExpectExec(`DELETE FROM "` + table + `"`).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec("SET session_replication_role = DEFAULT").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func columnRows(defs ...[4]interface{}) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"column_name", "udt_name", "is_nullable", "is_primary"})
	for _, def := range defs {
		rows.AddRow(def[0], def[1], def[2], def[3])
	}
	return rows
}

func readFixture(t *testing.T, cfg *config.Config, table string) map[string]map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.FixturesDir, table+".yml"))
	require.NoError(t, err)
	decoded, err := serialize.DecodeFixture(data)
	require.NoError(t, err)
	return decoded
}

func TestGenerateRegisteredNameWinsOverNameColumn(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"magical_creatures"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error {
		if _, err := db.ExecContext(ctx, `INSERT INTO magical_creatures (id, name) VALUES (1, 'Gnorbert')`); err != nil {
			return err
		}
		rec.Register("king_of_gnomes", "magical_creatures", map[string]interface{}{"id": 1})
		return nil
	}

	adapter, mock := newMock(t)
	expectClean(mock, "magical_creatures")
	mock.ExpectExec("INSERT INTO magical_creatures").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("information_schema.columns").
		WithArgs("magical_creatures").
		WillReturnRows(columnRows(
			[4]interface{}{"id", "int8", "NO", true},
			[4]interface{}{"name", "varchar", "YES", false},
		))
	mock.ExpectQuery(`SELECT "id", "name" FROM "magical_creatures" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Gnorbert"))

	err := New(cfg, adapter).Generate(context.Background(), false)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	decoded := readFixture(t, cfg, "magical_creatures")
	require.Contains(t, decoded, "king_of_gnomes", "registered binding wins over name-column inference")
	assert.Equal(t, "Gnorbert", decoded["king_of_gnomes"]["name"])

	// A performed build records its fingerprint.
	_, err = os.Stat(cfg.FingerprintPath())
	assert.NoError(t, err)
}

func TestGenerateDisambiguatesDuplicateKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error {
		return nil
	}
	require.NoError(t, cfg.NameModelWith("users", func(attrs map[string]interface{}, index string) string {
		return "same_key"
	}))

	adapter, mock := newMock(t)
	expectClean(mock, "users")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("users").
		WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
	mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)))

	err := New(cfg, adapter).Generate(context.Background(), false)
	require.NoError(t, err)

	decoded := readFixture(t, cfg, "users")
	require.Len(t, decoded, 2)
	assert.Contains(t, decoded, "same_key")
	assert.Contains(t, decoded, "same_key_dup001")
}

func TestGeneratePopulationFailureWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error {
		return errors.New("unique constraint violated")
	}

	adapter, mock := newMock(t)
	expectClean(mock, "users")

	err := New(cfg, adapter).Generate(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "population failed")

	// No partial fixture state and no fingerprint: the next run retries.
	_, statErr := os.Stat(filepath.Join(cfg.FixturesDir, "users.yml"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(cfg.FingerprintPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestGeneratePopulationPanicIsContained(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error {
		panic("factory blew up")
	}

	adapter, mock := newMock(t)
	expectClean(mock, "users")

	err := New(cfg, adapter).Generate(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "factory blew up")
}

func TestGenerateSkipsWhenFingerprintMatches(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.UseSHA1Digests = true

	tracked := filepath.Join(cfg.TmpDir, "factory.go")
	require.NoError(t, os.MkdirAll(cfg.TmpDir, 0755))
	require.NoError(t, os.WriteFile(tracked, []byte("package fixtures\n"), 0644))
	cfg.FilesToCheck = []string{tracked}

	// First run: full build against an empty table.
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error { return nil }
	adapter, mock := newMock(t)
	expectClean(mock, "users")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("users").
		WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
	mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, New(cfg, adapter).Generate(context.Background(), false))
	require.NoError(t, mock.ExpectationsWereMet())

	// Second run: nothing changed, so no database activity at all. The mock
	// has no remaining expectations and would fail on any call.
	require.NoError(t, New(cfg, adapter).Generate(context.Background(), false))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateForceRebuildsDespiteFreshFingerprint(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.UseSHA1Digests = true
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error { return nil }

	adapter, mock := newMock(t)
	for i := 0; i < 2; i++ {
		expectClean(mock, "users")
		mock.ExpectQuery("information_schema.columns").
			WithArgs("users").
			WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
		mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
	}

	require.NoError(t, New(cfg, adapter).Generate(context.Background(), true))
	require.NoError(t, New(cfg, adapter).Generate(context.Background(), true))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateWriteEmptyFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.WriteEmptyFiles = true
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error { return nil }

	adapter, mock := newMock(t)
	expectClean(mock, "users")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("users").
		WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
	mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, New(cfg, adapter).Generate(context.Background(), false))

	decoded := readFixture(t, cfg, "users")
	assert.Empty(t, decoded, "zero-row table still gets a deterministic artifact")
}

func TestGenerateAfterBuildHook(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error { return nil }

	called := false
	cfg.AfterBuild = func() error {
		called = true
		return nil
	}

	adapter, mock := newMock(t)
	expectClean(mock, "users")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("users").
		WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
	mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	require.NoError(t, New(cfg, adapter).Generate(context.Background(), false))
	assert.True(t, called)
}

func TestGenerateAfterBuildHookFailurePropagates(t *testing.T) {
	cfg := testConfig(t)
	cfg.Tables = []string{"users"}
	cfg.Populate = func(ctx context.Context, db config.Execer, rec config.Registrar) error { return nil }
	cfg.AfterBuild = func() error { return errors.New("webpack died") }

	adapter, mock := newMock(t)
	expectClean(mock, "users")
	mock.ExpectQuery("information_schema.columns").
		WithArgs("users").
		WillReturnRows(columnRows([4]interface{}{"id", "int8", "NO", true}))
	mock.ExpectQuery(`SELECT "id" FROM "users" ORDER BY "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := New(cfg, adapter).Generate(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after-build hook failed")
}
