package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ulpt/internal/server/migrations"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/ulpt/internal/server/repositories/users"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestNewPostgresRepositoryManager(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m, err := NewPostgresRepositoryManager(db)
	require.NoError(t, err)

	orm := m.ORM()
	require.NotNil(t, orm)

	// gorm shares the pool instead of opening its own
	sqlDB, err := orm.DB()
	require.NoError(t, err)
	assert.Same(t, db, sqlDB)

	assert.Implements(t, (*users.Repository)(nil), m.Users(db))
	assert.Implements(t, (*refreshtokens.Repository)(nil), m.RefreshTokens(db))
}

func TestRunMigrations(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := &PostgresRepositoryManager{}

	var gotDir string
	stubGoose(t, func(ctx context.Context, _ *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	})
	require.NoError(t, m.RunMigrations(context.Background(), db))
	assert.Equal(t, ".", gotDir)

	boom := errors.New("boom")
	stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })
	assert.ErrorIs(t, m.RunMigrations(context.Background(), db), boom)
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ddl, err := fs.ReadFile(migrations.Migrations, entries[0])
	require.NoError(t, err)
	for _, table := range []string{"users", "refresh_tokens", "books", "child_profiles", "projects", "book_loans"} {
		assert.Contains(t, string(ddl), "CREATE TABLE "+table, table)
	}
}
