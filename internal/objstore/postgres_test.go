package objstore

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresWithPool(mock), mock
}

func TestPostgresStore_FetchFile_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT content FROM documents WHERE key = \$1`).
		WithArgs("athletes/lookup.json").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FetchFile(context.Background(), "athletes/lookup.json")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchFile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT content FROM documents`).
		WithArgs("a.json").
		WillReturnRows(pgxmock.NewRows([]string{"content"}).AddRow([]byte(`{"ok":true}`)))

	data, err := s.FetchFile(context.Background(), "a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(data))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_WriteFile_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(key\) DO UPDATE`).
		WithArgs("clean/2025/events/abc.json", []byte("{}"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.WriteFile(context.Background(), "clean/2025/events/abc.json", []byte("{}")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FetchDirectoryFiles(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key FROM documents WHERE key LIKE \$1`).
		WithArgs(`raw/2025/%`).
		WillReturnRows(pgxmock.NewRows([]string{"key"}).
			AddRow("raw/2025/a.json").
			AddRow("raw/2025/manifest/x.json"))

	listing, err := s.FetchDirectoryFiles(context.Background(), "raw/2025/")
	require.NoError(t, err)
	assert.Equal(t, []string{"raw/2025/a.json"}, listing.Files)
	assert.Equal(t, []string{"raw/2025/manifest/"}, listing.Subdirectories)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteFile(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM documents WHERE key = \$1`).
		WithArgs("raw/2025/old.json").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.DeleteFile(context.Background(), "raw/2025/old.json"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePrefix_EscapesWildcards(t *testing.T) {
	assert.Equal(t, `raw/2025\_x/%`, likePrefix("raw/2025_x/"))
	assert.Equal(t, `a\%b%`, likePrefix("a%b"))
}
