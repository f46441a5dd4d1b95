package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewPostgresStoreWithDB(db, time.Hour)
	store.now = func() time.Time { return time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC) }
	return store, mock
}

func TestNewPostgresStore(t *testing.T) {
	t.Parallel()
	_, err := NewPostgresStore("", time.Hour)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestPostgresStore_EnsureTable(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "session"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "IDX_session_expire"`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureTable(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()

	t.Run("live-session", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		payload, err := JSONCodec{}.Encode(testData())
		require.NoError(t, err)
		mock.ExpectQuery(`SELECT "sess" FROM "session"`).
			WithArgs("sid-1", store.now()).
			WillReturnRows(sqlmock.NewRows([]string{"sess"}).AddRow(payload))

		got, err := store.Get(context.Background(), "sid-1")
		require.NoError(t, err)
		assert.Equal(t, testData(), got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing-or-expired", func(t *testing.T) {
		t.Parallel()
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT "sess" FROM "session"`).
			WithArgs("sid-1", store.now()).
			WillReturnError(sql.ErrNoRows)

		_, err := store.Get(context.Background(), "sid-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPostgresStore_Save(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	payload, err := JSONCodec{}.Encode(testData())
	require.NoError(t, err)
	mock.ExpectExec(`INSERT INTO "session"`).
		WithArgs("sid-1", payload, store.now().Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Save(context.Background(), "sid-1", testData()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Destroy(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "session" WHERE "sid"`).
		WithArgs("sid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Destroy(context.Background(), "sid-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PruneExpired(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM "session" WHERE "expire"`).
		WithArgs(store.now()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.PruneExpired(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
