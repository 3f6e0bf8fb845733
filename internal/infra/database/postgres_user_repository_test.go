package database

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"question_rotation_bot/internal/domain/user"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{"id", "telegram_id", "name", "region_id", "created_at", "updated_at"}

func TestUserCreateAndLookup(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(int64(1001), "Ana", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE telegram_id = $1")).
		WithArgs(int64(1001)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(int64(1), int64(1001), "Ana", int64(4), now, now))

	u := &user.User{TelegramID: 1001, Name: "Ana", RegionID: 4}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(1), u.ID)

	got, err := repo.GetByTelegramID(context.Background(), 1001)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.RegionID)
	assert.Equal(t, "Ana", got.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateErrors(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"duplicate telegram id", pgUniqueViolation, ErrDuplicateTelegramID},
		{"missing region", pgForeignKeyViolation, ErrRegionReferenceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewPostgresUserRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
				WithArgs(int64(1001), "Ana", int64(4)).
				WillReturnError(&pq.Error{Code: tt.code})

			err := repo.Create(context.Background(), &user.User{TelegramID: 1001, Name: "Ana", RegionID: 4})
			assert.ErrorIs(t, err, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserGetByTelegramIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE telegram_id = $1")).
		WithArgs(int64(77)).
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByTelegramID(context.Background(), 77)
	assert.Nil(t, u)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).AddRow(int64(3), int64(1001), "Ana", int64(4), now, now))

	u, err := repo.GetByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), u.TelegramID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDeleteByTelegramID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE telegram_id = $1")).
		WithArgs(int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE telegram_id = $1")).
		WithArgs(int64(1001)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.DeleteByTelegramID(context.Background(), 1001))
	assert.ErrorIs(t, repo.DeleteByTelegramID(context.Background(), 1001), ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
