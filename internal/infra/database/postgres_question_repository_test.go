package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"question_rotation_bot/internal/domain/question"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuestionListByRegionOrdersBySequence(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresQuestionRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY sequence ASC")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "region_id", "content", "sequence", "created_at", "updated_at"}).
			AddRow(int64(2), int64(4), "first", 0, now, now).
			AddRow(int64(1), int64(4), "second", 5, now, now))

	qs, err := repo.ListByRegion(context.Background(), 4)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "first", qs[0].Content)
	assert.Equal(t, 5, qs[1].Sequence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuestionCreateErrors(t *testing.T) {
	tests := []struct {
		name string
		code pq.ErrorCode
		want error
	}{
		{"duplicate sequence", pgUniqueViolation, ErrDuplicateSequence},
		{"missing region", pgForeignKeyViolation, ErrRegionReferenceMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewPostgresQuestionRepository(db)

			mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO questions")).
				WithArgs(int64(4), "what?", 1).
				WillReturnError(&pq.Error{Code: tt.code})

			err := repo.Create(context.Background(), &question.Question{RegionID: 4, Content: "what?", Sequence: 1})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestQuestionDeleteNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresQuestionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM questions WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.Delete(context.Background(), 7), ErrQuestionNotFound)
}
