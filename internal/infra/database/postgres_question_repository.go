package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"question_rotation_bot/internal/domain/question"
)

// Custom errors
var ErrQuestionNotFound = fmt.Errorf("question not found")
var ErrDuplicateSequence = fmt.Errorf("question with this sequence already exists in the region")

type PostgresQuestionRepository struct {
	db *sql.DB
}

func NewPostgresQuestionRepository(db *sql.DB) *PostgresQuestionRepository {
	return &PostgresQuestionRepository{db: db}
}

func (r *PostgresQuestionRepository) Create(ctx context.Context, q *question.Question) error {
	query := `INSERT INTO questions (region_id, content, sequence)
               VALUES ($1, $2, $3)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, q.RegionID, q.Content, q.Sequence).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrDuplicateSequence
		case isForeignKeyViolation(err):
			return ErrRegionReferenceMissing
		}
		return fmt.Errorf("error creating question: %w", err)
	}
	return nil
}

func (r *PostgresQuestionRepository) GetByID(ctx context.Context, id int64) (*question.Question, error) {
	query := `SELECT id, region_id, content, sequence, created_at, updated_at FROM questions WHERE id = $1`
	q := &question.Question{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&q.ID, &q.RegionID, &q.Content, &q.Sequence, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("error getting question by ID: %w", err)
	}
	return q, nil
}

func (r *PostgresQuestionRepository) ListByRegion(ctx context.Context, regionID int64) ([]*question.Question, error) {
	query := `SELECT id, region_id, content, sequence, created_at, updated_at
               FROM questions WHERE region_id = $1 ORDER BY sequence ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, regionID)
	if err != nil {
		return nil, fmt.Errorf("error listing questions for region: %w", err)
	}
	defer rows.Close()

	questions := make([]*question.Question, 0)
	for rows.Next() {
		q := &question.Question{}
		if err := rows.Scan(&q.ID, &q.RegionID, &q.Content, &q.Sequence, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning question: %w", err)
		}
		questions = append(questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

func (r *PostgresQuestionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM questions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrQuestionNotFound
	}
	return nil
}
