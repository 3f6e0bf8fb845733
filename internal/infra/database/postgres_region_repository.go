package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"question_rotation_bot/internal/domain/region"
)

// Custom errors
var ErrRegionNotFound = fmt.Errorf("region not found")
var ErrDuplicateRegionName = fmt.Errorf("region with this name already exists")

const regionColumns = `id, name, timezone, cycle_duration, start_date, active_cycle, created_at, updated_at`

type PostgresRegionRepository struct {
	db *sql.DB
}

func NewPostgresRegionRepository(db *sql.DB) *PostgresRegionRepository {
	return &PostgresRegionRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegion(row rowScanner) (*region.Region, error) {
	r := &region.Region{}
	err := row.Scan(&r.ID, &r.Name, &r.Timezone, &r.CycleConfig.CycleDuration, &r.CycleConfig.StartDate,
		&r.ActiveCycle, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRegionRepository) Create(ctx context.Context, reg *region.Region) error {
	query := `INSERT INTO regions (name, timezone, cycle_duration, start_date, active_cycle)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, reg.Name, reg.Timezone, reg.CycleConfig.CycleDuration,
		reg.CycleConfig.StartDate, reg.ActiveCycle).Scan(&reg.ID, &reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRegionName
		}
		return fmt.Errorf("error creating region: %w", err)
	}
	return nil
}

func (r *PostgresRegionRepository) GetByID(ctx context.Context, id int64) (*region.Region, error) {
	query := `SELECT ` + regionColumns + ` FROM regions WHERE id = $1`
	reg, err := scanRegion(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRegionNotFound
		}
		return nil, fmt.Errorf("error getting region by ID: %w", err)
	}
	return reg, nil
}

func (r *PostgresRegionRepository) ListAll(ctx context.Context) ([]*region.Region, error) {
	query := `SELECT ` + regionColumns + ` FROM regions ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing regions: %w", err)
	}
	defer rows.Close()

	regions := make([]*region.Region, 0)
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning region: %w", err)
		}
		regions = append(regions, reg)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating regions: %w", err)
	}
	return regions, nil
}

func (r *PostgresRegionRepository) Update(ctx context.Context, reg *region.Region) error {
	query := `UPDATE regions
               SET name = $1, timezone = $2, cycle_duration = $3, start_date = $4, active_cycle = $5, updated_at = NOW()
               WHERE id = $6
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, reg.Name, reg.Timezone, reg.CycleConfig.CycleDuration,
		reg.CycleConfig.StartDate, reg.ActiveCycle, reg.ID).Scan(&reg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRegionNotFound
		}
		if isUniqueViolation(err) {
			return ErrDuplicateRegionName
		}
		return fmt.Errorf("error updating region: %w", err)
	}
	return nil
}

func (r *PostgresRegionRepository) UpdateActiveCycle(ctx context.Context, id int64, activeCycle int) error {
	query := `UPDATE regions SET active_cycle = $1, updated_at = NOW() WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, activeCycle, id)
	if err != nil {
		return fmt.Errorf("error updating region active cycle: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRegionNotFound
	}
	return nil
}

func (r *PostgresRegionRepository) Rename(ctx context.Context, id int64, name string) error {
	query := `UPDATE regions SET name = $1, updated_at = NOW() WHERE id = $2`

	res, err := r.db.ExecContext(ctx, query, name, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateRegionName
		}
		return fmt.Errorf("error renaming region: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRegionNotFound
	}
	return nil
}

func (r *PostgresRegionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM regions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting region: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRegionNotFound
	}
	return nil
}
