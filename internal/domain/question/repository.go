package question

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Question entities.
type Repository interface {
	Create(ctx context.Context, q *Question) error
	GetByID(ctx context.Context, id int64) (*Question, error)
	// ListByRegion returns the region's questions ordered by ascending sequence.
	ListByRegion(ctx context.Context, regionID int64) ([]*Question, error)
	Delete(ctx context.Context, id int64) error
}
