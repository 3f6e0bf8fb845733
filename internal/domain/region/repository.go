package region

import (
	"context"
)

// Repository defines the operations for persisting and retrieving Region entities.
type Repository interface {
	Create(ctx context.Context, r *Region) error
	GetByID(ctx context.Context, id int64) (*Region, error)
	ListAll(ctx context.Context) ([]*Region, error)
	// Update writes name, timezone, cycle config and active cycle in a single statement, so a
	// reader never sees a new config next to the old active cycle.
	Update(ctx context.Context, r *Region) error
	UpdateActiveCycle(ctx context.Context, id int64, activeCycle int) error
	// Rename changes only the name, leaving the cycle state to the transition path.
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error // cascades to questions and users
}
