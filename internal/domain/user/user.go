package user

import (
	"time"
)

// User is a bot user bound to exactly one region.
type User struct {
	ID         int64
	TelegramID int64
	Name       string
	RegionID   int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
