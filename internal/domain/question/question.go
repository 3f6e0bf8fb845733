package question

import (
	"time"
)

// Question is a single rotation entry of a region. Questions are never mutated after creation.
type Question struct {
	ID        int64     `json:"id"`
	RegionID  int64     `json:"regionId"`
	Content   string    `json:"content"`
	Sequence  int       `json:"sequence"` // unique within the region, rotation order
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
