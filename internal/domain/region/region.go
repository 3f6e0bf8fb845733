package region

import (
	"time"
)

const (
	MinCycleDuration     = 1
	MaxCycleDuration     = 365
	DefaultCycleDuration = 7
)

// CycleConfig holds the inputs the active cycle is derived from.
type CycleConfig struct {
	CycleDuration int       // days, MinCycleDuration..MaxCycleDuration
	StartDate     time.Time // first cycle starts here
}

// Region groups users that share one rotating question sequence.
type Region struct {
	ID          int64
	Name        string
	Timezone    string // IANA zone name, e.g. "Asia/Singapore"
	CycleConfig CycleConfig
	// ActiveCycle is the cycle index persisted by the last recompute. It can lag behind the
	// calculator between a cycle boundary and the transition job that follows it.
	ActiveCycle int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ConfigDiffers reports whether any input of the cycle calculation changed between r and other.
func (r *Region) ConfigDiffers(other *Region) bool {
	return r.Timezone != other.Timezone ||
		r.CycleConfig.CycleDuration != other.CycleConfig.CycleDuration ||
		!r.CycleConfig.StartDate.Equal(other.CycleConfig.StartDate)
}
