package scheduler

import (
	"time"
)

// job is the single pending transition of one region.
type job struct {
	regionID int64
	at       time.Time
	index    int // position in the heap, maintained by jobQueue
}

// jobQueue is a min-heap of jobs ordered by fire instant (container/heap.Interface).
type jobQueue []*job

func (q jobQueue) Len() int { return len(q) }

func (q jobQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].regionID < q[j].regionID
	}
	return q[i].at.Before(q[j].at)
}

func (q jobQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *jobQueue) Push(x any) {
	j := x.(*job)
	j.index = len(*q)
	*q = append(*q, j)
}

func (q *jobQueue) Pop() any {
	old := *q
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*q = old[:n-1]
	return j
}
