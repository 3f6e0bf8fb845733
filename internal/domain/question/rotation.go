package question

import (
	"fmt"
	"sort"
)

// ErrNoQuestionsConfigured is returned when a region has nothing to rotate through.
var ErrNoQuestionsConfigured = fmt.Errorf("no questions configured for region")

// Select picks the question active during activeCycle: index (activeCycle-1) mod len(questions)
// over the questions ordered by ascending Sequence. The input slice is not reordered.
func Select(questions []*Question, activeCycle int) (*Question, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestionsConfigured
	}
	if activeCycle < 1 {
		activeCycle = 1
	}

	ordered := make([]*Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Sequence < ordered[j].Sequence
	})

	return ordered[(activeCycle-1)%len(ordered)], nil
}
