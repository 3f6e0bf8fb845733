package question

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questions(sequences ...int) []*Question {
	qs := make([]*Question, 0, len(sequences))
	for i, seq := range sequences {
		qs = append(qs, &Question{ID: int64(i + 1), RegionID: 1, Sequence: seq, Content: "q"})
	}
	return qs
}

func TestSelectFollowsSequenceOrder(t *testing.T) {
	// stored out of order: IDs 1,2,3 carry sequences 20,0,10
	qs := questions(20, 0, 10)

	got, err := Select(qs, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Sequence)

	got, err = Select(qs, 2)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Sequence)

	got, err = Select(qs, 3)
	require.NoError(t, err)
	assert.Equal(t, 20, got.Sequence)

	// input order untouched
	assert.Equal(t, 20, qs[0].Sequence)
}

func TestSelectIsPeriodic(t *testing.T) {
	for n := 1; n <= 6; n++ {
		seqs := make([]int, n)
		for i := range seqs {
			seqs[i] = (i * 7) % 13
		}
		qs := questions(seqs...)
		for k := 1; k <= 3*n; k++ {
			a, err := Select(qs, k)
			require.NoError(t, err)
			b, err := Select(qs, k+n)
			require.NoError(t, err)
			assert.Same(t, a, b, "n=%d k=%d", n, k)
		}
	}
}

func TestSelectEmpty(t *testing.T) {
	got, err := Select(nil, 3)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrNoQuestionsConfigured)

	_, err = Select([]*Question{}, 1)
	assert.ErrorIs(t, err, ErrNoQuestionsConfigured)
}

func TestSelectClampsCycleBelowOne(t *testing.T) {
	qs := questions(1, 2, 3)
	got, err := Select(qs, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Sequence)
}
