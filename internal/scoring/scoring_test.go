package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdentical(t *testing.T) {
	a := []float32{1, 0, 0}
	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
}

func TestCosineOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)
}

func TestCosineMismatchedLength(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
}

func TestRecencyZeroDaysIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, Recency(0, 0.05, 0.5), 1e-9)
}

func TestRecencyDecaysSlowerWithImportance(t *testing.T) {
	low := Recency(30, 0.05, 0.0)
	high := Recency(30, 0.05, 1.0)
	assert.Greater(t, high, low)
}

func TestFrequencyZeroMaxIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Frequency(5, 0))
}

func TestFrequencyAtMaxIsOne(t *testing.T) {
	assert.InDelta(t, 1.0, Frequency(10, 10), 1e-9)
}

func TestUsefulnessSaturatesAtFive(t *testing.T) {
	assert.InDelta(t, 1.0, Usefulness(5), 1e-9)
	assert.InDelta(t, 1.0, Usefulness(50), 1e-9)
}

func TestUsefulnessZeroIsZero(t *testing.T) {
	assert.Equal(t, 0.0, Usefulness(0))
}

func TestReciprocalRankFusionOrdersByFusedScore(t *testing.T) {
	lists := []RankedList{
		{IDs: []string{"a", "b", "c"}, Weight: 0.6},
		{IDs: []string{"b", "a"}, Weight: 0.4},
	}

	results := ReciprocalRankFusion(lists, 60)

	assert.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.Equal(t, "c", results[2].ID)
}

func TestReciprocalRankFusionEmpty(t *testing.T) {
	assert.Empty(t, ReciprocalRankFusion(nil, 60))
}
