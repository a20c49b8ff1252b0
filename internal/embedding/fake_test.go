package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeIsDeterministic(t *testing.T) {
	f := NewFake(8)
	a, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	b, err := f.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFakeIsUnitNormalized(t *testing.T) {
	f := NewFake(16)
	v, err := f.Embed(context.Background(), "some memory content")
	require.NoError(t, err)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	assert.InDelta(t, 1.0, norm, 1e-6)
}

func TestFakeDiffersAcrossInputs(t *testing.T) {
	f := NewFake(16)
	a, _ := f.Embed(context.Background(), "alpha")
	b, _ := f.Embed(context.Background(), "beta")
	assert.NotEqual(t, a, b)
}

func TestFakeEmbedBatch(t *testing.T) {
	f := NewFake(4)
	out, err := f.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}
