package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// Fake is a deterministic in-process Provider for tests and offline
// development: it derives a unit-normalized vector from the FNV hash of the
// input text, so the same text always embeds to the same vector and
// different texts embed to (pseudo-random but stable) different vectors.
// It is never a substitute for semantic similarity — only for exercising
// the pipeline without a real provider.
type Fake struct {
	dims int
}

// NewFake returns a Fake producing vectors of the given dimension.
func NewFake(dims int) *Fake {
	return &Fake{dims: dims}
}

func (f *Fake) Embed(_ context.Context, text string) ([]float32, error) {
	return deterministicVector(text, f.dims), nil
}

func (f *Fake) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *Fake) Dimensions() int {
	return f.dims
}

func deterministicVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	h := fnv.New64a()

	seed := uint64(14695981039346656037) // FNV offset basis
	if text != "" {
		_, _ = h.Write([]byte(text))
		seed = h.Sum64()
	}

	state := seed
	for i := range v {
		// xorshift64 to spread the seed across dims components.
		state ^= state << 13
		state ^= state >> 7
		state ^= state << 17
		v[i] = float32(int64(state)%2000-1000) / 1000.0
	}

	var norm float64
	for _, f := range v {
		norm += float64(f) * float64(f)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}
