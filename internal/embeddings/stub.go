package embeddings

import (
	"context"
	"hash/fnv"
)

const stubDimensions = 8

// StubEmbedder produces deterministic embeddings without a provider. Texts
// hash to stable vectors so similarity search stays exercisable offline.
type StubEmbedder struct{}

// NewStubEmbedder creates the deterministic offline embedder.
func NewStubEmbedder() *StubEmbedder {
	return &StubEmbedder{}
}

func (e *StubEmbedder) Name() string {
	return "stub"
}

func (e *StubEmbedder) Dimensions() int {
	return stubDimensions
}

func (e *StubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		h := fnv.New64a()
		h.Write([]byte(text))
		seed := h.Sum64()

		v := make([]float32, stubDimensions)
		for j := range v {
			seed = seed*6364136223846793005 + 1442695040888963407
			v[j] = float32(seed%1000)/1000.0 - 0.5
		}
		vectors[i] = v
	}
	return vectors, nil
}
