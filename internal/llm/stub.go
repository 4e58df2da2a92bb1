package llm

import "context"

// stubCompletion is the fixed payload the stub provider returns. It is a
// valid extraction document so intent parsing keeps working unconfigured.
const stubCompletion = `{"intent":"unknown","confidence":0,"entities":{},"text":"The language model is not configured. Responses are placeholders."}`

// StubProvider is a deterministic offline provider substituted when no real
// provider is configured. It never fails and consumes no tokens.
type StubProvider struct{}

// NewStubProvider creates the deterministic stub provider.
func NewStubProvider() *StubProvider {
	return &StubProvider{}
}

func (p *StubProvider) Name() string {
	return "stub"
}

func (p *StubProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	return &CompletionResponse{
		Content:      stubCompletion,
		InputTokens:  0,
		OutputTokens: 0,
		Model:        "stub",
		FinishReason: "stop",
	}, nil
}

// StubEmbedding is the fixed vector the stub embedder returns for any input.
func StubEmbedding() []float32 {
	v := make([]float32, 8)
	for i := range v {
		v[i] = 0.125
	}
	return v
}
