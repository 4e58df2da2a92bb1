package embeddings

import (
	"context"
	"testing"
)

func TestStubEmbedderIsDeterministic(t *testing.T) {
	e := NewStubEmbedder()
	ctx := context.Background()

	a, err := e.Embed(ctx, []string{"stand A1", "terminal 2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := e.Embed(ctx, []string{"stand A1", "terminal 2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range a {
		if len(a[i]) != e.Dimensions() {
			t.Fatalf("expected %d dimensions, got %d", e.Dimensions(), len(a[i]))
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatal("stub embeddings must be stable per text")
			}
		}
	}

	// Distinct texts should not collide onto identical vectors.
	same := true
	for j := range a[0] {
		if a[0][j] != a[1][j] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical stub vectors")
	}
}

func TestFactoryFallsBackToStub(t *testing.T) {
	e, err := NewEmbedder("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Name() != "stub" {
		t.Errorf("expected stub embedder, got %q", e.Name())
	}
}

func TestFactoryRejectsUnknownProvider(t *testing.T) {
	if _, err := NewEmbedder("mystery", "m"); err == nil {
		t.Error("expected error for unknown embedding provider")
	}
}
