package embed

import (
	"context"
	"io"
	"log"
	"math"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder()

	a, err := e.Embed(context.Background(), "artificial intelligence")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}
	b, err := e.Embed(context.Background(), "artificial intelligence")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	if len(a) != e.Dimension() {
		t.Fatalf("vector length = %d, want %d", len(a), e.Dimension())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text produced different vectors at %d", i)
		}
	}
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder()
	v, err := e.Embed(context.Background(), "some talk description")
	if err != nil {
		t.Fatalf("embed failed: %v", err)
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-3 {
		t.Errorf("vector norm = %v, want 1", math.Sqrt(sum))
	}
}

func TestHashEmbedderDistinctTexts(t *testing.T) {
	e := NewHashEmbedder()
	a, _ := e.Embed(context.Background(), "climate change")
	b, _ := e.Embed(context.Background(), "sourdough bread")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	e := NewHashEmbedder()
	if _, err := e.EmbedBatch(context.Background(), nil); err == nil {
		t.Fatal("expected an error for an empty batch")
	}
}

func TestEmbedBatchRowAligned(t *testing.T) {
	e := NewHashEmbedder()
	texts := []string{"first", "second", "third"}

	vectors, err := e.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("batch embed failed: %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, text := range texts {
		single, _ := e.Embed(context.Background(), text)
		for j := range single {
			if vectors[i][j] != single[j] {
				t.Fatalf("batch vector %d differs from single embed of %q", i, text)
			}
		}
	}
}

func TestConfigName(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{Type: "hash"}, "hash"},
		{Config{}, "hash"},
		{Config{Type: "bert", ModelPath: "/models/minilm.bin"}, "bert:/models/minilm.bin"},
		{Config{Type: "openai", Model: "text-embedding-3-large"}, "openai:text-embedding-3-large"},
		{Config{Type: "openai"}, "openai:text-embedding-3-small"},
	}
	for _, tc := range cases {
		if got := tc.cfg.Name(); got != tc.want {
			t.Errorf("Name(%+v) = %q, want %q", tc.cfg, got, tc.want)
		}
	}
}

func TestNewUnknownType(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if _, err := New(Config{Type: "quantum"}, logger); err == nil {
		t.Fatal("expected an error for an unknown embedder type")
	}
}

func TestNewHashFromConfig(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	e, err := New(Config{Type: "hash"}, logger)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if e.Name() != "hash" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestNewBertRequiresModelPath(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if _, err := New(Config{Type: "bert"}, logger); err == nil {
		t.Fatal("expected an error when no model path is configured")
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	if _, err := New(Config{Type: "openai"}, logger); err == nil {
		t.Fatal("expected an error when no API key is configured")
	}
}
