package reverie

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// stubEmbedder returns fixed vectors per text, falling back to def.
type stubEmbedder struct {
	mu    sync.Mutex
	vecs  map[string][]float32
	def   []float32
	err   error
	calls int
}

func (e *stubEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vecs[text]; ok {
		return v, nil
	}
	if e.def == nil {
		return nil, errors.New("no vector for text")
	}
	return e.def, nil
}

func (e *stubEmbedder) Dimension() int { return len(e.def) }

// stubVectors is a canned VectorStore.
type stubVectors struct {
	hits   []VectorHit
	err    error
	stored []string
}

func (v *stubVectors) Store(_ context.Context, text, source string, _ []string) (string, error) {
	v.stored = append(v.stored, source+": "+text)
	return "id", nil
}

func (v *stubVectors) Search(_ context.Context, _ string, topK int, minScore float64) ([]VectorHit, error) {
	if v.err != nil {
		return nil, v.err
	}
	var out []VectorHit
	for _, h := range v.hits {
		if h.Score >= minScore {
			out = append(out, h)
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// stubGenerator records requests and answers with reply or err.
type stubGenerator struct {
	reply string
	err   error
	reqs  []GenerateRequest
}

func (g *stubGenerator) Generate(_ context.Context, req GenerateRequest) (string, error) {
	g.reqs = append(g.reqs, req)
	return g.reply, g.err
}

// stubClassifier returns a fixed result or error.
type stubClassifier struct {
	res ClassifierResult
	err error
}

func (c stubClassifier) Classify(context.Context, string, []ConversationMessage) (ClassifierResult, error) {
	return c.res, c.err
}
