package reverie

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scorerFunc func(ctx context.Context, query string, fragments []string) ([]RelevanceScore, error)

func (f scorerFunc) Score(ctx context.Context, query string, fragments []string) ([]RelevanceScore, error) {
	return f(ctx, query, fragments)
}

func TestRetrieveNothingAvailable(t *testing.T) {
	for name, r := range map[string]*MemoryRetriever{
		"empty backends": NewMemoryRetriever(&stubVectors{}, MapDiarySource{}, KeywordScorer{}, RetrievalConfig{}, zerolog.Nop()),
		"nil backends":   NewMemoryRetriever(nil, nil, nil, RetrievalConfig{}, zerolog.Nop()),
		"search error":   NewMemoryRetriever(&stubVectors{err: errors.New("down")}, nil, KeywordScorer{}, RetrievalConfig{}, zerolog.Nop()),
	} {
		t.Run(name, func(t *testing.T) {
			res := r.Retrieve(context.Background(), "ты помнишь море?", IntentMemoryRecall, nil)
			assert.Empty(t, res.Fragments)
			assert.Zero(t, res.TokenUsage)
			assert.Equal(t, TierNone, res.Tier)
		})
	}
}

func TestRetrieveSemanticAcceptsStrongHits(t *testing.T) {
	vs := &stubVectors{hits: []VectorHit{
		{ID: "f1", Text: "мы гуляли у моря", Score: 0.8, Source: "memories"},
		{Text: "ты смеялся", Score: 0.6},
		{Text: "почти не относится", Score: 0.42},
	}}
	r := NewMemoryRetriever(vs, MapDiarySource{"astra_memories": "мы гуляли у моря"}, KeywordScorer{}, RetrievalConfig{}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "море", IntentMemoryRecall, nil)
	assert.Equal(t, TierSemantic, res.Tier)
	require.Len(t, res.Fragments, 2)
	assert.Equal(t, "memories", res.Fragments[0].Source)
	assert.Equal(t, "f1", res.Fragments[0].ID)
	assert.Equal(t, "vector", res.Fragments[1].Source)
	assert.Equal(t, 0.8, res.Fragments[0].EmotionalWeight)
	assert.Equal(t, EstimateTokens("мы гуляли у моря")+EstimateTokens("ты смеялся"), res.TokenUsage)
}

func TestRetrieveSemanticTopKByIntent(t *testing.T) {
	vs := &stubVectors{hits: []VectorHit{
		{Text: "один", Score: 0.9}, {Text: "два", Score: 0.8}, {Text: "три", Score: 0.7},
	}}
	r := NewMemoryRetriever(vs, nil, nil, RetrievalConfig{}, zerolog.Nop())

	assert.Len(t, r.Retrieve(context.Background(), "q", IntentCasualChat, nil).Fragments, 2)
	assert.Len(t, r.Retrieve(context.Background(), "q", IntentMemoryRecall, nil).Fragments, 3)
}

func TestRetrieveSemanticCapsFragmentText(t *testing.T) {
	long := strings.Repeat("м", 3000)
	r := NewMemoryRetriever(&stubVectors{hits: []VectorHit{{Text: long, Score: 0.9}}}, nil, nil, RetrievalConfig{}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "q", IntentCasualChat, nil)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, 2003, utf8.RuneCountInString(res.Fragments[0].Text))
	assert.True(t, strings.HasSuffix(res.Fragments[0].Text, "..."))
}

func TestRetrieveStopsAtFirstOverflow(t *testing.T) {
	vs := &stubVectors{hits: []VectorHit{
		{Text: strings.Repeat("а", 300), Score: 0.9},
		{Text: strings.Repeat("б", 200), Score: 0.8},
		{Text: strings.Repeat("в", 20), Score: 0.7},
	}}
	r := NewMemoryRetriever(vs, nil, nil, RetrievalConfig{TokenBudget: 100}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "q", IntentMemoryRecall, nil)
	require.Len(t, res.Fragments, 1)
	assert.Equal(t, 75, res.TokenUsage)
	assert.LessOrEqual(t, res.TokenUsage, 100)
}

func TestRetrieveWeakSemanticFallsBackToLexical(t *testing.T) {
	diaries := MapDiarySource{
		"astra_memories":    "Я помню, как мы гуляли у моря.\n\nЯ люблю дождь.",
		"astra_core_prompt": "Я Астра.",
	}
	vs := &stubVectors{hits: []VectorHit{{Text: "слабое совпадение", Score: 0.44}}}
	r := NewMemoryRetriever(vs, diaries, KeywordScorer{}, RetrievalConfig{ChunkSize: 40}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "помнишь море?", IntentCasualChat, nil)
	assert.Equal(t, TierLexical, res.Tier)
	require.Len(t, res.Fragments, 1)
	f := res.Fragments[0]
	assert.Equal(t, "Я помню, как мы гуляли у моря.", f.Text)
	assert.Equal(t, "astra_memories", f.Source)
	assert.InDelta(t, 0.45, f.Relevance, 1e-9)
	assert.Equal(t, EstimateTokens(f.Text), res.TokenUsage)
}

func TestRetrieveLexicalTokenBudget(t *testing.T) {
	var paras []string
	for i := 0; i < 5; i++ {
		paras = append(paras, fmt.Sprintf("%s%d", strings.Repeat("ж", 99), i))
	}
	diaries := MapDiarySource{"astra_memories": strings.Join(paras, "\n\n")}
	all := scorerFunc(func(_ context.Context, _ string, frags []string) ([]RelevanceScore, error) {
		out := make([]RelevanceScore, len(frags))
		for i := range frags {
			out[i] = RelevanceScore{Index: i, Relevance: 1 - float64(i)*0.1}
		}
		return out, nil
	})
	r := NewMemoryRetriever(nil, diaries, all, RetrievalConfig{ChunkSize: 100, TokenBudget: 60}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "привет", IntentCasualChat, nil)
	require.NotEmpty(t, res.Fragments)
	assert.LessOrEqual(t, res.TokenUsage, 60)
	sum := 0
	for _, f := range res.Fragments {
		sum += EstimateTokens(f.Text)
	}
	assert.Equal(t, sum, res.TokenUsage)
}

func TestRetrieveLexicalDedupsIdenticalChunks(t *testing.T) {
	diaries := MapDiarySource{
		"relationship_memory": "Мы встретились весной.",
		"astra_memories":      "Мы встретились весной.",
	}
	var seen []string
	rec := scorerFunc(func(_ context.Context, _ string, frags []string) ([]RelevanceScore, error) {
		seen = frags
		return []RelevanceScore{{Index: 0, Relevance: 1}}, nil
	})
	r := NewMemoryRetriever(nil, diaries, rec, RetrievalConfig{}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "весной", IntentAboutRelationship, []string{MemoryRelationship})
	assert.Equal(t, []string{"Мы встретились весной."}, seen)
	assert.Len(t, res.Fragments, 1)
}

func TestRetrieveLexicalBlendsByIntent(t *testing.T) {
	diaries := MapDiarySource{"astra_memories": "первый\n\nвторой"}
	fixed := scorerFunc(func(context.Context, string, []string) ([]RelevanceScore, error) {
		return []RelevanceScore{
			{Index: 0, Relevance: 0.6, EmotionalWeight: 0},
			{Index: 1, Relevance: 0.5, EmotionalWeight: 1},
		}, nil
	})
	r := NewMemoryRetriever(nil, diaries, fixed, RetrievalConfig{ChunkSize: 5}, zerolog.Nop())

	intimate := r.Retrieve(context.Background(), "q", IntentIntimate, []string{MemoryAssistant})
	require.Len(t, intimate.Fragments, 2)
	assert.Equal(t, "второй", intimate.Fragments[0].Text)
	assert.InDelta(t, 0.65, intimate.Fragments[0].Relevance, 1e-9)

	info := r.Retrieve(context.Background(), "q", IntentInformationRequest, []string{MemoryAssistant})
	require.Len(t, info.Fragments, 2)
	assert.Equal(t, "первый", info.Fragments[0].Text)
}

func TestRetrieveScorerErrorIsEmpty(t *testing.T) {
	failing := scorerFunc(func(context.Context, string, []string) ([]RelevanceScore, error) {
		return nil, errors.New("rate limited")
	})
	r := NewMemoryRetriever(nil, MapDiarySource{"astra_memories": "текст"}, failing, RetrievalConfig{}, zerolog.Nop())

	res := r.Retrieve(context.Background(), "текст", IntentCasualChat, nil)
	assert.Empty(t, res.Fragments)
	assert.Zero(t, res.TokenUsage)
}
