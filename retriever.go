package reverie

import (
	"context"
	"math"
	"slices"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// Retrieval tiers reported in RetrievalResult.Tier.
const (
	TierNone     = ""
	TierSemantic = "semantic"
	TierLexical  = "lexical"
)

// RetrievalResult is the output of MemoryRetriever.Retrieve. TokenUsage is
// the estimated token total of Fragments.
type RetrievalResult struct {
	Fragments  []MemoryFragment
	TokenUsage int
	Tier       string
}

// MemoryRetriever finds memory fragments for a query: semantic search
// first, then chunked diaries scored by a RelevanceScorer.
type MemoryRetriever struct {
	vectors VectorStore
	diaries DiarySource
	scorer  RelevanceScorer
	cfg     RetrievalConfig
	log     zerolog.Logger
}

// NewMemoryRetriever builds a retriever. Any collaborator may be nil; the
// tier that needs it is then skipped.
func NewMemoryRetriever(vectors VectorStore, diaries DiarySource, scorer RelevanceScorer, cfg RetrievalConfig, logger zerolog.Logger) *MemoryRetriever {
	full := Config{Retrieval: cfg}
	full.ApplyDefaults()
	return &MemoryRetriever{vectors: vectors, diaries: diaries, scorer: scorer, cfg: full.Retrieval, log: logger}
}

// Retrieve returns a deduplicated, ranked, token-budgeted list of
// fragments. Every failure degrades to an empty result with zero usage.
func (r *MemoryRetriever) Retrieve(ctx context.Context, query string, intent Intent, hints []string) RetrievalResult {
	if res, ok := r.semantic(ctx, query, intent); ok {
		return res
	}
	return r.lexical(ctx, query, intent, hints)
}

func (r *MemoryRetriever) semantic(ctx context.Context, query string, intent Intent) (RetrievalResult, bool) {
	if r.vectors == nil {
		return RetrievalResult{}, false
	}
	topK := 2
	if intent == IntentMemoryRecall {
		topK = 3
	}

	hits, err := r.vectors.Search(ctx, query, topK, max(r.cfg.MinVectorScore, 0))
	if err != nil {
		r.log.Warn().Err(err).Msg("vector search failed")
		return RetrievalResult{}, false
	}

	var res RetrievalResult
	for _, h := range hits {
		if h.Score <= max(r.cfg.AcceptVectorScore, 0) {
			continue
		}
		text := truncateRunes(h.Text, r.cfg.MaxFragmentChars, "...")
		tokens := EstimateTokens(text)
		if res.TokenUsage+tokens > r.cfg.TokenBudget {
			break
		}
		source := h.Source
		if source == "" {
			source = "vector"
		}
		res.Fragments = append(res.Fragments, MemoryFragment{
			ID:              h.ID,
			Text:            text,
			Relevance:       h.Score,
			Source:          source,
			EmotionalWeight: math.Min(h.Score, 1),
		})
		res.TokenUsage += tokens
	}
	if len(res.Fragments) == 0 {
		return RetrievalResult{}, false
	}
	res.Tier = TierSemantic
	r.log.Debug().Int("fragments", len(res.Fragments)).Int("tokens", res.TokenUsage).Msg("semantic retrieval")
	return res, true
}

type candidate struct {
	text   string
	source string
}

func (r *MemoryRetriever) lexical(ctx context.Context, query string, intent Intent, hints []string) RetrievalResult {
	if r.diaries == nil || r.scorer == nil {
		return RetrievalResult{}
	}

	candidates := r.collect(intent, hints)
	if len(candidates) == 0 {
		return RetrievalResult{}
	}

	if stems := expandStems(Keywords(query, 3)); len(stems) > 0 {
		filtered := slices.DeleteFunc(slices.Clone(candidates), func(c candidate) bool {
			return !overlaps(c.text, stems)
		})
		if len(filtered) > 0 {
			candidates = filtered
		}
	}

	// Scoring input is budgeted separately from what is injected.
	var texts []string
	used := 0
	for _, c := range candidates {
		t := EstimateTokens(c.text)
		if used+t > r.cfg.ScoringBudget {
			break
		}
		texts = append(texts, c.text)
		used += t
	}
	if len(texts) == 0 {
		return RetrievalResult{}
	}

	scores, err := r.scorer.Score(ctx, query, texts)
	if err != nil {
		r.log.Warn().Err(err).Msg("relevance scoring failed")
		return RetrievalResult{}
	}

	w := EmotionalBlendWeight(intent)
	type ranked struct {
		RelevanceScore
		blended float64
	}
	var rs []ranked
	seen := map[int]bool{}
	for _, s := range scores {
		if s.Index < 0 || s.Index >= len(texts) || seen[s.Index] {
			continue
		}
		seen[s.Index] = true
		rs = append(rs, ranked{s, BlendScore(s.Relevance, s.EmotionalWeight, w)})
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].blended > rs[j].blended })
	if len(rs) > r.cfg.TopN {
		rs = rs[:r.cfg.TopN]
	}

	var res RetrievalResult
	for _, s := range rs {
		c := candidates[s.Index]
		tokens := EstimateTokens(c.text)
		if res.TokenUsage+tokens > r.cfg.TokenBudget {
			break
		}
		res.Fragments = append(res.Fragments, MemoryFragment{
			Text:            c.text,
			Relevance:       s.blended,
			Source:          c.source,
			EmotionalWeight: s.EmotionalWeight,
		})
		res.TokenUsage += tokens
	}
	if len(res.Fragments) > 0 {
		res.Tier = TierLexical
	}
	r.log.Debug().Int("candidates", len(texts)).Int("fragments", len(res.Fragments)).Int("tokens", res.TokenUsage).Msg("lexical retrieval")
	return res
}

// collect chunks the diaries for the hinted memory types (or the intent's
// defaults), dropping exact duplicates, until the collection budget is
// spent.
func (r *MemoryRetriever) collect(intent Intent, hints []string) []candidate {
	types := dedupStrings(hints)
	if len(types) == 0 {
		types = DefaultMemoryTypes(intent)
	}

	available := map[string]bool{}
	for _, n := range r.diaries.Names() {
		available[n] = true
	}

	var out []candidate
	seen := map[uint64]bool{}
	visited := map[string]bool{}
	used := 0
	for _, mt := range types {
		for _, name := range DiaryNamesFor(mt) {
			if visited[name] || !available[name] {
				continue
			}
			visited[name] = true

			text, err := r.diaries.Read(name)
			if err != nil {
				r.log.Warn().Err(err).Str("diary", name).Msg("read diary failed")
				continue
			}
			for _, chunk := range ChunkText(text, r.cfg.ChunkSize, r.cfg.ChunkOverlap) {
				key := xxhash.Sum64String(chunk)
				if seen[key] {
					continue
				}
				t := EstimateTokens(chunk)
				if used+t > r.cfg.TokenBudget {
					return out
				}
				seen[key] = true
				out = append(out, candidate{text: chunk, source: name})
				used += t
			}
		}
	}
	return out
}
