package reverie

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// KeywordScorer rates fragments locally by keyword overlap. It needs no
// network and backs the lexical tier when no model is configured.
type KeywordScorer struct{}

var _ RelevanceScorer = KeywordScorer{}

// Score gives each fragment the share of query keywords it mentions
// (synonyms count) and an emotional weight from the emotions it names.
// Fragments that mention nothing are omitted.
func (KeywordScorer) Score(_ context.Context, query string, fragments []string) ([]RelevanceScore, error) {
	keywords := Keywords(query, 3)
	if len(keywords) == 0 {
		return nil, nil
	}

	var out []RelevanceScore
	for i, frag := range fragments {
		hits := 0
		for _, k := range keywords {
			if overlaps(frag, expandStems([]string{k})) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, RelevanceScore{
			Index:           i,
			Relevance:       float64(hits) / float64(len(keywords)),
			EmotionalWeight: math.Min(1, 0.3*float64(len(EmotionsIn(frag)))),
			Reason:          fmt.Sprintf("%d of %d keywords", hits, len(keywords)),
		})
	}
	return out, nil
}

// OpenAIRelevanceScorer asks a model to rate fragments against a query.
type OpenAIRelevanceScorer struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	log     zerolog.Logger
}

var _ RelevanceScorer = (*OpenAIRelevanceScorer)(nil)

// NewOpenAIRelevanceScorer builds a scorer. interval spaces consecutive
// calls; zero disables spacing.
func NewOpenAIRelevanceScorer(client *openai.Client, model string, interval time.Duration, logger zerolog.Logger) *OpenAIRelevanceScorer {
	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &OpenAIRelevanceScorer{client: client, model: model, limiter: limiter, log: logger}
}

type relevanceItem struct {
	Index           int      `json:"index"`
	Relevance       float64  `json:"relevance"`
	Reason          string   `json:"reason"`
	EmotionalWeight *float64 `json:"emotional_weight"`
}

type relevanceResponse struct {
	Scores []relevanceItem `json:"scores"`
}

var relevanceSchema = generateSchema[relevanceResponse]()

const relevancePrompt = `Ты оцениваешь семантическую релевантность фрагментов воспоминаний для AI-компаньона Астра.
Для каждого фрагмента верни index, relevance от 0 до 1, короткую причину reason и emotional_weight от 0 до 1:
насколько фрагмент эмоционально значим в контексте запроса.
Оценивай только по фактическому содержанию запроса, не додумывай намерения.
Фокусируйся на смысловой, а не лексической близости, на эмоциональном подтексте и скрытых отсылках.
Не ставь высокую релевантность, когда связь неочевидна.`

// Score rates fragments. A missing emotional_weight defaults to 0.5 and
// out-of-range indexes are dropped.
func (s *OpenAIRelevanceScorer) Score(ctx context.Context, query string, fragments []string) ([]RelevanceScore, error) {
	if len(fragments) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Запрос: %s\n\nФрагменты:\n", query)
	for i, f := range fragments {
		fmt.Fprintf(&b, "%d: %s\n", i, f)
	}

	var resp relevanceResponse
	if err := structuredCall(ctx, s.client, s.limiter, s.model, "RelevanceScores", relevancePrompt, b.String(), relevanceSchema, 1000, &resp); err != nil {
		return nil, fmt.Errorf("relevance scorer: %w", err)
	}

	out := make([]RelevanceScore, 0, len(resp.Scores))
	for _, item := range resp.Scores {
		if item.Index < 0 || item.Index >= len(fragments) {
			s.log.Debug().Int("index", item.Index).Msg("scorer returned out-of-range index")
			continue
		}
		weight := 0.5
		if item.EmotionalWeight != nil {
			weight = *item.EmotionalWeight
		}
		out = append(out, RelevanceScore{
			Index:           item.Index,
			Relevance:       clamp01(item.Relevance),
			EmotionalWeight: clamp01(weight),
			Reason:          item.Reason,
		})
	}
	return out, nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
