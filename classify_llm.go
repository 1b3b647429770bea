package reverie

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// OpenAIClassifier asks a model for intent, memory types, an emotional
// recommendation and a style analysis. Fields the model leaves out are
// filled from the heuristic style analysis. Implements Classifier.
type OpenAIClassifier struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	log     zerolog.Logger
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier builds a classifier. interval spaces consecutive
// calls; zero disables spacing.
func NewOpenAIClassifier(client *openai.Client, model string, interval time.Duration, logger zerolog.Logger) *OpenAIClassifier {
	var limiter *rate.Limiter
	if interval > 0 {
		limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
	return &OpenAIClassifier{client: client, model: model, limiter: limiter, log: logger}
}

// classifierSchemaShape is only used to derive the structured-output schema;
// replies are read with gjson so looser shapes still parse.
type classifierSchemaShape struct {
	Intent           string   `json:"intent"`
	MatchMemory      []string `json:"match_memory"`
	RelevancePhrases []string `json:"relevance_phrases"`
	Confidence       float64  `json:"confidence"`
	EmotionalContext classifierEmotionShape `json:"emotional_context"`
	StyleAnalysis    StyleProfile           `json:"style_analysis"`
}

type classifierEmotionShape struct {
	Tone     string   `json:"tone"`
	Emotions []string `json:"emotions"`
	Subtone  []string `json:"subtone"`
	Flavor   []string `json:"flavor"`
}

var classifierSchema = generateSchema[classifierSchemaShape]()

const classifierPrompt = `Ты семантический анализатор намерений для AI-компаньона Астра.
Анализируй ТОЛЬКО явное содержание сообщения пользователя, не додумывай косвенные намерения.
Определи намерение, релевантные типы памяти, предложи тон и эмоциональное состояние для ответа и опиши стиль сообщения.

intent — одно из: about_user, about_relationship, about_astra, emotional_support, information_request,
command, intimate, greeting, farewell, memory_recall, casual_chat.
Приветствия вроде "привет", "здравствуй" — это greeting, а не about_astra.

match_memory — типы памяти из: core_memory, relationship_memory, emotion_memory, user_preferences,
astra_memories, astra_house, astra_intimacy, astra_reflection, astra_dreams.

relevance_phrases — только фактические фразы из сообщения пользователя.

style_analysis: length (короткая/средняя/длинная), formality (формальный/разговорный/интимный),
emotionality (нейтральная/эмоциональная/интенсивная), structure (прямая/поэтичная/фрагментарная),
pace (быстрый/размеренный/медленный), special_features, mirror_suggestions — как отзеркалить стиль.`

// Classify sends the message (capped at 1000 characters) with up to four
// recent messages of context.
func (c *OpenAIClassifier) Classify(ctx context.Context, message string, recent []ConversationMessage) (ClassifierResult, error) {
	var b strings.Builder
	if n := len(recent); n > 0 {
		var ctxText strings.Builder
		ctxText.WriteString("Контекст диалога:\n\n")
		for _, m := range recent[max(0, n-4):] {
			fmt.Fprintf(&ctxText, "%s: %s\n\n", roleLabel(m.Role), m.Content)
		}
		b.WriteString(truncateRunes(ctxText.String(), 2000, "..."))
		b.WriteString("\n")
	}
	b.WriteString("Анализируй только это: ")
	b.WriteString(truncateRunes(message, 1000, "..."))

	var raw rawJSON
	if err := structuredCall(ctx, c.client, c.limiter, c.model, "IntentAnalysis", classifierPrompt, b.String(), classifierSchema, 600, &raw); err != nil {
		return ClassifierResult{}, errors.Join(ErrClassificationUnavailable, err)
	}
	return parseClassification(string(raw.body), message)
}

// rawJSON keeps a decoded object verbatim.
type rawJSON struct{ body []byte }

func (r *rawJSON) UnmarshalJSON(b []byte) error {
	if !gjson.ValidBytes(b) || !gjson.ParseBytes(b).IsObject() {
		return fmt.Errorf("expected JSON object")
	}
	r.body = append(r.body[:0], b...)
	return nil
}

// parseClassification reads a classifier reply. Labels may be plain
// strings or objects carrying a "label" field; lists may be a single value.
func parseClassification(body, message string) (ClassifierResult, error) {
	if !gjson.Valid(body) {
		return ClassifierResult{}, fmt.Errorf("%w: invalid JSON", ErrClassificationUnavailable)
	}
	root := gjson.Parse(body)

	res := ClassifierResult{
		Intent:           ParseIntent(strings.TrimSpace(root.Get("intent").String())),
		MemoryHints:      labelList(root.Get("match_memory")),
		RelevancePhrases: labelList(root.Get("relevance_phrases")),
		Confidence:       clamp01(root.Get("confidence").Float()),
	}

	ec := root.Get("emotional_context")
	if ec.Exists() {
		rec := EmotionalState{
			Tone:    labelValue(ec.Get("tone")),
			Emotion: labelList(firstExisting(ec, "emotions", "emotion")),
			Subtone: labelList(ec.Get("subtone")),
			Flavor:  labelList(ec.Get("flavor")),
		}.Canonical()
		if !rec.IsZero() {
			res.Recommendation = &rec
		}
	}

	style := AnalyzeStyle(message)
	if sa := root.Get("style_analysis"); sa.IsObject() {
		setIf := func(dst *string, key string) {
			if v := labelValue(sa.Get(key)); v != "" {
				*dst = v
			}
		}
		setIf(&style.Length, "length")
		setIf(&style.Formality, "formality")
		setIf(&style.Emotionality, "emotionality")
		setIf(&style.Structure, "structure")
		setIf(&style.Pace, "pace")
		if v := labelList(sa.Get("special_features")); len(v) > 0 {
			style.SpecialFeatures = v
		}
		if v := mirrorList(sa.Get("mirror_suggestions")); len(v) > 0 {
			style.MirrorSuggestions = v
		}
	}
	res.Style = &style
	return res, nil
}

func firstExisting(r gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if v := r.Get(k); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// labelValue resolves a label given as a string or as {"label": ...}.
func labelValue(r gjson.Result) string {
	if r.IsObject() {
		r = r.Get("label")
	}
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.String())
}

// labelList resolves a list of labels, accepting a single label too.
func labelList(r gjson.Result) []string {
	if !r.Exists() {
		return nil
	}
	if !r.IsArray() {
		if v := labelValue(r); v != "" {
			return []string{v}
		}
		return nil
	}
	var out []string
	for _, item := range r.Array() {
		if v := labelValue(item); v != "" {
			out = append(out, v)
		}
	}
	return dedupStrings(out)
}

// mirrorList accepts suggestions as a list or as an object of
// aspect → suggestion.
func mirrorList(r gjson.Result) []string {
	if !r.IsObject() {
		return labelList(r)
	}
	var out []string
	r.ForEach(func(k, v gjson.Result) bool {
		if s := strings.TrimSpace(v.String()); s != "" {
			out = append(out, k.String()+": "+s)
		}
		return true
	})
	return out
}
