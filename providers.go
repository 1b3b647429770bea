package reverie

import "context"

// EmbeddingProvider generates vector embeddings from text.
// Built-in: OllamaEmbedder, OpenAIEmbedder.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
	Dimension() int
}

// VectorHit is one semantic search result.
type VectorHit struct {
	ID     string
	Text   string
	Score  float64
	Source string
}

// VectorStore indexes long-form memory text for semantic search.
// Search must return no hits, not an error, when the embedding backend is
// missing. Built-in: SQLiteVectorStore.
type VectorStore interface {
	Store(ctx context.Context, text, source string, tags []string) (string, error)
	Search(ctx context.Context, query string, topK int, minScore float64) ([]VectorHit, error)
}

// Classifier determines intent, memory hints, an optional emotional
// recommendation and the user's writing style.
// Built-in: HeuristicClassifier, OpenAIClassifier.
type Classifier interface {
	Classify(ctx context.Context, message string, recent []ConversationMessage) (ClassifierResult, error)
}

// RelevanceScore rates one candidate fragment against a query.
type RelevanceScore struct {
	Index           int     `json:"index"`
	Relevance       float64 `json:"relevance"`
	EmotionalWeight float64 `json:"emotional_weight"`
	Reason          string  `json:"reason"`
}

// RelevanceScorer rates fragments for the lexical retrieval tier.
// Built-in: KeywordScorer, OpenAIRelevanceScorer.
type RelevanceScorer interface {
	Score(ctx context.Context, query string, fragments []string) ([]RelevanceScore, error)
}

// GenerateRequest is everything the generation endpoint receives for a turn.
type GenerateRequest struct {
	SystemPrompt string
	History      []ConversationMessage
	UserMessage  string
	Temperature  float64
}

// Generator produces the assistant's reply. Built-in: OpenAIGenerator.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// DiarySource exposes named long-form text blobs for chunking.
// Built-in: DirDiarySource, MapDiarySource.
type DiarySource interface {
	Names() []string
	Read(name string) (string, error)
}

// TextSimilarity scores a query against history messages for semantic
// context selection. Scores are 0–1.
type TextSimilarity interface {
	Scores(ctx context.Context, query string, texts []string) ([]float64, error)
}

// EmotionRepository is the typed store for the emotion tables.
// Built-in: Store (SQLite), MemoryRepository.
type EmotionRepository interface {
	EmotionEntries() ([]EmotionMemoryEntry, error)
	PutEmotionEntry(e EmotionMemoryEntry) error
	TriggerPhrases() ([]TriggerPhrase, error)
	PutTriggerPhrase(t TriggerPhrase) error
	Labels(kind LabelKind) ([]Label, error)
	PutLabel(kind LabelKind, l Label) error
	CurrentState() (EmotionalState, error)
	SaveCurrentState(s EmotionalState) error
}

// HistoryRepository is the durable conversation log.
// Built-in: Store (SQLite), MemoryRepository.
type HistoryRepository interface {
	AppendMessage(m ConversationMessage) error
	RecentMessages(n int) ([]ConversationMessage, error)
	// MessagesSince returns the log after its first offset messages.
	MessagesSince(offset int) ([]ConversationMessage, error)
	CountMessages() (int, error)
	AppendSummary(s Summary) error
	Summaries() ([]Summary, error)
}
