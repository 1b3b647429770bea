package reverie

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrMemoryNotFound is returned by Memory for an unknown fragment id.
var ErrMemoryNotFound = errors.New("memory not found")

// Companion wires every component over one SQLite store.
type Companion struct {
	cfg     Config
	store   *Store
	vectors *SQLiteVectorStore
	diaries DiarySource

	cancelIndex context.CancelFunc
	indexing    sync.WaitGroup

	Engine       *EmotionEngine
	Retriever    *MemoryRetriever
	Conversation *ConversationManager
	Orchestrator *Orchestrator
}

// Open opens the store, resolves providers and builds the pipeline.
// Providers set on cfg win. Otherwise an Ollama host selects Ollama
// embeddings and an OpenAI key enables OpenAI embeddings, classification,
// scoring and generation. Without a key the heuristic classifier and the
// keyword scorer are used and turns fail at generation.
func Open(cfg Config) (*Companion, error) {
	cfg.ApplyDefaults()
	logger := cfg.Logger

	store, err := NewStore(cfg.DBPath, logger)
	if err != nil {
		return nil, err
	}

	catalog := NewLabelCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = LoadCatalog(cfg.CatalogPath); err != nil {
			store.Close()
			return nil, err
		}
	}
	engine := NewEmotionEngine(store, catalog, cfg.Emotion, logger)
	if err := engine.LoadLabels(); err != nil {
		store.Close()
		return nil, fmt.Errorf("reverie: load labels: %w", err)
	}

	persona := cfg.Persona
	if cfg.PersonaFile != "" {
		b, err := os.ReadFile(cfg.PersonaFile)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("reverie: read persona: %w", err)
		}
		persona = string(b)
	}

	embedder := cfg.Embedder
	embedModel := ""
	switch {
	case embedder != nil:
	case cfg.Ollama.Host != "":
		embedder = NewOllamaEmbedder(cfg.Ollama.EmbeddingModel, cfg.Ollama.EmbedDimension, WithOllamaHost(cfg.Ollama.Host))
		embedModel = cfg.Ollama.EmbeddingModel
	case cfg.OpenAI.APIKey != "":
		opts := []OpenAIOption{WithOpenAIModel(cfg.OpenAI.EmbeddingModel), WithOpenAIDimension(cfg.OpenAI.EmbedDimension)}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, WithOpenAIBaseURL(cfg.OpenAI.BaseURL))
		}
		embedder = NewOpenAIEmbedder(cfg.OpenAI.APIKey, opts...)
		embedModel = cfg.OpenAI.EmbeddingModel
	}

	vectors := NewSQLiteVectorStore(store, embedder, logger,
		WithDedupScore(cfg.Retrieval.VectorDedupScore),
		WithMaxMemories(cfg.Retrieval.MaxVectorMemories),
		WithEmbeddingModel(embedModel),
	)

	diaries := cfg.Diaries
	if diaries == nil {
		diaries = NewDirDiarySource(cfg.DiaryDir)
	}

	classifier, scorer, generator := cfg.Classifier, cfg.Scorer, cfg.Generator
	if cfg.OpenAI.APIKey != "" {
		client := NewOpenAIClient(cfg.OpenAI)
		if classifier == nil {
			classifier = NewOpenAIClassifier(&client, cfg.OpenAI.ClassifierModel, cfg.OpenAI.CallInterval, logger)
		}
		if scorer == nil {
			scorer = NewOpenAIRelevanceScorer(&client, cfg.OpenAI.ClassifierModel, cfg.OpenAI.CallInterval, logger)
		}
		if generator == nil {
			generator = NewOpenAIGenerator(&client, cfg.OpenAI.Model, cfg.Prompt.MaxOutputTokens, logger)
		}
	}
	if classifier == nil {
		classifier = NewHeuristicClassifier()
	}
	if scorer == nil {
		scorer = KeywordScorer{}
	}
	if generator == nil {
		logger.Warn().Msg("no generation backend configured, turns will fail")
		generator = unavailableGenerator{}
	}

	var sim TextSimilarity
	if embedder != nil {
		sim = EmbeddingSimilarity{Embedder: embedder}
	}
	conv, err := NewConversationManager(store, sim, cfg.History, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	var vs VectorStore
	if embedder != nil {
		vs = vectors
	}
	retriever := NewMemoryRetriever(vs, diaries, scorer, cfg.Retrieval, logger)

	orch, err := NewOrchestrator(Pipeline{
		Classifier:   classifier,
		Retriever:    retriever,
		Engine:       engine,
		States:       store,
		Conversation: conv,
		Prompts:      NewPromptAssembler(persona, catalog, cfg.Prompt, nil),
		Generator:    generator,
		Moments:      vs,
	}, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	c := &Companion{
		cfg:          cfg,
		store:        store,
		vectors:      vectors,
		diaries:      diaries,
		Engine:       engine,
		Retriever:    retriever,
		Conversation: conv,
		Orchestrator: orch,
	}
	if cfg.IndexInterval > 0 && embedder != nil {
		c.startIndexWorker(cfg.IndexInterval)
	}

	logger.Info().
		Str("db", cfg.DBPath).
		Bool("embeddings", embedder != nil).
		Bool("openai", cfg.OpenAI.APIKey != "").
		Bool("autonomous", cfg.Emotion.Autonomous).
		Dur("index_interval", cfg.IndexInterval).
		Msg("initialized")

	return c, nil
}

// HandleTurn answers one message.
func (c *Companion) HandleTurn(ctx context.Context, message string) TurnResult {
	return c.Orchestrator.HandleTurn(ctx, message)
}

// Recall runs memory retrieval alone.
func (c *Companion) Recall(ctx context.Context, query string, intent Intent) RetrievalResult {
	return c.Retriever.Retrieve(ctx, query, intent, nil)
}

// State returns the persisted emotional state.
func (c *Companion) State() (EmotionalState, error) {
	return c.Orchestrator.State()
}

// TeachTrigger registers a hard-override trigger phrase.
func (c *Companion) TeachTrigger(trigger string, sets EmotionalState) error {
	return c.Engine.AddTrigger(trigger, sets)
}

// TeachEmotion associates a phrase with a state, bypassing the autonomous
// flag.
func (c *Companion) TeachEmotion(phrase string, state EmotionalState) (bool, error) {
	return c.Engine.AddEmotionToPhrase(phrase, state)
}

// SearchHistory searches the conversation log.
func (c *Companion) SearchHistory(query string) ([]HistoryMatch, error) {
	return c.Conversation.SearchHistory(query)
}

// IndexDiaries chunks the configured diaries into the vector store.
func (c *Companion) IndexDiaries(ctx context.Context) (int, error) {
	return c.vectors.IndexDiaries(ctx, c.diaries, c.cfg.Retrieval.ChunkSize, c.cfg.Retrieval.ChunkOverlap)
}

// Stats reports the vector index size.
func (c *Companion) Stats() (VectorStats, error) {
	return c.vectors.Stats()
}

// Memory loads a stored fragment, with its full text and tags, by the id
// a semantic recall returned.
func (c *Companion) Memory(id string) (Fragment, error) {
	f, err := c.store.GetFragment(id)
	if errors.Is(err, sql.ErrNoRows) {
		return Fragment{}, fmt.Errorf("reverie: %q: %w", id, ErrMemoryNotFound)
	}
	return f, err
}

// Labels lists the known labels of one kind, seeded and taught.
func (c *Companion) Labels(kind LabelKind) []Label {
	return c.Engine.Catalog().All(kind)
}

// MessageCount reports the size of the durable conversation log.
func (c *Companion) MessageCount() (int, error) {
	return c.store.CountMessages()
}

// Close stops the index worker, waits for a running sweep to return, and
// closes the store.
func (c *Companion) Close() error {
	if c.cancelIndex != nil {
		c.cancelIndex()
	}
	c.indexing.Wait()
	return c.store.Close()
}

// unavailableGenerator fails every turn; it stands in when no model is
// configured so the offline commands still work.
type unavailableGenerator struct{}

func (unavailableGenerator) Generate(context.Context, GenerateRequest) (string, error) {
	return "", errors.Join(ErrGenerationFailure, errors.New("no generation backend configured"))
}
