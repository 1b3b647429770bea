package reverie

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config holds reverie initialization parameters.
type Config struct {
	DBPath      string `mapstructure:"db_path"      yaml:"db_path"`
	DiaryDir    string `mapstructure:"diary_dir"    yaml:"diary_dir"`
	CatalogPath string `mapstructure:"catalog_path" yaml:"catalog_path"`
	Persona     string `mapstructure:"persona"      yaml:"persona"`
	PersonaFile string `mapstructure:"persona_file" yaml:"persona_file"`
	LogLevel    string `mapstructure:"log_level"    yaml:"log_level"`

	OpenAI OpenAIConfig `mapstructure:"openai" yaml:"openai"`
	Ollama OllamaConfig `mapstructure:"ollama" yaml:"ollama"`

	Emotion   EmotionConfig   `mapstructure:"emotion"   yaml:"emotion"`
	Retrieval RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
	History   HistoryConfig   `mapstructure:"history"   yaml:"history"`
	Prompt    PromptConfig    `mapstructure:"prompt"    yaml:"prompt"`

	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	// IndexInterval re-indexes DiaryDir periodically. Zero disables it.
	IndexInterval time.Duration `mapstructure:"index_interval" yaml:"index_interval"`

	// Logger receives all component logs. The zero value discards them.
	Logger zerolog.Logger `mapstructure:"-" yaml:"-"`

	// Explicit providers take precedence over the ones Open would build
	// from the OpenAI and Ollama settings.
	Embedder   EmbeddingProvider `mapstructure:"-" yaml:"-"`
	Classifier Classifier        `mapstructure:"-" yaml:"-"`
	Scorer     RelevanceScorer   `mapstructure:"-" yaml:"-"`
	Generator  Generator         `mapstructure:"-" yaml:"-"`
	Diaries    DiarySource       `mapstructure:"-" yaml:"-"`
}

// OpenAIConfig configures the generation, classification and scoring clients.
type OpenAIConfig struct {
	APIKey          string `mapstructure:"api_key"          yaml:"api_key"`
	BaseURL         string `mapstructure:"base_url"         yaml:"base_url"`
	Model           string `mapstructure:"model"            yaml:"model"`
	ClassifierModel string `mapstructure:"classifier_model" yaml:"classifier_model"`
	EmbeddingModel  string `mapstructure:"embedding_model"  yaml:"embedding_model"`
	EmbedDimension  int    `mapstructure:"embed_dimension"  yaml:"embed_dimension"`
	MaxRetries      int    `mapstructure:"max_retries"      yaml:"max_retries"`
	// CallInterval spaces out classifier and scorer calls. Negative
	// disables spacing.
	CallInterval time.Duration `mapstructure:"call_interval" yaml:"call_interval"`
}

// OllamaConfig selects a local Ollama embedder instead of OpenAI embeddings.
type OllamaConfig struct {
	Host           string `mapstructure:"host"            yaml:"host"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	EmbedDimension int    `mapstructure:"embed_dimension" yaml:"embed_dimension"`
}

// EmotionConfig tunes the emotional state engine.
type EmotionConfig struct {
	Autonomous     bool    `mapstructure:"autonomous"      yaml:"autonomous"`
	MatchThreshold float64 `mapstructure:"match_threshold" yaml:"match_threshold"`
	DedupThreshold float64 `mapstructure:"dedup_threshold" yaml:"dedup_threshold"`
}

// RetrievalConfig tunes the memory retriever. A negative score threshold
// or ChunkOverlap stands for zero, which ApplyDefaults would overwrite.
type RetrievalConfig struct {
	MinVectorScore    float64 `mapstructure:"min_vector_score"    yaml:"min_vector_score"`
	AcceptVectorScore float64 `mapstructure:"accept_vector_score" yaml:"accept_vector_score"`
	ChunkSize         int     `mapstructure:"chunk_size"          yaml:"chunk_size"`
	ChunkOverlap      int     `mapstructure:"chunk_overlap"       yaml:"chunk_overlap"`
	TokenBudget       int     `mapstructure:"token_budget"        yaml:"token_budget"`
	ScoringBudget     int     `mapstructure:"scoring_budget"      yaml:"scoring_budget"`
	TopN              int     `mapstructure:"top_n"               yaml:"top_n"`
	MaxFragmentChars  int     `mapstructure:"max_fragment_chars"  yaml:"max_fragment_chars"`
	VectorDedupScore  float64 `mapstructure:"vector_dedup_score"  yaml:"vector_dedup_score"`
	MaxVectorMemories int     `mapstructure:"max_vector_memories" yaml:"max_vector_memories"`
}

// HistoryConfig tunes the conversation context manager.
type HistoryConfig struct {
	APIWindow      int `mapstructure:"api_window"       yaml:"api_window"`
	Threshold      int `mapstructure:"threshold"        yaml:"threshold"`
	KeepRecent     int `mapstructure:"keep_recent"      yaml:"keep_recent"`
	SummaryWords   int `mapstructure:"summary_words"    yaml:"summary_words"`
	RecentCount    int `mapstructure:"recent_count"     yaml:"recent_count"`
	MaxKeyword     int `mapstructure:"max_keyword"      yaml:"max_keyword"`
	MaxImportant   int `mapstructure:"max_important"    yaml:"max_important"`
	MaxSemantic    int `mapstructure:"max_semantic"     yaml:"max_semantic"`
	MinKeywordRune int `mapstructure:"min_keyword_rune" yaml:"min_keyword_rune"`
}

// PromptConfig tunes prompt assembly and temperature. A negative
// BaseTemperature or MinTemperature stands for zero.
type PromptConfig struct {
	MaxTokens       int     `mapstructure:"max_tokens"        yaml:"max_tokens"`
	MaxMemories     int     `mapstructure:"max_memories"      yaml:"max_memories"`
	MaxMemoryChars  int     `mapstructure:"max_memory_chars"  yaml:"max_memory_chars"`
	MaxExamples     int     `mapstructure:"max_examples"      yaml:"max_examples"`
	BaseTemperature float64 `mapstructure:"base_temperature"  yaml:"base_temperature"`
	MinTemperature  float64 `mapstructure:"min_temperature"   yaml:"min_temperature"`
	MaxTemperature  float64 `mapstructure:"max_temperature"   yaml:"max_temperature"`
	MaxOutputTokens int64   `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
}

// ApplyDefaults fills zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DBPath == "" {
		c.DBPath = "./data/reverie.db"
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 30 * time.Second
	}

	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.ClassifierModel == "" {
		c.OpenAI.ClassifierModel = "gpt-4o-mini"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.EmbedDimension == 0 {
		c.OpenAI.EmbedDimension = 1536
	}
	if c.OpenAI.MaxRetries == 0 {
		c.OpenAI.MaxRetries = 1
	}
	if c.OpenAI.CallInterval == 0 {
		c.OpenAI.CallInterval = 600 * time.Millisecond
	}
	if c.Ollama.EmbeddingModel == "" {
		c.Ollama.EmbeddingModel = "nomic-embed-text"
	}
	if c.Ollama.EmbedDimension == 0 {
		c.Ollama.EmbedDimension = 768
	}

	if c.Emotion.MatchThreshold == 0 {
		c.Emotion.MatchThreshold = 0.7
	}
	if c.Emotion.DedupThreshold == 0 {
		c.Emotion.DedupThreshold = 0.75
	}

	r := &c.Retrieval
	if r.MinVectorScore == 0 {
		r.MinVectorScore = 0.4
	}
	if r.AcceptVectorScore == 0 {
		r.AcceptVectorScore = 0.45
	}
	if r.ChunkSize == 0 {
		r.ChunkSize = 300
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 50
	}
	if r.TokenBudget == 0 {
		r.TokenBudget = 3000
	}
	if r.ScoringBudget == 0 {
		r.ScoringBudget = 800
	}
	if r.TopN == 0 {
		r.TopN = 3
	}
	if r.MaxFragmentChars == 0 {
		r.MaxFragmentChars = 500 * 4
	}
	if r.VectorDedupScore == 0 {
		r.VectorDedupScore = 0.95
	}
	if r.MaxVectorMemories == 0 {
		r.MaxVectorMemories = 50000
	}

	h := &c.History
	if h.APIWindow == 0 {
		h.APIWindow = 20
	}
	if h.Threshold == 0 {
		h.Threshold = 50
	}
	if h.KeepRecent == 0 {
		h.KeepRecent = 20
	}
	if h.KeepRecent > h.Threshold {
		h.KeepRecent = h.Threshold
	}
	if h.SummaryWords == 0 {
		h.SummaryWords = 100
	}
	if h.RecentCount == 0 {
		h.RecentCount = 10
	}
	if h.MaxKeyword == 0 {
		h.MaxKeyword = 5
	}
	if h.MaxImportant == 0 {
		h.MaxImportant = 5
	}
	if h.MaxSemantic == 0 {
		h.MaxSemantic = 3
	}
	if h.MinKeywordRune == 0 {
		h.MinKeywordRune = 5
	}

	p := &c.Prompt
	if p.MaxTokens == 0 {
		p.MaxTokens = 25000
	}
	if p.MaxMemories == 0 {
		p.MaxMemories = 3
	}
	if p.MaxMemoryChars == 0 {
		p.MaxMemoryChars = 1000
	}
	if p.MaxExamples == 0 {
		p.MaxExamples = 3
	}
	if p.BaseTemperature == 0 {
		p.BaseTemperature = 0.8
	}
	if p.MinTemperature == 0 {
		p.MinTemperature = 0.3
	}
	if p.MaxTemperature == 0 {
		p.MaxTemperature = 1.5
	}
	if p.MaxOutputTokens == 0 {
		p.MaxOutputTokens = 1500
	}
}

// LoadConfig reads configuration from an optional yaml file and REVERIE_*
// environment variables, then applies defaults. OPENAI_API_KEY is honoured
// when no key is configured explicitly.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("emotion.autonomous", true)

	v.SetEnvPrefix("REVERIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("db_path")
	v.BindEnv("diary_dir")
	v.BindEnv("log_level")
	v.BindEnv("openai.api_key", "REVERIE_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("openai.base_url")
	v.BindEnv("openai.model")
	v.BindEnv("ollama.host")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("reverie")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/reverie")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path != "" && os.IsNotExist(err)) {
			return Config{}, fmt.Errorf("reverie: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("reverie: unmarshal config: %w", err)
	}
	cfg.keepExplicitZeros(v.IsSet)
	cfg.ApplyDefaults()
	return cfg, nil
}

// keepExplicitZeros rewrites fields that were set to zero on purpose to
// their negative form, so ApplyDefaults leaves them at zero.
func (c *Config) keepExplicitZeros(isSet func(key string) bool) {
	for key, field := range map[string]any{
		"openai.max_retries":            &c.OpenAI.MaxRetries,
		"openai.call_interval":          &c.OpenAI.CallInterval,
		"retrieval.min_vector_score":    &c.Retrieval.MinVectorScore,
		"retrieval.accept_vector_score": &c.Retrieval.AcceptVectorScore,
		"retrieval.chunk_overlap":       &c.Retrieval.ChunkOverlap,
		"prompt.base_temperature":       &c.Prompt.BaseTemperature,
		"prompt.min_temperature":        &c.Prompt.MinTemperature,
	} {
		if !isSet(key) {
			continue
		}
		switch f := field.(type) {
		case *int:
			if *f == 0 {
				*f = -1
			}
		case *float64:
			if *f == 0 {
				*f = -1
			}
		case *time.Duration:
			if *f == 0 {
				*f = -1
			}
		}
	}
}
