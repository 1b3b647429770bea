package reverie

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
)

// ErrNoEmbedder is returned by Store when no embedding backend is set.
var ErrNoEmbedder = errors.New("no embedding provider configured")

// SQLiteVectorStore is a brute-force cosine index over the fragments and
// vectors tables. Implements VectorStore.
type SQLiteVectorStore struct {
	store     *Store
	embedder  EmbeddingProvider
	model     string
	dedup     float64
	maxMemory int
	log       zerolog.Logger

	mu      sync.Mutex // serializes Store so the dedup scan sees prior writes
	queries *lru.Cache[uint64, []float32]
}

var _ VectorStore = (*SQLiteVectorStore)(nil)

// VectorOption configures a SQLiteVectorStore.
type VectorOption func(*SQLiteVectorStore)

// WithDedupScore sets the cosine score at or above which Store returns the
// existing fragment instead of inserting (default 0.95).
func WithDedupScore(score float64) VectorOption {
	return func(v *SQLiteVectorStore) { v.dedup = score }
}

// WithMaxMemories caps the number of stored fragments (default 50000).
// The oldest are evicted first.
func WithMaxMemories(n int) VectorOption {
	return func(v *SQLiteVectorStore) { v.maxMemory = n }
}

// WithEmbeddingModel records the model name next to each vector.
func WithEmbeddingModel(model string) VectorOption {
	return func(v *SQLiteVectorStore) { v.model = model }
}

// NewSQLiteVectorStore builds a vector store over store. embedder may be
// nil, in which case Search returns no hits.
func NewSQLiteVectorStore(store *Store, embedder EmbeddingProvider, logger zerolog.Logger, opts ...VectorOption) *SQLiteVectorStore {
	cache, _ := lru.New[uint64, []float32](256)
	v := &SQLiteVectorStore{
		store:     store,
		embedder:  embedder,
		dedup:     0.95,
		maxMemory: 50000,
		log:       logger,
		queries:   cache,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Store embeds and indexes text. When a stored fragment is a near
// duplicate its id is returned and nothing is written. If embedding fails
// the text is still stored, without a vector, and the embed error is
// returned alongside the new id.
func (v *SQLiteVectorStore) Store(ctx context.Context, text, source string, tags []string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("reverie: empty memory text")
	}
	if v.embedder == nil {
		return "", ErrNoEmbedder
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	vec, embedErr := v.embedder.Embed(ctx, text, TaskDocument)
	if embedErr != nil {
		v.log.Warn().Err(embedErr).Str("source", source).Msg("embed failed, storing without vector")
		vec = nil
	}

	if vec != nil {
		existing, err := v.store.FragmentsWithVectors()
		if err != nil {
			return "", fmt.Errorf("reverie: load vectors: %w", err)
		}
		for _, f := range existing {
			if CosineSimilarity(vec, f.Vector) >= v.dedup {
				v.log.Debug().Str("id", f.ID).Msg("near-duplicate memory, keeping existing")
				return f.ID, nil
			}
		}
	}

	f := Fragment{
		ID:        uuid.NewString(),
		Text:      text,
		Source:    source,
		Tags:      dedupStrings(tags),
		CreatedAt: time.Now(),
	}
	if err := v.store.InsertFragment(f, vec, v.model); err != nil {
		return "", err
	}
	if err := v.store.EnforceFragmentLimit(v.maxMemory); err != nil {
		v.log.Warn().Err(err).Msg("enforce memory limit failed")
	}
	return f.ID, embedErr
}

// Search returns up to topK fragments whose cosine score against query is
// at least minScore, best first. Backend failures yield no hits.
func (v *SQLiteVectorStore) Search(ctx context.Context, query string, topK int, minScore float64) ([]VectorHit, error) {
	if v.embedder == nil || query == "" {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}

	queryVec, err := v.embedQuery(ctx, query)
	if err != nil {
		v.log.Warn().Err(err).Msg("embed query failed")
		return nil, nil
	}

	candidates, err := v.store.FragmentsWithVectors()
	if err != nil {
		v.log.Warn().Err(err).Msg("load vectors failed")
		return nil, nil
	}

	var hits []VectorHit
	for _, c := range candidates {
		score := CosineSimilarity(queryVec, c.Vector)
		if score < minScore {
			continue
		}
		hits = append(hits, VectorHit{ID: c.ID, Text: c.Text, Score: score, Source: c.Source})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (v *SQLiteVectorStore) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := xxhash.Sum64String(query)
	if vec, ok := v.queries.Get(key); ok {
		return vec, nil
	}
	vec, err := v.embedder.Embed(ctx, query, TaskQuery)
	if err != nil {
		return nil, err
	}
	v.queries.Add(key, vec)
	return vec, nil
}

// IndexDiaries chunks every diary in src and stores the chunks, tagged
// with the diary name. Diaries that already have fragments are not
// re-chunked; only their fragments left without a vector are embedded
// again. It returns the number of chunks stored or backfilled.
func (v *SQLiteVectorStore) IndexDiaries(ctx context.Context, src DiarySource, chunkSize, overlap int) (int, error) {
	if v.embedder == nil {
		return 0, ErrNoEmbedder
	}
	stored := 0
	for _, name := range src.Names() {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		done, err := v.store.HasFragmentSource(name)
		if err != nil {
			return stored, err
		}
		if done {
			n, err := v.backfill(ctx, name)
			if err != nil {
				return stored, err
			}
			stored += n
			continue
		}
		text, err := src.Read(name)
		if err != nil {
			v.log.Warn().Err(err).Str("diary", name).Msg("read diary failed")
			continue
		}
		for _, chunk := range ChunkText(text, chunkSize, overlap) {
			id, err := v.Store(ctx, chunk, name, []string{name})
			if err != nil {
				v.log.Warn().Err(err).Str("diary", name).Msg("index chunk failed")
			}
			if id != "" {
				stored++
			}
		}
		v.log.Info().Str("diary", name).Int("stored", stored).Msg("indexed diary")
	}
	return stored, nil
}

// backfill embeds the fragments of source that have no vector yet.
func (v *SQLiteVectorStore) backfill(ctx context.Context, source string) (int, error) {
	missing, err := v.store.FragmentsMissingVectors(source)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		v.log.Info().Str("diary", source).Msg("already indexed, skipping")
		return 0, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	n := 0
	for _, f := range missing {
		vec, err := v.embedder.Embed(ctx, f.Text, TaskDocument)
		if err != nil {
			v.log.Warn().Err(err).Str("diary", source).Msg("backfill embed failed")
			continue
		}
		if err := v.store.PutVector(f.ID, vec, v.model); err != nil {
			return n, err
		}
		n++
	}
	v.log.Info().Str("diary", source).Int("backfilled", n).Int("missing", len(missing)).Msg("backfilled diary vectors")
	return n, nil
}

// VectorStats summarizes the index.
type VectorStats struct {
	Fragments int `json:"fragments"`
	Vectors   int `json:"vectors"`
}

// Stats reports how many fragments and vectors are stored.
func (v *SQLiteVectorStore) Stats() (VectorStats, error) {
	f, n, err := v.store.FragmentStats()
	return VectorStats{Fragments: f, Vectors: n}, err
}
