package reverie

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVectors(t *testing.T, emb EmbeddingProvider, opts ...VectorOption) *SQLiteVectorStore {
	t.Helper()
	return NewSQLiteVectorStore(testStore(t), emb, zerolog.Nop(), opts...)
}

func TestVectorStoreSearch(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"кошка спит у окна": {1, 0, 0},
		"море шумит ночью":  {0, 1, 0},
		"кот":               {0.9, 0.1, 0},
	}}
	v := testVectors(t, emb)

	catID, err := v.Store(t.Context(), "кошка спит у окна", DiaryMemories, []string{"кот", "кот"})
	require.NoError(t, err)
	_, err = v.Store(t.Context(), "море шумит ночью", DiaryReflection, nil)
	require.NoError(t, err)

	hits, err := v.Search(t.Context(), "кот", 3, 0.4)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, catID, hits[0].ID)
	assert.Equal(t, DiaryMemories, hits[0].Source)
	assert.Greater(t, hits[0].Score, 0.9)

	f, err := v.store.GetFragment(catID)
	require.NoError(t, err)
	assert.Equal(t, []string{"кот"}, f.Tags)
}

func TestVectorStoreQueryCache(t *testing.T) {
	emb := &stubEmbedder{def: []float32{1, 0}}
	v := testVectors(t, emb)
	_, err := v.Store(t.Context(), "запись", DiaryMemories, nil)
	require.NoError(t, err)

	before := emb.calls
	for i := 0; i < 3; i++ {
		_, err := v.Search(t.Context(), "запрос", 2, 0)
		require.NoError(t, err)
	}
	assert.Equal(t, before+1, emb.calls)
}

func TestVectorStoreDedup(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"кошка спит":    {1, 0},
		"кошка дремлет": {0.99, 0.01},
	}}
	v := testVectors(t, emb)

	first, err := v.Store(t.Context(), "кошка спит", DiaryMemories, nil)
	require.NoError(t, err)
	second, err := v.Store(t.Context(), "кошка дремлет", DiaryMemories, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats, err := v.Stats()
	require.NoError(t, err)
	assert.Equal(t, VectorStats{Fragments: 1, Vectors: 1}, stats)
}

func TestVectorStoreWithoutEmbedder(t *testing.T) {
	v := testVectors(t, nil)

	_, err := v.Store(t.Context(), "что-то", DiaryMemories, nil)
	assert.ErrorIs(t, err, ErrNoEmbedder)

	hits, err := v.Search(t.Context(), "что-то", 3, 0)
	assert.NoError(t, err)
	assert.Empty(t, hits)

	_, err = v.IndexDiaries(t.Context(), MapDiarySource{"memories": "текст"}, 0, 0)
	assert.ErrorIs(t, err, ErrNoEmbedder)
}

func TestVectorStoreEmbedFailureKeepsText(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("ollama down")}
	v := testVectors(t, emb)

	id, err := v.Store(t.Context(), "важный вечер", DiaryMemories, nil)
	assert.Error(t, err)
	require.NotEmpty(t, id)

	stats, err := v.Stats()
	require.NoError(t, err)
	assert.Equal(t, VectorStats{Fragments: 1, Vectors: 0}, stats)

	hits, err := v.Search(t.Context(), "вечер", 3, 0)
	assert.NoError(t, err)
	assert.Empty(t, hits)
}

func TestVectorStoreEvictsOldest(t *testing.T) {
	emb := &stubEmbedder{vecs: map[string][]float32{
		"первое": {1, 0, 0},
		"второе": {0, 1, 0},
		"третье": {0, 0, 1},
	}}
	v := testVectors(t, emb, WithMaxMemories(2))

	var ids []string
	for _, text := range []string{"первое", "второе", "третье"} {
		id, err := v.Store(t.Context(), text, DiaryMemories, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	_, err := v.store.GetFragment(ids[0])
	assert.Error(t, err)
	_, err = v.store.GetFragment(ids[2])
	assert.NoError(t, err)

	stats, _ := v.Stats()
	assert.Equal(t, VectorStats{Fragments: 2, Vectors: 2}, stats)
}

func TestIndexDiariesSkipsIndexedSources(t *testing.T) {
	emb := &stubEmbedder{def: []float32{1, 0}}
	v := testVectors(t, emb)
	src := MapDiarySource{"astra_memories": "Мы впервые встретились весной. Шёл тёплый дождь."}

	n, err := v.IndexDiaries(t.Context(), src, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, err := v.store.HasFragmentSource("astra_memories")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err = v.IndexDiaries(t.Context(), src, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndexDiariesBackfillsAfterEmbedderOutage(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("ollama down")}
	v := testVectors(t, emb)
	src := MapDiarySource{"astra_memories": "Мы впервые встретились весной."}

	n, err := v.IndexDiaries(t.Context(), src, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stats, err := v.Stats()
	require.NoError(t, err)
	assert.Equal(t, VectorStats{Fragments: 1, Vectors: 0}, stats)

	emb.mu.Lock()
	emb.err, emb.def = nil, []float32{1, 0}
	emb.mu.Unlock()

	n, err = v.IndexDiaries(t.Context(), src, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stats, err = v.Stats()
	require.NoError(t, err)
	assert.Equal(t, VectorStats{Fragments: 1, Vectors: 1}, stats)

	hits, err := v.Search(t.Context(), "весна", 3, 0.5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "astra_memories", hits[0].Source)

	n, err = v.IndexDiaries(t.Context(), src, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
