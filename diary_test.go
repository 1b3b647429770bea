package reverie

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirDiarySource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "relationship_memory.txt"), []byte("мы встретились весной"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "astra_memories.txt"), []byte("я помню море"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("skip"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755))

	src := NewDirDiarySource(dir)
	assert.Equal(t, []string{"astra_memories", "relationship_memory"}, src.Names())

	text, err := src.Read("astra_memories")
	require.NoError(t, err)
	assert.Equal(t, "я помню море", text)

	// Cached: a rewrite on disk is not seen.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "astra_memories.txt"), []byte("другое"), 0o644))
	text, err = src.Read("astra_memories")
	require.NoError(t, err)
	assert.Equal(t, "я помню море", text)

	_, err = src.Read("../etc/passwd")
	assert.Error(t, err)
	_, err = src.Read("missing")
	assert.Error(t, err)
}

func TestDirDiarySourceMissingDir(t *testing.T) {
	assert.Empty(t, NewDirDiarySource(filepath.Join(t.TempDir(), "nope")).Names())
	assert.Empty(t, NewDirDiarySource("").Names())
}

func TestMapDiarySource(t *testing.T) {
	src := MapDiarySource{"b": "два", "a": "один"}
	assert.Equal(t, []string{"a", "b"}, src.Names())
	text, err := src.Read("b")
	require.NoError(t, err)
	assert.Equal(t, "два", text)
	_, err = src.Read("c")
	assert.Error(t, err)
}

func TestMemoryTypeMapping(t *testing.T) {
	assert.Equal(t, []string{MemoryIntimacy, MemoryRelationship}, DefaultMemoryTypes(IntentIntimate))
	assert.Equal(t, []string{MemoryAssistant, MemoryCore}, DefaultMemoryTypes(IntentCasualChat))
	assert.Equal(t, []string{"relationship_memory", "astra_memories"}, DiaryNamesFor(MemoryRelationship))
	assert.Equal(t, []string{"astra_intimacy"}, DiaryNamesFor(MemoryIntimacy))
}
