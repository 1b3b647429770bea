package reverie

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	assert.Empty(t, ChunkText("", 300, 50))
	assert.Empty(t, ChunkText("\n\n  \n\n", 300, 50))
}

func TestChunkTextMergesSmallParagraphs(t *testing.T) {
	chunks := ChunkText("первый абзац\r\n\r\nвторой абзац\n\n\n\nтретий", 300, 50)
	require.Len(t, chunks, 1)
	assert.Equal(t, "первый абзац\n\nвторой абзац\n\nтретий", chunks[0])
}

func TestChunkTextCarriesOverlap(t *testing.T) {
	first := strings.TrimSpace(strings.Repeat("alpha ", 40))
	second := strings.TrimSpace(strings.Repeat("omega ", 40))

	chunks := ChunkText(first+"\n\n"+second, 300, 50)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
	assert.True(t, strings.HasPrefix(chunks[1], strings.Repeat("alpha ", 7)+"alpha\n\n"+"omega"), chunks[1])
	assert.True(t, strings.HasSuffix(chunks[1], second))
}

func TestChunkTextNoOverlapForShortChunks(t *testing.T) {
	first := strings.Repeat("я", 200)
	second := strings.Repeat("ты", 100)

	chunks := ChunkText(first+"\n\n"+second, 300, 50)
	assert.Equal(t, []string{first, second}, chunks)
}

func TestChunkTextSplitsLongParagraphAtSentences(t *testing.T) {
	sentence := strings.Repeat("тест ", 23) + "конец."
	para := strings.Join([]string{sentence, sentence, sentence}, " ")

	chunks := ChunkText(para, 300, 0)
	require.Len(t, chunks, 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 300)
		assert.True(t, strings.HasSuffix(c, "конец."))
	}
	assert.Equal(t, sentence, chunks[1])
}

func TestSentences(t *testing.T) {
	got := sentences("Привет. Как ты? Я скучала… Очень!Правда")
	assert.Equal(t, []string{"Привет.", "Как ты?", "Я скучала…", "Очень!Правда"}, got)
}
