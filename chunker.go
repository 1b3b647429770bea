package reverie

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ChunkText splits long-form text into fragments of roughly size
// characters. Paragraphs (separated by blank lines) accumulate until the
// next one would overflow; a paragraph longer than size on its own is split
// at sentence ends. When a flushed fragment has more than ten words, its
// trailing words (at most overlap characters) open the next fragment.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = 300
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []string
	var current string
	fresh := false // current holds more than the carried overlap

	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for _, piece := range splitOversized(para, size) {
			if fresh && utf8.RuneCountInString(current)+utf8.RuneCountInString(piece) > size {
				chunks = append(chunks, current)
				current = tailWords(current, overlap)
			}
			if current == "" {
				current = piece
			} else {
				current += "\n\n" + piece
			}
			fresh = true
		}
	}
	if fresh {
		chunks = append(chunks, current)
	}
	return chunks
}

// tailWords returns the trailing words of s that fit into limit characters,
// or "" when s has ten words or fewer.
func tailWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= 10 || limit <= 0 {
		return ""
	}
	n, start := 0, len(words)
	for i := len(words) - 1; i >= 0; i-- {
		w := utf8.RuneCountInString(words[i]) + 1
		if n+w > limit {
			break
		}
		n += w
		start = i
	}
	return strings.Join(words[start:], " ")
}

// splitOversized breaks a paragraph longer than size into sentence runs.
// A single sentence longer than size is kept whole.
func splitOversized(para string, size int) []string {
	if utf8.RuneCountInString(para) <= size {
		return []string{para}
	}
	var out []string
	var b strings.Builder
	for _, sent := range sentences(para) {
		if b.Len() > 0 && utf8.RuneCountInString(b.String())+utf8.RuneCountInString(sent)+1 > size {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sent)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// sentences splits text after '.', '!', '?' or '…' followed by a space.
func sentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i, r := range runes {
		if !strings.ContainsRune(".!?…", r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}
