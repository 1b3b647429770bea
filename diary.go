package reverie

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// DirDiarySource serves every .txt file in a directory as a diary named
// after the file without its extension. Files are read lazily and cached.
type DirDiarySource struct {
	dir string

	mu    sync.Mutex
	cache map[string]string
}

// NewDirDiarySource returns a source over dir. A missing dir yields no
// diaries.
func NewDirDiarySource(dir string) *DirDiarySource {
	return &DirDiarySource{dir: dir, cache: make(map[string]string)}
}

// Names lists the available diaries in lexical order.
func (d *DirDiarySource) Names() []string {
	if d.dir == "" {
		return nil
	}
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".txt" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	slices.Sort(names)
	return names
}

// Read returns the text of the named diary.
func (d *DirDiarySource) Read(name string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if text, ok := d.cache[name]; ok {
		return text, nil
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("reverie: bad diary name %q", name)
	}
	b, err := os.ReadFile(filepath.Join(d.dir, name+".txt"))
	if err != nil {
		return "", fmt.Errorf("reverie: read diary %s: %w", name, err)
	}
	d.cache[name] = string(b)
	return string(b), nil
}

// MapDiarySource is an in-memory DiarySource.
type MapDiarySource map[string]string

func (m MapDiarySource) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

func (m MapDiarySource) Read(name string) (string, error) {
	text, ok := m[name]
	if !ok {
		return "", fmt.Errorf("reverie: no diary %q", name)
	}
	return text, nil
}

// Memory types name groups of diaries.
const (
	MemoryCore            = "core_memory"
	MemoryRelationship    = "relationship_memory"
	MemoryAssistant       = "astra_memories"
	MemoryIntimacy        = "astra_intimacy"
	MemoryEmotion         = "emotion_memory"
	MemoryUserPreferences = "user_preferences"
)

// DefaultMemoryTypes returns the memory types searched for an intent when
// the classifier gave no hints.
func DefaultMemoryTypes(intent Intent) []string {
	switch intent {
	case IntentAboutUser:
		return []string{MemoryRelationship, MemoryUserPreferences}
	case IntentAboutRelationship:
		return []string{MemoryRelationship, MemoryAssistant, MemoryIntimacy}
	case IntentAboutAssistant:
		return []string{MemoryCore, MemoryAssistant}
	case IntentIntimate:
		return []string{MemoryIntimacy, MemoryRelationship}
	case IntentMemoryRecall:
		return []string{MemoryAssistant, MemoryRelationship}
	default:
		return []string{MemoryAssistant, MemoryCore}
	}
}

// DiaryNamesFor maps a memory type to the diaries that hold it. Unknown
// types name a diary of their own.
func DiaryNamesFor(memoryType string) []string {
	switch memoryType {
	case MemoryCore:
		return []string{"astra_core_prompt"}
	case MemoryRelationship:
		return []string{"relationship_memory", "astra_memories"}
	case MemoryEmotion:
		return []string{"emotion_memory", "tone_memory", "subtone_memory", "flavor_memory"}
	case MemoryUserPreferences:
		return []string{"relationship_memory", "user_preferences"}
	default:
		return []string{memoryType}
	}
}
