package reverie

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SummaryHeader opens the synthetic system message carrying the latest
// summary.
const SummaryHeader = "Сводка предыдущего диалога"

// importantMarkers flag messages the user asked to keep in mind.
var importantMarkers = []string{
	"важно", "запомни", "не забудь", "remember", "important", "don't forget",
}

// ConversationManager keeps a bounded in-memory window of the dialogue,
// mirrors it to a HistoryRepository, compacts old messages into summaries,
// and selects the context sent with each turn. One manager serves one
// session.
type ConversationManager struct {
	repo HistoryRepository
	sim  TextSimilarity
	cfg  HistoryConfig
	log  zerolog.Logger

	mu        sync.Mutex
	history   []ConversationMessage
	summaries []Summary
	// base is the log position of history[0].
	base int
}

// NewConversationManager builds a manager and restores all summaries plus
// every logged message no summary covers yet, compacting at once if that
// backlog is past the threshold. repo and sim may be nil.
func NewConversationManager(repo HistoryRepository, sim TextSimilarity, cfg HistoryConfig, logger zerolog.Logger) (*ConversationManager, error) {
	full := Config{History: cfg}
	full.ApplyDefaults()
	m := &ConversationManager{repo: repo, sim: sim, cfg: full.History, log: logger}

	if repo != nil {
		sums, err := repo.Summaries()
		if err != nil {
			return nil, fmt.Errorf("reverie: load summaries: %w", err)
		}
		history, base, err := unsummarized(repo, sums, m.cfg.KeepRecent)
		if err != nil {
			return nil, fmt.Errorf("reverie: load history: %w", err)
		}
		m.history, m.summaries, m.base = history, sums, base
		if _, err := m.maybeSummarize(); err != nil {
			m.log.Warn().Err(err).Msg("summarize restored history")
		}
	}
	return m, nil
}

// unsummarized returns the log tail after the last summary and its
// position.
func unsummarized(repo HistoryRepository, sums []Summary, keepRecent int) ([]ConversationMessage, int, error) {
	var upto int
	if n := len(sums); n > 0 {
		upto = sums[n-1].UpTo
		if upto == 0 {
			// Summary rows from before coverage was recorded; only the
			// kept window is known to be outside them.
			total, err := repo.CountMessages()
			if err != nil {
				return nil, 0, err
			}
			recent, err := repo.RecentMessages(keepRecent)
			if err != nil {
				return nil, 0, err
			}
			return recent, total - len(recent), nil
		}
	}
	msgs, err := repo.MessagesSince(upto)
	if err != nil {
		return nil, 0, err
	}
	return msgs, upto, nil
}

// Append records a message durably and in memory, then compacts if the
// window has grown past the threshold. A repository error is returned but
// the message is still kept in memory.
func (m *ConversationManager) Append(role Role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg := ConversationMessage{Role: role, Content: content, Timestamp: time.Now()}
	var err error
	if m.repo != nil {
		err = m.repo.AppendMessage(msg)
	}
	m.history = append(m.history, msg)

	if _, serr := m.maybeSummarize(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// MaybeSummarize compacts the window when it holds more than the threshold.
// It reports whether a summary was written.
func (m *ConversationManager) MaybeSummarize() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maybeSummarize()
}

func (m *ConversationManager) maybeSummarize() (bool, error) {
	if len(m.history) <= m.cfg.Threshold {
		return false, nil
	}
	return m.summarize(m.cfg.KeepRecent, m.cfg.SummaryWords)
}

// Summarize folds everything but the last keepRecent messages into one
// summary of at most words words, regardless of the threshold.
func (m *ConversationManager) Summarize(keepRecent, words int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summarize(keepRecent, words)
}

func (m *ConversationManager) summarize(keepRecent, words int) (bool, error) {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(m.history) <= keepRecent {
		return false, nil
	}
	cut := len(m.history) - keepRecent
	prefix := m.history[:cut]

	var all []string
	for _, msg := range prefix {
		all = append(all, strings.Fields(roleLabel(msg.Role)+": "+msg.Content)...)
	}
	sum := Summary{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Text:      truncateWords(all, words),
		UpTo:      m.base + cut,
	}

	if m.repo != nil {
		if err := m.repo.AppendSummary(sum); err != nil {
			return false, err
		}
	}
	m.summaries = append(m.summaries, sum)
	m.history = slices.Clone(m.history[cut:])
	m.base += cut
	m.log.Info().Int("folded", cut).Int("kept", len(m.history)).Msg("history summarized")
	return true, nil
}

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return "Пользователь"
	case RoleAssistant:
		return "Астра"
	default:
		return "Система"
	}
}

// History returns a copy of the in-memory window.
func (m *ConversationManager) History() []ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// Summaries returns every summary, oldest first.
func (m *ConversationManager) Summaries() []Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.summaries)
}

// Window returns the most recent messages sent with a generation call.
func (m *ConversationManager) Window() []ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastN(m.history, m.cfg.APIWindow)
}

func lastN(ms []ConversationMessage, n int) []ConversationMessage {
	if n <= 0 || n >= len(ms) {
		return slices.Clone(ms)
	}
	return slices.Clone(ms[len(ms)-n:])
}

// SelectContext picks the history to send with a turn, in this order:
// the recent window, semantic matches, keyword matches, then messages
// marked important. Duplicates by role and content are dropped. The latest
// summary, if any, is prepended as a system message. The result is never
// empty while history is non-empty.
func (m *ConversationManager) SelectContext(ctx context.Context, query string) []ConversationMessage {
	m.mu.Lock()
	history := slices.Clone(m.history)
	var latest *Summary
	if n := len(m.summaries); n > 0 {
		s := m.summaries[n-1]
		latest = &s
	}
	m.mu.Unlock()

	type key struct {
		role    Role
		content string
	}
	seen := map[key]bool{}
	var out []ConversationMessage
	add := func(msg ConversationMessage) bool {
		k := key{msg.Role, msg.Content}
		if seen[k] {
			return false
		}
		seen[k] = true
		out = append(out, msg)
		return true
	}

	if latest != nil {
		add(ConversationMessage{
			Role:      RoleSystem,
			Content:   SummaryHeader + ":\n" + latest.Text,
			Timestamp: latest.Timestamp,
		})
	}

	recent := lastN(history, m.cfg.RecentCount)
	for _, msg := range recent {
		add(msg)
	}

	for _, msg := range m.semanticMatches(ctx, query, history) {
		add(msg)
	}

	if keywords := Keywords(query, m.cfg.MinKeywordRune); len(keywords) > 0 {
		taken := 0
		for i := len(history) - 1; i >= 0 && taken < m.cfg.MaxKeyword; i-- {
			norm := Normalize(history[i].Content)
			for _, k := range keywords {
				if strings.Contains(norm, k) {
					if add(history[i]) {
						taken++
					}
					break
				}
			}
		}
	}

	taken := 0
	for i := len(history) - 1; i >= 0 && taken < m.cfg.MaxImportant; i-- {
		if isImportant(history[i].Content) && add(history[i]) {
			taken++
		}
	}

	if len(out) == 0 {
		return recent
	}
	return out
}

func (m *ConversationManager) semanticMatches(ctx context.Context, query string, history []ConversationMessage) []ConversationMessage {
	if m.sim == nil || query == "" || len(history) == 0 {
		return nil
	}
	texts := make([]string, len(history))
	for i, msg := range history {
		texts[i] = msg.Content
	}
	scores, err := m.sim.Scores(ctx, query, texts)
	if err != nil || len(scores) != len(texts) {
		m.log.Debug().Err(err).Msg("semantic context selection skipped")
		return nil
	}

	idx := make([]int, 0, len(scores))
	for i, s := range scores {
		if s >= 0.5 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if len(idx) > m.cfg.MaxSemantic {
		idx = idx[:m.cfg.MaxSemantic]
	}
	out := make([]ConversationMessage, len(idx))
	for i, j := range idx {
		out[i] = history[j]
	}
	return out
}

func isImportant(content string) bool {
	lower := strings.ToLower(content)
	for _, mk := range importantMarkers {
		if strings.Contains(lower, mk) {
			return true
		}
	}
	return false
}

// HistoryMatch is one SearchHistory result with its neighbours.
type HistoryMatch struct {
	Message    ConversationMessage   `json:"message"`
	Context    []ConversationMessage `json:"context"`
	MatchScore float64               `json:"match_score"`
}

// SearchHistory searches the durable log (or the in-memory window without
// a repository) for messages sharing keywords with query. Each match
// carries the previous and next message; the best five are returned.
func (m *ConversationManager) SearchHistory(query string) ([]HistoryMatch, error) {
	keywords := Keywords(query, m.cfg.MinKeywordRune)
	if len(keywords) == 0 {
		return nil, nil
	}

	msgs := m.History()
	if m.repo != nil {
		all, err := m.repo.RecentMessages(0)
		if err != nil {
			return nil, fmt.Errorf("reverie: search history: %w", err)
		}
		msgs = all
	}

	var results []HistoryMatch
	for i, msg := range msgs {
		norm := Normalize(msg.Content)
		matches := 0
		for _, k := range keywords {
			if strings.Contains(norm, k) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		lo, hi := max(i-1, 0), min(i+2, len(msgs))
		results = append(results, HistoryMatch{
			Message:    msg,
			Context:    slices.Clone(msgs[lo:hi]),
			MatchScore: float64(matches) / float64(len(keywords)),
		})
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].MatchScore > results[b].MatchScore })
	if len(results) > 5 {
		results = results[:5]
	}
	return results, nil
}

// EmbeddingSimilarity scores texts by cosine similarity of their
// embeddings. Implements TextSimilarity.
type EmbeddingSimilarity struct {
	Embedder EmbeddingProvider
}

func (e EmbeddingSimilarity) Scores(ctx context.Context, query string, texts []string) ([]float64, error) {
	qv, err := e.Embedder.Embed(ctx, query, TaskQuery)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		v, err := e.Embedder.Embed(ctx, t, TaskDocument)
		if err != nil {
			return nil, err
		}
		out[i] = CosineSimilarity(qv, v)
	}
	return out, nil
}
