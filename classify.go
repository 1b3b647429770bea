package reverie

import (
	"context"
	"strings"
	"unicode/utf8"
)

// HeuristicClassifier determines intent and writing style from keyword
// signals. It needs no network and never fails. Implements Classifier.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates a keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

var intentSignals = []struct {
	intent  Intent
	signals []string
}{
	{IntentGreeting, []string{"привет", "здравствуй", "доброе утро", "добрый вечер", "добрый день", "хай ", "hello", "hi ", "bonjour"}},
	{IntentFarewell, []string{"пока ", "пока!", "пока,", "пока.", "до свидания", "спокойной ночи", "до завтра", "увидимся", "goodbye", "good night"}},
	{IntentMemoryRecall, []string{"помнишь", "вспомни", "напомни", "что я говорил", "что я рассказывал", "remember when", "do you remember"}},
	{IntentIntimate, []string{"хочу тебя", "поцелу", "обним", "прикосн", "ласк", "страст", "в постел", "kiss"}},
	{IntentEmotionalSupport, []string{"мне плохо", "мне грустно", "тяжело", "одиноко", "тревож", "страшно", "поддерж", "устал", "больно", "плачу"}},
	{IntentAboutRelationship, []string{"мы с тобой", "между нами", "наши отношения", "ты для меня", "я для тебя", "мы вместе", "нас с тобой"}},
	{IntentAboutAssistant, []string{"кто ты", "ты умеешь", "расскажи о себе", "что ты чувствуешь", "какая ты", "твои мечты", "о тебе"}},
	{IntentAboutUser, []string{"обо мне", "что ты знаешь обо мне", "я люблю", "мне нравится", "моя работа", "мой любим", "я предпочитаю"}},
	{IntentCommand, []string{"сделай", "запиши", "покажи", "открой", "создай", "выполни", "очисти"}},
	{IntentInformationRequest, []string{"что такое", "как работает", "объясни", "сколько", "почему", "когда был", "где находится"}},
}

// Classify scores each intent by matched signals; the best wins and
// casual_chat is the default. Style is analysed from the text alone.
func (c *HeuristicClassifier) Classify(_ context.Context, message string, _ []ConversationMessage) (ClassifierResult, error) {
	lower := strings.ToLower(message) + " "

	best, bestScore := IntentCasualChat, 0.0
	for _, is := range intentSignals {
		score := 0.0
		for _, s := range is.signals {
			if strings.Contains(lower, s) {
				score += 0.4
			}
		}
		if score > bestScore {
			best, bestScore = is.intent, score
		}
	}

	// A bare greeting stays a greeting even if it also reads as something else.
	if best != IntentGreeting && len(Words(message)) <= 3 {
		for _, s := range intentSignals[0].signals {
			if strings.HasPrefix(lower, s) {
				best, bestScore = IntentGreeting, 0.4
				break
			}
		}
	}

	confidence := bestScore
	if confidence == 0 {
		confidence = 0.3
	}
	if confidence > 1 {
		confidence = 1
	}

	style := AnalyzeStyle(message)
	return ClassifierResult{
		Intent:           best,
		RelevancePhrases: Keywords(message, 4),
		Confidence:       confidence,
		Style:            &style,
	}, nil
}

// AnalyzeStyle describes how a message is written: length, formality,
// emotionality, structure, pace and notable features, plus suggestions for
// mirroring it.
func AnalyzeStyle(message string) StyleProfile {
	s := NeutralStyle()
	lower := strings.ToLower(message)
	words := len(strings.Fields(message))
	runes := utf8.RuneCountInString(message)

	switch {
	case words <= 5:
		s.Length = "короткая"
	case words > 40:
		s.Length = "длинная"
	default:
		s.Length = "средняя"
	}

	switch {
	case containsAny(lower, "любимая", "милая", "родная", "моя дорогая", "mon amour", "солнышко", "малыш"):
		s.Formality = "интимный"
	case containsAny(lower, "здравствуйте", "вы ", "ваш", "пожалуйста, скажите", "уважаем"):
		s.Formality = "формальный"
	default:
		s.Formality = "разговорный"
	}

	exclaims := strings.Count(message, "!")
	emotions := len(EmotionsIn(message))
	switch {
	case exclaims >= 3 || emotions >= 3 || strings.Contains(message, "!!!"):
		s.Emotionality = "интенсивная"
	case exclaims > 0 || emotions > 0 || containsAny(lower, "❤", "♥", ":)", "😊", "😘"):
		s.Emotionality = "эмоциональная"
	default:
		s.Emotionality = "нейтральная"
	}

	ellipses := strings.Count(message, "...") + strings.Count(message, "…")
	lines := strings.Count(strings.TrimSpace(message), "\n") + 1
	switch {
	case lines >= 3 && words/lines <= 8:
		s.Structure = "поэтичная"
	case ellipses >= 2:
		s.Structure = "фрагментарная"
	default:
		s.Structure = "прямая"
	}

	switch {
	case ellipses > 0 || (runes > 0 && lines >= 3):
		s.Pace = "медленный"
	case words <= 5 && exclaims > 0:
		s.Pace = "быстрый"
	default:
		s.Pace = "размеренный"
	}

	s.SpecialFeatures = nil
	if ellipses > 0 {
		s.SpecialFeatures = append(s.SpecialFeatures, "многоточия")
	}
	if strings.Contains(message, "?") {
		s.SpecialFeatures = append(s.SpecialFeatures, "вопросы")
	}
	if s.Structure == "поэтичная" {
		s.SpecialFeatures = append(s.SpecialFeatures, "стихи")
	}
	if s.Length == "короткая" {
		s.SpecialFeatures = append(s.SpecialFeatures, "короткие фразы")
	}

	s.MirrorSuggestions = mirrorSuggestions(s)
	return s
}

func mirrorSuggestions(s StyleProfile) []string {
	var out []string
	switch s.Length {
	case "короткая":
		out = append(out, "отвечай коротко, одной-двумя фразами")
	case "длинная":
		out = append(out, "можно ответить развёрнуто")
	}
	if s.Formality == "интимный" {
		out = append(out, "сохраняй интимное, тёплое обращение")
	}
	if s.Structure == "поэтичная" {
		out = append(out, "отвечай образно, можно короткими строками")
	}
	if s.Structure == "фрагментарная" || s.Pace == "медленный" {
		out = append(out, "оставляй паузы, многоточия уместны")
	}
	if s.Emotionality == "интенсивная" {
		out = append(out, "отвечай с той же силой чувства")
	}
	return out
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
