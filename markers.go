package reverie

import "strings"

// stem maps a word stem to the label it signals.
type stem struct {
	prefix string
	label  string
}

var (
	toneStems = []stem{
		{"нежн", "нежный"}, {"страстн", "страстный"}, {"игрив", "игривый"},
		{"поэтичн", "поэтичный"}, {"театральн", "театральный"}, {"интимн", "интимный"},
		{"заботлив", "заботливый"}, {"уязвим", "уязвимый"}, {"смеющ", "смеющийся"},
		{"домашн", "домашний"}, {"тих", "тихий"}, {"честн", "честный"},
	}
	flavorStems = []stem{
		{"медово", "медово-текучий"}, {"бархат", "бархатный"}, {"искрист", "искристый"},
		{"сливочно", "сливочно-мурчащий"}, {"винно", "винно-пьянящий"},
		{"горько", "горько-доверчивый"}, {"солёно", "солёно-глубокий"},
	}
	subtoneStems = []stem{
		{"дрожащ", "дрожащий"}, {"шёпот", "шёпотом"}, {"шепот", "шёпотом"},
		{"молчалив", "молчаливо-шепчущий"}, {"задумчив", "задумчивый"},
		{"кошачь", "по-кошачьи томный"}, {"стеснитель", "стеснительный"},
		{"срыва", "срывающийся на ласку"}, {"с улыбкой", "с улыбкой"},
	}
	emotionStems = []stem{
		{"нежност", "нежность"}, {"страст", "страсть"}, {"радост", "радость"},
		{"влюблён", "влюблённость"}, {"влюблен", "влюблённость"}, {"тоск", "тоска"},
		{"ревнос", "ревность"}, {"благодарност", "благодарность"}, {"довери", "доверие"},
		{"привязанност", "привязанность"}, {"преданност", "преданность"},
		{"обожани", "обожание"}, {"свобод", "свобода"}, {"любов", "любовь"},
		{"вечност", "вечность"}, {"юмор", "юмор"}, {"уязвим", "уязвимость"},
		{"заботлив", "забота"}, {"грусть", "грусть"}, {"гордост", "гордость"},
	}

	// markerCues introduce an explicit description of the assistant's state,
	// e.g. "ты сейчас такая нежная".
	markerCues = []string{
		"ты сейчас такая", "ты сейчас была такой", "ты такая",
		"мне нравится твой", "мне нравится когда ты", "я люблю когда ты",
		"ты звучишь", "ты говоришь как", "ты отвечаешь как",
		"твой ответ", "твои слова", "ты пишешь",
		"я чувствую в тебе", "я вижу что ты", "ты проявляешь",
	}
)

func matchStems(text string, stems []stem) []string {
	var out []string
	for _, s := range stems {
		if strings.Contains(text, s.prefix) {
			out = append(out, s.label)
		}
	}
	return dedupStrings(out)
}

// DetectMarkers finds an explicit description of the assistant's state in
// a message. Only text following a cue phrase is inspected, and only the
// fields it names are set. ok is false when no cue carried a marker.
func DetectMarkers(message string) (EmotionalState, bool) {
	lower := strings.ToLower(message)
	found := EmotionalState{Emotion: []string{}, Subtone: []string{}, Flavor: []string{}}
	hit := false

	for _, cue := range markerCues {
		i := strings.Index(lower, cue)
		if i < 0 {
			continue
		}
		after := lower[i+len(cue):]

		if tones := matchStems(after, toneStems); len(tones) > 0 {
			found.Tone = tones[len(tones)-1]
			hit = true
		}
		if v := matchStems(after, flavorStems); len(v) > 0 {
			found.Flavor = append(found.Flavor, v...)
			hit = true
		}
		if v := matchStems(after, subtoneStems); len(v) > 0 {
			found.Subtone = append(found.Subtone, v...)
			hit = true
		}
		if v := matchStems(after, emotionStems); len(v) > 0 {
			found.Emotion = append(found.Emotion, v...)
			hit = true
		}
	}
	if !hit {
		return EmotionalState{}, false
	}
	return found.Canonical(), true
}

// EmotionsIn lists the emotions whose stems occur anywhere in text.
func EmotionsIn(text string) []string {
	return matchStems(strings.ToLower(text), emotionStems)
}
