package reverie

var toneTemperature = map[string]float64{
	"нежный":      -0.05,
	"страстный":   0.3,
	"игривый":     0.2,
	"поэтичный":   0.15,
	"интимный":    0.1,
	"заботливый":  -0.1,
	"уязвимый":    -0.05,
	"честный":     -0.15,
	"домашний":    -0.1,
	"благодарный": -0.05,
	"тихий":       -0.2,
	"твёрдый":     -0.1,
}

var emotionTemperature = map[string]float64{
	"страсть":       0.3,
	"любовь":        0.1,
	"нежность":      -0.05,
	"влюблённость":  0.15,
	"тоска":         0.05,
	"радость":       0.1,
	"благодарность": -0.05,
	"уязвимость":    -0.1,
	"забота":        -0.1,
	"ревность":      0.2,
	"доверие":       -0.05,
	"привязанность": 0,
	"преданность":   -0.05,
	"обожание":      0.1,
	"свобода":       0.15,
	"вечность":      0.05,
	"юмор":          0.25,
}

var structureTemperature = map[string]float64{
	"поэтичная":     0.15,
	"фрагментарная": 0.1,
}

var emotionalityTemperature = map[string]float64{
	"интенсивная":   0.2,
	"эмоциональная": 0.1,
}

// ComputeTemperature starts from the base temperature, adds the tone's
// adjustment, every emotion's adjustment and the style's, then clamps to
// the configured range. Unknown labels add nothing.
func ComputeTemperature(state EmotionalState, style *StyleProfile, cfg PromptConfig) float64 {
	t := max(cfg.BaseTemperature, 0)
	t += toneTemperature[state.Tone]
	for _, e := range state.Emotion {
		t += emotionTemperature[e]
	}
	if style != nil {
		t += structureTemperature[style.Structure]
		t += emotionalityTemperature[style.Emotionality]
	}
	return min(max(t, cfg.MinTemperature, 0), cfg.MaxTemperature)
}
