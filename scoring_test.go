package reverie

import (
	"math"
	"testing"
)

func TestBlendScore(t *testing.T) {
	// 0.7*0.9 + 0.3*0.5 = 0.78
	score := BlendScore(0.9, 0.5, 0.3)
	if math.Abs(score-0.78) > 0.001 {
		t.Errorf("expected 0.780, got %.3f", score)
	}
	if BlendScore(0.4, 1.0, 0) != 0.4 {
		t.Error("zero weight should return relevance unchanged")
	}
}

func TestEmotionalBlendWeightByIntent(t *testing.T) {
	cases := map[Intent]float64{
		IntentIntimate:           0.3,
		IntentEmotionalSupport:   0.3,
		IntentAboutRelationship:  0.2,
		IntentMemoryRecall:       0.2,
		IntentAboutUser:          0.1,
		IntentCasualChat:         0.1,
		IntentGreeting:           0.1,
		IntentInformationRequest: 0.05,
		IntentCommand:            0.05,
	}
	for intent, want := range cases {
		if got := EmotionalBlendWeight(intent); got != want {
			t.Errorf("%s: expected %.2f, got %.2f", intent, want, got)
		}
	}
}

func TestEmotionalBlendFavoursWeightForIntimate(t *testing.T) {
	// A less relevant but emotionally heavy fragment gains more under an
	// intimate intent than under a command.
	heavy := func(in Intent) float64 { return BlendScore(0.6, 1.0, EmotionalBlendWeight(in)) }
	light := func(in Intent) float64 { return BlendScore(0.7, 0.0, EmotionalBlendWeight(in)) }
	if heavy(IntentIntimate) <= light(IntentIntimate) {
		t.Errorf("intimate: heavy=%.3f light=%.3f", heavy(IntentIntimate), light(IntentIntimate))
	}
	if heavy(IntentCommand) >= light(IntentCommand) {
		t.Errorf("command: heavy=%.3f light=%.3f", heavy(IntentCommand), light(IntentCommand))
	}
}

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{1, 2, 3}
	sim := CosineSimilarity(v, v)
	if math.Abs(sim-1.0) > 0.001 {
		t.Errorf("identical vectors should have similarity 1.0, got %.3f", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	sim := CosineSimilarity(a, b)
	if math.Abs(sim) > 0.001 {
		t.Errorf("orthogonal vectors should have similarity 0.0, got %.3f", sim)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{-1, 0}
	sim := CosineSimilarity(a, b)
	if math.Abs(sim-(-1.0)) > 0.001 {
		t.Errorf("opposite vectors should have similarity -1.0, got %.3f", sim)
	}
}

func TestCosineSimilarityDifferentLengths(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}
	sim := CosineSimilarity(a, b)
	if sim != 0 {
		t.Errorf("different length vectors should return 0, got %.3f", sim)
	}
}

func TestCosineSimilarityEmpty(t *testing.T) {
	sim := CosineSimilarity(nil, nil)
	if sim != 0 {
		t.Errorf("nil vectors should return 0, got %.3f", sim)
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	sim := CosineSimilarity(a, b)
	if sim != 0 {
		t.Errorf("zero vector should return 0, got %.3f", sim)
	}
}
