package reverie

import "math"

// --- Blended fragment scoring ---

// EmotionalBlendWeight is the share of a fragment's final score taken by
// its emotional weight for a given intent. Emotion-heavy intents lean on
// it; factual ones barely do.
func EmotionalBlendWeight(intent Intent) float64 {
	switch intent {
	case IntentIntimate, IntentEmotionalSupport:
		return 0.3
	case IntentAboutRelationship, IntentMemoryRecall:
		return 0.2
	case IntentInformationRequest, IntentCommand:
		return 0.05
	default:
		return 0.1
	}
}

// BlendScore mixes relevance and emotional weight:
//
//	score = (1-w)×relevance + w×emotionalWeight
func BlendScore(relevance, emotionalWeight, w float64) float64 {
	return (1-w)*relevance + w*emotionalWeight
}

// --- Cosine similarity ---

// CosineSimilarity computes the cosine similarity between two float32 vectors.
// Returns 0 if either vector is zero-length or zero-norm.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
