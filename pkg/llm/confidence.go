package llm

import "github.com/huskychat/huskychat/internal/models"

// Confidence weights. They sum to 1.0; the result is a percentage.
const (
	similarityWeight = 0.4
	docCountWeight   = 0.2
	lengthWeight     = 0.2
	diversityWeight  = 0.2

	expectedDocs    = 10.0
	expectedLength  = 500.0
	expectedSources = 5.0
)

// Confidence estimates answer reliability in [0, 100] from retrieval
// quality signals. Zero documents is exactly 0 — never NaN, which once
// leaked to end users as a negative percentage.
func Confidence(docs []models.RankedDocument, answerLength int) float64 {
	if len(docs) == 0 {
		return 0
	}

	var relevanceSum float64
	urls := make(map[string]bool)
	for _, doc := range docs {
		relevanceSum += doc.Relevance
		if u := doc.URL(); u != "" {
			urls[u] = true
		}
	}

	avgRelevance := relevanceSum / float64(len(docs))
	docCountScore := capAt1(float64(len(docs)) / expectedDocs)
	lengthScore := capAt1(float64(answerLength) / expectedLength)
	diversityScore := capAt1(float64(len(urls)) / expectedSources)

	percent := 100 * (avgRelevance*similarityWeight +
		docCountScore*docCountWeight +
		lengthScore*lengthWeight +
		diversityScore*diversityWeight)

	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

func confidenceLabel(percent float64) string {
	switch {
	case percent > 70:
		return "high"
	case percent > 50:
		return "medium"
	default:
		return "low"
	}
}

func capAt1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
