package assembler

import (
	"fmt"
	"math"
	"strings"

	"github.com/huskychat/huskychat/internal/models"
)

type Config struct {
	MaxDocuments int
	// Character budgets by relevance band. Higher-confidence documents get
	// more room to contribute detail; the total stays bounded to keep LLM
	// latency and cost inside the end-to-end target.
	HighBudget   int
	MediumBudget int
	LowBudget    int
}

const (
	highRelevance   = 0.5
	mediumRelevance = 0.3

	truncationMarker = "..."
	previewLength    = 200
)

type Assembler struct {
	config Config
}

func New(config Config) *Assembler {
	if config.MaxDocuments == 0 {
		config.MaxDocuments = 5
	}
	if config.HighBudget == 0 {
		config.HighBudget = 800
	}
	if config.MediumBudget == 0 {
		config.MediumBudget = 600
	}
	if config.LowBudget == 0 {
		config.LowBudget = 400
	}

	return &Assembler{config: config}
}

// Assemble renders the top-ranked documents into a numbered context block
// plus the citation list returned alongside the answer.
func (a *Assembler) Assemble(ranked []models.RankedDocument) models.ContextWindow {
	n := a.config.MaxDocuments
	if n > len(ranked) {
		n = len(ranked)
	}
	selected := ranked[:n]

	var builder strings.Builder
	sources := make([]models.Source, 0, n)

	for i, doc := range selected {
		title := doc.Title()
		if title == "" || title == "Unknown" {
			title = fmt.Sprintf("University Document %d", i+1)
		}

		content := truncate(doc.Content, a.budgetFor(doc.Relevance))

		builder.WriteString(fmt.Sprintf("[Source %d] %s\n%s\n\n", i+1, title, content))

		sources = append(sources, models.Source{
			Title:          title,
			URL:            doc.URL(),
			Similarity:     round3(doc.Similarity),
			ContentPreview: truncate(doc.Content, previewLength),
			Rank:           i + 1,
		})
	}

	return models.ContextWindow{
		Text:      strings.TrimSuffix(builder.String(), "\n"),
		Documents: selected,
		Sources:   sources,
	}
}

// budgetFor is a step function of the document's relevance score.
func (a *Assembler) budgetFor(relevance float64) int {
	switch {
	case relevance > highRelevance:
		return a.config.HighBudget
	case relevance > mediumRelevance:
		return a.config.MediumBudget
	default:
		return a.config.LowBudget
	}
}

func truncate(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	return text[:budget] + truncationMarker
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
