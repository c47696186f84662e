package ranker

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
)

type Weights struct {
	Similarity float64
	Content    float64
	Title      float64
}

type Config struct {
	Weights Weights
	// Floor is the minimum composite score. Distance-to-similarity
	// conversion can go to zero or negative, and a non-positive relevance
	// breaks the confidence percentage downstream.
	Floor float64
}

// Ranker converts raw shard hits into a deduplicated list ordered by
// composite relevance.
type Ranker struct {
	config Config
	logger zerolog.Logger
}

func New(config Config, logger zerolog.Logger) *Ranker {
	if config.Weights == (Weights{}) {
		config.Weights = Weights{Similarity: 0.6, Content: 0.3, Title: 0.1}
	}
	if config.Floor == 0 {
		config.Floor = 0.1
	}

	return &Ranker{
		config: config,
		logger: logger,
	}
}

// RankAndDedupe scores every hit, keeps the best-scoring hit per document
// id, and returns the survivors in descending relevance. Ties keep the
// original shard-search order.
func (r *Ranker) RankAndDedupe(hits []models.DocumentHit, query string) []models.RankedDocument {
	if len(hits) == 0 {
		return nil
	}

	terms := tokenize(query)

	// Dedup key is the document id, never a content hash: many distinct
	// pages share a boilerplate opening, and hashing a text prefix once
	// collapsed hundreds of documents into one.
	byID := make(map[string]int, len(hits))
	var unique []models.RankedDocument

	for _, hit := range hits {
		score := r.score(hit, terms)
		ranked := models.RankedDocument{DocumentHit: hit, Relevance: score}

		if idx, seen := byID[hit.ID]; seen {
			if score > unique[idx].Relevance {
				unique[idx] = ranked
			}
			continue
		}

		byID[hit.ID] = len(unique)
		unique = append(unique, ranked)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		return unique[i].Relevance > unique[j].Relevance
	})

	if dropped := len(hits) - len(unique); dropped > 0 {
		r.logger.Debug().
			Int("hits", len(hits)).
			Int("unique", len(unique)).
			Msg("deduplicated shard hits")
	}

	return unique
}

// score combines vector similarity with keyword overlap against content and
// title. The result is always within [Floor, 1.0].
func (r *Ranker) score(hit models.DocumentHit, terms []string) float64 {
	similarity := hit.Similarity
	if similarity < r.config.Floor {
		similarity = r.config.Floor
	}

	content := strings.ToLower(hit.Content)
	title := strings.ToLower(hit.Title())

	contentOverlap := overlap(terms, content)
	titleOverlap := overlap(terms, title)

	w := r.config.Weights
	score := similarity*w.Similarity + contentOverlap*w.Content + titleOverlap*w.Title

	if score < r.config.Floor {
		score = r.config.Floor
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// overlap is the fraction of query terms present in the text.
func overlap(terms []string, text string) float64 {
	if len(terms) == 0 || text == "" {
		return 0
	}

	matched := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func tokenize(query string) []string {
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.Trim(term, ".,!?;:()[]{}\"'")
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
