package retriever

import "strings"

// Topic targeting narrows the shard list before fan-out. Each category maps
// query keywords to shard-name patterns; queries that match no category fall
// back to an evenly spaced sample of the full list. This is a latency
// optimization only — a missed category still answers from the sample.

type topic struct {
	name     string
	keywords []string
	patterns []string
}

var topics = []topic{
	{
		name:     "admissions",
		keywords: []string{"admission", "admissions", "apply", "application", "sat", "act", "gpa", "acceptance", "deadline", "transfer"},
		patterns: []string{"admissions"},
	},
	{
		name:     "housing",
		keywords: []string{"housing", "dorm", "dormitory", "residence", "residential", "roommate", "apartment"},
		patterns: []string{"housing", "residence"},
	},
	{
		name:     "financial-aid",
		keywords: []string{"tuition", "scholarship", "scholarships", "financial", "aid", "fafsa", "loan", "grant", "cost"},
		patterns: []string{"financial", "tuition"},
	},
	{
		name:     "computer-science",
		keywords: []string{"computer", "science", "khoury", "programming", "software", "cybersecurity", "data"},
		patterns: []string{"computer", "khoury"},
	},
	{
		name:     "coop",
		keywords: []string{"co-op", "coop", "cooperative", "internship", "employer", "experiential"},
		patterns: []string{"coop", "experiential"},
	},
	{
		name:     "athletics",
		keywords: []string{"athletics", "sports", "team", "hockey", "basketball", "recreation", "gym"},
		patterns: []string{"athletics", "recreation"},
	},
}

// matchTopic returns the first category whose keywords appear in the query.
func matchTopic(query string) (topic, bool) {
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(query)) {
		terms = append(terms, strings.Trim(term, ".,!?;:()[]{}\"'"))
	}

	for _, t := range topics {
		for _, term := range terms {
			for _, kw := range t.keywords {
				if term == kw {
					return t, true
				}
			}
		}
	}
	return topic{}, false
}

// shardsForTopic filters the shard list down to names matching the
// category's patterns.
func shardsForTopic(t topic, shards []string) []string {
	var matched []string
	for _, shard := range shards {
		lower := strings.ToLower(shard)
		for _, p := range t.patterns {
			if strings.Contains(lower, p) {
				matched = append(matched, shard)
				break
			}
		}
	}
	return matched
}

// sampleEvenly picks at most budget shards, evenly spaced across the list,
// so fallback coverage stays roughly uniform over the whole corpus.
func sampleEvenly(shards []string, budget int) []string {
	if budget <= 0 || len(shards) <= budget {
		return shards
	}

	sampled := make([]string, 0, budget)
	stride := float64(len(shards)) / float64(budget)
	for i := 0; i < budget; i++ {
		sampled = append(sampled, shards[int(float64(i)*stride)])
	}
	return sampled
}
