package models

import "time"

type Document struct {
	ID       string
	URL      string
	Title    string
	Content  string
	Metadata map[string]interface{}
}

type ProcessedDocument struct {
	Document
	Chunks []string
}

// DocumentHit is one raw nearest-neighbor result from a single shard.
type DocumentHit struct {
	ID         string
	Content    string
	Metadata   map[string]interface{}
	Shard      string
	Similarity float64
}

// Title returns the title recorded in the hit metadata, or "" when absent.
func (h DocumentHit) Title() string {
	return metaString(h.Metadata, "title")
}

// URL returns the source URL recorded in the hit metadata, or "" when absent.
func (h DocumentHit) URL() string {
	if u := metaString(h.Metadata, "url"); u != "" {
		return u
	}
	return metaString(h.Metadata, "source_url")
}

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// RankedDocument is a DocumentHit with its composite relevance score.
// Relevance is always within [floor, 1.0]; a non-positive score would
// poison the downstream confidence percentage.
type RankedDocument struct {
	DocumentHit
	Relevance float64
}

type Source struct {
	Title          string  `json:"title"`
	URL            string  `json:"url"`
	Similarity     float64 `json:"similarity"`
	ContentPreview string  `json:"content_preview"`
	Rank           int     `json:"rank"`
}

// ContextWindow is the bounded, formatted document set handed to the LLM.
type ContextWindow struct {
	Text      string
	Documents []RankedDocument
	Sources   []Source
}

type Timing struct {
	Search     time.Duration `json:"search"`
	Generation time.Duration `json:"generation"`
	Total      time.Duration `json:"total"`
}

type Answer struct {
	Text              string   `json:"answer"`
	Confidence        string   `json:"confidence"`
	ConfidencePercent float64  `json:"confidence_percentage"`
	Sources           []Source `json:"sources"`
	DocumentsSearched int      `json:"documents_searched"`
	Timing            Timing   `json:"timing"`
}
