package config

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "OpenAI API key is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Database config
	if c.Database.URL != "" {
		if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.ShardCapacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.shard_capacity",
			Message: "shard_capacity must be positive",
		})
	}

	// Validate Retriever config
	if c.Retriever.Workers < 1 || c.Retriever.Workers > 64 {
		errors = append(errors, ValidationError{
			Field:   "retriever.workers",
			Message: "workers must be between 1 and 64",
		})
	}

	if c.Retriever.ShardBudget < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.shard_budget",
			Message: "shard_budget must be positive",
		})
	}

	if c.Retriever.PerShardTimeoutSec < 1 {
		errors = append(errors, ValidationError{
			Field:   "retriever.per_shard_timeout_sec",
			Message: "per_shard_timeout_sec must be positive",
		})
	}

	// Ranker weights must form a convex combination; a floor outside (0, 1]
	// would let composite scores collapse to zero.
	weightSum := c.Ranker.SimilarityWeight + c.Ranker.ContentWeight + c.Ranker.TitleWeight
	if math.Abs(weightSum-1.0) > 1e-9 {
		errors = append(errors, ValidationError{
			Field:   "ranker",
			Message: fmt.Sprintf("relevance weights must sum to 1.0, got %.3f", weightSum),
		})
	}

	if c.Ranker.Floor <= 0 || c.Ranker.Floor > 1 {
		errors = append(errors, ValidationError{
			Field:   "ranker.floor",
			Message: "floor must be in (0, 1]",
		})
	}

	// Validate Assembler config
	if c.Assembler.MaxDocuments < 1 {
		errors = append(errors, ValidationError{
			Field:   "assembler.max_documents",
			Message: "max_documents must be positive",
		})
	}

	if c.Assembler.LowBudget > c.Assembler.MediumBudget || c.Assembler.MediumBudget > c.Assembler.HighBudget {
		errors = append(errors, ValidationError{
			Field:   "assembler",
			Message: "budgets must be ordered low <= medium <= high",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 1 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must be positive",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	// Validate extensions format
	for _, ext := range c.Scraper.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") && ext != "" && ext != "/" {
			errors = append(errors, ValidationError{
				Field:   "scraper.allowed_extensions",
				Message: fmt.Sprintf("invalid extension format: %s", ext),
			})
		}
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
