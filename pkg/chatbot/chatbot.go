package chatbot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
	"github.com/huskychat/huskychat/pkg/assembler"
	"github.com/huskychat/huskychat/pkg/ranker"
)

type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type discoverer interface {
	Shards(ctx context.Context) ([]string, error)
}

type searcher interface {
	Search(ctx context.Context, embedding []float32, shards []string, query string) ([]models.DocumentHit, error)
}

type generator interface {
	Generate(ctx context.Context, question string, win models.ContextWindow) (*models.Answer, error)
}

type validator interface {
	Validate(ctx context.Context, question string, answer *models.Answer, contextText string) *models.Answer
}

// AnswerCache is the optional Redis layer. A nil cache disables caching.
type AnswerCache interface {
	GetAnswer(ctx context.Context, question string) (*models.Answer, bool)
	SetAnswer(ctx context.Context, question string, answer *models.Answer)
	GetEmbedding(ctx context.Context, text string) ([]float32, bool)
	SetEmbedding(ctx context.Context, text string, embedding []float32)
}

// Deps collects the pipeline stages. Ranker and Assembler are concrete
// because they are pure and cheap to construct in tests.
type Deps struct {
	Embedder  embedder
	Discovery discoverer
	Retriever searcher
	Ranker    *ranker.Ranker
	Assembler *assembler.Assembler
	Generator generator
	Validator validator
	Cache     AnswerCache
	Logger    zerolog.Logger
}

// Chatbot runs the full question pipeline: embed, discover shards, fan out
// the search, rank, assemble a bounded context, generate, validate.
type Chatbot struct {
	deps Deps
}

func New(deps Deps) *Chatbot {
	return &Chatbot{deps: deps}
}

func (c *Chatbot) Ask(ctx context.Context, question string) (*models.Answer, error) {
	start := time.Now()

	if c.deps.Cache != nil {
		if answer, ok := c.deps.Cache.GetAnswer(ctx, question); ok {
			c.deps.Logger.Debug().Str("question", question).Msg("answer cache hit")
			answer.Timing.Total = time.Since(start)
			return answer, nil
		}
	}

	embedding, err := c.embedQuestion(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	shards, err := c.deps.Discovery.Shards(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering shards: %w", err)
	}

	hits, err := c.deps.Retriever.Search(ctx, embedding, shards, question)
	if err != nil {
		return nil, err
	}

	ranked := c.deps.Ranker.RankAndDedupe(hits, question)
	win := c.deps.Assembler.Assemble(ranked)
	searchTime := time.Since(start)

	genStart := time.Now()
	answer, err := c.deps.Generator.Generate(ctx, question, win)
	if err != nil {
		return nil, err
	}
	answer = c.deps.Validator.Validate(ctx, question, answer, win.Text)

	answer.DocumentsSearched = len(hits)
	answer.Timing = models.Timing{
		Search:     searchTime,
		Generation: time.Since(genStart),
		Total:      time.Since(start),
	}

	c.deps.Logger.Info().
		Int("shards", len(shards)).
		Int("hits", len(hits)).
		Int("context_docs", len(win.Documents)).
		Float64("confidence", answer.ConfidencePercent).
		Dur("total", answer.Timing.Total).
		Msg("answered question")

	// Degraded zero-document answers stay out of the cache so a transient
	// empty index does not pin a useless response for the TTL.
	if c.deps.Cache != nil && len(win.Documents) > 0 {
		c.deps.Cache.SetAnswer(ctx, question, answer)
	}

	return answer, nil
}

func (c *Chatbot) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if c.deps.Cache != nil {
		if embedding, ok := c.deps.Cache.GetEmbedding(ctx, question); ok {
			return embedding, nil
		}
	}

	embedding, err := c.deps.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	if c.deps.Cache != nil {
		c.deps.Cache.SetEmbedding(ctx, question, embedding)
	}
	return embedding, nil
}
