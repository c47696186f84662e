package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/huskychat/huskychat/internal/models"
)

// ErrGeneration means the LLM call failed even after the shortened-context
// retry.
var ErrGeneration = errors.New("answer generation failed")

type GeneratorConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	University  string
}

// Generator wraps one chat-completion call per request, plus the single
// shortened-context retry.
type Generator struct {
	config GeneratorConfig
	llm    llms.Model
	logger zerolog.Logger
}

func NewGeneratorWithConfig(config GeneratorConfig, logger zerolog.Logger) (*Generator, error) {
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}

	opts := []openai.Option{}
	if config.Model != "" {
		opts = append(opts, openai.WithModel(config.Model))
	}
	if config.APIKey != "" {
		opts = append(opts, openai.WithToken(config.APIKey))
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewGeneratorWithModel(client, config, logger), nil
}

// NewGeneratorWithModel injects the completion model directly; tests use it
// to avoid the network.
func NewGeneratorWithModel(model llms.Model, config GeneratorConfig, logger zerolog.Logger) *Generator {
	if config.MaxTokens == 0 {
		config.MaxTokens = 300
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.University == "" {
		config.University = "Northeastern University"
	}

	return &Generator{
		config: config,
		llm:    model,
		logger: logger,
	}
}

// Generate answers the question from the assembled context. With an empty
// context window it returns a zero-confidence answer saying so; it never
// reports NaN or negative confidence.
func (g *Generator) Generate(ctx context.Context, question string, win models.ContextWindow) (*models.Answer, error) {
	if len(win.Documents) == 0 {
		return &models.Answer{
			Text: fmt.Sprintf(
				"I couldn't find any relevant information about this in the %s knowledge base. Try rephrasing the question or asking about a different topic.",
				g.config.University),
			Confidence:        "low",
			ConfidencePercent: 0,
			Sources:           []models.Source{},
		}, nil
	}

	prompt := g.buildPrompt(question, win.Text)

	text, err := g.complete(ctx, prompt)
	if err != nil {
		// One retry with roughly half the context; long prompts are the
		// usual culprit for provider timeouts.
		g.logger.Warn().Err(err).Msg("completion failed, retrying with shortened context")

		shortened := win.Text
		if len(shortened) > 1000 {
			shortened = shortened[:len(shortened)/2]
		}
		text, err = g.complete(ctx, g.buildPrompt(question, shortened))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
		}
	}

	percent := Confidence(win.Documents, len(text))

	return &models.Answer{
		Text:              text,
		Confidence:        confidenceLabel(percent),
		ConfidencePercent: percent,
		Sources:           win.Sources,
		DocumentsSearched: len(win.Documents),
	}, nil
}

// Regenerate makes one stricter attempt at a question whose first answer
// was flagged as generic.
func (g *Generator) Regenerate(ctx context.Context, question, contextText string) (string, error) {
	prompt := fmt.Sprintf(`Answer this specific question about %s: %q

Use information from this context: %s

CRITICAL INSTRUCTIONS:
- Provide a DETAILED, COMPREHENSIVE answer
- Structure your response clearly with bullet points or organized paragraphs
- Include ALL relevant details: specific numbers, dates, requirements, procedures
- Use the context as your primary source but provide a complete answer
- Do NOT say "the provided context does not contain" - use what information is available

Provide a detailed, well-structured answer:`, g.config.University, question, contextText)

	return g.complete(ctx, prompt)
}

func (g *Generator) buildPrompt(question, contextText string) string {
	// Refusing to answer when relevant context is present is the failure
	// mode here, not over-answering: an earlier, stricter wording made the
	// model decline questions the context clearly covered.
	return fmt.Sprintf(`Answer this %s question using the provided context:

Context: %s
Question: %s

Instructions:
- Answer the specific question using the context above
- Provide detailed, structured information
- Include specific details like numbers, dates, requirements
- Be comprehensive and helpful
- Only say the information is unavailable if the context is genuinely unrelated to the question

Answer:`, g.config.University, contextText, question)
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := g.llm.GenerateContent(cctx, content,
		llms.WithTemperature(g.config.Temperature),
		llms.WithMaxTokens(g.config.MaxTokens),
	)
	if err != nil {
		return "", err
	}
	if response == nil || len(response.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
