package llm

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/huskychat/huskychat/internal/models"
)

// A request moves Generated -> Accepted directly, or Generated ->
// Regenerating -> Accepted. There is no transition from Regenerating back
// to Generated: regeneration happens at most once, regardless of what the
// second answer looks like.

// Phrases that mark an answer as boilerplate rather than an actual answer.
var genericPhrases = []string{
	"based on the context",
	"i can provide you with information",
	"the provided context does not include",
	"the provided context does not contain",
	"to find detailed information",
	"it would be best to consult",
	"as an expert assistant",
	"i cannot provide details",
	"i recommend visiting",
	"for accurate and comprehensive information",
}

type ValidatorConfig struct {
	MinLength int
}

type regenerator interface {
	Regenerate(ctx context.Context, question, contextText string) (string, error)
}

// Validator detects generic non-answers and makes at most one regeneration
// attempt. A failed regeneration keeps the original answer; validation
// never turns a degraded answer into a request failure.
type Validator struct {
	config ValidatorConfig
	gen    regenerator
	logger zerolog.Logger
}

func NewValidator(gen regenerator, config ValidatorConfig, logger zerolog.Logger) *Validator {
	if config.MinLength == 0 {
		config.MinLength = 150
	}

	return &Validator{
		config: config,
		gen:    gen,
		logger: logger,
	}
}

// Validate returns the answer to hand to the caller, regenerated at most
// once.
func (v *Validator) Validate(ctx context.Context, question string, answer *models.Answer, contextText string) *models.Answer {
	if !v.needsRegeneration(question, answer.Text) {
		return answer
	}

	v.logger.Info().
		Int("length", len(answer.Text)).
		Msg("generic answer detected, regenerating once")

	text, err := v.gen.Regenerate(ctx, question, contextText)
	if err != nil {
		// Fall back to the original answer; the user still gets a response.
		v.logger.Warn().Err(err).Msg("regeneration failed, keeping original answer")
		return answer
	}

	improved := *answer
	improved.Text = text
	return &improved
}

// needsRegeneration requires all three signals: a generic marker phrase, no
// token overlap with the question, and a short answer.
func (v *Validator) needsRegeneration(question, answer string) bool {
	lower := strings.ToLower(answer)

	generic := false
	for _, phrase := range genericPhrases {
		if strings.Contains(lower, phrase) {
			generic = true
			break
		}
	}
	if !generic {
		return false
	}

	if sharesTokens(question, lower) {
		return false
	}

	return len(answer) < v.config.MinLength
}

// Question words and glue that appear in almost any answer and carry no
// topical signal.
var stopTerms = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "was": {}, "this": {},
	"that": {}, "what": {}, "when": {}, "where": {}, "which": {}, "who": {},
	"why": {}, "how": {}, "can": {}, "does": {}, "about": {}, "with": {},
	"you": {}, "your": {}, "tell": {}, "have": {},
}

func sharesTokens(question, answerLower string) bool {
	for _, term := range strings.Fields(strings.ToLower(question)) {
		term = strings.Trim(term, ".,!?;:()[]{}\"'")
		if len(term) < 3 {
			continue
		}
		if _, stop := stopTerms[term]; stop {
			continue
		}
		if strings.Contains(answerLower, term) {
			return true
		}
	}
	return false
}
