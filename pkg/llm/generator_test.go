package llm

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/huskychat/huskychat/internal/models"
)

// fakeModel serves canned completions and records prompts.
type fakeModel struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	idx := f.calls
	f.calls++

	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				f.prompts = append(f.prompts, text.Text)
			}
		}
	}

	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}

	response := "default answer"
	if idx < len(f.responses) {
		response = f.responses[idx]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: response}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

func testWindow(n int) models.ContextWindow {
	win := models.ContextWindow{Text: "[Source 1] Co-op\nCooperative education details\n"}
	for i := 0; i < n; i++ {
		win.Documents = append(win.Documents, models.RankedDocument{
			DocumentHit: models.DocumentHit{
				ID: fmt.Sprintf("doc%d", i),
				Metadata: map[string]interface{}{
					"url": fmt.Sprintf("https://example.edu/%d", i),
				},
			},
			Relevance: 0.8,
		})
		win.Sources = append(win.Sources, models.Source{Rank: i + 1})
	}
	return win
}

func newTestGenerator(model llms.Model) *Generator {
	return NewGeneratorWithModel(model, GeneratorConfig{
		Temperature: 0.2,
		Timeout:     time.Second,
	}, zerolog.Nop())
}

func TestGenerate(t *testing.T) {
	model := &fakeModel{responses: []string{"The co-op program pairs classroom study with paid work experience."}}
	g := newTestGenerator(model)

	answer, err := g.Generate(context.Background(), "What is the co-op program?", testWindow(3))
	require.NoError(t, err)

	assert.Equal(t, "The co-op program pairs classroom study with paid work experience.", answer.Text)
	assert.Equal(t, 1, model.calls)
	assert.Greater(t, answer.ConfidencePercent, 0.0)
	assert.Equal(t, 3, answer.DocumentsSearched)

	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "What is the co-op program?")
	assert.Contains(t, model.prompts[0], "[Source 1]")
}

func TestGenerateZeroDocuments(t *testing.T) {
	model := &fakeModel{}
	g := newTestGenerator(model)

	answer, err := g.Generate(context.Background(), "question", models.ContextWindow{})
	require.NoError(t, err)

	assert.Equal(t, 0, model.calls, "no LLM call without context")
	assert.Equal(t, 0.0, answer.ConfidencePercent)
	assert.Contains(t, answer.Text, "couldn't find any relevant information")
	assert.Empty(t, answer.Sources)
}

func TestGenerateRetriesOnceWithShorterContext(t *testing.T) {
	model := &fakeModel{
		errs:      []error{fmt.Errorf("request timed out")},
		responses: []string{"", "recovered answer"},
	}
	g := newTestGenerator(model)

	answer, err := g.Generate(context.Background(), "question", testWindow(2))
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", answer.Text)
	assert.Equal(t, 2, model.calls)
}

func TestGenerateFailsAfterRetry(t *testing.T) {
	model := &fakeModel{
		errs: []error{fmt.Errorf("boom"), fmt.Errorf("boom again")},
	}
	g := newTestGenerator(model)

	_, err := g.Generate(context.Background(), "question", testWindow(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 2, model.calls, "exactly one retry")
}

func TestConfidenceBounds(t *testing.T) {
	for _, docCount := range []int{0, 1, 5, 10, 50} {
		for _, answerLen := range []int{0, 100, 500, 10000} {
			docs := testWindow(docCount).Documents
			percent := Confidence(docs, answerLen)

			assert.GreaterOrEqual(t, percent, 0.0, "docs=%d len=%d", docCount, answerLen)
			assert.LessOrEqual(t, percent, 100.0, "docs=%d len=%d", docCount, answerLen)
			assert.False(t, percent != percent, "confidence must never be NaN")
		}
	}
}

func TestConfidenceZeroDocumentsIsExactlyZero(t *testing.T) {
	assert.Equal(t, 0.0, Confidence(nil, 500))
	assert.Equal(t, 0.0, Confidence([]models.RankedDocument{}, 0))
}

func TestConfidenceLabel(t *testing.T) {
	assert.Equal(t, "high", confidenceLabel(80))
	assert.Equal(t, "medium", confidenceLabel(60))
	assert.Equal(t, "low", confidenceLabel(50))
	assert.Equal(t, "low", confidenceLabel(0))
}
