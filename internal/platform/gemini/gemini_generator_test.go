package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	resp    *genai.GenerateContentResponse
	err     error
	prompts []string
	model   string
	config  *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	for _, c := range contents {
		for _, p := range c.Parts {
			f.prompts = append(f.prompts, p.Text)
		}
	}
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(t *testing.T, models modelClient) *GeminiGenerator {
	t.Helper()

	tmpl, err := loadPromptTemplate("")
	require.NoError(t, err)
	return newGenerator(slog.New(slog.NewTextHandler(io.Discard, nil)), models, "gemini-test", tmpl)
}

func TestGenerate_ParsesItems(t *testing.T) {
	t.Parallel()

	models := &fakeModels{resp: textResponse("```json\n" + `{"items": [
		{"question": "Solve 2x = 6", "answer": "3", "choices": ["2", "3"]},
		{"question": "Solve x + 1 = 4", "answer": "3", "tags": ["linear"]},
		{"question": "extra", "answer": "dropped"}
	]}` + "\n```")}
	g := newTestGenerator(t, models)

	items, err := g.Generate(context.Background(), generation.Request{
		Subject: "Algebra", Topic: "equations", Difficulty: 4, Count: 2,
		Tags: []string{"goal"}, Avoid: []string{"What is 1+1?"},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	for _, item := range items {
		assert.Equal(t, domain.ItemSourceAIGenerated, item.Source)
		assert.True(t, item.Flagged)
		assert.Equal(t, 4, item.Difficulty)
		assert.Equal(t, domain.RatingForDifficulty(4), item.DifficultyRating)
		assert.Equal(t, "Algebra", item.Subject)
	}
	assert.Equal(t, []string{"goal"}, items[0].Tags, "request tags fill in missing item tags")
	assert.Equal(t, []string{"linear"}, items[1].Tags)

	assert.Equal(t, "gemini-test", models.model)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	require.Len(t, models.prompts, 1)
	assert.Contains(t, models.prompts[0], "Subject: Algebra")
	assert.Contains(t, models.prompts[0], "Topic: equations")
	assert.Contains(t, models.prompts[0], "exactly 2 distinct")
	assert.Contains(t, models.prompts[0], "- What is 1+1?")
}

func TestGenerate_ErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		models    *fakeModels
		wantErr   error
		transient bool
	}{
		{
			name:      "rate limited",
			models:    &fakeModels{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}},
			wantErr:   generation.ErrTransientFailure,
			transient: true,
		},
		{
			name:      "server error",
			models:    &fakeModels{err: fmt.Errorf("post: %w", genai.APIError{Code: http.StatusServiceUnavailable})},
			wantErr:   generation.ErrTransientFailure,
			transient: true,
		},
		{
			name:    "bad request",
			models:  &fakeModels{err: genai.APIError{Code: http.StatusBadRequest, Message: "bad"}},
			wantErr: generation.ErrInvalidRequest,
		},
		{
			name:      "deadline",
			models:    &fakeModels{err: context.DeadlineExceeded},
			wantErr:   generation.ErrTransientFailure,
			transient: true,
		},
		{
			name:    "unclassified",
			models:  &fakeModels{err: errors.New("boom")},
			wantErr: generation.ErrGenerationFailed,
		},
		{
			name:      "malformed json",
			models:    &fakeModels{resp: textResponse("not json")},
			wantErr:   generation.ErrInvalidResponse,
			transient: true,
		},
		{
			name:      "no candidates",
			models:    &fakeModels{resp: &genai.GenerateContentResponse{}},
			wantErr:   generation.ErrInvalidResponse,
			transient: true,
		},
		{
			name: "safety block",
			models: &fakeModels{resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content:      &genai.Content{},
					FinishReason: genai.FinishReasonSafety,
				}},
			}},
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:      "items without answers",
			models:    &fakeModels{resp: textResponse(`{"items": [{"question": "q", "answer": ""}]}`)},
			wantErr:   generation.ErrInvalidResponse,
			transient: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			g := newTestGenerator(t, tt.models)
			_, err := g.Generate(context.Background(), generation.Request{Subject: "Algebra", Difficulty: 5, Count: 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.transient, generation.IsTransient(err))
		})
	}
}

func TestGenerate_InvalidRequestSkipsModel(t *testing.T) {
	t.Parallel()

	models := &fakeModels{}
	g := newTestGenerator(t, models)

	_, err := g.Generate(context.Background(), generation.Request{Subject: "Algebra", Difficulty: 5, Count: 0})
	assert.ErrorIs(t, err, generation.ErrInvalidRequest)
	assert.Empty(t, models.prompts)
}

func TestNewGeminiGenerator_Config(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	_, err := NewGeminiGenerator(ctx, nil, config.LLMConfig{ModelName: "m"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewGeminiGenerator(ctx, nil, config.LLMConfig{GeminiAPIKey: "k"})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewGeminiGenerator(ctx, nil, config.LLMConfig{
		GeminiAPIKey: "k", ModelName: "m", PromptTemplatePath: "/does/not/exist.tmpl",
	})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestLoadPromptTemplate_FromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "prompt.tmpl")
	require.NoError(t, os.WriteFile(path, []byte("Make {{.Count}} {{.Subject}} items"), 0o600))

	tmpl, err := loadPromptTemplate(path)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, tmpl.Execute(&sb, promptData{Subject: "Algebra", Count: 3}))
	assert.Equal(t, "Make 3 Algebra items", sb.String())

	bad := filepath.Join(t.TempDir(), "bad.tmpl")
	require.NoError(t, os.WriteFile(bad, []byte("{{.Broken"), 0o600))
	_, err = loadPromptTemplate(bad)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
