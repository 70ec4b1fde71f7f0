package gemini

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"github.com/phrazzld/scry-practice/internal/config"
	"github.com/phrazzld/scry-practice/internal/domain"
	"github.com/phrazzld/scry-practice/internal/generation"
	"google.golang.org/genai"
)

//go:embed prompt.tmpl
var defaultPromptTemplate string

// modelClient is the subset of *genai.Models used by the generator.
type modelClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements the generation.Generator interface using
// Google's Gemini API.
type GeminiGenerator struct {
	logger         *slog.Logger
	models         modelClient
	model          string
	promptTemplate *template.Template
}

// Ensure GeminiGenerator implements generation.Generator
var _ generation.Generator = (*GeminiGenerator)(nil)

// NewGeminiGenerator creates a generator backed by the Gemini API.
// The prompt template is read from cfg.PromptTemplatePath when set, and the
// embedded default is used otherwise.
func NewGeminiGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*GeminiGenerator, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	tmpl, err := loadPromptTemplate(cfg.PromptTemplatePath)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, cfg.ModelName, tmpl), nil
}

func newGenerator(logger *slog.Logger, models modelClient, model string, tmpl *template.Template) *GeminiGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiGenerator{
		logger:         logger.With(slog.String("component", "gemini_generator")),
		models:         models,
		model:          model,
		promptTemplate: tmpl,
	}
}

func loadPromptTemplate(path string) (*template.Template, error) {
	content := defaultPromptTemplate
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
				generation.ErrInvalidConfig, path, err)
		}
		content = string(raw)
	}

	tmpl, err := template.New("practice").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v", generation.ErrInvalidConfig, err)
	}
	return tmpl, nil
}

// Generate implements generation.Generator. It makes a single model call;
// retrying is left to the caller, guided by generation.IsTransient.
func (g *GeminiGenerator) Generate(ctx context.Context, req generation.Request) ([]domain.PracticeItem, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := g.createPrompt(req)
	if err != nil {
		return nil, err
	}

	g.logger.DebugContext(ctx, "calling gemini",
		slog.String("subject", req.Subject),
		slog.Int("difficulty", req.Difficulty),
		slog.Int("count", req.Count),
		slog.Int("prompt_length", len(prompt)))

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		classified := classifyError(err)
		g.logger.WarnContext(ctx, "gemini call failed",
			slog.String("error", err.Error()),
			slog.Bool("transient", generation.IsTransient(classified)))
		return nil, classified
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	items, err := parseItems(text, req)
	if err != nil {
		return nil, err
	}

	g.logger.InfoContext(ctx, "gemini generated practice items",
		slog.String("subject", req.Subject),
		slog.Int("requested", req.Count),
		slog.Int("generated", len(items)))
	return items, nil
}

func (g *GeminiGenerator) createPrompt(req generation.Request) (string, error) {
	var buf bytes.Buffer
	err := g.promptTemplate.Execute(&buf, promptData{
		Subject:    req.Subject,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      req.Count,
		Tags:       req.Tags,
		Avoid:      req.Avoid,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("%w: %w: nil response", generation.ErrTransientFailure, generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: %w: no content generated", generation.ErrTransientFailure, generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response blocked by safety filters", generation.ErrContentBlocked)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// parseItems decodes the model output. Malformed output is treated as
// transient: the same request often succeeds on the next attempt.
func parseItems(text string, req generation.Request) ([]domain.PracticeItem, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var parsed ResponseSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", generation.ErrTransientFailure, generation.ErrInvalidResponse, err)
	}

	items := make([]domain.PracticeItem, 0, len(parsed.Items))
	var invalid error
	for _, raw := range parsed.Items {
		if len(items) == req.Count {
			break
		}
		tags := raw.Tags
		if len(tags) == 0 {
			tags = req.Tags
		}
		item, err := domain.NewGeneratedItem(req.Subject, req.Topic, raw.Question, raw.Answer, raw.Choices, tags, req.Difficulty)
		if err != nil {
			invalid = errors.Join(invalid, err)
			continue
		}
		items = append(items, *item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %w: no usable items (%v)",
			generation.ErrTransientFailure, generation.ErrInvalidResponse, invalid)
	}
	return items, nil
}
