// AngelaMos | 2026
// gemini.go

package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
)

const transcribeInstruction = "Transcribe this voice recording verbatim in its original language. " +
	"Return only the spoken text without timestamps, speaker labels or commentary."

var errEmptyResponse = errors.New("empty model response")

// Prompt is one structured generation request. JSON switches the model to
// JSON output mode.
type Prompt struct {
	System    string
	User      string
	JSON      bool
	MaxTokens int32
}

type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
}

func NewGemini(ctx context.Context, cfg config.AIConfig) (*Gemini, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini: %w", core.ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.Timeout,
	}, nil
}

func (g *Gemini) Close() error {
	return g.client.Close()
}

func (g *Gemini) Transcribe(
	ctx context.Context,
	audio []byte,
	mimeType string,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.newModel(g.maxTokens)

	start := time.Now()
	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio},
		genai.Text(transcribeInstruction),
	)
	metrics.RecordUpstreamCall("gemini", "transcribe", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("gemini transcribe: %w: %w", core.ErrUpstream, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("gemini transcribe: %w: %w", core.ErrUpstream, errEmptyResponse)
	}

	return text, nil
}

func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.maxTokens
	}

	model := g.newModel(maxTokens)
	if p.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(p.System))
	}
	if p.JSON {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(p.User))
	metrics.RecordUpstreamCall("gemini", "generate", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w: %w", core.ErrUpstream, err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", fmt.Errorf("gemini generate: %w: %w", core.ErrUpstream, errEmptyResponse)
	}

	return text, nil
}

func (g *Gemini) newModel(maxTokens int32) *genai.GenerativeModel {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(g.temperature)
	model.SetMaxOutputTokens(maxTokens)
	return model
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}

		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}

		if b.Len() > 0 {
			return b.String()
		}
	}

	return ""
}
