// AngelaMos | 2026
// gemini_test.go

package assistant

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), config.AIConfig{Model: "gemini-1.5-flash"})

	require.ErrorIs(t, err, core.ErrNotConfigured)
}

func TestResponseText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{
			name: "nil response",
			resp: nil,
			want: "",
		},
		{
			name: "no candidates",
			resp: &genai.GenerateContentResponse{},
			want: "",
		},
		{
			name: "joins text parts",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: &genai.Content{Parts: []genai.Part{
						genai.Text(`{"title":`),
						genai.Text(`"Call client"}`),
					}}},
				},
			},
			want: `{"title":"Call client"}`,
		},
		{
			name: "skips empty candidate",
			resp: &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{
					{Content: nil},
					{Content: &genai.Content{Parts: []genai.Part{genai.Text("second")}}},
				},
			},
			want: "second",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, responseText(tt.resp))
		})
	}
}
