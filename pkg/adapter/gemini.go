package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Gemini is a Completer backed by Gemini on Vertex AI
type Gemini struct {
	client          *genai.Client
	generativeModel string
	temperature     float32
	maxTokens       int32
}

var _ Completer = (*Gemini)(nil)

type GeminiOption func(*Gemini)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *Gemini) {
		g.generativeModel = model
	}
}

func NewGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create genai client")
	}

	g := &Gemini{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		temperature:     0.5,
		maxTokens:       1024,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *Gemini) Model() string {
	return g.generativeModel
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		TopP:            genai.Ptr[float32](1),
		MaxOutputTokens: g.maxTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && apiErr.Code != 0 {
			return "", &HTTPStatusError{StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		return "", goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}

	text := geminiText(resp)
	if text == "" {
		return "", goerr.Wrap(ErrMalformedResponse, "no text in gemini response", goerr.V("model", g.generativeModel))
	}
	return text, nil
}

// geminiText returns the text parts of the first candidate
func geminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil ||
		len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
