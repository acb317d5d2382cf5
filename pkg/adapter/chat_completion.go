package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultChatCompletionEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	DefaultChatCompletionModel    = "llama3-8b-8192"
)

// ChatCompletion is a client of an OpenAI compatible chat completions endpoint
type ChatCompletion struct {
	client      *resty.Client
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	topP        float64
}

var _ Completer = (*ChatCompletion)(nil)

type ChatCompletionOption func(*ChatCompletion)

func WithEndpoint(endpoint string) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.endpoint = endpoint
	}
}

func WithModel(model string) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.model = model
	}
}

// WithHTTPTimeout bounds a single HTTP exchange. Callers usually bound the
// call with a context deadline as well.
func WithHTTPTimeout(timeout time.Duration) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.client.SetTimeout(timeout)
	}
}

func WithTemperature(temperature float64) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.temperature = temperature
	}
}

func WithMaxTokens(maxTokens int) ChatCompletionOption {
	return func(c *ChatCompletion) {
		c.maxTokens = maxTokens
	}
}

// NewChatCompletion creates a client authenticated with a bearer API key
func NewChatCompletion(apiKey string, opts ...ChatCompletionOption) *ChatCompletion {
	client := resty.New().
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetAuthToken(apiKey)

	c := &ChatCompletion{
		client:      client,
		endpoint:    DefaultChatCompletionEndpoint,
		model:       DefaultChatCompletionModel,
		temperature: 0.5,
		maxTokens:   1024,
		topP:        1,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
	Stop        []string      `json:"stop"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatCompletion) Model() string {
	return c.model
}

func (c *ChatCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		TopP:        c.topP,
		Stream:      false,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		return "", goerr.Wrap(err, "failed to call chat completion endpoint", goerr.V("endpoint", c.endpoint))
	}

	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return "", &HTTPStatusError{StatusCode: code, Body: resp.String()}
	}

	var body chatCompletionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", goerr.Wrap(ErrMalformedResponse, "failed to decode chat completion", goerr.V("error", err.Error()))
	}

	if len(body.Choices) == 0 {
		return "", goerr.Wrap(ErrMalformedResponse, "no choices in chat completion")
	}
	msg := body.Choices[0].Message
	if msg == nil || msg.Content == nil || *msg.Content == "" {
		return "", goerr.Wrap(ErrMalformedResponse, "no content in first choice")
	}

	return *msg.Content, nil
}
