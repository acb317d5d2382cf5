package generator

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/lumia/pkg/adapter"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

//go:embed prompt/answer.md
var answerPromptRaw string

var answerPromptTmpl = template.Must(template.New("answer").Parse(answerPromptRaw))

const (
	DefaultTimeout      = 120 * time.Second
	DefaultContextTable = "prape"
	DefaultContextLimit = 3
	DefaultInstitution  = "Universidade Federal da Paraíba (UFPB)"
)

// ContextRetriever looks up context passages when the caller supplies none
type ContextRetriever interface {
	Retrieve(ctx context.Context, question, table string, limit int) []string
}

// Generator phrases the final answer with an LLM. It never fails: every
// failure is turned into an apology text.
type Generator struct {
	completer    adapter.Completer
	retriever    ContextRetriever
	timeout      time.Duration
	contextTable string
	contextLimit int
	institution  string
}

// Option is a functional option for Generator
type Option func(*Generator)

// WithTimeout bounds each LLM call
func WithTimeout(timeout time.Duration) Option {
	return func(g *Generator) {
		g.timeout = timeout
	}
}

// WithContextTable sets the table searched when no context is supplied
func WithContextTable(table string) Option {
	return func(g *Generator) {
		g.contextTable = table
	}
}

// WithContextLimit caps the number of passages retrieved when no context is supplied
func WithContextLimit(limit int) Option {
	return func(g *Generator) {
		g.contextLimit = limit
	}
}

// WithInstitution sets the institution the answer must be restricted to
func WithInstitution(name string) Option {
	return func(g *Generator) {
		g.institution = name
	}
}

// New creates a Generator. retriever may be nil, in which case omitted
// context is treated as empty.
func New(completer adapter.Completer, retriever ContextRetriever, opts ...Option) *Generator {
	g := &Generator{
		completer:    completer,
		retriever:    retriever,
		timeout:      DefaultTimeout,
		contextTable: DefaultContextTable,
		contextLimit: DefaultContextLimit,
		institution:  DefaultInstitution,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the identifier of the model answers are generated with
func (g *Generator) Model() string {
	return g.completer.Model()
}

// Generate answers question. A nil passages means the context was omitted and
// the generator retrieves it itself; an empty non-nil slice means no context.
func (g *Generator) Generate(ctx context.Context, question string, passages []string) string {
	logger := logging.From(ctx)

	if passages == nil && g.retriever != nil {
		logger.Debug("context not supplied, retrieving", "table", g.contextTable)
		passages = g.retriever.Retrieve(ctx, question, g.contextTable, g.contextLimit)
	}

	prompt, err := BuildPrompt(question, passages, g.institution)
	if err != nil {
		o := Outcome{Kind: KindUnexpected, Err: err}
		logger.Error("failed to build prompt", "error", err)
		return Message(o)
	}

	o := g.call(ctx, prompt)
	switch o.Kind {
	case KindSuccess:
		logger.Info("answer generated", "model", g.completer.Model(), "context", len(passages))
	case KindHTTPStatus:
		logger.Warn("LLM returned HTTP error", "kind", o.Kind.String(), "status", o.StatusCode, "error", o.Err)
	default:
		logger.Warn("LLM call failed", "kind", o.Kind.String(), "timeout", g.timeout, "error", o.Err)
	}

	return Message(o)
}

func (g *Generator) call(ctx context.Context, prompt string) Outcome {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	// A completer that ignores ctx must not hold the request past its deadline
	done := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- Outcome{Kind: KindUnexpected, Err: fmt.Errorf("panic in completer: %v", r)}
			}
		}()
		done <- Classify(g.completer.Complete(ctx, prompt))
	}()

	select {
	case o := <-done:
		return o
	case <-ctx.Done():
		return Classify("", ctx.Err())
	}
}

// BuildPrompt renders the prompt sent to the LLM
func BuildPrompt(question string, passages []string, institution string) (string, error) {
	var buf bytes.Buffer
	err := answerPromptTmpl.Execute(&buf, struct {
		Question    string
		Context     []string
		Institution string
	}{
		Question:    question,
		Context:     passages,
		Institution: institution,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
