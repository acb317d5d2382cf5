package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

// RetrievalBacked answers from the single best-matching passage of its table.
// A hit is always refined by the generator, never returned verbatim.
type RetrievalBacked struct {
	name      string
	table     string
	topic     string
	matcher   Matcher
	generator Generator
}

// RetrievalOption is a functional option for RetrievalBacked
type RetrievalOption func(*RetrievalBacked)

// WithTopic sets the topic named in the apology returned on failure
func WithTopic(topic string) RetrievalOption {
	return func(a *RetrievalBacked) {
		a.topic = topic
	}
}

// NewRetrievalBacked creates an agent searching table. The topic defaults to
// the agent name in upper case.
func NewRetrievalBacked(name, table string, matcher Matcher, generator Generator, opts ...RetrievalOption) *RetrievalBacked {
	a := &RetrievalBacked{
		name:      name,
		table:     table,
		topic:     "a " + strings.ToUpper(name),
		matcher:   matcher,
		generator: generator,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RetrievalBacked) Name() string {
	return a.name
}

// Answer never returns NotApplicable for a failed lookup: a store error or a
// panic becomes an apology answer so the question is not re-routed.
func (a *RetrievalBacked) Answer(ctx context.Context, question string) (outcome model.Outcome) {
	logger := logging.From(ctx).With("agent", a.name, "table", a.table)
	result := &model.AnswerResult{Agent: a.name}
	result.AddLog("%s: pergunta recebida: %q", a.name, preview(question))

	defer func() {
		if r := recover(); r != nil {
			err := goerr.New("panic in agent", goerr.V("recover", r), goerr.V("agent", a.name))
			logger.Error("agent panicked", "error", err)
			result.AddLog("%s: erro inesperado: %v", a.name, r)
			result.Answer = a.apology()
			outcome = model.Answered(result)
		}
	}()

	result.AddLog("%s: buscando resposta no banco de dados", a.name)
	passage, found, err := a.matcher.BestMatch(ctx, question, a.table)
	if err != nil {
		logger.Error("failed to look up passage", "error", err)
		result.AddLog("%s: erro inesperado: %v", a.name, err)
		result.Answer = a.apology()
		return model.Answered(result)
	}

	if !found {
		logger.Debug("no passage found")
		return model.NotApplicable()
	}

	result.AddLog("%s: resposta encontrada no banco de dados: %q", a.name, preview(passage))
	result.SetRawAnswer(passage)

	result.AddLog("%s: refinando resposta com o modelo de linguagem", a.name)
	result.Answer = a.generator.Generate(ctx, question, []string{passage})
	result.Model = a.generator.Model()
	result.AddLog("%s: resposta refinada recebida do modelo de linguagem", a.name)

	logger.Info("answered from passage", "model", result.Model)
	return model.Answered(result)
}

func (a *RetrievalBacked) apology() string {
	return fmt.Sprintf("Desculpe, ocorreu um erro inesperado ao processar sua pergunta sobre %s.", a.topic)
}

func preview(s string) string {
	const max = 50
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
