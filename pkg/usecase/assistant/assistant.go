package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/agent"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

// FallbackAgent is the agent name recorded when no binding answered
const FallbackAgent = "fallback"

// FailureAnswer is returned when routing itself failed unexpectedly
const FailureAnswer = "Desculpe, ocorreu um erro inesperado ao processar sua pergunta."

// UseCase routes questions to topic agents and falls back to the generator
type UseCase struct {
	bindings  []agent.Binding
	generator agent.Generator
	history   repository.InteractionLog
	now       func() time.Time
}

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithInteractionLog records every answered question in log
func WithInteractionLog(log repository.InteractionLog) Option {
	return func(uc *UseCase) {
		uc.history = log
	}
}

// WithClock replaces the clock used for timing and interaction timestamps
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) {
		uc.now = now
	}
}

// New creates an assistant over ordered bindings
func New(bindings []agent.Binding, generator agent.Generator, opts ...Option) *UseCase {
	uc := &UseCase{
		bindings:  bindings,
		generator: generator,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Route answers question. Bindings are tried in order; the first agent that
// answers wins and an agent returning NotApplicable passes the question on.
// When nothing answers, the generator is asked without pre-supplied context.
// Route always returns a result with an answer.
func (uc *UseCase) Route(ctx context.Context, question string) (result *model.AnswerResult) {
	logger := logging.From(ctx)

	defer func() {
		if r := recover(); r != nil {
			err := goerr.New("panic in router", goerr.V("recover", r))
			logger.Error("routing panicked", "error", err)
			result = &model.AnswerResult{Answer: FailureAnswer}
			result.AddLog("erro: falha inesperada no roteamento: %v", r)
		}
	}()

	lowered := strings.ToLower(question)
	var trail []string

	for _, b := range uc.bindings {
		if !b.Match(lowered) {
			continue
		}

		logger.Debug("binding matched", "agent", b.Name)
		outcome := b.Agent.Answer(ctx, question)
		if !outcome.Applicable() {
			trail = append(trail, fmt.Sprintf("router: agente %s sem resposta, continuando", b.Name))
			continue
		}

		answered := outcome.Result()
		if answered.Agent == "" {
			answered.Agent = b.Name
		}
		answered.Logs = append(append(trail, fmt.Sprintf("router: pergunta roteada para o agente %s", b.Name)), answered.Logs...)
		if answered.Answer == "" {
			answered.Answer = FailureAnswer
		}
		logger.Info("question answered by agent", "agent", b.Name)
		return answered
	}

	logger.Info("no agent answered, using fallback")
	answer := uc.generator.Generate(ctx, question, nil)
	if answer == "" {
		answer = FailureAnswer
	}

	result = &model.AnswerResult{
		Answer: answer,
		Agent:  FallbackAgent,
		Model:  uc.generator.Model(),
		Logs:   trail,
	}
	result.AddLog("fallback: nenhum agente especializado respondeu, usando o modelo de linguagem")
	return result
}

// Ask routes question and annotates the answer with timing and model. The
// interaction is recorded when a log is configured; recording failures are
// logged and never affect the answer.
func (uc *UseCase) Ask(ctx context.Context, question string) *model.Response {
	logger := logging.From(ctx)
	started := uc.now()

	result := uc.Route(ctx, question)

	resp := model.NewResponse(result)
	resp.ProcessingTimeMS = float64(uc.now().Sub(started).Microseconds()) / 1000

	if uc.history != nil {
		interaction := &model.Interaction{
			ID:        model.NewInteractionID(),
			Question:  question,
			Answer:    resp.Answer,
			Agent:     result.Agent,
			CreatedAt: uc.now().UTC(),
		}
		if err := uc.history.PutInteraction(ctx, interaction); err != nil {
			logger.Warn("failed to record interaction", "error", goerr.Wrap(err, "failed to put interaction", goerr.V("id", interaction.ID)))
		}
	}

	return resp
}
