package agent

import (
	"context"

	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

// Stub is a topic without backing data yet. It never answers.
type Stub struct {
	name string
}

func NewStub(name string) *Stub {
	return &Stub{name: name}
}

func (a *Stub) Name() string {
	return a.name
}

func (a *Stub) Answer(ctx context.Context, question string) model.Outcome {
	logging.From(ctx).Debug("stub agent has no data", "agent", a.name)
	return model.NotApplicable()
}
