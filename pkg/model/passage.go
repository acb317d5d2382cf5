package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrEmptyPassageBody = goerr.New("passage body is empty")
)

// Passage is one stored text unit usable as LLM context. Title is the
// originating page title and may be empty.
type Passage struct {
	ID    int64
	Title string
	Body  string
}

// Validate checks if the passage can be stored
func (p *Passage) Validate() error {
	if strings.TrimSpace(p.Body) == "" {
		return ErrEmptyPassageBody
	}
	return nil
}
