package model

import "fmt"

// AnswerResult is the answer assembled for a single question together with
// the trail of decisions that produced it.
type AnswerResult struct {
	Answer string

	// RawAnswer is set only when a retrieved passage seeded Answer.
	RawAnswer *string

	// Logs is append-only. Use AddLog.
	Logs []string

	// Agent is the name of the handler that produced the answer.
	Agent string

	// Model is the LLM model identifier when the generator was invoked.
	Model string
}

// AddLog appends a formatted entry to the decision trail
func (r *AnswerResult) AddLog(format string, args ...any) {
	r.Logs = append(r.Logs, fmt.Sprintf(format, args...))
}

// SetRawAnswer records the unrefined passage that seeded the answer
func (r *AnswerResult) SetRawAnswer(raw string) {
	r.RawAnswer = &raw
}

// Outcome is what a topic agent returns: either an answer or nothing.
// NotApplicable means the agent had nothing to contribute, which is not the
// same as an answer that happens to be an apology.
type Outcome struct {
	result *AnswerResult
}

// Answered wraps a result as a final outcome
func Answered(result *AnswerResult) Outcome {
	if result == nil {
		result = &AnswerResult{}
	}
	return Outcome{result: result}
}

// NotApplicable returns the outcome of an agent that found nothing
func NotApplicable() Outcome {
	return Outcome{}
}

// Applicable reports whether the outcome carries an answer
func (o Outcome) Applicable() bool {
	return o.result != nil
}

// Result returns the answer, or nil for NotApplicable
func (o Outcome) Result() *AnswerResult {
	return o.result
}

// Response is the annotated answer returned to the transport layer
type Response struct {
	Answer           string   `json:"answer"`
	RawAnswer        *string  `json:"raw_answer"`
	Logs             []string `json:"logs"`
	ProcessingTimeMS float64  `json:"processing_time_ms"`
	ModelUsed        *string  `json:"model_used"`

	Agent string `json:"-"`
}

// NewResponse converts an answer result into a response. Timing is filled by
// the caller.
func NewResponse(result *AnswerResult) *Response {
	resp := &Response{
		Answer:    result.Answer,
		RawAnswer: result.RawAnswer,
		Logs:      result.Logs,
		Agent:     result.Agent,
	}
	if resp.Logs == nil {
		resp.Logs = []string{}
	}
	if result.Model != "" {
		m := result.Model
		resp.ModelUsed = &m
	}
	return resp
}
