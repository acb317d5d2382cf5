package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/m-mizutani/lumia/pkg/adapter"
)

// Kind tags the result of one LLM call
type Kind int

const (
	KindSuccess Kind = iota
	KindTimeout
	KindNetworkError
	KindHTTPStatus
	KindMalformed
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindNetworkError:
		return "network_error"
	case KindHTTPStatus:
		return "http_status"
	case KindMalformed:
		return "malformed"
	case KindUnexpected:
		return "unexpected"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the tagged result of one LLM call
type Outcome struct {
	Kind       Kind
	StatusCode int    // KindHTTPStatus only
	Text       string // KindSuccess only, trimmed
	Err        error
}

// Classify turns the raw return values of a Completer into an Outcome
func Classify(text string, err error) Outcome {
	if err == nil {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return Outcome{Kind: KindMalformed, Err: adapter.ErrMalformedResponse}
		}
		return Outcome{Kind: KindSuccess, Text: trimmed}
	}

	var statusErr *adapter.HTTPStatusError
	switch {
	case errors.Is(err, adapter.ErrMalformedResponse):
		return Outcome{Kind: KindMalformed, Err: err}
	case errors.As(err, &statusErr):
		return Outcome{Kind: KindHTTPStatus, StatusCode: statusErr.StatusCode, Err: err}
	case isTimeout(err):
		return Outcome{Kind: KindTimeout, Err: err}
	case isNetworkError(err):
		return Outcome{Kind: KindNetworkError, Err: err}
	default:
		return Outcome{Kind: KindUnexpected, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Message returns the user-facing text of an outcome
func Message(o Outcome) string {
	switch o.Kind {
	case KindSuccess:
		return o.Text
	case KindTimeout:
		return "Desculpe, a solicitação ao modelo de linguagem demorou muito para responder."
	case KindNetworkError:
		return "Desculpe, houve um problema de comunicação ao tentar gerar a resposta (rede)."
	case KindHTTPStatus:
		switch o.StatusCode {
		case 401:
			return "Desculpe, a chave de API fornecida para o serviço de linguagem é inválida."
		case 429:
			return "Desculpe, o limite de requisições para o serviço de linguagem foi atingido. Tente novamente mais tarde."
		default:
			return fmt.Sprintf("Desculpe, o serviço de linguagem retornou um erro HTTP %d.", o.StatusCode)
		}
	case KindMalformed:
		return "Desculpe, recebi uma resposta inválida do serviço de linguagem."
	default:
		return "Desculpe, ocorreu um erro inesperado ao tentar gerar a resposta."
	}
}
