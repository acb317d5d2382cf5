package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/model"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
)

const (
	WelcomeMessage    = "Bem-vindo à API do LumIA! Use o endpoint /api/ask para fazer perguntas."
	EmptyQuestionText = "A pergunta não pode estar vazia."
	InvalidBodyText   = "Corpo da requisição inválido."
	FailureAnswer     = "Desculpe, ocorreu um erro inesperado ao processar sua pergunta."
)

// Asker answers a question with an annotated response
type Asker interface {
	Ask(ctx context.Context, question string) *model.Response
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Server is the HTTP transport in front of the assistant
type Server struct {
	asker  Asker
	engine *gin.Engine
}

// Option is a functional option for Server
type Option func(*Server)

// WithCORS enables permissive CORS headers
func WithCORS() Option {
	return func(s *Server) {
		s.engine.Use(CORSMiddleware())
	}
}

// New creates the HTTP server. ctx carries the base logger for requests.
func New(ctx context.Context, asker Asker, opts ...Option) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware(logging.From(ctx)))
	engine.Use(LoggerMiddleware())

	s := &Server{
		asker:  asker,
		engine: engine,
	}
	for _, opt := range opts {
		opt(s)
	}

	engine.GET("/", s.welcome)
	engine.GET("/healthz", s.healthz)
	engine.POST("/api/ask", s.ask)

	return s
}

// Handler returns the http.Handler serving all routes
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": WelcomeMessage})
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ask(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.From(ctx)

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, errorResponse{Detail: EmptyQuestionText})
			return
		}
		logger.Warn("failed to decode request", "error", err)
		c.JSON(http.StatusBadRequest, errorResponse{Detail: InvalidBodyText})
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Detail: EmptyQuestionText})
		return
	}

	c.JSON(http.StatusOK, s.safeAsk(ctx, question))
}

// safeAsk keeps failures of the core inside a success-shaped body
func (s *Server) safeAsk(ctx context.Context, question string) (resp *model.Response) {
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := goerr.New("panic while answering", goerr.V("recover", r))
			logging.From(ctx).Error("request panicked", "error", err)
			resp = &model.Response{
				Answer:           FailureAnswer,
				Logs:             []string{fmt.Sprintf("erro: falha inesperada: %v", r)},
				ProcessingTimeMS: float64(time.Since(started).Microseconds()) / 1000,
			}
		}
	}()

	resp = s.asker.Ask(ctx, question)
	if resp == nil {
		resp = &model.Response{
			Answer: FailureAnswer,
			Logs:   []string{"erro: nenhuma resposta produzida"},
		}
	}
	return resp
}
