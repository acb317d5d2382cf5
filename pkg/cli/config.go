package cli

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lumia/pkg/adapter"
	"github.com/m-mizutani/lumia/pkg/agent"
	"github.com/m-mizutani/lumia/pkg/repository"
	"github.com/m-mizutani/lumia/pkg/usecase/assistant"
	"github.com/m-mizutani/lumia/pkg/usecase/generator"
	"github.com/m-mizutani/lumia/pkg/usecase/retriever"
	"github.com/m-mizutani/lumia/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	backendGroq   = "groq"
	backendGemini = "gemini"

	historySQLite    = "sqlite"
	historyFirestore = "firestore"
	historyNone      = "none"
)

// config holds configuration values
type config struct {
	logLevel string

	// Text store
	dbPath string

	// Interaction log
	historyBackend    string
	firestoreProject  string
	firestoreDatabase string

	// LLM
	llmBackend     string
	llmAPIKey      string
	llmEndpoint    string
	llmModel       string
	llmTimeout     time.Duration
	geminiProject  string
	geminiLocation string

	// Routing and retrieval
	routesPath   string
	contextTable string
	contextLimit int64
	domainFilter bool
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LUMIA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Path of the SQLite text store",
			Value:       filepath.Join("db", "lumia.db"),
			Sources:     cli.EnvVars("LUMIA_DB_PATH"),
			Destination: &cfg.dbPath,
		},
	}
}

// historyFlags returns flags selecting where interactions are recorded
func historyFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "history-backend",
			Usage:       "Interaction log backend (sqlite, firestore, none)",
			Value:       historySQLite,
			Sources:     cli.EnvVars("LUMIA_HISTORY_BACKEND"),
			Destination: &cfg.historyBackend,
		},
		&cli.StringFlag{
			Name:        "firestore-project",
			Usage:       "Google Cloud project ID for the Firestore interaction log",
			Sources:     cli.EnvVars("LUMIA_FIRESTORE_PROJECT", "GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.firestoreProject,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("LUMIA_FIRESTORE_DATABASE", "FIRESTORE_DATABASE_ID"),
			Destination: &cfg.firestoreDatabase,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-backend",
			Usage:       "LLM backend (groq, gemini)",
			Value:       backendGroq,
			Sources:     cli.EnvVars("LUMIA_LLM_BACKEND"),
			Destination: &cfg.llmBackend,
		},
		&cli.StringFlag{
			Name:        "llm-api-key",
			Usage:       "API key of the chat completion endpoint",
			Sources:     cli.EnvVars("LUMIA_LLM_API_KEY", "GROQ_API_KEY"),
			Destination: &cfg.llmAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-endpoint",
			Usage:       "OpenAI compatible chat completion endpoint",
			Value:       adapter.DefaultChatCompletionEndpoint,
			Sources:     cli.EnvVars("LUMIA_LLM_ENDPOINT"),
			Destination: &cfg.llmEndpoint,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Model name (backend default if empty)",
			Sources:     cli.EnvVars("LUMIA_LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Timeout of one LLM call",
			Value:       generator.DefaultTimeout,
			Sources:     cli.EnvVars("LUMIA_LLM_TIMEOUT"),
			Destination: &cfg.llmTimeout,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
	}
}

// routingFlags returns flags for routing and context retrieval
func routingFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "routes",
			Usage:       "YAML routing file replacing the built-in agents",
			Sources:     cli.EnvVars("LUMIA_ROUTES"),
			Destination: &cfg.routesPath,
		},
		&cli.StringFlag{
			Name:        "context-table",
			Usage:       "Table searched for context when no agent answers",
			Value:       generator.DefaultContextTable,
			Sources:     cli.EnvVars("LUMIA_CONTEXT_TABLE"),
			Destination: &cfg.contextTable,
		},
		&cli.IntFlag{
			Name:        "context-limit",
			Usage:       "Maximum number of context passages",
			Value:       generator.DefaultContextLimit,
			Sources:     cli.EnvVars("LUMIA_CONTEXT_LIMIT"),
			Destination: &cfg.contextLimit,
		},
		&cli.BoolFlag{
			Name:        "domain-filter",
			Usage:       "Prefer context passages mentioning the university",
			Value:       true,
			Sources:     cli.EnvVars("LUMIA_DOMAIN_FILTER"),
			Destination: &cfg.domainFilter,
		},
	}
}

// assistantFlags returns every flag needed to build the assistant
func assistantFlags(cfg *config) []cli.Flag {
	var flags []cli.Flag
	flags = append(flags, globalFlags(cfg)...)
	flags = append(flags, historyFlags(cfg)...)
	flags = append(flags, llmFlags(cfg)...)
	flags = append(flags, routingFlags(cfg)...)
	return flags
}

// setupLogger installs the configured logger as default and into ctx
func (cfg *config) setupLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stderr)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newPassageStore opens the SQLite text store, creating its directory
func (cfg *config) newPassageStore(ctx context.Context) (*repository.SQLite, error) {
	if cfg.dbPath == "" {
		return nil, goerr.New("db is required")
	}

	if cfg.dbPath != ":memory:" {
		if dir := filepath.Dir(cfg.dbPath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
			}
		}
	}

	db, err := repository.NewSQLite(ctx, cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open text store", goerr.V("path", cfg.dbPath))
	}
	return db, nil
}

// newCompleter creates the LLM backend
func (cfg *config) newCompleter(ctx context.Context) (adapter.Completer, error) {
	switch cfg.llmBackend {
	case backendGroq, "":
		if cfg.llmAPIKey == "" {
			return nil, goerr.New("llm-api-key is required for the groq backend")
		}
		opts := []adapter.ChatCompletionOption{
			adapter.WithEndpoint(cfg.llmEndpoint),
			adapter.WithHTTPTimeout(cfg.llmTimeout),
		}
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithModel(cfg.llmModel))
		}
		return adapter.NewChatCompletion(cfg.llmAPIKey, opts...), nil

	case backendGemini:
		if cfg.geminiProject == "" {
			return nil, goerr.New("gemini-project is required")
		}
		if cfg.geminiLocation == "" {
			return nil, goerr.New("gemini-location is required")
		}
		var opts []adapter.GeminiOption
		if cfg.llmModel != "" {
			opts = append(opts, adapter.WithGenerativeModel(cfg.llmModel))
		}
		gemini, err := adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create gemini client")
		}
		return gemini, nil

	default:
		return nil, goerr.New("unknown llm-backend", goerr.V("backend", cfg.llmBackend))
	}
}

// newInteractionLog creates the interaction log. It returns nil for the
// "none" backend. The returned function releases backend resources.
func (cfg *config) newInteractionLog(ctx context.Context, db *repository.SQLite) (repository.InteractionLog, func(), error) {
	nop := func() {}

	switch cfg.historyBackend {
	case historySQLite, "":
		return db, nop, nil

	case historyFirestore:
		if cfg.firestoreProject == "" {
			return nil, nop, goerr.New("firestore-project is required")
		}
		if cfg.firestoreDatabase == "" {
			return nil, nop, goerr.New("firestore-database is required")
		}
		fs, err := repository.NewFirestore(ctx, cfg.firestoreProject, cfg.firestoreDatabase)
		if err != nil {
			return nil, nop, goerr.Wrap(err, "failed to create firestore interaction log")
		}
		return fs, func() {
			if err := fs.Close(); err != nil {
				logging.From(ctx).Warn("failed to close firestore client", "error", err)
			}
		}, nil

	case historyNone:
		return nil, nop, nil

	default:
		return nil, nop, goerr.New("unknown history-backend", goerr.V("backend", cfg.historyBackend))
	}
}

// newRetriever creates the context retriever over store
func (cfg *config) newRetriever(store repository.PassageStore) *retriever.Retriever {
	if !cfg.domainFilter {
		return retriever.New(store, retriever.WithDomainTerms())
	}
	return retriever.New(store)
}

// newBindings loads the routing file, or returns the built-in bindings
func (cfg *config) newBindings(matcher agent.Matcher, gen agent.Generator) ([]agent.Binding, error) {
	if cfg.routesPath == "" {
		return agent.DefaultBindings(matcher, gen), nil
	}
	return agent.LoadBindings(cfg.routesPath, matcher, gen)
}

// newAssistant wires store, LLM, agents and interaction log. The returned
// function closes everything opened here.
func (cfg *config) newAssistant(ctx context.Context) (*assistant.UseCase, func(), error) {
	if cfg.contextLimit <= 0 {
		return nil, nil, goerr.New("context-limit must be positive", goerr.V("limit", cfg.contextLimit))
	}
	if cfg.llmTimeout <= 0 {
		return nil, nil, goerr.New("llm-timeout must be positive", goerr.V("timeout", cfg.llmTimeout))
	}

	db, err := cfg.newPassageStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logging.From(ctx).Warn("failed to close text store", "error", err)
		}
	}

	completer, err := cfg.newCompleter(ctx)
	if err != nil {
		closeDB()
		return nil, nil, err
	}

	history, closeHistory, err := cfg.newInteractionLog(ctx, db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	cleanup := func() {
		closeHistory()
		closeDB()
	}

	r := cfg.newRetriever(db)
	gen := generator.New(completer, r,
		generator.WithTimeout(cfg.llmTimeout),
		generator.WithContextTable(cfg.contextTable),
		generator.WithContextLimit(int(cfg.contextLimit)),
	)

	bindings, err := cfg.newBindings(r, gen)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var opts []assistant.Option
	if history != nil {
		opts = append(opts, assistant.WithInteractionLog(history))
	}

	logging.From(ctx).Debug("assistant ready",
		"db", cfg.dbPath,
		"llm_backend", cfg.llmBackend,
		"model", completer.Model(),
		"history_backend", cfg.historyBackend,
		"bindings", len(bindings),
	)
	return assistant.New(bindings, gen, opts...), cleanup, nil
}
