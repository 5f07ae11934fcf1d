package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nexuscore/assistant-core/internal/config"
	"github.com/nexuscore/assistant-core/internal/conversation"
	"github.com/nexuscore/assistant-core/internal/events"
	"github.com/nexuscore/assistant-core/internal/executor"
	"github.com/nexuscore/assistant-core/internal/llmparser"
	"github.com/nexuscore/assistant-core/internal/observability"
	"github.com/nexuscore/assistant-core/internal/retrieval"
	"github.com/nexuscore/assistant-core/internal/taskrunner"
	"github.com/nexuscore/assistant-core/internal/tasks"
	"github.com/nexuscore/assistant-core/internal/toolregistry"
	"github.com/nexuscore/assistant-core/internal/triggers"
	"github.com/nexuscore/assistant-core/internal/turndriver"
	"github.com/nexuscore/assistant-core/internal/usage"
)

// app bundles every wired subsystem for one running nexuscore process.
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	slog   *slog.Logger
	metrics *observability.Metrics

	tracerShutdown func(context.Context) error

	sqlDB        *sql.DB
	sqliteKeyword *retrieval.SQLiteKeywordIndex

	convStore  conversation.Store
	usageStore usage.Store
	taskStore  tasks.Store

	bus        events.Bus
	registry   *toolregistry.Registry
	dispatcher *toolregistry.Dispatcher
	exec       *executor.Executor
	scheduler  *triggers.Scheduler
	driver     *turndriver.Driver

	httpServer *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
	})
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: observability.LogLevelFromString(cfg.Observability.LogLevel),
	}))
	metrics := observability.NewMetrics()
	_, tracerShutdown := observability.NewTracer(observability.TraceConfig{
		ServiceName: "nexuscore", ServiceVersion: version, SampleRatio: cfg.Observability.TraceSample,
	})

	a := &app{cfg: cfg, logger: logger, slog: slogger, metrics: metrics, tracerShutdown: tracerShutdown}

	if err := a.wireStorage(ctx); err != nil {
		return nil, err
	}

	a.bus = a.wireEventBus()

	a.registry = toolregistry.NewRegistry()
	if err := a.registry.Register(notifyTool(a.bus)); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}
	a.dispatcher = toolregistry.NewDispatcher(a.registry, a.taskStore, toolregistry.DefaultDispatchConfig(), a.slog)

	orchestrator, err := a.wireRetrieval(ctx)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(ctx, cfg.LLM, a.slog)
	if err != nil {
		return nil, err
	}
	parser := llmparser.New(a.registry.Validate)

	a.driver = turndriver.New(turndriver.Deps{
		Retrieval:    orchestrator,
		Provider:     provider,
		Parser:       parser,
		Dispatcher:   a.dispatcher,
		Registry:     a.registry,
		Conversation: a.convStore,
		Usage:        a.usageStore,
		Tasks:        a.taskStore,
		Logger:       a.logger,
	}, turndriver.DefaultConfig())

	execCfg := executor.DefaultConfig()
	execCfg.WorkerCount = cfg.Executor.WorkerCount
	execCfg.BackpressureK = cfg.Executor.BackpressureK
	execCfg.PollInterval = cfg.Executor.PollInterval
	execCfg.Logger = a.slog
	a.exec = executor.New(a.taskStore, taskrunner.New(a.dispatcher), execCfg)

	a.scheduler = triggers.NewScheduler(
		&storeTaskCreator{store: a.taskStore, bus: a.bus},
		triggers.NewMemoryFireStore(),
		triggers.WithLogger(a.slog),
	)

	a.httpServer = a.newHTTPServer()
	return a, nil
}

func (a *app) wireStorage(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case "postgres":
		db, err := sql.Open("pgx", a.cfg.Storage.PostgresDSN)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		a.sqlDB = db
		a.convStore = conversation.NewPostgresStore(db)
		a.usageStore = usage.NewPostgresStore(db)
		taskStore, err := tasks.NewPostgresStoreFromDSN(a.cfg.Storage.PostgresDSN, tasks.DefaultPostgresConfig())
		if err != nil {
			return fmt.Errorf("open postgres task store: %w", err)
		}
		a.taskStore = taskStore
	default:
		a.convStore = conversation.NewMemoryStore()
		a.usageStore = usage.NewMemoryStore()
		a.taskStore = tasks.NewMemoryStore()
	}
	return nil
}

func (a *app) wireEventBus() events.Bus {
	if a.cfg.Storage.RedisAddr == "" {
		return events.NewMemoryBus()
	}
	client := redis.NewClient(&redis.Options{Addr: a.cfg.Storage.RedisAddr})
	return events.NewRedisBus(client)
}

func (a *app) wireRetrieval(ctx context.Context) (*retrieval.Orchestrator, error) {
	var keyword retrieval.KeywordIndex
	switch a.cfg.Storage.Driver {
	case "postgres":
		keyword = retrieval.NewPostgresKeywordIndex(a.sqlDB)
	default:
		idx, err := retrieval.NewSQLiteKeywordIndex(":memory:")
		if err != nil {
			return nil, fmt.Errorf("open sqlite keyword index: %w", err)
		}
		a.sqliteKeyword = idx
		keyword = idx
	}

	var vector retrieval.VectorIndex
	var embeddings retrieval.EmbeddingService
	if a.cfg.Retrieval.QdrantAddr != "" {
		host, portStr, err := net.SplitHostPort(a.cfg.Retrieval.QdrantAddr)
		var idx *retrieval.QdrantIndex
		if err == nil {
			port, perr := strconv.Atoi(portStr)
			if perr != nil {
				err = perr
			} else {
				idx, err = retrieval.NewQdrantIndex(retrieval.QdrantConfig{
					Host: host, Port: port, Collection: a.cfg.Retrieval.Collection,
				})
			}
		}
		if err != nil {
			a.logger.Warn(ctx, "retrieval: qdrant unavailable, falling back to keyword-only", "error", err)
		} else {
			vector = idx
			if pc, ok := a.cfg.LLM.Providers["openai"]; ok && pc.APIKey != "" {
				svc, err := retrieval.NewOpenAIEmbeddingService(retrieval.OpenAIEmbeddingConfig{APIKey: pc.APIKey})
				if err != nil {
					a.logger.Warn(ctx, "retrieval: embedding service unavailable", "error", err)
				} else {
					embeddings = svc
				}
			}
		}
	}

	classifier := retrieval.NewKeywordClassifier(retrieval.DefaultKeywords(), nil)
	return retrieval.New(classifier, embeddings, vector, keyword, retrieval.Config{
		VectorTopK: a.cfg.Retrieval.VectorTopK, KeywordTopK: a.cfg.Retrieval.KeywordTopK,
		ContextBudget: a.cfg.Retrieval.ContextBudget,
	}), nil
}

// notifyTool is the one built-in tool this entrypoint registers: it fans
// a message out over the Event Bus rather than doing domain work itself,
// letting the Turn Driver and Triggers exercise the same dispatch path
// plugin-registered tools will use.
func notifyTool(bus events.Bus) toolregistry.Tool {
	return toolregistry.Tool{
		Name:        "notify",
		Description: "Publish a message to the \"notify\" event topic for external observers.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {"message": {"type": "string"}},
			"required": ["message"]
		}`),
		Capabilities: toolregistry.Capabilities{SideEffecting: true},
		Handle: func(ctx context.Context, params json.RawMessage, principal toolregistry.Principal) (toolregistry.Result, error) {
			var body struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(params, &body); err != nil {
				return toolregistry.Result{}, fmt.Errorf("notify: decode params: %w", err)
			}
			if err := bus.Publish("notify", map[string]string{
				"principal": principal.ID,
				"message":   body.Message,
			}); err != nil {
				return toolregistry.Result{}, fmt.Errorf("notify: publish: %w", err)
			}
			return toolregistry.Result{Output: json.RawMessage(`{"sent":true}`)}, nil
		},
	}
}

func (a *app) Start(ctx context.Context) error {
	if err := a.exec.Start(ctx); err != nil {
		return fmt.Errorf("start executor: %w", err)
	}
	a.scheduler.Start(ctx)

	go func() {
		a.logger.Info(context.Background(), "starting http server", "addr", a.cfg.Server.ListenAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error(context.Background(), "http server error", "error", err)
		}
	}()
	return nil
}

func (a *app) Stop(ctx context.Context) {
	_ = a.httpServer.Shutdown(ctx)
	a.scheduler.Stop()
	if err := a.exec.Stop(ctx); err != nil {
		a.logger.Warn(context.Background(), "executor stop", "error", err)
	}
}

func (a *app) Close(ctx context.Context) {
	if a.tracerShutdown != nil {
		_ = a.tracerShutdown(ctx)
	}
	if a.sqliteKeyword != nil {
		_ = a.sqliteKeyword.Close()
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
}

func (a *app) newHTTPServer() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("POST /v1/conversations/{id}/messages", a.handlePostMessage)

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
