package application

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/bulk"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/config"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/flowstore"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/googleauth"
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/llm"
	_ "github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/llm/anthropic" // register anthropic provider factory
	_ "github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/llm/gemini"    // register gemini provider factory
	_ "github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/llm/openai"    // register openai provider factory
	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/persistence"
	toolpkg "github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/tool"
	httpinterface "github.com/ngoclaw/ngoclaw/gateway/internal/interfaces/http"
	"github.com/ngoclaw/ngoclaw/gateway/internal/interfaces/telegram"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the dependency-injection container wiring every layer together:
// persistence, the LLM router, the Gmail/Calendar/Trello adapters, the
// bulk-operation gate, the nine flow handlers, the turn orchestrator, and
// the Telegram/HTTP interfaces driving it.
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	convoRepo   repository.ConversationRepository
	memoryStore *persistence.GormMemoryStore

	toolRegistry domaintool.Registry
	toolExecutor *toolpkg.Executor
	llmRouter    *llm.Router

	flowStore      *flowstore.FileStore
	bulkController *bulk.Controller

	agentLoop    *service.AgentLoop
	orchestrator *Orchestrator

	telegramAdapter *telegram.Adapter
	httpServer      *httpinterface.Server
	heartbeat       *service.HeartbeatService
}

// NewApp builds the full gateway application: HTTP API, Telegram bot (if
// configured) and the heartbeat scheduler, all driving the same
// orchestrator.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{config: cfg, logger: logger}

	db, err := persistence.NewDBConnection(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db
	app.convoRepo = persistence.NewGormConversationRepository(db)
	app.memoryStore = persistence.NewGormMemoryStore(db)

	if err := app.initCore(); err != nil {
		return nil, fmt.Errorf("failed to init core services: %w", err)
	}

	if err := app.initInterfaces(); err != nil {
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}

	return app, nil
}

// NewAppCLI builds a lightweight application for the interactive CLI:
// silent DB logging, the same orchestrator, but no HTTP server, Telegram
// adapter, or heartbeat scheduler.
func NewAppCLI(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := config.Bootstrap(logger); err != nil {
		logger.Warn("bootstrap failed (non-fatal)", zap.Error(err))
	}

	app := &App{config: cfg, logger: logger}

	db, err := persistence.NewDBConnectionSilent(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.db = db
	app.convoRepo = persistence.NewGormConversationRepository(db)
	app.memoryStore = persistence.NewGormMemoryStore(db)

	if err := app.initCore(); err != nil {
		return nil, fmt.Errorf("failed to init core services: %w", err)
	}

	return app, nil
}

// initCore wires the tool layer, the LLM router, the bulk-operation gate,
// the nine flow handlers and the orchestrator — everything shared by both
// the full gateway and the CLI.
func (app *App) initCore() error {
	ctx := context.Background()
	cfg := app.config

	app.toolRegistry = domaintool.NewInMemoryRegistry()

	app.llmRouter = llm.NewRouter(app.logger)
	for _, p := range cfg.Agent.Providers {
		provider, err := llm.CreateProvider(llm.ProviderConfig{
			Name:    p.Name,
			BaseURL: p.BaseURL,
			APIKey:  p.APIKey,
			Models:  p.Models,
		}, app.logger)
		if err != nil {
			app.logger.Error("failed to create LLM provider", zap.String("name", p.Name), zap.Error(err))
			continue
		}
		app.llmRouter.AddProvider(provider)
	}
	app.logger.Info("LLM router initialized", zap.Int("providers", len(cfg.Agent.Providers)))

	var gmailClient toolpkg.GmailClient
	var calendarClient toolpkg.CalendarClient
	if googleauth.Configured(cfg.Google) {
		ts, err := googleauth.NewTokenSource(ctx, cfg.Google)
		if err != nil {
			app.logger.Warn("google token source init failed, skipping gmail/calendar", zap.Error(err))
		} else {
			if gc, err := toolpkg.NewGoogleGmailClient(ctx, ts, app.logger); err != nil {
				app.logger.Warn("gmail client init failed", zap.Error(err))
			} else {
				gmailClient = gc
			}
			if cc, err := toolpkg.NewGoogleCalendarClient(ctx, ts, cfg.Google.CalendarID, app.logger); err != nil {
				app.logger.Warn("calendar client init failed", zap.Error(err))
			} else {
				calendarClient = cc
			}
		}
	} else {
		app.logger.Info("google oauth not configured, gmail/calendar disabled")
	}

	var trelloClient toolpkg.TrelloClient
	if cfg.Trello.APIKey != "" && cfg.Trello.Token != "" && cfg.Trello.BoardID != "" {
		trelloClient = toolpkg.NewAdlioTrelloClient(cfg.Trello.APIKey, cfg.Trello.Token, cfg.Trello.BoardID, app.logger)
	} else {
		app.logger.Info("trello not configured, task board tools disabled")
	}

	toolpkg.RegisterAllTools(toolpkg.ToolLayerDeps{
		Registry: app.toolRegistry,
		Logger:   app.logger,
		Gmail:    gmailClient,
		Calendar: calendarClient,
		Trello:   trelloClient,
		Memory:   app.memoryStore,
	})

	policy := &domaintool.Policy{Profile: "full", AskMode: cfg.Agent.AskMode}
	app.toolExecutor = toolpkg.NewExecutor(app.toolRegistry, policy, app.logger)

	flowDir := filepath.Join(config.HomeDir(), "data")
	flowStore, err := flowstore.NewFileStore(flowDir, app.logger)
	if err != nil {
		return fmt.Errorf("failed to init flow store: %w", err)
	}
	app.flowStore = flowStore

	bulkRegistry := bulk.NewAdapterRegistry()
	if gmailClient != nil {
		bulkRegistry.Register(toolpkg.NewGmailBulkAdapter("gmail_bulk_delete", gmailClient))
		bulkRegistry.Register(toolpkg.NewGmailBulkAdapter("gmail_bulk_mark_read", gmailClient))
		bulkRegistry.Register(toolpkg.NewGmailBulkAdapter("gmail_bulk_spam_clean", gmailClient))
	}
	app.bulkController = bulk.NewController(bulkRegistry, app.logger)

	toolInvoker := newToolInvoker(app.toolExecutor)

	var handlers []flow.Handler
	handlers = append(handlers,
		flow.NewToolConfirmHandler(flowStore, toolInvoker),
		flow.NewConfidenceClarifyHandler(flowStore, toolInvoker),
	)
	if trelloClient != nil {
		handlers = append(handlers,
			flow.NewTrelloDispatchHandler(flowStore, toolInvoker),
			flow.NewTrelloCommentHandler(flowStore, toolInvoker),
		)
	}
	if gmailClient != nil {
		handlers = append(handlers,
			flow.NewMailDeleteHandler(flowStore, app.bulkController),
			flow.NewMailMarkReadHandler(flowStore, app.bulkController),
			flow.NewSpamCleanHandler(flowStore, app.bulkController),
			flow.NewGmailSendHandler(flowStore, toolInvoker),
		)
	}
	if calendarClient != nil {
		calendarPort := toolpkg.NewCalendarPortAdapter(calendarClient)
		handlers = append(handlers,
			flow.NewCalendarNoteHandler(flowStore, calendarPort),
			flow.NewCalendarCancelHandler(flowStore, calendarPort),
		)
	}

	loopCfg := app.buildAgentLoopConfig()
	app.agentLoop = service.NewAgentLoop(app.llmRouter, app.toolExecutor, loopCfg, app.logger)
	app.agentLoop.SetEnvelopeRouter(newEnvelopeRouter(flowStore))

	mwPipeline := service.NewMiddlewarePipeline(app.logger)
	mwPipeline.Use(
		service.NewDanglingToolCallMiddleware(app.logger),
		service.NewMemoryMiddleware(app.llmRouter, app.memoryStore, app.logger),
	)
	app.agentLoop.SetMiddleware(mwPipeline)

	app.orchestrator = NewOrchestrator(handlers, app.agentLoop, app.convoRepo, newPromptBuilder(app.logger), app.logger)

	app.logger.Info("core services initialized",
		zap.Int("flow_handlers", len(handlers)),
		zap.Bool("gmail", gmailClient != nil),
		zap.Bool("calendar", calendarClient != nil),
		zap.Bool("trello", trelloClient != nil),
	)
	return nil
}

func (app *App) buildAgentLoopConfig() service.AgentLoopConfig {
	cfg := app.config
	loopCfg := service.DefaultAgentLoopConfig()
	loopCfg.Model = cfg.Agent.DefaultModel

	if len(cfg.Agent.ModelPolicies) > 0 {
		loopCfg.ModelPolicies = make(map[string]*service.ModelPolicyOverride)
		for key, p := range cfg.Agent.ModelPolicies {
			loopCfg.ModelPolicies[key] = &service.ModelPolicyOverride{
				RepairToolPairing:   p.RepairToolPairing,
				EnforceTurnOrdering: p.EnforceTurnOrdering,
				ReasoningFormat:     p.ReasoningFormat,
				ProgressInterval:    p.ProgressInterval,
				ProgressEscalation:  p.ProgressEscalation,
				PromptStyle:         p.PromptStyle,
				SystemRoleSupport:   p.SystemRoleSupport,
				ThinkingTagHint:     p.ThinkingTagHint,
			}
		}
	}

	if cfg.Agent.MaxIterations > 0 {
		loopCfg.MaxSteps = cfg.Agent.MaxIterations
	}
	if cfg.Agent.Runtime.ToolTimeout > 0 {
		loopCfg.ToolTimeout = cfg.Agent.Runtime.ToolTimeout
	}
	if cfg.Agent.Runtime.MaxRetries > 0 {
		loopCfg.MaxRetries = cfg.Agent.Runtime.MaxRetries
	}
	if cfg.Agent.Runtime.RetryBaseWait > 0 {
		loopCfg.RetryBaseWait = cfg.Agent.Runtime.RetryBaseWait
	}
	if cfg.Agent.Runtime.MaxTokenBudget > 0 {
		loopCfg.MaxTokenBudget = cfg.Agent.Runtime.MaxTokenBudget
	}
	if cfg.Agent.Guardrails.ContextMaxTokens > 0 {
		loopCfg.ContextMaxTokens = cfg.Agent.Guardrails.ContextMaxTokens
	}
	if cfg.Agent.Guardrails.ContextWarnRatio > 0 {
		loopCfg.ContextWarnRatio = cfg.Agent.Guardrails.ContextWarnRatio
	}
	if cfg.Agent.Guardrails.ContextHardRatio > 0 {
		loopCfg.ContextHardRatio = cfg.Agent.Guardrails.ContextHardRatio
	}
	if cfg.Agent.Guardrails.LoopDetectThreshold > 0 {
		loopCfg.LoopDetectThreshold = cfg.Agent.Guardrails.LoopDetectThreshold
	}
	return loopCfg
}

// initInterfaces wires the HTTP server, the Telegram adapter (if a bot
// token is configured) and the heartbeat scheduler.
func (app *App) initInterfaces() error {
	cfg := app.config

	app.httpServer = httpinterface.NewServer(
		httpinterface.Config{Host: cfg.Gateway.Host, Port: cfg.Gateway.Port, Mode: cfg.Gateway.Mode},
		app.orchestrator,
		app.logger,
	)

	if cfg.Telegram.BotToken != "" {
		adapter, err := telegram.NewAdapter(&telegram.Config{
			BotToken:       cfg.Telegram.BotToken,
			AllowedUserIDs: cfg.Telegram.AllowIDs,
			DMPolicy:       cfg.Telegram.DMPolicy,
			GroupPolicy:    cfg.Telegram.GroupPolicy,
			GroupAllowFrom: cfg.Telegram.GroupAllowFrom,
		}, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create telegram adapter: %w", err)
		}
		app.telegramAdapter = adapter
		adapter.SetMessageHandler(&telegramMessageHandler{orchestrator: app.orchestrator, logger: app.logger})
		app.logger.Info("telegram adapter initialized")
	} else {
		app.logger.Info("telegram bot token not configured, skipping telegram adapter")
	}

	if cfg.Heartbeat.Enabled {
		hb := service.NewHeartbeatService(service.HeartbeatConfig{
			Enabled:  cfg.Heartbeat.Enabled,
			FilePath: cfg.Heartbeat.FilePath,
			Interval: time.Duration(cfg.Heartbeat.Interval) * time.Minute,
			ChatID:   cfg.Heartbeat.ChatID,
		}, app.logger)
		hb.SetExecutor(func(ctx context.Context, chatID int64, command string) (string, error) {
			turn, err := entity.NewTurn(uuid.NewString(), chatID, chatID, entity.OriginCommand, command, time.Now().UTC(), "")
			if err != nil {
				return "", err
			}
			reply, err := app.orchestrator.Process(ctx, turn)
			if err != nil {
				return "", err
			}
			if app.telegramAdapter != nil && chatID != 0 {
				_ = app.telegramAdapter.SendMessage(&telegram.OutgoingMessage{ChatID: chatID, Text: reply})
			}
			return reply, nil
		})
		app.heartbeat = hb
	}

	return nil
}

// Start brings up the HTTP server, the Telegram adapter, and the
// heartbeat scheduler.
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("starting application")

	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.telegramAdapter != nil {
		if err := app.telegramAdapter.Start(ctx); err != nil {
			return fmt.Errorf("failed to start telegram adapter: %w", err)
		}
	}

	if app.heartbeat != nil {
		if err := app.heartbeat.Start(); err != nil {
			app.logger.Warn("heartbeat service failed to start", zap.Error(err))
		}
	}

	app.logger.Info("application started successfully")
	return nil
}

// Stop gracefully shuts every running component down.
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("stopping application")

	if app.heartbeat != nil {
		app.heartbeat.Stop()
	}

	if app.telegramAdapter != nil {
		app.telegramAdapter.Stop()
	}

	if app.httpServer != nil {
		if err := app.httpServer.Stop(ctx); err != nil {
			app.logger.Error("failed to stop HTTP server", zap.Error(err))
		}
	}

	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("failed to close database connection", zap.Error(err))
			}
		}
	}

	app.logger.Info("application stopped successfully")
	return nil
}

// Logger returns the application logger.
func (app *App) Logger() *zap.Logger { return app.logger }

// AppConfig returns the loaded configuration.
func (app *App) AppConfig() *config.Config { return app.config }

// Orchestrator returns the turn orchestrator, used by the CLI's
// interactive REPL.
func (app *App) Orchestrator() *Orchestrator { return app.orchestrator }

// ToolRegistry returns the tool registry, used by the CLI to print a
// startup tool count.
func (app *App) ToolRegistry() domaintool.Registry { return app.toolRegistry }

// telegramMessageHandler adapts telegram.MessageHandler to the
// orchestrator: every inbound Telegram message becomes one turn.
type telegramMessageHandler struct {
	orchestrator *Orchestrator
	logger       *zap.Logger
}

func (h *telegramMessageHandler) HandleMessage(ctx context.Context, msg *telegram.IncomingMessage) (*telegram.OutgoingMessage, error) {
	text := msg.Text
	if msg.Media != nil && strings.TrimSpace(text) == "" {
		text = "[attachment received]"
	}

	turn, err := entity.NewTurn(uuid.NewString(), msg.UserID, msg.ChatID, entity.OriginText, text, msg.Timestamp, "")
	if err != nil {
		return nil, err
	}

	reply, err := h.orchestrator.Process(ctx, turn)
	if err != nil {
		h.logger.Error("turn processing failed", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
		return &telegram.OutgoingMessage{ChatID: msg.ChatID, Text: "Something went wrong handling that, please try again."}, nil
	}
	return &telegram.OutgoingMessage{ChatID: msg.ChatID, Text: reply}, nil
}
