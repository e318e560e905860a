package application

import (
	"context"
	"fmt"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/entity"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/repository"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
	toolpkg "github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/tool"
	"go.uber.org/zap"
)

// SystemPromptBuilder produces the system prompt for a turn, e.g. one
// that names the active tools and the owner's trust preferences.
type SystemPromptBuilder interface {
	Build(ctx context.Context, userID int64) (string, error)
}

// Orchestrator is the single per-turn entry point (§4.5): it checks the
// fixed flow precedence order before ever invoking the LLM loop, so a
// pending confirmation/clarification/dispatch/bulk operation always
// takes priority over a fresh request.
type Orchestrator struct {
	handlers map[flow.Name]flow.Handler
	agent    *service.AgentLoop
	convo    repository.ConversationRepository
	prompts  SystemPromptBuilder
	historyN int
	logger   *zap.Logger
}

// NewOrchestrator wires the fixed flow.Precedence dispatch list against
// the concrete handlers supplied, and the agent loop as the fallback.
func NewOrchestrator(
	handlers []flow.Handler,
	agent *service.AgentLoop,
	convo repository.ConversationRepository,
	prompts SystemPromptBuilder,
	logger *zap.Logger,
) *Orchestrator {
	byName := make(map[flow.Name]flow.Handler, len(handlers))
	for _, h := range handlers {
		byName[h.Name()] = h
	}
	return &Orchestrator{
		handlers: byName,
		agent:    agent,
		convo:    convo,
		prompts:  prompts,
		historyN: 30,
		logger:   logger,
	}
}

// Process drives one normalized turn to completion: precedence-ordered
// flow dispatch first, the ReAct agent loop only if nothing is pending.
func (o *Orchestrator) Process(ctx context.Context, turn *entity.Turn) (string, error) {
	ctx = toolpkg.ContextWithUserID(ctx, turn.UserID())
	o.record(ctx, turn.UserID(), entity.RoleUser, turn.Content(), nil)

	for _, name := range flow.Precedence {
		handler, ok := o.handlers[name]
		if !ok {
			continue
		}
		active, err := handler.IsActive(ctx, turn.UserID(), turn.Content())
		if err != nil {
			o.logger.Warn("flow activity check failed", zap.String("flow", string(name)), zap.Error(err))
			continue
		}
		if !active {
			continue
		}
		reply, err := handler.Handle(ctx, turn.UserID(), turn.ChatID(), turn.Content())
		if err != nil {
			o.logger.Error("flow handler failed", zap.String("flow", string(name)), zap.Error(err))
			return "", fmt.Errorf("flow %s: %w", name, err)
		}
		if reply == "" {
			// Matched IsActive's fresh-request pattern but decided this
			// turn doesn't actually belong to it (§flow.Handler contract).
			continue
		}
		o.record(ctx, turn.UserID(), entity.RoleAssistant, reply, map[string]interface{}{"flow": string(name)})
		return reply, nil
	}

	return o.runAgent(ctx, turn)
}

func (o *Orchestrator) runAgent(ctx context.Context, turn *entity.Turn) (string, error) {
	if o.agent == nil {
		return "", fmt.Errorf("no flow matched and no agent loop configured")
	}

	systemPrompt := ""
	if o.prompts != nil {
		p, err := o.prompts.Build(ctx, turn.UserID())
		if err != nil {
			o.logger.Warn("system prompt build failed, using empty prompt", zap.Error(err))
		} else {
			systemPrompt = p
		}
	}

	history := o.loadHistory(ctx, turn.UserID())

	result, events := o.agent.Run(ctx, turn.UserID(), systemPrompt, turn.Content(), history, "")
	for range events {
		// Drained but not surfaced here — a Telegram-facing caller can
		// wrap this orchestrator and forward entity.AgentEvent values
		// (e.g. typing indicators) to the chat before Process returns.
	}
	if result == nil {
		return "", fmt.Errorf("agent loop returned no result")
	}

	o.record(ctx, turn.UserID(), entity.RoleAssistant, result.FinalContent, map[string]interface{}{
		"model_used":  result.ModelUsed,
		"tokens_used": result.TotalTokens,
		"steps":       result.TotalSteps,
	})
	return result.FinalContent, nil
}

func (o *Orchestrator) loadHistory(ctx context.Context, userID int64) []service.LLMMessage {
	if o.convo == nil {
		return nil
	}
	turns, err := o.convo.FindRecent(ctx, userID, o.historyN)
	if err != nil {
		o.logger.Warn("failed to load conversation history", zap.Error(err))
		return nil
	}
	history := make([]service.LLMMessage, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role() == entity.RoleAssistant {
			role = "assistant"
		}
		history = append(history, service.LLMMessage{Role: role, Content: t.Content()})
	}
	return history
}

func (o *Orchestrator) record(ctx context.Context, userID int64, role entity.ConversationRole, content string, metadata map[string]interface{}) {
	if o.convo == nil || content == "" {
		return
	}
	if err := o.convo.Save(ctx, entity.NewConversationTurn(userID, role, content, metadata)); err != nil {
		o.logger.Warn("failed to persist conversation turn", zap.Error(err))
	}
}
