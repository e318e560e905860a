package tool

import (
	"context"
	"fmt"
	"time"

	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// Executor adapts the domain tool registry and policy to the shape the
// LLM tool-calling loop expects: ToolCall in, ToolResult out, with policy
// enforcement and timing around every call.
type Executor struct {
	registry    domaintool.Registry
	policy      *domaintool.Policy
	logger      *zap.Logger
	execContext domaintool.ExecutionContext
}

// NewExecutor builds an Executor over an already-populated registry.
func NewExecutor(registry domaintool.Registry, policy *domaintool.Policy, logger *zap.Logger) *Executor {
	return &Executor{
		registry:    registry,
		policy:      policy,
		logger:      logger,
		execContext: domaintool.ExecContextGateway,
	}
}

// Execute runs one tool call through the policy gate and the registry.
// This satisfies service.ToolExecutor, the contract the turn orchestrator's
// tool-calling loop runs against.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]interface{}) (*domaintool.Result, error) {
	start := time.Now()

	if !e.policy.IsAllowed(name) {
		e.logger.Warn("tool execution denied by policy", zap.String("tool", name))
		return &domaintool.Result{
			Output:  fmt.Sprintf("tool %q is not allowed by the current policy", name),
			Success: false,
			Error:   fmt.Sprintf("tool not allowed: %s", name),
		}, nil
	}

	t, exists := e.registry.Get(name)
	if !exists {
		e.logger.Warn("tool not found", zap.String("tool", name))
		return &domaintool.Result{
			Output:  fmt.Sprintf("tool %q not found", name),
			Success: false,
			Error:   fmt.Sprintf("tool not found: %s", name),
		}, nil
	}

	e.logger.Info("executing tool", zap.String("tool", name))

	result, err := t.Execute(ctx, args)
	duration := time.Since(start)

	if err != nil {
		e.logger.Error("tool execution error", zap.String("tool", name), zap.Duration("duration", duration), zap.Error(err))
		return &domaintool.Result{Output: err.Error(), Success: false, Error: err.Error()}, nil
	}

	e.logger.Info("tool execution completed",
		zap.String("tool", name),
		zap.Duration("duration", duration),
		zap.Bool("success", result.Success),
	)

	return result, nil
}

// GetDefinitions returns the policy-filtered tool list for the LLM provider.
func (e *Executor) GetDefinitions() []domaintool.Definition {
	enforcer := domaintool.NewPolicyEnforcer(e.policy, e.registry)
	return enforcer.FilteredList()
}

// GetToolKind returns the registered Kind for name, or KindExecute if unknown.
func (e *Executor) GetToolKind(name string) domaintool.Kind {
	t, exists := e.registry.Get(name)
	if !exists {
		return domaintool.KindExecute
	}
	return t.Kind()
}

// SetExecutionContext records where tool calls are running. The value is stored only; Execute does not read it.
func (e *Executor) SetExecutionContext(ctx domaintool.ExecutionContext) {
	e.execContext = ctx
}

// NeedsApproval reports whether the policy is in ask mode.
func (e *Executor) NeedsApproval() bool {
	return e.policy.AskMode
}
