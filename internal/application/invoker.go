package application

import (
	"context"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

// toolInvoker adapts service.ToolExecutor to flow.Invoker so flow
// handlers can replay a stashed tool call without depending on the
// agent loop's richer execution path (caching, guardrails, hooks).
type toolInvoker struct {
	tools service.ToolExecutor
}

func newToolInvoker(tools service.ToolExecutor) *toolInvoker {
	return &toolInvoker{tools: tools}
}

// Invoke implements flow.Invoker.
func (i *toolInvoker) Invoke(ctx context.Context, userID int64, toolName string, args map[string]interface{}) (string, bool, error) {
	result, err := i.tools.Execute(ctx, toolName, args)
	if err != nil {
		return "", false, err
	}
	return result.DisplayOrOutput(), result.Success, nil
}
