package tool

import (
	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// ToolLayerDeps aggregates every external dependency the tool layer
// needs. This is the single configuration point for the subsystem.
type ToolLayerDeps struct {
	Registry domaintool.Registry
	Logger   *zap.Logger

	Gmail    GmailClient    // nil = mail tools not registered
	Calendar CalendarClient // nil = calendar tools not registered
	Trello   TrelloClient   // nil = task board tools not registered
	Memory   MemoryWriter   // nil = save_memory not registered
}

// RegisterAllTools registers every LLM-facing tool in one place. This is
// the only tool registration entry point — add a new tool here.
func RegisterAllTools(deps ToolLayerDeps) int {
	var tools []domaintool.Tool

	if deps.Gmail != nil {
		tools = append(tools,
			NewGmailSearchTool(deps.Gmail, deps.Logger),
			NewGmailSendTool(deps.Gmail, deps.Logger),
			NewGmailSendDraftTool(deps.Gmail, deps.Logger),
		)
	}

	if deps.Calendar != nil {
		tools = append(tools,
			NewCalendarListEventsTool(deps.Calendar, deps.Logger),
			NewCalendarCreateEventTool(deps.Calendar, deps.Logger),
		)
	}

	if deps.Trello != nil {
		tools = append(tools,
			NewTrelloListCardsTool(deps.Trello, deps.Logger),
			NewTrelloCardStatusTool(deps.Trello, deps.Logger),
			NewTrelloDispatchTool(deps.Trello, deps.Logger),
		)
	}

	if deps.Memory != nil {
		tools = append(tools, NewSaveMemoryTool(deps.Memory, deps.Logger))
	}

	registered := 0
	for _, t := range tools {
		if err := deps.Registry.Register(t); err != nil {
			deps.Logger.Warn("failed to register tool", zap.String("tool", t.Name()), zap.Error(err))
			continue
		}
		deps.Logger.Info("registered tool", zap.String("tool", t.Name()))
		registered++
	}

	deps.Logger.Info("tool layer initialized", zap.Int("total_registered", registered))
	return registered
}
