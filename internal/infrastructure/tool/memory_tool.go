package tool

import (
	"context"

	domaintool "github.com/ngoclaw/ngoclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// MemoryWriter is the narrow persistence surface save_memory needs.
// Implementations append to the long-term-summary store (GORM-backed).
type MemoryWriter interface {
	SaveNote(ctx context.Context, userID int64, note string) error
}

// SaveMemoryTool lets the model explicitly persist a fact about the
// owner's preferences or an in-flight task, independent of the
// background after-turn summary job.
type SaveMemoryTool struct {
	writer MemoryWriter
	logger *zap.Logger
}

func NewSaveMemoryTool(writer MemoryWriter, logger *zap.Logger) *SaveMemoryTool {
	return &SaveMemoryTool{writer: writer, logger: logger}
}

func (t *SaveMemoryTool) Name() string          { return "save_memory" }
func (t *SaveMemoryTool) Description() string   { return "Persist a durable fact about the owner for future turns to recall." }
func (t *SaveMemoryTool) Kind() domaintool.Kind { return domaintool.KindThink }
func (t *SaveMemoryTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"note": map[string]interface{}{"type": "string"},
		},
		"required": []string{"note"},
	}
}

func (t *SaveMemoryTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	note, _ := args["note"].(string)
	userID, _ := ctx.Value(userIDContextKey{}).(int64)
	if err := t.writer.SaveNote(ctx, userID, note); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Output: "saved", Success: true}, nil
}

// userIDContextKey retrieves the acting user id the orchestrator stashes
// in ctx before invoking any tool, so tools whose schema has no user_id
// field (save_memory) still know whose memory they're writing.
type userIDContextKey struct{}

// ContextWithUserID returns a context carrying userID for tool execution.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}
