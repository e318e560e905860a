package application

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngoclaw/ngoclaw/gateway/internal/infrastructure/config"
	"go.uber.org/zap"
)

// staticPromptBuilder assembles the system prompt once at startup from
// ~/.ngoclaw/soul.md and ~/.ngoclaw/prompts/*.md (§config.Bootstrap writes
// the defaults on first run). Per-user customization is out of scope —
// every turn gets the same assembled prompt.
type staticPromptBuilder struct {
	prompt string
}

// newPromptBuilder reads and concatenates the persona and rule files once;
// a read failure just means an emptier prompt, not a startup failure.
func newPromptBuilder(logger *zap.Logger) *staticPromptBuilder {
	root := config.HomeDir()

	var parts []string
	if soul := readFileIfExists(filepath.Join(root, "soul.md")); soul != "" {
		parts = append(parts, soul)
	}

	promptsDir := filepath.Join(root, "prompts")
	entries, err := os.ReadDir(promptsDir)
	if err != nil {
		logger.Warn("failed to list prompt fragments", zap.String("dir", promptsDir), zap.Error(err))
	} else {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			if content := readFileIfExists(filepath.Join(promptsDir, e.Name())); content != "" {
				parts = append(parts, content)
			}
		}
	}

	return &staticPromptBuilder{prompt: strings.Join(parts, "\n\n")}
}

// Build implements application.SystemPromptBuilder.
func (b *staticPromptBuilder) Build(ctx context.Context, userID int64) (string, error) {
	return b.prompt, nil
}

func readFileIfExists(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
