package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/system_prompt.txt
var coreSystemPrompt string

// DefaultBotName is the bot's persona name in the workspace.
const DefaultBotName = "Carmelo"

// RenderSystem renders the persona system prompt.
func RenderSystem(ctx context.Context, botName string) (string, error) {
	if botName == "" {
		botName = DefaultBotName
	}

	// Render via the Eino prompt component (Go template) to both format and
	// emit prompt callbacks.
	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(coreSystemPrompt),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"BotName": botName,
	})
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
