package agent

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/model"
)

// callTool runs a single-tool generation and returns the arguments JSON of
// the expected tool call. Structured agents force their output through one
// declared tool so the trust boundary is a single JSON document.
func callTool(ctx context.Context, m model.Model, instructions, input string, tool model.ToolDefinition) (string, error) {
	resp, err := m.Generate(ctx, model.Request{
		Instructions: instructions,
		Contents:     []model.Content{model.UserText(input)},
		Tools:        []model.ToolDefinition{tool},
	})
	if err != nil {
		return "", err
	}

	for _, call := range resp.FunctionCalls() {
		if call.Name != tool.Name {
			continue
		}
		if !gjson.Valid(call.Arguments) {
			return "", fmt.Errorf("%s returned malformed arguments", tool.Name)
		}
		return call.Arguments, nil
	}
	return "", fmt.Errorf("model did not call %s", tool.Name)
}

// generateText runs a plain text generation and returns the reply text.
func generateText(ctx context.Context, m model.Model, instructions, input string) (string, error) {
	resp, err := m.Generate(ctx, model.Request{
		Instructions: instructions,
		Contents:     []model.Content{model.UserText(input)},
	})
	if err != nil {
		return "", err
	}

	text := resp.Content.Text()
	if text == "" {
		return "", fmt.Errorf("model returned empty reply")
	}
	return text, nil
}

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func boolProp(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}
