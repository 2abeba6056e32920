package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// FunctionCall describes a tool/function invocation request.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // Serialized argument payload (JSON)
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall
}

func (FunctionCallPart) isPart() {}

// FunctionResponse describes the outcome of a function call.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
}

func (FunctionResponsePart) isPart() {}

// Content holds role + ordered parts.
type Content struct {
	Role  string // user, assistant, tool, system
	Parts []Part
}

// Text concatenates the text parts of the content.
func (c Content) Text() string {
	var b strings.Builder
	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// UserText builds single-part user content.
func UserText(text string) Content {
	return Content{Role: "user", Parts: []Part{TextPart{Text: text}}}
}

// AssistantText builds single-part assistant content.
func AssistantText(text string) Content {
	return Content{Role: "assistant", Parts: []Part{TextPart{Text: text}}}
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by collaborators.
type Request struct {
	Instructions string           `json:"instructions"` // System instructions
	Contents     []Content        `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Response is the final output of a generation call.
type Response struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finish_reason"`
}

// FunctionCalls returns the function call parts of the response content in
// order.
func (r Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range r.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by collaborators to drive
// generation. Implementations must honor ctx cancellation and deadlines.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It returns canned tool calls keyed by tool name when the request exposes
// tools, and canned (or echoed) text otherwise.
type MockModel struct {
	info          Info
	responses     map[string]string // input text -> reply
	toolArguments map[string]string // tool name -> arguments JSON
	err           error
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:          Info{Name: name, Provider: "mock", SupportsTools: true},
		responses:     make(map[string]string),
		toolArguments: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input text.
func (m *MockModel) AddResponse(input, response string) { m.responses[input] = response }

// AddToolArguments registers the arguments JSON returned when the named tool
// is offered in a request.
func (m *MockModel) AddToolArguments(tool, arguments string) { m.toolArguments[tool] = arguments }

// Fail makes every subsequent Generate call return err.
func (m *MockModel) Fail(err error) { m.err = err }

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if m.err != nil {
		return Response{}, m.err
	}
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if len(req.Contents) == 0 {
		return Response{}, fmt.Errorf("no contents provided")
	}

	for _, tool := range req.Tools {
		args, ok := m.toolArguments[tool.Name]
		if !ok {
			continue
		}
		if !json.Valid([]byte(args)) {
			return Response{}, fmt.Errorf("mock tool arguments for %s are not valid JSON", tool.Name)
		}
		return Response{
			Content: Content{Role: "assistant", Parts: []Part{
				FunctionCallPart{FunctionCall: FunctionCall{ID: "call_0", Name: tool.Name, Arguments: args}},
			}},
			FinishReason: "tool_calls",
		}, nil
	}

	input := req.Contents[len(req.Contents)-1].Text()
	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}
	return Response{Content: AssistantText(full), FinishReason: "stop"}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
