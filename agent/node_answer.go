package agent

import (
	"context"
	"fmt"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const nodeAnswerInstructions = `The user tapped one node of their memory graph and asked a question about
it. Answer from the node's own perspective where that fits (a person or part
speaks as itself), otherwise as a gentle narrator. Two or three sentences.`

// ModelNodeAnswerer is the model-backed NodeAnswerer.
type ModelNodeAnswerer struct {
	model  model.Model
	logger logging.Logger
}

// NodeAnswererOptions configures a ModelNodeAnswerer.
type NodeAnswererOptions struct {
	Logger logging.Logger
}

// NewNodeAnswerer creates a model-backed node answerer.
func NewNodeAnswerer(m model.Model, optFns ...func(o *NodeAnswererOptions)) *ModelNodeAnswerer {
	opts := NodeAnswererOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelNodeAnswerer{model: m, logger: opts.Logger}
}

// AnswerNodeQuery implements NodeAnswerer.
func (a *ModelNodeAnswerer) AnswerNodeQuery(ctx context.Context, node core.Node, question, history string) (string, error) {
	input := fmt.Sprintf("Node: %s (%s)\nDescription: %s\n\nConversation:\n%s\n\nQuestion: %s",
		node.Label, node.Type, node.Description, history, question)
	return generateText(ctx, a.model, nodeAnswerInstructions, input)
}
