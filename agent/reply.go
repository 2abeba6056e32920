package agent

import (
	"context"
	"fmt"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const replyInstructions = `You are a warm, attentive companion helping the user explore their own
memories and values. You can see the knowledge graph built from the
conversation so far; weave what it holds back into your reply naturally,
without naming the graph itself. Honor the preferences recorded in the
profile. Reply in at most a short paragraph.`

// ModelReplyGenerator is the model-backed ReplyGenerator.
type ModelReplyGenerator struct {
	model  model.Model
	logger logging.Logger
}

// ReplyGeneratorOptions configures a ModelReplyGenerator.
type ReplyGeneratorOptions struct {
	Logger logging.Logger
}

// NewReplyGenerator creates a model-backed reply generator.
func NewReplyGenerator(m model.Model, optFns ...func(o *ReplyGeneratorOptions)) *ModelReplyGenerator {
	opts := ReplyGeneratorOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelReplyGenerator{model: m, logger: opts.Logger}
}

// GenerateReply implements ReplyGenerator.
func (g *ModelReplyGenerator) GenerateReply(ctx context.Context, userText, graphSummary, history, profile string) (string, error) {
	input := fmt.Sprintf("Graph:\n%s\n\nProfile:\n%s\n\nConversation:\n%s\n\nUser message:\n%s",
		graphSummary, profile, history, userText)
	return generateText(ctx, g.model, replyInstructions, input)
}
