package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
	"github.com/mindweave/mindweave/scenario"
)

// ModelResponder is the model-backed MultiResponder.
type ModelResponder struct {
	model  model.Model
	logger logging.Logger
}

// ResponderOptions configures a ModelResponder.
type ResponderOptions struct {
	Logger logging.Logger
}

// NewResponder creates a model-backed part responder.
func NewResponder(m model.Model, optFns ...func(o *ResponderOptions)) *ModelResponder {
	opts := ResponderOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelResponder{model: m, logger: opts.Logger}
}

// RespondAs implements MultiResponder.
func (r *ModelResponder) RespondAs(ctx context.Context, part scenario.Part, modifiers []string, text, history, graphState string, routing ProbeAnalysis) (PartReply, error) {
	instructions := fmt.Sprintf("You are %s. %s\n%s", part.Name, part.Role, part.VoicePrompt)
	if len(modifiers) > 0 {
		instructions += "\nRecent shifts in you:\n- " + strings.Join(modifiers, "\n- ")
	}

	input := fmt.Sprintf("Inner landscape:\n%s\n\nConversation:\n%s\n\nThe user (%s, %s): %s",
		graphState, history, routing.Technique, routing.Intensity, text)

	content, err := generateText(ctx, r.model, instructions, input)
	if err != nil {
		return PartReply{}, err
	}

	return PartReply{
		Target:  part.ID,
		Name:    part.Name,
		Content: content,
		Color:   part.Color,
	}, nil
}
