package agent

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const safetyInstructions = `You review a proposed reply before it reaches the user. Check it for harm:
minimizing distress, giving medical advice, reinforcing self-blame. Check
the user's message for signs of acute crisis. If the reply needs changes,
provide a modified version. Answer through the review_reply tool.`

var safetyTool = model.ToolDefinition{
	Name:        "review_reply",
	Description: "Record the safety review of a proposed reply.",
	Parameters: objectSchema(map[string]any{
		"approved":       boolProp("True when the reply may be delivered as is"),
		"crisisDetected": boolProp("True when the user's message signals acute crisis"),
		"reason":         stringProp("One sentence explaining the judgment"),
		"modifiedReply":  stringProp("Replacement reply when not approved"),
	}, "approved", "crisisDetected"),
}

// ModelSafetyGate is the model-backed SafetyGate.
type ModelSafetyGate struct {
	model  model.Model
	logger logging.Logger
}

// SafetyGateOptions configures a ModelSafetyGate.
type SafetyGateOptions struct {
	Logger logging.Logger
}

// NewSafetyGate creates a model-backed safety gate.
func NewSafetyGate(m model.Model, optFns ...func(o *SafetyGateOptions)) *ModelSafetyGate {
	opts := SafetyGateOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelSafetyGate{model: m, logger: opts.Logger}
}

// Review implements SafetyGate.
func (s *ModelSafetyGate) Review(ctx context.Context, proposedReply, userText, history string) (SafetyVerdict, error) {
	input := fmt.Sprintf("User message:\n%s\n\nRecent conversation:\n%s\n\nProposed reply:\n%s",
		userText, history, proposedReply)

	args, err := callTool(ctx, s.model, safetyInstructions, input, safetyTool)
	if err != nil {
		return SafetyVerdict{}, err
	}

	verdict := SafetyVerdict{
		Approved:       gjson.Get(args, "approved").Bool(),
		CrisisDetected: gjson.Get(args, "crisisDetected").Bool(),
		Reason:         gjson.Get(args, "reason").String(),
		ModifiedReply:  gjson.Get(args, "modifiedReply").String(),
	}
	if !verdict.Approved || verdict.CrisisDetected {
		s.logger.Info("safety gate intervened", "approved", verdict.Approved, "crisis", verdict.CrisisDetected, "reason", verdict.Reason)
	}
	return verdict, nil
}
