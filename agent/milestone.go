package agent

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
	"github.com/mindweave/mindweave/scenario"
)

const milestoneInstructions = `You watch a therapeutic dialogue for a single scripted breakthrough moment.
You are given its detection condition. Judge strictly: the condition must be
clearly met in the conversation, not merely approached. Answer through the
evaluate_milestone tool.`

var milestoneTool = model.ToolDefinition{
	Name:        "evaluate_milestone",
	Description: "Record whether the breakthrough condition has been met.",
	Parameters: objectSchema(map[string]any{
		"triggered": boolProp("True only when the condition is clearly met"),
		"reasoning": stringProp("One sentence justifying the judgment"),
	}, "triggered"),
}

// ModelMilestoneDetector is the model-backed MilestoneDetector.
type ModelMilestoneDetector struct {
	model  model.Model
	logger logging.Logger
}

// MilestoneDetectorOptions configures a ModelMilestoneDetector.
type MilestoneDetectorOptions struct {
	Logger logging.Logger
}

// NewMilestoneDetector creates a model-backed milestone detector.
func NewMilestoneDetector(m model.Model, optFns ...func(o *MilestoneDetectorOptions)) *ModelMilestoneDetector {
	opts := MilestoneDetectorOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelMilestoneDetector{model: m, logger: opts.Logger}
}

// Detect implements MilestoneDetector.
func (d *ModelMilestoneDetector) Detect(ctx context.Context, m scenario.Milestone, history, latestProbe, latestResponses string) (MilestoneResult, error) {
	input := fmt.Sprintf("Breakthrough: %s\nCondition: %s\n\nConversation:\n%s\n\nLatest probe: %s\nLatest voice responses:\n%s",
		m.Name, m.DetectionPrompt, history, latestProbe, latestResponses)

	args, err := callTool(ctx, d.model, milestoneInstructions, input, milestoneTool)
	if err != nil {
		return MilestoneResult{}, err
	}

	result := MilestoneResult{
		Triggered: gjson.Get(args, "triggered").Bool(),
		Reasoning: gjson.Get(args, "reasoning").String(),
	}
	if result.Triggered {
		d.logger.Info("milestone condition met", "milestone", m.ID, "reasoning", result.Reasoning)
	}
	return result, nil
}
