package agent

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const classifierInstructions = `You compare the user's latest message against the previous reply and judge
how the user is responding: productively building on it, asking for
clarification, rejecting it, or simply agreeing. Note anything worth adding
to the running preference profile. Answer through the classify_correction
tool.`

var classificationTool = model.ToolDefinition{
	Name:        "classify_correction",
	Description: "Classify how the user's message relates to the prior reply.",
	Parameters: objectSchema(map[string]any{
		"correctionType":     map[string]any{"type": "string", "enum": []string{"productive", "clarifying", "rejecting", "agreement"}},
		"newMemoryUnlocked":  boolProp("True when the correction surfaced a new memory"),
		"reflectionNote":     stringProp("One sentence on what the user corrected"),
		"updatedProfileNote": stringProp("Replacement for the profile summary, if warranted"),
	}, "correctionType", "reflectionNote"),
}

// ModelClassifier is the model-backed CorrectionClassifier.
type ModelClassifier struct {
	model  model.Model
	logger logging.Logger
}

// ClassifierOptions configures a ModelClassifier.
type ClassifierOptions struct {
	Logger logging.Logger
}

// NewClassifier creates a model-backed correction classifier.
func NewClassifier(m model.Model, optFns ...func(o *ClassifierOptions)) *ModelClassifier {
	opts := ClassifierOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelClassifier{model: m, logger: opts.Logger}
}

// Classify implements CorrectionClassifier.
func (c *ModelClassifier) Classify(ctx context.Context, userText, priorReply, history, profile string) (*Correction, error) {
	input := fmt.Sprintf("Previous reply:\n%s\n\nProfile:\n%s\n\nRecent conversation:\n%s\n\nUser message:\n%s",
		priorReply, profile, history, userText)

	args, err := callTool(ctx, c.model, classifierInstructions, input, classificationTool)
	if err != nil {
		return nil, err
	}

	correction := &Correction{
		CorrectionType:     ParseCorrectionType(gjson.Get(args, "correctionType").String()),
		NewMemoryUnlocked:  gjson.Get(args, "newMemoryUnlocked").Bool(),
		ReflectionNote:     gjson.Get(args, "reflectionNote").String(),
		UpdatedProfileNote: gjson.Get(args, "updatedProfileNote").String(),
	}
	c.logger.Debug("correction classified", "type", correction.CorrectionType)
	return correction, nil
}
