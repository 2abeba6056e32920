package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const probeInstructions = `You watch a dialogue between the user and a set of inner voices. For the
latest user message, decide which voices it addresses (by id), what
technique the user is using, and how forcefully. When no voice is named,
route to the voice most implicated by the content. Answer through the
analyze_probe tool.`

var probeTool = model.ToolDefinition{
	Name:        "analyze_probe",
	Description: "Record which parts the user addressed and how.",
	Parameters: objectSchema(map[string]any{
		"addressedTargets": map[string]any{
			"type":  "array",
			"items": stringProp("Part id"),
		},
		"technique": stringProp("e.g. questioning, validating, confronting, thanking"),
		"intensity": map[string]any{"type": "string", "enum": []string{"gentle", "moderate", "firm", "intense"}},
		"summary":   stringProp("One sentence on what the user is doing"),
	}, "addressedTargets", "intensity"),
}

// ModelProbeRouter is the model-backed ProbeRouter.
type ModelProbeRouter struct {
	model  model.Model
	logger logging.Logger
}

// ProbeRouterOptions configures a ModelProbeRouter.
type ProbeRouterOptions struct {
	Logger logging.Logger
}

// NewProbeRouter creates a model-backed probe router.
func NewProbeRouter(m model.Model, optFns ...func(o *ProbeRouterOptions)) *ModelProbeRouter {
	opts := ProbeRouterOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelProbeRouter{model: m, logger: opts.Logger}
}

// RouteProbe implements ProbeRouter. Targets outside knownTargets are
// dropped; an empty routing falls back to the first known target so a
// scenario turn always produces at least one voice.
func (p *ModelProbeRouter) RouteProbe(ctx context.Context, text string, knownTargets []string, history string) (ProbeAnalysis, error) {
	input := fmt.Sprintf("Voices: %s\n\nRecent conversation:\n%s\n\nUser message:\n%s",
		strings.Join(knownTargets, ", "), history, text)

	args, err := callTool(ctx, p.model, probeInstructions, input, probeTool)
	if err != nil {
		return ProbeAnalysis{}, err
	}

	known := make(map[string]bool, len(knownTargets))
	for _, t := range knownTargets {
		known[t] = true
	}

	analysis := ProbeAnalysis{
		Technique: gjson.Get(args, "technique").String(),
		Intensity: ParseIntensity(gjson.Get(args, "intensity").String()),
		Summary:   gjson.Get(args, "summary").String(),
	}
	gjson.Get(args, "addressedTargets").ForEach(func(_, v gjson.Result) bool {
		id := strings.TrimSpace(v.String())
		if known[id] {
			analysis.AddressedTargets = append(analysis.AddressedTargets, id)
		} else if id != "" {
			p.logger.Debug("probe routed to unknown target, dropping", "target", id)
		}
		return true
	})

	if len(analysis.AddressedTargets) == 0 && len(knownTargets) > 0 {
		analysis.AddressedTargets = []string{knownTargets[0]}
	}
	return analysis, nil
}
