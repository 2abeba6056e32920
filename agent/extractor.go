package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
)

const extractorInstructions = `You listen to one message from the user and extract the entities worth
remembering: people, memories, values, emotions, rituals, places, artifacts.
For each entity decide whether it is new or a re-mention of a node you were
shown under "Known nodes" (set isUpdate and reuse the known id in that case).
Also extract the relationships the message implies between entities. Record
everything through the record_extraction tool.`

var extractionTool = model.ToolDefinition{
	Name:        "record_extraction",
	Description: "Record the entities and relationships extracted from the user's message.",
	Parameters: objectSchema(map[string]any{
		"entities": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"id":          stringProp("Stable identifier; reuse the known node id for re-mentions"),
				"label":       stringProp("Short human-readable name"),
				"type":        map[string]any{"type": "string", "enum": []string{"memory", "person", "value", "emotion", "ritual", "place", "artifact"}},
				"description": stringProp("One-sentence description"),
				"importance":  map[string]any{"type": "integer", "minimum": 1, "maximum": 10},
				"isUpdate":    boolProp("True when this re-mentions an already known node"),
			}, "label", "type"),
		},
		"relationships": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"source": stringProp("Source entity id"),
				"target": stringProp("Target entity id"),
				"type":   stringProp("Relation name, e.g. felt_during, reminds_of"),
				"label":  stringProp("Optional display label"),
			}, "source", "target", "type"),
		},
	}, "entities"),
}

// ModelExtractor is the model-backed Extractor.
type ModelExtractor struct {
	model  model.Model
	logger logging.Logger
}

// ExtractorOptions configures a ModelExtractor.
type ExtractorOptions struct {
	Logger logging.Logger
}

// NewExtractor creates a model-backed extractor.
func NewExtractor(m model.Model, optFns ...func(o *ExtractorOptions)) *ModelExtractor {
	opts := ExtractorOptions{Logger: logging.NewDefaultSlogLogger()}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelExtractor{model: m, logger: opts.Logger}
}

// Extract implements Extractor.
func (e *ModelExtractor) Extract(ctx context.Context, text, graphContext, existingNodes string) (Extraction, error) {
	input := fmt.Sprintf("Current graph:\n%s\n\nKnown nodes:\n%s\n\nUser message:\n%s", graphContext, existingNodes, text)

	args, err := callTool(ctx, e.model, extractorInstructions, input, extractionTool)
	if err != nil {
		return Extraction{}, err
	}

	extraction := parseExtraction(args)
	e.logger.Debug("extraction complete", "entities", len(extraction.Entities), "relationships", len(extraction.Relationships))
	return extraction, nil
}

// parseExtraction tolerantly decodes the tool arguments. Entities without a
// label are dropped; missing ids are derived from the label.
func parseExtraction(args string) Extraction {
	var out Extraction

	gjson.Get(args, "entities").ForEach(func(_, v gjson.Result) bool {
		label := strings.TrimSpace(v.Get("label").String())
		if label == "" {
			return true
		}
		ent := Entity{
			ID:          strings.TrimSpace(v.Get("id").String()),
			Label:       label,
			Type:        v.Get("type").String(),
			Description: v.Get("description").String(),
			Importance:  int(v.Get("importance").Int()),
			IsUpdate:    v.Get("isUpdate").Bool(),
		}
		if ent.ID == "" {
			ent.ID = Slugify(label)
		}
		out.Entities = append(out.Entities, ent)
		return true
	})

	gjson.Get(args, "relationships").ForEach(func(_, v gjson.Result) bool {
		rel := Relationship{
			Source: strings.TrimSpace(v.Get("source").String()),
			Target: strings.TrimSpace(v.Get("target").String()),
			Type:   v.Get("type").String(),
			Label:  v.Get("label").String(),
		}
		if rel.Source == "" || rel.Target == "" {
			return true
		}
		out.Relationships = append(out.Relationships, rel)
		return true
	})

	return out
}

// Slugify derives a stable node id from a label.
func Slugify(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
