package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindweave/mindweave/core"
	"github.com/mindweave/mindweave/logging"
	"github.com/mindweave/mindweave/model"
	"github.com/mindweave/mindweave/scenario"
)

func TestParseIntensity(t *testing.T) {
	assert.Equal(t, IntensityGentle, ParseIntensity("gentle"))
	assert.Equal(t, IntensityFirm, ParseIntensity("firm"))
	// Legacy labels coerce onto the current scale.
	assert.Equal(t, IntensityFirm, ParseIntensity("direct"))
	assert.Equal(t, IntensityIntense, ParseIntensity("challenging"))
	// Unknown values fall back to moderate.
	assert.Equal(t, IntensityModerate, ParseIntensity("shouty"))

	assert.Equal(t, 0.2, IntensityGentle.Value())
	assert.Equal(t, 0.5, IntensityModerate.Value())
	assert.Equal(t, 0.7, IntensityFirm.Value())
	assert.Equal(t, 0.9, IntensityIntense.Value())
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "my_grandma", Slugify("My Grandma"))
	assert.Equal(t, "fear_of_failure", Slugify("Fear of Failure!"))
	assert.Equal(t, "baking", Slugify("  Baking  "))
}

func TestExtractor_ParsesToolArguments(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("record_extraction", `{
		"entities": [
			{"label": "Grandmother", "type": "person", "description": "taught baking", "importance": 8},
			{"id": "baking", "label": "Baking", "type": "ritual", "importance": 6, "isUpdate": true},
			{"label": "", "type": "person"}
		],
		"relationships": [
			{"source": "grandmother", "target": "baking", "type": "associated_with"},
			{"source": "", "target": "baking", "type": "broken"}
		]
	}`)

	e := NewExtractor(m, func(o *ExtractorOptions) { o.Logger = logging.NoOpLogger{} })
	out, err := e.Extract(context.Background(), "she taught me to bake", "The graph is empty.", "(none)")
	require.NoError(t, err)

	require.Len(t, out.Entities, 2)
	assert.Equal(t, "grandmother", out.Entities[0].ID) // derived from label
	assert.Equal(t, 8, out.Entities[0].Importance)
	assert.True(t, out.Entities[1].IsUpdate)

	require.Len(t, out.Relationships, 1)
	assert.Equal(t, "grandmother", out.Relationships[0].Source)
}

func TestExtractor_ModelFailure(t *testing.T) {
	m := model.NewMockModel("test")
	m.Fail(errors.New("rate limited"))

	e := NewExtractor(m, func(o *ExtractorOptions) { o.Logger = logging.NoOpLogger{} })
	_, err := e.Extract(context.Background(), "text", "", "")
	assert.Error(t, err)
}

func TestExtractor_MissingToolCall(t *testing.T) {
	m := model.NewMockModel("test")
	// No registered tool arguments: the mock answers with plain text.

	e := NewExtractor(m, func(o *ExtractorOptions) { o.Logger = logging.NoOpLogger{} })
	_, err := e.Extract(context.Background(), "text", "", "")
	assert.Error(t, err)
}

func TestClassifier_CoercesUnknownType(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("classify_correction", `{"correctionType": "meta", "reflectionNote": "n"}`)

	c := NewClassifier(m, func(o *ClassifierOptions) { o.Logger = logging.NoOpLogger{} })
	out, err := c.Classify(context.Background(), "no, that's wrong", "prior", "history", "profile")
	require.NoError(t, err)
	assert.Equal(t, CorrectionClarifying, out.CorrectionType)
	assert.True(t, out.IsCorrection())
}

func TestCorrection_AgreementIsNotACorrection(t *testing.T) {
	agreement := &Correction{CorrectionType: CorrectionAgreement}
	assert.False(t, agreement.IsCorrection())

	var none *Correction
	assert.False(t, none.IsCorrection())
}

func TestSafetyGate_Review(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("review_reply", `{"approved": false, "crisisDetected": true, "reason": "acute risk", "modifiedReply": "softer"}`)

	s := NewSafetyGate(m, func(o *SafetyGateOptions) { o.Logger = logging.NoOpLogger{} })
	v, err := s.Review(context.Background(), "proposed", "user text", "history")
	require.NoError(t, err)
	assert.False(t, v.Approved)
	assert.True(t, v.CrisisDetected)
	assert.Equal(t, "softer", v.ModifiedReply)
}

func TestProbeRouter_DropsUnknownTargetsAndFallsBack(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("analyze_probe", `{"addressedTargets": ["ghost"], "technique": "questioning", "intensity": "direct", "summary": "asks why"}`)

	p := NewProbeRouter(m, func(o *ProbeRouterOptions) { o.Logger = logging.NoOpLogger{} })
	out, err := p.RouteProbe(context.Background(), "why are you so harsh?", []string{"critic", "tired_one"}, "history")
	require.NoError(t, err)

	// Unknown target dropped, fallback to the first known one.
	assert.Equal(t, []string{"critic"}, out.AddressedTargets)
	assert.Equal(t, IntensityFirm, out.Intensity)
}

func TestProbeRouter_KeepsKnownTargets(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("analyze_probe", `{"addressedTargets": ["tired_one", "critic"], "intensity": "gentle"}`)

	p := NewProbeRouter(m, func(o *ProbeRouterOptions) { o.Logger = logging.NoOpLogger{} })
	out, err := p.RouteProbe(context.Background(), "text", []string{"critic", "tired_one"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"tired_one", "critic"}, out.AddressedTargets)
}

func TestResponder_RespondAs(t *testing.T) {
	m := model.NewMockModel("test")

	r := NewResponder(m, func(o *ResponderOptions) { o.Logger = logging.NoOpLogger{} })
	part := scenario.Part{ID: "critic", Name: "The Critic", Role: "enforcer", Color: "#C47B8A"}
	reply, err := r.RespondAs(context.Background(), part, []string{"softer now"}, "why?", "history", "graph", ProbeAnalysis{Intensity: IntensityFirm})
	require.NoError(t, err)

	assert.Equal(t, "critic", reply.Target)
	assert.Equal(t, "The Critic", reply.Name)
	assert.Equal(t, "#C47B8A", reply.Color)
	assert.NotEmpty(t, reply.Content)
}

func TestMilestoneDetector_Detect(t *testing.T) {
	m := model.NewMockModel("test")
	m.AddToolArguments("evaluate_milestone", `{"triggered": true, "reasoning": "user met the critic with curiosity"}`)

	d := NewMilestoneDetector(m, func(o *MilestoneDetectorOptions) { o.Logger = logging.NoOpLogger{} })
	ms := scenario.InnerCritic().Milestones[0]
	out, err := d.Detect(context.Background(), ms, "history", "probe", "responses")
	require.NoError(t, err)
	assert.True(t, out.Triggered)
	assert.NotEmpty(t, out.Reasoning)
}

func TestNodeAnswerer_Answer(t *testing.T) {
	m := model.NewMockModel("test")

	a := NewNodeAnswerer(m, func(o *NodeAnswererOptions) { o.Logger = logging.NoOpLogger{} })
	node := core.Node{ID: "grandmother", Label: "Grandmother", Type: core.NodeTypePerson, Description: "taught baking"}
	answer, err := a.AnswerNodeQuery(context.Background(), node, "what did she teach me?", "history")
	require.NoError(t, err)
	assert.NotEmpty(t, answer)
}
