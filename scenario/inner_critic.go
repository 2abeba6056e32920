package scenario

import "github.com/mindweave/mindweave/core"

// InnerCritic is the built-in demo scenario: a dialogue with a harsh inner
// critic that gradually reveals the fear driving it.
func InnerCritic() *Scenario {
	return &Scenario{
		ID:              "inner_critic",
		Title:           "The Inner Critic",
		Tagline:         "The voice that calls you lazy is trying to protect something.",
		CaseDescription: "A relentless inner critic measures everything against an impossible standard. Talking with it, and with the quieter voices underneath, slowly surfaces what the criticism is guarding.",
		OpeningLine:     "You already know what I'm going to say about yesterday. Say it first, if you dare.",

		Parts: []Part{
			{
				ID:          "critic",
				Name:        "The Critic",
				Role:        "The loud, contemptuous voice that enforces the standard.",
				VoicePrompt: "Speak in short, cutting sentences. Never concede. Mock softness.",
				Color:       "#C47B8A",
			},
			{
				ID:          "tired_one",
				Name:        "The Tired One",
				Role:        "The exhausted part that has carried the standard for years.",
				VoicePrompt: "Speak slowly, in a low register. Long pauses. Never argues, only sighs.",
				Color:       "#7B9FD4",
			},
			{
				ID:          "small_one",
				Name:        "The Small One",
				Role:        "The young part the critic formed to protect.",
				VoicePrompt: "Hesitant, simple words. Speaks only when addressed gently.",
				Color:       "#E8A94B",
			},
		},

		SeedNodes: []core.Node{
			{ID: "critic", Label: "The Critic", Type: core.NodeTypePart, Importance: 9, Description: "Enforces the standard"},
			{ID: "tired_one", Label: "The Tired One", Type: core.NodeTypePart, Importance: 6, Visibility: core.VisibilityDim},
			{ID: "small_one", Label: "The Small One", Type: core.NodeTypePart, Importance: 7, Visibility: core.VisibilityHidden},
			{ID: "the_standard", Label: "The Standard", Type: core.NodeTypeValue, Importance: 9, Description: "Nothing is ever finished, only abandoned below the bar"},
			{ID: "fear_of_worthlessness", Label: "Fear of worthlessness", Type: core.NodeTypeEmotion, Importance: 8, Visibility: core.VisibilityHidden},
		},
		SeedEdges: []core.Edge{
			{Source: "critic", Target: "the_standard", Type: core.EdgeDrives, Visibility: core.VisibilityBright},
			{Source: "fear_of_worthlessness", Target: "critic", Type: core.EdgeDrives, Visibility: core.VisibilityHidden},
			{Source: "critic", Target: "small_one", Type: core.EdgeSuppresses, Visibility: core.VisibilityHidden},
			{Source: "tired_one", Target: "the_standard", Type: core.EdgeInforms, Visibility: core.VisibilityDim},
		},

		Milestones: []Milestone{
			{
				ID:              "critic_softens",
				Name:            "The Critic Softens",
				InsightSummary:  "The critic admits the standard was never about the work.",
				DetectionPrompt: "Has the user responded to the critic with curiosity or compassion instead of compliance or counter-attack, and has the critic shown any crack in its certainty?",
				GraphChanges: core.BatchRewrite{
					IlluminateEdges: []core.EdgeRef{
						{Source: "fear_of_worthlessness", Target: "critic", Type: core.EdgeDrives},
					},
					ChangeNodes: []core.NodeFieldChange{
						{ID: "fear_of_worthlessness", Fields: map[string]any{"visibility": "bright"}},
						{ID: "critic", Fields: map[string]any{"description": "Enforces the standard to keep the fear at bay"}},
					},
				},
				PartModifiers: map[string]string{
					"critic": "Your certainty has cracked. Still sharp, but questions slip out where verdicts used to be.",
				},
				Warmth: 0.45,
			},
			{
				ID:              "small_one_speaks",
				Name:            "The Small One Speaks",
				InsightSummary:  "The protected part says aloud what the criticism was shielding.",
				DetectionPrompt: "Has the user addressed the small one directly and gently, after the critic softened, creating enough safety for it to answer?",
				GraphChanges: core.BatchRewrite{
					IlluminateEdges: []core.EdgeRef{
						{Source: "critic", Target: "small_one", Type: core.EdgeSuppresses},
					},
					NewNodes: []core.Node{
						{ID: "being_enough", Label: "Being enough without the standard", Type: core.NodeTypeInsight, Importance: 10},
					},
					NewEdges: []core.Edge{
						{Source: "being_enough", Target: "fear_of_worthlessness", Type: core.EdgeExplains, Visibility: core.VisibilityBright},
						{Source: "being_enough", Target: "critic", Type: core.EdgeEvolvesInto, Visibility: core.VisibilityBright},
					},
					ChangeNodes: []core.NodeFieldChange{
						{ID: "small_one", Fields: map[string]any{"visibility": "bright", "importance": 9}},
					},
				},
				PartModifiers: map[string]string{
					"critic":    "You are quieter now. The work felt less like a verdict today.",
					"small_one": "You have been heard once. You may speak without being asked.",
				},
				Warmth: 0.8,
			},
		},
	}
}
