package session

import (
	"fmt"
	"strings"
)

// CorrectionNote is one classified user correction retained in the profile.
type CorrectionNote struct {
	Turn int    `json:"turn"`
	Type string `json:"type"`
	Note string `json:"note"`
}

// Profile is the running preference and correction profile for one session.
// It is owned by the session and never shared across sessions.
type Profile struct {
	Summary     string           `json:"summary"`
	Corrections []CorrectionNote `json:"corrections"`
}

// AppendCorrection records a classified correction and, when the classifier
// supplied an updated summary note, replaces the running summary.
func (p *Profile) AppendCorrection(turn int, correctionType, note, updatedSummary string) {
	p.Corrections = append(p.Corrections, CorrectionNote{Turn: turn, Type: correctionType, Note: note})
	if updatedSummary != "" {
		p.Summary = updatedSummary
	}
}

// Render produces the profile as collaborator prompt input.
func (p Profile) Render() string {
	if p.Summary == "" && len(p.Corrections) == 0 {
		return "(no profile yet)"
	}

	var b strings.Builder
	if p.Summary != "" {
		b.WriteString(p.Summary)
		b.WriteString("\n")
	}
	for _, c := range p.Corrections {
		fmt.Fprintf(&b, "- turn %d (%s): %s\n", c.Turn, c.Type, c.Note)
	}
	return b.String()
}

func (p *Profile) copy() Profile {
	cp := Profile{Summary: p.Summary, Corrections: make([]CorrectionNote, len(p.Corrections))}
	copy(cp.Corrections, p.Corrections)
	return cp
}
