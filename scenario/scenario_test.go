package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	s, err := r.Get("inner_critic")
	require.NoError(t, err)
	assert.Equal(t, "The Inner Critic", s.Title)

	_, err = r.Get("nope")
	assert.Error(t, err)

	assert.Contains(t, r.IDs(), "inner_critic")
}

func TestNextMilestone_Ordering(t *testing.T) {
	s := InnerCritic()

	first, ok := s.NextMilestone(nil)
	require.True(t, ok)
	assert.Equal(t, "critic_softens", first.ID)

	second, ok := s.NextMilestone([]string{"critic_softens"})
	require.True(t, ok)
	assert.Equal(t, "small_one_speaks", second.ID)

	_, ok = s.NextMilestone([]string{"critic_softens", "small_one_speaks"})
	assert.False(t, ok)
}

func TestPartLookup(t *testing.T) {
	s := InnerCritic()

	p, ok := s.PartByID("critic")
	require.True(t, ok)
	assert.Equal(t, "The Critic", p.Name)

	_, ok = s.PartByID("nobody")
	assert.False(t, ok)

	assert.Equal(t, []string{"critic", "tired_one", "small_one"}, s.PartIDs())
}

func TestInfo(t *testing.T) {
	s := InnerCritic()

	info := s.Info()
	assert.Equal(t, "inner_critic", info.ID)
	require.Contains(t, info.Parts, "tired_one")
	assert.Equal(t, "The Tired One", info.Parts["tired_one"].Name)
}

func TestSeedGraphReferencesAreClosed(t *testing.T) {
	s := InnerCritic()

	ids := make(map[string]bool)
	for _, n := range s.SeedNodes {
		ids[n.ID] = true
	}
	for _, e := range s.SeedEdges {
		assert.True(t, ids[e.Source], "edge source %s missing from seed nodes", e.Source)
		assert.True(t, ids[e.Target], "edge target %s missing from seed nodes", e.Target)
	}

	// Milestone rewrites may only touch seeded or milestone-created nodes.
	for _, m := range s.Milestones {
		for _, n := range m.GraphChanges.NewNodes {
			ids[n.ID] = true
		}
		for _, ch := range m.GraphChanges.ChangeNodes {
			assert.True(t, ids[ch.ID], "milestone %s changes unknown node %s", m.ID, ch.ID)
		}
		for _, e := range m.GraphChanges.NewEdges {
			assert.True(t, ids[e.Source] && ids[e.Target], "milestone %s edge references unknown node", m.ID)
		}
	}
}
