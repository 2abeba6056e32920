package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindweave/mindweave/core"
)

func sampleRecord() core.Record {
	return core.Record{
		Nodes: []core.Node{
			{ID: "grandmother", Label: "Grandmother", Type: core.NodeTypePerson, Importance: 8, Size: 8, Visibility: core.VisibilityBright, Color: core.NodeColors[core.NodeTypePerson]},
		},
		Edges: []core.Edge{
			{Source: "user", Target: "grandmother", Type: core.EdgeConnectedTo, Visibility: core.VisibilityBright},
		},
		History: []core.HistoryEntry{
			{Turn: 1, Action: core.ActionCreateNode, NodeID: "grandmother"},
		},
		Turn: 1,
	}
}

func TestInMemoryStore_SaveLoad(t *testing.T) {
	store := NewInMemoryStore()

	rec := sampleRecord()
	require.NoError(t, store.Save("session-1", rec))

	loaded, found, err := store.Load("session-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec, loaded)
}

func TestInMemoryStore_LoadMissing(t *testing.T) {
	store := NewInMemoryStore()

	_, found, err := store.Load("nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryStore_CopiesOnSave(t *testing.T) {
	store := NewInMemoryStore()

	rec := sampleRecord()
	require.NoError(t, store.Save("session-1", rec))

	// Mutating the caller's slice must not leak into the store.
	rec.Nodes[0].Label = "Changed"

	loaded, _, err := store.Load("session-1")
	require.NoError(t, err)
	assert.Equal(t, "Grandmother", loaded.Nodes[0].Label)
}

func TestFileStore_SaveLoad(t *testing.T) {
	store := NewFileStore(t.TempDir())

	rec := sampleRecord()
	require.NoError(t, store.Save("session-1", rec))

	loaded, found, err := store.Load("session-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, rec, loaded)
}

func TestFileStore_OverwritesOnSave(t *testing.T) {
	store := NewFileStore(t.TempDir())

	rec := sampleRecord()
	require.NoError(t, store.Save("session-1", rec))

	rec.Turn = 2
	rec.Nodes = append(rec.Nodes, core.Node{ID: "baking", Label: "Baking", Type: core.NodeTypeRitual, Importance: 5, Size: 5, Visibility: core.VisibilityBright})
	require.NoError(t, store.Save("session-1", rec))

	loaded, found, err := store.Load("session-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, loaded.Turn)
	assert.Len(t, loaded.Nodes, 2)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(t.TempDir())

	_, found, err := store.Load("nope")
	require.NoError(t, err)
	assert.False(t, found)
}
