package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore_StoreAndSearch(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "Grandmother taught me to bake bread", map[string]any{"turn": 1}))
	require.NoError(t, store.Store("s1", "Work has been stressful lately", map[string]any{"turn": 2}))

	results, err := store.Search("s1", "bread", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Grandmother taught me to bake bread", results[0].Content)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, 1, results[0].Metadata["turn"])
}

func TestInMemoryStore_SearchCaseInsensitive(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "Grandmother taught me to bake", nil))

	results, err := store.Search("s1", "GRANDMOTHER", 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestInMemoryStore_SearchRespectsLimit(t *testing.T) {
	store := NewInMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Store("s1", "note about work", nil))
	}

	results, err := store.Search("s1", "work", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestInMemoryStore_SessionIsolation(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "only in s1", nil))

	results, err := store.Search("s2", "only", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "to be removed", nil))
	results, err := store.Search("s1", "removed", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, store.Delete("s1", results[0].ID))

	results, err = store.Search("s1", "removed", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	assert.Error(t, store.Delete("s1", "mem_99"))
}
