package backlog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

func testItems() []WorkItem {
	return []WorkItem{
		{Key: "EPIC-1", Kind: KindEpic, Title: "Membership"},
		{Key: "FEAT-1", Kind: KindFeature, Title: "Checkout", Parent: "EPIC-1"},
		{Key: "FEAT-2", Kind: KindFeature, Title: "Profiles", Parent: "EPIC-1"},
		{Key: "ST-1", Kind: KindStory, Title: "Card entry", Parent: "FEAT-1", Points: 3},
		{Key: "ST-2", Kind: KindStory, Title: "Receipts", Parent: "FEAT-1", Points: 5},
		{Key: "EN-1", Kind: KindEnabler, Title: "Payment gateway spike", Parent: "FEAT-1", Points: 2},
	}
}

func TestNewIndex(t *testing.T) {
	idx, err := NewIndex(testItems())
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())

	item, ok := idx.Get("ST-2")
	require.True(t, ok)
	assert.Equal(t, "Receipts", item.Title)

	_, ok = idx.Get("ST-99")
	assert.False(t, ok)
	assert.False(t, idx.Contains("ST-99"))
}

func TestNewIndex_DuplicateKey(t *testing.T) {
	items := []WorkItem{
		{Key: "ST-1", Kind: KindStory, Title: "first"},
		{Key: "ST-1", Kind: KindStory, Title: "second"},
	}

	_, err := NewIndex(items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.NewError(types.DUPLICATE_ITEM_KEY, "")))
}

func TestNewIndex_DanglingParent(t *testing.T) {
	items := []WorkItem{
		{Key: "ST-1", Kind: KindStory, Title: "orphan", Parent: "FEAT-404"},
	}

	_, err := NewIndex(items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.NewError(types.MISSING_WORK_ITEM, "")))
}

func TestNewIndex_InvalidItem(t *testing.T) {
	items := []WorkItem{
		{Key: "ST-1", Kind: KindStory, Title: "ok"},
		{Key: "ST-2", Kind: KindStory, Title: ""},
	}

	_, err := NewIndex(items)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.NewError(types.VALIDATION_FAILED, "")))
}

func TestIndexChildren(t *testing.T) {
	idx, err := NewIndex(testItems())
	require.NoError(t, err)

	assert.Equal(t, []string{"FEAT-1", "FEAT-2"}, idx.Children("EPIC-1"))
	assert.Equal(t, []string{"EN-1", "ST-1", "ST-2"}, idx.Children("FEAT-1"))
	assert.Empty(t, idx.Children("ST-1"))
	assert.Empty(t, idx.Children("NOPE"))
}

func TestIndexDescendants(t *testing.T) {
	idx, err := NewIndex(testItems())
	require.NoError(t, err)

	all := idx.Descendants("EPIC-1", 0)
	assert.ElementsMatch(t, []string{"FEAT-1", "FEAT-2", "ST-1", "ST-2", "EN-1"}, all)

	oneLevel := idx.Descendants("EPIC-1", 1)
	assert.ElementsMatch(t, []string{"FEAT-1", "FEAT-2"}, oneLevel)
}

func TestIndexSchedulable(t *testing.T) {
	idx, err := NewIndex(testItems())
	require.NoError(t, err)

	sched := idx.Schedulable()
	require.Len(t, sched, 3)
	for _, item := range sched {
		assert.True(t, item.Kind.IsSchedulable())
	}
}

func TestIndexKeys_PreservesInputOrder(t *testing.T) {
	idx, err := NewIndex(testItems())
	require.NoError(t, err)

	want := []string{"EPIC-1", "FEAT-1", "FEAT-2", "ST-1", "ST-2", "EN-1"}
	assert.Equal(t, want, idx.Keys())

	items := idx.Items()
	require.Len(t, items, len(want))
	for i, key := range want {
		assert.Equal(t, key, items[i].Key)
	}
}
