package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequentialGroups(t *testing.T) {
	assert.Equal(t, []int{0, 1, 0, 1, 0}, sequentialGroups(5, 2))
	assert.Equal(t, []int{0, 1, 2, 0}, sequentialGroups(4, 3))
	assert.Equal(t, []int{0, 1}, sequentialGroups(2, 2))
}

func TestBalancedGroups(t *testing.T) {
	tests := []struct {
		name  string
		count int
		n     int
		want  []int
	}{
		{name: "even chunks", count: 4, n: 2, want: []int{0, 0, 1, 1}},
		{name: "front chunks take the remainder", count: 5, n: 2, want: []int{0, 0, 0, 1, 1}},
		{name: "three way", count: 7, n: 3, want: []int{0, 0, 0, 1, 1, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := balancedGroups(tt.count, tt.n)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThematicGroups(t *testing.T) {
	criteria := []string{
		"Login form accepts valid email addresses",
		"Password reset sends an email link",
		"Login form rejects malformed email addresses",
		"Password reset link expires after one hour",
	}

	groups := thematicGroups(criteria, 2)

	// The login criteria cluster around the first seed, the password
	// reset criteria around the second.
	assert.Equal(t, []int{0, 1, 0, 1}, groups)
}

func TestThematicGroupsNoOverlap(t *testing.T) {
	criteria := []string{
		"Login form accepts valid email addresses",
		"Password reset sends an email link",
		"Export data as CSV",
	}

	groups := thematicGroups(criteria, 2)

	// A criterion sharing no vocabulary with any seed lands in the
	// first group.
	assert.Equal(t, []int{0, 1, 0}, groups)
}

func TestThematicGroupsEverySubItemSeeded(t *testing.T) {
	criteria := []string{
		"Checkout totals include tax",
		"Checkout totals include shipping",
		"Checkout totals include discounts",
		"Receipt email lists every checkout total",
		"Receipt email arrives within a minute",
	}

	for n := 2; n <= 4; n++ {
		groups := thematicGroups(criteria, n)
		require.Len(t, groups, len(criteria))

		seen := map[int]bool{}
		for _, g := range groups {
			require.GreaterOrEqual(t, g, 0)
			require.Less(t, g, n)
			seen[g] = true
		}
		assert.Len(t, seen, n, "n=%d groups=%v", n, groups)
	}
}

func TestDistributeCriteriaErrors(t *testing.T) {
	_, err := distributeCriteria([]string{"only one"}, 2, CriteriaSequential)
	require.Error(t, err)

	_, err = distributeCriteria([]string{"a criterion", "another"}, 2, CriteriaStrategy("random"))
	require.Error(t, err)
}

func TestKeywordSet(t *testing.T) {
	set := keywordSet("The user must be able to reset their password, and a reset link is sent")

	assert.True(t, set["user"])
	assert.True(t, set["reset"])
	assert.True(t, set["password"])
	assert.True(t, set["link"])
	assert.True(t, set["sent"])

	// Stopwords and short tokens are dropped.
	assert.False(t, set["the"])
	assert.False(t, set["must"])
	assert.False(t, set["be"])
	assert.False(t, set["to"])
	assert.False(t, set["a"])
}
