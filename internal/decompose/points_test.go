package decompose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

func TestEvenShares(t *testing.T) {
	tests := []struct {
		name   string
		points int
		n      int
		want   []int
	}{
		{name: "exact division", points: 8, n: 4, want: []int{2, 2, 2, 2}},
		{name: "remainder goes to the front", points: 10, n: 3, want: []int{4, 3, 3}},
		{name: "two way split", points: 13, n: 2, want: []int{7, 6}},
		{name: "one point each", points: 3, n: 3, want: []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evenShares(tt.points, tt.n)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.points, sumOf(got))
		})
	}
}

func TestWeightedShares(t *testing.T) {
	tests := []struct {
		name      string
		points    int
		counts    []int
		maxPoints int
		want      []int
	}{
		{
			name:      "proportional to criteria counts",
			points:    9,
			counts:    []int{3, 2},
			maxPoints: 5,
			want:      []int{5, 4},
		},
		{
			name:      "exact proportions untouched",
			points:    10,
			counts:    []int{2, 2, 1},
			maxPoints: 5,
			want:      []int{4, 4, 2},
		},
		{
			name:      "equal counts tie broken by index",
			points:    7,
			counts:    []int{1, 1, 1},
			maxPoints: 5,
			want:      []int{3, 2, 2},
		},
		{
			name:      "skew clamped back under the maximum",
			points:    8,
			counts:    []int{3, 1},
			maxPoints: 5,
			want:      []int{5, 3},
		},
		{
			name:      "no criteria falls back to even",
			points:    6,
			counts:    []int{0, 0},
			maxPoints: 5,
			want:      []int{3, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := weightedShares(tt.points, len(tt.counts), tt.counts, tt.maxPoints)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.points, sumOf(got))
		})
	}
}

func TestFitShares(t *testing.T) {
	t.Run("moves excess to the smallest share", func(t *testing.T) {
		shares := []int{7, 1}
		require.NoError(t, fitShares(shares, 5))
		assert.Equal(t, []int{5, 3}, shares)
	})

	t.Run("raises a zero share from the largest", func(t *testing.T) {
		shares := []int{0, 4}
		require.NoError(t, fitShares(shares, 5))
		assert.Equal(t, []int{1, 3}, shares)
	})

	t.Run("fails when the total cannot fit", func(t *testing.T) {
		shares := []int{6, 5}
		err := fitShares(shares, 5)
		require.Error(t, err)

		var engErr *types.EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, types.DECOMPOSITION_FAILED, engErr.Code)
	})
}

func TestFibonacciShares(t *testing.T) {
	t.Run("lands exactly on the scale", func(t *testing.T) {
		got, err := fibonacciShares(13, 2, 8)
		require.NoError(t, err)
		assert.Equal(t, []int{8, 5}, got)
	})

	t.Run("steps down from an overshoot", func(t *testing.T) {
		got, err := fibonacciShares(13, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 5, 5}, got)
	})

	t.Run("tolerates one point of drift", func(t *testing.T) {
		got, err := fibonacciShares(9, 2, 5)
		require.NoError(t, err)
		assert.Equal(t, []int{5, 5}, got)
		assert.Equal(t, 10, sumOf(got))
	})

	t.Run("drifts low when the scale cannot reach", func(t *testing.T) {
		got, err := fibonacciShares(10, 3, 5)
		require.NoError(t, err)
		assert.Equal(t, []int{3, 3, 3}, got)
	})

	t.Run("every share sits on the scale", func(t *testing.T) {
		onScale := map[int]bool{}
		for _, v := range estimateScale {
			onScale[v] = true
		}
		for points := 2; points <= 21; points++ {
			for n := 2; n <= 4 && n <= points; n++ {
				got, err := fibonacciShares(points, n, 8)
				if err != nil {
					continue
				}
				for _, s := range got {
					assert.True(t, onScale[s], "points=%d n=%d share=%d", points, n, s)
				}
				assert.LessOrEqual(t, absDiff(sumOf(got), points), 1,
					"points=%d n=%d shares=%v", points, n, got)
			}
		}
	})

	t.Run("fails when the drift cannot close", func(t *testing.T) {
		_, err := fibonacciShares(13, 2, 5)
		require.Error(t, err)

		var engErr *types.EngineError
		require.ErrorAs(t, err, &engErr)
		assert.Equal(t, types.POINTS_CONSERVATION_LOST, engErr.Code)
	})
}

func TestNearestScale(t *testing.T) {
	allowed := allowedScale(8)
	assert.Equal(t, []int{1, 2, 3, 5, 8}, allowed)

	tests := []struct {
		target float64
		want   int
	}{
		{target: 1.4, want: 1},
		{target: 4.0, want: 3},
		{target: 4.6, want: 5},
		{target: 6.5, want: 5}, // equidistant, lower value wins
		{target: 20, want: 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nearestScale(allowed, tt.target), "target %.1f", tt.target)
	}
}
