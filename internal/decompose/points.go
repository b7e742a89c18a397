package decompose

import (
	"fmt"
	"sort"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// estimateScale is the story-point scale sub-items snap to under the
// fibonacci strategy.
var estimateScale = []int{1, 2, 3, 5, 8, 13, 21}

// distributePoints splits the parent estimate into n shares per the
// configured strategy. Even and weighted splits conserve the total
// exactly; fibonacci may drift by one point, which validation allows.
func distributePoints(points, n int, criteriaCounts []int, cfg Config) ([]int, error) {
	switch cfg.PointsStrategy {
	case PointsEven:
		return evenShares(points, n), nil
	case PointsWeighted:
		return weightedShares(points, n, criteriaCounts, cfg.MaxPoints)
	case PointsFibonacci:
		return fibonacciShares(points, n, cfg.MaxPoints)
	default:
		return nil, types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown points strategy %q", cfg.PointsStrategy))
	}
}

// evenShares splits points into n equal integer shares, larger shares
// first. The sum is exact.
func evenShares(points, n int) []int {
	base := points / n
	rem := points % n
	shares := make([]int, n)
	for i := range shares {
		shares[i] = base
		if i < rem {
			shares[i]++
		}
	}
	return shares
}

// weightedShares sizes each share proportionally to the criteria count
// assigned to it, using largest-remainder rounding, then nudges shares
// back inside [1, maxPoints] while keeping the sum exact.
func weightedShares(points, n int, counts []int, maxPoints int) ([]int, error) {
	totalCriteria := 0
	for _, c := range counts {
		totalCriteria += c
	}
	if totalCriteria == 0 {
		return evenShares(points, n), nil
	}

	type slice struct {
		idx       int
		base      int
		remainder float64
	}
	slices := make([]slice, n)
	sum := 0
	for i := 0; i < n; i++ {
		exact := float64(points) * float64(counts[i]) / float64(totalCriteria)
		base := int(exact)
		slices[i] = slice{idx: i, base: base, remainder: exact - float64(base)}
		sum += base
	}

	// Hand the leftover points to the largest remainders; ties go to
	// the lower index so the split is deterministic.
	sort.SliceStable(slices, func(a, b int) bool {
		if slices[a].remainder != slices[b].remainder {
			return slices[a].remainder > slices[b].remainder
		}
		return slices[a].idx < slices[b].idx
	})
	for i := 0; sum < points; i = (i + 1) % n {
		slices[i].base++
		sum++
	}

	shares := make([]int, n)
	for _, s := range slices {
		shares[s.idx] = s.base
	}

	if err := fitShares(shares, maxPoints); err != nil {
		return nil, err
	}
	return shares, nil
}

// fitShares pushes out-of-range shares back inside [1, maxPoints] by
// moving single points between shares. The sum never changes. Fails
// when the range cannot hold the total.
func fitShares(shares []int, maxPoints int) error {
	for guard := 0; guard < len(shares)*maxPoints+len(shares); guard++ {
		over, under := -1, -1
		for i, s := range shares {
			if s > maxPoints && over < 0 {
				over = i
			}
			if s < 1 && under < 0 {
				under = i
			}
		}
		if over < 0 && under < 0 {
			return nil
		}

		if over >= 0 {
			// Move a point to the smallest share with headroom.
			dst := -1
			for i, s := range shares {
				if i == over || s >= maxPoints {
					continue
				}
				if dst < 0 || s < shares[dst] {
					dst = i
				}
			}
			if dst < 0 {
				return types.NewError(types.DECOMPOSITION_FAILED,
					fmt.Sprintf("cannot fit shares under %d points per sub-item", maxPoints))
			}
			shares[over]--
			shares[dst]++
			continue
		}

		// Raise a zero share by taking from the largest.
		src := -1
		for i, s := range shares {
			if i == under || s <= 1 {
				continue
			}
			if src < 0 || s > shares[src] {
				src = i
			}
		}
		if src < 0 {
			return types.NewError(types.DECOMPOSITION_FAILED,
				"cannot give every sub-item a point")
		}
		shares[src]--
		shares[under]++
	}
	return types.NewError(types.DECOMPOSITION_FAILED, "share fitting did not converge")
}

// fibonacciShares snaps n shares to the estimation scale, stepping the
// largest share down or the smallest up until the total is as close to
// points as the scale permits. Succeeds when the drift is at most one.
func fibonacciShares(points, n, maxPoints int) ([]int, error) {
	allowed := allowedScale(maxPoints)
	if len(allowed) == 0 {
		return nil, types.NewError(types.DECOMPOSITION_FAILED,
			fmt.Sprintf("no estimation scale value fits under %d points", maxPoints))
	}

	start := nearestScale(allowed, float64(points)/float64(n))
	shares := make([]int, n)
	for i := range shares {
		shares[i] = start
	}

	best := append([]int(nil), shares...)
	bestDiff := absDiff(sumOf(shares), points)

	for step := 0; step < 3*n+len(allowed); step++ {
		diff := sumOf(shares) - points
		if diff == 0 {
			break
		}
		if diff > 0 {
			i := firstIndexOfMax(shares)
			next, ok := scaleStepDown(allowed, shares[i])
			if !ok {
				break
			}
			shares[i] = next
		} else {
			i := firstIndexOfMin(shares)
			next, ok := scaleStepUp(allowed, shares[i])
			if !ok {
				break
			}
			shares[i] = next
		}
		if d := absDiff(sumOf(shares), points); d < bestDiff {
			bestDiff = d
			copy(best, shares)
		}
	}

	if bestDiff > 1 {
		return nil, types.NewError(types.POINTS_CONSERVATION_LOST,
			fmt.Sprintf("nearest scale split of %d into %d sub-items drifts by %d points", points, n, bestDiff))
	}
	return best, nil
}

func allowedScale(maxPoints int) []int {
	var out []int
	for _, v := range estimateScale {
		if v <= maxPoints {
			out = append(out, v)
		}
	}
	return out
}

func nearestScale(allowed []int, target float64) int {
	best := allowed[0]
	for _, v := range allowed[1:] {
		if diff, bestDiff := absFloat(float64(v)-target), absFloat(float64(best)-target); diff < bestDiff {
			best = v
		}
	}
	return best
}

func scaleStepDown(allowed []int, v int) (int, bool) {
	for i := len(allowed) - 1; i >= 0; i-- {
		if allowed[i] < v {
			return allowed[i], true
		}
	}
	return 0, false
}

func scaleStepUp(allowed []int, v int) (int, bool) {
	for _, a := range allowed {
		if a > v {
			return a, true
		}
	}
	return 0, false
}

func firstIndexOfMax(shares []int) int {
	idx := 0
	for i, s := range shares {
		if s > shares[idx] {
			idx = i
		}
	}
	return idx
}

func firstIndexOfMin(shares []int) int {
	idx := 0
	for i, s := range shares {
		if s < shares[idx] {
			idx = i
		}
	}
	return idx
}

func sumOf(xs []int) int {
	s := 0
	for _, x := range xs {
		s += x
	}
	return s
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
