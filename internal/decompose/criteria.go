package decompose

import (
	"fmt"
	"strings"

	"github.com/ByBren-LLC/bigroom/internal/types"
)

// distributeCriteria assigns each criterion index to a sub-item index
// per the configured strategy. Every sub-item receives at least one
// criterion; callers guarantee len(criteria) >= n.
func distributeCriteria(criteria []string, n int, strategy CriteriaStrategy) ([]int, error) {
	if len(criteria) < n {
		return nil, types.NewError(types.INSUFFICIENT_CRITERIA,
			fmt.Sprintf("%d criteria cannot seed %d sub-items", len(criteria), n))
	}
	switch strategy {
	case CriteriaSequential:
		return sequentialGroups(len(criteria), n), nil
	case CriteriaBalanced:
		return balancedGroups(len(criteria), n), nil
	case CriteriaThematic:
		return thematicGroups(criteria, n), nil
	default:
		return nil, types.NewError(types.VALIDATION_FAILED,
			fmt.Sprintf("unknown criteria strategy %q", strategy))
	}
}

// sequentialGroups deals criteria round-robin: criterion i goes to
// sub-item i mod n.
func sequentialGroups(count, n int) []int {
	groups := make([]int, count)
	for i := range groups {
		groups[i] = i % n
	}
	return groups
}

// balancedGroups cuts the criteria list into n contiguous chunks whose
// sizes differ by at most one, preserving the original ordering inside
// each sub-item.
func balancedGroups(count, n int) []int {
	groups := make([]int, count)
	base := count / n
	rem := count % n

	idx := 0
	for g := 0; g < n; g++ {
		size := base
		if g < rem {
			size++
		}
		for k := 0; k < size; k++ {
			groups[idx] = g
			idx++
		}
	}
	return groups
}

// thematicGroups clusters criteria by shared keywords. The first n
// criteria seed the groups; each remaining criterion joins the group
// whose accumulated vocabulary it overlaps most, ties falling to the
// lowest group index.
func thematicGroups(criteria []string, n int) []int {
	groups := make([]int, len(criteria))
	vocab := make([]map[string]bool, n)

	for g := 0; g < n; g++ {
		groups[g] = g
		vocab[g] = keywordSet(criteria[g])
	}

	for i := n; i < len(criteria); i++ {
		words := keywordSet(criteria[i])

		best, bestOverlap := 0, -1
		for g := 0; g < n; g++ {
			overlap := 0
			for w := range words {
				if vocab[g][w] {
					overlap++
				}
			}
			if overlap > bestOverlap {
				best, bestOverlap = g, overlap
			}
		}

		groups[i] = best
		for w := range words {
			vocab[best][w] = true
		}
	}
	return groups
}

// stopwords are tokens too common to signal a theme.
var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "can": true, "for": true,
	"from": true, "has": true, "have": true, "in": true, "is": true,
	"it": true, "must": true, "not": true, "of": true, "on": true,
	"or": true, "should": true, "that": true, "the": true, "to": true,
	"when": true, "will": true, "with": true,
}

// keywordSet tokenizes a criterion into lowercase keywords.
func keywordSet(text string) map[string]bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		set[w] = true
	}
	return set
}
