// Package reduce implements a progressive-trimming reduction engine: given
// a list of items, an estimator, and a budget, it returns the largest
// prefix (under a chosen ordering) that fits.
package reduce

import (
	"sort"
	"strconv"

	"github.com/mcpforge/server/pkg/token"
)

// Strategy selects how items are ordered before the keep-prefix trim runs.
type Strategy string

const (
	// Standard keeps the input order as given.
	Standard Strategy = "standard"
	// Priority sorts descending by Context.PriorityFn before trimming.
	Priority Strategy = "priority"
	// Score sorts descending by Context.ScoreFn, ties broken by original index.
	Score Strategy = "score"
)

// percentages tried in order by the keep-prefix search.
var percentages = []int{100, 75, 50, 30, 20, 10, 5}

// Context supplies the priority/score selectors used by the Priority and
// Score strategies. It is optional for Standard.
type Context struct {
	PriorityFn func(item interface{}) float64
	ScoreFn    func(item interface{}) float64
}

// Result is the outcome of a Reduce call.
type Result struct {
	Items     []interface{}
	Steps     []string
	Truncated bool
}

// Reduce trims items to fit budget (plus the collection's own structure
// overhead) using the chosen strategy. The output is always a subset of the
// input in (sorted-) order; if the input is non-empty, at least one element
// is always returned, even if it alone exceeds the budget (marked Truncated).
func Reduce(items []interface{}, itemEstimator token.ItemEstimator, budget int, strategy Strategy, ctx *Context) Result {
	if itemEstimator == nil {
		itemEstimator = token.EstimateObject
	}

	ordered, steps := order(items, strategy, ctx)
	if len(ordered) == 0 {
		return Result{Items: ordered, Steps: steps}
	}

	for _, pct := range percentages {
		prefixLen := prefixLenForPercent(len(ordered), pct)
		if prefixLen == 0 {
			continue
		}
		candidate := ordered[:prefixLen]
		cost := token.EstimateCollection(candidate, itemEstimator, token.DefaultSampleSize)
		if cost <= budget || prefixLen == 1 {
			truncated := prefixLen < len(ordered)
			steps = append(steps, stepLabel(pct, prefixLen, len(ordered)))
			return Result{Items: candidate, Steps: steps, Truncated: truncated}
		}
	}

	// No percentage produced a fit; return one element anyway, marked truncated.
	steps = append(steps, "fallback: single element exceeds budget")
	return Result{Items: ordered[:1], Steps: steps, Truncated: true}
}

func prefixLenForPercent(n, pct int) int {
	if pct >= 100 {
		return n
	}
	length := (n*pct + 99) / 100 // ceil(n*pct/100), keep at least proportional coverage
	if length == 0 {
		length = 1
	}
	if length > n {
		length = n
	}
	return length
}

func stepLabel(pct, kept, total int) string {
	if pct >= 100 {
		return "kept all items"
	}
	return "kept " + strconv.Itoa(kept) + "/" + strconv.Itoa(total) + " items at " + strconv.Itoa(pct) + "% prefix"
}

func order(items []interface{}, strategy Strategy, ctx *Context) ([]interface{}, []string) {
	ordered := make([]interface{}, len(items))
	copy(ordered, items)

	switch strategy {
	case Priority:
		if ctx == nil || ctx.PriorityFn == nil {
			return ordered, []string{"priority strategy requested with no PriorityFn; kept input order"}
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			return ctx.PriorityFn(ordered[i]) > ctx.PriorityFn(ordered[j])
		})
		return ordered, []string{"sorted by priority, descending"}
	case Score:
		if ctx == nil || ctx.ScoreFn == nil {
			return ordered, []string{"score strategy requested with no ScoreFn; kept input order"}
		}
		sort.SliceStable(ordered, func(i, j int) bool {
			return ctx.ScoreFn(ordered[i]) > ctx.ScoreFn(ordered[j])
		})
		return ordered, []string{"sorted by score, descending, stable tie-break on original index"}
	default:
		return ordered, nil
	}
}
