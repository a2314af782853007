// Package respbuilder implements a response-builder: given a tool's raw
// result and a request context, produce a mcp.ToolResult whose estimated
// token count is within budget, reducing insights/actions and, if the core
// data still doesn't fit, summarizing it, offloading it to the resource
// store, or marking it truncated.
//
// Only the strongly-typed form is implemented, as a generic Builder[T any]
// — there is no parallel untyped base class.
package respbuilder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mcpforge/server/pkg/mcp"
	"github.com/mcpforge/server/pkg/reduce"
	"github.com/mcpforge/server/pkg/resource"
	"github.com/mcpforge/server/pkg/token"
)

// ResponseMode is the client-supplied hint selecting a default token budget.
type ResponseMode string

const (
	ModeSummary ResponseMode = "summary"
	ModeFull    ResponseMode = "full"
)

// default per-mode token totals.
const (
	defaultSummaryBudget = 5000
	defaultFullBudget    = 24000
)

// insightsShare and actionsShare are the fractions of the effective budget
// carved out for insights and actions before the remainder is left for data.
const (
	insightsShare = 0.20
	actionsShare  = 0.20
)

// BuildContext carries the per-invocation parameters the builder needs.
type BuildContext struct {
	ResponseMode       ResponseMode
	TokenLimitOverride *int
	SafetyMode         token.SafetyMode
}

func (c BuildContext) baseBudget() int {
	if c.TokenLimitOverride != nil {
		return *c.TokenLimitOverride
	}
	if c.ResponseMode == ModeFull {
		return defaultFullBudget
	}
	return defaultSummaryBudget
}

// Builder assembles a mcp.ToolResult[T] from a tool's raw data.
// GenerateInsights and GenerateActions are the two hooks a tool supplies to
// enrich its result. Summarize is the caller-defined strategy for shrinking
// data that overflows budget. Store and ResourceCategory back offloading
// data to the resource store; if Store is nil, offload is skipped and the
// builder relies on Summarize plus the Truncated flag alone.
type Builder[T any] struct {
	GenerateInsights func(ctx context.Context, data T) []string
	GenerateActions  func(ctx context.Context, data T) []mcp.Action
	Summarize        func(data T) (T, bool) // returns a smaller T, and whether it actually shrank
	Store            resource.Store
	ResourceCategory string
}

// Build produces a ToolResult whose Meta.TokenInfo.Estimated is within
// budget when the data fits the share left after insights and actions.
// When it does not, the result is marked Truncated (and the full data is
// offloaded when Store is set), but Data stays inline, either as Summarize
// returned it or unchanged, so Estimated can exceed Limit.
func (b *Builder[T]) Build(ctx context.Context, data T, bctx BuildContext) mcp.ToolResult[T] {
	start := time.Now()

	budget := token.Budget(bctx.baseBudget(), 0, safetyModeOrDefault(bctx.SafetyMode))

	insights := b.insights(ctx, data)
	actions := b.actions(ctx, data)

	insightsBudget := int(float64(budget) * insightsShare)
	insightsResult := reduce.Reduce(stringsToItems(insights), stringItemEstimator, insightsBudget, reduce.Standard, nil)
	reducedInsights := itemsToStrings(insightsResult.Items)

	actionsBudget := int(float64(budget) * actionsShare)
	actionsResult := reduce.Reduce(actionsToItems(actions), token.EstimateObject, actionsBudget,
		reduce.Priority, &reduce.Context{PriorityFn: actionPriority})
	reducedActions := itemsToActions(actionsResult.Items)

	insightsCost := token.EstimateCollection(stringsToItems(reducedInsights), stringItemEstimator, token.DefaultSampleSize)
	actionsCost := token.EstimateCollection(actionsToItems(reducedActions), token.EstimateObject, token.DefaultSampleSize)
	remainingForData := budget - insightsCost - actionsCost
	if remainingForData < 0 {
		remainingForData = 0
	}

	finalData := data
	dataCost := token.EstimateObject(finalData)
	truncated := false
	resourceURI := ""
	strategy := ""

	if dataCost > remainingForData {
		if b.Summarize != nil {
			if summarized, shrank := b.Summarize(finalData); shrank {
				finalData = summarized
				dataCost = token.EstimateObject(finalData)
				strategy = "summarized"
			}
		}

		if dataCost > remainingForData {
			truncated = true
			if b.Store != nil {
				if raw, err := json.Marshal(data); err == nil {
					category := b.ResourceCategory
					if category == "" {
						category = "tool-results"
					}
					if uri, err := b.Store.Store(ctx, category, raw, "application/json"); err == nil {
						resourceURI = uri
						if strategy == "" {
							strategy = "resource-offload"
						} else {
							strategy = strategy + "+resource-offload"
						}
					}
				}
			}
			if strategy == "" {
				strategy = "truncated"
			}
		}
	}

	elapsed := time.Since(start).Milliseconds()

	return mcp.ToolResult[T]{
		Success:  true,
		Data:     finalData,
		Insights: reducedInsights,
		Actions:  reducedActions,
		Meta: mcp.ResultMeta{
			ExecutionMS: elapsed,
			Truncated:   truncated,
			ResourceURI: resourceURI,
			TokenInfo: mcp.TokenInfo{
				Estimated: insightsCost + actionsCost + dataCost,
				Limit:     budget,
				Strategy:  strategy,
			},
		},
	}
}

func (b *Builder[T]) insights(ctx context.Context, data T) []string {
	if b.GenerateInsights == nil {
		return nil
	}
	return b.GenerateInsights(ctx, data)
}

func (b *Builder[T]) actions(ctx context.Context, data T) []mcp.Action {
	if b.GenerateActions == nil {
		return nil
	}
	return b.GenerateActions(ctx, data)
}

// safetyModeOrDefault defaults an unset SafetyMode to SafetyMinimal rather
// than SafetyDefault. SafetyDefault's 10000-token buffer is sized for a
// whole-conversation context budget; the per-response totals baseBudget
// hands in here (5000 summary, 24000 full) are already a usable ceiling for
// one tool result, so subtracting the same buffer a second time would zero
// out the common, unset-SafetyMode summary path before any data is counted.
func safetyModeOrDefault(m token.SafetyMode) token.SafetyMode {
	if m == "" {
		return token.SafetyMinimal
	}
	return m
}

func actionPriority(item interface{}) float64 {
	a := item.(mcp.Action)
	return float64(a.Priority)
}

func stringsToItems(ss []string) []interface{} {
	items := make([]interface{}, len(ss))
	for i, s := range ss {
		items[i] = s
	}
	return items
}

func itemsToStrings(items []interface{}) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.(string)
	}
	return out
}

func actionsToItems(actions []mcp.Action) []interface{} {
	items := make([]interface{}, len(actions))
	for i, a := range actions {
		items[i] = a
	}
	return items
}

func itemsToActions(items []interface{}) []mcp.Action {
	out := make([]mcp.Action, len(items))
	for i, it := range items {
		out[i] = it.(mcp.Action)
	}
	return out
}

func stringItemEstimator(item interface{}) int {
	return token.EstimateString(item.(string))
}
