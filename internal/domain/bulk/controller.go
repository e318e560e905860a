package bulk

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Controller drives the one-list-page-plus-one-batch-modify-per-turn gate
// of §4.6. It holds no per-user state itself — callers (the flow handlers
// in internal/domain/flow) own the State and persist it via flow.Store;
// Controller only knows how to advance one given State by exactly one step.
type Controller struct {
	registry *AdapterRegistry
	logger   *zap.Logger
}

func NewController(registry *AdapterRegistry, logger *zap.Logger) *Controller {
	return &Controller{registry: registry, logger: logger}
}

// Start prepares a new bulk operation: it builds the PreparedContext,
// fetches the first page to obtain an estimate, and returns the initial
// State without executing any batch action. Callers present this as a dry
// run. A zero estimate or an estimate over MaxTotalItems is rejected
// before any modification is attempted.
func (c *Controller) Start(ctx context.Context, opID, domain, toolName, action string, params map[string]string, requestedBatchSize int) (*State, []Item, error) {
	adapter, err := c.registry.Get(toolName)
	if err != nil {
		return nil, nil, err
	}

	pc, err := adapter.Prepare(ctx, params)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk: prepare failed: %w", err)
	}
	pc.ToolName = toolName
	pc.Action = action

	batchSize := ClampBatchSize(requestedBatchSize)

	items, estimate, err := adapter.NextBatch(ctx, &pc, batchSize, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk: initial listing failed: %w", err)
	}
	if estimate == 0 {
		return nil, nil, ErrNothingToDo
	}
	if estimate > MaxTotalItems {
		return nil, nil, ErrTooManyItems
	}

	sample := make([]string, 0, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
		if len(sample) < 5 {
			sample = append(sample, it.DisplayName)
		}
	}

	state := &State{
		OpID:                opID,
		Domain:              domain,
		Action:              action,
		BatchSize:           batchSize,
		Total:               estimate,
		Processed:           0,
		RemainingCount:      estimate,
		PreparedContext:     pc,
		MessageBuffer:       ids,
		TotalEstimatedCount: estimate,
		SampleDisplayNames:  sample,
	}
	return state, items, nil
}

// RunBatch executes exactly one batch against the head of state's
// buffered items (refilling the buffer with one more listing call first
// if it has run dry and items remain), mutating state in place. It
// returns true once Processed reaches Total.
func (c *Controller) RunBatch(ctx context.Context, state *State) (done bool, err error) {
	if state.RemainingCount <= 0 {
		return true, nil
	}
	adapter, err := c.registry.Get(state.PreparedContext.ToolName)
	if err != nil {
		return false, err
	}

	if len(state.MessageBuffer) == 0 {
		items, _, ferr := adapter.NextBatch(ctx, &state.PreparedContext, state.BatchSize, state.Processed)
		if ferr != nil {
			return false, fmt.Errorf("bulk: refill listing failed: %w", ferr)
		}
		if len(items) == 0 {
			// Adapter ran out before the original estimate predicted —
			// treat remaining as satisfied rather than looping forever.
			state.RemainingCount = 0
			return true, nil
		}
		for _, it := range items {
			state.MessageBuffer = append(state.MessageBuffer, it.ID)
		}
	}

	take := state.BatchSize
	if take > len(state.MessageBuffer) {
		take = len(state.MessageBuffer)
	}
	batchIDs := state.MessageBuffer[:take]
	state.MessageBuffer = state.MessageBuffer[take:]

	batchItems := make([]Item, len(batchIDs))
	for i, id := range batchIDs {
		batchItems[i] = Item{ID: id}
	}

	results, err := adapter.ExecuteBatch(ctx, batchItems, state.PreparedContext)
	if err != nil {
		return false, fmt.Errorf("bulk: batch execution failed: %w", err)
	}

	for _, r := range results {
		state.Processed++
		if state.RemainingCount > 0 {
			state.RemainingCount--
		}
		if !r.Success {
			state.ErrorCount++
			if c.logger != nil {
				c.logger.Warn("bulk item failed", zap.String("op_id", state.OpID), zap.String("item_id", r.ItemID), zap.String("error", r.Error))
			}
		}
	}

	return state.RemainingCount <= 0 || state.Processed >= state.Total, nil
}
