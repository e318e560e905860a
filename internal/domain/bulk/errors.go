package bulk

import "errors"

var (
	// ErrTooManyItems is returned by Start when the adapter's estimate
	// exceeds MaxTotalItems — the operation is rejected before any batch
	// is ever executed.
	ErrTooManyItems = errors.New("bulk: estimated item count exceeds the maximum this operation will service in one run")
	// ErrNothingToDo is returned by Start when the estimate is zero.
	ErrNothingToDo = errors.New("bulk: nothing matched this operation")
	// ErrNotExecuting describes a state that isn't mid-run. No Controller
	// method returns it: RunBatch reports done=true for a state with nothing
	// remaining, and Controller has no Cancel method.
	ErrNotExecuting = errors.New("bulk: operation is not currently executing")
)
