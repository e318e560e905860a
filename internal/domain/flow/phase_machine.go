package flow

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Phase is one of the two stages every destructive/bulk flow moves
// through (§4.5), plus the terminal states a turn can leave it in.
type Phase string

const (
	PhaseDryRun    Phase = "dry_run"    // preview computed, awaiting confirmation
	PhaseExecuting Phase = "executing"  // confirmed, work in progress across turns
	PhaseDone      Phase = "done"       // completed, record cleared
	PhaseCancelled Phase = "cancelled"  // user cancelled, record cleared
	PhaseError     Phase = "error"      // terminal failure, record cleared
)

// validPhaseTransitions mirrors the teacher's agent state machine shape:
// an explicit allow-list keyed by current phase, checked before every move.
var validPhaseTransitions = map[Phase]map[Phase]bool{
	PhaseDryRun: {
		PhaseExecuting: true,
		PhaseDone:       true, // zero-item / already-empty short-circuit
		PhaseCancelled:  true,
		PhaseError:      true,
	},
	PhaseExecuting: {
		PhaseExecuting: true, // more remaining, same phase persists across turns
		PhaseDone:       true,
		PhaseCancelled:  true,
		PhaseError:      true,
	},
	PhaseDone:      {},
	PhaseCancelled: {},
	PhaseError:     {},
}

// PhaseMachine validates and logs the DRY_RUN → EXECUTE → terminal walk
// for one flow invocation. It holds no identity of its own (the caller
// owns whose phase this is) — construct one per Handle() call from the
// phase recovered out of the persisted record.
type PhaseMachine struct {
	mu     sync.Mutex
	phase  Phase
	logger *zap.Logger
}

// NewPhaseMachine starts a machine already in the given phase (typically
// recovered from a pending record, or PhaseDryRun for a fresh request).
func NewPhaseMachine(start Phase, logger *zap.Logger) *PhaseMachine {
	return &PhaseMachine{phase: start, logger: logger}
}

// Current returns the current phase.
func (m *PhaseMachine) Current() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Transition attempts to move to `to`, returning an error if disallowed.
func (m *PhaseMachine) Transition(to Phase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed, ok := validPhaseTransitions[m.phase]
	if !ok || !allowed[to] {
		err := fmt.Errorf("invalid flow phase transition: %s -> %s", m.phase, to)
		if m.logger != nil {
			m.logger.Error("flow phase violation", zap.Error(err))
		}
		return err
	}
	m.phase = to
	return nil
}

// IsTerminal reports whether the current phase clears its pending record.
func (m *PhaseMachine) IsTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.phase {
	case PhaseDone, PhaseCancelled, PhaseError:
		return true
	}
	return false
}
