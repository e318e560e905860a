package bulk

import "fmt"

// PresentDryRun formats the confirmation prompt shown before the first
// batch ever runs, summarizing the estimate and a handful of samples.
func PresentDryRun(actionVerb string, state *State) string {
	msg := fmt.Sprintf("Found %d item(s) to %s.", state.TotalEstimatedCount, actionVerb)
	for _, s := range state.SampleDisplayNames {
		if s == "" {
			continue
		}
		msg += fmt.Sprintf("\n  - %s", s)
	}
	msg += "\n\nReply YES to proceed, or CANCEL to stop."
	return msg
}

// PresentInProgress formats the status shown after a batch runs but work
// remains (RemainingCount is the pure-counter alternative to tracking
// placeholder items individually).
func PresentInProgress(actionVerb string, state *State) string {
	msg := fmt.Sprintf("Processed %d of %d (%s)", state.Processed, state.Total, actionVerb)
	if state.ErrorCount > 0 {
		msg += fmt.Sprintf(", %d failed", state.ErrorCount)
	}
	msg += fmt.Sprintf(". %d remaining — send anything to continue.", state.RemainingCount)
	return msg
}

// PresentCompleted formats the terminal summary once Processed == Total.
func PresentCompleted(actionVerb string, state *State) string {
	if state.ErrorCount == 0 {
		return fmt.Sprintf("Done — %s completed for all %d item(s).", actionVerb, state.Processed)
	}
	return fmt.Sprintf("Done — %s completed for %d item(s), %d failed.", actionVerb, state.Processed-state.ErrorCount, state.ErrorCount)
}

// PresentCancelled formats the message shown when the user cancels mid-run.
func PresentCancelled(actionVerb string, state *State) string {
	return fmt.Sprintf("Cancelled %s after %d of %d item(s); the rest were left untouched.", actionVerb, state.Processed, state.Total)
}
