package application

import (
	"fmt"

	"context"

	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/flow"
	"github.com/ngoclaw/ngoclaw/gateway/internal/domain/service"
)

// envelopeRouter is the concrete service.EnvelopeRouter: it turns a
// structured tool-result envelope, or a confidence scorer's verdict,
// into the right pending-flow record and the reply for this turn.
type envelopeRouter struct {
	store flow.Store
}

func newEnvelopeRouter(store flow.Store) *envelopeRouter {
	return &envelopeRouter{store: store}
}

// Route implements service.EnvelopeRouter.
func (r *envelopeRouter) Route(ctx context.Context, userID int64, toolName string, args map[string]interface{}, env flow.Envelope) (string, error) {
	switch env.Status {
	case flow.StatusDispatchRequired, flow.StatusCommentRequired:
		return r.routeDispatch(ctx, userID, env)

	case flow.StatusConfirmationRequired:
		if toolName == "gmail_send_email" || toolName == "gmail_send_draft" {
			rec := flow.GmailSendRecord{ToolName: toolName, Payload: args}
			if err := r.store.Set(ctx, flow.NameGmailSend, userID, rec); err != nil {
				return "", err
			}
			return env.Message, nil
		}
		rec := flow.ToolConfirmRecord{ToolName: toolName, Args: args}
		if err := r.store.Set(ctx, flow.NameToolConfirm, userID, rec); err != nil {
			return "", err
		}
		return env.Message, nil

	case flow.StatusError:
		return "That didn't work: " + env.Message, nil

	default:
		// StatusOK/StatusCompleted never reach here (agent_loop filters
		// them out before calling Route); treat anything else as a
		// pass-through message.
		return env.Message, nil
	}
}

func (r *envelopeRouter) routeDispatch(ctx context.Context, userID int64, env flow.Envelope) (string, error) {
	action, _ := env.Data["action"].(string)
	name := flow.NameTrelloDispatch
	if env.Status == flow.StatusCommentRequired {
		name = flow.NameTrelloComment
	}
	rec := flow.DispatchRecord{Action: action, Fields: env.Data, Awaiting: env.Awaiting}
	if err := r.store.Set(ctx, name, userID, rec); err != nil {
		return "", err
	}
	return env.Message, nil
}

// RouteConfidence implements service.EnvelopeRouter.
func (r *envelopeRouter) RouteConfidence(ctx context.Context, userID int64, toolName string, args map[string]interface{}, assessment service.ConfidenceAssessment) (string, error) {
	rec := flow.ConfidenceClarifyRecord{ToolName: toolName, Args: args, Awaiting: assessment.Awaiting}
	if err := r.store.Set(ctx, flow.NameConfidenceClarify, userID, rec); err != nil {
		return "", err
	}
	if assessment.Question != "" {
		return assessment.Question, nil
	}
	return fmt.Sprintf("I need one more detail before I can do that — what's the %s?", assessment.Awaiting), nil
}
