package service

import (
	"regexp"
	"strings"
)

// ConfidenceWeights are the four sub-score weights the scorer combines.
// They sum to 1.0 and are fixed, not configurable per call.
const (
	weightIntent       = 0.25
	weightCompleteness = 0.30
	weightUniqueness   = 0.25
	weightFeasibility  = 0.20

	// missingFieldPenalty is subtracted from completeness per missing
	// required field, floored at minCompleteness.
	missingFieldPenalty = 0.20
	minCompleteness     = 0.40

	// clarifyCeiling is the maximum score a call with any missing field
	// can report, regardless of how the sub-scores otherwise combine.
	clarifyCeiling = 89
)

var hex24Pattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// ConfidenceAssessment is the scorer's verdict on one proposed tool call.
type ConfidenceAssessment struct {
	Score    int      // 0-100
	Awaiting string   // field name the clarification targets, "" if none
	Question string   // clarification question, "" if none
	Missing  []string // required fields absent from Args
}

// questionTable maps a missing field name to its fixed clarification
// question. Every family below draws its awaiting question from here.
var questionTable = map[string]string{
	"card_id":      "Which task/card should I use?",
	"board_name":   "Which Trello board is this on?",
	"list_name":    "Which list on the board?",
	"card_name":    "Which task/card should I use?",
	"to":           "Who should this email go to?",
	"subject":      "What should the subject line say?",
	"body":         "What should the email say?",
	"title":        "What should the event be called?",
	"start":        "When does this start?",
	"end":          "When does this end?",
	"event_id":     "Which event should I use?",
}

func questionFor(field string) string {
	if q, ok := questionTable[field]; ok {
		return q
	}
	return "Could you clarify " + field + "?"
}

// ToolFamily groups the tool names a single scoring rule set applies to.
type ToolFamily string

const (
	FamilyTrelloDispatch   ToolFamily = "trello_dispatch"
	FamilyTrelloCardStatus ToolFamily = "trello_get_card_status"
	FamilyTrelloList       ToolFamily = "trello_list_cards"
	FamilyGmailSend        ToolFamily = "gmail_send"
	FamilyCalendarCreate   ToolFamily = "calendar_create"
	FamilyCalendarModify   ToolFamily = "calendar_modify"
)

// classifyFamily maps a concrete tool name to its scoring family.
func classifyFamily(toolName string) ToolFamily {
	switch toolName {
	case "trello_dispatch":
		return FamilyTrelloDispatch
	case "trello_get_card_status":
		return FamilyTrelloCardStatus
	case "trello_list_cards":
		return FamilyTrelloList
	case "gmail_send_email", "gmail_send_draft":
		return FamilyGmailSend
	case "calendar_create_event":
		return FamilyCalendarCreate
	case "calendar_cancel_meeting", "calendar_add_note":
		return FamilyCalendarModify
	default:
		return ""
	}
}

// requiredFields lists the fields each family needs to act without
// clarification.
var requiredFields = map[ToolFamily][]string{
	FamilyTrelloDispatch:   {"action", "board_name"},
	FamilyTrelloCardStatus: {"card_id", "board_name"},
	FamilyTrelloList:       {"board_name", "list_name"},
	FamilyGmailSend:        {"to", "subject", "body"},
	FamilyCalendarCreate:   {"title", "start", "end"},
	FamilyCalendarModify:   {"event_id"},
}

// uniquenessIdentifierFields lists, per family, the fields whose presence
// as a 24-hex identifier boosts uniqueness to near-certain rather than
// scoring it off name-based heuristics.
var uniquenessIdentifierFields = map[ToolFamily]string{
	FamilyTrelloDispatch:   "card_id",
	FamilyTrelloCardStatus: "card_id",
	FamilyCalendarModify:   "event_id",
}

// Score evaluates a proposed tool call deterministically. args holds the
// arguments the LLM proposed (string values only — non-string args are
// treated as present regardless of content). No network calls are made.
func Score(toolName string, args map[string]interface{}) ConfidenceAssessment {
	family := classifyFamily(toolName)
	if family == "" {
		// Unknown family: treat as maximally confident — only the fixed
		// set of families in requiredFields is subject to clarification.
		return ConfidenceAssessment{Score: 100}
	}

	required := requiredFields[family]
	var missing []string
	for _, f := range required {
		if !fieldPresent(args, f) {
			missing = append(missing, f)
		}
	}

	intent := scoreIntent(family, args)
	completeness := scoreCompleteness(len(missing))
	uniqueness := scoreUniqueness(family, args, missing)
	feasibility := scoreFeasibility(family, args)

	weighted := weightIntent*intent + weightCompleteness*completeness + weightUniqueness*uniqueness + weightFeasibility*feasibility
	score := int(weighted*100 + 0.5)

	if len(missing) > 0 && score > clarifyCeiling {
		score = clarifyCeiling
	}

	assessment := ConfidenceAssessment{Score: score, Missing: missing}
	if len(missing) > 0 {
		assessment.Awaiting = missing[0]
		assessment.Question = questionFor(missing[0])
	}
	return assessment
}

func fieldPresent(args map[string]interface{}, field string) bool {
	v, ok := args[field]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func scoreIntent(family ToolFamily, args map[string]interface{}) float64 {
	// Intent is high whenever the action keyword for the family is
	// present and unambiguous; families without an explicit action
	// field (card status/list lookups) default to 1.0 since the tool
	// choice itself encodes intent.
	if family == FamilyTrelloDispatch {
		action, _ := args["action"].(string)
		switch action {
		case "create", "move", "comment":
			return 1.0
		case "":
			return 0.5
		default:
			return 0.6
		}
	}
	return 1.0
}

func scoreCompleteness(missingCount int) float64 {
	c := 1.0 - float64(missingCount)*missingFieldPenalty
	if c < minCompleteness {
		return minCompleteness
	}
	return c
}

func scoreUniqueness(family ToolFamily, args map[string]interface{}, missing []string) float64 {
	idField, hasIDField := uniquenessIdentifierFields[family]
	if hasIDField {
		if v, ok := args[idField].(string); ok && hex24Pattern.MatchString(v) {
			return 0.98
		}
	}
	if containsString(missing, "card_name") || containsString(missing, "board_name") {
		return 0.5
	}
	return 0.8
}

func scoreFeasibility(family ToolFamily, args map[string]interface{}) float64 {
	switch family {
	case FamilyCalendarCreate:
		start, _ := args["start"].(string)
		end, _ := args["end"].(string)
		if start != "" && end != "" && end <= start {
			return 0.3
		}
	case FamilyGmailSend:
		to, _ := args["to"].(string)
		if to != "" && !strings.Contains(to, "@") {
			return 0.4
		}
	}
	return 1.0
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
