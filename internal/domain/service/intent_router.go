package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MailDeleteRequest is a fresh bulk mail delete request parsed from free text.
type MailDeleteRequest struct {
	OlderThanDays int
	From          string
	Subject       string
	Label         string
	Permanent     bool
}

// Query builds the external search query string per §4.5.1.
func (r MailDeleteRequest) Query() string {
	var b strings.Builder
	fmt.Fprintf(&b, "older_than:%dd", r.OlderThanDays)
	if r.From != "" {
		fmt.Fprintf(&b, " from:%s", r.From)
	}
	if r.Subject != "" {
		fmt.Fprintf(&b, ` subject:"%s"`, r.Subject)
	}
	if r.Label != "" {
		fmt.Fprintf(&b, ` label:"%s"`, r.Label)
	}
	return b.String()
}

var (
	deleteOlderThanRe = regexp.MustCompile(`(?i)delete.*older than (\d+)\s*days?`)
	deleteFromRe      = regexp.MustCompile(`(?i)from\s+(\S+@\S+)`)
	deleteSubjectRe   = regexp.MustCompile(`(?i)subject\s+"([^"]+)"`)
	deleteLabelRe     = regexp.MustCompile(`(?i)label\s+"([^"]+)"`)
	deletePermanentRe = regexp.MustCompile(`(?i)\bpermanent(ly)?\b`)
)

// ParseMailDelete recognizes a fresh "delete … older than N days" request
// with optional sender/subject/label and a permanent flag (§4.5.1).
func ParseMailDelete(text string) (MailDeleteRequest, bool) {
	m := deleteOlderThanRe.FindStringSubmatch(text)
	if m == nil {
		return MailDeleteRequest{}, false
	}
	days, err := strconv.Atoi(m[1])
	if err != nil {
		return MailDeleteRequest{}, false
	}
	req := MailDeleteRequest{OlderThanDays: days, Permanent: deletePermanentRe.MatchString(text)}
	if fm := deleteFromRe.FindStringSubmatch(text); fm != nil {
		req.From = fm[1]
	}
	if sm := deleteSubjectRe.FindStringSubmatch(text); sm != nil {
		req.Subject = sm[1]
	}
	if lm := deleteLabelRe.FindStringSubmatch(text); lm != nil {
		req.Label = lm[1]
	}
	return req, true
}

var markReadEmailRe = regexp.MustCompile(`(?i)\bfrom\s+(\S+@\S+)`)

// ParseMailMarkRead recognizes a fresh mark-read request requiring the
// literal tokens "mark", "read", "all", "from" plus a valid email
// address (§4.5.2).
func ParseMailMarkRead(text string) (from string, ok bool) {
	lower := strings.ToLower(text)
	for _, tok := range []string{"mark", "read", "all", "from"} {
		if !strings.Contains(lower, tok) {
			return "", false
		}
	}
	m := markReadEmailRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SpamCleanAction is which sub-action a spam-clean request triggers.
type SpamCleanAction string

const (
	SpamCleanMoveToTrash    SpamCleanAction = "move_to_trash"
	SpamCleanPermanentPurge SpamCleanAction = "permanent_purge"
)

// ParseSpamClean recognizes a fresh spam-clean request: "clean"/"empty"
// combined with "spam" triggers move-to-trash; combined with "trash"
// triggers the permanent-delete sub-action (§4.5.3).
func ParseSpamClean(text string) (SpamCleanAction, bool) {
	lower := strings.ToLower(text)
	triggerVerb := strings.Contains(lower, "clean") || strings.Contains(lower, "empty") || strings.Contains(lower, "purge")
	if !triggerVerb {
		return "", false
	}
	switch {
	case strings.Contains(lower, "spam"):
		return SpamCleanMoveToTrash, true
	case strings.Contains(lower, "trash"):
		return SpamCleanPermanentPurge, true
	default:
		return "", false
	}
}
