package service

import "testing"

func TestScoreFullTrelloDispatchIsConfident(t *testing.T) {
	args := map[string]interface{}{
		"action":     "move",
		"board_name": "Engineering",
		"card_id":    "5f8d0d55b54764421b23a111",
	}
	got := Score("trello_dispatch", args)
	if len(got.Missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", got.Missing)
	}
	if got.Score < 90 {
		t.Fatalf("expected high confidence score, got %d", got.Score)
	}
}

func TestScoreMissingFieldCapsAt89(t *testing.T) {
	args := map[string]interface{}{"action": "create"}
	got := Score("trello_dispatch", args)
	if len(got.Missing) == 0 {
		t.Fatal("expected a missing field")
	}
	if got.Score > 89 {
		t.Fatalf("expected score clamped to <= 89, got %d", got.Score)
	}
	if got.Awaiting != "board_name" {
		t.Fatalf("expected awaiting board_name, got %q", got.Awaiting)
	}
	if got.Question == "" {
		t.Fatal("expected a non-empty clarification question")
	}
}

func TestScoreGmailSendMalformedAddressLowersFeasibility(t *testing.T) {
	args := map[string]interface{}{"to": "not-an-email", "subject": "hi", "body": "hello"}
	got := Score("gmail_send_email", args)
	full := map[string]interface{}{"to": "a@b.com", "subject": "hi", "body": "hello"}
	gotFull := Score("gmail_send_email", full)
	if got.Score >= gotFull.Score {
		t.Fatalf("expected malformed address to score lower: %d vs %d", got.Score, gotFull.Score)
	}
}

func TestScoreUnknownToolIsFullyConfident(t *testing.T) {
	got := Score("some_unrelated_tool", nil)
	if got.Score != 100 {
		t.Fatalf("expected 100, got %d", got.Score)
	}
}
