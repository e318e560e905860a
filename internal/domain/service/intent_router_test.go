package service

import "testing"

func TestParseMailDelete(t *testing.T) {
	req, ok := ParseMailDelete(`delete emails older than 30 days from alice@example.com subject "invoice" label "promo" permanently`)
	if !ok {
		t.Fatal("expected match")
	}
	if req.OlderThanDays != 30 {
		t.Fatalf("expected 30 days, got %d", req.OlderThanDays)
	}
	if req.From != "alice@example.com" {
		t.Fatalf("expected from alice@example.com, got %q", req.From)
	}
	if !req.Permanent {
		t.Fatal("expected permanent flag set")
	}
	if req.Query() == "" {
		t.Fatal("expected non-empty query")
	}
}

func TestParseMailDeleteNoMatch(t *testing.T) {
	if _, ok := ParseMailDelete("what's the weather"); ok {
		t.Fatal("expected no match")
	}
}

func TestParseMailMarkRead(t *testing.T) {
	from, ok := ParseMailMarkRead("mark all emails read from bob@example.com")
	if !ok {
		t.Fatal("expected match")
	}
	if from != "bob@example.com" {
		t.Fatalf("expected bob@example.com, got %q", from)
	}
}

func TestParseMailMarkReadMissingToken(t *testing.T) {
	if _, ok := ParseMailMarkRead("mark read from bob@example.com"); ok {
		t.Fatal("expected no match without 'all'")
	}
}

func TestParseSpamClean(t *testing.T) {
	action, ok := ParseSpamClean("please clean my spam folder")
	if !ok || action != SpamCleanMoveToTrash {
		t.Fatalf("expected move_to_trash, got %v ok=%v", action, ok)
	}
	action, ok = ParseSpamClean("empty the trash permanently")
	if !ok || action != SpamCleanPermanentPurge {
		t.Fatalf("expected permanent_purge, got %v ok=%v", action, ok)
	}
}
