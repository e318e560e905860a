package service

import (
	"testing"
	"time"
)

func TestRequiresConfirmationRiskPolicy(t *testing.T) {
	prefs := OwnerPreferences{}
	if RequiresConfirmation("mail", RiskLow, 0.99, prefs) {
		t.Fatal("low risk should never require confirmation")
	}
	if !RequiresConfirmation("mail", RiskHigh, 0.99, prefs) {
		t.Fatal("high risk should always require confirmation")
	}
	if !RequiresConfirmation("mail", RiskMedium, 0.99, prefs) {
		t.Fatal("medium risk in an untrusted domain should require confirmation")
	}
}

func TestRequiresConfirmationTrustedDomainFastPath(t *testing.T) {
	prefs := OwnerPreferences{TrustCalendar: true}
	if RequiresConfirmation("calendar", RiskMedium, 0.90, prefs) {
		t.Fatal("trusted domain with confidence above threshold should skip confirmation")
	}
	if !RequiresConfirmation("calendar", RiskMedium, 0.50, prefs) {
		t.Fatal("trusted domain below confidence threshold should still confirm")
	}
}

func TestChooseBestMatchClearWinner(t *testing.T) {
	day := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	candidates := []CalendarCandidate{
		{EventID: "a", Title: "sync", Start: day, End: day.Add(time.Hour)},
		{EventID: "b", Title: "standup", Start: day.AddDate(0, 0, 1), End: day.AddDate(0, 0, 1).Add(time.Hour)},
	}
	result := ChooseBestMatch("sync", day, candidates)
	if result.Ambiguous {
		t.Fatal("expected a clear winner, got ambiguous")
	}
	if result.Candidate.EventID != "a" {
		t.Fatalf("expected event a, got %s", result.Candidate.EventID)
	}
}

func TestChooseBestMatchAmbiguous(t *testing.T) {
	day := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	candidates := []CalendarCandidate{
		{EventID: "a", Title: "sync", Start: day, End: day.Add(time.Hour)},
		{EventID: "b", Title: "sync", Start: day, End: day.Add(time.Hour)},
	}
	result := ChooseBestMatch("sync", day, candidates)
	if !result.Ambiguous {
		t.Fatal("expected ambiguous result for two identically-scored candidates")
	}
}

func TestChooseBestMatchNoCandidates(t *testing.T) {
	result := ChooseBestMatch("sync", time.Now(), nil)
	if !result.Ambiguous {
		t.Fatal("expected ambiguous result for empty candidate list")
	}
}
