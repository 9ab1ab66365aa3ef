package model

import "testing"

func TestSessionStatus_ForwardOnly(t *testing.T) {
	order := []SessionStatus{
		StatusQueued, StatusProcessing, StatusPerceptionDone,
		StatusIntelligenceDone, StatusDecisionDone, StatusCompleted,
	}
	for i, from := range order {
		for j, to := range order {
			got := from.CanTransition(to)
			want := j > i && from != StatusCompleted
			if got != want {
				t.Errorf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestSessionStatus_ErrorOverridesNonTerminal(t *testing.T) {
	for _, from := range []SessionStatus{
		StatusQueued, StatusProcessing, StatusPerceptionDone,
		StatusIntelligenceDone, StatusDecisionDone,
	} {
		if !from.CanTransition(StatusError) {
			t.Errorf("%s -> error should be allowed", from)
		}
	}
}

func TestSessionStatus_TerminalStatesFrozen(t *testing.T) {
	for _, from := range []SessionStatus{StatusCompleted, StatusError} {
		for _, to := range []SessionStatus{
			StatusQueued, StatusProcessing, StatusPerceptionDone,
			StatusIntelligenceDone, StatusDecisionDone, StatusCompleted, StatusError,
		} {
			if from.CanTransition(to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestSessionStatus_UnknownRejected(t *testing.T) {
	if SessionStatus("paused").Valid() {
		t.Fatalf("unknown status should not validate")
	}
	if StatusQueued.CanTransition(SessionStatus("paused")) {
		t.Fatalf("transition to unknown status should be rejected")
	}
}

func TestIntent_ValidCoversAllLabels(t *testing.T) {
	if len(Intents) != 14 {
		t.Fatalf("expected 14 intent labels, got %d", len(Intents))
	}
	for _, in := range Intents {
		if !in.Valid() {
			t.Errorf("intent %s should be valid", in)
		}
	}
	if Intent("loitering").Valid() {
		t.Fatalf("unknown intent should not validate")
	}
}
