package decision

import (
	"testing"

	"github.com/dwarpal-ai/dwarpal/internal/model"
)

func TestDecideRuleTable(t *testing.T) {
	allow := model.DevicePolicy{DeviceID: "front-door", AllowAutoReply: true}
	deny := model.DevicePolicy{DeviceID: "front-door"}

	cases := []struct {
		name       string
		risk       float64
		escalation bool
		policy     model.DevicePolicy
		wantAction model.FinalAction
		wantReason string
	}{
		{"escalation flag wins at zero risk", 0.0, true, allow, model.ActionEscalate, "R1"},
		{"risk at threshold escalates", 0.70, false, allow, model.ActionEscalate, "R1"},
		{"high risk escalates without flag", 0.95, false, deny, model.ActionEscalate, "R1"},
		{"low risk auto-replies when permitted", 0.39, false, allow, model.ActionAutoReply, "R2"},
		{"zero risk auto-replies when permitted", 0.0, false, allow, model.ActionAutoReply, "R2"},
		{"auto-reply ceiling is exclusive", 0.40, false, allow, model.ActionNotifyOwner, "R3"},
		{"mid band notifies", 0.69, false, allow, model.ActionNotifyOwner, "R3"},
		{"low risk without consent falls through", 0.10, false, deny, model.ActionNotifyOwner, "R4"},
	}

	for _, tc := range cases {
		rep := &model.IntelligenceReport{
			SessionID:          "sess-dec",
			RiskScore:          tc.risk,
			EscalationRequired: tc.escalation,
		}
		got := Decide(rep, tc.policy)
		if got.FinalAction != tc.wantAction {
			t.Errorf("%s: action = %s, want %s", tc.name, got.FinalAction, tc.wantAction)
			continue
		}
		if got.Reason != tc.wantReason {
			t.Errorf("%s: reason = %s, want %s", tc.name, got.Reason, tc.wantReason)
		}
		if got.SessionID != "sess-dec" {
			t.Errorf("%s: session id = %q", tc.name, got.SessionID)
		}
	}
}

func TestDecideDispatchChannels(t *testing.T) {
	allow := model.DevicePolicy{DeviceID: "front-door", AllowAutoReply: true}

	escalated := Decide(&model.IntelligenceReport{RiskScore: 0.9}, allow)
	if !escalated.Dispatch.TTS || !escalated.Dispatch.NotifyOwner || !escalated.Dispatch.Escalate {
		t.Fatalf("escalation dispatch = %+v, want every channel", escalated.Dispatch)
	}

	auto := Decide(&model.IntelligenceReport{RiskScore: 0.1}, allow)
	if !auto.Dispatch.TTS || auto.Dispatch.NotifyOwner || auto.Dispatch.Escalate {
		t.Fatalf("auto-reply dispatch = %+v, want tts only", auto.Dispatch)
	}

	notify := Decide(&model.IntelligenceReport{RiskScore: 0.5}, allow)
	if notify.Dispatch.TTS || !notify.Dispatch.NotifyOwner || notify.Dispatch.Escalate {
		t.Fatalf("notify dispatch = %+v, want owner channel only", notify.Dispatch)
	}
}
