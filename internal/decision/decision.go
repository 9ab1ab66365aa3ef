// Package decision maps an intelligence report onto a directive using a
// fixed rule table. It holds no state and performs no IO; the same report
// and policy always produce the same directive.
package decision

import (
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/model"
)

// Rule boundaries. Escalation always wins; auto-reply needs both a low
// score and device policy consent.
const (
	EscalateThreshold = 0.70
	AutoReplyCeiling  = 0.40
)

// Decide evaluates the rules in priority order and returns the directive
// for the action stage. Reason carries the id of the rule that fired.
func Decide(rep *model.IntelligenceReport, policy model.DevicePolicy) *model.Directive {
	d := &model.Directive{
		SessionID: rep.SessionID,
		Timestamp: time.Now().UTC(),
	}

	switch {
	case rep.EscalationRequired || rep.RiskScore >= EscalateThreshold:
		d.FinalAction = model.ActionEscalate
		d.Reason = "R1"
		d.Dispatch = model.Dispatch{TTS: true, NotifyOwner: true, Escalate: true}
	case rep.RiskScore < AutoReplyCeiling && policy.AllowAutoReply:
		d.FinalAction = model.ActionAutoReply
		d.Reason = "R2"
		d.Dispatch = model.Dispatch{TTS: true}
	case rep.RiskScore >= AutoReplyCeiling:
		d.FinalAction = model.ActionNotifyOwner
		d.Reason = "R3"
		d.Dispatch = model.Dispatch{NotifyOwner: true}
	default:
		d.FinalAction = model.ActionNotifyOwner
		d.Reason = "R4"
		d.Dispatch = model.Dispatch{NotifyOwner: true}
	}

	decisionsTotal.WithLabelValues(string(d.FinalAction), d.Reason).Inc()
	return d
}
