// Package invariants re-checks the pipeline's persistence guarantees
// straight from the store. Other packages run these checks in their tests
// once a session has reached a terminal status; they assert the durable
// contract, so loosening one to get a change passing defeats the point.
package invariants

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// auditStatusTransition is the action type the orchestrator writes for every
// successful status move. The literal is part of the persisted audit
// contract, not an implementation detail.
const auditStatusTransition = "status_transition"

// Checker verifies what a finished session left behind in the store. It
// reads through the same store interfaces production code uses, so a passing
// check means the records really are durable in that shape.
type Checker struct {
	store store.Store
}

func NewChecker(s store.Store) *Checker {
	return &Checker{store: s}
}

// CheckSession asserts every guarantee that must hold for a terminal
// session: a coherent session record, a dense transcript, an audit trail
// whose transitions replay monotonically, and, for completed sessions, stage
// reports that agree with the session row and stay write-once.
func (c *Checker) CheckSession(ctx context.Context, t *testing.T, sessionID string) {
	t.Helper()

	sess, err := c.store.Sessions().Get(ctx, sessionID)
	require.NoError(t, err, "session %s must exist", sessionID)
	require.True(t, sess.Status.Terminal(), "session %s status %s is not terminal", sessionID, sess.Status)

	c.checkSessionRecord(t, sess)
	c.checkTranscript(ctx, t, sessionID)
	c.checkAuditTrail(ctx, t, sessionID)
	if sess.Status == model.StatusCompleted {
		c.checkStageReports(ctx, t, sess)
	}
}

func (c *Checker) checkSessionRecord(t *testing.T, sess *model.Session) {
	t.Helper()

	assert.True(t, sess.Status.Valid(), "unknown status %q", sess.Status)
	assertUnit(t, sess.RiskScore, "session risk score")
	assert.False(t, sess.CreatedAt.IsZero(), "created_at not set")
	assert.False(t, sess.LastUpdatedAt.Before(sess.CreatedAt), "last_updated precedes created_at")

	switch sess.Status {
	case model.StatusCompleted:
		require.NotNil(t, sess.FinalAction, "completed session has no final action")
		assert.True(t, sess.FinalAction.Valid(), "unknown final action %q", *sess.FinalAction)
		assert.Nil(t, sess.ErrorReason, "completed session carries an error reason")
	case model.StatusError:
		require.NotNil(t, sess.ErrorReason, "failed session has no error reason")
		assert.NotEmpty(t, *sess.ErrorReason, "failed session has an empty error reason")
	}
}

// checkTranscript requires the per-session sequence to be dense from one:
// the store assigns seq on append, so any gap means an entry was lost or
// rewritten.
func (c *Checker) checkTranscript(ctx context.Context, t *testing.T, sessionID string) {
	t.Helper()

	entries, err := c.store.Transcripts().ListBySession(ctx, sessionID)
	require.NoError(t, err)
	for i, e := range entries {
		assert.Equal(t, sessionID, e.SessionID, "transcript entry %d belongs to %s", i, e.SessionID)
		assert.Equal(t, i+1, e.Seq, "transcript seq has a gap at entry %d", i)
		assert.True(t, e.Role.Valid(), "transcript entry %d has unknown role %q", i, e.Role)
		assert.NotEmpty(t, e.Content, "transcript entry %d is empty", i)
	}
}

// checkAuditTrail replays the recorded status transitions from the initial
// queued state and requires each step to be a legal move. Sessions that
// failed mid-run leave a legal prefix; the failure itself is recorded as a
// separate pipeline_failure row, never as a transition.
func (c *Checker) checkAuditTrail(ctx context.Context, t *testing.T, sessionID string) {
	t.Helper()

	rows, err := c.store.Audits().ListBySession(ctx, sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, rows, "terminal session has no audit trail")

	prev := model.StatusQueued
	for i, row := range rows {
		assert.NotEmpty(t, row.ID, "audit row %d has no id", i)
		assert.Equal(t, sessionID, row.SessionID, "audit row %d belongs to %s", i, row.SessionID)
		assert.NotEmpty(t, row.Agent, "audit row %d has no agent", i)
		assert.NotEmpty(t, row.ActionType, "audit row %d has no action type", i)
		if row.ActionType != auditStatusTransition {
			continue
		}
		next := model.SessionStatus(row.Status)
		require.True(t, next.Valid(), "transition row %d targets unknown status %q", i, row.Status)
		assert.True(t, prev.CanTransition(next), "recorded transition %s -> %s is not a legal move", prev, next)
		prev = next
	}
}

func (c *Checker) checkStageReports(ctx context.Context, t *testing.T, sess *model.Session) {
	t.Helper()
	sid := sess.SessionID

	rep, err := c.store.Reports().GetPerception(ctx, sid)
	require.NoError(t, err, "completed session has no perception report")
	assert.Equal(t, sid, rep.SessionID)
	assertUnit(t, rep.VisionConfidence, "vision confidence")
	assertUnit(t, rep.STTConfidence, "stt confidence")
	assertUnit(t, rep.AntiSpoofScore, "anti-spoof score")
	assertUnit(t, rep.WeaponConfidence, "weapon confidence")

	intel, err := c.store.Reports().GetIntelligence(ctx, sid)
	require.NoError(t, err, "completed session has no intelligence report")
	assert.Equal(t, sid, intel.SessionID)
	assert.True(t, intel.Intent.Valid(), "unknown intent %q", intel.Intent)
	assert.NotEmpty(t, intel.ReplyText, "intelligence produced no reply")
	assertUnit(t, intel.RiskScore, "intelligence risk score")
	assert.InDelta(t, round3(intel.RiskScore), intel.RiskScore, 1e-9,
		"risk score %v is not rounded to three decimals", intel.RiskScore)
	assert.Equal(t, intel.RiskScore, sess.RiskScore, "session risk diverges from the intelligence report")

	directive, err := c.store.Decisions().Get(ctx, sid)
	require.NoError(t, err, "completed session has no directive")
	assert.Equal(t, sid, directive.SessionID)
	require.True(t, directive.FinalAction.Valid(), "unknown final action %q", directive.FinalAction)
	assert.NotEmpty(t, directive.Reason, "directive names no rule")
	if sess.FinalAction != nil {
		assert.Equal(t, directive.FinalAction, *sess.FinalAction, "session final action diverges from the directive")
	}
	if intel.EscalationRequired {
		assert.Equal(t, model.ActionEscalate, directive.FinalAction, "escalation flag was not honored")
	}
	if directive.FinalAction == model.ActionEscalate {
		assert.True(t, directive.Dispatch.NotifyOwner, "escalation must notify the owner")
	}

	// Stage writes are write-once; replaying one must report a duplicate and
	// leave the stored report unchanged.
	stored, inserted, err := c.store.Reports().PutPerception(ctx, rep)
	require.NoError(t, err)
	assert.False(t, inserted, "perception report was written twice")
	assert.Equal(t, rep.Timestamp.UTC(), stored.Timestamp.UTC(), "duplicate write changed the stored report")
}

func assertUnit(t *testing.T, v float64, name string) {
	t.Helper()
	assert.GreaterOrEqual(t, v, 0.0, "%s below the unit interval", name)
	assert.LessOrEqual(t, v, 1.0, "%s above the unit interval", name)
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
