package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dwarpal-ai/dwarpal/internal/decision"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/perception"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// runSession is the per-session worker. It waits for a pipeline slot, then
// drains the job queue until the session has been idle long enough to close.
func (o *Orchestrator) runSession(r *runner) {
	defer o.wg.Done()
	ctx := o.ctx

	admitCtx, cancel := context.WithTimeout(ctx, o.admitTimeout)
	err := o.sem.Acquire(admitCtx, 1)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			o.failIfRunning(r.sessionID, reasonCancelled, context.Canceled)
		} else {
			admitTimeoutsTotal.Inc()
			o.failIfRunning(r.sessionID, reasonAdmitTimeout, err)
		}
		o.retire(r)
		return
	}
	defer o.sem.Release(1)

	sessionsActive.Inc()
	defer sessionsActive.Dec()

	idle := time.NewTimer(o.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			o.failIfRunning(r.sessionID, reasonCancelled, context.Canceled)
			o.retire(r)
			return
		case j := <-r.jobs:
			o.process(ctx, r, j)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(o.idleTimeout)
		case <-idle.C:
			o.closeIdle(r)
			return
		}
	}
}

// closeIdle ends a session whose queue stayed empty for the idle window.
// Jobs that raced in behind the timer are handed to a fresh runner.
func (o *Orchestrator) closeIdle(r *runner) {
	o.bus.Publish(r.sessionID, events.SessionEnded(r.sessionID, "inactive"))
	if err := o.layout.RemoveSessionTemp(r.sessionID); err != nil {
		o.log.Warn().Err(err).Str("session_id", r.sessionID).Msg("Temp cleanup failed")
	}
	o.log.Info().Str("session_id", r.sessionID).Msg("Session idle, runner closed")
	for _, j := range o.retire(r) {
		if o.ctx.Err() != nil {
			return
		}
		if err := o.enqueue(r.sessionID, r.deviceID, j); err != nil {
			o.log.Warn().Err(err).Str("session_id", r.sessionID).Msg("Redispatch after idle close failed")
		}
	}
}

// failIfRunning marks the session failed unless it already reached a
// terminal state. Used on teardown paths where the session may have
// finished normally before the runner noticed.
func (o *Orchestrator) failIfRunning(sid, reason string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := o.store.Sessions().Get(ctx, sid)
	if err != nil || sess.Status.Terminal() {
		return
	}
	o.failSession(ctx, sid, reason, cause)
}

func (o *Orchestrator) process(ctx context.Context, r *runner, j job) {
	switch j.kind {
	case jobRing:
		o.runPipeline(ctx, r, j)
	case jobTurn:
		o.runTurn(ctx, r, j)
	}
}

// runPipeline drives one ring through all four stages. Any stage failure
// moves the session to error and stops the run; the action stage is the
// exception, reporting failure through its result instead.
func (o *Orchestrator) runPipeline(ctx context.Context, r *runner, j job) {
	sid := r.sessionID
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			stageFailuresTotal.WithLabelValues(reasonPanic).Inc()
			o.failSession(ctx, sid, reasonPanic, fmt.Errorf("%v", rec))
		}
	}()

	if err := o.transition(ctx, sid, model.StatusProcessing, store.StatusUpdate{}); err != nil {
		o.failStage(ctx, sid, "processing", err)
		return
	}

	rep, err := o.perceive(ctx, j)
	if err != nil {
		o.failStage(ctx, sid, "perception", err)
		return
	}
	if err := o.withStoreRetry(func() error {
		_, _, err := o.store.Reports().PutPerception(ctx, rep)
		return err
	}); err != nil {
		o.failStage(ctx, sid, "perception_store", err)
		return
	}
	if rep.WeaponDetected {
		weaponAlertsTotal.Inc()
		alert := events.WeaponAlert(sid, rep.WeaponLabels, rep.WeaponConfidence)
		o.bus.Publish(events.OwnerChannel, alert)
		o.bus.Publish(sid, alert)
	}
	if err := o.transition(ctx, sid, model.StatusPerceptionDone, store.StatusUpdate{}); err != nil {
		o.failStage(ctx, sid, "perception_done", err)
		return
	}

	var intel *model.IntelligenceReport
	if err := o.pool.Do(ctx, func() { intel = o.engine.Analyze(rep) }); err != nil {
		o.failStage(ctx, sid, "intelligence", err)
		return
	}
	if err := o.withStoreRetry(func() error {
		_, _, err := o.store.Reports().PutIntelligence(ctx, intel)
		return err
	}); err != nil {
		o.failStage(ctx, sid, "intelligence_store", err)
		return
	}
	spoken := &model.TranscriptEntry{SessionID: sid, Role: model.RoleDoorbell, Content: intel.ReplyText}
	if err := o.appendTranscript(ctx, spoken); err != nil {
		o.log.Error().Err(err).Str("session_id", sid).Msg("Reply transcript append failed")
	}
	o.bus.Publish(sid, events.AIReply(sid, intel.ReplyText))
	risk := intel.RiskScore
	if err := o.transition(ctx, sid, model.StatusIntelligenceDone, store.StatusUpdate{RiskScore: &risk}); err != nil {
		o.failStage(ctx, sid, "intelligence_done", err)
		return
	}

	policy := model.DevicePolicy{DeviceID: r.deviceID, AllowAutoReply: o.autoReply}
	directive := decision.Decide(intel, policy)
	if err := o.withStoreRetry(func() error {
		_, _, err := o.store.Decisions().Put(ctx, directive)
		return err
	}); err != nil {
		o.failStage(ctx, sid, "decision_store", err)
		return
	}
	if err := o.transition(ctx, sid, model.StatusDecisionDone, store.StatusUpdate{}); err != nil {
		o.failStage(ctx, sid, "decision_done", err)
		return
	}

	res := o.executor.Execute(ctx, directive, intel, rep)
	o.appendActionResult(ctx, res, directive.Reason)
	finalActionsTotal.WithLabelValues(string(directive.FinalAction)).Inc()

	final := directive.FinalAction
	if err := o.transition(ctx, sid, model.StatusCompleted, store.StatusUpdate{FinalAction: &final}); err != nil {
		o.failStage(ctx, sid, "completed", err)
		return
	}
	o.bus.Publish(sid, events.SessionEnded(sid, "completed"))
	pipelineDuration.Observe(time.Since(start).Seconds())
	o.log.Info().
		Str("session_id", sid).
		Str("final_action", string(final)).
		Float64("risk_score", intel.RiskScore).
		Msg("Pipeline completed")
}

// perceive runs the perception provider on the worker pool under its per
// call budget. Provider trouble degrades to an empty report so the visit is
// still scored; only cancellation of the session itself is an error.
func (o *Orchestrator) perceive(ctx context.Context, j job) (*model.PerceptionReport, error) {
	pctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	var out struct {
		rep *model.PerceptionReport
		err error
	}
	err := o.pool.Do(pctx, func() {
		out.rep, out.err = o.percept.Analyze(pctx, j.media)
	})
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// After a pool error the job may still be running, so out is
	// off-limits; degrade without touching it.
	var rep *model.PerceptionReport
	var cause error
	if err != nil {
		cause = err
	} else if out.err != nil || out.rep == nil {
		cause = out.err
	} else {
		rep = out.rep
	}
	if rep == nil {
		degradedReportsTotal.Inc()
		o.log.Warn().Err(cause).Str("session_id", j.media.SessionID).Msg("Perception degraded to empty report")
		rep = &model.PerceptionReport{
			SessionID: j.media.SessionID,
			ImagePath: j.media.ImagePath,
			Timestamp: time.Now().UTC(),
		}
	}

	perception.Enrich(rep, j.media.AudioPath != "")
	rep.SessionID = j.media.SessionID
	if rep.ImagePath == "" {
		rep.ImagePath = j.media.ImagePath
	}
	if rep.Timestamp.IsZero() {
		rep.Timestamp = time.Now().UTC()
	}
	if !j.event.Timestamp.IsZero() {
		rep.Timestamp = j.event.Timestamp
	}
	return rep, nil
}

// runTurn handles a follow-up on an existing session: transcribe the new
// audio if that is all we got, then run a conversation turn. No status
// transitions happen here.
func (o *Orchestrator) runTurn(ctx context.Context, r *runner, j job) {
	message := strings.TrimSpace(j.message)
	if message == "" && (j.media.AudioPath != "" || j.media.ImagePath != "") {
		rep, err := o.perceive(ctx, j)
		if err != nil {
			o.log.Warn().Err(err).Str("session_id", r.sessionID).Msg("Follow-up perception cancelled")
			return
		}
		message = strings.TrimSpace(rep.Transcript)
	}
	if message == "" {
		o.log.Debug().Str("session_id", r.sessionID).Msg("Follow-up carried no utterance, skipping")
		return
	}
	if _, err := o.ConversationTurn(ctx, r.sessionID, message, j.fromOwner); err != nil {
		o.log.Warn().Err(err).Str("session_id", r.sessionID).Msg("Follow-up turn failed")
	}
}

// failStage records a stage failure. Cancellation is reported as such
// rather than blamed on the stage that happened to observe it.
func (o *Orchestrator) failStage(ctx context.Context, sid, stage string, err error) {
	stageFailuresTotal.WithLabelValues(stage).Inc()
	if ctx.Err() != nil || fault.IsCancellation(err) {
		o.failSession(ctx, sid, reasonCancelled, err)
		return
	}
	o.failSession(ctx, sid, stage, err)
}

// transition moves the session forward, audits the move, and announces it.
// The store write happens first so a reader reacting to the event always
// observes a status at least as far along.
func (o *Orchestrator) transition(ctx context.Context, sid string, next model.SessionStatus, upd store.StatusUpdate) error {
	err := o.withStoreRetry(func() error {
		_, err := o.store.Sessions().UpdateStatus(ctx, sid, next, upd)
		return err
	})
	if err != nil {
		return err
	}
	o.appendAudit(ctx, sid, model.AgentOrchestrator, auditStatusTransition, string(next), "", nil)
	o.bus.Publish(sid, events.PipelineStage(sid, string(next)))
	return nil
}

// appendActionResult persists the executed directive as an audit row under
// the action agent, which is where the action history endpoint reads from.
func (o *Orchestrator) appendActionResult(ctx context.Context, res *model.ActionResult, reason string) {
	row := &model.AuditRow{
		SessionID:   res.SessionID,
		Agent:       model.AgentAction,
		ActionType:  string(res.ActionType),
		PayloadJSON: res.Payload,
		Status:      string(res.Status),
		ShortReason: reason,
	}
	err := o.withStoreRetry(func() error {
		_, err := o.store.Audits().Append(ctx, row)
		return err
	})
	if err != nil {
		o.log.Error().Err(err).Str("session_id", res.SessionID).Msg("Action audit append failed")
	}
}
