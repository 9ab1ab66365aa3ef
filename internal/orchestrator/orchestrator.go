// Package orchestrator admits ring events and drives each session through
// the perception, intelligence, decision, and action stages. It owns the
// session lifecycle: every status transition, audit row, and lifecycle event
// is written here, so stage packages stay free of persistence concerns.
//
// Each session gets one runner goroutine with a bounded FIFO job queue. A
// weighted semaphore caps how many runners hold a pipeline slot at once;
// everyone else waits in line. A full queue rejects the ring with a
// back-pressure error rather than dropping work already accepted.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/dwarpal-ai/dwarpal/internal/action"
	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/config"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/fault"
	"github.com/dwarpal-ai/dwarpal/internal/intelligence"
	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/perception"
	"github.com/dwarpal-ai/dwarpal/internal/store"
	"github.com/dwarpal-ai/dwarpal/internal/vocab"
	"github.com/dwarpal-ai/dwarpal/internal/workpool"
)

// DefaultGreeting is spoken at the door the moment a ring is accepted,
// before any stage has run.
const DefaultGreeting = "Hello! Please wait while I notify the owner."

// snapshotURLPrefix is where the HTTP layer serves stored snapshots from.
const snapshotURLPrefix = "/static/snaps/"

// SnapshotURL returns the static URL a session's snapshot is served under.
// Event payloads and the activity feed share this convention.
func SnapshotURL(sessionID string) string {
	return snapshotURLPrefix + sessionID + ".jpg"
}

// Audit action types written by the orchestrator.
const (
	auditRingReceived     = "ring_received"
	auditStatusTransition = "status_transition"
	auditPipelineFailure  = "pipeline_failure"
	auditSecurityContract = "security_contract"
)

// Failure reasons recorded on the session when a run dies.
const (
	reasonCancelled    = "cancelled"
	reasonAdmitTimeout = "semaphore_timeout"
	reasonContract     = "contract_violation"
	reasonPanic        = "panic"
)

// maxTracePayload caps the stack trace stored in failure audit rows.
const maxTracePayload = 4096

// maxViolations is how many suppressed replies a session survives. The
// violation that reaches this count fails the session.
const maxViolations = 2

type jobKind int

const (
	jobRing jobKind = iota
	jobTurn
)

// job is one unit of per-session work. Ring jobs run the full pipeline;
// turn jobs are conversation follow-ups and never touch session status.
type job struct {
	kind      jobKind
	event     *model.RingEvent
	media     perception.RingMedia
	message   string
	fromOwner bool
}

// runner is the per-session worker handle. Its queue is drained by exactly
// one goroutine.
type runner struct {
	sessionID string
	deviceID  string
	jobs      chan job
}

// Admission is what the ingress endpoint returns for an accepted ring.
type Admission struct {
	SessionID string              `json:"sessionId"`
	Status    model.SessionStatus `json:"status"`
	Greeting  string              `json:"greeting"`
}

// Orchestrator schedules session pipelines. Construct with New, call Start
// before admitting rings, and Stop to drain on shutdown.
type Orchestrator struct {
	store    store.Store
	bus      *events.Bus
	layout   *assets.Layout
	percept  perception.Provider
	engine   *intelligence.Engine
	executor *action.Executor
	pool     *workpool.Pool

	sem             *semaphore.Weighted
	queueDepth      int
	idleTimeout     time.Duration
	admitTimeout    time.Duration
	providerTimeout time.Duration
	autoReply       bool

	mu         sync.Mutex
	runners    map[string]*runner
	violations map[string]int
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	log zerolog.Logger
}

// New wires an orchestrator from its stage components. The pool is shared
// with other CPU-bound callers and is not owned by the orchestrator.
func New(cfg *config.Config, st store.Store, bus *events.Bus, layout *assets.Layout,
	percept perception.Provider, engine *intelligence.Engine, executor *action.Executor,
	pool *workpool.Pool, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:           st,
		bus:             bus,
		layout:          layout,
		percept:         percept,
		engine:          engine,
		executor:        executor,
		pool:            pool,
		sem:             semaphore.NewWeighted(int64(cfg.MaxConcurrentSessions)),
		queueDepth:      cfg.SessionQueueDepth,
		idleTimeout:     cfg.SessionIdleTimeout(),
		admitTimeout:    cfg.AdmitTimeout(),
		providerTimeout: cfg.ProviderTimeout(),
		autoReply:       cfg.AutoReplyAllowed,
		runners:         make(map[string]*runner),
		violations:      make(map[string]int),
		log:             log.With().Str("component", "orchestrator").Logger(),
	}
}

// Start binds the orchestrator to its lifecycle context. Rings admitted
// after ctx ends are rejected.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
}

// Stop rejects further rings, cancels every active runner, and waits for
// them to finish their teardown writes.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// HandleRing admits one doorbell press. It stages the media, creates the
// session record, and queues the pipeline run; the heavy work happens on
// the session runner after this returns. A ring naming an existing session
// is queued as a conversation turn instead of a second pipeline run.
func (o *Orchestrator) HandleRing(ctx context.Context, ev *model.RingEvent) (*Admission, error) {
	if o.ctx == nil || o.ctx.Err() != nil {
		return nil, fault.ErrCancelled
	}
	if ev.DeviceID == "" {
		return nil, fmt.Errorf("%w: ring event missing deviceId", model.ErrValidation)
	}
	sid := ev.SessionID
	if sid == "" {
		sid = uuid.NewString()
	}

	media, err := o.stageMedia(ctx, sid, ev)
	if err != nil {
		return nil, err
	}

	created := true
	sess := &model.Session{SessionID: sid, DeviceID: ev.DeviceID, Status: model.StatusQueued}
	if _, err := o.store.Sessions().Create(ctx, sess); err != nil {
		if !errors.Is(err, model.ErrConflict) {
			return nil, err
		}
		created = false
		if sess, err = o.store.Sessions().Get(ctx, sid); err != nil {
			return nil, err
		}
	}

	j := job{kind: jobRing, event: ev, media: media}
	reason := "Ring event queued"
	if !created {
		j.kind = jobTurn
		reason = "Follow-up ring queued"
	}

	if created {
		// A fresh session has an empty queue, so audit and announce before
		// the runner can race ahead of us.
		o.appendAudit(ctx, sid, model.AgentOrchestrator, auditRingReceived,
			string(model.StatusQueued), reason, map[string]any{"device_id": ev.DeviceID})
		imageURL := ""
		if media.ImagePath != "" {
			imageURL = SnapshotURL(sid)
		}
		o.bus.Publish(events.OwnerChannel, events.NewRing(sid, DefaultGreeting, imageURL))
		if err := o.enqueue(sid, ev.DeviceID, j); err != nil {
			return nil, err
		}
	} else {
		if err := o.enqueue(sid, ev.DeviceID, j); err != nil {
			return nil, err
		}
		o.appendAudit(ctx, sid, model.AgentOrchestrator, auditRingReceived,
			string(sess.Status), reason, map[string]any{"device_id": ev.DeviceID})
	}

	ringsTotal.Inc()
	o.log.Info().
		Str("session_id", sid).
		Str("device_id", ev.DeviceID).
		Bool("new_session", created).
		Msg("Ring admitted")
	return &Admission{SessionID: sid, Status: sess.Status, Greeting: DefaultGreeting}, nil
}

// stageMedia decodes and writes the ring payloads under the data directory.
// Decode failures reject the ring before any records exist.
func (o *Orchestrator) stageMedia(ctx context.Context, sid string, ev *model.RingEvent) (perception.RingMedia, error) {
	media := perception.RingMedia{SessionID: sid}
	if ev.ImageB64 == "" && ev.AudioB64 == "" {
		return media, nil
	}
	var werr error
	err := o.pool.Do(ctx, func() {
		if ev.ImageB64 != "" {
			media.ImagePath, werr = o.layout.WriteSnapshot(sid, ev.ImageB64)
		}
		if werr == nil && ev.AudioB64 != "" {
			media.AudioPath, werr = o.layout.WriteVisitorAudio(sid, ev.AudioB64)
		}
	})
	if err != nil {
		return media, err
	}
	if werr != nil {
		return media, fmt.Errorf("%w: %v", model.ErrValidation, werr)
	}
	return media, nil
}

// enqueue hands the job to the session's runner, spawning one if needed.
// A full queue rejects with a back-pressure error; accepted jobs are never
// dropped.
func (o *Orchestrator) enqueue(sid, deviceID string, j job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fault.ErrCancelled
	}
	r, ok := o.runners[sid]
	if !ok {
		r = &runner{sessionID: sid, deviceID: deviceID, jobs: make(chan job, o.queueDepth)}
		o.runners[sid] = r
		o.wg.Add(1)
		go o.runSession(r)
	}
	select {
	case r.jobs <- j:
		return nil
	default:
		queueRejectsTotal.Inc()
		return fault.NewBackPressureError(sid, len(r.jobs), o.queueDepth)
	}
}

// retire removes the runner and drains whatever slipped into its queue
// between the exit decision and this call. The caller redispatches the
// leftovers.
func (o *Orchestrator) retire(r *runner) []job {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.runners, r.sessionID)
	delete(o.violations, r.sessionID)
	var left []job
	for {
		select {
		case j := <-r.jobs:
			left = append(left, j)
		default:
			return left
		}
	}
}

// ConversationTurn appends the utterance to the session transcript,
// generates a doorbell reply, publishes it, and returns it. Runs inline in
// the caller's goroutine; pipeline status is never touched. A session that
// keeps producing contract violations is failed on the second one, or, when
// it already completed, locked against further turns.
func (o *Orchestrator) ConversationTurn(ctx context.Context, sessionID, message string, fromOwner bool) (string, error) {
	sess, err := o.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if sess.Status == model.StatusError {
		return "", fmt.Errorf("%w: session %s has failed", model.ErrValidation, sessionID)
	}
	if o.violationCount(sessionID) >= maxViolations {
		return "", fmt.Errorf("%w: session %s is locked after repeated contract violations", model.ErrValidation, sessionID)
	}

	entry := &model.TranscriptEntry{SessionID: sessionID, Role: model.RoleVisitor, Content: message}
	if fromOwner {
		entry.Role = model.RoleDoorbell
		entry.Content = model.OwnerMarker + message
	}
	if err := o.appendTranscript(ctx, entry); err != nil {
		return "", err
	}

	history, err := o.store.Transcripts().ListBySession(ctx, sessionID)
	if err != nil {
		o.log.Warn().Err(err).Str("session_id", sessionID).Msg("Transcript history unavailable")
		history = nil
	}
	rep, err := o.store.Reports().GetPerception(ctx, sessionID)
	if err != nil {
		rep = nil
	}

	cctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	reply, err := o.engine.ConversationReply(cctx, sessionID, message, fromOwner, history, rep)
	cancel()
	switch {
	case fault.IsContractViolation(err):
		var cv fault.ContractViolation
		errors.As(err, &cv)
		count := o.bumpViolations(sessionID)
		o.appendAudit(ctx, sessionID, model.AgentIntelligence, auditSecurityContract,
			"suppressed", cv.Rule, map[string]any{"violation_count": count})
		if count >= maxViolations {
			// Completed sessions keep their status; the lockout above is
			// what stops the conversation.
			o.failIfRunning(sessionID, reasonContract, err)
			return "", err
		}
		// reply already carries the safe hold line
	case err != nil:
		o.log.Warn().Err(err).Str("session_id", sessionID).Msg("Reply provider failed, using fallback")
		reply = intelligence.FallbackReply
	}

	out := &model.TranscriptEntry{SessionID: sessionID, Role: model.RoleDoorbell, Content: reply}
	if err := o.appendTranscript(ctx, out); err != nil {
		return "", err
	}
	o.bus.Publish(sessionID, events.AIReply(sessionID, reply))
	conversationTurnsTotal.Inc()
	return reply, nil
}

// HandleOwnerReply records the owner's line, announces it on the session
// channel, and plays it at the door. TTS trouble is logged, not returned;
// the reply is already part of the record by then.
func (o *Orchestrator) HandleOwnerReply(ctx context.Context, sessionID, message string) error {
	if _, err := o.store.Sessions().Get(ctx, sessionID); err != nil {
		return err
	}
	entry := &model.TranscriptEntry{
		SessionID: sessionID,
		Role:      model.RoleDoorbell,
		Content:   model.OwnerMarker + message,
	}
	if err := o.appendTranscript(ctx, entry); err != nil {
		return err
	}
	o.bus.Publish(sessionID, events.OwnerReply(sessionID, message))

	lang := model.LangLatin
	if vocab.HasDevanagari(message) {
		lang = model.LangDevanagari
	}
	if _, err := o.executor.Speak(ctx, sessionID, message, lang); err != nil {
		o.log.Warn().Err(err).Str("session_id", sessionID).Msg("Owner reply TTS failed")
	}
	return nil
}

func (o *Orchestrator) bumpViolations(sessionID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.violations[sessionID]++
	return o.violations[sessionID]
}

func (o *Orchestrator) violationCount(sessionID string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.violations[sessionID]
}

// failSession moves the session to error and records why. Uses a fresh
// context when the caller's is already dead so teardown writes still land.
func (o *Orchestrator) failSession(ctx context.Context, sid, reason string, cause error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	msg := reason
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", reason, cause)
	}
	upd := store.StatusUpdate{ErrorReason: &msg}
	if _, err := o.store.Sessions().UpdateStatus(ctx, sid, model.StatusError, upd); err != nil {
		o.log.Error().Err(err).Str("session_id", sid).Msg("Error transition failed")
	}
	payload := map[string]any{"error": msg, "trace": truncatedStack()}
	o.appendAudit(ctx, sid, model.AgentOrchestrator, auditPipelineFailure,
		string(model.StatusError), reason, payload)
	o.bus.Publish(sid, events.PipelineStage(sid, string(model.StatusError)))
	o.bus.Publish(sid, events.SessionEnded(sid, "error"))
	sessionsFailedTotal.Inc()
	o.log.Error().Err(cause).Str("session_id", sid).Str("reason", reason).Msg("Session failed")
}

// appendAudit writes one audit row, retrying once. Audit rows are
// best-effort after that: a session is never failed over its own paper
// trail, and terminal sessions could not transition anyway.
func (o *Orchestrator) appendAudit(ctx context.Context, sid, agent, actionType, status, reason string, payload map[string]any) {
	row := &model.AuditRow{
		SessionID:   sid,
		Agent:       agent,
		ActionType:  actionType,
		Status:      status,
		ShortReason: reason,
	}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			row.PayloadJSON = string(raw)
		}
	}
	err := o.withStoreRetry(func() error {
		_, err := o.store.Audits().Append(ctx, row)
		return err
	})
	if err != nil {
		o.log.Error().Err(err).Str("session_id", sid).Str("action_type", actionType).
			Msg("Audit append failed")
	}
}

func (o *Orchestrator) appendTranscript(ctx context.Context, e *model.TranscriptEntry) error {
	return o.withStoreRetry(func() error {
		_, err := o.store.Transcripts().Append(ctx, e)
		return err
	})
}

// withStoreRetry runs fn and retries it exactly once unless the failure is
// semantic (unknown record, duplicate, illegal transition) or the context
// is gone.
func (o *Orchestrator) withStoreRetry(fn func() error) error {
	err := fn()
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrConflict) ||
		fault.IsTransitionError(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	storeRetriesTotal.Inc()
	if err2 := fn(); err2 == nil {
		return nil
	}
	return err
}

func truncatedStack() string {
	stack := debug.Stack()
	if len(stack) > maxTracePayload {
		stack = stack[:maxTracePayload]
	}
	return string(stack)
}
