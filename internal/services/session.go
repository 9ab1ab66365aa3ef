// Package services holds the read-side use cases behind the HTTP API:
// session views and member directory management. Write-side session flow
// lives in internal/orchestrator.
package services

import (
	"context"
	"errors"

	"github.com/dwarpal-ai/dwarpal/internal/model"
	"github.com/dwarpal-ai/dwarpal/internal/store"
)

// maxLogsLimit caps the activity feed page size.
const maxLogsLimit = 500

// SessionService serves session status, detail, and activity-feed reads.
type SessionService struct {
	store store.Store
}

func NewSessionService(s store.Store) *SessionService { return &SessionService{store: s} }

func (s *SessionService) Status(ctx context.Context, sessionID string) (*model.Session, error) {
	return s.store.Sessions().Get(ctx, sessionID)
}

// Detail loads the session with every stage output and the transcript.
// Stages that have not run yet come back nil rather than failing the read.
func (s *SessionService) Detail(ctx context.Context, sessionID string) (*model.SessionDetail, error) {
	sess, err := s.store.Sessions().Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	detail := &model.SessionDetail{Session: sess}

	if rep, err := s.store.Reports().GetPerception(ctx, sessionID); err == nil {
		detail.Perception = rep
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if rep, err := s.store.Reports().GetIntelligence(ctx, sessionID); err == nil {
		detail.Intelligence = rep
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	if d, err := s.store.Decisions().Get(ctx, sessionID); err == nil {
		detail.Decision = d
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	if detail.Actions, err = s.store.Audits().ListActions(ctx, sessionID); err != nil {
		return nil, err
	}
	if detail.Transcript, err = s.store.Transcripts().ListBySession(ctx, sessionID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Logs returns the most recent sessions newest-first, each with its
// transcript embedded. limit <= 0 falls back to the store default.
func (s *SessionService) Logs(ctx context.Context, limit int) ([]*model.SessionLog, error) {
	if limit > maxLogsLimit {
		limit = maxLogsLimit
	}
	sessions, err := s.store.Sessions().List(ctx, store.ListSessionsRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]*model.SessionLog, 0, len(sessions))
	for _, sess := range sessions {
		transcript, err := s.store.Transcripts().ListBySession(ctx, sess.SessionID)
		if err != nil {
			return nil, err
		}
		out = append(out, &model.SessionLog{Session: sess, Transcript: transcript})
	}
	return out, nil
}
