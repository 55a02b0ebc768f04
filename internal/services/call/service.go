// Package call is the webhook gateway: it rehydrates a session for every
// provider callback, drives the flow engine or the conversation machine, and
// commits all resulting writes before the markup is returned.
package call

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ClareAI/astra-receptionist-service/internal/config"
	"github.com/ClareAI/astra-receptionist-service/internal/core/conversation"
	"github.com/ClareAI/astra-receptionist-service/internal/core/flow"
	"github.com/ClareAI/astra-receptionist-service/internal/core/session"
	"github.com/ClareAI/astra-receptionist-service/internal/core/task"
	"github.com/ClareAI/astra-receptionist-service/internal/domain"
	"github.com/ClareAI/astra-receptionist-service/internal/repository"
	"github.com/ClareAI/astra-receptionist-service/internal/voice"
	"github.com/ClareAI/astra-receptionist-service/pkg/logger"
	"github.com/ClareAI/astra-receptionist-service/pkg/metrics"
)

// HoursChecker answers whether a tenant is open
type HoursChecker interface {
	IsOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) (bool, error)
}

// ReceptionistService handles every provider webhook of a call
type ReceptionistService struct {
	repos    repository.RepositoryManager
	sessions *session.Manager
	hours    HoursChecker
	flows    *flow.Engine
	machine  *conversation.Machine
	queue    *task.Queue
	urls     voice.URLBuilder
	metrics  *metrics.Metrics
	podID    string
	now      func() time.Time
}

// NewReceptionistService creates the webhook gateway
func NewReceptionistService(
	repos repository.RepositoryManager,
	sessions *session.Manager,
	hours HoursChecker,
	flows *flow.Engine,
	machine *conversation.Machine,
	queue *task.Queue,
	urls voice.URLBuilder,
	m *metrics.Metrics,
	podID string,
) *ReceptionistService {
	return &ReceptionistService{
		repos:    repos,
		sessions: sessions,
		hours:    hours,
		flows:    flows,
		machine:  machine,
		queue:    queue,
		urls:     urls,
		metrics:  m,
		podID:    podID,
		now:      time.Now,
	}
}

// handleFunc produces the response of one rehydrated callback
type handleFunc func(ctx context.Context, cb *callback) error

// respond runs a caller-facing callback: load, replay check, handle, commit, render.
// It always returns markup; failures become the apology.
func (s *ReceptionistService) respond(ctx context.Context, route string, p CallbackParams, handle handleFunc) string {
	start := s.now()
	ctx = logger.WithCall(ctx, p.CallSid, "")

	cb, replay, err := s.load(ctx, route, p)
	if err != nil {
		return s.failed(ctx, route, start, err)
	}
	if replay != "" {
		s.metrics.RecordReplay()
		s.metrics.RecordWebhook(route, "replay", s.now().Sub(start))
		return replay
	}
	ctx = logger.WithFields(ctx, zap.String("tenant_id", cb.tenant.ID), zap.String("session_id", cb.session.ID))

	cb.session.Metadata.Seq++
	cb.response = voice.NewResponse()
	if err := handle(ctx, cb); err != nil {
		return s.failed(ctx, route, start, err)
	}
	markup, _ := s.finish(ctx, route, start, cb)
	return markup
}

// finish renders, stores the rendered markup for replays, and commits.
// It reports whether the callback was committed.
func (s *ReceptionistService) finish(ctx context.Context, route string, start time.Time, cb *callback) (string, bool) {
	markup, err := cb.response.Render()
	if err != nil {
		return s.failed(ctx, route, start, fmt.Errorf("render markup: %w", err)), false
	}
	cb.session.Metadata.LastResponse = markup

	if err := s.commit(ctx, cb); err != nil {
		return s.failed(ctx, route, start, err), false
	}
	s.metrics.RecordWebhook(route, "ok", s.now().Sub(start))
	return markup, true
}

// load rehydrates the session, tenant, flow and transcript of p.CallSid.
// A non-empty replay string is the stored response of an older callback.
func (s *ReceptionistService) load(ctx context.Context, route string, p CallbackParams) (*callback, string, error) {
	sess, err := s.repos.Session().GetByCallSid(ctx, p.CallSid)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if sess == nil {
		return nil, "", fmt.Errorf("%w: no session for call %s", domain.ErrConfiguration, p.CallSid)
	}

	if p.Seq >= 0 && p.Seq < sess.Metadata.Seq {
		logger.Info(ctx, "Replayed callback, serving stored response",
			zap.String("route", route), zap.Int("seq", p.Seq), zap.Int("current_seq", sess.Metadata.Seq))
		if sess.Metadata.LastResponse == "" {
			return nil, voice.SayAndHangup(config.MessageGoodbye), nil
		}
		return nil, sess.Metadata.LastResponse, nil
	}
	if sess.Status != domain.CallStatusInProgress {
		return nil, voice.SayAndHangup(config.MessageGoodbye), nil
	}

	tenant, err := s.repos.Tenant().GetByID(ctx, sess.TenantID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	if tenant == nil {
		return nil, "", fmt.Errorf("%w: tenant %s no longer exists", domain.ErrConfiguration, sess.TenantID)
	}

	cb := &callback{params: p, route: route, now: s.now(), session: sess, tenant: tenant}

	if sess.InFlow() {
		f, err := s.repos.Flow().GetByID(ctx, sess.Metadata.FlowID)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
		if f == nil {
			return nil, "", fmt.Errorf("%w: flow %s no longer exists", domain.ErrConfiguration, sess.Metadata.FlowID)
		}
		cb.flow = f
	}

	history, err := s.repos.Transcript().List(ctx, sess.ID)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	cb.history = history
	return cb, "", nil
}

// commit writes the session, transcript, events, lead and jobs of one callback
// atomically, then wakes the workers for the jobs that were new
func (s *ReceptionistService) commit(ctx context.Context, cb *callback) error {
	var announced []*domain.Job
	err := s.repos.WithTx(ctx, func(ctx context.Context, tx repository.RepositoryManager) error {
		if cb.create {
			if err := tx.Session().Create(ctx, cb.session); err != nil {
				return err
			}
		}
		for _, turn := range cb.turns {
			if _, err := tx.Transcript().Append(ctx, cb.session.ID, turn.speaker, turn.text, turn.state); err != nil {
				return err
			}
		}
		for _, ev := range cb.events {
			ev.SessionID = cb.session.ID
			if err := tx.Event().Append(ctx, ev); err != nil {
				return err
			}
		}
		if cb.lead != nil {
			// Checked up front: a failed insert would abort a Postgres transaction
			existing, err := tx.Lead().CountBySessionID(ctx, cb.session.ID)
			if err != nil {
				return err
			}
			if existing > 0 {
				logger.Warn(ctx, "Lead already stored for session, skipping", zap.String("session_id", cb.session.ID))
				cb.jobs = withoutType(cb.jobs, task.TaskTypeLeadNotification)
			} else if err := tx.Lead().Create(ctx, cb.lead); err != nil {
				return err
			}
		}
		for _, job := range cb.jobs {
			inserted, err := s.queue.Enqueue(ctx, tx.Job(), job)
			if err != nil {
				return err
			}
			if inserted {
				announced = append(announced, job)
			}
		}
		if !cb.create {
			return tx.Session().Update(ctx, cb.session)
		}
		return nil
	})
	if err != nil {
		for _, fn := range cb.onRollback {
			fn(ctx)
		}
		return fmt.Errorf("%w: commit callback: %v", domain.ErrPersistence, err)
	}
	s.queue.Announce(ctx, announced...)
	for _, fn := range cb.onCommit {
		fn(ctx)
	}
	return nil
}

// failed logs err and returns the apology. Nothing of the failed callback is stored.
func (s *ReceptionistService) failed(ctx context.Context, route string, start time.Time, err error) string {
	kind := "internal"
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		kind = "configuration"
	case errors.Is(err, domain.ErrPersistence):
		kind = "persistence"
	case errors.Is(err, domain.ErrExternalService):
		kind = "external"
	}
	logger.Error(ctx, "Callback failed, rendering apology",
		zap.String("route", route), zap.String("error_kind", kind), zap.Error(err))
	s.metrics.RecordWebhook(route, kind, s.now().Sub(start))
	return voice.Apology()
}

// captureLead attaches lead to the callback unless the session already has one
func (s *ReceptionistService) captureLead(ctx context.Context, cb *callback, lead *domain.Lead) {
	if lead == nil {
		return
	}
	if cb.session.LeadCaptured {
		logger.Warn(ctx, "Session already captured a lead, ignoring", zap.String("session_id", cb.session.ID))
		return
	}
	lead.ID = newID()
	lead.TenantID = cb.tenant.ID
	lead.SessionID = cb.session.ID
	cb.lead = lead
	cb.session.LeadCaptured = true

	cb.event(domain.EventLeadCaptured, domain.JSONB{"lead_id": lead.ID, "source": lead.Source})
	cb.enqueue(task.NewJob(task.TaskTypeLeadNotification, domain.JSONB{
		task.PayloadLeadID:    lead.ID,
		task.PayloadSessionID: cb.session.ID,
		task.PayloadTenantID:  cb.tenant.ID,
	}, "lead:"+cb.session.ID))
	s.metrics.RecordLead(lead.Source)
}

// isOpen falls back to open when the schedule cannot be read, so callers can still reach someone
func (s *ReceptionistService) isOpen(ctx context.Context, tenant *domain.Tenant, at time.Time) bool {
	open, err := s.hours.IsOpen(ctx, tenant, at)
	if err != nil {
		logger.Warn(ctx, "Schedule lookup failed, assuming open", zap.Error(err))
		return true
	}
	return open
}

func withoutType(jobs []*domain.Job, t task.TaskType) []*domain.Job {
	out := jobs[:0]
	for _, j := range jobs {
		if j.Type != string(t) {
			out = append(out, j)
		}
	}
	return out
}
