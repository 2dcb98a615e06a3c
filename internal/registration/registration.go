// Package registration hosts applicant sessions: one wizard.Machine and
// one submission.Flow per session id, mirrored into the draft store on
// every edit.
//
// Sessions live in memory with a sliding expiry. The draft outlives the
// session, so an applicant who returns after it expired calls Start with
// the same id and resumes from the draft.
package registration

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aanand-mishra/registration-api/internal/deadline"
	"github.com/aanand-mishra/registration-api/internal/metrics"
	"github.com/aanand-mishra/registration-api/internal/storage"
	"github.com/aanand-mishra/registration-api/internal/submission"
	"github.com/aanand-mishra/registration-api/internal/types"
	"github.com/aanand-mishra/registration-api/internal/validation"
	"github.com/aanand-mishra/registration-api/internal/wizard"
)

var (
	// ErrClosed is returned by every mutating operation once the
	// deadline has passed.
	ErrClosed = errors.New("registration is closed")

	// ErrNotFound is returned for an unknown or expired session id.
	ErrNotFound = errors.New("registration session not found")

	// ErrInvalidID is returned when a client-supplied id is not a UUID.
	ErrInvalidID = errors.New("invalid session id: must be a UUID")

	// ErrNotOnLastPhase is returned by Review before the last phase.
	ErrNotOnLastPhase = errors.New("the application can only be submitted from the last phase")
)

// Drafts is the draft store as the service uses it.
type Drafts interface {
	Load(ctx context.Context, id string) (types.RegistrationRecord, error)
	Save(ctx context.Context, id string, rec types.RegistrationRecord) error
	Clear(ctx context.Context, id string) error
}

// Submitter sends a confirmed record to persistence. storage.Adapter
// implements it.
type Submitter interface {
	Submit(ctx context.Context, rec types.RegistrationRecord) storage.Result
}

// View is everything a client needs to render the form.
type View struct {
	ID        string                   `json:"id"`
	Phase     types.Phase              `json:"phase"`
	LastPhase bool                     `json:"lastPhase"`
	Fields    []types.Field            `json:"fields"`
	Record    types.RegistrationRecord `json:"record"`
	Errors    validation.Errors        `json:"errors"`
	State     submission.State         `json:"state"`
	Summary   *submission.Summary      `json:"summary,omitempty"`
	Submitted bool                     `json:"submitted"`
	Closed    bool                     `json:"closed"`
}

// Deps are the collaborators of a Service.
type Deps struct {
	Drafts    Drafts
	Submitter Submitter
	Gate      *deadline.Gate

	// Optional.
	Metrics       *metrics.Metrics
	Log           *slog.Logger
	Now           func() time.Time
	SessionTTL    time.Duration
	SubmitTimeout time.Duration
}

type session struct {
	mu      sync.Mutex
	machine *wizard.Machine
	flow    *submission.Flow
}

// Service is safe for concurrent use. Operations on one session are
// serialized by a per-session mutex.
type Service struct {
	sessions      *cache.Cache
	drafts        Drafts
	submitter     Submitter
	gate          *deadline.Gate
	metrics       *metrics.Metrics
	log           *slog.Logger
	now           func() time.Time
	submitTimeout time.Duration
}

// New returns a Service wired to deps.
func New(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if deps.SessionTTL <= 0 {
		deps.SessionTTL = 2 * time.Hour
	}
	if deps.SubmitTimeout <= 0 {
		deps.SubmitTimeout = 15 * time.Second
	}
	return &Service{
		sessions:      cache.New(deps.SessionTTL, deps.SessionTTL/2),
		drafts:        deps.Drafts,
		submitter:     deps.Submitter,
		gate:          deps.Gate,
		metrics:       deps.Metrics,
		log:           deps.Log,
		now:           deps.Now,
		submitTimeout: deps.SubmitTimeout,
	}
}

// Start opens a session. An empty id creates a new one; a known id
// returns the live session; an unknown id is restored from its draft
// (resume on reload).
func (s *Service) Start(ctx context.Context, id string) (View, error) {
	if s.gate.Closed() {
		return View{}, ErrClosed
	}

	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return View{}, ErrInvalidID
	}

	if sess, err := s.lookup(id); err == nil {
		return s.snapshot(id, sess), nil
	}

	rec, err := s.drafts.Load(ctx, id)
	if err != nil {
		s.metrics.IncrementDraftFailures("load")
		s.log.Warn("failed to load draft, starting empty",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}

	sess := &session{
		machine: wizard.New(rec, s.now),
		flow:    submission.NewFlow(),
	}
	if err := s.sessions.Add(id, sess, cache.DefaultExpiration); err != nil {
		// Lost a race with a concurrent Start for the same id.
		if existing, lerr := s.lookup(id); lerr == nil {
			sess = existing
		}
	} else {
		s.metrics.IncrementSessionsStarted()
		s.log.Info("registration session started", slog.String("id", id))
	}

	return s.snapshot(id, sess), nil
}

// Get returns the current view of session id. It works after the
// deadline so a client can show the closed state.
func (s *Service) Get(id string) (View, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}
	return s.snapshot(id, sess), nil
}

// Edit stores one field and mirrors the record into the draft store.
// A pending confirmation is dropped, since its summary no longer matches
// the record.
func (s *Service) Edit(ctx context.Context, id string, field types.Field, value string) (View, error) {
	if s.gate.Closed() {
		return View{}, ErrClosed
	}
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.flow.State() == submission.StateSubmitting {
		return s.view(id, sess), submission.ErrInFlight
	}

	rec, err := sess.machine.Edit(field, value)
	if err != nil {
		return s.view(id, sess), err
	}
	sess.flow.Cancel()

	if err := s.drafts.Save(ctx, id, rec); err != nil {
		s.metrics.IncrementDraftFailures("save")
		s.log.Warn("failed to save draft",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	return s.view(id, sess), nil
}

// Next validates the current phase and advances. When the phase does not
// pass, the returned error is the validation.Errors now on display.
func (s *Service) Next(ctx context.Context, id string) (View, error) {
	if s.gate.Closed() {
		return View{}, ErrClosed
	}
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.flow.State() == submission.StateSubmitting {
		return s.view(id, sess), submission.ErrInFlight
	}

	phase := sess.machine.Phase()
	ok, errs := sess.machine.Next()
	s.metrics.ObserveNext(phase, ok)
	if !ok {
		s.log.Debug("phase rejected",
			slog.String("id", id),
			slog.Int("phase", int(phase)),
			slog.Int("errors", len(errs)))
		return s.view(id, sess), errs
	}
	return s.view(id, sess), nil
}

// Previous goes back one phase. It never validates.
func (s *Service) Previous(ctx context.Context, id string) (View, error) {
	if s.gate.Closed() {
		return View{}, ErrClosed
	}
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.flow.State() == submission.StateSubmitting {
		return s.view(id, sess), submission.ErrInFlight
	}
	sess.flow.Cancel()
	sess.machine.Previous()
	return s.view(id, sess), nil
}

// Review is the submit action: the whole record is validated again and,
// when it passes, the confirmation summary is shown. When it fails the
// errors of every phase are put on display and returned as the error.
func (s *Service) Review(ctx context.Context, id string) (View, error) {
	if s.gate.Closed() {
		return View{}, ErrClosed
	}
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.machine.OnLastPhase() {
		return s.view(id, sess), ErrNotOnLastPhase
	}

	_, errs, err := sess.flow.Review(sess.machine.Record(), s.now())
	if err != nil {
		return s.view(id, sess), err
	}
	if len(errs) > 0 {
		sess.machine.ShowErrors(errs)
		return s.view(id, sess), errs
	}
	return s.view(id, sess), nil
}

// ReviewAgain closes the confirmation summary and returns to the form.
func (s *Service) ReviewAgain(ctx context.Context, id string) (View, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if err := sess.flow.ReviewAgain(); err != nil {
		return s.view(id, sess), err
	}
	return s.view(id, sess), nil
}

// Confirm sends the reviewed record to persistence exactly once.
//
// The session lock is released while the remote call runs, so a second
// Confirm for the same session gets submission.ErrInFlight instead of
// waiting. On success the draft is deleted and the form is reset; on
// failure the summary stays up for a manual retry.
func (s *Service) Confirm(ctx context.Context, id string) (View, storage.Result, error) {
	if s.gate.Closed() {
		return View{}, storage.Result{}, ErrClosed
	}
	sess, err := s.lookup(id)
	if err != nil {
		return View{}, storage.Result{}, err
	}

	sess.mu.Lock()
	if err := sess.flow.Begin(); err != nil {
		v := s.view(id, sess)
		sess.mu.Unlock()
		return v, storage.Result{}, err
	}
	rec := sess.machine.Record()
	sess.mu.Unlock()

	// The applicant closing the tab must not abort a half-sent application,
	// nor leave a draft behind for one that was stored.
	detached := context.WithoutCancel(ctx)
	callCtx, cancel := context.WithTimeout(detached, s.submitTimeout)
	res := s.submitter.Submit(callCtx, rec)
	cancel()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.flow.Finish(res.Success)
	s.metrics.ObserveSubmission(res.Success)
	if !res.Success {
		return s.view(id, sess), res, nil
	}

	s.log.Info("registration submitted",
		slog.String("id", id),
		slog.String("registration_id", res.ID))
	sess.machine.Reset()
	clearCtx, cancelClear := context.WithTimeout(detached, s.submitTimeout)
	defer cancelClear()
	if err := s.drafts.Clear(clearCtx, id); err != nil {
		s.metrics.IncrementDraftFailures("clear")
		s.log.Warn("failed to clear draft after submission",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}
	return s.view(id, sess), res, nil
}

func (s *Service) lookup(id string) (*session, error) {
	v, ok := s.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	// Sliding expiry.
	s.sessions.Set(id, v, cache.DefaultExpiration)
	return v.(*session), nil
}

func (s *Service) snapshot(id string, sess *session) View {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return s.view(id, sess)
}

// view must be called with sess.mu held.
func (s *Service) view(id string, sess *session) View {
	return View{
		ID:        id,
		Phase:     sess.machine.Phase(),
		LastPhase: sess.machine.OnLastPhase(),
		Fields:    sess.machine.VisibleFields(),
		Record:    sess.machine.Record(),
		Errors:    sess.machine.Errors(),
		State:     sess.flow.State(),
		Summary:   sess.flow.Summary(),
		Submitted: sess.flow.Submitted(),
		Closed:    s.gate.Closed(),
	}
}
