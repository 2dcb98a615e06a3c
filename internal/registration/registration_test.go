package registration

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/aanand-mishra/registration-api/internal/deadline"
	"github.com/aanand-mishra/registration-api/internal/draft"
	"github.com/aanand-mishra/registration-api/internal/metrics"
	"github.com/aanand-mishra/registration-api/internal/storage"
	"github.com/aanand-mishra/registration-api/internal/storage/sqlite"
	"github.com/aanand-mishra/registration-api/internal/submission"
	"github.com/aanand-mishra/registration-api/internal/testutil"
	"github.com/aanand-mishra/registration-api/internal/types"
	"github.com/aanand-mishra/registration-api/internal/validation"
)

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	records []types.RegistrationRecord
	result  storage.Result
	block   chan struct{}
	entered chan struct{}
	// onSubmit runs before the result is returned.
	onSubmit func()
}

func (f *fakeSubmitter) Submit(_ context.Context, rec types.RegistrationRecord) storage.Result {
	f.mu.Lock()
	f.calls++
	f.records = append(f.records, rec)
	res := f.result
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return res
}

func (f *fakeSubmitter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type ServiceSuite struct {
	suite.Suite

	ctx       context.Context
	drafts    *draft.Store
	submitter *fakeSubmitter
	metrics   *metrics.Metrics
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func openGate() *deadline.Gate {
	return deadline.New(testutil.Now.Add(24*time.Hour), testutil.Clock(), nil)
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.drafts = draft.New(draft.NewMemory(), nil)
	s.submitter = &fakeSubmitter{result: storage.Succeeded("7")}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.svc = s.newService(openGate())
}

func (s *ServiceSuite) newService(gate *deadline.Gate) *Service {
	return New(Deps{
		Drafts:    s.drafts,
		Submitter: s.submitter,
		Gate:      gate,
		Metrics:   s.metrics,
		Now:       testutil.Clock(),
	})
}

// fill types every field of rec belonging to phase p.
func (s *ServiceSuite) fill(id string, rec types.RegistrationRecord, p types.Phase) {
	for _, f := range types.PhaseFields(p) {
		raw, err := rec.Get(f)
		s.Require().NoError(err)
		_, err = s.svc.Edit(s.ctx, id, f, raw)
		s.Require().NoError(err)
	}
}

// reachLastPhase fills and passes every phase before the last one, then
// fills the last one.
func (s *ServiceSuite) reachLastPhase(id string) {
	rec := testutil.ValidRecord()
	for p := types.FirstPhase; p < types.LastPhase; p++ {
		s.fill(id, rec, p)
		_, err := s.svc.Next(s.ctx, id)
		s.Require().NoError(err)
	}
	s.fill(id, rec, types.LastPhase)
}

func (s *ServiceSuite) start() string {
	v, err := s.svc.Start(s.ctx, "")
	s.Require().NoError(err)
	return v.ID
}

func (s *ServiceSuite) TestStartCreatesFreshSession() {
	v, err := s.svc.Start(s.ctx, "")
	s.Require().NoError(err)

	_, err = uuid.Parse(v.ID)
	s.NoError(err)
	s.Equal(types.PhasePersonal, v.Phase)
	s.Equal(types.RegistrationRecord{}, v.Record)
	s.Equal(submission.StateEditing, v.State)
	s.False(v.Closed)
	s.Equal(1.0, promtest.ToFloat64(s.metrics.SessionsStarted))
}

func (s *ServiceSuite) TestStartRejectsMalformedID() {
	_, err := s.svc.Start(s.ctx, "../../etc/passwd")
	s.ErrorIs(err, ErrInvalidID)
}

func (s *ServiceSuite) TestUnknownSession() {
	_, err := s.svc.Get(uuid.NewString())
	s.ErrorIs(err, ErrNotFound)

	_, err = s.svc.Edit(s.ctx, uuid.NewString(), types.FieldCity, "Cairo")
	s.ErrorIs(err, ErrNotFound)
}

func (s *ServiceSuite) TestValidPersonalPhaseAdvances() {
	id := s.start()
	s.fill(id, testutil.PersonalRecord(), types.PhasePersonal)

	v, err := s.svc.Next(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(types.PhaseMotivation, v.Phase)
	s.Empty(v.Errors)
}

func (s *ServiceSuite) TestFailedNextReturnsDisplayedErrors() {
	id := s.start()

	v, err := s.svc.Next(s.ctx, id)
	var errs validation.Errors
	s.Require().True(errors.As(err, &errs))
	s.Len(errs, len(types.PhaseFields(types.PhasePersonal)))
	s.Equal(errs, v.Errors)
	s.Equal(types.PhasePersonal, v.Phase)

	// Fixing one field clears only that field's message.
	v, err = s.svc.Edit(s.ctx, id, types.FieldFullName, "Sara Ahmed")
	s.Require().NoError(err)
	s.False(v.Errors.Has(types.FieldFullName))
	s.True(v.Errors.Has(types.FieldEmail))
}

func (s *ServiceSuite) TestEditParseErrorLeavesRecord() {
	id := s.start()
	_, err := s.svc.Edit(s.ctx, id, types.FieldDateOfBirth, "10/01/2008")
	s.Error(err)

	_, err = s.svc.Edit(s.ctx, id, types.Field("nickname"), "x")
	var unknown *types.UnknownFieldError
	s.ErrorAs(err, &unknown)

	v, err := s.svc.Get(id)
	s.Require().NoError(err)
	s.Equal(types.RegistrationRecord{}, v.Record)
}

func (s *ServiceSuite) TestEditsAreMirroredAndResumed() {
	id := s.start()
	s.fill(id, testutil.PersonalRecord(), types.PhasePersonal)

	// A new process sharing the draft store resumes the same record.
	other := s.newService(openGate())
	v, err := other.Start(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(id, v.ID)
	s.Equal(testutil.PersonalRecord(), v.Record)
	s.Equal(types.PhasePersonal, v.Phase)
}

func (s *ServiceSuite) TestStartWithLiveSessionKeepsPhase() {
	id := s.start()
	s.fill(id, testutil.PersonalRecord(), types.PhasePersonal)
	_, err := s.svc.Next(s.ctx, id)
	s.Require().NoError(err)

	v, err := s.svc.Start(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(types.PhaseMotivation, v.Phase)
}

func (s *ServiceSuite) TestReviewRequiresLastPhase() {
	id := s.start()
	_, err := s.svc.Review(s.ctx, id)
	s.ErrorIs(err, ErrNotOnLastPhase)
}

func (s *ServiceSuite) TestReviewShowsErrorsFromEveryPhase() {
	id := s.start()
	s.reachLastPhase(id)

	// Break an earlier phase after it was passed.
	_, err := s.svc.Edit(s.ctx, id, types.FieldEmail, "x@tempmail.com")
	s.Require().NoError(err)

	v, err := s.svc.Review(s.ctx, id)
	var errs validation.Errors
	s.Require().True(errors.As(err, &errs))
	s.Equal([]types.Field{types.FieldEmail}, errs.Fields())
	s.True(v.Errors.Has(types.FieldEmail))
	s.Equal(submission.StateEditing, v.State)
	s.Equal(types.PhaseCommitment, v.Phase)
}

func (s *ServiceSuite) TestConfirmSuccess() {
	id := s.start()
	s.reachLastPhase(id)

	v, err := s.svc.Review(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(submission.StateAwaiting, v.State)
	s.Require().NotNil(v.Summary)
	s.Equal("Sara Ahmed", v.Summary.FullName)

	v, res, err := s.svc.Confirm(s.ctx, id)
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal("7", res.ID)
	s.Equal(1, s.submitter.Calls())
	s.Equal(testutil.ValidRecord(), s.submitter.records[0])

	s.True(v.Submitted)
	s.Equal(submission.StateEditing, v.State)
	s.Equal(types.PhasePersonal, v.Phase)
	s.Equal(types.RegistrationRecord{}, v.Record)

	rec, err := s.drafts.Load(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(types.RegistrationRecord{}, rec, "draft is deleted after success")
	s.Equal(1.0, promtest.ToFloat64(s.metrics.Submissions.WithLabelValues(metrics.OutcomeSuccess)))
}

func (s *ServiceSuite) TestConfirmFailureKeepsDraftForRetry() {
	s.submitter.result = storage.Failed("this email address has already been registered", nil)
	id := s.start()
	s.reachLastPhase(id)
	_, err := s.svc.Review(s.ctx, id)
	s.Require().NoError(err)

	v, res, err := s.svc.Confirm(s.ctx, id)
	s.Require().NoError(err)
	s.False(res.Success)
	s.Equal("this email address has already been registered", res.Error.Message)
	s.Equal(submission.StateAwaiting, v.State)
	s.Equal(testutil.ValidRecord(), v.Record)

	rec, err := s.drafts.Load(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(testutil.ValidRecord(), rec)

	// Manual retry.
	s.submitter.result = storage.Succeeded("8")
	_, res, err = s.svc.Confirm(s.ctx, id)
	s.Require().NoError(err)
	s.True(res.Success)
	s.Equal(2, s.submitter.Calls())
}

func (s *ServiceSuite) TestConfirmWithoutReview() {
	id := s.start()
	_, _, err := s.svc.Confirm(s.ctx, id)
	s.ErrorIs(err, submission.ErrNotAwaiting)
	s.Zero(s.submitter.Calls())
}

func (s *ServiceSuite) TestDoubleConfirmSendsOnce() {
	s.submitter.block = make(chan struct{})
	s.submitter.entered = make(chan struct{}, 1)
	id := s.start()
	s.reachLastPhase(id)
	_, err := s.svc.Review(s.ctx, id)
	s.Require().NoError(err)

	done := make(chan storage.Result, 1)
	go func() {
		_, res, _ := s.svc.Confirm(s.ctx, id)
		done <- res
	}()
	<-s.submitter.entered

	v, _, err := s.svc.Confirm(s.ctx, id)
	s.ErrorIs(err, submission.ErrInFlight)
	s.Equal(submission.StateSubmitting, v.State)

	_, err = s.svc.Edit(s.ctx, id, types.FieldCity, "Giza")
	s.ErrorIs(err, submission.ErrInFlight)

	close(s.submitter.block)
	res := <-done
	s.True(res.Success)
	s.Equal(1, s.submitter.Calls())
}

func (s *ServiceSuite) TestEditCancelsPendingConfirmation() {
	id := s.start()
	s.reachLastPhase(id)
	_, err := s.svc.Review(s.ctx, id)
	s.Require().NoError(err)

	v, err := s.svc.Edit(s.ctx, id, types.FieldAdditionalInformation, "Changed my mind.")
	s.Require().NoError(err)
	s.Equal(submission.StateEditing, v.State)
	s.Nil(v.Summary)

	_, _, err = s.svc.Confirm(s.ctx, id)
	s.ErrorIs(err, submission.ErrNotAwaiting)
}

func (s *ServiceSuite) TestReviewAgain() {
	id := s.start()
	s.reachLastPhase(id)
	_, err := s.svc.Review(s.ctx, id)
	s.Require().NoError(err)

	v, err := s.svc.ReviewAgain(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(submission.StateEditing, v.State)
	s.Equal(testutil.ValidRecord(), v.Record)
	s.Zero(s.submitter.Calls())
}

func (s *ServiceSuite) TestPreviousKeepsRecord() {
	id := s.start()
	s.fill(id, testutil.PersonalRecord(), types.PhasePersonal)
	_, err := s.svc.Next(s.ctx, id)
	s.Require().NoError(err)

	v, err := s.svc.Previous(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(types.PhasePersonal, v.Phase)
	s.Equal(testutil.PersonalRecord(), v.Record)
}

func (s *ServiceSuite) TestClosedAtLoad() {
	closed := deadline.New(testutil.Now.Add(-time.Second), testutil.Clock(), nil)
	svc := s.newService(closed)

	_, err := svc.Start(s.ctx, "")
	s.ErrorIs(err, ErrClosed)
	_, err = svc.Edit(s.ctx, uuid.NewString(), types.FieldCity, "Cairo")
	s.ErrorIs(err, ErrClosed)
	_, _, err = svc.Confirm(s.ctx, uuid.NewString())
	s.ErrorIs(err, ErrClosed)
	s.Zero(s.submitter.Calls())
}

func (s *ServiceSuite) TestDraftLoadFailureStartsEmpty() {
	svc := New(Deps{
		Drafts:    draft.New(brokenBackend{}, nil),
		Submitter: s.submitter,
		Gate:      openGate(),
		Metrics:   s.metrics,
		Now:       testutil.Clock(),
	})

	v, err := svc.Start(s.ctx, uuid.NewString())
	s.Require().NoError(err)
	s.Equal(types.RegistrationRecord{}, v.Record)

	_, err = svc.Edit(s.ctx, v.ID, types.FieldCity, "Cairo")
	s.Require().NoError(err, "a failing draft store never blocks the form")
	s.Equal(1.0, promtest.ToFloat64(s.metrics.DraftFailures.WithLabelValues("load")))
	s.Equal(1.0, promtest.ToFloat64(s.metrics.DraftFailures.WithLabelValues("save")))
}

type brokenBackend struct{}

func (brokenBackend) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (brokenBackend) Put(context.Context, string, string) error { return errors.New("disk on fire") }
func (brokenBackend) Delete(context.Context, string) error      { return errors.New("disk on fire") }

// TestEndToEndWithSQLite runs a whole application through the real
// adapter and the local submit_registration implementation.
func TestEndToEndWithSQLite(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "registration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	svc := New(Deps{
		Drafts:    draft.New(db, nil),
		Submitter: storage.NewAdapter(db, nil),
		Gate:      openGate(),
		Now:       testutil.Clock(),
	})

	submit := func() storage.Result {
		v, err := svc.Start(ctx, "")
		require.NoError(t, err)
		rec := testutil.ValidRecord()
		for p := types.FirstPhase; p <= types.LastPhase; p++ {
			for _, f := range types.PhaseFields(p) {
				raw, err := rec.Get(f)
				require.NoError(t, err)
				_, err = svc.Edit(ctx, v.ID, f, raw)
				require.NoError(t, err)
			}
			if p < types.LastPhase {
				_, err = svc.Next(ctx, v.ID)
				require.NoError(t, err)
			}
		}
		_, err = svc.Review(ctx, v.ID)
		require.NoError(t, err)
		_, res, err := svc.Confirm(ctx, v.ID)
		require.NoError(t, err)
		return res
	}

	first := submit()
	require.True(t, first.Success)
	require.NotEmpty(t, first.ID)

	var n int
	require.NoError(t, db.Db.QueryRowContext(ctx, "SELECT COUNT(1) FROM registrations").Scan(&n))
	require.Equal(t, 1, n)

	second := submit()
	require.False(t, second.Success)
	require.Contains(t, second.Error.Message, "already been registered")
}

// TestConfirmClearsDraftAfterClientLeaves drops the request while the
// submission is in flight; the stored application must not leave a
// resumable draft behind.
func TestConfirmClearsDraftAfterClientLeaves(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "registration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	drafts := draft.New(db, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := New(Deps{
		Drafts:    drafts,
		Submitter: &fakeSubmitter{result: storage.Succeeded("1"), onSubmit: cancel},
		Gate:      openGate(),
		Now:       testutil.Clock(),
	})

	v, err := svc.Start(ctx, "")
	require.NoError(t, err)
	rec := testutil.ValidRecord()
	for p := types.FirstPhase; p <= types.LastPhase; p++ {
		for _, f := range types.PhaseFields(p) {
			raw, err := rec.Get(f)
			require.NoError(t, err)
			_, err = svc.Edit(ctx, v.ID, f, raw)
			require.NoError(t, err)
		}
		if p < types.LastPhase {
			_, err = svc.Next(ctx, v.ID)
			require.NoError(t, err)
		}
	}
	_, err = svc.Review(ctx, v.ID)
	require.NoError(t, err)

	_, res, err := svc.Confirm(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Error(t, ctx.Err(), "the request context is gone")

	_, found, err := db.Get(context.Background(), draft.Key(v.ID))
	require.NoError(t, err)
	require.False(t, found, "draft is deleted after success")
}
