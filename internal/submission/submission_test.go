package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aanand-mishra/registration-api/internal/testutil"
	"github.com/aanand-mishra/registration-api/internal/types"
)

func TestReview_ValidRecordAwaitsConfirmation(t *testing.T) {
	f := NewFlow()
	summary, errs, err := f.Review(testutil.ValidRecord(), testutil.Now)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.NotNil(t, summary)
	assert.Equal(t, "Sara Ahmed", summary.FullName)
	assert.Equal(t, types.Country("Egypt"), summary.Country)
	assert.Equal(t, StateAwaiting, f.State())
	assert.Equal(t, summary, f.Summary())
}

func TestReview_InvalidRecordStaysEditing(t *testing.T) {
	rec := testutil.ValidRecord()
	rec.AcceptProgramEmails = false
	rec.Motivation = testutil.Words(10)

	f := NewFlow()
	summary, errs, err := f.Review(rec, testutil.Now)
	require.NoError(t, err)
	assert.Nil(t, summary)
	assert.Equal(t, []types.Field{types.FieldMotivation, types.FieldAcceptProgramEmails}, errs.Fields())
	assert.Equal(t, StateEditing, f.State())
	assert.Nil(t, f.Summary())
}

func TestReviewAgain_ReturnsToForm(t *testing.T) {
	f := NewFlow()
	_, _, err := f.Review(testutil.ValidRecord(), testutil.Now)
	require.NoError(t, err)

	require.NoError(t, f.ReviewAgain())
	assert.Equal(t, StateEditing, f.State())
	assert.ErrorIs(t, f.Begin(), ErrNotAwaiting)
}

func TestBegin_PreventsDoubleSubmit(t *testing.T) {
	f := NewFlow()
	_, _, err := f.Review(testutil.ValidRecord(), testutil.Now)
	require.NoError(t, err)

	require.NoError(t, f.Begin())
	assert.Equal(t, StateSubmitting, f.State())
	assert.ErrorIs(t, f.Begin(), ErrInFlight)
	assert.ErrorIs(t, f.ReviewAgain(), ErrInFlight)
	_, _, err = f.Review(testutil.ValidRecord(), testutil.Now)
	assert.ErrorIs(t, err, ErrInFlight)

	// edits cannot cancel an in-flight submission
	f.Cancel()
	assert.Equal(t, StateSubmitting, f.State())
}

func TestFinish(t *testing.T) {
	f := NewFlow()
	_, _, err := f.Review(testutil.ValidRecord(), testutil.Now)
	require.NoError(t, err)
	require.NoError(t, f.Begin())

	f.Finish(false)
	assert.Equal(t, StateAwaiting, f.State(), "failure keeps the application ready for a manual retry")
	assert.False(t, f.Submitted())
	assert.NotNil(t, f.Summary())

	require.NoError(t, f.Begin())
	f.Finish(true)
	assert.Equal(t, StateEditing, f.State())
	assert.True(t, f.Submitted())
	assert.Nil(t, f.Summary())
}

func TestCancel_DropsPendingConfirmation(t *testing.T) {
	f := NewFlow()
	_, _, err := f.Review(testutil.ValidRecord(), testutil.Now)
	require.NoError(t, err)

	f.Cancel()
	assert.Equal(t, StateEditing, f.State())
	assert.ErrorIs(t, f.Begin(), ErrNotAwaiting)
}
