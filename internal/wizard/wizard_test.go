package wizard

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/aanand-mishra/registration-api/internal/testutil"
	"github.com/aanand-mishra/registration-api/internal/types"
)

type MachineSuite struct {
	suite.Suite
}

func TestMachineSuite(t *testing.T) {
	suite.Run(t, new(MachineSuite))
}

// fillPersonal types the phase-1 fields one by one like a user would.
func (s *MachineSuite) fillPersonal(m *Machine) {
	rec := testutil.PersonalRecord()
	for _, f := range types.PhaseFields(types.PhasePersonal) {
		raw, err := rec.Get(f)
		s.Require().NoError(err)
		_, err = m.Edit(f, raw)
		s.Require().NoError(err)
	}
}

func (s *MachineSuite) TestStartsOnFirstPhase() {
	m := New(types.RegistrationRecord{}, testutil.Clock())
	s.Equal(types.PhasePersonal, m.Phase())
	s.Empty(m.Errors())
	s.False(m.Previous())
	s.Equal(types.PhasePersonal, m.Phase())
}

func (s *MachineSuite) TestValidPersonalPhaseAdvances() {
	m := New(types.RegistrationRecord{}, testutil.Clock())
	s.fillPersonal(m)

	ok, errs := m.Next()
	s.True(ok)
	s.Nil(errs)
	s.Equal(types.PhaseMotivation, m.Phase())
	s.Equal(testutil.PersonalRecord(), m.Record())
}

func (s *MachineSuite) TestFailedNextShowsExactlyTheFailingFields() {
	m := New(testutil.PersonalRecord(), testutil.Clock())
	_, err := m.Edit(types.FieldEmail, "user@mailinator.com")
	s.Require().NoError(err)
	_, err = m.Edit(types.FieldGrade, "")
	s.Require().NoError(err)

	ok, errs := m.Next()
	s.False(ok)
	s.Equal([]types.Field{types.FieldEmail, types.FieldGrade}, errs.Fields())
	s.Equal(types.PhasePersonal, m.Phase())

	// fixing one field and retrying drops the stale message for it
	_, err = m.Edit(types.FieldGrade, "12")
	s.Require().NoError(err)
	ok, errs = m.Next()
	s.False(ok)
	s.Equal([]types.Field{types.FieldEmail}, errs.Fields())
	s.Equal([]types.Field{types.FieldEmail}, m.Errors().Fields())
}

func (s *MachineSuite) TestExperienceRequiredWhenToolsUsed() {
	rec := testutil.ValidRecord()
	rec.UsedAITools = ""
	rec.AIExperience = ""
	m := New(rec, testutil.Clock())
	for m.Phase() < types.PhaseBackground {
		ok, _ := m.Next()
		s.Require().True(ok)
	}

	_, err := m.Edit(types.FieldUsedAITools, "yes")
	s.Require().NoError(err)
	s.Equal([]types.Field{types.FieldUsedAITools, types.FieldAIExperience}, m.VisibleFields())

	ok, errs := m.Next()
	s.False(ok)
	s.Equal([]types.Field{types.FieldAIExperience}, errs.Fields())
	s.Equal(types.PhaseBackground, m.Phase())

	// answering "no" hides the field and clears its error
	_, err = m.Edit(types.FieldUsedAITools, "no")
	s.Require().NoError(err)
	s.Empty(m.Errors())
	s.Equal([]types.Field{types.FieldUsedAITools}, m.VisibleFields())

	ok, _ = m.Next()
	s.True(ok)
	s.Equal(types.PhaseCommitment, m.Phase())
}

func (s *MachineSuite) TestNextNeverPassesLastPhase() {
	m := New(testutil.ValidRecord(), testutil.Clock())
	for i := 0; i < 10; i++ {
		ok, _ := m.Next()
		s.True(ok)
	}
	s.Equal(types.LastPhase, m.Phase())
	s.True(m.OnLastPhase())
}

func (s *MachineSuite) TestNextAdvancesOnlyOnceWithoutNewData() {
	m := New(testutil.PersonalRecord(), testutil.Clock())

	ok, _ := m.Next()
	s.True(ok)
	ok, _ = m.Next()
	s.False(ok)
	ok, _ = m.Next()
	s.False(ok)
	s.Equal(types.PhaseMotivation, m.Phase())
}

func (s *MachineSuite) TestEditOnlyClearsErrors() {
	m := New(types.RegistrationRecord{}, testutil.Clock())
	ok, _ := m.Next()
	s.Require().False(ok)
	s.Require().True(m.Errors().Has(types.FieldFullName))

	// still invalid: error stays
	_, err := m.Edit(types.FieldFullName, "Sara")
	s.Require().NoError(err)
	s.True(m.Errors().Has(types.FieldFullName))

	// now valid: error cleared, the others untouched
	_, err = m.Edit(types.FieldFullName, "Sara Ahmed")
	s.Require().NoError(err)
	s.False(m.Errors().Has(types.FieldFullName))
	s.True(m.Errors().Has(types.FieldEmail))
}

func (s *MachineSuite) TestEditNeverAddsErrors() {
	m := New(testutil.PersonalRecord(), testutil.Clock())
	_, err := m.Edit(types.FieldEmail, "not-an-email")
	s.Require().NoError(err)
	s.Empty(m.Errors())

	_, err = m.Edit(types.FieldFullName, "")
	s.Require().NoError(err)
	s.Empty(m.Errors())
}

func (s *MachineSuite) TestPreviousKeepsErrors() {
	rec := testutil.PersonalRecord()
	m := New(rec, testutil.Clock())
	ok, _ := m.Next()
	s.Require().True(ok)
	ok, _ = m.Next()
	s.Require().False(ok)
	shown := m.Errors()
	s.Require().NotEmpty(shown)

	s.True(m.Previous())
	s.Equal(types.PhasePersonal, m.Phase())
	s.Equal(shown, m.Errors())
}

func (s *MachineSuite) TestCountryChangeReanchorsPhone() {
	m := New(testutil.PersonalRecord(), testutil.Clock())

	rec, err := m.Edit(types.FieldCountry, "Saudi Arabia")
	s.Require().NoError(err)
	s.Equal(types.Country("Saudi Arabia"), rec.Country)
	s.Equal("+966 1001234567", rec.Phone)

	m = New(types.RegistrationRecord{}, testutil.Clock())
	rec, err = m.Edit(types.FieldCountry, "Jordan")
	s.Require().NoError(err)
	s.Equal("+962 ", rec.Phone)
}

func (s *MachineSuite) TestCountryChangeClearsPhoneError() {
	rec := testutil.PersonalRecord()
	rec.Phone = ""
	rec.Country = ""
	m := New(rec, testutil.Clock())
	ok, _ := m.Next()
	s.Require().False(ok)
	s.Require().True(m.Errors().Has(types.FieldPhone))

	_, err := m.Edit(types.FieldPhone, "+20 1001234567")
	s.Require().NoError(err)
	s.False(m.Errors().Has(types.FieldPhone))

	_, err = m.Edit(types.FieldCountry, "Egypt")
	s.Require().NoError(err)
	s.Empty(m.Errors())
}

func (s *MachineSuite) TestEditRejectsBadInput() {
	m := New(testutil.PersonalRecord(), testutil.Clock())

	_, err := m.Edit(types.FieldDateOfBirth, "10/01/2008")
	s.Error(err)
	_, err = m.Edit("nickname", "Sasa")
	s.Error(err)
	s.Equal(testutil.PersonalRecord(), m.Record())
}

func (s *MachineSuite) TestResetAndShowErrors() {
	m := New(testutil.ValidRecord(), testutil.Clock())
	m.Next()
	m.ShowErrors(map[types.Field]string{types.FieldEmail: "taken"})
	s.True(m.Errors().Has(types.FieldEmail))

	m.Reset()
	s.Equal(types.PhasePersonal, m.Phase())
	s.Equal(types.RegistrationRecord{}, m.Record())
	s.Empty(m.Errors())
}
