package validation

import (
	"time"

	"github.com/aanand-mishra/registration-api/internal/types"
)

// Field validates one field of rec. Hidden fields and the unconstrained
// fields (notes, newsletter) always pass.
func Field(rec types.RegistrationRecord, field types.Field, now time.Time) error {
	if !rec.Visible(field) {
		return nil
	}

	switch field {
	case types.FieldFullName:
		return FullName(rec.FullName)
	case types.FieldDateOfBirth:
		return DateOfBirth(rec.DateOfBirth, now)
	case types.FieldEmail:
		return Email(rec.Email)
	case types.FieldPhone:
		return Phone(rec.Phone)
	case types.FieldCity:
		return City(rec.City)
	case types.FieldCountry:
		return Country(rec.Country)
	case types.FieldCurrentSchool:
		return School(rec.CurrentSchool)
	case types.FieldGrade:
		return Grade(rec.Grade)
	case types.FieldMotivation:
		return Essay(rec.Motivation)
	case types.FieldProblemSolving:
		return Essay(rec.ProblemSolving)
	case types.FieldUsedAITools:
		return UsedAITools(rec.UsedAITools)
	case types.FieldAIExperience:
		return AIExperience(rec.AIExperience, rec.UsedAITools)
	case types.FieldReliableInternet:
		return ReliableInternet(rec.ReliableInternet)
	case types.FieldProgramCommitment:
		return ProgramCommitment(rec.ProgramCommitment)
	case types.FieldAcceptProgramEmails:
		return AcceptProgramEmails(rec.AcceptProgramEmails)
	}
	return nil
}

// Phase validates every visible field owned by phase p. The result is
// empty (never nil) when the phase is valid.
func Phase(rec types.RegistrationRecord, p types.Phase, now time.Time) Errors {
	errs := Errors{}
	for _, f := range rec.VisibleFields(p) {
		if err := Field(rec, f, now); err != nil {
			errs[f] = err.Error()
		}
	}
	return errs
}

// Record validates all phases at once, independent of which phase the
// applicant is on. A record is submittable only when this is empty.
func Record(rec types.RegistrationRecord, now time.Time) Errors {
	errs := Errors{}
	for p := types.FirstPhase; p <= types.LastPhase; p++ {
		for f, msg := range Phase(rec, p, now) {
			errs[f] = msg
		}
	}
	return errs
}
