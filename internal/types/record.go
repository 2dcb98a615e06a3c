package types

import (
	"fmt"
	"strconv"
)

// RegistrationRecord is the single aggregate built up across all phases
// of the application form.
//
// Every field has an explicit type (Date, enums, bool) instead of one bag
// of strings, so a record that compiles is at least well-shaped. Whether
// it is *valid* is the validation package's job.
//
// The json tags are the field names clients send and the draft store
// persists; they must match the Field constants.
type RegistrationRecord struct {
	// Phase 1: personal information
	FullName      string  `json:"fullName"`
	DateOfBirth   Date    `json:"dateOfBirth"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone"`
	City          string  `json:"city"`
	Country       Country `json:"country"`
	CurrentSchool string  `json:"currentSchool"`
	Grade         Grade   `json:"grade"`

	// Phase 2: motivation and goals
	Motivation     string `json:"motivation"`
	ProblemSolving string `json:"problemSolving"`

	// Phase 3: background
	UsedAITools  YesNo  `json:"usedAITools"`
	AIExperience string `json:"aiExperience"`

	// Phase 4: accessibility, commitment and consent
	ReliableInternet      InternetReliability `json:"reliableInternet"`
	ProgramCommitment     Commitment          `json:"programCommitment"`
	AdditionalInformation string              `json:"additionalInformation"`
	AcceptProgramEmails   bool                `json:"acceptProgramEmails"`
	SubscribeNewsletter   bool                `json:"subscribeNewsletter"`
}

// UnknownFieldError is returned by Set for a field name that does not
// exist on RegistrationRecord.
type UnknownFieldError struct {
	Field Field
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", string(e.Field))
}

// Set parses raw according to the type of field and stores it.
// Enumerations are stored as given (membership is checked by the
// validators, not here), dates must be empty or YYYY-MM-DD and booleans
// must be accepted by strconv.ParseBool (an empty string means false).
func (r *RegistrationRecord) Set(field Field, raw string) error {
	switch field {
	case FieldFullName:
		r.FullName = raw
	case FieldDateOfBirth:
		d, err := ParseDate(raw)
		if err != nil {
			return err
		}
		r.DateOfBirth = d
	case FieldEmail:
		r.Email = raw
	case FieldPhone:
		r.Phone = raw
	case FieldCity:
		r.City = raw
	case FieldCountry:
		r.Country = Country(raw)
	case FieldCurrentSchool:
		r.CurrentSchool = raw
	case FieldGrade:
		r.Grade = Grade(raw)
	case FieldMotivation:
		r.Motivation = raw
	case FieldProblemSolving:
		r.ProblemSolving = raw
	case FieldUsedAITools:
		r.UsedAITools = YesNo(raw)
	case FieldAIExperience:
		r.AIExperience = raw
	case FieldReliableInternet:
		r.ReliableInternet = InternetReliability(raw)
	case FieldProgramCommitment:
		r.ProgramCommitment = Commitment(raw)
	case FieldAdditionalInformation:
		r.AdditionalInformation = raw
	case FieldAcceptProgramEmails:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		r.AcceptProgramEmails = b
	case FieldSubscribeNewsletter:
		b, err := parseBool(raw)
		if err != nil {
			return err
		}
		r.SubscribeNewsletter = b
	default:
		return &UnknownFieldError{Field: field}
	}
	return nil
}

// Get returns the value of field formatted the way Set accepts it.
func (r RegistrationRecord) Get(field Field) (string, error) {
	switch field {
	case FieldFullName:
		return r.FullName, nil
	case FieldDateOfBirth:
		return r.DateOfBirth.String(), nil
	case FieldEmail:
		return r.Email, nil
	case FieldPhone:
		return r.Phone, nil
	case FieldCity:
		return r.City, nil
	case FieldCountry:
		return string(r.Country), nil
	case FieldCurrentSchool:
		return r.CurrentSchool, nil
	case FieldGrade:
		return string(r.Grade), nil
	case FieldMotivation:
		return r.Motivation, nil
	case FieldProblemSolving:
		return r.ProblemSolving, nil
	case FieldUsedAITools:
		return string(r.UsedAITools), nil
	case FieldAIExperience:
		return r.AIExperience, nil
	case FieldReliableInternet:
		return string(r.ReliableInternet), nil
	case FieldProgramCommitment:
		return string(r.ProgramCommitment), nil
	case FieldAdditionalInformation:
		return r.AdditionalInformation, nil
	case FieldAcceptProgramEmails:
		return strconv.FormatBool(r.AcceptProgramEmails), nil
	case FieldSubscribeNewsletter:
		return strconv.FormatBool(r.SubscribeNewsletter), nil
	}
	return "", &UnknownFieldError{Field: field}
}

// Visible reports whether field is shown (and therefore validated) for
// the current record. The experience description only appears after the
// applicant says they have used AI tools before.
func (r RegistrationRecord) Visible(field Field) bool {
	if field == FieldAIExperience {
		return r.UsedAITools == Yes
	}
	return true
}

// VisibleFields returns the fields of phase p that are visible for r.
func (r RegistrationRecord) VisibleFields(p Phase) []Field {
	var out []Field
	for _, f := range phaseFields[p] {
		if r.Visible(f) {
			out = append(out, f)
		}
	}
	return out
}

func parseBool(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
	return b, nil
}
