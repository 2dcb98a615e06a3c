// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// the validators, the wizard, the draft store and the storage adapters
// can all import types without depending on each other.
package types

// Phase is one screen of the four-step registration wizard.
// Phases are linear: no branching and no skipping.
type Phase int

const (
	PhasePersonal   Phase = 1 // identity, geography, academic
	PhaseMotivation Phase = 2 // the two essays
	PhaseBackground Phase = 3 // prior AI tool use and experience
	PhaseCommitment Phase = 4 // logistics and consent

	FirstPhase = PhasePersonal
	LastPhase  = PhaseCommitment
)

// Valid reports whether p is one of the four wizard phases.
func (p Phase) Valid() bool {
	return p >= FirstPhase && p <= LastPhase
}

// Field names a single RegistrationRecord field. The string value is the
// JSON key used on the wire and in the draft store, so it must stay stable.
type Field string

const (
	FieldFullName              Field = "fullName"
	FieldDateOfBirth           Field = "dateOfBirth"
	FieldEmail                 Field = "email"
	FieldPhone                 Field = "phone"
	FieldCity                  Field = "city"
	FieldCountry               Field = "country"
	FieldCurrentSchool         Field = "currentSchool"
	FieldGrade                 Field = "grade"
	FieldMotivation            Field = "motivation"
	FieldProblemSolving        Field = "problemSolving"
	FieldUsedAITools           Field = "usedAITools"
	FieldAIExperience          Field = "aiExperience"
	FieldReliableInternet      Field = "reliableInternet"
	FieldProgramCommitment     Field = "programCommitment"
	FieldAdditionalInformation Field = "additionalInformation"
	FieldAcceptProgramEmails   Field = "acceptProgramEmails"
	FieldSubscribeNewsletter   Field = "subscribeNewsletter"
)

// phaseFields lists the fields owned by each phase in display order.
var phaseFields = map[Phase][]Field{
	PhasePersonal: {
		FieldFullName, FieldDateOfBirth, FieldEmail, FieldPhone,
		FieldCity, FieldCountry, FieldCurrentSchool, FieldGrade,
	},
	PhaseMotivation: {
		FieldMotivation, FieldProblemSolving,
	},
	PhaseBackground: {
		FieldUsedAITools, FieldAIExperience,
	},
	PhaseCommitment: {
		FieldReliableInternet, FieldProgramCommitment, FieldAdditionalInformation,
		FieldAcceptProgramEmails, FieldSubscribeNewsletter,
	},
}

// PhaseFields returns the fields owned by phase p. The returned slice is a
// copy; callers may modify it freely.
func PhaseFields(p Phase) []Field {
	fields := phaseFields[p]
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// PhaseOf returns the phase that owns field f, or 0 for an unknown field.
func PhaseOf(f Field) Phase {
	for p, fields := range phaseFields {
		for _, candidate := range fields {
			if candidate == f {
				return p
			}
		}
	}
	return 0
}

// AllFields returns every field in phase order.
func AllFields() []Field {
	var out []Field
	for p := FirstPhase; p <= LastPhase; p++ {
		out = append(out, phaseFields[p]...)
	}
	return out
}

// Dependents returns the fields whose visibility is keyed on f.
// Only the experience description is conditional today.
func Dependents(f Field) []Field {
	if f == FieldUsedAITools {
		return []Field{FieldAIExperience}
	}
	return nil
}

// YesNo is the answer to a yes/no select.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

// Grade is the applicant's current grade or level.
type Grade string

const (
	Grade9        Grade = "9"
	Grade10       Grade = "10"
	Grade11       Grade = "11"
	Grade12       Grade = "12"
	Undergraduate Grade = "undergraduate"
)

// Grades lists every accepted grade label.
var Grades = []Grade{Grade9, Grade10, Grade11, Grade12, Undergraduate}

// InternetReliability describes access to a connection good enough for
// the online sessions.
type InternetReliability string

const (
	InternetReliable   InternetReliability = "reliable"
	InternetSometimes  InternetReliability = "sometimes"
	InternetUnreliable InternetReliability = "unreliable"
)

// Commitment is how much of the program the applicant can attend.
type Commitment string

const (
	CommitmentFull   Commitment = "full"
	CommitmentMost   Commitment = "most"
	CommitmentUnsure Commitment = "unsure"
)
