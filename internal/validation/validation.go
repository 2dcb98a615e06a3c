// Package validation contains the field validators of the registration
// form. Every validator is a pure function: it looks at one value (and,
// for a few cross-field rules, the rest of the record) and returns nil
// when the value is acceptable or an error whose message is safe to show
// next to the field.
//
// Structural rules (required, e-mail shape, enumerations, mandatory
// consent) go through go-playground/validator's Var API; the rules that
// validator has no tag for (token counts, age, blocklist) are plain Go.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/registration-api/internal/types"
)

const (
	MinAge = 12
	MaxAge = 25

	EssayMinWords      = 150
	EssayMaxWords      = 250
	ExperienceMaxWords = 200
)

// validate is safe for concurrent use and caches parsed tags, so one
// instance serves the whole process.
var validate = validator.New()

var (
	// letters (Latin and the Arabic blocks), spaces and hyphens
	nameChars = regexp.MustCompile(`^[a-zA-Z\x{0600}-\x{06FF}\x{0750}-\x{077F}\x{08A0}-\x{08FF}\x{FB50}-\x{FDFF}\x{FE70}-\x{FEFF} -]+$`)

	// local@domain.tld
	emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// optional "+", 8 to 15 digits, first digit nonzero
	phoneShape = regexp.MustCompile(`^\+?[1-9]\d{7,14}$`)

	phoneNoise = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
)

// Errors maps each failing field to the message shown next to it.
type Errors map[types.Field]string

// Has reports whether f currently has an error.
func (e Errors) Has(f types.Field) bool {
	_, ok := e[f]
	return ok
}

// Fields returns the failing fields in form order.
func (e Errors) Fields() []types.Field {
	var out []types.Field
	for _, f := range types.AllFields() {
		if e.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Error joins the messages so Errors can travel as an error value.
func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, f := range e.Fields() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", f, e[f]))
	}
	return strings.Join(msgs, "; ")
}

// FullName requires at least two whitespace-separated tokens made of
// letters, spaces and hyphens.
func FullName(name string) error {
	name = strings.TrimSpace(name)
	if err := validate.Var(name, "required"); err != nil {
		return errors.New("please enter your full name")
	}
	if len(strings.Fields(name)) < 2 {
		return errors.New("please enter your first and last name")
	}
	if !nameChars.MatchString(name) {
		return errors.New("name may only contain letters, spaces and hyphens")
	}
	return nil
}

// DateOfBirth requires a date whose derived age on now is within
// [MinAge, MaxAge].
func DateOfBirth(dob types.Date, now time.Time) error {
	if dob.IsZero() {
		return errors.New("please enter your date of birth")
	}
	age := Age(dob, now)
	if age < MinAge || age > MaxAge {
		return fmt.Errorf("applicants must be between %d and %d years old", MinAge, MaxAge)
	}
	return nil
}

// Age returns the number of full years between dob and now. The birthday
// itself counts: someone born on 2010-03-15 is 15 on 2025-03-15.
func Age(dob types.Date, now time.Time) int {
	by, bm, bd := dob.Date()
	ny, nm, nd := now.Date()

	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	return age
}

// Email requires a local@domain.tld address whose domain is not a known
// disposable-mail provider.
func Email(email string) error {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required"); err != nil {
		return errors.New("please enter your email address")
	}
	if !emailShape.MatchString(email) || validate.Var(email, "email") != nil {
		return errors.New("please enter a valid email address")
	}
	domain := strings.ToLower(email[strings.LastIndex(email, "@")+1:])
	if IsDisposableDomain(domain) {
		return errors.New("temporary email addresses are not accepted, please use a permanent address")
	}
	return nil
}

// Phone requires an international number once spaces, dashes and
// parentheses are removed.
func Phone(phone string) error {
	phone = strings.TrimSpace(phone)
	if err := validate.Var(phone, "required"); err != nil {
		return errors.New("please enter your phone number")
	}
	if !phoneShape.MatchString(phoneNoise.Replace(phone)) {
		return errors.New("please enter a valid phone number with 8 to 15 digits")
	}
	return nil
}

// City requires a non-blank value.
func City(city string) error {
	return requiredText(city, "please enter your city")
}

// School requires a non-blank value.
func School(school string) error {
	return requiredText(school, "please enter your current school")
}

// Country requires a member of the allowed-country set.
func Country(c types.Country) error {
	if strings.TrimSpace(string(c)) == "" {
		return errors.New("please select your country")
	}
	if !c.Allowed() {
		return errors.New("applications are only open to residents of the listed countries")
	}
	return nil
}

// Grade requires one of the fixed grade labels.
func Grade(g types.Grade) error {
	return oneOf(string(g), "9 10 11 12 undergraduate", "please select your grade")
}

// UsedAITools requires yes or no.
func UsedAITools(v types.YesNo) error {
	return oneOf(string(v), "yes no", "please select whether you have used AI tools before")
}

// AIExperience is only required when usedAITools is yes; otherwise the
// value is ignored entirely.
func AIExperience(text string, usedAITools types.YesNo) error {
	if usedAITools != types.Yes {
		return nil
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("please describe your AI or programming experience")
	}
	if WordCount(text) > ExperienceMaxWords {
		return fmt.Errorf("please limit your description to %d words", ExperienceMaxWords)
	}
	return nil
}

// Essay requires a word count within [EssayMinWords, EssayMaxWords].
func Essay(text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("please answer this question")
	}
	n := WordCount(text)
	if n < EssayMinWords {
		return fmt.Errorf("please write at least %d words (currently %d)", EssayMinWords, n)
	}
	if n > EssayMaxWords {
		return fmt.Errorf("please keep your answer under %d words (currently %d)", EssayMaxWords, n)
	}
	return nil
}

// ReliableInternet requires one of the internet reliability options.
func ReliableInternet(v types.InternetReliability) error {
	return oneOf(string(v), "reliable sometimes unreliable", "please tell us about your internet access")
}

// ProgramCommitment requires one of the commitment options.
func ProgramCommitment(v types.Commitment) error {
	return oneOf(string(v), "full most unsure", "please tell us how much of the program you can attend")
}

// AcceptProgramEmails is the mandatory consent and must be true.
func AcceptProgramEmails(accepted bool) error {
	if err := validate.Var(accepted, "required"); err != nil {
		return errors.New("you must agree to receive program emails to apply")
	}
	return nil
}

// WordCount counts whitespace-delimited tokens of the trimmed text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func requiredText(v, msg string) error {
	if err := validate.Var(strings.TrimSpace(v), "required"); err != nil {
		return errors.New(msg)
	}
	return nil
}

func oneOf(v, options, msg string) error {
	if err := validate.Var(v, "required,oneof="+options); err != nil {
		return errors.New(msg)
	}
	return nil
}
