// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"strings"
	"time"

	"github.com/aanand-mishra/registration-api/internal/types"
)

// Now is the fixed clock used across tests: mid-June 2025, well before
// the registration deadline used in test configs.
var Now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// Clock returns a time source that always reports Now.
func Clock() func() time.Time {
	return func() time.Time { return Now }
}

// Words returns n whitespace-separated words.
func Words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

// PersonalRecord returns a record whose phase-1 fields are valid on Now
// (Sara Ahmed, 17 years old, Cairo) and everything else is empty.
func PersonalRecord() types.RegistrationRecord {
	return types.RegistrationRecord{
		FullName:      "Sara Ahmed",
		DateOfBirth:   types.NewDate(2008, time.January, 10),
		Email:         "sara@gmail.com",
		Phone:         "+20 1001234567",
		City:          "Cairo",
		Country:       "Egypt",
		CurrentSchool: "Cairo STEM High",
		Grade:         types.Grade11,
	}
}

// ValidRecord returns a record that passes full validation on Now.
func ValidRecord() types.RegistrationRecord {
	rec := PersonalRecord()
	rec.Motivation = Words(180)
	rec.ProblemSolving = Words(200)
	rec.UsedAITools = types.Yes
	rec.AIExperience = "I built a small chatbot for my school club."
	rec.ReliableInternet = types.InternetReliable
	rec.ProgramCommitment = types.CommitmentFull
	rec.AdditionalInformation = "None."
	rec.AcceptProgramEmails = true
	rec.SubscribeNewsletter = false
	return rec
}
