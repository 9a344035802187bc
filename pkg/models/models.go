package models

import "strings"

// Gender of a participant
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Valid reports whether g is a known gender
func (g Gender) Valid() bool {
	return g == GenderMale || g == GenderFemale
}

// PreferredGender is a host family's gender preference
type PreferredGender string

const (
	PreferMale   PreferredGender = "male"
	PreferFemale PreferredGender = "female"
	PreferAny    PreferredGender = "any"
)

// Valid reports whether p is a known preference. The zero value means no preference.
func (p PreferredGender) Valid() bool {
	switch p {
	case "", PreferMale, PreferFemale, PreferAny:
		return true
	}
	return false
}

// PaymentStatus tracks a participant's trip payment
type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentUnpaid  PaymentStatus = "unpaid"
)

// Valid reports whether s is a known payment status
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPaid, PaymentPending, PaymentUnpaid:
		return true
	}
	return false
}

// VerificationStatus tracks host family background checks
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Valid reports whether s is a known verification status. The zero value is allowed.
func (s VerificationStatus) Valid() bool {
	switch s {
	case "", VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

// Participant represents a person registered for the trip
type Participant struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name"`
	Age           int           `json:"age" validate:"gte=0"`
	Gender        Gender        `json:"gender"`
	SpecialNeeds  string        `json:"special_needs,omitempty"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// HasSpecialNeeds reports whether the participant declared any special need
func (p Participant) HasSpecialNeeds() bool {
	return p.SpecialNeeds != ""
}

// AgeRange is an inclusive age bracket
type AgeRange struct {
	Min int `json:"min" validate:"gte=0"`
	Max int `json:"max" validate:"gtefield=Min"`
}

// Contains reports whether age falls inside the range
func (r AgeRange) Contains(age int) bool {
	return r.Min <= age && age <= r.Max
}

// Preferences restrict which participants a family accepts during auto-assignment
type Preferences struct {
	Gender       PreferredGender `json:"gender,omitempty"`
	AgeRange     *AgeRange       `json:"age_range,omitempty" validate:"omitempty"`
	SpecialNeeds bool            `json:"special_needs,omitempty"`
}

// HostFamily represents a household hosting participants
type HostFamily struct {
	ID                 string             `json:"id" validate:"required"`
	Name               string             `json:"name"`
	Address            string             `json:"address,omitempty"`
	Capacity           int                `json:"capacity" validate:"gte=1"`
	CurrentAssignments int                `json:"current_assignments" validate:"gte=0,ltefield=Capacity"`
	Preferences        *Preferences       `json:"preferences,omitempty" validate:"omitempty"`
	VerificationStatus VerificationStatus `json:"verification_status,omitempty"`
}

// Available returns the number of free places
func (f HostFamily) Available() int {
	return f.Capacity - f.CurrentAssignments
}

// Clone returns a deep copy of the family
func (f HostFamily) Clone() HostFamily {
	if f.Preferences != nil {
		prefs := *f.Preferences
		if prefs.AgeRange != nil {
			r := *prefs.AgeRange
			prefs.AgeRange = &r
		}
		f.Preferences = &prefs
	}
	return f
}

// Assignment represents a participant-family pairing
type Assignment struct {
	ParticipantID string `json:"participant_id" binding:"required"`
	HostFamilyID  string `json:"host_family_id" binding:"required"`
}

// UnmatchedParticipant explains why auto-assignment left a participant unassigned
type UnmatchedParticipant struct {
	ParticipantID string   `json:"participant_id"`
	Reasons       []string `json:"reasons"`
}

// Summary aggregates the state of an assignment session
type Summary struct {
	TotalParticipants  int                   `json:"total_participants"`
	Unassigned         int                   `json:"unassigned"`
	Pending            int                   `json:"pending"`
	Committed          int                   `json:"committed"`
	TotalCapacity      int                   `json:"total_capacity"`
	Occupied           int                   `json:"occupied"`
	Available          int                   `json:"available"`
	OccupancyRate      float64               `json:"occupancy_rate"`
	FullFamilies       int                   `json:"full_families"`
	UnassignedPayments map[PaymentStatus]int `json:"unassigned_payment_status"`
}

// RosterInput is the seed data for an assignment session
type RosterInput struct {
	Participants []Participant `json:"participants"`
	HostFamilies []HostFamily  `json:"host_families"`
}

// SessionState is the serialized view of an assignment session
type SessionState struct {
	SessionID    string        `json:"session_id"`
	Unassigned   []Participant `json:"unassigned"`
	HostFamilies []HostFamily  `json:"host_families"`
	Pending      []Assignment  `json:"pending"`
	Summary      Summary       `json:"summary"`
}

// AutoAssignResponse is returned by the auto-assign endpoint
type AutoAssignResponse struct {
	Assigned  []Assignment           `json:"assigned"`
	Unmatched []UnmatchedParticipant `json:"unmatched,omitempty"`
	State     SessionState           `json:"state"`
}

// MatchesName reports whether name contains query, ignoring case. An empty query matches everything.
func MatchesName(name, query string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
