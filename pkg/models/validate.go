package models

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateParticipant checks field constraints and enumerations of a single participant
func ValidateParticipant(p Participant) error {
	if err := structValidator().Struct(p); err != nil {
		return fmt.Errorf("participant %q: %w", p.ID, err)
	}
	if !p.Gender.Valid() {
		return fmt.Errorf("participant %q: unknown gender %q", p.ID, p.Gender)
	}
	if !p.PaymentStatus.Valid() {
		return fmt.Errorf("participant %q: unknown payment status %q", p.ID, p.PaymentStatus)
	}
	return nil
}

// ValidateHostFamily checks field constraints and enumerations of a single host family
func ValidateHostFamily(f HostFamily) error {
	if err := structValidator().Struct(f); err != nil {
		return fmt.Errorf("host family %q: %w", f.ID, err)
	}
	if !f.VerificationStatus.Valid() {
		return fmt.Errorf("host family %q: unknown verification status %q", f.ID, f.VerificationStatus)
	}
	if f.Preferences != nil && !f.Preferences.Gender.Valid() {
		return fmt.Errorf("host family %q: unknown preferred gender %q", f.ID, f.Preferences.Gender)
	}
	return nil
}

// ValidateRoster checks every record and rejects duplicate IDs
func ValidateRoster(participants []Participant, families []HostFamily) error {
	var errs []error

	seen := make(map[string]bool, len(participants))
	for _, p := range participants {
		if err := ValidateParticipant(p); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("duplicate participant ID: %s", p.ID))
		}
		seen[p.ID] = true
	}

	seen = make(map[string]bool, len(families))
	for _, f := range families {
		if err := ValidateHostFamily(f); err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[f.ID] {
			errs = append(errs, fmt.Errorf("duplicate host family ID: %s", f.ID))
		}
		seen[f.ID] = true
	}

	return errors.Join(errs...)
}
