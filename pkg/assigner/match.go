package assigner

import (
	"fmt"

	"github.com/arnavshah/homestay-api/pkg/models"
)

// mismatch records which family preferences a participant fails
type mismatch struct {
	gender       bool
	age          bool
	specialNeeds bool
}

func (m mismatch) any() bool {
	return m.gender || m.age || m.specialNeeds
}

// check evaluates every preference of the family against the participant
func check(family *models.HostFamily, p *models.Participant) mismatch {
	var m mismatch
	prefs := family.Preferences
	if prefs == nil {
		return m
	}
	if prefs.Gender != "" && prefs.Gender != models.PreferAny {
		m.gender = string(p.Gender) != string(prefs.Gender)
	}
	if prefs.AgeRange != nil {
		m.age = !prefs.AgeRange.Contains(p.Age)
	}
	// A family flagged for special needs only takes participants who declared one.
	if prefs.SpecialNeeds {
		m.specialNeeds = !p.HasSpecialNeeds()
	}
	return m
}

// accepts reports whether the family's preferences admit the participant.
// A family without preferences accepts everyone.
func accepts(family *models.HostFamily, p *models.Participant) bool {
	return !check(family, p).any()
}

// explain builds the reasons a participant found no family after an auto-assign pass
func explain(families []models.HostFamily, p *models.Participant) []string {
	var fullCount, genderCount, ageCount, specialCount int
	for i := range families {
		if families[i].Available() <= 0 {
			fullCount++
			continue
		}
		m := check(&families[i], p)
		if m.gender {
			genderCount++
		}
		if m.age {
			ageCount++
		}
		if m.specialNeeds {
			specialCount++
		}
	}

	var reasons []string
	if fullCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d host families were at capacity", fullCount))
	}
	if genderCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d host families prefer a different gender", genderCount))
	}
	if ageCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d host families prefer a different age range", ageCount))
	}
	if specialCount > 0 {
		reasons = append(reasons, fmt.Sprintf("%d host families only accept participants with special needs", specialCount))
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "no host families available")
	}
	return reasons
}
