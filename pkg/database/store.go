package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
	"github.com/arnavshah/homestay-api/pkg/models"
)

// Store persists the trip roster and committed assignments
type Store struct {
	DB *gorm.DB
}

// NewStore wraps an open database connection
func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// ImportRoster inserts or updates participants and host families. Existing
// records keep their position and, for families, their assignment counter.
func (s *Store) ImportRoster(ctx context.Context, participants []models.Participant, families []models.HostFamily) error {
	if err := models.ValidateRoster(participants, families); err != nil {
		return fmt.Errorf("%w: %w", appErrors.ErrValidation, err)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var seq uint
		if err := tx.Model(&ParticipantRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error; err != nil {
			return err
		}
		for _, p := range participants {
			seq++
			rec := participantRecord(p, seq)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "age", "gender", "special_needs", "payment_status", "updated_at"}),
			}).Create(&rec).Error
			if err != nil {
				return fmt.Errorf("import participant %q: %w", p.ID, err)
			}
		}

		seq = 0
		if err := tx.Model(&HostFamilyRecord{}).Select("COALESCE(MAX(seq), 0)").Scan(&seq).Error; err != nil {
			return err
		}
		for _, f := range families {
			seq++
			rec := hostFamilyRecord(f, seq)
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"name", "address", "capacity", "preferred_gender", "age_min", "age_max",
					"special_needs", "verification_status", "updated_at",
				}),
			}).Create(&rec).Error
			if err != nil {
				return fmt.Errorf("import host family %q: %w", f.ID, err)
			}

			var stored HostFamilyRecord
			if err := tx.First(&stored, "id = ?", f.ID).Error; err != nil {
				return err
			}
			if stored.CurrentAssignments > stored.Capacity {
				return fmt.Errorf("host family %q: capacity %d is below its %d assignments", f.ID, stored.Capacity, stored.CurrentAssignments)
			}
		}
		return nil
	})
}

// LoadRoster returns the participants without a stored assignment and every
// host family, both in import order.
func (s *Store) LoadRoster(ctx context.Context) ([]models.Participant, []models.HostFamily, error) {
	db := s.DB.WithContext(ctx)

	var precs []ParticipantRecord
	assigned := db.Model(&AssignmentRecord{}).Select("participant_id")
	if err := db.Where("id NOT IN (?)", assigned).Order("seq, id").Find(&precs).Error; err != nil {
		return nil, nil, fmt.Errorf("load participants: %w", err)
	}

	var frecs []HostFamilyRecord
	if err := db.Order("seq, id").Find(&frecs).Error; err != nil {
		return nil, nil, fmt.Errorf("load host families: %w", err)
	}

	participants := make([]models.Participant, 0, len(precs))
	for _, r := range precs {
		participants = append(participants, r.toModel())
	}
	families := make([]models.HostFamily, 0, len(frecs))
	for _, r := range frecs {
		families = append(families, r.toModel())
	}
	return participants, families, nil
}

// SaveAssignments stores a committed batch in one transaction. Re-sending an
// assignment that is already stored is a no-op; assigning a participant
// elsewhere or overfilling a family fails the whole batch.
func (s *Store) SaveAssignments(ctx context.Context, batch []models.Assignment) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, a := range batch {
			var existing AssignmentRecord
			err := tx.Where("participant_id = ?", a.ParticipantID).First(&existing).Error
			switch {
			case err == nil:
				if existing.HostFamilyID == a.HostFamilyID {
					continue
				}
				return fmt.Errorf("participant %q is already assigned to host family %q", a.ParticipantID, existing.HostFamilyID)
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}

			var count int64
			if err := tx.Model(&ParticipantRecord{}).Where("id = ?", a.ParticipantID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("unknown participant %q", a.ParticipantID)
			}

			res := tx.Model(&HostFamilyRecord{}).
				Where("id = ? AND current_assignments < capacity", a.HostFamilyID).
				UpdateColumn("current_assignments", gorm.Expr("current_assignments + ?", 1))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("host family %q is unknown or full", a.HostFamilyID)
			}

			if err := tx.Create(&AssignmentRecord{ParticipantID: a.ParticipantID, HostFamilyID: a.HostFamilyID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAssignments returns every stored assignment in commit order
func (s *Store) ListAssignments(ctx context.Context) ([]models.Assignment, error) {
	var recs []AssignmentRecord
	if err := s.DB.WithContext(ctx).Order("id").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]models.Assignment, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.Assignment{ParticipantID: r.ParticipantID, HostFamilyID: r.HostFamilyID})
	}
	return out, nil
}

// RemoveAssignment reverses a committed assignment. The participant becomes
// unassigned again and the family regains the slot.
func (s *Store) RemoveAssignment(ctx context.Context, participantID string) (models.Assignment, error) {
	var removed models.Assignment
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec AssignmentRecord
		if err := tx.Where("participant_id = ?", participantID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("participant %q has no committed assignment: %w", participantID, appErrors.ErrNotFound)
			}
			return err
		}
		if err := tx.Delete(&rec).Error; err != nil {
			return err
		}
		err := tx.Model(&HostFamilyRecord{}).
			Where("id = ? AND current_assignments > 0", rec.HostFamilyID).
			UpdateColumn("current_assignments", gorm.Expr("current_assignments - ?", 1)).Error
		if err != nil {
			return err
		}
		removed = models.Assignment{ParticipantID: rec.ParticipantID, HostFamilyID: rec.HostFamilyID}
		return nil
	})
	return removed, err
}

// UpdatePaymentStatus records a participant's payment
func (s *Store) UpdatePaymentStatus(ctx context.Context, participantID string, status models.PaymentStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown payment status %q", appErrors.ErrValidation, status)
	}
	res := s.DB.WithContext(ctx).Model(&ParticipantRecord{}).
		Where("id = ?", participantID).
		Updates(map[string]interface{}{"payment_status": string(status)})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("participant %q: %w", participantID, appErrors.ErrNotFound)
	}
	return nil
}

// DeleteParticipant removes a participant without a committed assignment
func (s *Store) DeleteParticipant(ctx context.Context, participantID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assigned int64
		if err := tx.Model(&AssignmentRecord{}).Where("participant_id = ?", participantID).Count(&assigned).Error; err != nil {
			return err
		}
		if assigned > 0 {
			return fmt.Errorf("participant %q has a committed assignment: %w", participantID, appErrors.ErrConflict)
		}

		res := tx.Delete(&ParticipantRecord{}, "id = ?", participantID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("participant %q: %w", participantID, appErrors.ErrNotFound)
		}
		return nil
	})
}

// DeleteHostFamily removes a host family that holds no assignments
func (s *Store) DeleteHostFamily(ctx context.Context, familyID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec HostFamilyRecord
		if err := tx.First(&rec, "id = ?", familyID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("host family %q: %w", familyID, appErrors.ErrNotFound)
			}
			return err
		}

		var assigned int64
		if err := tx.Model(&AssignmentRecord{}).Where("host_family_id = ?", familyID).Count(&assigned).Error; err != nil {
			return err
		}
		if assigned > 0 || rec.CurrentAssignments > 0 {
			return fmt.Errorf("host family %q still hosts %d participants: %w", familyID, rec.CurrentAssignments, appErrors.ErrConflict)
		}
		return tx.Delete(&rec).Error
	})
}

func participantRecord(p models.Participant, seq uint) ParticipantRecord {
	return ParticipantRecord{
		ID:            p.ID,
		Seq:           seq,
		Name:          p.Name,
		Age:           p.Age,
		Gender:        string(p.Gender),
		SpecialNeeds:  p.SpecialNeeds,
		PaymentStatus: string(p.PaymentStatus),
	}
}

func (r ParticipantRecord) toModel() models.Participant {
	return models.Participant{
		ID:            r.ID,
		Name:          r.Name,
		Age:           r.Age,
		Gender:        models.Gender(r.Gender),
		SpecialNeeds:  r.SpecialNeeds,
		PaymentStatus: models.PaymentStatus(r.PaymentStatus),
	}
}

func hostFamilyRecord(f models.HostFamily, seq uint) HostFamilyRecord {
	rec := HostFamilyRecord{
		ID:                 f.ID,
		Seq:                seq,
		Name:               f.Name,
		Address:            f.Address,
		Capacity:           f.Capacity,
		CurrentAssignments: f.CurrentAssignments,
		VerificationStatus: string(f.VerificationStatus),
	}
	if prefs := f.Preferences; prefs != nil {
		rec.PreferredGender = string(prefs.Gender)
		rec.SpecialNeeds = prefs.SpecialNeeds
		if prefs.AgeRange != nil {
			lo, hi := prefs.AgeRange.Min, prefs.AgeRange.Max
			rec.AgeMin, rec.AgeMax = &lo, &hi
		}
	}
	return rec
}

func (r HostFamilyRecord) toModel() models.HostFamily {
	f := models.HostFamily{
		ID:                 r.ID,
		Name:               r.Name,
		Address:            r.Address,
		Capacity:           r.Capacity,
		CurrentAssignments: r.CurrentAssignments,
		VerificationStatus: models.VerificationStatus(r.VerificationStatus),
	}
	if r.PreferredGender != "" || r.SpecialNeeds || r.AgeMin != nil {
		f.Preferences = &models.Preferences{
			Gender:       models.PreferredGender(r.PreferredGender),
			SpecialNeeds: r.SpecialNeeds,
		}
		if r.AgeMin != nil && r.AgeMax != nil {
			f.Preferences.AgeRange = &models.AgeRange{Min: *r.AgeMin, Max: *r.AgeMax}
		}
	}
	return f
}
