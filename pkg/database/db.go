package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arnavshah/homestay-api/pkg/config"
)

// APIKey represents the api_keys table. Revoked keys are soft deleted.
type APIKey struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Key        string         `gorm:"unique;not null" json:"-"`
	KeyPreview string         `json:"key_preview"`
	Name       string         `gorm:"not null" json:"name"`
	RateLimit  int            `gorm:"default:10000" json:"rate_limit"`
	CreatedAt  time.Time      `json:"created_at"`
	LastUsed   *time.Time     `json:"last_used"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"` // set on revoke; the row stays so the key cannot re-register
}

// APIUsage represents the api_usages table
type APIUsage struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	KeyID             uint   `gorm:"uniqueIndex:idx_key_date;not null" json:"key_id"`
	Date              string `gorm:"uniqueIndex:idx_key_date;not null" json:"date"`
	RequestCount      int    `gorm:"default:0" json:"request_count"`
	TotalFamilies     int    `gorm:"default:0" json:"total_families"`
	TotalParticipants int    `gorm:"default:0" json:"total_participants"`
}

// MasterUser represents the master_users table
type MasterUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ParticipantRecord represents the participants table
type ParticipantRecord struct {
	ID            string `gorm:"primaryKey"`
	Seq           uint   `gorm:"autoIncrement:false;index"`
	Name          string `gorm:"not null"`
	Age           int
	Gender        string
	SpecialNeeds  string
	PaymentStatus string `gorm:"default:unpaid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ParticipantRecord) TableName() string { return "participants" }

// HostFamilyRecord represents the host_families table
type HostFamilyRecord struct {
	ID                 string `gorm:"primaryKey"`
	Seq                uint   `gorm:"autoIncrement:false;index"`
	Name               string `gorm:"not null"`
	Address            string
	Capacity           int `gorm:"not null"`
	CurrentAssignments int `gorm:"default:0"`
	PreferredGender    string
	AgeMin             *int
	AgeMax             *int
	SpecialNeeds       bool
	VerificationStatus string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (HostFamilyRecord) TableName() string { return "host_families" }

// AssignmentRecord represents the assignments table. A participant holds at most one assignment.
type AssignmentRecord struct {
	ID            uint   `gorm:"primaryKey"`
	ParticipantID string `gorm:"uniqueIndex;not null"`
	HostFamilyID  string `gorm:"index;not null"`
	CreatedAt     time.Time
}

func (AssignmentRecord) TableName() string { return "assignments" }

// Open connects to Postgres when a URL is configured and to SQLite otherwise
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if cfg.URL != "" {
		gormCfg.PrepareStmt = false
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL,
			PreferSimpleProtocol: true,
		}), gormCfg)
	} else {
		path := cfg.Path
		if path == "" {
			path = "homestay.db"
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&APIKey{}, &APIUsage{}, &MasterUser{},
		&ParticipantRecord{}, &HostFamilyRecord{}, &AssignmentRecord{},
	); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}
