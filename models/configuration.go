package models

import (
	"errors"
	"time"

	"github.com/mmcampusware/scholarship_backend/utils"
	"gorm.io/gorm"
)

// ScholarshipConfiguration is the per-scholarship settings row maintained by
// the admin CRUD layer; the pipeline reads it for eligibility policy only.
type ScholarshipConfiguration struct {
	ID                       int        `gorm:"primary_key" json:"id"`
	Name                     string     `gorm:"size:100;not null" json:"name"`
	ScholarshipType          string     `gorm:"size:50;index;not null" json:"scholarship_type"`
	WhitelistEnabled         bool       `json:"whitelist_enabled"`
	MaxYearsSincePriorAward  int        `json:"max_years_since_prior_award"`
	DoctoralSubTypes         StringList `gorm:"type:json" json:"doctoral_sub_types"`
	AutoLockRoster           bool       `json:"auto_lock_roster"`
	CreatedAt                time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetScholarshipConfiguration(tx *gorm.DB, id int) (*ScholarshipConfiguration, error) {
	var cfg ScholarshipConfiguration
	if err := tx.First(&cfg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &cfg, nil
}
