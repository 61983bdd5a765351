package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Roster is one persisted financial batch derived from a distributed ranking.
// ActiveKey is "<configuration_id>:<period_label>" while the roster is the
// live one for that scope and NULL once superseded; the unique index on it is
// the idempotency backstop (MySQL unique indexes admit multiple NULLs).
type Roster struct {
	ID                         int               `gorm:"primary_key" json:"id"`
	RosterCode                 string            `gorm:"size:64;uniqueIndex;not null" json:"roster_code"`
	ScholarshipConfigurationId int               `gorm:"index;not null" json:"scholarship_configuration_id"`
	PeriodLabel                string            `gorm:"size:50;not null" json:"period_label"`
	ActiveKey                  *string           `gorm:"size:128;uniqueIndex" json:"-"`
	Cycle                      string            `gorm:"size:20" json:"cycle"`
	AcademicYear               string            `gorm:"size:10" json:"academic_year"`
	Status                     RosterStatus      `gorm:"size:20;index;default:draft" json:"status"`
	TriggerType                RosterTriggerType `gorm:"size:20" json:"trigger_type"`
	RankingId                  int               `gorm:"index;not null" json:"ranking_id"`
	TotalApplications          int               `json:"total_applications"`
	QualifiedCount             int               `json:"qualified_count"`
	DisqualifiedCount          int               `json:"disqualified_count"`
	FailedCount                int               `json:"failed_count"`
	TotalAmount                decimal.Decimal   `gorm:"type:decimal(14,2)" json:"total_amount"`
	FailureReason              string            `gorm:"type:text" json:"failure_reason"`
	GeneratedBy                int               `json:"generated_by"`
	LockedAt                   *time.Time        `json:"locked_at"`
	LockedBy                   *int              `json:"locked_by"`
	CreatedAt                  time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func RosterActiveKey(configurationId int, periodLabel string) string {
	return fmt.Sprintf("%d:%s", configurationId, strings.TrimSpace(periodLabel))
}

// NewRosterCode builds a unique, human-scannable batch code.
func NewRosterCode(configurationId int, periodLabel string) string {
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("RST-%d-%s-%s", configurationId, strings.TrimSpace(periodLabel), strings.ToUpper(short))
}

// EnsureMutable rejects writes against a locked roster.
func (r *Roster) EnsureMutable() error {
	if r.Status == RosterStatusLocked {
		return utils.ErrRosterLocked
	}
	return nil
}

func GetRoster(tx *gorm.DB, id int) (*Roster, error) {
	var roster Roster
	if err := tx.First(&roster, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &roster, nil
}

// FindActiveRoster returns the non-superseded roster for a scope, if any.
func FindActiveRoster(tx *gorm.DB, configurationId int, periodLabel string) (*Roster, error) {
	var roster Roster
	err := tx.Where("active_key = ?", RosterActiveKey(configurationId, periodLabel)).First(&roster).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &roster, nil
}

// RosterExport is the read surface the financial-export service consumes.
type RosterExport struct {
	Roster *Roster       `json:"roster"`
	Items  []*RosterItem `json:"items"`
}

// GetRosterForExport loads a roster with its items in stable order for the
// downstream Excel/object-store exporter.
func GetRosterForExport(tx *gorm.DB, rosterId int) (*RosterExport, error) {
	roster, err := GetRoster(tx, rosterId)
	if err != nil {
		return nil, err
	}
	items, err := ListRosterItems(tx, rosterId)
	if err != nil {
		return nil, err
	}
	return &RosterExport{Roster: roster, Items: items}, nil
}
