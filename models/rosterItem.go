package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BackupInfo marks a roster row whose slot was filled by a promoted
// alternate, preserving who originally held it.
type BackupInfo struct {
	OriginalStudentId   string `json:"original_student_id"`
	OriginalStudentName string `json:"original_student_name"`
	BackupPosition      int    `json:"backup_position"`
	PromotedReason      string `json:"promoted_reason"`
}

func (b BackupInfo) Value() (driver.Value, error) {
	out, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return string(out), nil
}

func (b *BackupInfo) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("cannot scan %T into BackupInfo", value)
	}
}

// RosterItem snapshots one allocated, verified student at generation time.
// Identity and bank fields are copied, not live-joined, so the roster stays a
// point-in-time financial record.
type RosterItem struct {
	ID                  int                `gorm:"primary_key" json:"id"`
	RosterId            int                `gorm:"index;not null" json:"roster_id"`
	RankingItemId       int                `gorm:"index;not null" json:"ranking_item_id"`
	ApplicationId       int                `gorm:"index;not null" json:"application_id"`
	StudentId           string             `gorm:"size:20;not null" json:"student_id"`
	StudentName         string             `gorm:"size:100;not null" json:"student_name"`
	NationalId          string             `gorm:"size:20" json:"national_id"`
	BankCode            string             `gorm:"size:10" json:"bank_code"`
	BankAccountNumber   string             `gorm:"size:30" json:"bank_account_number"`
	BankAccountHolder   string             `gorm:"size:100" json:"bank_account_holder"`
	SubType             string             `gorm:"size:50;not null" json:"sub_type"`
	OrgUnit             string             `gorm:"size:20" json:"org_unit"`
	ScholarshipAmount   decimal.Decimal    `gorm:"type:decimal(12,2)" json:"scholarship_amount"`
	VerificationStatus  VerificationStatus `gorm:"size:20;default:verified" json:"verification_status"`
	VerificationMessage string             `gorm:"size:255" json:"verification_message"`
	IsIncluded          bool               `json:"is_included"`
	ExclusionReason     string             `gorm:"size:255" json:"exclusion_reason"`
	BackupInfo          *BackupInfo        `gorm:"type:json" json:"backup_info"`
	CreatedAt           time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListRosterItems returns the roster rows in payment order (sub-type, then
// org unit, then insertion).
func ListRosterItems(tx *gorm.DB, rosterId int) ([]*RosterItem, error) {
	var items []*RosterItem
	err := tx.Where("roster_id = ?", rosterId).
		Order("sub_type ASC, org_unit ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// UpdateRosterItem applies corrections to a roster row (exclusion reason,
// bank details fixed before disbursement). The parent roster gates the write:
// a locked roster rejects every item edit with ErrRosterLocked.
func UpdateRosterItem(tx *gorm.DB, itemId int, updates map[string]interface{}) (*RosterItem, error) {
	var item RosterItem
	if err := tx.First(&item, itemId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	roster, err := GetRoster(tx, item.RosterId)
	if err != nil {
		return nil, err
	}
	if err := roster.EnsureMutable(); err != nil {
		return nil, err
	}
	if err := tx.Model(&item).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// SumIncludedAmounts recomputes total_amount from the rows; used by the
// generation workflow and by consistency checks.
func SumIncludedAmounts(items []*RosterItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item != nil && item.IsIncluded {
			total = total.Add(item.ScholarshipAmount)
		}
	}
	return total
}
