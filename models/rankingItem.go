package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// BackupAllocation records that an item is next-in-line for one quota cell.
// An item may back up several cells at once.
type BackupAllocation struct {
	SubType        string `json:"sub_type"`
	BackupPosition int    `json:"backup_position"`
}

// BackupAllocationList is the JSON column type; ordered, typed at the
// persistence edge so business logic never sees an untyped map.
type BackupAllocationList []BackupAllocation

func (l BackupAllocationList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *BackupAllocationList) Scan(value interface{}) error {
	if value == nil {
		*l = BackupAllocationList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into BackupAllocationList", value)
	}
}

// PositionFor returns the item's backup position for a sub-type, if any.
func (l BackupAllocationList) PositionFor(subType string) (int, bool) {
	for _, b := range l {
		if b.SubType == subType {
			return b.BackupPosition, true
		}
	}
	return 0, false
}

type RankingItem struct {
	ID                int                  `gorm:"primary_key" json:"id"`
	RankingId         int                  `gorm:"not null;uniqueIndex:idx_ranking_rank_position" json:"ranking_id"`
	ApplicationId     int                  `gorm:"index;not null" json:"application_id"`
	RankPosition      int                  `gorm:"not null;uniqueIndex:idx_ranking_rank_position" json:"rank_position"`
	TotalScore        decimal.Decimal      `gorm:"type:decimal(7,2)" json:"total_score"`
	IsAllocated       bool                 `gorm:"index" json:"is_allocated"`
	AllocatedSubType  *string              `gorm:"size:50" json:"allocated_sub_type"`
	Status            RankingItemStatus    `gorm:"size:20;index;default:ranked" json:"status"`
	BackupAllocations BackupAllocationList `gorm:"type:json" json:"backup_allocations"`
	AllocationReason  string               `gorm:"type:text" json:"allocation_reason"`
	TieBreakerApplied bool                 `json:"tie_breaker_applied"`
	TieBreakerReason  string               `gorm:"size:255" json:"tie_breaker_reason"`
	CreatedAt         time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time            `gorm:"autoUpdateTime" json:"updated_at"`
}

// RankingItemFilter narrows ListRankingItems. Nil fields are ignored.
type RankingItemFilter struct {
	Status      *RankingItemStatus
	IsAllocated *bool
}

// ListRankingItems returns the ranking's items ordered by rank_position
// ascending; this order is authoritative for distribution and backups.
func ListRankingItems(tx *gorm.DB, rankingId int, filter *RankingItemFilter) ([]*RankingItem, error) {
	var items []*RankingItem
	dbCtx := tx.Where("ranking_id = ?", rankingId)
	if filter != nil {
		if filter.Status != nil {
			dbCtx = dbCtx.Where("status = ?", *filter.Status)
		}
		if filter.IsAllocated != nil {
			dbCtx = dbCtx.Where("is_allocated = ?", *filter.IsAllocated)
		}
	}
	if err := dbCtx.Order("rank_position ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AllocatedRankingItems returns only allocated items, in rank order.
func AllocatedRankingItems(tx *gorm.DB, rankingId int) ([]*RankingItem, error) {
	return ListRankingItems(tx, rankingId, &RankingItemFilter{IsAllocated: utils.NewTrue()})
}
