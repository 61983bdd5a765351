package models

import (
	"errors"
	"time"

	"github.com/mmcampusware/scholarship_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ranking groups the items of one (scholarship type, sub-type set, academic
// period) scope. Finalization freezes ordering; distribution consumes quota.
type Ranking struct {
	ID                         int           `gorm:"primary_key" json:"id"`
	ScholarshipConfigurationId int           `gorm:"index;not null" json:"scholarship_configuration_id"`
	PeriodLabel                string        `gorm:"size:50;index;not null" json:"period_label"`
	SubTypeSet                 StringList    `gorm:"type:json" json:"sub_type_set"`
	TotalQuota                 int           `json:"total_quota"`
	AllocatedCount             int           `json:"allocated_count"`
	IsFinalized                bool          `json:"is_finalized"`
	DistributionExecuted       bool          `json:"distribution_executed"`
	RankingStatus              RankingStatus `gorm:"size:20;default:draft" json:"ranking_status"`
	FinalizedAt                *time.Time    `json:"finalized_at"`
	FinalizedBy                *int          `json:"finalized_by"`
	DistributedAt              *time.Time    `json:"distributed_at"`
	DistributedBy              *int          `json:"distributed_by"`
	CreatedAt                  time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                  time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetRankingForUpdate loads the ranking row under SELECT ... FOR UPDATE.
// Must run inside a transaction; finalize, reorder and distribute all go
// through here so they serialize on the row.
func GetRankingForUpdate(tx *gorm.DB, id int) (*Ranking, error) {
	var ranking Ranking
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&ranking, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &ranking, nil
}

func GetRanking(tx *gorm.DB, id int) (*Ranking, error) {
	var ranking Ranking
	if err := tx.First(&ranking, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &ranking, nil
}

// ReorderEntry is one row of a reorder payload.
type ReorderEntry struct {
	ItemId   int `json:"item_id" validate:"required"`
	Position int `json:"position" validate:"required,min=1"`
}

// ValidateReorderPayload checks that newOrder covers exactly the items of the
// ranking and that positions form a dense permutation of 1..N.
func ValidateReorderPayload(items []*RankingItem, newOrder []ReorderEntry) error {
	if len(newOrder) != len(items) {
		return utils.ErrInvalidRankingData
	}

	known := make(map[int]bool, len(items))
	for _, item := range items {
		known[item.ID] = true
	}

	seenItem := make(map[int]bool, len(newOrder))
	seenPos := make(map[int]bool, len(newOrder))
	for _, entry := range newOrder {
		if !known[entry.ItemId] {
			return utils.ErrInvalidRankingData
		}
		if seenItem[entry.ItemId] || seenPos[entry.Position] {
			return utils.ErrInvalidRankingData
		}
		if entry.Position < 1 || entry.Position > len(items) {
			return utils.ErrInvalidRankingData
		}
		seenItem[entry.ItemId] = true
		seenPos[entry.Position] = true
	}
	return nil
}

// RecountAllocated recomputes allocated_count from item state; the ranking
// invariant is that the counter always matches the allocated rows.
func RecountAllocated(tx *gorm.DB, rankingId int) (int, error) {
	var count int64
	err := tx.Model(&RankingItem{}).
		Where("ranking_id = ? AND is_allocated = ?", rankingId, true).
		Count(&count).Error
	return int(count), err
}
