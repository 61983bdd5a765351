package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type CellSummary struct {
	SubType   string `json:"sub_type"`
	OrgUnit   string `json:"org_unit"`
	Quota     int    `json:"quota"`
	Allocated int    `json:"allocated"`
	Backups   int    `json:"backups"`
}

type DistributionResult struct {
	RankingId       int           `json:"ranking_id"`
	AllocatedCount  int           `json:"allocated_count"`
	WaitlistedCount int           `json:"waitlisted_count"`
	Cells           []CellSummary `json:"cells"`
}

// distributionCandidate pairs a ranking item with its scored application,
// already sorted by rank_position ascending.
type distributionCandidate struct {
	Item *models.RankingItem
	App  *models.Application
}

// itemMutation is the computed outcome for one item; persisted in one
// transaction after the walk finishes.
type itemMutation struct {
	ItemId            int
	IsAllocated       bool
	AllocatedSubType  *string
	Status            models.RankingItemStatus
	BackupAllocations models.BackupAllocationList
	AllocationReason  string
}

type distributionPlan struct {
	Mutations []itemMutation
	Result    DistributionResult
}

type cellKey struct {
	SubType string
	OrgUnit string
}

// computeDistribution walks candidates in strict rank order and greedily
// consumes quota. Processing order is a correctness requirement: an earlier
// rank must get the slot before a later rank can see it. Pure; no DB access.
func computeDistribution(candidates []distributionCandidate, matrix models.QuotaMatrix) (*distributionPlan, error) {
	if err := matrix.Validate(); err != nil {
		return nil, err
	}

	remaining := make(map[cellKey]int)
	allocatedPerCell := make(map[cellKey]int)
	backupCounter := make(map[cellKey]int)
	for subType, units := range matrix {
		for unit, quota := range units {
			remaining[cellKey{subType, unit}] = quota
		}
	}

	plan := &distributionPlan{}
	for _, c := range candidates {
		if c.App == nil {
			return nil, utils.ValidationErr("application_id", fmt.Sprintf("ranking item %d has no application", c.Item.ID))
		}

		mutation := itemMutation{ItemId: c.Item.ID}
		unit := c.App.OrgUnit

		allocated := false
		for _, subType := range c.App.DeclaredSubTypes {
			if !matrix.HasCell(subType, unit) {
				continue
			}
			key := cellKey{subType, unit}
			if remaining[key] <= 0 {
				continue
			}
			remaining[key]--
			allocatedPerCell[key]++
			st := subType
			mutation.IsAllocated = true
			mutation.AllocatedSubType = &st
			mutation.Status = models.RankingItemStatusAllocated
			mutation.AllocationReason = fmt.Sprintf("allocated to %s/%s at rank %d", subType, unit, c.Item.RankPosition)
			allocated = true
			break
		}

		if !allocated {
			mutation.Status = models.RankingItemStatusWaitlisted
			for _, subType := range c.App.DeclaredSubTypes {
				if !matrix.HasCell(subType, unit) {
					continue
				}
				key := cellKey{subType, unit}
				backupCounter[key]++
				mutation.BackupAllocations = append(mutation.BackupAllocations, models.BackupAllocation{
					SubType:        subType,
					BackupPosition: backupCounter[key],
				})
			}
			plan.Result.WaitlistedCount++
		} else {
			plan.Result.AllocatedCount++
		}

		plan.Mutations = append(plan.Mutations, mutation)
	}

	for key := range remaining {
		plan.Result.Cells = append(plan.Result.Cells, CellSummary{
			SubType:   key.SubType,
			OrgUnit:   key.OrgUnit,
			Quota:     allocatedPerCell[key] + remaining[key],
			Allocated: allocatedPerCell[key],
			Backups:   backupCounter[key],
		})
	}
	sort.Slice(plan.Result.Cells, func(i, j int) bool {
		a, b := plan.Result.Cells[i], plan.Result.Cells[j]
		if a.SubType != b.SubType {
			return a.SubType < b.SubType
		}
		return a.OrgUnit < b.OrgUnit
	})

	return plan, nil
}

// ProcessDistributionWorkflow allocates a finalized ranking against the quota
// matrix. One-shot per ranking: re-running fails with ErrRankingModification
// and writes nothing.
func ProcessDistributionWorkflow(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, rankingId int, matrix models.QuotaMatrix, executorId int) (*DistributionResult, error) {
	var result *DistributionResult

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRankingLock(tx, rankingId); err != nil {
			return err
		}
		defer ReleaseRankingLock(tx, rankingId)

		ranking, err := models.GetRankingForUpdate(tx, rankingId)
		if err != nil {
			return err
		}
		if !ranking.IsFinalized {
			return utils.ErrRankingNotFinalized
		}
		if ranking.DistributionExecuted {
			return utils.ErrRankingModification
		}

		items, err := models.ListRankingItems(tx, rankingId, nil)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return utils.ValidationErr("ranking_id", "ranking has no items to distribute")
		}

		appIds := make([]int, 0, len(items))
		for _, item := range items {
			appIds = append(appIds, item.ApplicationId)
		}
		apps, err := models.GetApplicationsByIds(tx, utils.UniqueSlice(appIds))
		if err != nil {
			config.LogError(logger, "distributionWorkflow.go", "ProcessDistributionWorkflow", "loading applications", rankingId, err)
			return err
		}

		candidates := make([]distributionCandidate, 0, len(items))
		for _, item := range items {
			candidates = append(candidates, distributionCandidate{Item: item, App: apps[item.ApplicationId]})
		}

		plan, err := computeDistribution(candidates, matrix)
		if err != nil {
			return err
		}

		for _, m := range plan.Mutations {
			updates := map[string]interface{}{
				"is_allocated":       m.IsAllocated,
				"allocated_sub_type": m.AllocatedSubType,
				"status":             m.Status,
				"backup_allocations": m.BackupAllocations,
				"allocation_reason":  m.AllocationReason,
			}
			if err := tx.Model(&models.RankingItem{}).Where("id = ?", m.ItemId).Updates(updates).Error; err != nil {
				config.LogError(logger, "distributionWorkflow.go", "ProcessDistributionWorkflow", "persisting item mutation", m, err)
				return err
			}
		}

		// Recount from item state so the counter can never drift from the
		// rows, whatever the plan said.
		allocatedCount, err := models.RecountAllocated(tx, rankingId)
		if err != nil {
			return err
		}
		if allocatedCount != plan.Result.AllocatedCount {
			config.LogWarn(logger, "distributionWorkflow.go", "ProcessDistributionWorkflow", "allocated count drift", map[string]int{
				"planned":   plan.Result.AllocatedCount,
				"recounted": allocatedCount,
			}, "recounted allocation differs from plan")
		}

		now := time.Now().UTC()
		rankingUpdates := map[string]interface{}{
			"allocated_count":       allocatedCount,
			"distribution_executed": true,
			"distributed_at":        now,
			"distributed_by":        executorId,
		}
		if err := tx.Model(&models.Ranking{}).Where("id = ?", rankingId).Updates(rankingUpdates).Error; err != nil {
			return err
		}

		plan.Result.RankingId = rankingId
		result = &plan.Result

		audit.Log(tx, models.AuditEvent{
			RankingId: &rankingId,
			Action:    models.AuditActionDistribution,
			Title:     "Quota matrix distribution executed",
			Level:     models.AuditLevelInfo,
			NewValues: plan.Result,
			Metadata: map[string]interface{}{
				"executor_id": executorId,
				"total_quota": matrix.TotalQuota(),
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
