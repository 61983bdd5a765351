package workflow

import (
	"context"
	"time"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FinalizeRanking freezes the ranking order.
// Two concurrent finalize calls cannot both succeed: the advisory lock plus
// SELECT ... FOR UPDATE on the ranking row serialize them, and the loser fails
// with ErrAlreadyFinalized.
func FinalizeRanking(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, rankingId int, actorId int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRankingLock(tx, rankingId); err != nil {
			return err
		}
		defer ReleaseRankingLock(tx, rankingId)

		ranking, err := models.GetRankingForUpdate(tx, rankingId)
		if err != nil {
			return err
		}
		if ranking.IsFinalized {
			return utils.ErrAlreadyFinalized
		}

		oldRanking := *ranking

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"is_finalized":   true,
			"ranking_status": models.RankingStatusFinalized,
			"finalized_at":   now,
			"finalized_by":   actorId,
		}
		if err := tx.Model(&models.Ranking{}).Where("id = ?", rankingId).Updates(updates).Error; err != nil {
			config.LogError(logger, "finalizeWorkflow.go", "FinalizeRanking", "updating ranking", rankingId, err)
			return err
		}

		ranking.IsFinalized = true
		ranking.RankingStatus = models.RankingStatusFinalized
		ranking.FinalizedAt = &now
		ranking.FinalizedBy = &actorId

		audit.Log(tx, models.AuditEvent{
			RankingId: &rankingId,
			Action:    models.AuditActionFinalize,
			Title:     "Ranking finalized",
			Level:     models.AuditLevelInfo,
			OldValues: &oldRanking,
			NewValues: ranking,
		})
		return nil
	})
}

// ReorderRanking rewrites rank positions from a reorder payload. Rejected
// after finalization; the payload must be a dense permutation of 1..N over
// exactly this ranking's items.
func ReorderRanking(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, rankingId int, newOrder []models.ReorderEntry) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireRankingLock(tx, rankingId); err != nil {
			return err
		}
		defer ReleaseRankingLock(tx, rankingId)

		ranking, err := models.GetRankingForUpdate(tx, rankingId)
		if err != nil {
			return err
		}
		if ranking.IsFinalized {
			return utils.ErrAlreadyFinalized
		}

		items, err := models.ListRankingItems(tx, rankingId, nil)
		if err != nil {
			return err
		}
		if err := models.ValidateReorderPayload(items, newOrder); err != nil {
			return err
		}

		oldPositions := make(map[int]int, len(items))
		for _, item := range items {
			oldPositions[item.ID] = item.RankPosition
		}

		// Two-phase update: park positions in negative space first so the
		// unique (ranking_id, rank_position) index never sees a duplicate
		// mid-rewrite.
		for _, entry := range newOrder {
			if err := tx.Model(&models.RankingItem{}).
				Where("id = ? AND ranking_id = ?", entry.ItemId, rankingId).
				Update("rank_position", -entry.Position).Error; err != nil {
				config.LogError(logger, "finalizeWorkflow.go", "ReorderRanking", "parking positions", entry, err)
				return err
			}
		}
		for _, entry := range newOrder {
			if err := tx.Model(&models.RankingItem{}).
				Where("id = ? AND ranking_id = ?", entry.ItemId, rankingId).
				Update("rank_position", entry.Position).Error; err != nil {
				config.LogError(logger, "finalizeWorkflow.go", "ReorderRanking", "writing positions", entry, err)
				return err
			}
		}

		audit.Log(tx, models.AuditEvent{
			RankingId: &rankingId,
			Action:    models.AuditActionReorder,
			Title:     "Ranking reordered",
			Level:     models.AuditLevelInfo,
			OldValues: oldPositions,
			NewValues: newOrder,
		})
		return nil
	})
}
