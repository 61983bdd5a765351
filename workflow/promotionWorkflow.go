package workflow

import (
	"fmt"
	"sort"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type PromotionResult struct {
	PromotedItemId   int    `json:"promoted_item_id"`
	PromotedStudent  string `json:"promoted_student"`
	OriginalItemId   int    `json:"original_item_id"`
	OriginalStudent  string `json:"original_student"`
	SubType          string `json:"sub_type"`
	BackupPosition   int    `json:"backup_position"`
	IneligibleReason string `json:"ineligible_reason"`
}

type promotionCandidate struct {
	Item           *models.RankingItem
	App            *models.Application
	BackupPosition int
}

// selectAlternate walks candidates in backup order and returns the first one
// passing the whitelist check (when required) and the sub-type's rules
// (unless skipped). Pure; rejections are returned for the audit trail.
func selectAlternate(candidates []promotionCandidate, registry *RuleRegistry, cfg *models.ScholarshipConfiguration, subType string, skipEligibilityCheck bool, whitelistRequired bool) (*promotionCandidate, []string) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].BackupPosition < candidates[j].BackupPosition
	})

	var rejections []string
	for i := range candidates {
		c := &candidates[i]
		if whitelistRequired {
			if ok, reason := (WhitelistRule{}).Evaluate(c.App, nil, cfg); !ok {
				rejections = append(rejections, fmt.Sprintf("%s: %s", c.App.StudentId, reason))
				continue
			}
		}
		if !skipEligibilityCheck && registry != nil {
			passed := true
			for _, rule := range registry.RulesFor(subType) {
				if ok, reason := rule.Evaluate(c.App, nil, cfg); !ok {
					rejections = append(rejections, fmt.Sprintf("%s: %s (%s)", c.App.StudentId, reason, rule.Name()))
					passed = false
					break
				}
			}
			if !passed {
				continue
			}
		}
		return c, rejections
	}
	return nil, rejections
}

// PromoteAlternate rejects the now-ineligible item and promotes its
// highest-priority eligible backup for the vacated sub-type. Returns nil when
// no backup passes; the caller must then exclude the slot. Mutates
// RankingItem state only, never RosterItems, so ranking truth and roster
// truth stay independently auditable.
//
// Runs inside the caller's transaction; the enclosing roster generation
// already holds the ranking lock, so no extra lock is taken here.
func PromoteAlternate(tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, registry *RuleRegistry, item *models.RankingItem, app *models.Application, cfg *models.ScholarshipConfiguration, ineligibleReason string, skipEligibilityCheck bool) (*PromotionResult, error) {
	if item.AllocatedSubType == nil || !item.IsAllocated {
		return nil, utils.ValidationErr("allocated_sub_type", "only an allocated item can vacate a slot")
	}
	vacatedSubType := *item.AllocatedSubType

	// Reject the original first; superseded items are kept, never deleted.
	oldItem := *item
	rejectUpdates := map[string]interface{}{
		"is_allocated":      false,
		"status":            models.RankingItemStatusRejected,
		"allocation_reason": fmt.Sprintf("rejected: %s", ineligibleReason),
	}
	if err := tx.Model(&models.RankingItem{}).Where("id = ?", item.ID).Updates(rejectUpdates).Error; err != nil {
		config.LogError(logger, "promotionWorkflow.go", "PromoteAlternate", "rejecting original item", item.ID, err)
		return nil, err
	}
	item.IsAllocated = false
	item.Status = models.RankingItemStatusRejected
	item.AllocationReason = rejectUpdates["allocation_reason"].(string)

	audit.Log(tx, models.AuditEvent{
		RankingId: &item.RankingId,
		Action:    models.AuditActionStatusChange,
		Title:     fmt.Sprintf("Item %d rejected: %s", item.ID, ineligibleReason),
		Level:     models.AuditLevelWarning,
		OldValues: &oldItem,
		NewValues: item,
	})

	// Collect same-ranking items still waiting that back up the vacated
	// sub-type. The JSON column is filtered in memory after a cheap status
	// pre-filter.
	var waiting []*models.RankingItem
	err := tx.Where("ranking_id = ? AND is_allocated = ? AND status NOT IN ?",
		item.RankingId, false, []models.RankingItemStatus{models.RankingItemStatusRejected, models.RankingItemStatusAllocated}).
		Order("rank_position ASC").
		Find(&waiting).Error
	if err != nil {
		return nil, err
	}

	backups := make([]*models.RankingItem, 0, len(waiting))
	appIds := make([]int, 0, len(waiting))
	for _, w := range waiting {
		if _, ok := w.BackupAllocations.PositionFor(vacatedSubType); ok {
			backups = append(backups, w)
			appIds = append(appIds, w.ApplicationId)
		}
	}
	if len(backups) == 0 {
		return nil, nil
	}

	apps, err := models.GetApplicationsByIds(tx, appIds)
	if err != nil {
		return nil, err
	}

	candidates := make([]promotionCandidate, 0, len(backups))
	for _, b := range backups {
		candidateApp := apps[b.ApplicationId]
		if candidateApp == nil {
			continue
		}
		pos, _ := b.BackupAllocations.PositionFor(vacatedSubType)
		candidates = append(candidates, promotionCandidate{Item: b, App: candidateApp, BackupPosition: pos})
	}

	whitelistRequired := cfg != nil && cfg.WhitelistEnabled && config.WhitelistEnforcement()
	chosen, rejections := selectAlternate(candidates, registry, cfg, vacatedSubType, skipEligibilityCheck, whitelistRequired)
	if chosen == nil {
		audit.Log(tx, models.AuditEvent{
			RankingId: &item.RankingId,
			Action:    models.AuditActionPromotion,
			Title:     fmt.Sprintf("No eligible alternate for %s slot vacated by %s", vacatedSubType, app.StudentId),
			Level:     models.AuditLevelWarning,
			Metadata: map[string]interface{}{
				"rejections": rejections,
			},
		})
		return nil, nil
	}

	oldChosen := *chosen.Item
	promoteReason := fmt.Sprintf("promoted from backup position %d for %s, replacing %s (%s)",
		chosen.BackupPosition, vacatedSubType, app.StudentName, ineligibleReason)
	promoteUpdates := map[string]interface{}{
		"is_allocated":       true,
		"status":             models.RankingItemStatusAllocated,
		"allocated_sub_type": vacatedSubType,
		"allocation_reason":  promoteReason,
	}
	if err := tx.Model(&models.RankingItem{}).Where("id = ?", chosen.Item.ID).Updates(promoteUpdates).Error; err != nil {
		config.LogError(logger, "promotionWorkflow.go", "PromoteAlternate", "promoting alternate", chosen.Item.ID, err)
		return nil, err
	}
	chosen.Item.IsAllocated = true
	chosen.Item.Status = models.RankingItemStatusAllocated
	chosen.Item.AllocatedSubType = &vacatedSubType
	chosen.Item.AllocationReason = promoteReason

	result := &PromotionResult{
		PromotedItemId:   chosen.Item.ID,
		PromotedStudent:  chosen.App.StudentId,
		OriginalItemId:   item.ID,
		OriginalStudent:  app.StudentId,
		SubType:          vacatedSubType,
		BackupPosition:   chosen.BackupPosition,
		IneligibleReason: ineligibleReason,
	}

	audit.Log(tx, models.AuditEvent{
		RankingId: &item.RankingId,
		Action:    models.AuditActionPromotion,
		Title:     fmt.Sprintf("Alternate %s promoted into %s slot", chosen.App.StudentId, vacatedSubType),
		Level:     models.AuditLevelInfo,
		OldValues: &oldChosen,
		NewValues: chosen.Item,
		Metadata: map[string]interface{}{
			"rejections": rejections,
			"result":     result,
		},
	})
	return result, nil
}
