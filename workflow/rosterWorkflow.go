package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/studentapi"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

// errDryRunRollback forces the dry-run transaction to roll back after the
// counts have been computed.
var errDryRunRollback = errors.New("dry run rollback")

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

type RosterGenerationInput struct {
	ConfigurationId     int                      `json:"configuration_id" validate:"required,min=1"`
	PeriodLabel         string                   `json:"period_label" validate:"required"`
	Cycle               string                   `json:"cycle"`
	AcademicYear        string                   `json:"academic_year"`
	ActorId             int                      `json:"actor_id" validate:"required,min=1"`
	VerificationEnabled *bool                    `json:"verification_enabled"`
	RankingId           int                      `json:"ranking_id" validate:"required,min=1"`
	TriggerType         models.RosterTriggerType `json:"trigger_type"`
	ForceRegenerate     bool                     `json:"force_regenerate"`
}

// GenerateRoster turns a distributed ranking into a persisted payment roster.
//
// Status machine: draft -> processing -> {completed | failed}; completed ->
// locked (one-way). Idempotent under retry: a second call for the same scope
// fails with ErrRosterAlreadyExists and writes nothing. Per-student
// verification failures are isolated; they degrade the slot, never the batch.
func GenerateRoster(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier, input RosterGenerationInput) (*models.Roster, error) {
	if err := validate.Struct(input); err != nil {
		return nil, utils.ValidationErr("input", fmt.Sprintf("%v", utils.ProcessValidationErrors(err)))
	}
	if input.TriggerType == "" {
		input.TriggerType = models.RosterTriggerTypeManual
	}

	verificationEnabled := config.VerificationEnabledDefault()
	if input.VerificationEnabled != nil {
		verificationEnabled = *input.VerificationEnabled
	}
	if verificationEnabled && verifier == nil {
		return nil, utils.ValidationErr("verifier", "verification enabled but no verifier configured")
	}

	// Best-effort cross-instance guard; the DB unique key on active_key is
	// the authoritative backstop.
	if locker := config.GetRedisLock(); locker != nil {
		lockKey := fmt.Sprintf("roster:%d:%s", input.ConfigurationId, input.PeriodLabel)
		lock, err := locker.Obtain(ctx, lockKey, 2*time.Minute, nil)
		if err != nil {
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, utils.ErrGenerationInProgress
			}
			config.LogWarn(logger, "rosterWorkflow.go", "GenerateRoster", "obtaining redis lock; continuing on DB backstop", lockKey, err.Error())
		} else {
			defer lock.Release(context.WithoutCancel(ctx))
		}
	}

	if input.TriggerType == models.RosterTriggerTypeDryRun {
		return dryRunRoster(ctx, db, logger, audit, verifier, input, verificationEnabled)
	}

	// Phase 1: claim the scope. The roster header survives a later build
	// failure so processing -> failed is a real, queryable state.
	var roster *models.Roster
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		roster, err = claimRosterScope(tx, logger, audit, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Phase 2: build items and complete. All item writes and ranking
	// mutations commit or roll back together.
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return buildAndCompleteRoster(ctx, tx, logger, audit, verifier, roster, input, verificationEnabled)
	})
	if err != nil {
		markRosterFailed(ctx, db, logger, audit, roster, err)
		return nil, err
	}
	return roster, nil
}

// claimRosterScope verifies preconditions and inserts the processing roster
// header, claiming the (configuration, period) scope via active_key.
func claimRosterScope(tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, input RosterGenerationInput) (*models.Roster, error) {
	ranking, err := models.GetRanking(tx, input.RankingId)
	if err != nil {
		return nil, err
	}
	if !ranking.DistributionExecuted {
		return nil, utils.ErrDistributionNotExecuted
	}
	if _, err := models.GetScholarshipConfiguration(tx, input.ConfigurationId); err != nil {
		return nil, err
	}

	existing, err := models.FindActiveRoster(tx, input.ConfigurationId, input.PeriodLabel)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !input.ForceRegenerate {
			return nil, utils.ErrRosterAlreadyExists
		}
		if err := supersedeRoster(tx, audit, existing, input.ActorId); err != nil {
			return nil, err
		}
	}

	return createProcessingRoster(tx, logger, audit, input)
}

func dryRunRoster(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier, input RosterGenerationInput, verificationEnabled bool) (*models.Roster, error) {
	var roster *models.Roster
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		roster, err = claimRosterScope(tx, logger, audit, input)
		if err != nil {
			return err
		}
		if err := buildAndCompleteRoster(ctx, tx, logger, audit, verifier, roster, input, verificationEnabled); err != nil {
			return err
		}
		return errDryRunRollback
	})
	if errors.Is(err, errDryRunRollback) {
		// Counts survive in memory; nothing was persisted.
		return roster, nil
	}
	if err != nil {
		return nil, err
	}
	return roster, nil
}

func buildAndCompleteRoster(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier, roster *models.Roster, input RosterGenerationInput, verificationEnabled bool) error {
	if err := AcquireRankingLock(tx, input.RankingId); err != nil {
		return err
	}
	defer ReleaseRankingLock(tx, input.RankingId)

	ranking, err := models.GetRankingForUpdate(tx, input.RankingId)
	if err != nil {
		return err
	}
	if !ranking.DistributionExecuted {
		return utils.ErrDistributionNotExecuted
	}
	cfg, err := models.GetScholarshipConfiguration(tx, input.ConfigurationId)
	if err != nil {
		return err
	}

	registry := DefaultRuleRegistry(cfg)
	outcome, err := buildRosterItems(ctx, tx, logger, audit, verifier, registry, roster, ranking, cfg, verificationEnabled)
	if err != nil {
		return err
	}

	// Promotions reject holders without always refilling the slot, so the
	// ranking counter is recomputed from the rows before commit.
	allocatedCount, err := models.RecountAllocated(tx, ranking.ID)
	if err != nil {
		return err
	}
	if allocatedCount != ranking.AllocatedCount {
		if err := tx.Model(&models.Ranking{}).Where("id = ?", ranking.ID).
			Update("allocated_count", allocatedCount).Error; err != nil {
			return err
		}
		ranking.AllocatedCount = allocatedCount
	}

	roster.TotalApplications = outcome.TotalApplications
	roster.QualifiedCount = outcome.QualifiedCount
	roster.DisqualifiedCount = outcome.DisqualifiedCount
	roster.FailedCount = outcome.FailedCount
	roster.TotalAmount = outcome.TotalAmount
	roster.Status = models.RosterStatusCompleted

	updates := map[string]interface{}{
		"total_applications": roster.TotalApplications,
		"qualified_count":    roster.QualifiedCount,
		"disqualified_count": roster.DisqualifiedCount,
		"failed_count":       roster.FailedCount,
		"total_amount":       roster.TotalAmount,
		"status":             models.RosterStatusCompleted,
	}
	if err := tx.Model(&models.Roster{}).Where("id = ?", roster.ID).Updates(updates).Error; err != nil {
		return err
	}

	audit.Log(tx, models.AuditEvent{
		RosterId:  &roster.ID,
		Action:    models.AuditActionStatusChange,
		Title:     fmt.Sprintf("Roster %s completed: %d qualified, %d disqualified", roster.RosterCode, roster.QualifiedCount, roster.DisqualifiedCount),
		Level:     models.AuditLevelInfo,
		NewValues: roster,
	})
	if err := models.EmitRosterEvent(ctx, tx, roster, models.RosterEventTypeCompleted, roster); err != nil {
		return err
	}

	if config.RosterAutoLock() || cfg.AutoLockRoster {
		if err := lockRosterInTx(ctx, tx, audit, roster, input.ActorId); err != nil {
			return err
		}
	}
	return nil
}

func createProcessingRoster(tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, input RosterGenerationInput) (*models.Roster, error) {
	activeKey := models.RosterActiveKey(input.ConfigurationId, input.PeriodLabel)
	roster := &models.Roster{
		RosterCode:                 models.NewRosterCode(input.ConfigurationId, input.PeriodLabel),
		ScholarshipConfigurationId: input.ConfigurationId,
		PeriodLabel:                input.PeriodLabel,
		ActiveKey:                  &activeKey,
		Cycle:                      input.Cycle,
		AcademicYear:               input.AcademicYear,
		Status:                     models.RosterStatusDraft,
		TriggerType:                input.TriggerType,
		RankingId:                  input.RankingId,
		GeneratedBy:                input.ActorId,
	}
	if err := tx.Create(roster).Error; err != nil {
		if isDuplicateKeyErr(err) {
			// Lost the insert race to a concurrent generator.
			return nil, utils.ErrRosterAlreadyExists
		}
		config.LogError(logger, "rosterWorkflow.go", "createProcessingRoster", "inserting roster", input, err)
		return nil, err
	}

	audit.Log(tx, models.AuditEvent{
		RosterId:  &roster.ID,
		Action:    models.AuditActionCreate,
		Title:     fmt.Sprintf("Roster %s created (%s)", roster.RosterCode, roster.TriggerType),
		Level:     models.AuditLevelInfo,
		NewValues: roster,
	})

	draftCopy := *roster
	if err := tx.Model(&models.Roster{}).Where("id = ?", roster.ID).
		Update("status", models.RosterStatusProcessing).Error; err != nil {
		return nil, err
	}
	roster.Status = models.RosterStatusProcessing
	audit.Log(tx, models.AuditEvent{
		RosterId:  &roster.ID,
		Action:    models.AuditActionStatusChange,
		Title:     fmt.Sprintf("Roster %s processing", roster.RosterCode),
		Level:     models.AuditLevelInfo,
		OldValues: &draftCopy,
		NewValues: roster,
	})
	return roster, nil
}

func supersedeRoster(tx *gorm.DB, audit models.Auditor, old *models.Roster, actorId int) error {
	if err := old.EnsureMutable(); err != nil {
		return err
	}
	oldCopy := *old
	// Supersession clears the active key and flags the batch; rows are kept,
	// never deleted.
	updates := map[string]interface{}{
		"active_key":     nil,
		"status":         models.RosterStatusFailed,
		"failure_reason": fmt.Sprintf("superseded by force regenerate (actor %d)", actorId),
	}
	if err := tx.Model(&models.Roster{}).Where("id = ?", old.ID).Updates(updates).Error; err != nil {
		return err
	}
	audit.Log(tx, models.AuditEvent{
		RosterId:  &old.ID,
		Action:    models.AuditActionStatusChange,
		Title:     fmt.Sprintf("Roster %s superseded by force regenerate", old.RosterCode),
		Level:     models.AuditLevelWarning,
		OldValues: &oldCopy,
	})
	return nil
}

// markRosterFailed records the failure on the surviving roster header and
// releases the scope claim so a retry can run.
func markRosterFailed(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, roster *models.Roster, cause error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":         models.RosterStatusFailed,
			"failure_reason": cause.Error(),
			"active_key":     nil,
		}
		if err := tx.Model(&models.Roster{}).Where("id = ?", roster.ID).Updates(updates).Error; err != nil {
			return err
		}
		audit.Log(tx, models.AuditEvent{
			RosterId: &roster.ID,
			Action:   models.AuditActionStatusChange,
			Title:    fmt.Sprintf("Roster %s failed: %v", roster.RosterCode, cause),
			Level:    models.AuditLevelError,
		})
		return nil
	})
	if err != nil {
		config.LogError(logger, "rosterWorkflow.go", "markRosterFailed", "recording roster failure", roster.RosterCode, err)
	}
	roster.Status = models.RosterStatusFailed
	roster.FailureReason = cause.Error()
}

type rosterBuildOutcome struct {
	TotalApplications int
	QualifiedCount    int
	DisqualifiedCount int
	FailedCount       int
	// NonVerifiedCount counts every verification call that did not come back
	// verified, including holders later replaced by a promoted alternate.
	NonVerifiedCount int
	TotalAmount      decimal.Decimal
}

// buildRosterItems walks every allocated item, re-verifies student status and
// snapshots the surviving students into RosterItems.
func buildRosterItems(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier, registry *RuleRegistry, roster *models.Roster, ranking *models.Ranking, cfg *models.ScholarshipConfiguration, verificationEnabled bool) (*rosterBuildOutcome, error) {
	items, err := models.AllocatedRankingItems(tx, ranking.ID)
	if err != nil {
		return nil, err
	}

	appIds := make([]int, 0, len(items))
	for _, item := range items {
		appIds = append(appIds, item.ApplicationId)
	}
	apps, err := models.GetApplicationsByIds(tx, utils.UniqueSlice(appIds))
	if err != nil {
		return nil, err
	}

	outcome := &rosterBuildOutcome{TotalApplications: len(items)}
	var rosterItems []*models.RosterItem

	for _, item := range items {
		app := apps[item.ApplicationId]
		if app == nil {
			return nil, utils.ValidationErr("application_id", fmt.Sprintf("ranking item %d has no application", item.ID))
		}

		row, err := resolveSlot(ctx, tx, logger, audit, verifier, registry, roster, item, app, cfg, verificationEnabled, outcome)
		if err != nil {
			return nil, err
		}
		rosterItems = append(rosterItems, row)
	}

	for _, row := range rosterItems {
		if err := tx.Create(row).Error; err != nil {
			config.LogError(logger, "rosterWorkflow.go", "buildRosterItems", "inserting roster item", row.StudentId, err)
			return nil, err
		}
	}

	outcome.TotalAmount = models.SumIncludedAmounts(rosterItems)

	audit.Log(tx, models.AuditEvent{
		RosterId: &roster.ID,
		Action:   models.AuditActionStudentVerify,
		Title:    fmt.Sprintf("Verification batch: %d/%d failed", outcome.NonVerifiedCount, outcome.TotalApplications),
		Level:    models.VerificationBatchLevel(outcome.NonVerifiedCount, outcome.TotalApplications),
		Metadata: map[string]interface{}{
			"total":     outcome.TotalApplications,
			"failed":    outcome.NonVerifiedCount,
			"excluded":  outcome.DisqualifiedCount,
			"api_error": outcome.FailedCount,
			"enabled":   verificationEnabled,
		},
	})
	return outcome, nil
}

// resolveSlot settles one allocated slot: verify the holder, promote
// alternates while holders keep failing, and produce exactly one RosterItem.
// Promotion preserves the allocation count or the slot is excluded outright.
func resolveSlot(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier, registry *RuleRegistry, roster *models.Roster, item *models.RankingItem, app *models.Application, cfg *models.ScholarshipConfiguration, verificationEnabled bool, outcome *rosterBuildOutcome) (*models.RosterItem, error) {
	current := item
	currentApp := app
	var backupInfo *models.BackupInfo

	for {
		status := models.VerificationStatusVerified
		message := ""

		if verificationEnabled {
			result, err := verifier.Verify(ctx, currentApp.StudentId)
			if err != nil {
				// Transport failure after retries: degrade this slot only.
				outcome.FailedCount++
				outcome.DisqualifiedCount++
				outcome.NonVerifiedCount++
				config.LogError(logger, "rosterWorkflow.go", "resolveSlot", "student verification call failed", currentApp.StudentId, err)
				return excludedRosterItem(roster, current, currentApp, models.VerificationStatusApiError, err.Error(), backupInfo), nil
			}
			status = result.Status
			message = result.Message
		}

		if status == models.VerificationStatusVerified {
			outcome.QualifiedCount++
			row := snapshotRosterItem(roster, current, currentApp)
			row.VerificationStatus = models.VerificationStatusVerified
			row.VerificationMessage = message
			row.IsIncluded = true
			row.BackupInfo = backupInfo
			return row, nil
		}

		// Holder failed verification: try the backup list for this slot.
		// Drop the cached snapshot so a force regenerate after a registry
		// correction sees fresh data.
		outcome.NonVerifiedCount++
		studentapi.InvalidateCached(currentApp.StudentId)
		reason := message
		if reason == "" {
			reason = string(status)
		}
		promotion, err := PromoteAlternate(tx, logger, audit, registry, current, currentApp, cfg, reason, false)
		if err != nil {
			return nil, err
		}
		if promotion == nil {
			outcome.DisqualifiedCount++
			return excludedRosterItem(roster, current, currentApp, status, reason, backupInfo), nil
		}

		// Re-verify the promoted alternate on the next pass. Each pass
		// permanently rejects one holder so the loop terminates.
		var promoted models.RankingItem
		if err := tx.First(&promoted, promotion.PromotedItemId).Error; err != nil {
			return nil, err
		}
		promotedApp, err := models.GetApplication(tx, promoted.ApplicationId)
		if err != nil {
			return nil, err
		}
		backupInfo = &models.BackupInfo{
			OriginalStudentId:   app.StudentId,
			OriginalStudentName: app.StudentName,
			BackupPosition:      promotion.BackupPosition,
			PromotedReason:      reason,
		}
		current = &promoted
		currentApp = promotedApp
	}
}

func snapshotRosterItem(roster *models.Roster, item *models.RankingItem, app *models.Application) *models.RosterItem {
	subType := ""
	if item.AllocatedSubType != nil {
		subType = *item.AllocatedSubType
	}
	return &models.RosterItem{
		RosterId:          roster.ID,
		RankingItemId:     item.ID,
		ApplicationId:     app.ID,
		StudentId:         app.StudentId,
		StudentName:       app.StudentName,
		NationalId:        app.NationalId,
		BankCode:          app.BankCode,
		BankAccountNumber: app.BankAccountNumber,
		BankAccountHolder: app.BankAccountHolder,
		SubType:           subType,
		OrgUnit:           app.OrgUnit,
		ScholarshipAmount: app.ScholarshipAmount,
	}
}

func excludedRosterItem(roster *models.Roster, item *models.RankingItem, app *models.Application, status models.VerificationStatus, reason string, backupInfo *models.BackupInfo) *models.RosterItem {
	row := snapshotRosterItem(roster, item, app)
	row.VerificationStatus = status
	row.VerificationMessage = reason
	row.IsIncluded = false
	row.ExclusionReason = reason
	row.BackupInfo = backupInfo
	return row
}

// LockRoster moves a completed roster to its terminal locked state.
func LockRoster(ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, rosterId int, actorId int) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		roster, err := models.GetRoster(tx, rosterId)
		if err != nil {
			return err
		}
		if roster.Status == models.RosterStatusLocked {
			return utils.ErrRosterLocked
		}
		if roster.Status != models.RosterStatusCompleted {
			return utils.ErrRosterNotCompleted
		}
		return lockRosterInTx(ctx, tx, audit, roster, actorId)
	})
}

func lockRosterInTx(ctx context.Context, tx *gorm.DB, audit models.Auditor, roster *models.Roster, actorId int) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":    models.RosterStatusLocked,
		"locked_at": now,
		"locked_by": actorId,
	}
	if err := tx.Model(&models.Roster{}).Where("id = ?", roster.ID).Updates(updates).Error; err != nil {
		return err
	}
	oldRoster := *roster
	roster.Status = models.RosterStatusLocked
	roster.LockedAt = &now
	roster.LockedBy = &actorId

	audit.Log(tx, models.AuditEvent{
		RosterId:  &roster.ID,
		Action:    models.AuditActionLock,
		Title:     fmt.Sprintf("Roster %s locked", roster.RosterCode),
		Level:     models.AuditLevelInfo,
		OldValues: &oldRoster,
		NewValues: roster,
	})
	return models.EmitRosterEvent(ctx, tx, roster, models.RosterEventTypeLocked, roster)
}
