package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuditLogEntry is append-only: never updated, never deleted.
type AuditLogEntry struct {
	ID            int         `gorm:"primary_key" json:"id"`
	RosterId      *int        `gorm:"index" json:"roster_id"`
	RankingId     *int        `gorm:"index" json:"ranking_id"`
	Action        AuditAction `gorm:"size:30;not null" json:"action"`
	Title         string      `gorm:"size:255;not null" json:"title"`
	Level         AuditLevel  `gorm:"size:10;not null" json:"level"`
	OldValues     string      `gorm:"type:text" json:"old_values"`
	NewValues     string      `gorm:"type:text" json:"new_values"`
	Metadata      string      `gorm:"type:text" json:"metadata"`
	ActorId       int         `gorm:"index" json:"actor_id"`
	ActorName     string      `gorm:"size:100" json:"actor_name"`
	CorrelationId string      `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"created_at"`
}

// AuditEvent is one state change to record. Old/New/Metadata are marshaled
// at write time.
type AuditEvent struct {
	RosterId  *int
	RankingId *int
	Action    AuditAction
	Title     string
	Level     AuditLevel
	OldValues interface{}
	NewValues interface{}
	Metadata  map[string]interface{}
}

// Auditor is the injected audit collaborator. Implementations must never
// surface an error into the calling business operation.
type Auditor interface {
	Log(tx *gorm.DB, event AuditEvent)
}

// AuditService writes entries inside the caller's transaction. A failed
// write degrades to the logrus fallback sink and is swallowed.
type AuditService struct {
	fallback *logrus.Logger
}

func NewAuditService(fallback *logrus.Logger) *AuditService {
	if fallback == nil {
		fallback = config.GetLogger()
	}
	return &AuditService{fallback: fallback}
}

func (s *AuditService) Log(tx *gorm.DB, event AuditEvent) {
	if event.Level == "" {
		event.Level = AuditLevelInfo
	}

	oldJSON, _ := json.Marshal(event.OldValues)
	newJSON, _ := json.Marshal(event.NewValues)
	metaJSON, _ := json.Marshal(event.Metadata)

	entry := AuditLogEntry{
		RosterId:  event.RosterId,
		RankingId: event.RankingId,
		Action:    event.Action,
		Title:     event.Title,
		Level:     event.Level,
		OldValues: string(oldJSON),
		NewValues: string(newJSON),
		Metadata:  string(metaJSON),
	}

	ctx := tx.Statement.Context
	if actorId, ok := utils.GetActorIdFromContext(ctx); ok {
		entry.ActorId = actorId
	}
	if actorName, ok := utils.GetActorNameFromContext(ctx); ok {
		entry.ActorName = actorName
	}
	if correlationId, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		entry.CorrelationId = correlationId
	}

	if err := tx.Create(&entry).Error; err != nil {
		// Audit must not break the business operation; keep the record in
		// the fallback sink instead.
		s.fallback.WithFields(logrus.Fields{
			"module":   "auditLog.go",
			"funcName": "Log",
			"action":   string(event.Action),
			"title":    event.Title,
			"level":    string(event.Level),
			"oldJSON":  string(oldJSON),
			"newJSON":  string(newJSON),
		}).Error("audit write failed: " + err.Error())
	}
}

// NoopAuditor discards events; used in tests.
type NoopAuditor struct{}

func (NoopAuditor) Log(tx *gorm.DB, event AuditEvent) {}

// VerificationBatchLevel derives the audit level of a verification batch from
// its failure ratio: >30% error, >10% warning, else info.
func VerificationBatchLevel(failed, total int) AuditLevel {
	if total <= 0 || failed <= 0 {
		return AuditLevelInfo
	}
	ratio := float64(failed) / float64(total)
	switch {
	case ratio > 0.30:
		return AuditLevelError
	case ratio > 0.10:
		return AuditLevelWarning
	default:
		return AuditLevelInfo
	}
}

// GetAuditEntries lists entries for a roster or ranking, newest first.
func GetAuditEntries(ctx context.Context, rosterId *int, rankingId *int, action *AuditAction) ([]*AuditLogEntry, error) {
	db := config.GetDB()
	var results []*AuditLogEntry

	dbCtx := db.WithContext(ctx)
	if rosterId != nil && *rosterId > 0 {
		dbCtx = dbCtx.Where("roster_id = ?", *rosterId)
	}
	if rankingId != nil && *rankingId > 0 {
		dbCtx = dbCtx.Where("ranking_id = ?", *rankingId)
	}
	if action != nil && *action != "" {
		dbCtx = dbCtx.Where("action = ?", *action)
	}
	if err := dbCtx.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
