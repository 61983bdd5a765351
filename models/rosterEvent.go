package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmcampusware/scholarship_backend/utils"
	"gorm.io/gorm"
)

// RosterEventRecord is the transactional outbox row for roster lifecycle
// events. It is written inside the business transaction; the dispatcher
// publishes it to Pub/Sub after commit.
type RosterEventRecord struct {
	ID              int                 `gorm:"primary_key" json:"id"`
	RosterId        int                 `gorm:"index;not null" json:"roster_id"`
	RosterCode      string              `gorm:"size:64;not null" json:"roster_code"`
	EventType       RosterEventType     `gorm:"size:30;not null" json:"event_type"`
	Payload         []byte              `gorm:"type:json" json:"payload"`
	PublishStatus   OutboxPublishStatus `gorm:"size:15;index;default:PENDING" json:"publish_status"`
	PublishedAt     *time.Time          `json:"published_at"`
	PubSubMessageId *string             `gorm:"size:64" json:"pub_sub_message_id"`
	RetryCount      int                 `json:"retry_count"`
	NextAttemptAt   *time.Time          `gorm:"index" json:"next_attempt_at"`
	LockedAt        *time.Time          `json:"locked_at"`
	LockedBy        *string             `gorm:"size:64" json:"locked_by"`
	LastError       *string             `gorm:"type:text" json:"last_error"`
	CorrelationId   string              `gorm:"size:64" json:"correlation_id"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmitRosterEvent writes the outbox record inside the caller's transaction
// but does NOT publish; publishing happens asynchronously after commit.
func EmitRosterEvent(ctx context.Context, tx *gorm.DB, roster *Roster, eventType RosterEventType, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	record := RosterEventRecord{
		RosterId:      roster.ID,
		RosterCode:    roster.RosterCode,
		EventType:     eventType,
		Payload:       payloadJSON,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
