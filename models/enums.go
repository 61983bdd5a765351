package models

type RankingStatus string

const (
	RankingStatusDraft     RankingStatus = "draft"
	RankingStatusReview    RankingStatus = "review"
	RankingStatusFinalized RankingStatus = "finalized"
)

type RankingItemStatus string

const (
	RankingItemStatusRanked     RankingItemStatus = "ranked"
	RankingItemStatusAllocated  RankingItemStatus = "allocated"
	RankingItemStatusRejected   RankingItemStatus = "rejected"
	RankingItemStatusWaitlisted RankingItemStatus = "waitlisted"
)

type RosterStatus string

const (
	RosterStatusDraft      RosterStatus = "draft"
	RosterStatusProcessing RosterStatus = "processing"
	RosterStatusCompleted  RosterStatus = "completed"
	RosterStatusLocked     RosterStatus = "locked"
	RosterStatusFailed     RosterStatus = "failed"
)

type RosterTriggerType string

const (
	RosterTriggerTypeManual    RosterTriggerType = "manual"
	RosterTriggerTypeScheduled RosterTriggerType = "scheduled"
	RosterTriggerTypeDryRun    RosterTriggerType = "dry_run"
)

type VerificationStatus string

const (
	VerificationStatusVerified  VerificationStatus = "verified"
	VerificationStatusGraduated VerificationStatus = "graduated"
	VerificationStatusSuspended VerificationStatus = "suspended"
	VerificationStatusWithdrawn VerificationStatus = "withdrawn"
	VerificationStatusApiError  VerificationStatus = "api_error"
	VerificationStatusNotFound  VerificationStatus = "not_found"
)

type AuditAction string

const (
	AuditActionCreate        AuditAction = "create"
	AuditActionStatusChange  AuditAction = "status_change"
	AuditActionFinalize      AuditAction = "finalize"
	AuditActionReorder       AuditAction = "reorder"
	AuditActionDistribution  AuditAction = "distribution"
	AuditActionPromotion     AuditAction = "promotion"
	AuditActionStudentVerify AuditAction = "student_verify"
	AuditActionLock          AuditAction = "lock"
	AuditActionExport        AuditAction = "export"
	AuditActionDownload      AuditAction = "download"
)

type AuditLevel string

const (
	AuditLevelInfo     AuditLevel = "info"
	AuditLevelWarning  AuditLevel = "warning"
	AuditLevelError    AuditLevel = "error"
	AuditLevelCritical AuditLevel = "critical"
)

type RosterEventType string

const (
	RosterEventTypeCompleted RosterEventType = "roster.completed"
	RosterEventTypeLocked    RosterEventType = "roster.locked"
)

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusPublished  OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
