package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/studentapi"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/mmcampusware/scholarship_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type mapVerifier struct {
	results map[string]studentapi.VerificationResult
}

func (v *mapVerifier) Verify(_ context.Context, studentId string) (studentapi.VerificationResult, error) {
	if r, ok := v.results[studentId]; ok {
		return r, nil
	}
	return studentapi.VerificationResult{Status: models.VerificationStatusVerified}, nil
}

// Full pipeline against real MySQL + Redis: finalize, distribute, generate
// with a mid-batch promotion, then lock. Covers the one-shot and idempotency
// guards that the DB unique key and row locks enforce.
func TestPipeline_FinalizeDistributeGenerateLock(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "scholarship_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	db := config.GetDB()
	if db == nil {
		t.Fatal("database not initialized")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	audit := models.NewAuditService(logger)

	ctx = utils.SetActorIdInContext(ctx, 1)
	ctx = utils.SetActorNameInContext(ctx, "Integration Test")

	cfg := &models.ScholarshipConfiguration{
		Name:            "Merit Scholarship",
		ScholarshipType: "S1",
	}
	if err := db.Create(cfg).Error; err != nil {
		t.Fatalf("seeding configuration: %v", err)
	}

	ranking := &models.Ranking{
		ScholarshipConfigurationId: cfg.ID,
		PeriodLabel:                "2026-ODD",
		SubTypeSet:                 models.StringList{"PPA"},
		TotalQuota:                 2,
	}
	if err := db.Create(ranking).Error; err != nil {
		t.Fatalf("seeding ranking: %v", err)
	}

	amounts := []int64{1200, 1100, 1000}
	for i := 0; i < 3; i++ {
		app := &models.Application{
			ScholarshipConfigurationId: cfg.ID,
			StudentId:                  fmt.Sprintf("STU-%03d", i+1),
			StudentName:                fmt.Sprintf("Student %d", i+1),
			OrgUnit:                    "FMIPA",
			DeclaredSubTypes:           models.StringList{"PPA"},
			ScholarshipAmount:          decimal.NewFromInt(amounts[i]),
		}
		if err := db.Create(app).Error; err != nil {
			t.Fatalf("seeding application %d: %v", i+1, err)
		}
		item := &models.RankingItem{
			RankingId:     ranking.ID,
			ApplicationId: app.ID,
			RankPosition:  i + 1,
			TotalScore:    decimal.NewFromInt(90 - int64(i)),
		}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("seeding ranking item %d: %v", i+1, err)
		}
	}

	if err := workflow.FinalizeRanking(ctx, db, logger, audit, ranking.ID, 1); err != nil {
		t.Fatalf("FinalizeRanking: %v", err)
	}
	if err := workflow.FinalizeRanking(ctx, db, logger, audit, ranking.ID, 1); !errors.Is(err, utils.ErrAlreadyFinalized) {
		t.Fatalf("second finalize: want ErrAlreadyFinalized, got %v", err)
	}

	matrix := models.QuotaMatrix{"PPA": {"FMIPA": 2}}
	result, err := workflow.ProcessDistributionWorkflow(ctx, db, logger, audit, ranking.ID, matrix, 1)
	if err != nil {
		t.Fatalf("ProcessDistributionWorkflow: %v", err)
	}
	if result.AllocatedCount != 2 || result.WaitlistedCount != 1 {
		t.Fatalf("distribution: want 2 allocated / 1 waitlisted, got %d / %d", result.AllocatedCount, result.WaitlistedCount)
	}
	if _, err := workflow.ProcessDistributionWorkflow(ctx, db, logger, audit, ranking.ID, matrix, 1); !errors.Is(err, utils.ErrRankingModification) {
		t.Fatalf("second distribution: want ErrRankingModification, got %v", err)
	}

	// STU-002 graduated since review; the waitlisted STU-003 backs up the
	// PPA/FMIPA cell and should take the slot.
	verifier := &mapVerifier{results: map[string]studentapi.VerificationResult{
		"STU-002": {Status: models.VerificationStatusGraduated, Message: "graduated 2026-01"},
		"STU-101": {Status: models.VerificationStatusWithdrawn, Message: "withdrew 2026-02"},
	}}

	input := workflow.RosterGenerationInput{
		ConfigurationId:     cfg.ID,
		PeriodLabel:         "2026-ODD",
		ActorId:             1,
		RankingId:           ranking.ID,
		VerificationEnabled: utils.NewTrue(),
	}
	roster, err := workflow.GenerateRoster(ctx, db, logger, audit, verifier, input)
	if err != nil {
		t.Fatalf("GenerateRoster: %v", err)
	}
	if roster.Status != models.RosterStatusCompleted {
		t.Fatalf("roster status: want completed, got %s", roster.Status)
	}
	if roster.TotalApplications != 2 || roster.QualifiedCount != 2 {
		t.Fatalf("roster counts: want 2 total / 2 qualified, got %d / %d", roster.TotalApplications, roster.QualifiedCount)
	}
	wantTotal := decimal.NewFromInt(1200 + 1000)
	if !roster.TotalAmount.Equal(wantTotal) {
		t.Fatalf("roster total: want %s, got %s", wantTotal, roster.TotalAmount)
	}

	var items []*models.RosterItem
	if err := db.Where("roster_id = ?", roster.ID).Order("id ASC").Find(&items).Error; err != nil {
		t.Fatalf("loading roster items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("roster items: want 2, got %d", len(items))
	}
	var promoted *models.RosterItem
	for _, item := range items {
		if item.StudentId == "STU-003" {
			promoted = item
		}
		if item.StudentId == "STU-002" {
			t.Fatalf("graduated student must not appear on the roster")
		}
	}
	if promoted == nil || promoted.BackupInfo == nil {
		t.Fatalf("promoted item missing backup provenance: %+v", promoted)
	}
	if promoted.BackupInfo.OriginalStudentId != "STU-002" {
		t.Fatalf("backup provenance: want STU-002, got %s", promoted.BackupInfo.OriginalStudentId)
	}

	// The ranking counter must track allocated rows through promotions.
	var afterGen models.Ranking
	if err := db.First(&afterGen, ranking.ID).Error; err != nil {
		t.Fatalf("reloading ranking: %v", err)
	}
	var allocatedRows int64
	if err := db.Model(&models.RankingItem{}).
		Where("ranking_id = ? AND is_allocated = ?", ranking.ID, true).
		Count(&allocatedRows).Error; err != nil {
		t.Fatalf("counting allocated rows: %v", err)
	}
	if afterGen.AllocatedCount != int(allocatedRows) {
		t.Fatalf("allocated_count drifted: counter %d, rows %d", afterGen.AllocatedCount, allocatedRows)
	}

	// One of two holders failed verification even though the slot was
	// refilled, so the batch audit must escalate past info.
	verifyAction := models.AuditActionStudentVerify
	verifyEntries, err := models.GetAuditEntries(ctx, &roster.ID, nil, &verifyAction)
	if err != nil || len(verifyEntries) != 1 {
		t.Fatalf("verification batch audit: want 1 entry, got %d (err %v)", len(verifyEntries), err)
	}
	if verifyEntries[0].Level != models.AuditLevelError {
		t.Fatalf("verification batch level: want error at 1/2 failed, got %s", verifyEntries[0].Level)
	}

	// The audit trail records the draft -> processing transition.
	statusAction := models.AuditActionStatusChange
	statusEntries, err := models.GetAuditEntries(ctx, &roster.ID, nil, &statusAction)
	if err != nil {
		t.Fatalf("status audit entries: %v", err)
	}
	sawProcessing := false
	for _, e := range statusEntries {
		if strings.Contains(e.Title, "processing") {
			sawProcessing = true
		}
	}
	if !sawProcessing {
		t.Fatalf("no processing transition in audit trail: %+v", statusEntries)
	}

	if _, err := workflow.GenerateRoster(ctx, db, logger, audit, verifier, input); !errors.Is(err, utils.ErrRosterAlreadyExists) {
		t.Fatalf("second generation: want ErrRosterAlreadyExists, got %v", err)
	}

	// Item corrections are allowed while the roster is completed.
	if _, err := models.UpdateRosterItem(db, items[0].ID, map[string]interface{}{
		"bank_account_holder": "Corrected Holder",
	}); err != nil {
		t.Fatalf("UpdateRosterItem on completed roster: %v", err)
	}

	if err := workflow.LockRoster(ctx, db, logger, audit, roster.ID, 1); err != nil {
		t.Fatalf("LockRoster: %v", err)
	}
	if err := workflow.LockRoster(ctx, db, logger, audit, roster.ID, 1); !errors.Is(err, utils.ErrRosterLocked) {
		t.Fatalf("second lock: want ErrRosterLocked, got %v", err)
	}

	// Locked rosters are immutable; item edits and even force regenerate
	// must refuse.
	if _, err := models.UpdateRosterItem(db, items[0].ID, map[string]interface{}{
		"exclusion_reason": "late edit",
	}); !errors.Is(err, utils.ErrRosterLocked) {
		t.Fatalf("UpdateRosterItem on locked roster: want ErrRosterLocked, got %v", err)
	}
	input.ForceRegenerate = true
	if _, err := workflow.GenerateRoster(ctx, db, logger, audit, verifier, input); !errors.Is(err, utils.ErrRosterLocked) {
		t.Fatalf("force over locked roster: want ErrRosterLocked, got %v", err)
	}

	unfilledVacancyKeepsCounterHonest(t, ctx, db, logger, audit, verifier)
}

// A holder who fails verification with nobody left to promote leaves the
// slot vacant; the ranking counter must drop with the rows.
func unfilledVacancyKeepsCounterHonest(t *testing.T, ctx context.Context, db *gorm.DB, logger *logrus.Logger, audit models.Auditor, verifier studentapi.Verifier) {
	t.Helper()

	cfg := &models.ScholarshipConfiguration{
		Name:            "Research Grant",
		ScholarshipType: "S1",
	}
	if err := db.Create(cfg).Error; err != nil {
		t.Fatalf("seeding configuration: %v", err)
	}
	ranking := &models.Ranking{
		ScholarshipConfigurationId: cfg.ID,
		PeriodLabel:                "2026-ODD",
		SubTypeSet:                 models.StringList{"PPA"},
		TotalQuota:                 1,
	}
	if err := db.Create(ranking).Error; err != nil {
		t.Fatalf("seeding ranking: %v", err)
	}
	app := &models.Application{
		ScholarshipConfigurationId: cfg.ID,
		StudentId:                  "STU-101",
		StudentName:                "Student 101",
		OrgUnit:                    "FMIPA",
		DeclaredSubTypes:           models.StringList{"PPA"},
		ScholarshipAmount:          decimal.NewFromInt(900),
	}
	if err := db.Create(app).Error; err != nil {
		t.Fatalf("seeding application: %v", err)
	}
	item := &models.RankingItem{
		RankingId:     ranking.ID,
		ApplicationId: app.ID,
		RankPosition:  1,
		TotalScore:    decimal.NewFromInt(85),
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seeding ranking item: %v", err)
	}

	if err := workflow.FinalizeRanking(ctx, db, logger, audit, ranking.ID, 1); err != nil {
		t.Fatalf("FinalizeRanking: %v", err)
	}
	matrix := models.QuotaMatrix{"PPA": {"FMIPA": 1}}
	if _, err := workflow.ProcessDistributionWorkflow(ctx, db, logger, audit, ranking.ID, matrix, 1); err != nil {
		t.Fatalf("ProcessDistributionWorkflow: %v", err)
	}

	roster, err := workflow.GenerateRoster(ctx, db, logger, audit, verifier, workflow.RosterGenerationInput{
		ConfigurationId:     cfg.ID,
		PeriodLabel:         "2026-ODD",
		ActorId:             1,
		RankingId:           ranking.ID,
		VerificationEnabled: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("GenerateRoster: %v", err)
	}
	if roster.QualifiedCount != 0 || roster.DisqualifiedCount != 1 {
		t.Fatalf("roster counts: want 0 qualified / 1 disqualified, got %d / %d", roster.QualifiedCount, roster.DisqualifiedCount)
	}

	var updated models.Ranking
	if err := db.First(&updated, ranking.ID).Error; err != nil {
		t.Fatalf("reloading ranking: %v", err)
	}
	if updated.AllocatedCount != 0 {
		t.Fatalf("allocated_count after unfilled vacancy: want 0, got %d", updated.AllocatedCount)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("scholarship-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("scholarship-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=scholarship_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
