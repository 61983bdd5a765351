package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/studentapi"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/mmcampusware/scholarship_backend/workflow"
)

func main() {
	configID := flag.Int("config-id", 0, "Required: scholarship configuration id")
	periodLabel := flag.String("period", "", "Required: period label (e.g. 2026-ODD)")
	cycle := flag.String("cycle", "", "Optional: disbursement cycle")
	academicYear := flag.String("year", "", "Optional: academic year")
	rankingID := flag.Int("ranking-id", 0, "Required: distributed ranking id")
	actorID := flag.Int("actor-id", 0, "Required: acting user id")
	actorName := flag.String("actor-name", "", "Acting user display name for audit entries")
	force := flag.Bool("force", false, "Supersede an existing active roster for the scope")
	dryRun := flag.Bool("dry-run", false, "Compute counts without persisting anything")
	noVerify := flag.Bool("no-verify", false, "Skip student registry verification")
	lock := flag.Bool("lock", false, "Lock the roster after a successful generation")
	flag.Parse()

	if *configID <= 0 || strings.TrimSpace(*periodLabel) == "" || *rankingID <= 0 || *actorID <= 0 {
		fmt.Fprintln(os.Stderr, "--config-id, --period, --ranking-id and --actor-id are required")
		os.Exit(1)
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	audit := models.NewAuditService(logger)

	var verifier studentapi.Verifier
	if !*noVerify {
		var err error
		verifier, err = studentapi.NewClient()
		if err != nil {
			fmt.Fprintf(os.Stderr, "student api client: %v\n", err)
			os.Exit(1)
		}
	}

	input := workflow.RosterGenerationInput{
		ConfigurationId: *configID,
		PeriodLabel:     strings.TrimSpace(*periodLabel),
		Cycle:           *cycle,
		AcademicYear:    *academicYear,
		ActorId:         *actorID,
		RankingId:       *rankingID,
		TriggerType:     models.RosterTriggerTypeManual,
		ForceRegenerate: *force,
	}
	if *noVerify {
		input.VerificationEnabled = utils.NewFalse()
	}
	if *dryRun {
		input.TriggerType = models.RosterTriggerTypeDryRun
	}

	ctx := utils.SetActorIdInContext(context.Background(), *actorID)
	if *actorName != "" {
		ctx = utils.SetActorNameInContext(ctx, *actorName)
	}
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	roster, err := workflow.GenerateRoster(ctx, db, logger, audit, verifier, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "roster generation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("roster %s (%s): %d qualified, %d disqualified, %d api errors, total %s\n",
		roster.RosterCode, roster.Status, roster.QualifiedCount, roster.DisqualifiedCount, roster.FailedCount, roster.TotalAmount.StringFixed(2))

	if *lock && !*dryRun && roster.Status == models.RosterStatusCompleted {
		if err := workflow.LockRoster(ctx, db, logger, audit, roster.ID, *actorID); err != nil {
			fmt.Fprintf(os.Stderr, "lock failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("roster %s locked\n", roster.RosterCode)
	}
}
