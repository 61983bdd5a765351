package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
	"github.com/mmcampusware/scholarship_backend/utils"
	"github.com/mmcampusware/scholarship_backend/workflow"
)

func main() {
	rankingID := flag.Int("ranking-id", 0, "Required: ranking id to finalize")
	actorID := flag.Int("actor-id", 0, "Required: acting user id")
	actorName := flag.String("actor-name", "", "Acting user display name for audit entries")
	flag.Parse()

	if *rankingID <= 0 || *actorID <= 0 {
		fmt.Fprintln(os.Stderr, "--ranking-id and --actor-id are required")
		os.Exit(1)
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	audit := models.NewAuditService(logger)

	ctx := utils.SetActorIdInContext(context.Background(), *actorID)
	if *actorName != "" {
		ctx = utils.SetActorNameInContext(ctx, *actorName)
	}
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	if err := workflow.FinalizeRanking(ctx, db, logger, audit, *rankingID, *actorID); err != nil {
		fmt.Fprintf(os.Stderr, "finalize failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ranking %d finalized\n", *rankingID)
}
