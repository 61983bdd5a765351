package main

import (
	"context"
	"encoding/json"
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
	rankingID := flag.Int("ranking-id", 0, "Required: finalized ranking id")
	actorID := flag.Int("actor-id", 0, "Required: acting user id")
	matrixPath := flag.String("matrix", "", "Required: path to quota matrix JSON ({\"subType\":{\"orgUnit\":quota}})")
	flag.Parse()

	if *rankingID <= 0 || *actorID <= 0 || *matrixPath == "" {
		fmt.Fprintln(os.Stderr, "--ranking-id, --actor-id and --matrix are required")
		os.Exit(1)
	}

	raw, err := os.ReadFile(*matrixPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading matrix file: %v\n", err)
		os.Exit(1)
	}
	var matrix models.QuotaMatrix
	if err := json.Unmarshal(raw, &matrix); err != nil {
		fmt.Fprintf(os.Stderr, "parsing matrix file: %v\n", err)
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
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	result, err := workflow.ProcessDistributionWorkflow(ctx, db, logger, audit, *rankingID, matrix, *actorID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "distribution failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("distribution complete: %d allocated, %d waitlisted\n", result.AllocatedCount, result.WaitlistedCount)
	for _, cell := range result.Cells {
		fmt.Printf("  %s/%s: %d/%d\n", cell.SubType, cell.OrgUnit, cell.Allocated, cell.Quota)
	}
}
