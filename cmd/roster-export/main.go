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
	"github.com/mmcampusware/scholarship_backend/utils"
	"gorm.io/gorm"
)

func main() {
	rosterID := flag.Int("roster-id", 0, "Required: roster id to export")
	actorID := flag.Int("actor-id", 0, "Required: acting user id")
	outPath := flag.String("out", "", "Optional: output path (default roster-<code>.xlsx)")
	flag.Parse()

	if *rosterID <= 0 || *actorID <= 0 {
		fmt.Fprintln(os.Stderr, "--roster-id and --actor-id are required")
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

	export, err := models.GetRosterForExport(db, *rosterID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading roster: %v\n", err)
		os.Exit(1)
	}

	filename := strings.TrimSpace(*outPath)
	if filename == "" {
		filename = fmt.Sprintf("roster-%s.xlsx", export.Roster.RosterCode)
	}
	if err := models.ExportRosterToExcel(export, filename); err != nil {
		fmt.Fprintf(os.Stderr, "writing spreadsheet: %v\n", err)
		os.Exit(1)
	}

	ctx := utils.SetActorIdInContext(context.Background(), *actorID)
	ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		audit.Log(tx, models.AuditEvent{
			RosterId: &export.Roster.ID,
			Action:   models.AuditActionExport,
			Title:    fmt.Sprintf("Roster %s exported to %s", export.Roster.RosterCode, filename),
			Level:    models.AuditLevelInfo,
		})
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "recording export: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("exported %d rows to %s\n", len(export.Items), filename)
}
