package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
)

func main() {
	rosterID := flag.Int("roster-id", 0, "Optional: filter by roster id")
	rankingID := flag.Int("ranking-id", 0, "Optional: filter by ranking id")
	action := flag.String("action", "", "Optional: filter by action (create, promotion, lock, ...)")
	flag.Parse()

	if *rosterID <= 0 && *rankingID <= 0 {
		fmt.Fprintln(os.Stderr, "--roster-id or --ranking-id is required")
		os.Exit(1)
	}

	_ = godotenv.Load()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	var actionFilter *models.AuditAction
	if *action != "" {
		a := models.AuditAction(*action)
		actionFilter = &a
	}

	entries, err := models.GetAuditEntries(context.Background(), rosterID, rankingID, actionFilter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading audit entries: %v\n", err)
		os.Exit(1)
	}

	for _, e := range entries {
		fmt.Printf("%s  [%s] %-14s actor=%d  %s\n",
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Level, e.Action, e.ActorId, e.Title)
	}
	fmt.Printf("%d entries\n", len(entries))
}
