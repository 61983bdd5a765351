package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mmcampusware/scholarship_backend/config"
	"github.com/mmcampusware/scholarship_backend/models"
)

func main() {
	_ = godotenv.Load()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	models.MigrateTable()
	fmt.Println("migration complete")
}
