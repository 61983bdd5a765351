package models

import (
	"log"

	"github.com/mmcampusware/scholarship_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ScholarshipConfiguration{},
		&Application{},
		&Ranking{}, &RankingItem{},
		&Roster{}, &RosterItem{},
		&AuditLogEntry{},
		&RosterEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
