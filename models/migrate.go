package models

import (
	"log"

	"bitbucket.org/mmdatafocus/portfolio_backend/config"
)

func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		log.Printf("migrate skipped: db is nil")
		return
	}

	err := db.AutoMigrate(
		&Business{},
		&User{},
		&Employee{},
		&Client{},
		&Project{},
		&ProjectTask{},
		&EffortEntry{},
		&ResourceBooking{},
		&OrbitClientRecord{},
		&OrbitProjectRecord{},
		&OrbitEmployeeRecord{},
		&OrbitTaskRecord{},
		&OrbitTimeEntryRecord{},
		&SyncRun{},
		&SyncError{},
	)
	if err != nil {
		log.Printf("auto migrate failed: %v", err)
	}
}
