package models

import (
	"log"

	"github.com/mmdatafocus/voicebill_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Client{},
		&Document{}, &LineItem{},
		&TransformJob{},
		&ReviewSession{},
		&DocumentEvent{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
