package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/quailyquaily/taskmorph/db/models"
)

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil gorm db")
	}
	return gdb.AutoMigrate(
		&models.Project{},
		&models.Task{},
		&models.UserSettings{},
		&models.AiSettings{},
		&models.ChatMessage{},
	)
}
