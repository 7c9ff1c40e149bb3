package repository

import (
	"mun_dashboard/internal/repository/models"
	"mun_dashboard/internal/storage"
)

type Repositories struct {
	Document DocumentRepository
	Activity ActivityRepository
}

func NewRepositories(db *storage.Database) *Repositories {
	return &Repositories{
		Document: NewDocumentRepository(db),
		Activity: NewActivityRepository(db),
	}
}

// Migrate 建立或更新資料表
func Migrate(db *storage.Database) error {
	return db.AutoMigrate(&models.Document{}, &models.Activity{})
}
