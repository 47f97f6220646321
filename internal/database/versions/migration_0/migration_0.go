package migration_0

import (
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

type textArray string

func (textArray) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

type DatasetCluster struct {
	Id            uint      `gorm:"primaryKey"`
	DatasetName   string    `gorm:"not null;index"`
	AlgorithmName string    `gorm:"not null"`
	ClusterId     int       `gorm:"not null"`
	GoIds         textArray `gorm:"not null"`
}

func Migration(db *gorm.DB) error {
	if db.Migrator().HasTable("dataset_clusters") {
		return nil
	}
	return db.AutoMigrate(&DatasetCluster{})
}
