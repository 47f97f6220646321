package migration_1

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
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

type Prediction struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status string    `gorm:"size:20;not null"`

	RequestedInput string `gorm:"not null"`
	IsUpload       bool
	InputKey       string

	Alpha    float64
	Clusters int

	BlobPathPrefix string
	Result         datatypes.JSON
	Outputs        textArray

	Error     sql.NullString
	ErrorType sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
	ExpiresAt      sql.NullTime `gorm:"index"`
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Prediction{}); err != nil {
		return fmt.Errorf("error creating predictions table: %w", err)
	}
	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&Prediction{}); err != nil {
		return fmt.Errorf("error dropping predictions table: %w", err)
	}
	return nil
}
