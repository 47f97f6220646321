package database

import (
	"database/sql"
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StringList is stored as text[] on postgres and as the same array literal
// in a text column elsewhere.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}

func (l *StringList) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	if arr == nil {
		arr = pq.StringArray{}
	}
	*l = StringList(arr)
	return nil
}

func (StringList) GormDataType() string {
	return "string_list"
}

func (StringList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

type DatasetCluster struct {
	Id            uint       `gorm:"primaryKey"`
	DatasetName   string     `gorm:"not null;index"`
	AlgorithmName string     `gorm:"not null"`
	ClusterId     int        `gorm:"not null"`
	GoIds         StringList `gorm:"not null"`
}

const (
	PredictionQueued    string = "QUEUED"
	PredictionRunning   string = "RUNNING"
	PredictionCompleted string = "COMPLETED"
	PredictionFailed    string = "FAILED"
)

type Prediction struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status string    `gorm:"size:20;not null"`

	RequestedInput string `gorm:"not null"`
	IsUpload       bool
	// InputKey is the object key of an uploaded input, empty for selections.
	InputKey string

	Alpha    float64
	Clusters int

	BlobPathPrefix string
	Result         datatypes.JSON
	Outputs        StringList

	Error     sql.NullString
	ErrorType sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
	ExpiresAt      sql.NullTime `gorm:"index"`
}
