package models

import (
	"time"

	"gorm.io/datatypes"
)

type ProgressReport struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ProjectID   uint           `gorm:"index;not null" json:"project_id"`
	GeneratedBy string         `gorm:"type:text" json:"generated_by"`
	ReportData  datatypes.JSON `gorm:"type:json" json:"report_data"`
	CSVLocation string         `gorm:"type:text" json:"csv_location"`
	GeneratedAt time.Time      `gorm:"index;not null" json:"generated_at"`
}
