package models

import (
	"time"
)

type MeasurementType struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Unit string `json:"unit" db:"unit"`
	Code string `json:"code" db:"code"`
}

type MeasurementRecord struct {
	ID              string          `json:"id" db:"id"`
	PatientID       string          `json:"patient_id" db:"patient_id"`
	Value           float64         `json:"value" db:"value"`
	MeasuredAt      time.Time       `json:"measured_at" db:"measured_at"`
	Method          *string         `json:"method" db:"method"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at" db:"updated_at"`
	MeasurementType MeasurementType `json:"measurement_types"`
}

// HealthDataCategory is one tile on the patient detail screen.
type HealthDataCategory struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	IconName          string `json:"icon_name"`
	LatestValue       string `json:"latest_value,omitempty"`
	MeasurementTypeID int    `json:"measurement_type_id"`
	Unit              string `json:"unit"`
}
