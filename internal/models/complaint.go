package models

import (
	"time"
)

type ComplaintCategory struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type ComplaintSubcategory struct {
	ID            string    `json:"id" db:"id"`
	CategoryID    string    `json:"category_id" db:"category_id"`
	Name          string    `json:"name" db:"name"`
	Description   *string   `json:"description" db:"description"`
	SymptomHint   *string   `json:"symptom_hint" db:"symptom_hint"`
	IsCritical    bool      `json:"is_critical" db:"is_critical"`
	PriorityLevel *string   `json:"priority_level" db:"priority_level"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type Complaint struct {
	ID              string     `json:"id" db:"id"`
	PatientID       string     `json:"patient_id" db:"patient_id"`
	Description     string     `json:"description" db:"description"`
	SubcategoryID   string     `json:"subcategory_id" db:"subcategory_id"`
	IsActive        bool       `json:"is_active" db:"is_active"`
	StartDate       *time.Time `json:"start_date" db:"start_date"`
	EndDate         *time.Time `json:"end_date" db:"end_date"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at" db:"updated_at"`
	SubcategoryName string     `json:"subcategory_name,omitempty"`
	CategoryName    string     `json:"category_name,omitempty"`
	IsCritical      bool       `json:"is_critical"`
	PriorityLevel   *string    `json:"priority_level,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
}

type NewComplaint struct {
	PatientID     string `json:"patient_id" binding:"required,uuid"`
	SubcategoryID string `json:"subcategory_id" binding:"required,uuid"`
	Description   string `json:"description" binding:"required"`
}

type ComplaintUpdate struct {
	PatientID     string `json:"patient_id"`
	SubcategoryID string `json:"subcategory_id"`
	Description   string `json:"description"`
}
