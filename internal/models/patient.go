package models

import (
	"time"
)

type PatientSummary struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Name        string     `json:"name" db:"name"`
	Surname     string     `json:"surname" db:"surname"`
	BirthDate   *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	GenderName  string     `json:"gender_name,omitempty"`
	PatientNote string     `json:"patient_note,omitempty" db:"patient_note"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

func (p PatientSummary) FullName() string {
	return joinName(p.Name, p.Surname)
}

// PatientWithLastMessage is one row of the doctor's message overview.
type PatientWithLastMessage struct {
	PatientSummary
	LastMessage *LastMessage `json:"last_message"`
	UnreadCount int          `json:"unread_count"`
}

type PatientDetail struct {
	PatientSummary
	LastMessage          *LastMessage         `json:"last_message"`
	HealthDataCategories []HealthDataCategory `json:"health_data_categories"`
}

// NewPatient is the add-patient form.
type NewPatient struct {
	Email       string    `json:"email" binding:"required" validate:"required,email"`
	Password    string    `json:"password" binding:"required" validate:"required,min=6"`
	Name        string    `json:"name" binding:"required" validate:"required"`
	Surname     string    `json:"surname" binding:"required" validate:"required"`
	BirthDate   time.Time `json:"birth_date"`
	Gender      string    `json:"gender" validate:"required,oneof=male female"`
	PatientNote string    `json:"patient_note"`
}

const (
	GenderMaleID   = 1
	GenderFemaleID = 2
)

func joinName(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += p
	}
	return out
}
