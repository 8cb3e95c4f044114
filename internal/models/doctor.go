package models

import (
	"time"
)

type DoctorProfile struct {
	ID                 string    `json:"id" db:"id"`
	UserID             string    `json:"user_id" db:"user_id"`
	Name               string    `json:"name" db:"name"`
	Surname            string    `json:"surname" db:"surname"`
	Email              string    `json:"email"`
	SpecializationName string    `json:"specialization_name,omitempty"`
	PatientCount       int       `json:"patient_count" db:"patient_count"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

func (d DoctorProfile) FullName() string {
	return joinName(d.Name, d.Surname)
}

type ProfileUpdate struct {
	Name             *string `json:"name"`
	Surname          *string `json:"surname"`
	SpecializationID *int    `json:"specialization_id"`
}

func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Surname == nil && u.SpecializationID == nil
}

type Specialization struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
