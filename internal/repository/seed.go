package repository

import (
	"time"

	"healthtracker-doctors/internal/models"
)

// Fixed identities of the demo data set.
const (
	DemoDoctorID     = "6f1c2a4e-0d4b-4f3e-9a57-1b8e2f0c9d10"
	DemoDoctorUserID = "0b7d9e52-3c1a-4e8f-8b6d-2a9f4c7e1d01"
)

// NewSeededMemory returns a memory store holding one doctor with three
// patients and a short history with each.
func NewSeededMemory(now time.Time) *Memory {
	m := NewMemory()

	doctor := m.AddDoctor(models.DoctorProfile{
		ID:                 DemoDoctorID,
		UserID:             DemoDoctorUserID,
		Name:               "Ayşe",
		Surname:            "Demir",
		Email:              "ayse.demir@healthtracker.app",
		SpecializationName: "Cardiology",
		CreatedAt:          now.AddDate(0, -6, 0),
	})

	born := func(y int, mo time.Month, d int) *time.Time {
		t := time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	mehmet := m.AddPatient(doctor.ID, models.PatientSummary{
		ID:         "a1e3c5d7-1111-4a2b-9c3d-000000000001",
		UserID:     "b2f4d6e8-1111-4a2b-9c3d-000000000001",
		Name:       "Mehmet",
		Surname:    "Yılmaz",
		BirthDate:  born(1958, time.March, 14),
		GenderName: "Male",
		CreatedAt:  now.AddDate(0, -5, 0),
	})
	zeynep := m.AddPatient(doctor.ID, models.PatientSummary{
		ID:          "a1e3c5d7-2222-4a2b-9c3d-000000000002",
		UserID:      "b2f4d6e8-2222-4a2b-9c3d-000000000002",
		Name:        "Zeynep",
		Surname:     "Kaya",
		BirthDate:   born(1971, time.November, 2),
		GenderName:  "Female",
		PatientNote: "Type 2 diabetes, insulin since 2019.",
		CreatedAt:   now.AddDate(0, -3, 0),
	})
	m.AddPatient(doctor.ID, models.PatientSummary{
		ID:         "a1e3c5d7-3333-4a2b-9c3d-000000000003",
		UserID:     "b2f4d6e8-3333-4a2b-9c3d-000000000003",
		Name:       "Ali",
		Surname:    "Çelik",
		BirthDate:  born(1989, time.July, 21),
		GenderName: "Male",
		CreatedAt:  now.AddDate(0, 0, -10),
	})

	m.AddUser(mehmet.UserID, "mehmet.yilmaz@mail.com")
	m.AddUser(zeynep.UserID, "zeynep.kaya@mail.com")

	history := []models.Message{
		{SenderUserID: mehmet.UserID, ReceiverUserID: doctor.UserID, MessageTypeID: models.MessageTypeGeneral,
			Content: "Good morning doctor, my blood pressure was 150/95 today.", CreatedAt: now.Add(-26 * time.Hour), IsRead: true},
		{SenderUserID: doctor.UserID, ReceiverUserID: mehmet.UserID, MessageTypeID: models.MessageTypeGeneral,
			Content: "Please measure again in the evening and log it in the app.", CreatedAt: now.Add(-25 * time.Hour), IsRead: true},
		{SenderUserID: doctor.UserID, ReceiverUserID: mehmet.UserID, MessageTypeID: models.MessageTypeGeneralAssessment,
			Content: "Weekly readings trend slightly above target.", CreatedAt: now.Add(-24 * time.Hour), IsRead: true},
		{SenderUserID: mehmet.UserID, ReceiverUserID: doctor.UserID, MessageTypeID: models.MessageTypeGeneral,
			Content: "Evening value was 138/88.", CreatedAt: now.Add(-2 * time.Hour)},
		{SenderUserID: zeynep.UserID, ReceiverUserID: doctor.UserID, MessageTypeID: models.MessageTypeFeedback,
			Content: "The new dose works well, no hypos this week.", CreatedAt: now.Add(-5 * time.Hour)},
		{SenderUserID: zeynep.UserID, ReceiverUserID: doctor.UserID, MessageTypeID: models.MessageTypeGeneral,
			Content: "Should I keep the same schedule on weekends?", CreatedAt: now.Add(-4 * time.Hour)},
	}
	for _, msg := range history {
		m.AddMessage(msg)
	}
	return m
}
