package models

import (
	"time"
)

// Message type ids as seeded in message_types.
const (
	MessageTypeGeneral           = 1
	MessageTypeGeneralAssessment = 2
	MessageTypeFeedback          = 3
)

type Message struct {
	ID             string    `json:"id" db:"id"`
	SenderUserID   string    `json:"sender_user_id" db:"sender_user_id"`
	ReceiverUserID string    `json:"receiver_user_id" db:"receiver_user_id"`
	MessageTypeID  int       `json:"message_type_id" db:"message_type_id"`
	Content        string    `json:"content" db:"content"`
	IsRead         bool      `json:"is_read" db:"is_read"`
	IsDeleted      bool      `json:"is_deleted" db:"is_deleted"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// MessageWithDetails is a message joined with its type name and the email of
// both participants.
type MessageWithDetails struct {
	Message
	MessageTypeName string `json:"message_type_name"`
	SenderEmail     string `json:"sender_email,omitempty"`
	ReceiverEmail   string `json:"receiver_email,omitempty"`
}

type MessageType struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type NewMessage struct {
	SenderUserID   string
	ReceiverUserID string
	MessageTypeID  int
	Content        string
}

type ConversationPage struct {
	Messages   []MessageWithDetails `json:"messages"`
	TotalCount int                  `json:"total_count"`
	HasMore    bool                 `json:"has_more"`
}

type SenderRole string

const (
	SenderPatient SenderRole = "patient"
	SenderDoctor  SenderRole = "doctor"
	SenderAI      SenderRole = "ai"
	SenderSystem  SenderRole = "system"
)

type DeliveryStatus string

const (
	StatusSending DeliveryStatus = "sending"
	StatusSent    DeliveryStatus = "sent"
	StatusRead    DeliveryStatus = "read"
)

// MessageBubble is the presentation-ready view of a message for one viewer.
type MessageBubble struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Timestamp  string         `json:"timestamp"`
	IsOwn      bool           `json:"is_own"`
	Type       SenderRole     `json:"type"`
	SenderName string         `json:"sender_name"`
	Status     DeliveryStatus `json:"status"`
}

// LastMessage is the newest message involving a patient.
type LastMessage struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"created_at"`
	SenderUserID string    `json:"sender_user_id"`
	SenderName   string    `json:"sender_name,omitempty"`
}

// ParticipantInfo is a display identity resolved for the open conversation.
type ParticipantInfo struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type SendMessageRequest struct {
	Content       string `json:"content" binding:"required"`
	MessageTypeID int    `json:"message_type_id"`
}

type OpenConversationRequest struct {
	PatientUserID string `json:"patient_user_id" binding:"required,uuid"`
}
