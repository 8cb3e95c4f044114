package messaging

import (
	"strings"
	"time"

	"healthtracker-doctors/internal/models"
)

const (
	aiSenderName     = "AI Assistant"
	systemSenderName = "System"
)

// Viewer is who a conversation is rendered for.
type Viewer struct {
	UserID string
	// Name is the viewer's own display name. "Dr. " is added when missing.
	Name string
	// CounterpartName labels general messages from the other side.
	CounterpartName string
	Location        *time.Location
}

// Classify maps a message type name to the sender role shown for messages
// the viewer did not write. Unknown names fall back to patient.
func Classify(typeName string) models.SenderRole {
	switch normalizeTypeName(typeName) {
	case "general assessment", "genel değerlendirme":
		return models.SenderAI
	case "feedback", "geri bildirim":
		return models.SenderSystem
	default:
		return models.SenderPatient
	}
}

func normalizeTypeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}

// ToBubble projects one message for the viewer.
func ToBubble(msg models.MessageWithDetails, v Viewer) models.MessageBubble {
	b := models.MessageBubble{
		ID:        msg.ID,
		Content:   msg.Content,
		Timestamp: FormatTimestamp(msg.CreatedAt, v.Location),
		IsOwn:     msg.SenderUserID == v.UserID,
		Status:    models.StatusSent,
	}
	if msg.IsRead {
		b.Status = models.StatusRead
	}

	if b.IsOwn {
		b.Type = models.SenderDoctor
		b.SenderName = doctorLabel(v.Name)
		return b
	}

	b.Type = Classify(msg.MessageTypeName)
	switch b.Type {
	case models.SenderAI:
		b.SenderName = aiSenderName
	case models.SenderSystem:
		b.SenderName = systemSenderName
	default:
		b.SenderName = v.CounterpartName
		if b.SenderName == "" {
			b.SenderName = FallbackPatientName
		}
	}
	return b
}

func ToBubbles(msgs []models.MessageWithDetails, v Viewer) []models.MessageBubble {
	out := make([]models.MessageBubble, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ToBubble(m, v))
	}
	return out
}

// PendingBubble is the placeholder shown while a send is in flight.
func PendingBubble(id, content string, at time.Time, v Viewer) models.MessageBubble {
	return models.MessageBubble{
		ID:         id,
		Content:    content,
		Timestamp:  FormatTimestamp(at, v.Location),
		IsOwn:      true,
		Type:       models.SenderDoctor,
		SenderName: doctorLabel(v.Name),
		Status:     models.StatusSending,
	}
}

func doctorLabel(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return FallbackDoctorName
	}
	if strings.HasPrefix(name, "Dr. ") {
		return name
	}
	return "Dr. " + name
}

// FormatTimestamp renders HH:MM in loc, UTC when loc is nil.
func FormatTimestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("15:04")
}
