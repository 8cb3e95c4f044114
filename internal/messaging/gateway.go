// Package messaging wraps the remote data service with the message-domain
// operations the doctor screens need.
package messaging

import (
	"context"
	"errors"
	"strings"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/metrics"
	"healthtracker-doctors/internal/models"

	"go.uber.org/zap"
)

// Store is the slice of the remote data service the gateway reads and
// writes. Every read excludes soft-deleted rows.
type Store interface {
	MessageTypes(ctx context.Context) ([]models.MessageType, error)
	// ConversationMessages returns one page, oldest first, and the total
	// number of matching rows. An empty otherUserID matches every message
	// the user sent or received.
	ConversationMessages(ctx context.Context, userID, otherUserID string, limit, offset int) ([]models.MessageWithDetails, int, error)
	InsertMessage(ctx context.Context, msg models.NewMessage) (models.MessageWithDetails, error)
	// MessageCreatedAt returns a NotFoundError for unknown or deleted ids.
	MessageCreatedAt(ctx context.Context, messageID string) (time.Time, error)
	// CountConversation counts messages between the pair, optionally only
	// those created strictly after since.
	CountConversation(ctx context.Context, userID, otherUserID string, since *time.Time) (int, error)
	AssignedPatientUserIDs(ctx context.Context, doctorID string) ([]string, error)
	CountFromSenders(ctx context.Context, senderUserIDs []string, since *time.Time) (int, error)
	PatientsWithLastMessage(ctx context.Context, doctorID string) ([]models.PatientWithLastMessage, error)
	PatientByUserID(ctx context.Context, userID string) (models.PatientSummary, error)
	DoctorByUserID(ctx context.Context, userID string) (models.DoctorProfile, error)
	DoctorForPatientUser(ctx context.Context, patientUserID string) (models.DoctorProfile, error)
	MarkRead(ctx context.Context, receiverUserID, senderUserID string) (int64, error)
}

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

const (
	FallbackPatientName = "Patient"
	FallbackDoctorName  = "Dr. Doctor"
)

type Gateway struct {
	store    Store
	pageSize int
}

func NewGateway(store Store, pageSize int) *Gateway {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Gateway{store: store, pageSize: pageSize}
}

func (g *Gateway) ListMessageTypes(ctx context.Context) (types []models.MessageType, err error) {
	defer metrics.ObserveRemote("message_types.list", time.Now(), &err)

	types, err = g.store.MessageTypes(ctx)
	if err != nil {
		logger.Log.Error("list message types", zap.Error(err))
		return nil, apperror.Remote("list message types", err)
	}
	if types == nil {
		types = []models.MessageType{}
	}
	return types, nil
}

// ListConversation pages through the messages exchanged by the two users.
func (g *Gateway) ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) (page models.ConversationPage, err error) {
	defer metrics.ObserveRemote("messages.list", time.Now(), &err)

	if limit <= 0 {
		limit = g.pageSize
	}
	if offset < 0 {
		offset = 0
	}

	msgs, total, err := g.store.ConversationMessages(ctx, userID, otherUserID, limit, offset)
	if err != nil {
		logger.Log.Error("list conversation",
			zap.String("user_id", userID),
			zap.String("other_user_id", otherUserID),
			zap.Int("limit", limit),
			zap.Int("offset", offset),
			zap.Error(err),
		)
		return models.ConversationPage{}, apperror.Remote("list conversation", err)
	}
	if msgs == nil {
		msgs = []models.MessageWithDetails{}
	}

	return models.ConversationPage{
		Messages:   msgs,
		TotalCount: total,
		HasMore:    offset < total && limit < total-offset,
	}, nil
}

// Send inserts one message. A failed insert means the recipient never got it.
func (g *Gateway) Send(ctx context.Context, senderID, receiverID string, messageTypeID int, content string) (msg models.MessageWithDetails, err error) {
	if strings.TrimSpace(content) == "" {
		return models.MessageWithDetails{}, apperror.Invalid("content", "message content is required")
	}
	if senderID == "" || receiverID == "" {
		return models.MessageWithDetails{}, apperror.Invalid("receiver_user_id", "sender and receiver are required")
	}
	if messageTypeID <= 0 {
		messageTypeID = models.MessageTypeGeneral
	}

	defer metrics.ObserveRemote("messages.insert", time.Now(), &err)

	msg, err = g.store.InsertMessage(ctx, models.NewMessage{
		SenderUserID:   senderID,
		ReceiverUserID: receiverID,
		MessageTypeID:  messageTypeID,
		Content:        content,
	})
	if err != nil {
		logger.Log.Error("send message",
			zap.String("sender_user_id", senderID),
			zap.String("receiver_user_id", receiverID),
			zap.Int("message_type_id", messageTypeID),
			zap.Error(err),
		)
		return models.MessageWithDetails{}, apperror.Remote("send message", err)
	}
	return msg, nil
}

// HasNewerMessages reports whether the pair exchanged anything after
// sinceMessageID. Without a usable reference it answers whether any message
// exists at all, so a bad watermark can only cause an extra reload.
func (g *Gateway) HasNewerMessages(ctx context.Context, userID, otherUserID, sinceMessageID string) (newer bool, err error) {
	defer metrics.ObserveRemote("messages.newer", time.Now(), &err)

	var since *time.Time
	if sinceMessageID != "" {
		ts, err := g.store.MessageCreatedAt(ctx, sinceMessageID)
		switch {
		case err == nil:
			since = &ts
		case apperror.IsNotFound(err):
			logger.Log.Info("watermark not resolvable, checking for any message",
				zap.String("message_id", sinceMessageID))
		default:
			logger.Log.Warn("watermark lookup failed, checking for any message",
				zap.String("message_id", sinceMessageID), zap.Error(err))
		}
	}

	count, err := g.store.CountConversation(ctx, userID, otherUserID, since)
	if err != nil {
		logger.Log.Error("count newer messages",
			zap.String("user_id", userID),
			zap.String("other_user_id", otherUserID),
			zap.Error(err),
		)
		return false, apperror.Remote("check new messages", err)
	}

	logger.Log.Debug("newer message check",
		zap.String("user_id", userID),
		zap.String("other_user_id", otherUserID),
		zap.Bool("has_watermark", since != nil),
		zap.Int("count", count),
	)
	return count > 0, nil
}

// HasNewerMessagesFromPatients only looks at messages sent by the doctor's
// currently assigned patients.
func (g *Gateway) HasNewerMessagesFromPatients(ctx context.Context, doctorID string, since *time.Time) (newer bool, err error) {
	defer metrics.ObserveRemote("messages.newer_from_patients", time.Now(), &err)

	userIDs, err := g.store.AssignedPatientUserIDs(ctx, doctorID)
	if err != nil {
		logger.Log.Error("load assigned patients", zap.String("doctor_id", doctorID), zap.Error(err))
		return false, apperror.Remote("check patient messages", err)
	}
	if len(userIDs) == 0 {
		return false, nil
	}

	count, err := g.store.CountFromSenders(ctx, userIDs, since)
	if err != nil {
		logger.Log.Error("count patient messages", zap.String("doctor_id", doctorID), zap.Error(err))
		return false, apperror.Remote("check patient messages", err)
	}
	return count > 0, nil
}

// ListPatientsWithLastMessage returns every assigned patient with the newest
// message involving them, nil when they have none.
func (g *Gateway) ListPatientsWithLastMessage(ctx context.Context, doctorID string) (out []models.PatientWithLastMessage, err error) {
	defer metrics.ObserveRemote("patients.last_message", time.Now(), &err)

	out, err = g.store.PatientsWithLastMessage(ctx, doctorID)
	if err != nil {
		logger.Log.Error("list patients with last message", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, apperror.Remote("list patients", err)
	}
	if out == nil {
		out = []models.PatientWithLastMessage{}
	}
	return out, nil
}

// ResolveDisplayName never fails; unknown identities get a role fallback.
func (g *Gateway) ResolveDisplayName(ctx context.Context, userID string, role Role) string {
	if role == RoleDoctor {
		if userID == "" {
			return FallbackDoctorName
		}
		d, err := g.store.DoctorByUserID(ctx, userID)
		if err != nil || d.FullName() == "" {
			logResolveMiss(userID, role, err)
			return FallbackDoctorName
		}
		return "Dr. " + d.FullName()
	}

	if userID == "" {
		return FallbackPatientName
	}
	p, err := g.store.PatientByUserID(ctx, userID)
	if err != nil || p.FullName() == "" {
		logResolveMiss(userID, role, err)
		return FallbackPatientName
	}
	return p.FullName()
}

func logResolveMiss(userID string, role Role, err error) {
	if err != nil && !apperror.IsNotFound(err) {
		logger.Log.Warn("resolve display name", zap.String("user_id", userID), zap.String("role", string(role)), zap.Error(err))
	}
}

// PatientInfo resolves the counterpart of an open conversation. A missing
// patient is a NotFoundError.
func (g *Gateway) PatientInfo(ctx context.Context, patientUserID string) (models.ParticipantInfo, error) {
	p, err := g.store.PatientByUserID(ctx, patientUserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return models.ParticipantInfo{}, err
		}
		return models.ParticipantInfo{}, apperror.Remote("load patient", err)
	}
	return models.ParticipantInfo{UserID: p.UserID, Name: p.FullName()}, nil
}

// DoctorForPatient resolves the doctor assigned to a patient user.
func (g *Gateway) DoctorForPatient(ctx context.Context, patientUserID string) (models.ParticipantInfo, error) {
	d, err := g.store.DoctorForPatientUser(ctx, patientUserID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return models.ParticipantInfo{}, err
		}
		return models.ParticipantInfo{}, apperror.Remote("load doctor", err)
	}
	return models.ParticipantInfo{UserID: d.UserID, Name: d.FullName()}, nil
}

// MarkConversationRead marks everything the patient sent the doctor as read.
func (g *Gateway) MarkConversationRead(ctx context.Context, doctorUserID, patientUserID string) (n int64, err error) {
	defer metrics.ObserveRemote("messages.mark_read", time.Now(), &err)

	n, err = g.store.MarkRead(ctx, doctorUserID, patientUserID)
	if err != nil {
		return 0, apperror.Remote("mark conversation read", err)
	}
	return n, nil
}

var errNoStore = errors.New("messaging: gateway has no store")

// Ready reports whether the gateway can serve requests.
func (g *Gateway) Ready() error {
	if g == nil || g.store == nil {
		return errNoStore
	}
	return nil
}
