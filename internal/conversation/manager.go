// Package conversation keeps the in-memory state of the conversation a
// doctor has open: rendered bubbles, the watermark used by the staleness
// check, participant names and the optimistic send cycle.
package conversation

import (
	"context"
	"strings"
	"sync"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/metrics"
	"healthtracker-doctors/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway is the part of messaging.Gateway the manager drives.
type Gateway interface {
	ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) (models.ConversationPage, error)
	Send(ctx context.Context, senderID, receiverID string, messageTypeID int, content string) (models.MessageWithDetails, error)
	ListMessageTypes(ctx context.Context) ([]models.MessageType, error)
	ResolveDisplayName(ctx context.Context, userID string, role messaging.Role) string
	PatientInfo(ctx context.Context, patientUserID string) (models.ParticipantInfo, error)
	MarkConversationRead(ctx context.Context, doctorUserID, patientUserID string) (int64, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusErrored Status = "errored"
)

const TempIDPrefix = "temp-"

type EventKind string

const (
	EventLoaded  EventKind = "loaded"
	EventSent    EventKind = "sent"
	EventFailed  EventKind = "failed"
	EventCleared EventKind = "cleared"
)

type Event struct {
	Kind        EventKind
	UserID      string
	OtherUserID string
}

type Options struct {
	// LoadLimit caps the messages kept for one conversation, newest last.
	LoadLimit int
	Location  *time.Location
}

type Manager struct {
	gw        Gateway
	loadLimit int
	loc       *time.Location
	newID     func() string
	now       func() time.Time

	mu          sync.Mutex
	status      Status
	userID      string
	otherUserID string
	generation  uint64
	messages    []models.MessageBubble
	watermark   string
	viewerName  string
	participant *models.ParticipantInfo
	types       []models.MessageType
	errMsg      string
	listeners   []func(Event)
}

func NewManager(gw Gateway, opts Options) *Manager {
	if opts.LoadLimit <= 0 {
		opts.LoadLimit = 100
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Manager{
		gw:        gw,
		loadLimit: opts.LoadLimit,
		loc:       opts.Location,
		newID:     uuid.NewString,
		now:       time.Now,
		status:    StatusIdle,
	}
}

// OnChange registers fn for state events. Listeners run outside the lock.
func (m *Manager) OnChange(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	listeners := append([]func(Event){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

func (m *Manager) viewerLocked() messaging.Viewer {
	v := messaging.Viewer{UserID: m.userID, Name: m.viewerName, Location: m.loc}
	if m.participant != nil {
		v.CounterpartName = m.participant.Name
	}
	return v
}

// LoadMessages replaces the rendered conversation with the newest messages
// between the pair. On failure the previous messages stay visible. A result
// for a conversation that is no longer active is dropped.
func (m *Manager) LoadMessages(ctx context.Context, userID, otherUserID string, markRead bool) error {
	m.mu.Lock()
	m.activateLocked(userID, otherUserID)
	return m.load(ctx, markRead)
}

// Activate makes the pair the active conversation without loading it, so
// participant lookups made before the first load are kept.
func (m *Manager) Activate(userID, otherUserID string) {
	m.mu.Lock()
	m.activateLocked(userID, otherUserID)
	m.mu.Unlock()
}

func (m *Manager) activateLocked(userID, otherUserID string) {
	if m.userID != userID || m.otherUserID != otherUserID {
		m.resetLocked()
		m.userID, m.otherUserID = userID, otherUserID
	}
}

// Reload refreshes the active conversation and does nothing when none is
// open, so a late trigger cannot reopen a cleared conversation.
func (m *Manager) Reload(ctx context.Context, markRead bool) error {
	m.mu.Lock()
	if m.otherUserID == "" {
		m.mu.Unlock()
		return nil
	}
	return m.load(ctx, markRead)
}

// load must be called with m.mu held and releases it.
func (m *Manager) load(ctx context.Context, markRead bool) error {
	userID, otherUserID := m.userID, m.otherUserID
	gen := m.generation
	m.status = StatusLoading
	needViewer := m.viewerName == ""
	needParticipant := m.participant == nil
	m.mu.Unlock()

	var viewerName string
	var participant *models.ParticipantInfo
	if needViewer {
		viewerName = m.gw.ResolveDisplayName(ctx, userID, messaging.RoleDoctor)
	}
	if needParticipant {
		participant = &models.ParticipantInfo{
			UserID: otherUserID,
			Name:   m.gw.ResolveDisplayName(ctx, otherUserID, messaging.RolePatient),
		}
	}

	msgs, err := m.fetchLatest(ctx, userID, otherUserID)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		logger.Log.Debug("discarding stale conversation load",
			zap.String("user_id", userID), zap.String("other_user_id", otherUserID))
		return nil
	}
	if needViewer && m.viewerName == "" {
		m.viewerName = viewerName
	}
	if needParticipant && m.participant == nil {
		m.participant = participant
	}
	if err != nil {
		m.status = StatusErrored
		m.errMsg = apperror.UserMessage(err, "Failed to load messages")
		m.mu.Unlock()
		return err
	}

	bubbles := messaging.ToBubbles(msgs, m.viewerLocked())
	m.watermark = ""
	if n := len(bubbles); n > 0 {
		m.watermark = bubbles[n-1].ID
	}
	// Sends still in flight stay at the tail until they resolve.
	for _, b := range m.messages {
		if b.Status == models.StatusSending {
			bubbles = append(bubbles, b)
		}
	}
	m.messages = bubbles
	m.status = StatusLoaded
	m.errMsg = ""
	m.mu.Unlock()

	m.emit(Event{Kind: EventLoaded, UserID: userID, OtherUserID: otherUserID})

	if markRead {
		m.MarkRead(ctx)
	}
	return nil
}

// fetchLatest returns up to loadLimit of the newest messages, oldest first.
func (m *Manager) fetchLatest(ctx context.Context, userID, otherUserID string) ([]models.MessageWithDetails, error) {
	page, err := m.gw.ListConversation(ctx, userID, otherUserID, m.loadLimit, 0)
	if err != nil {
		return nil, err
	}
	if !page.HasMore {
		return page.Messages, nil
	}
	page, err = m.gw.ListConversation(ctx, userID, otherUserID, m.loadLimit, page.TotalCount-m.loadLimit)
	if err != nil {
		return nil, err
	}
	return page.Messages, nil
}

// Send shows the message immediately with status sending, then swaps in the
// confirmed message or removes the placeholder when the insert fails.
func (m *Manager) Send(ctx context.Context, content string, messageTypeID int) (models.MessageBubble, error) {
	if strings.TrimSpace(content) == "" {
		return models.MessageBubble{}, apperror.Invalid("content", "message content is required")
	}

	m.mu.Lock()
	if m.otherUserID == "" {
		m.mu.Unlock()
		return models.MessageBubble{}, apperror.Invalid("conversation", "no active conversation")
	}
	gen := m.generation
	userID, otherUserID := m.userID, m.otherUserID
	tempID := TempIDPrefix + m.newID()
	m.messages = append(m.messages, messaging.PendingBubble(tempID, content, m.now(), m.viewerLocked()))
	m.mu.Unlock()

	msg, err := m.gw.Send(ctx, userID, otherUserID, messageTypeID, content)

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		metrics.OptimisticSend("discarded")
		if err != nil {
			return models.MessageBubble{}, err
		}
		return messaging.ToBubble(msg, messaging.Viewer{UserID: userID, Location: m.loc}), nil
	}

	if err != nil {
		m.removeLocked(tempID)
		m.errMsg = apperror.UserMessage(err, "Failed to send message")
		m.mu.Unlock()
		metrics.OptimisticSend("rolled_back")
		m.emit(Event{Kind: EventFailed, UserID: userID, OtherUserID: otherUserID})
		return models.MessageBubble{}, err
	}

	confirmed := messaging.ToBubble(msg, m.viewerLocked())
	if m.indexLocked(confirmed.ID) >= 0 {
		// A reload already rendered the confirmed row.
		m.removeLocked(tempID)
	} else if i := m.indexLocked(tempID); i >= 0 {
		m.messages[i] = confirmed
	} else {
		m.messages = append(m.messages, confirmed)
	}
	m.watermark = confirmed.ID
	m.mu.Unlock()

	metrics.OptimisticSend("confirmed")
	m.emit(Event{Kind: EventSent, UserID: userID, OtherUserID: otherUserID})
	return confirmed, nil
}

func (m *Manager) indexLocked(id string) int {
	for i, b := range m.messages {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) removeLocked(id string) {
	if i := m.indexLocked(id); i >= 0 {
		m.messages = append(m.messages[:i], m.messages[i+1:]...)
	}
}

// LoadMessageTypes fetches the message types once and caches them.
func (m *Manager) LoadMessageTypes(ctx context.Context) ([]models.MessageType, error) {
	m.mu.Lock()
	cached := m.types
	m.mu.Unlock()
	if cached != nil {
		return append([]models.MessageType(nil), cached...), nil
	}

	types, err := m.gw.ListMessageTypes(ctx)
	if err != nil {
		m.SetError(apperror.UserMessage(err, "Failed to load message types"))
		return nil, err
	}

	m.mu.Lock()
	m.types = types
	m.mu.Unlock()
	return append([]models.MessageType(nil), types...), nil
}

// LoadPatientInfo resolves the counterpart and caches it while the
// conversation stays active.
func (m *Manager) LoadPatientInfo(ctx context.Context, patientUserID string) (models.ParticipantInfo, error) {
	m.mu.Lock()
	if m.participant != nil && m.participant.UserID == patientUserID {
		info := *m.participant
		m.mu.Unlock()
		return info, nil
	}
	gen := m.generation
	m.mu.Unlock()

	info, err := m.gw.PatientInfo(ctx, patientUserID)
	if err != nil {
		return models.ParticipantInfo{}, err
	}

	m.mu.Lock()
	if gen == m.generation && m.otherUserID == patientUserID {
		m.participant = &info
	}
	m.mu.Unlock()
	return info, nil
}

// MarkRead marks the counterpart's messages as read. Failures are logged
// and never surface to the caller.
func (m *Manager) MarkRead(ctx context.Context) {
	m.mu.Lock()
	userID, otherUserID := m.userID, m.otherUserID
	m.mu.Unlock()
	if userID == "" || otherUserID == "" {
		return
	}

	n, err := m.gw.MarkConversationRead(ctx, userID, otherUserID)
	if err != nil {
		logger.Log.Warn("mark conversation read",
			zap.String("user_id", userID), zap.String("other_user_id", otherUserID), zap.Error(err))
		return
	}
	if n > 0 {
		logger.Log.Debug("marked messages read", zap.Int64("count", n), zap.String("other_user_id", otherUserID))
	}
}

// Clear forgets the active conversation. Loads and sends still in flight
// will not write their results back.
func (m *Manager) Clear() {
	m.mu.Lock()
	userID, otherUserID := m.userID, m.otherUserID
	m.resetLocked()
	m.mu.Unlock()
	m.emit(Event{Kind: EventCleared, UserID: userID, OtherUserID: otherUserID})
}

func (m *Manager) resetLocked() {
	m.generation++
	m.status = StatusIdle
	m.userID, m.otherUserID = "", ""
	m.messages = nil
	m.watermark = ""
	m.viewerName = ""
	m.participant = nil
	m.errMsg = ""
}

// SetError sets the inline error text; an empty string clears it.
func (m *Manager) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errMsg = msg
}

func (m *Manager) Watermark() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watermark
}

// Active returns the pair of the open conversation.
func (m *Manager) Active() (userID, otherUserID string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID, m.otherUserID, m.otherUserID != ""
}

// Snapshot is a copy of the manager state for presentation.
type Snapshot struct {
	Status       Status                  `json:"status"`
	UserID       string                  `json:"user_id,omitempty"`
	OtherUserID  string                  `json:"other_user_id,omitempty"`
	Messages     []models.MessageBubble  `json:"messages"`
	Watermark    string                  `json:"last_message_id,omitempty"`
	Participant  *models.ParticipantInfo `json:"participant,omitempty"`
	MessageTypes []models.MessageType    `json:"message_types,omitempty"`
	Error        string                  `json:"error,omitempty"`
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		Status:       m.status,
		UserID:       m.userID,
		OtherUserID:  m.otherUserID,
		Messages:     append([]models.MessageBubble{}, m.messages...),
		Watermark:    m.watermark,
		MessageTypes: append([]models.MessageType(nil), m.types...),
		Error:        m.errMsg,
	}
	if m.participant != nil {
		p := *m.participant
		s.Participant = &p
	}
	return s
}
