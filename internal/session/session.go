// Package session owns the per-doctor conversation state. Each doctor has at
// most one open conversation at a time.
package session

import (
	"context"
	"sync"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/conversation"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/metrics"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/poller"

	"go.uber.org/zap"
)

type Gateway interface {
	conversation.Gateway
	poller.NewerChecker
}

type Options struct {
	Conversation conversation.Options
	RecheckDelay time.Duration
}

type Registry struct {
	gw       Gateway
	notifier *poller.EventNotifier
	opts     Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(gw Gateway, notifier *poller.EventNotifier, opts Options) *Registry {
	if notifier == nil {
		notifier = poller.NewEventNotifier()
	}
	if opts.RecheckDelay <= 0 {
		opts.RecheckDelay = 500 * time.Millisecond
	}
	return &Registry{
		gw:       gw,
		notifier: notifier,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Get returns the doctor's session, creating it on first use.
func (r *Registry) Get(doctorUserID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[doctorUserID]; ok {
		return s
	}
	s := newSession(r, doctorUserID)
	r.sessions[doctorUserID] = s
	return s
}

func (r *Registry) Notifier() *poller.EventNotifier {
	return r.notifier
}

func (r *Registry) refreshGauge() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	n := 0
	for _, s := range sessions {
		if _, _, ok := s.manager.Active(); ok {
			n++
		}
	}
	metrics.SetActiveSessions(n)
}

type Session struct {
	registry *Registry
	userID   string
	manager  *conversation.Manager
	checker  *poller.Checker

	mu          sync.Mutex
	key         poller.ConversationKey
	unsubscribe func()
}

func newSession(r *Registry, userID string) *Session {
	s := &Session{
		registry: r,
		userID:   userID,
		manager:  conversation.NewManager(r.gw, r.opts.Conversation),
	}
	s.checker = poller.NewChecker(r.gw, s.manager, s.reload)
	s.manager.OnChange(s.onChange)
	return s
}

func (s *Session) reload(ctx context.Context) error {
	return s.manager.Reload(ctx, true)
}

// onChange schedules the post-send recheck that picks up replies which
// arrived while the message was in flight.
func (s *Session) onChange(ev conversation.Event) {
	if ev.Kind != conversation.EventSent {
		return
	}
	key := poller.ConversationKey{UserID: ev.UserID, OtherUserID: ev.OtherUserID}
	s.registry.notifier.NotifyAfter(key, s.registry.opts.RecheckDelay)
}

// refresh runs on every notification for the open conversation.
func (s *Session) refresh(ctx context.Context) {
	if !s.checker.Check(ctx) {
		s.manager.MarkRead(ctx)
	}
}

// Open makes patientUserID the active conversation, dropping the previous
// one first.
func (s *Session) Open(ctx context.Context, patientUserID string) (conversation.Snapshot, error) {
	if patientUserID == "" {
		return conversation.Snapshot{}, apperror.Invalid("patient_user_id", "patient is required")
	}
	s.Close()

	s.manager.Activate(s.userID, patientUserID)
	if _, err := s.manager.LoadPatientInfo(ctx, patientUserID); err != nil {
		s.manager.Clear()
		return conversation.Snapshot{}, err
	}

	key := poller.ConversationKey{UserID: s.userID, OtherUserID: patientUserID}
	unsubscribe := s.registry.notifier.Subscribe(key, s.refresh)
	s.mu.Lock()
	s.key = key
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	err := s.manager.LoadMessages(ctx, s.userID, patientUserID, true)
	s.registry.refreshGauge()
	if err != nil {
		logger.Log.Warn("open conversation",
			zap.String("user_id", s.userID), zap.String("patient_user_id", patientUserID), zap.Error(err))
		return s.manager.Snapshot(), err
	}
	// Cached per conversation; the first call fetches.
	if _, err := s.manager.LoadMessageTypes(ctx); err != nil {
		logger.Log.Warn("load message types", zap.Error(err))
	}
	return s.manager.Snapshot(), nil
}

// Close clears the conversation and stops its notifications.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.key = poller.ConversationKey{}
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.manager.Clear()
	s.registry.refreshGauge()
}

// Focus is the screen-focus signal: check for newer messages, reload when
// there are any and mark the conversation read.
func (s *Session) Focus(ctx context.Context) (conversation.Snapshot, error) {
	s.mu.Lock()
	key := s.key
	s.mu.Unlock()
	if key.OtherUserID == "" {
		return conversation.Snapshot{}, apperror.Invalid("conversation", "no active conversation")
	}

	s.registry.notifier.Notify(ctx, key)
	return s.manager.Snapshot(), nil
}

func (s *Session) Send(ctx context.Context, content string, messageTypeID int) (models.MessageBubble, error) {
	return s.manager.Send(ctx, content, messageTypeID)
}

func (s *Session) Snapshot() conversation.Snapshot {
	return s.manager.Snapshot()
}

func (s *Session) ClearError() {
	s.manager.SetError("")
}

func (s *Session) Active() bool {
	_, _, ok := s.manager.Active()
	return ok
}
