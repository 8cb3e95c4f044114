package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway delegates to a real gateway over the memory store and lets a
// test block or fail individual calls.
type stubGateway struct {
	*messaging.Gateway

	mu         sync.Mutex
	beforeList func()
	beforeSend func()
	listErr    error
	sendErr    error
	markCalls  int
}

func (s *stubGateway) ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) (models.ConversationPage, error) {
	s.mu.Lock()
	hook, err := s.beforeList, s.listErr
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return models.ConversationPage{}, err
	}
	return s.Gateway.ListConversation(ctx, userID, otherUserID, limit, offset)
}

func (s *stubGateway) Send(ctx context.Context, senderID, receiverID string, messageTypeID int, content string) (models.MessageWithDetails, error) {
	s.mu.Lock()
	hook, err := s.beforeSend, s.sendErr
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return models.MessageWithDetails{}, err
	}
	return s.Gateway.Send(ctx, senderID, receiverID, messageTypeID, content)
}

func (s *stubGateway) MarkConversationRead(ctx context.Context, doctorUserID, patientUserID string) (int64, error) {
	s.mu.Lock()
	s.markCalls++
	s.mu.Unlock()
	return s.Gateway.MarkConversationRead(ctx, doctorUserID, patientUserID)
}

func (s *stubGateway) set(fn func(s *stubGateway)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type env struct {
	store   *repository.Memory
	gw      *stubGateway
	mgr     *Manager
	doctor  models.DoctorProfile
	patient models.PatientSummary
}

func newEnv(t *testing.T, limit int) *env {
	t.Helper()
	store := repository.NewMemory()
	doctor := store.AddDoctor(models.DoctorProfile{Name: "Ayşe", Surname: "Demir"})
	patient := store.AddPatient(doctor.ID, models.PatientSummary{Name: "Mehmet", Surname: "Yılmaz"})
	gw := &stubGateway{Gateway: messaging.NewGateway(store, 50)}
	return &env{
		store:   store,
		gw:      gw,
		mgr:     NewManager(gw, Options{LoadLimit: limit, Location: time.UTC}),
		doctor:  doctor,
		patient: patient,
	}
}

func (e *env) fromPatient(content string) models.Message {
	return e.store.AddMessage(models.Message{SenderUserID: e.patient.UserID, ReceiverUserID: e.doctor.UserID, Content: content})
}

func (e *env) load(t *testing.T) {
	t.Helper()
	require.NoError(t, e.mgr.LoadMessages(context.Background(), e.doctor.UserID, e.patient.UserID, false))
}

func countSending(msgs []models.MessageBubble) int {
	n := 0
	for _, b := range msgs {
		if b.Status == models.StatusSending {
			n++
		}
	}
	return n
}

func TestLoadMessagesSetsWatermark(t *testing.T) {
	e := newEnv(t, 100)
	e.load(t)
	snap := e.mgr.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, e.mgr.Watermark(), "no messages, no watermark")

	e.fromPatient("one")
	last := e.fromPatient("two")
	e.load(t)

	snap = e.mgr.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, last.ID, e.mgr.Watermark())
	assert.Equal(t, "Mehmet Yılmaz", snap.Messages[0].SenderName)
	require.NotNil(t, snap.Participant)
	assert.Equal(t, "Mehmet Yılmaz", snap.Participant.Name)
}

func TestLoadMessagesKeepsNewestWithinLimit(t *testing.T) {
	e := newEnv(t, 3)
	var last models.Message
	for i := 0; i < 7; i++ {
		last = e.fromPatient("m")
	}
	e.load(t)

	snap := e.mgr.Snapshot()
	require.Len(t, snap.Messages, 3)
	assert.Equal(t, last.ID, snap.Messages[2].ID)
	assert.Equal(t, last.ID, snap.Watermark)
}

func TestLoadErrorRetainsMessages(t *testing.T) {
	e := newEnv(t, 100)
	e.fromPatient("kept")
	e.load(t)

	e.gw.set(func(s *stubGateway) { s.listErr = apperror.Remote("list conversation", errors.New("offline")) })
	err := e.mgr.LoadMessages(context.Background(), e.doctor.UserID, e.patient.UserID, false)
	require.Error(t, err)

	snap := e.mgr.Snapshot()
	assert.Equal(t, StatusErrored, snap.Status)
	assert.Equal(t, "Failed to load messages", snap.Error)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "kept", snap.Messages[0].Content)
}

func TestSendReplacesPlaceholderInPlace(t *testing.T) {
	e := newEnv(t, 100)
	e.fromPatient("hello doctor")
	e.load(t)

	release := make(chan struct{})
	started := make(chan struct{})
	e.gw.set(func(s *stubGateway) {
		s.beforeSend = func() {
			close(started)
			<-release
		}
	})

	var (
		sent models.MessageBubble
		err  error
		wg   sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sent, err = e.mgr.Send(context.Background(), "take your pills", 0)
	}()

	<-started
	pending := e.mgr.Snapshot()
	require.Len(t, pending.Messages, 2)
	assert.Equal(t, 1, countSending(pending.Messages))
	assert.True(t, strings.HasPrefix(pending.Messages[1].ID, TempIDPrefix))
	assert.NotEqual(t, pending.Messages[1].ID, e.mgr.Watermark(), "watermark never points at a placeholder")

	close(release)
	wg.Wait()
	require.NoError(t, err)

	snap := e.mgr.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Zero(t, countSending(snap.Messages))
	assert.Equal(t, sent.ID, snap.Messages[1].ID)
	assert.Equal(t, models.StatusSent, snap.Messages[1].Status)
	assert.Equal(t, models.SenderDoctor, snap.Messages[1].Type)
	assert.Equal(t, "Dr. Ayşe Demir", snap.Messages[1].SenderName)
	assert.Equal(t, sent.ID, snap.Watermark)
}

func TestSendFailureRemovesOnlyItsPlaceholder(t *testing.T) {
	e := newEnv(t, 100)
	first := e.fromPatient("first")
	e.load(t)
	watermark := e.mgr.Watermark()

	e.gw.set(func(s *stubGateway) { s.sendErr = apperror.Remote("send message", errors.New("503")) })
	_, err := e.mgr.Send(context.Background(), "lost", 1)
	require.Error(t, err)

	snap := e.mgr.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, first.ID, snap.Messages[0].ID)
	assert.Equal(t, "Failed to send message", snap.Error)
	assert.Equal(t, watermark, snap.Watermark)
	assert.Zero(t, countSending(snap.Messages))
}

func TestSendValidation(t *testing.T) {
	e := newEnv(t, 100)

	_, err := e.mgr.Send(context.Background(), "hi", 1)
	assert.True(t, apperror.IsValidation(err), "no active conversation")

	e.load(t)
	_, err = e.mgr.Send(context.Background(), " \n ", 1)
	assert.True(t, apperror.IsValidation(err))
	assert.Empty(t, e.mgr.Snapshot().Messages)
}

func TestClearDiscardsInFlightLoad(t *testing.T) {
	e := newEnv(t, 100)
	e.fromPatient("late")

	release := make(chan struct{})
	started := make(chan struct{})
	e.gw.set(func(s *stubGateway) {
		s.beforeList = func() {
			close(started)
			<-release
		}
	})

	done := make(chan error, 1)
	go func() {
		done <- e.mgr.LoadMessages(context.Background(), e.doctor.UserID, e.patient.UserID, false)
	}()

	<-started
	e.mgr.Clear()
	close(release)
	require.NoError(t, <-done)

	snap := e.mgr.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Watermark)
	assert.Nil(t, snap.Participant)
}

func TestClearResetsState(t *testing.T) {
	e := newEnv(t, 100)
	e.fromPatient("x")
	e.load(t)
	e.mgr.SetError("boom")

	e.mgr.Clear()
	snap := e.mgr.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Watermark)
	assert.Empty(t, snap.Error)
	assert.Nil(t, snap.Participant)
	_, _, ok := e.mgr.Active()
	assert.False(t, ok)
}

func TestLoadWithMarkRead(t *testing.T) {
	e := newEnv(t, 100)
	e.fromPatient("unread")

	require.NoError(t, e.mgr.LoadMessages(context.Background(), e.doctor.UserID, e.patient.UserID, true))
	assert.Equal(t, 1, e.gw.markCalls)

	list, err := e.gw.ListPatientsWithLastMessage(context.Background(), e.doctor.ID)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestOnChangeReportsSend(t *testing.T) {
	e := newEnv(t, 100)
	e.load(t)

	var kinds []EventKind
	e.mgr.OnChange(func(ev Event) { kinds = append(kinds, ev.Kind) })

	_, err := e.mgr.Send(context.Background(), "ping", 1)
	require.NoError(t, err)
	assert.Equal(t, []EventKind{EventSent}, kinds)
}

func TestLoadMessageTypesCaches(t *testing.T) {
	e := newEnv(t, 100)
	types, err := e.mgr.LoadMessageTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, types, 3)
	assert.Len(t, e.mgr.Snapshot().MessageTypes, 3)
}

func TestLoadPatientInfo(t *testing.T) {
	e := newEnv(t, 100)
	info, err := e.mgr.LoadPatientInfo(context.Background(), e.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, "Mehmet Yılmaz", info.Name)

	_, err = e.mgr.LoadPatientInfo(context.Background(), "missing")
	assert.True(t, apperror.IsNotFound(err))
}

func TestActivateKeepsPatientInfo(t *testing.T) {
	e := newEnv(t, 100)
	ctx := context.Background()

	e.mgr.Activate(e.doctor.UserID, e.patient.UserID)
	_, err := e.mgr.LoadPatientInfo(ctx, e.patient.UserID)
	require.NoError(t, err)
	require.NoError(t, e.mgr.LoadMessages(ctx, e.doctor.UserID, e.patient.UserID, false))

	snap := e.mgr.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	require.NotNil(t, snap.Participant)
	assert.Equal(t, "Mehmet Yılmaz", snap.Participant.Name)
}
