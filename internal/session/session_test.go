package session

import (
	"context"
	"testing"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/conversation"
	"healthtracker-doctors/internal/messaging"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/poller"
	"healthtracker-doctors/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyingGateway makes the patient answer right after every send, the
// situation the post-send recheck exists for.
type replyingGateway struct {
	*messaging.Gateway
	store   *repository.Memory
	patient string
}

func (g replyingGateway) Send(ctx context.Context, senderID, receiverID string, typeID int, content string) (models.MessageWithDetails, error) {
	msg, err := g.Gateway.Send(ctx, senderID, receiverID, typeID, content)
	if err == nil {
		g.store.AddMessage(models.Message{SenderUserID: g.patient, ReceiverUserID: senderID, Content: "thanks!"})
	}
	return msg, err
}

// countingGateway counts how often the patient side is resolved.
type countingGateway struct {
	*messaging.Gateway
	patientLookups *int
}

func (g countingGateway) PatientInfo(ctx context.Context, patientUserID string) (models.ParticipantInfo, error) {
	*g.patientLookups++
	return g.Gateway.PatientInfo(ctx, patientUserID)
}

func (g countingGateway) ResolveDisplayName(ctx context.Context, userID string, role messaging.Role) string {
	if role == messaging.RolePatient {
		*g.patientLookups++
	}
	return g.Gateway.ResolveDisplayName(ctx, userID, role)
}

type testEnv struct {
	store    *repository.Memory
	registry *Registry
	doctor   models.DoctorProfile
	patient  models.PatientSummary
}

func newTestEnv(t *testing.T, replying bool) *testEnv {
	t.Helper()
	store := repository.NewMemory()
	doctor := store.AddDoctor(models.DoctorProfile{Name: "Ayşe", Surname: "Demir"})
	patient := store.AddPatient(doctor.ID, models.PatientSummary{Name: "Mehmet", Surname: "Yılmaz"})

	var gw Gateway = messaging.NewGateway(store, 50)
	if replying {
		gw = replyingGateway{Gateway: messaging.NewGateway(store, 50), store: store, patient: patient.UserID}
	}
	registry := NewRegistry(gw, poller.NewEventNotifier(), Options{
		Conversation: conversation.Options{LoadLimit: 100, Location: time.UTC},
		RecheckDelay: 20 * time.Millisecond,
	})
	return &testEnv{store: store, registry: registry, doctor: doctor, patient: patient}
}

func (e *testEnv) fromPatient(content string) {
	e.store.AddMessage(models.Message{SenderUserID: e.patient.UserID, ReceiverUserID: e.doctor.UserID, Content: content})
}

func TestOpenLoadsAndMarksRead(t *testing.T) {
	e := newTestEnv(t, false)
	e.fromPatient("hello")

	s := e.registry.Get(e.doctor.UserID)
	assert.Same(t, s, e.registry.Get(e.doctor.UserID))

	snap, err := s.Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, conversation.StatusLoaded, snap.Status)
	assert.Len(t, snap.MessageTypes, 3)
	assert.True(t, s.Active())

	list, err := messaging.NewGateway(e.store, 50).ListPatientsWithLastMessage(context.Background(), e.doctor.ID)
	require.NoError(t, err)
	assert.Zero(t, list[0].UnreadCount)
}

func TestOpenUnknownPatient(t *testing.T) {
	e := newTestEnv(t, false)
	s := e.registry.Get(e.doctor.UserID)
	_, err := s.Open(context.Background(), "not-a-patient")
	assert.True(t, apperror.IsNotFound(err))
	assert.False(t, s.Active())
}

func TestOpenResolvesPatientOnce(t *testing.T) {
	e := newTestEnv(t, false)
	e.fromPatient("hello")

	lookups := 0
	gw := countingGateway{Gateway: messaging.NewGateway(e.store, 50), patientLookups: &lookups}
	registry := NewRegistry(gw, poller.NewEventNotifier(), Options{
		Conversation: conversation.Options{LoadLimit: 100, Location: time.UTC},
		RecheckDelay: time.Hour,
	})

	snap, err := registry.Get(e.doctor.UserID).Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, lookups)
	require.NotNil(t, snap.Participant)
	assert.Equal(t, "Mehmet Yılmaz", snap.Participant.Name)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "Mehmet Yılmaz", snap.Messages[0].SenderName)
}

func TestOpenReplacesPreviousConversation(t *testing.T) {
	e := newTestEnv(t, false)
	e.fromPatient("for the first patient")
	second := e.store.AddPatient(e.doctor.ID, models.PatientSummary{Name: "Ali", Surname: "Çelik"})

	s := e.registry.Get(e.doctor.UserID)
	_, err := s.Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)

	snap, err := s.Open(context.Background(), second.UserID)
	require.NoError(t, err)
	assert.Equal(t, second.UserID, snap.OtherUserID)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Watermark)

	old := poller.ConversationKey{UserID: e.doctor.UserID, OtherUserID: e.patient.UserID}
	assert.Zero(t, e.registry.Notifier().Notify(context.Background(), old), "old subscription removed")
}

func TestFocusReloadsWhenNewerExists(t *testing.T) {
	e := newTestEnv(t, false)
	e.fromPatient("first")

	s := e.registry.Get(e.doctor.UserID)
	_, err := s.Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)

	e.fromPatient("second")
	snap, err := s.Focus(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "second", snap.Messages[1].Content)
}

func TestFocusWithoutConversation(t *testing.T) {
	e := newTestEnv(t, false)
	_, err := e.registry.Get(e.doctor.UserID).Focus(context.Background())
	assert.True(t, apperror.IsValidation(err))
}

func TestSendSchedulesRecheck(t *testing.T) {
	e := newTestEnv(t, true)
	s := e.registry.Get(e.doctor.UserID)
	_, err := s.Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)

	_, err = s.Send(context.Background(), "how are you?", models.MessageTypeGeneral)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		msgs := s.Snapshot().Messages
		return len(msgs) == 2 && msgs[1].Content == "thanks!"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCloseStopsNotifications(t *testing.T) {
	e := newTestEnv(t, true)
	s := e.registry.Get(e.doctor.UserID)
	_, err := s.Open(context.Background(), e.patient.UserID)
	require.NoError(t, err)

	key := poller.ConversationKey{UserID: e.doctor.UserID, OtherUserID: e.patient.UserID}
	_, err = s.Send(context.Background(), "bye", models.MessageTypeGeneral)
	require.NoError(t, err)
	s.Close()

	assert.Zero(t, e.registry.Notifier().Pending(key))
	assert.False(t, s.Active())
	assert.Empty(t, s.Snapshot().Messages)
}
