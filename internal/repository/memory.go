package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/models"

	"github.com/google/uuid"
)

// Memory is an in-process messaging store. It serves demo mode and backs the
// tests of the packages above the gateway.
type Memory struct {
	mu sync.RWMutex

	users       map[string]string // user id -> email
	doctors     map[string]models.DoctorProfile
	patients    map[string]models.PatientSummary
	assignments []assignment
	types       []models.MessageType
	messages    []models.Message

	now      func() time.Time
	lastTime time.Time
}

type assignment struct {
	doctorID  string
	patientID string
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]string),
		doctors:  make(map[string]models.DoctorProfile),
		patients: make(map[string]models.PatientSummary),
		types: []models.MessageType{
			{ID: models.MessageTypeGeneral, Name: "General"},
			{ID: models.MessageTypeGeneralAssessment, Name: "General Assessment"},
			{ID: models.MessageTypeFeedback, Name: "Feedback"},
		},
		now: time.Now,
	}
}

// SetClock replaces the time source used for inserted messages.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) AddUser(id, email string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = email
}

func (m *Memory) AddDoctor(d models.DoctorProfile) models.DoctorProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.UserID == "" {
		d.UserID = uuid.NewString()
	}
	if _, ok := m.users[d.UserID]; !ok {
		m.users[d.UserID] = d.Email
	}
	m.doctors[d.ID] = d
	return d
}

// AddPatient stores the patient and assigns it to doctorID when set.
func (m *Memory) AddPatient(doctorID string, p models.PatientSummary) models.PatientSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	if _, ok := m.users[p.UserID]; !ok {
		m.users[p.UserID] = ""
	}
	m.patients[p.ID] = p
	if doctorID != "" {
		m.assignments = append(m.assignments, assignment{doctorID: doctorID, patientID: p.ID})
		d := m.doctors[doctorID]
		d.PatientCount = m.patientCountLocked(doctorID)
		m.doctors[doctorID] = d
	}
	return p
}

// AddMessage stores msg as is, filling id and created_at when empty.
func (m *Memory) AddMessage(msg models.Message) models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.tickLocked()
	} else if msg.CreatedAt.After(m.lastTime) {
		m.lastTime = msg.CreatedAt
	}
	if msg.MessageTypeID == 0 {
		msg.MessageTypeID = models.MessageTypeGeneral
	}
	m.messages = append(m.messages, msg)
	return msg
}

func (m *Memory) DeleteMessage(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].IsDeleted = true
			return true
		}
	}
	return false
}

// tickLocked returns a creation time strictly after every stored message.
func (m *Memory) tickLocked() time.Time {
	t := m.now()
	if !t.After(m.lastTime) {
		t = m.lastTime.Add(time.Microsecond)
	}
	m.lastTime = t
	return t
}

func (m *Memory) patientCountLocked(doctorID string) int {
	n := 0
	for _, a := range m.assignments {
		if a.doctorID == doctorID {
			n++
		}
	}
	return n
}

func (m *Memory) MessageTypes(ctx context.Context) ([]models.MessageType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.MessageType(nil), m.types...), nil
}

func (m *Memory) detailsLocked(msg models.Message) models.MessageWithDetails {
	out := models.MessageWithDetails{
		Message:       msg,
		SenderEmail:   m.users[msg.SenderUserID],
		ReceiverEmail: m.users[msg.ReceiverUserID],
	}
	for _, t := range m.types {
		if t.ID == msg.MessageTypeID {
			out.MessageTypeName = t.Name
			break
		}
	}
	return out
}

func between(msg models.Message, a, b string) bool {
	return (msg.SenderUserID == a && msg.ReceiverUserID == b) ||
		(msg.SenderUserID == b && msg.ReceiverUserID == a)
}

// liveLocked returns non-deleted messages matching keep, oldest first.
func (m *Memory) liveLocked(keep func(models.Message) bool) []models.Message {
	var out []models.Message
	for _, msg := range m.messages {
		if !msg.IsDeleted && keep(msg) {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) ConversationMessages(ctx context.Context, userID, otherUserID string, limit, offset int) ([]models.MessageWithDetails, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	live := m.liveLocked(func(msg models.Message) bool {
		if otherUserID == "" {
			return msg.SenderUserID == userID || msg.ReceiverUserID == userID
		}
		return between(msg, userID, otherUserID)
	})

	total := len(live)
	if offset > total {
		offset = total
	}
	if limit > total-offset {
		limit = total - offset
	}
	end := offset + limit

	out := make([]models.MessageWithDetails, 0, end-offset)
	for _, msg := range live[offset:end] {
		out = append(out, m.detailsLocked(msg))
	}
	return out, total, nil
}

func (m *Memory) InsertMessage(ctx context.Context, nm models.NewMessage) (models.MessageWithDetails, error) {
	if err := ctx.Err(); err != nil {
		return models.MessageWithDetails{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msg := models.Message{
		ID:             uuid.NewString(),
		SenderUserID:   nm.SenderUserID,
		ReceiverUserID: nm.ReceiverUserID,
		MessageTypeID:  nm.MessageTypeID,
		Content:        nm.Content,
		CreatedAt:      m.tickLocked(),
	}
	m.messages = append(m.messages, msg)
	return m.detailsLocked(msg), nil
}

func (m *Memory) MessageCreatedAt(ctx context.Context, messageID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.ID == messageID && !msg.IsDeleted {
			return msg.CreatedAt, nil
		}
	}
	return time.Time{}, apperror.NotFound("message", messageID)
}

func (m *Memory) CountConversation(ctx context.Context, userID, otherUserID string, since *time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	live := m.liveLocked(func(msg models.Message) bool {
		return between(msg, userID, otherUserID) && (since == nil || msg.CreatedAt.After(*since))
	})
	return len(live), nil
}

func (m *Memory) AssignedPatientUserIDs(ctx context.Context, doctorID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, a := range m.assignments {
		if a.doctorID != doctorID {
			continue
		}
		if p, ok := m.patients[a.patientID]; ok && p.UserID != "" {
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}

func (m *Memory) CountFromSenders(ctx context.Context, senderUserIDs []string, since *time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	senders := make(map[string]bool, len(senderUserIDs))
	for _, id := range senderUserIDs {
		senders[id] = true
	}
	live := m.liveLocked(func(msg models.Message) bool {
		return senders[msg.SenderUserID] && (since == nil || msg.CreatedAt.After(*since))
	})
	return len(live), nil
}

func (m *Memory) PatientsWithLastMessage(ctx context.Context, doctorID string) ([]models.PatientWithLastMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doctor := m.doctors[doctorID]
	var out []models.PatientWithLastMessage
	for _, a := range m.assignments {
		if a.doctorID != doctorID {
			continue
		}
		p, ok := m.patients[a.patientID]
		if !ok {
			continue
		}

		row := models.PatientWithLastMessage{PatientSummary: p}
		live := m.liveLocked(func(msg models.Message) bool {
			return p.UserID != "" && (msg.SenderUserID == p.UserID || msg.ReceiverUserID == p.UserID)
		})
		if n := len(live); n > 0 {
			last := live[n-1]
			row.LastMessage = &models.LastMessage{
				ID:           last.ID,
				Content:      last.Content,
				CreatedAt:    last.CreatedAt,
				SenderUserID: last.SenderUserID,
				SenderName:   lastMessageSender(p, last.SenderUserID, doctor.Name, doctor.Surname),
			}
		}
		for _, msg := range live {
			if !msg.IsRead && msg.SenderUserID == p.UserID && msg.ReceiverUserID == doctor.UserID {
				row.UnreadCount++
			}
		}
		out = append(out, row)
	}

	sort.SliceStable(out, func(i, j int) bool {
		li, lj := out[i].LastMessage, out[j].LastMessage
		switch {
		case li != nil && lj != nil:
			return li.CreatedAt.After(lj.CreatedAt)
		case li != nil || lj != nil:
			return li != nil
		default:
			return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
		}
	})
	return out, nil
}

func (m *Memory) PatientByUserID(ctx context.Context, userID string) (models.PatientSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.patients {
		if p.UserID == userID {
			return p, nil
		}
	}
	return models.PatientSummary{}, apperror.NotFound("patient", userID)
}

func (m *Memory) DoctorByUserID(ctx context.Context, userID string) (models.DoctorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.doctors {
		if d.UserID == userID {
			return d, nil
		}
	}
	return models.DoctorProfile{}, apperror.NotFound("doctor", userID)
}

func (m *Memory) DoctorForPatientUser(ctx context.Context, patientUserID string) (models.DoctorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.assignments) - 1; i >= 0; i-- {
		a := m.assignments[i]
		if p, ok := m.patients[a.patientID]; ok && p.UserID == patientUserID {
			if d, ok := m.doctors[a.doctorID]; ok {
				return d, nil
			}
		}
	}
	return models.DoctorProfile{}, apperror.NotFound("doctor for patient", patientUserID)
}

func (m *Memory) MarkRead(ctx context.Context, receiverUserID, senderUserID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ReceiverUserID == receiverUserID && msg.SenderUserID == senderUserID && !msg.IsRead && !msg.IsDeleted {
			msg.IsRead = true
			n++
		}
	}
	return n, nil
}
