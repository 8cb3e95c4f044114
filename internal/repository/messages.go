package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthtracker-doctors/internal/models"

	"github.com/jackc/pgx/v5"
)

func (r *Postgres) MessageTypes(ctx context.Context) ([]models.MessageType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM message_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query message types: %w", err)
	}
	defer rows.Close()

	var types []models.MessageType
	for rows.Next() {
		var t models.MessageType
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

const messageColumns = `
	m.id::text, m.sender_user_id::text, m.receiver_user_id::text, m.message_type_id,
	m.content, m.is_read, m.is_deleted, m.created_at,
	COALESCE(mt.name, ''), COALESCE(su.email, ''), COALESCE(ru.email, '')`

const messageJoins = `
	FROM messages m
	LEFT JOIN message_types mt ON mt.id = m.message_type_id
	LEFT JOIN users su ON su.id = m.sender_user_id AND su.is_deleted = false
	LEFT JOIN users ru ON ru.id = m.receiver_user_id AND ru.is_deleted = false`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (models.MessageWithDetails, error) {
	var m models.MessageWithDetails
	err := row.Scan(
		&m.ID, &m.SenderUserID, &m.ReceiverUserID, &m.MessageTypeID,
		&m.Content, &m.IsRead, &m.IsDeleted, &m.CreatedAt,
		&m.MessageTypeName, &m.SenderEmail, &m.ReceiverEmail,
	)
	return m, err
}

func (r *Postgres) ConversationMessages(ctx context.Context, userID, otherUserID string, limit, offset int) ([]models.MessageWithDetails, int, error) {
	where := `WHERE m.is_deleted = false AND (m.sender_user_id = $1 OR m.receiver_user_id = $1)`
	args := []interface{}{userID}
	if otherUserID != "" {
		where = `WHERE m.is_deleted = false AND (
			(m.sender_user_id = $1 AND m.receiver_user_id = $2) OR
			(m.sender_user_id = $2 AND m.receiver_user_id = $1))`
		args = append(args, otherUserID)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM messages m `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversation: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s %s %s ORDER BY m.created_at ASC, m.id ASC LIMIT $%d OFFSET $%d`,
		messageColumns, messageJoins, where, len(args)+1, len(args)+2)
	rows, err := r.db.Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var msgs []models.MessageWithDetails
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		msgs = append(msgs, m)
	}
	return msgs, total, rows.Err()
}

func (r *Postgres) InsertMessage(ctx context.Context, msg models.NewMessage) (models.MessageWithDetails, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (sender_user_id, receiver_user_id, message_type_id, content, is_read, is_deleted)
		VALUES ($1, $2, $3, $4, false, false)
		RETURNING id::text`,
		msg.SenderUserID, msg.ReceiverUserID, msg.MessageTypeID, msg.Content,
	).Scan(&id)
	if err != nil {
		return models.MessageWithDetails{}, fmt.Errorf("insert message: %w", err)
	}

	row := r.db.QueryRow(ctx, `SELECT `+messageColumns+messageJoins+` WHERE m.id = $1`, id)
	out, err := scanMessage(row)
	if err != nil {
		return models.MessageWithDetails{}, notFound(err, "message", id)
	}
	return out, nil
}

func (r *Postgres) MessageCreatedAt(ctx context.Context, messageID string) (time.Time, error) {
	var createdAt time.Time
	err := r.db.QueryRow(ctx,
		`SELECT created_at FROM messages WHERE id::text = $1 AND is_deleted = false`, messageID,
	).Scan(&createdAt)
	if err != nil {
		return time.Time{}, notFound(err, "message", messageID)
	}
	return createdAt, nil
}

func (r *Postgres) CountConversation(ctx context.Context, userID, otherUserID string, since *time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM messages
		WHERE is_deleted = false AND (
			(sender_user_id = $1 AND receiver_user_id = $2) OR
			(sender_user_id = $2 AND receiver_user_id = $1))`
	args := []interface{}{userID, otherUserID}
	if since != nil {
		query += ` AND created_at > $3`
		args = append(args, *since)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count conversation: %w", err)
	}
	return count, nil
}

func (r *Postgres) AssignedPatientUserIDs(ctx context.Context, doctorID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.user_id::text
		FROM doctor_patients dp
		JOIN patients p ON p.id = dp.patient_id AND p.is_deleted = false
		WHERE dp.doctor_id = $1 AND dp.is_deleted = false AND p.user_id IS NOT NULL`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query assigned patients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Postgres) CountFromSenders(ctx context.Context, senderUserIDs []string, since *time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM messages WHERE is_deleted = false AND sender_user_id = ANY($1::uuid[])`
	args := []interface{}{senderUserIDs}
	if since != nil {
		query += ` AND created_at > $2`
		args = append(args, *since)
	}

	var count int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages from senders: %w", err)
	}
	return count, nil
}

// PatientsWithLastMessage loads the overview in one round trip: the newest
// message per patient and the unread count come from LATERAL subqueries.
func (r *Postgres) PatientsWithLastMessage(ctx context.Context, doctorID string) ([]models.PatientWithLastMessage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id::text, COALESCE(p.user_id::text, ''), COALESCE(p.name, ''), COALESCE(p.surname, ''),
			p.birth_date, COALESCE(g.name, ''), COALESCE(p.patient_note, ''), p.created_at,
			COALESCE(d.name, ''), COALESCE(d.surname, ''),
			lm.id, lm.content, lm.created_at, lm.sender_user_id,
			COALESCE(uc.unread, 0)
		FROM doctor_patients dp
		JOIN doctors d ON d.id = dp.doctor_id AND d.is_deleted = false
		JOIN patients p ON p.id = dp.patient_id AND p.is_deleted = false
		LEFT JOIN genders g ON g.id = p.gender_id
		LEFT JOIN LATERAL (
			SELECT m.id::text AS id, m.content, m.created_at, m.sender_user_id::text AS sender_user_id
			FROM messages m
			WHERE m.is_deleted = false
				AND (m.sender_user_id = p.user_id OR m.receiver_user_id = p.user_id)
			ORDER BY m.created_at DESC
			LIMIT 1
		) lm ON true
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread
			FROM messages m
			WHERE m.is_deleted = false AND m.is_read = false
				AND m.sender_user_id = p.user_id AND m.receiver_user_id = d.user_id
		) uc ON true
		WHERE dp.doctor_id = $1 AND dp.is_deleted = false
		ORDER BY lm.created_at DESC NULLS LAST, p.name ASC`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query patients with last message: %w", err)
	}
	defer rows.Close()

	var out []models.PatientWithLastMessage
	for rows.Next() {
		var (
			p                      models.PatientWithLastMessage
			doctorName, doctorSur  string
			lmID, lmContent, lmSnd *string
			lmCreated              *time.Time
		)
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Name, &p.Surname,
			&p.BirthDate, &p.GenderName, &p.PatientNote, &p.CreatedAt,
			&doctorName, &doctorSur,
			&lmID, &lmContent, &lmCreated, &lmSnd,
			&p.UnreadCount,
		); err != nil {
			return nil, err
		}

		if lmID != nil {
			lm := &models.LastMessage{ID: *lmID, CreatedAt: *lmCreated}
			if lmContent != nil {
				lm.Content = *lmContent
			}
			if lmSnd != nil {
				lm.SenderUserID = *lmSnd
			}
			lm.SenderName = lastMessageSender(p.PatientSummary, lm.SenderUserID, doctorName, doctorSur)
			p.LastMessage = lm
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func lastMessageSender(p models.PatientSummary, senderUserID, doctorName, doctorSurname string) string {
	if senderUserID == p.UserID {
		if name := p.FullName(); name != "" {
			return name
		}
		return "Patient"
	}
	d := models.DoctorProfile{Name: doctorName, Surname: doctorSurname}
	if name := d.FullName(); name != "" {
		return "Dr. " + name
	}
	return "Dr. Doctor"
}

func (r *Postgres) MarkRead(ctx context.Context, receiverUserID, senderUserID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET is_read = true
		WHERE receiver_user_id = $1 AND sender_user_id = $2
			AND is_read = false AND is_deleted = false`,
		receiverUserID, senderUserID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LastMessageForUser returns the newest message the user sent or received,
// nil when there is none.
func (r *Postgres) LastMessageForUser(ctx context.Context, userID string) (*models.LastMessage, error) {
	var lm models.LastMessage
	err := r.db.QueryRow(ctx, `
		SELECT m.id::text, m.content, m.created_at, m.sender_user_id::text
		FROM messages m
		WHERE m.is_deleted = false AND (m.sender_user_id = $1 OR m.receiver_user_id = $1)
		ORDER BY m.created_at DESC
		LIMIT 1`, userID,
	).Scan(&lm.ID, &lm.Content, &lm.CreatedAt, &lm.SenderUserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last message: %w", err)
	}
	return &lm, nil
}
