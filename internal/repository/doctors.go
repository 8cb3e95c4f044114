package repository

import (
	"context"
	"fmt"
	"strings"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/models"

	"github.com/jackc/pgx/v5"
)

const doctorSelect = `
	SELECT d.id::text, d.user_id::text, COALESCE(d.name, ''), COALESCE(d.surname, ''),
		COALESCE(u.email, ''), COALESCE(s.name, ''), d.patient_count, d.created_at
	FROM doctors d
	JOIN users u ON u.id = d.user_id AND u.is_deleted = false
	LEFT JOIN specializations s ON s.id = d.specialization_id`

func scanDoctor(row rowScanner) (models.DoctorProfile, error) {
	var d models.DoctorProfile
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Surname, &d.Email, &d.SpecializationName, &d.PatientCount, &d.CreatedAt)
	return d, err
}

func (r *Postgres) DoctorByUserID(ctx context.Context, userID string) (models.DoctorProfile, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, doctorSelect+` WHERE d.user_id = $1 AND d.is_deleted = false`, userID))
	if err != nil {
		return models.DoctorProfile{}, notFound(err, "doctor", userID)
	}
	return d, nil
}

func (r *Postgres) DoctorByID(ctx context.Context, doctorID string) (models.DoctorProfile, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, doctorSelect+` WHERE d.id = $1 AND d.is_deleted = false`, doctorID))
	if err != nil {
		return models.DoctorProfile{}, notFound(err, "doctor", doctorID)
	}
	return d, nil
}

// DoctorForPatientUser finds the doctor currently assigned to a patient user.
func (r *Postgres) DoctorForPatientUser(ctx context.Context, patientUserID string) (models.DoctorProfile, error) {
	d, err := scanDoctor(r.db.QueryRow(ctx, doctorSelect+`
		JOIN doctor_patients dp ON dp.doctor_id = d.id AND dp.is_deleted = false
		JOIN patients p ON p.id = dp.patient_id AND p.is_deleted = false
		WHERE p.user_id = $1 AND d.is_deleted = false
		ORDER BY dp.created_at DESC
		LIMIT 1`, patientUserID))
	if err != nil {
		return models.DoctorProfile{}, notFound(err, "doctor for patient", patientUserID)
	}
	return d, nil
}

const patientSelect = `
	SELECT p.id::text, COALESCE(p.user_id::text, ''), COALESCE(p.name, ''), COALESCE(p.surname, ''),
		p.birth_date, COALESCE(g.name, ''), COALESCE(p.patient_note, ''), p.created_at
	FROM patients p
	LEFT JOIN genders g ON g.id = p.gender_id`

func scanPatient(row rowScanner) (models.PatientSummary, error) {
	var p models.PatientSummary
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Surname, &p.BirthDate, &p.GenderName, &p.PatientNote, &p.CreatedAt)
	return p, err
}

func (r *Postgres) PatientByUserID(ctx context.Context, userID string) (models.PatientSummary, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, patientSelect+` WHERE p.user_id = $1 AND p.is_deleted = false`, userID))
	if err != nil {
		return models.PatientSummary{}, notFound(err, "patient", userID)
	}
	return p, nil
}

func (r *Postgres) PatientByID(ctx context.Context, patientID string) (models.PatientSummary, error) {
	p, err := scanPatient(r.db.QueryRow(ctx, patientSelect+` WHERE p.id = $1 AND p.is_deleted = false`, patientID))
	if err != nil {
		return models.PatientSummary{}, notFound(err, "patient", patientID)
	}
	return p, nil
}

func (r *Postgres) DoctorPatients(ctx context.Context, doctorID string) ([]models.PatientSummary, error) {
	rows, err := r.db.Query(ctx, patientSelect+`
		JOIN doctor_patients dp ON dp.patient_id = p.id
		WHERE dp.doctor_id = $1 AND dp.is_deleted = false AND p.is_deleted = false
		ORDER BY p.name, p.surname`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("query doctor patients: %w", err)
	}
	defer rows.Close()

	var patients []models.PatientSummary
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

// UpdateDoctor applies the non-nil fields of the update.
func (r *Postgres) UpdateDoctor(ctx context.Context, doctorID string, upd models.ProfileUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", strings.TrimSpace(*upd.Name))
	}
	if upd.Surname != nil {
		add("surname", strings.TrimSpace(*upd.Surname))
	}
	if upd.SpecializationID != nil {
		add("specialization_id", *upd.SpecializationID)
	}

	args = append(args, doctorID)
	query := fmt.Sprintf(`UPDATE doctors SET %s WHERE id = $%d AND is_deleted = false`, strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("doctor", doctorID)
	}
	return nil
}

func (r *Postgres) Specializations(ctx context.Context) ([]models.Specialization, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name FROM specializations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query specializations: %w", err)
	}
	defer rows.Close()

	var out []models.Specialization
	for rows.Next() {
		var s models.Specialization
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const refreshPatientCount = `
	UPDATE doctors SET
		patient_count = (SELECT COUNT(*) FROM doctor_patients WHERE doctor_id = $1 AND is_deleted = false),
		updated_at = NOW()
	WHERE id = $1
	RETURNING patient_count`

// RefreshPatientCount recomputes the cached patient count from the
// assignment table.
func (r *Postgres) RefreshPatientCount(ctx context.Context, doctorID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, refreshPatientCount, doctorID).Scan(&count); err != nil {
		return 0, notFound(err, "doctor", doctorID)
	}
	return count, nil
}

// CreatePatient writes the users, patients and doctor_patients rows for an
// auth user that already exists, and refreshes the doctor's patient count.
func (r *Postgres) CreatePatient(ctx context.Context, doctorID, userID string, np models.NewPatient) (models.PatientSummary, error) {
	genderID := models.GenderMaleID
	if np.Gender == "female" {
		genderID = models.GenderFemaleID
	}

	var birthDate interface{}
	if !np.BirthDate.IsZero() {
		birthDate = np.BirthDate.Format("2006-01-02")
	}
	var note interface{}
	if n := strings.TrimSpace(np.PatientNote); n != "" {
		note = n
	}

	var patientID string
	err := r.Tx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO users (id, email, role_id) VALUES ($1, $2, 3)`,
			userID, strings.TrimSpace(np.Email)); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO patients (user_id, name, surname, birth_date, gender_id, patient_note, is_deleted)
			VALUES ($1, $2, $3, $4::date, $5, $6, false)
			RETURNING id::text`,
			userID, strings.TrimSpace(np.Name), strings.TrimSpace(np.Surname), birthDate, genderID, note,
		).Scan(&patientID); err != nil {
			return fmt.Errorf("insert patient: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO doctor_patients (doctor_id, patient_id, is_deleted) VALUES ($1, $2, false)`,
			doctorID, patientID); err != nil {
			return fmt.Errorf("insert doctor patient: %w", err)
		}

		if _, err := tx.Exec(ctx, refreshPatientCount, doctorID); err != nil {
			return fmt.Errorf("refresh patient count: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.PatientSummary{}, err
	}

	return r.PatientByID(ctx, patientID)
}
