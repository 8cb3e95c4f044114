package repository

import (
	"context"
	"fmt"
	"strings"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/models"
)

func (r *Postgres) ComplaintCategories(ctx context.Context) ([]models.ComplaintCategory, error) {
	rows, err := r.db.Query(ctx, `SELECT id::text, name, description, created_at FROM complaint_categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query complaint categories: %w", err)
	}
	defer rows.Close()

	var out []models.ComplaintCategory
	for rows.Next() {
		var c models.ComplaintCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Postgres) ComplaintSubcategories(ctx context.Context) ([]models.ComplaintSubcategory, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id::text, s.category_id::text, s.name, s.description, s.symptom_hint,
			s.is_critical, s.priority_level, s.created_at
		FROM complaint_subcategories s
		JOIN complaint_categories c ON c.id = s.category_id
		ORDER BY s.name`)
	if err != nil {
		return nil, fmt.Errorf("query complaint subcategories: %w", err)
	}
	defer rows.Close()

	var out []models.ComplaintSubcategory
	for rows.Next() {
		var s models.ComplaintSubcategory
		if err := rows.Scan(&s.ID, &s.CategoryID, &s.Name, &s.Description, &s.SymptomHint,
			&s.IsCritical, &s.PriorityLevel, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const complaintSelect = `
	SELECT c.id::text, c.patient_id::text, c.description, c.subcategory_id::text, c.is_active,
		c.start_date, c.end_date, c.created_at, c.updated_at,
		COALESCE(s.name, ''), COALESCE(cc.name, ''), COALESCE(s.is_critical, false), s.priority_level,
		TRIM(COALESCE(p.name, '') || ' ' || COALESCE(p.surname, ''))
	FROM complaints c
	JOIN patients p ON p.id = c.patient_id AND p.is_deleted = false
	LEFT JOIN complaint_subcategories s ON s.id = c.subcategory_id
	LEFT JOIN complaint_categories cc ON cc.id = s.category_id`

func (r *Postgres) queryComplaints(ctx context.Context, query string, args ...interface{}) ([]models.Complaint, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query complaints: %w", err)
	}
	defer rows.Close()

	var out []models.Complaint
	for rows.Next() {
		var c models.Complaint
		if err := rows.Scan(
			&c.ID, &c.PatientID, &c.Description, &c.SubcategoryID, &c.IsActive,
			&c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
			&c.SubcategoryName, &c.CategoryName, &c.IsCritical, &c.PriorityLevel,
			&c.PatientName,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Postgres) ComplaintsForPatient(ctx context.Context, patientID string) ([]models.Complaint, error) {
	return r.queryComplaints(ctx, complaintSelect+`
		WHERE c.patient_id = $1 AND c.is_deleted = false
		ORDER BY c.created_at DESC`, patientID)
}

func (r *Postgres) ActiveComplaintsForDoctor(ctx context.Context, doctorID string, limit int) ([]models.Complaint, error) {
	return r.queryComplaints(ctx, complaintSelect+`
		JOIN doctor_patients dp ON dp.patient_id = c.patient_id AND dp.is_deleted = false
		WHERE dp.doctor_id = $1 AND c.is_deleted = false AND c.is_active = true
		ORDER BY c.created_at DESC
		LIMIT $2`, doctorID, limit)
}

func (r *Postgres) CreateComplaint(ctx context.Context, nc models.NewComplaint) (models.Complaint, error) {
	var id string
	err := r.db.QueryRow(ctx, `
		INSERT INTO complaints (patient_id, description, subcategory_id, is_active, start_date, end_date, is_deleted)
		VALUES ($1, $2, $3, true, CURRENT_DATE, NULL, false)
		RETURNING id::text`,
		nc.PatientID, strings.TrimSpace(nc.Description), nc.SubcategoryID,
	).Scan(&id)
	if err != nil {
		return models.Complaint{}, fmt.Errorf("insert complaint: %w", err)
	}

	out, err := r.queryComplaints(ctx, complaintSelect+` WHERE c.id = $1`, id)
	if err != nil {
		return models.Complaint{}, err
	}
	if len(out) == 0 {
		return models.Complaint{}, apperror.NotFound("complaint", id)
	}
	return out[0], nil
}

// UpdateComplaint changes the description and subcategory when given.
func (r *Postgres) UpdateComplaint(ctx context.Context, complaintID string, upd models.ComplaintUpdate) error {
	sets := []string{"updated_at = NOW()"}
	var args []interface{}
	if d := strings.TrimSpace(upd.Description); d != "" {
		args = append(args, d)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	if upd.SubcategoryID != "" {
		args = append(args, upd.SubcategoryID)
		sets = append(sets, fmt.Sprintf("subcategory_id = $%d", len(args)))
	}
	args = append(args, complaintID)

	query := fmt.Sprintf(`UPDATE complaints SET %s WHERE id = $%d AND is_deleted = false`, strings.Join(sets, ", "), len(args))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update complaint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("complaint", complaintID)
	}
	return nil
}

func (r *Postgres) EndComplaint(ctx context.Context, complaintID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE complaints SET is_active = false, end_date = CURRENT_DATE, updated_at = NOW()
		WHERE id = $1 AND is_deleted = false`, complaintID)
	if err != nil {
		return fmt.Errorf("end complaint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("complaint", complaintID)
	}
	return nil
}
