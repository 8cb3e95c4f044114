package repository

import (
	"context"
	"fmt"

	"healthtracker-doctors/internal/models"
)

func (r *Postgres) MeasurementTypes(ctx context.Context) ([]models.MeasurementType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, COALESCE(unit, ''), COALESCE(code, '') FROM measurement_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query measurement types: %w", err)
	}
	defer rows.Close()

	var out []models.MeasurementType
	for rows.Next() {
		var t models.MeasurementType
		if err := rows.Scan(&t.ID, &t.Name, &t.Unit, &t.Code); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const measurementSelect = `
	SELECT h.id::text, h.patient_id::text, h.value::float8, h.measured_at, h.method,
		h.created_at, h.updated_at,
		t.id, t.name, COALESCE(t.unit, ''), COALESCE(t.code, '')
	FROM health_measurements h
	JOIN measurement_types t ON t.id = h.measurement_type_id`

func scanMeasurement(row rowScanner) (models.MeasurementRecord, error) {
	var m models.MeasurementRecord
	err := row.Scan(
		&m.ID, &m.PatientID, &m.Value, &m.MeasuredAt, &m.Method,
		&m.CreatedAt, &m.UpdatedAt,
		&m.MeasurementType.ID, &m.MeasurementType.Name, &m.MeasurementType.Unit, &m.MeasurementType.Code,
	)
	return m, err
}

// LatestMeasurements returns the newest measurement per type for a patient,
// keyed by measurement type id.
func (r *Postgres) LatestMeasurements(ctx context.Context, patientID string) (map[int]models.MeasurementRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT DISTINCT ON (h.measurement_type_id)
			h.id::text, h.patient_id::text, h.value::float8, h.measured_at, h.method,
			h.created_at, h.updated_at,
			t.id, t.name, COALESCE(t.unit, ''), COALESCE(t.code, '')
		FROM health_measurements h
		JOIN measurement_types t ON t.id = h.measurement_type_id
		WHERE h.patient_id = $1 AND h.is_deleted = false
		ORDER BY h.measurement_type_id, h.measured_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query latest measurements: %w", err)
	}
	defer rows.Close()

	out := make(map[int]models.MeasurementRecord)
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out[m.MeasurementType.ID] = m
	}
	return out, rows.Err()
}

func (r *Postgres) MeasurementHistory(ctx context.Context, patientID string, typeID int) ([]models.MeasurementRecord, error) {
	rows, err := r.db.Query(ctx, measurementSelect+`
		WHERE h.patient_id = $1 AND h.measurement_type_id = $2 AND h.is_deleted = false
		ORDER BY h.measured_at DESC`, patientID, typeID)
	if err != nil {
		return nil, fmt.Errorf("query measurement history: %w", err)
	}
	defer rows.Close()

	var out []models.MeasurementRecord
	for rows.Next() {
		m, err := scanMeasurement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Postgres) Measurement(ctx context.Context, measurementID string) (models.MeasurementRecord, error) {
	m, err := scanMeasurement(r.db.QueryRow(ctx, measurementSelect+`
		WHERE h.id = $1 AND h.is_deleted = false`, measurementID))
	if err != nil {
		return models.MeasurementRecord{}, notFound(err, "measurement", measurementID)
	}
	return m, nil
}
