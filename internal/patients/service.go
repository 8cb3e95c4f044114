// Package patients assembles the patient detail screen and measurement
// history for doctors.
package patients

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Store interface {
	PatientByID(ctx context.Context, patientID string) (models.PatientSummary, error)
	LastMessageForUser(ctx context.Context, userID string) (*models.LastMessage, error)
	MeasurementTypes(ctx context.Context) ([]models.MeasurementType, error)
	LatestMeasurements(ctx context.Context, patientID string) (map[int]models.MeasurementRecord, error)
	MeasurementHistory(ctx context.Context, patientID string, typeID int) ([]models.MeasurementRecord, error)
	Measurement(ctx context.Context, measurementID string) (models.MeasurementRecord, error)
}

type Service struct {
	store Store
	loc   *time.Location
	now   func() time.Time
}

func NewService(store Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

func wrap(op string, err error) error {
	if apperror.IsNotFound(err) || apperror.IsValidation(err) {
		return err
	}
	return apperror.Remote(op, err)
}

// Detail loads the patient, the newest message involving them and their
// health data tiles. The patient lookup and the tiles load concurrently.
func (s *Service) Detail(ctx context.Context, patientID string) (models.PatientDetail, error) {
	var (
		patient    models.PatientSummary
		last       *models.LastMessage
		categories []models.HealthDataCategory
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.PatientByID(gctx, patientID)
		if err != nil {
			return err
		}
		patient = p
		if p.UserID == "" {
			return nil
		}
		lm, err := s.store.LastMessageForUser(gctx, p.UserID)
		if err != nil {
			logger.Log.Warn("load last message", zap.String("patient_id", patientID), zap.Error(err))
			return nil
		}
		if lm != nil {
			lm.SenderName = "Doctor"
			if lm.SenderUserID == p.UserID {
				lm.SenderName = "Patient"
				if name := p.FullName(); name != "" {
					lm.SenderName = name
				}
			}
		}
		last = lm
		return nil
	})
	g.Go(func() error {
		categories = s.healthDataCategories(gctx, patientID)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Log.Error("load patient detail", zap.String("patient_id", patientID), zap.Error(err))
		return models.PatientDetail{}, wrap("load patient", err)
	}

	return models.PatientDetail{
		PatientSummary:       patient,
		LastMessage:          last,
		HealthDataCategories: categories,
	}, nil
}

// healthDataCategories never fails; a broken lookup yields no tiles.
func (s *Service) healthDataCategories(ctx context.Context, patientID string) []models.HealthDataCategory {
	types, err := s.store.MeasurementTypes(ctx)
	if err != nil {
		logger.Log.Warn("load measurement types", zap.Error(err))
		return []models.HealthDataCategory{}
	}
	if len(types) == 0 {
		return defaultCategories()
	}

	latest, err := s.store.LatestMeasurements(ctx, patientID)
	if err != nil {
		logger.Log.Warn("load latest measurements", zap.String("patient_id", patientID), zap.Error(err))
		latest = nil
	}

	now := s.now()
	out := make([]models.HealthDataCategory, 0, len(types))
	for _, t := range types {
		c := models.HealthDataCategory{
			ID:                strconv.Itoa(t.ID),
			Title:             t.Name,
			IconName:          IconFor(t.Code),
			MeasurementTypeID: t.ID,
			Unit:              t.Unit,
		}
		if m, ok := latest[t.ID]; ok {
			c.LatestValue = LatestValueLabel(m.Value, t.Unit, m.MeasuredAt, now, s.loc)
		}
		out = append(out, c)
	}
	return out
}

func defaultCategories() []models.HealthDataCategory {
	return []models.HealthDataCategory{
		{ID: "blood_glucose", Title: "Blood Glucose", IconName: "tint", MeasurementTypeID: 1, Unit: "mg/dL"},
		{ID: "blood_pressure", Title: "Blood Pressure", IconName: "heart", MeasurementTypeID: 2, Unit: "mmHg"},
		{ID: "weight", Title: "Weight", IconName: "balance-scale", MeasurementTypeID: 3, Unit: "kg"},
		{ID: "height", Title: "Height", IconName: "arrows-v", MeasurementTypeID: 4, Unit: "cm"},
	}
}

var icons = map[string]string{
	"blood_glucose":     "tint",
	"blood_pressure":    "heart",
	"weight":            "balance-scale",
	"height":            "arrows-v",
	"temperature":       "thermometer-half",
	"pulse":             "heartbeat",
	"oxygen_saturation": "heart",
	"cholesterol":       "flask",
	"hemoglobin":        "tint",
	"bmi":               "calculator",
}

func IconFor(code string) string {
	if icon, ok := icons[code]; ok {
		return icon
	}
	return "plus-square"
}

// LatestValueLabel renders "<value> <unit> (<when>)" where when is Today,
// Yesterday, "N days ago" within a week, and DD.MM.YYYY after that.
func LatestValueLabel(value float64, unit string, measuredAt, now time.Time, loc *time.Location) string {
	label := strconv.FormatFloat(value, 'f', -1, 64)
	if unit != "" {
		label += " " + unit
	}
	if measuredAt.IsZero() {
		return label
	}

	days := int(now.Sub(measuredAt).Hours() / 24)
	var when string
	switch {
	case days <= 0:
		when = "Today"
	case days == 1:
		when = "Yesterday"
	case days < 7:
		when = fmt.Sprintf("%d days ago", days)
	default:
		if loc == nil {
			loc = time.UTC
		}
		when = measuredAt.In(loc).Format("02.01.2006")
	}
	return label + " (" + when + ")"
}

func (s *Service) MeasurementHistory(ctx context.Context, patientID string, typeID int) ([]models.MeasurementRecord, error) {
	if typeID <= 0 {
		return nil, apperror.Invalid("type_id", "invalid measurement type")
	}
	out, err := s.store.MeasurementHistory(ctx, patientID, typeID)
	if err != nil {
		logger.Log.Error("load measurement history",
			zap.String("patient_id", patientID), zap.Int("type_id", typeID), zap.Error(err))
		return nil, wrap("load measurement history", err)
	}
	if out == nil {
		out = []models.MeasurementRecord{}
	}
	return out, nil
}

func (s *Service) MeasurementDetails(ctx context.Context, measurementID string) (models.MeasurementRecord, error) {
	m, err := s.store.Measurement(ctx, measurementID)
	if err != nil {
		return models.MeasurementRecord{}, wrap("load measurement", err)
	}
	return m, nil
}
