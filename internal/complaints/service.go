package complaints

import (
	"context"
	"strings"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/models"

	"go.uber.org/zap"
)

type Store interface {
	ComplaintCategories(ctx context.Context) ([]models.ComplaintCategory, error)
	ComplaintSubcategories(ctx context.Context) ([]models.ComplaintSubcategory, error)
	ComplaintsForPatient(ctx context.Context, patientID string) ([]models.Complaint, error)
	ActiveComplaintsForDoctor(ctx context.Context, doctorID string, limit int) ([]models.Complaint, error)
	CreateComplaint(ctx context.Context, nc models.NewComplaint) (models.Complaint, error)
	UpdateComplaint(ctx context.Context, complaintID string, upd models.ComplaintUpdate) error
	EndComplaint(ctx context.Context, complaintID string) error
}

type Service struct {
	store Store
	limit int
}

// NewService builds the service; limit caps the doctor overview.
func NewService(store Store, limit int) *Service {
	if limit <= 0 {
		limit = 10
	}
	return &Service{store: store, limit: limit}
}

func wrap(op string, err error) error {
	if apperror.IsNotFound(err) || apperror.IsValidation(err) {
		return err
	}
	return apperror.Remote(op, err)
}

func (s *Service) Categories(ctx context.Context) ([]models.ComplaintCategory, error) {
	out, err := s.store.ComplaintCategories(ctx)
	if err != nil {
		return nil, wrap("list complaint categories", err)
	}
	if out == nil {
		out = []models.ComplaintCategory{}
	}
	return out, nil
}

func (s *Service) Subcategories(ctx context.Context) ([]models.ComplaintSubcategory, error) {
	out, err := s.store.ComplaintSubcategories(ctx)
	if err != nil {
		return nil, wrap("list complaint subcategories", err)
	}
	if out == nil {
		out = []models.ComplaintSubcategory{}
	}
	return out, nil
}

func (s *Service) ForPatient(ctx context.Context, patientID string) ([]models.Complaint, error) {
	out, err := s.store.ComplaintsForPatient(ctx, patientID)
	if err != nil {
		logger.Log.Error("list patient complaints", zap.String("patient_id", patientID), zap.Error(err))
		return nil, wrap("list complaints", err)
	}
	if out == nil {
		out = []models.Complaint{}
	}
	return out, nil
}

// ForDoctorPatients returns the newest active complaints across the
// doctor's patients.
func (s *Service) ForDoctorPatients(ctx context.Context, doctorID string) ([]models.Complaint, error) {
	out, err := s.store.ActiveComplaintsForDoctor(ctx, doctorID, s.limit)
	if err != nil {
		logger.Log.Error("list doctor complaints", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, wrap("list complaints", err)
	}
	if out == nil {
		out = []models.Complaint{}
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, nc models.NewComplaint) (models.Complaint, error) {
	nc.Description = strings.TrimSpace(nc.Description)
	switch {
	case nc.PatientID == "":
		return models.Complaint{}, apperror.Invalid("patient_id", "patient is required")
	case nc.SubcategoryID == "":
		return models.Complaint{}, apperror.Invalid("subcategory_id", "subcategory is required")
	case nc.Description == "":
		return models.Complaint{}, apperror.Invalid("description", "description is required")
	}

	c, err := s.store.CreateComplaint(ctx, nc)
	if err != nil {
		logger.Log.Error("create complaint", zap.String("patient_id", nc.PatientID), zap.Error(err))
		return models.Complaint{}, wrap("create complaint", err)
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, complaintID string, upd models.ComplaintUpdate) error {
	if strings.TrimSpace(upd.Description) == "" && upd.SubcategoryID == "" {
		return apperror.Invalid("", "nothing to update")
	}
	if err := s.store.UpdateComplaint(ctx, complaintID, upd); err != nil {
		return wrap("update complaint", err)
	}
	return nil
}

// End marks the complaint inactive with today's end date.
func (s *Service) End(ctx context.Context, complaintID string) error {
	if err := s.store.EndComplaint(ctx, complaintID); err != nil {
		return wrap("end complaint", err)
	}
	return nil
}
