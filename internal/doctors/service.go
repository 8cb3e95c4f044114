// Package doctors serves the doctor's own profile and patient roster.
package doctors

import (
	"context"
	"errors"
	"strings"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/logger"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/supabase"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type Store interface {
	DoctorByUserID(ctx context.Context, userID string) (models.DoctorProfile, error)
	DoctorByID(ctx context.Context, doctorID string) (models.DoctorProfile, error)
	DoctorPatients(ctx context.Context, doctorID string) ([]models.PatientSummary, error)
	UpdateDoctor(ctx context.Context, doctorID string, upd models.ProfileUpdate) error
	Specializations(ctx context.Context) ([]models.Specialization, error)
	RefreshPatientCount(ctx context.Context, doctorID string) (int, error)
	CreatePatient(ctx context.Context, doctorID, userID string, np models.NewPatient) (models.PatientSummary, error)
}

// AuthAdmin creates login identities for new patients.
type AuthAdmin interface {
	AdminCreateUser(ctx context.Context, email, password string, userMetadata map[string]interface{}) (*supabase.User, error)
}

// Addresses on these domains never receive mail and are rejected.
var disallowedDomains = map[string]bool{
	"example.com": true,
	"test.com":    true,
	"invalid.com": true,
}

type Service struct {
	store    Store
	auth     AuthAdmin
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store, auth AuthAdmin) *Service {
	return &Service{
		store:    store,
		auth:     auth,
		validate: validator.New(),
		now:      time.Now,
	}
}

func wrap(op string, err error) error {
	if apperror.IsNotFound(err) || apperror.IsValidation(err) {
		return err
	}
	return apperror.Remote(op, err)
}

func (s *Service) Profile(ctx context.Context, userID string) (models.DoctorProfile, error) {
	d, err := s.store.DoctorByUserID(ctx, userID)
	if err != nil {
		return models.DoctorProfile{}, wrap("load doctor profile", err)
	}
	return d, nil
}

func (s *Service) ByID(ctx context.Context, doctorID string) (models.DoctorProfile, error) {
	d, err := s.store.DoctorByID(ctx, doctorID)
	if err != nil {
		return models.DoctorProfile{}, wrap("load doctor", err)
	}
	return d, nil
}

func (s *Service) Patients(ctx context.Context, doctorID string) ([]models.PatientSummary, error) {
	patients, err := s.store.DoctorPatients(ctx, doctorID)
	if err != nil {
		logger.Log.Error("list doctor patients", zap.String("doctor_id", doctorID), zap.Error(err))
		return nil, wrap("list patients", err)
	}
	if patients == nil {
		patients = []models.PatientSummary{}
	}
	return patients, nil
}

func (s *Service) UpdateProfile(ctx context.Context, doctorID string, upd models.ProfileUpdate) error {
	if upd.Empty() {
		return apperror.Invalid("", "nothing to update")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return apperror.Invalid("name", "name cannot be empty")
	}
	if upd.Surname != nil && strings.TrimSpace(*upd.Surname) == "" {
		return apperror.Invalid("surname", "surname cannot be empty")
	}
	if upd.SpecializationID != nil && *upd.SpecializationID <= 0 {
		return apperror.Invalid("specialization_id", "invalid specialization")
	}

	if err := s.store.UpdateDoctor(ctx, doctorID, upd); err != nil {
		logger.Log.Error("update doctor profile", zap.String("doctor_id", doctorID), zap.Error(err))
		return wrap("update profile", err)
	}
	return nil
}

func (s *Service) Specializations(ctx context.Context) ([]models.Specialization, error) {
	out, err := s.store.Specializations(ctx)
	if err != nil {
		return nil, wrap("list specializations", err)
	}
	if out == nil {
		out = []models.Specialization{}
	}
	return out, nil
}

func (s *Service) RefreshPatientCount(ctx context.Context, doctorID string) (int, error) {
	n, err := s.store.RefreshPatientCount(ctx, doctorID)
	if err != nil {
		return 0, wrap("refresh patient count", err)
	}
	return n, nil
}

// ValidateNewPatient checks the add-patient form.
func (s *Service) ValidateNewPatient(np models.NewPatient) error {
	np.Email = strings.TrimSpace(np.Email)
	np.Name = strings.TrimSpace(np.Name)
	np.Surname = strings.TrimSpace(np.Surname)

	if err := s.validate.Struct(np); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return apperror.Invalid("", err.Error())
	}

	at := strings.LastIndex(np.Email, "@")
	domain := strings.ToLower(np.Email[at+1:])
	if disallowedDomains[domain] {
		return apperror.Invalid("email", "please use a real email address")
	}
	return nil
}

func fieldError(fe validator.FieldError) error {
	field := strings.ToLower(fe.Field())
	switch fe.Field() {
	case "PatientNote":
		field = "patient_note"
	case "BirthDate":
		field = "birth_date"
	}

	switch fe.Tag() {
	case "required":
		return apperror.Invalid(field, field+" is required")
	case "email":
		return apperror.Invalid(field, "invalid email address")
	case "min":
		return apperror.Invalid(field, field+" must be at least "+fe.Param()+" characters")
	case "oneof":
		return apperror.Invalid(field, field+" must be one of: "+fe.Param())
	default:
		return apperror.Invalid(field, field+" is invalid")
	}
}

// AddPatient creates the patient's login, the patient record and the
// assignment to the doctor.
func (s *Service) AddPatient(ctx context.Context, doctorID string, np models.NewPatient) (models.PatientSummary, error) {
	if err := s.ValidateNewPatient(np); err != nil {
		return models.PatientSummary{}, err
	}
	np.Email = strings.TrimSpace(np.Email)

	user, err := s.auth.AdminCreateUser(ctx, np.Email, np.Password, map[string]interface{}{
		"name":    strings.TrimSpace(np.Name),
		"surname": strings.TrimSpace(np.Surname),
		"role":    "patient",
	})
	if err != nil {
		logger.Log.Error("create patient auth user", zap.String("doctor_id", doctorID), zap.Error(err))
		return models.PatientSummary{}, wrap("create patient login", err)
	}

	patient, err := s.store.CreatePatient(ctx, doctorID, user.ID, np)
	if err != nil {
		logger.Log.Error("create patient records",
			zap.String("doctor_id", doctorID),
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		return models.PatientSummary{}, wrap("create patient", err)
	}

	logger.Log.Info("patient added", zap.String("doctor_id", doctorID), zap.String("patient_id", patient.ID))
	return patient, nil
}

// CalculateAge returns full years between birth and now.
func CalculateAge(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// Age is CalculateAge against the service clock, -1 without a birth date.
func (s *Service) Age(birth *time.Time) int {
	if birth == nil {
		return -1
	}
	return CalculateAge(*birth, s.now())
}

var genderLabels = map[string]string{
	"male":   "Male",
	"female": "Female",
	"other":  "Other",
	"erkek":  "Male",
	"kadın":  "Female",
	"diğer":  "Other",
}

// FormatGender normalizes stored gender names for display.
func FormatGender(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Not specified"
	}
	if label, ok := genderLabels[strings.ToLower(name)]; ok {
		return label
	}
	return name
}
