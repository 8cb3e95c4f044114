package doctors

import (
	"context"
	"errors"
	"testing"
	"time"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/supabase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	doctor   models.DoctorProfile
	patients []models.PatientSummary
	updates  []models.ProfileUpdate
	created  []models.NewPatient
	err      error
}

func (f *fakeStore) DoctorByUserID(_ context.Context, userID string) (models.DoctorProfile, error) {
	if f.err != nil {
		return models.DoctorProfile{}, f.err
	}
	if userID != f.doctor.UserID {
		return models.DoctorProfile{}, apperror.NotFound("doctor", userID)
	}
	return f.doctor, nil
}

func (f *fakeStore) DoctorByID(_ context.Context, id string) (models.DoctorProfile, error) {
	if id != f.doctor.ID {
		return models.DoctorProfile{}, apperror.NotFound("doctor", id)
	}
	return f.doctor, nil
}

func (f *fakeStore) DoctorPatients(context.Context, string) ([]models.PatientSummary, error) {
	return f.patients, f.err
}

func (f *fakeStore) UpdateDoctor(_ context.Context, _ string, upd models.ProfileUpdate) error {
	f.updates = append(f.updates, upd)
	return f.err
}

func (f *fakeStore) Specializations(context.Context) ([]models.Specialization, error) {
	return []models.Specialization{{ID: 1, Name: "Cardiology"}}, f.err
}

func (f *fakeStore) RefreshPatientCount(context.Context, string) (int, error) {
	return len(f.patients), f.err
}

func (f *fakeStore) CreatePatient(_ context.Context, _, userID string, np models.NewPatient) (models.PatientSummary, error) {
	if f.err != nil {
		return models.PatientSummary{}, f.err
	}
	f.created = append(f.created, np)
	p := models.PatientSummary{ID: "p-new", UserID: userID, Name: np.Name, Surname: np.Surname}
	f.patients = append(f.patients, p)
	return p, nil
}

type fakeAuth struct {
	calls int
	err   error
}

func (a *fakeAuth) AdminCreateUser(_ context.Context, email, _ string, _ map[string]interface{}) (*supabase.User, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &supabase.User{ID: "user-" + email, Email: email}, nil
}

func validPatient() models.NewPatient {
	return models.NewPatient{
		Email:    "zeynep@gmail.com",
		Password: "secret1",
		Name:     "Zeynep",
		Surname:  "Kaya",
		Gender:   "female",
	}
}

func TestValidateNewPatient(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeAuth{})

	tests := []struct {
		name  string
		edit  func(*models.NewPatient)
		field string
	}{
		{"missing email", func(p *models.NewPatient) { p.Email = "" }, "email"},
		{"malformed email", func(p *models.NewPatient) { p.Email = "not-an-email" }, "email"},
		{"short password", func(p *models.NewPatient) { p.Password = "12345" }, "password"},
		{"blank name", func(p *models.NewPatient) { p.Name = "   " }, "name"},
		{"missing surname", func(p *models.NewPatient) { p.Surname = "" }, "surname"},
		{"missing gender", func(p *models.NewPatient) { p.Gender = "" }, "gender"},
		{"unknown gender", func(p *models.NewPatient) { p.Gender = "x" }, "gender"},
		{"example.com", func(p *models.NewPatient) { p.Email = "a@example.com" }, "email"},
		{"test.com", func(p *models.NewPatient) { p.Email = "a@TEST.com" }, "email"},
		{"invalid.com", func(p *models.NewPatient) { p.Email = "a@invalid.com" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPatient()
			tt.edit(&p)
			err := svc.ValidateNewPatient(p)
			var ve *apperror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, svc.ValidateNewPatient(validPatient()))
}

func TestAddPatient(t *testing.T) {
	store := &fakeStore{doctor: models.DoctorProfile{ID: "d1", UserID: "u1"}}
	auth := &fakeAuth{}
	svc := NewService(store, auth)

	p, err := svc.AddPatient(context.Background(), "d1", validPatient())
	require.NoError(t, err)
	assert.Equal(t, "user-zeynep@gmail.com", p.UserID)
	assert.Equal(t, 1, auth.calls)
	require.Len(t, store.created, 1)
}

func TestAddPatientRejectedBeforeRemoteCalls(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{}
	svc := NewService(store, auth)

	p := validPatient()
	p.Email = "someone@example.com"
	_, err := svc.AddPatient(context.Background(), "d1", p)
	assert.True(t, apperror.IsValidation(err))
	assert.Zero(t, auth.calls)
	assert.Empty(t, store.created)
}

func TestAddPatientAuthFailure(t *testing.T) {
	store := &fakeStore{}
	auth := &fakeAuth{err: &apperror.RemoteError{Op: "create auth user", StatusCode: 422, Detail: "already registered"}}
	svc := NewService(store, auth)

	_, err := svc.AddPatient(context.Background(), "d1", validPatient())
	var re *apperror.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 422, re.StatusCode)
	assert.Empty(t, store.created)
}

func TestProfile(t *testing.T) {
	store := &fakeStore{doctor: models.DoctorProfile{ID: "d1", UserID: "u1", Name: "Ayşe"}}
	svc := NewService(store, &fakeAuth{})

	d, err := svc.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "d1", d.ID)

	_, err = svc.Profile(context.Background(), "u2")
	assert.True(t, apperror.IsNotFound(err))

	store.err = errors.New("connection refused")
	_, err = svc.Profile(context.Background(), "u1")
	assert.True(t, apperror.IsRemote(err))
}

func TestUpdateProfile(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(store, &fakeAuth{})
	ctx := context.Background()

	assert.True(t, apperror.IsValidation(svc.UpdateProfile(ctx, "d1", models.ProfileUpdate{})))

	blank := " "
	assert.True(t, apperror.IsValidation(svc.UpdateProfile(ctx, "d1", models.ProfileUpdate{Name: &blank})))

	name := "Ayşe"
	require.NoError(t, svc.UpdateProfile(ctx, "d1", models.ProfileUpdate{Name: &name}))
	require.Len(t, store.updates, 1)
	assert.Equal(t, "Ayşe", *store.updates[0].Name)
}

func TestPatientsNeverNil(t *testing.T) {
	svc := NewService(&fakeStore{}, &fakeAuth{})
	patients, err := svc.Patients(context.Background(), "d1")
	require.NoError(t, err)
	assert.NotNil(t, patients)
}

func TestCalculateAge(t *testing.T) {
	birth := time.Date(1990, time.June, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 33, CalculateAge(birth, time.Date(2024, time.June, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 34, CalculateAge(birth, time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 33, CalculateAge(birth, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))

	svc := NewService(&fakeStore{}, &fakeAuth{})
	assert.Equal(t, -1, svc.Age(nil))
}

func TestFormatGender(t *testing.T) {
	assert.Equal(t, "Not specified", FormatGender(""))
	assert.Equal(t, "Male", FormatGender("Male"))
	assert.Equal(t, "Female", FormatGender("Kadın"))
	assert.Equal(t, "Other", FormatGender("Diğer"))
	assert.Equal(t, "Nonbinary", FormatGender("Nonbinary"))
}
