package api

import (
	"errors"
	"net/http"
	"strconv"

	"healthtracker-doctors/internal/apperror"
	"healthtracker-doctors/internal/complaints"
	"healthtracker-doctors/internal/doctors"
	"healthtracker-doctors/internal/models"
	"healthtracker-doctors/internal/patients"
	"healthtracker-doctors/internal/supabase"

	"github.com/gin-gonic/gin"
)

// respondError maps the error taxonomy onto status codes. Remote details stay
// in the request log.
func respondError(c *gin.Context, err error, fallback string) {
	status := http.StatusInternalServerError
	switch {
	case apperror.IsValidation(err):
		status = http.StatusBadRequest
	case apperror.IsNotFound(err):
		status = http.StatusNotFound
	case apperror.IsRemote(err):
		status = http.StatusBadGateway
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": apperror.UserMessage(err, fallback)})
}

type Server struct {
	doctors    *doctors.Service
	patients   *patients.Service
	complaints *complaints.Service
	auth       *supabase.Client
}

func NewServer(d *doctors.Service, p *patients.Service, cs *complaints.Service, auth *supabase.Client) *Server {
	return &Server{doctors: d, patients: p, complaints: cs, auth: auth}
}

// Auth Handlers
func (s *Server) Login(c *gin.Context) {
	var req supabase.SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	resp, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		var re *apperror.RemoteError
		if errors.As(err, &re) && (re.StatusCode == http.StatusBadRequest || re.StatusCode == http.StatusUnauthorized) {
			_ = c.Error(err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondError(c, err, "Failed to sign in")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Doctor Handlers

// GetProfile returns the doctor resolved by RequireDoctor.
func GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentDoctor(c))
}

func (s *Server) UpdateProfile(c *gin.Context) {
	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doctorID := c.GetString("doctor_id")
	if err := s.doctors.UpdateProfile(c.Request.Context(), doctorID, req); err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}

	d, err := s.doctors.ByID(c.Request.Context(), doctorID)
	if err != nil {
		respondError(c, err, "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) GetSpecializations(c *gin.Context) {
	out, err := s.doctors.Specializations(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load specializations")
		return
	}
	c.JSON(http.StatusOK, out)
}

type patientListItem struct {
	models.PatientSummary
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

func (s *Server) GetPatients(c *gin.Context) {
	list, err := s.doctors.Patients(c.Request.Context(), c.GetString("doctor_id"))
	if err != nil {
		respondError(c, err, "Failed to load patients")
		return
	}

	out := make([]patientListItem, 0, len(list))
	for _, p := range list {
		out = append(out, patientListItem{
			PatientSummary: p,
			Age:            s.doctors.Age(p.BirthDate),
			Gender:         doctors.FormatGender(p.GenderName),
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) CreatePatient(c *gin.Context) {
	var req models.NewPatient
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.doctors.AddPatient(c.Request.Context(), c.GetString("doctor_id"), req)
	if err != nil {
		respondError(c, err, "Failed to add patient")
		return
	}
	c.JSON(http.StatusCreated, p)
}

// Patient Handlers
func (s *Server) GetPatient(c *gin.Context) {
	d, err := s.patients.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load patient")
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) GetMeasurementHistory(c *gin.Context) {
	typeID, err := strconv.Atoi(c.Param("typeId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid measurement type"})
		return
	}

	out, err := s.patients.MeasurementHistory(c.Request.Context(), c.Param("id"), typeID)
	if err != nil {
		respondError(c, err, "Failed to load measurements")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) GetMeasurement(c *gin.Context) {
	m, err := s.patients.MeasurementDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load measurement")
		return
	}
	c.JSON(http.StatusOK, m)
}

// Complaint Handlers
func (s *Server) GetPatientComplaints(c *gin.Context) {
	out, err := s.complaints.ForPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to load complaints")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) GetComplaints(c *gin.Context) {
	out, err := s.complaints.ForDoctorPatients(c.Request.Context(), c.GetString("doctor_id"))
	if err != nil {
		respondError(c, err, "Failed to load complaints")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) CreateComplaint(c *gin.Context) {
	var req models.NewComplaint
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.complaints.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to create complaint")
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (s *Server) UpdateComplaint(c *gin.Context) {
	var req models.ComplaintUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.complaints.Update(c.Request.Context(), c.Param("id"), req); err != nil {
		respondError(c, err, "Failed to update complaint")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Complaint updated"})
}

func (s *Server) EndComplaint(c *gin.Context) {
	if err := s.complaints.End(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, "Failed to end complaint")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Complaint ended"})
}

func (s *Server) GetComplaintCategories(c *gin.Context) {
	out, err := s.complaints.Categories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load categories")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) GetComplaintSubcategories(c *gin.Context) {
	out, err := s.complaints.Subcategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to load subcategories")
		return
	}
	c.JSON(http.StatusOK, out)
}
