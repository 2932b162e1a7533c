package handler

import (
	"errors"
	"net/http"
	"strconv"

	"vdt-app/internal/middleware"
	"vdt-app/internal/models"
	"vdt-app/internal/repository"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type StudentHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Delete(c *gin.Context)
	// Routes maps each protected student route to its handler.
	Routes() map[middleware.RouteKey]gin.HandlerFunc
}

type studentHandler struct {
	studentRepo repository.StudentRepository
	logger      *zap.Logger
}

func NewStudentHandler(studentRepo repository.StudentRepository, logger *zap.Logger) StudentHandler {
	return &studentHandler{studentRepo: studentRepo, logger: logger}
}

func (h *studentHandler) Routes() map[middleware.RouteKey]gin.HandlerFunc {
	return map[middleware.RouteKey]gin.HandlerFunc{
		{Method: http.MethodGet, Path: "/students"}:        h.List,
		{Method: http.MethodPost, Path: "/students"}:       h.Create,
		{Method: http.MethodPut, Path: "/students/:id"}:    h.Update,
		{Method: http.MethodDelete, Path: "/students/:id"}: h.Delete,
	}
}

type CreateStudentRequest struct {
	Name   string `json:"name" binding:"required"`
	DOB    string `json:"dob" binding:"required"`
	School string `json:"school" binding:"required"`
}

// UpdateStudentRequest fields left empty are not updated.
type UpdateStudentRequest struct {
	Name   string `json:"name"`
	DOB    string `json:"dob"`
	School string `json:"school"`
}

// UpdateStudentResponse echoes the id and the submitted fields only.
type UpdateStudentResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name,omitempty"`
	DOB    string `json:"dob,omitempty"`
	School string `json:"school,omitempty"`
}

// List handles GET /students
func (h *studentHandler) List(c *gin.Context) {
	students, err := h.studentRepo.List(c.Request.Context())
	if err != nil {
		respondInternalError(c, h.logger, "Failed to list students", err)
		return
	}
	c.JSON(http.StatusOK, students)
}

// Create handles POST /students
func (h *studentHandler) Create(c *gin.Context) {
	var req CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondMessage(c, http.StatusBadRequest, "Name, dob and school are required")
		return
	}
	dob, err := models.ParseDate(req.DOB)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "dob must be a date in YYYY-MM-DD format")
		return
	}

	student := &models.Student{Name: req.Name, DOB: dob, School: req.School}
	if err := h.studentRepo.Create(c.Request.Context(), student); err != nil {
		respondInternalError(c, h.logger, "Failed to create student", err)
		return
	}

	h.logger.Info("Student created", zap.Int64("id", student.ID), zap.String("by", c.GetString(middleware.ContextUsername)))
	c.JSON(http.StatusCreated, student)
}

// Update handles PUT /students/:id
func (h *studentHandler) Update(c *gin.Context) {
	var req UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.Name == "" && req.DOB == "" && req.School == "") {
		respondMessage(c, http.StatusBadRequest, "At least one field (name, dob, school) is required")
		return
	}

	var patch models.StudentPatch
	if req.Name != "" {
		patch.Name = &req.Name
	}
	if req.DOB != "" {
		dob, err := models.ParseDate(req.DOB)
		if err != nil {
			respondMessage(c, http.StatusBadRequest, "dob must be a date in YYYY-MM-DD format")
			return
		}
		patch.DOB = &dob
	}
	if req.School != "" {
		patch.School = &req.School
	}

	id, ok := studentID(c)
	if !ok {
		respondMessage(c, http.StatusNotFound, "Student not found")
		return
	}

	if err := h.studentRepo.Update(c.Request.Context(), id, patch); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			respondMessage(c, http.StatusNotFound, "Student not found")
			return
		}
		respondInternalError(c, h.logger, "Failed to update student", err)
		return
	}

	c.JSON(http.StatusOK, UpdateStudentResponse{ID: id, Name: req.Name, DOB: req.DOB, School: req.School})
}

// Delete handles DELETE /students/:id
func (h *studentHandler) Delete(c *gin.Context) {
	id, ok := studentID(c)
	if !ok {
		respondMessage(c, http.StatusNotFound, "Student not found")
		return
	}

	if err := h.studentRepo.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrStudentNotFound) {
			respondMessage(c, http.StatusNotFound, "Student not found")
			return
		}
		respondInternalError(c, h.logger, "Failed to delete student", err)
		return
	}

	h.logger.Info("Student deleted", zap.Int64("id", id), zap.String("by", c.GetString(middleware.ContextUsername)))
	respondMessage(c, http.StatusOK, "Student deleted successfully")
}

// studentID parses the :id path parameter. An id that cannot name a
// row is reported the same as a missing row.
func studentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
