package handler

import (
	"errors"
	"net/http"
	"strconv"

	"coursely/internal/middleware"
	"coursely/internal/service"

	"github.com/gin-gonic/gin"
)

type EnrollmentHandler struct {
	enrollSvc *service.EnrollmentService
}

func NewEnrollmentHandler(enrollSvc *service.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollSvc: enrollSvc}
}

// EnrollFree enrolls the requester in a free course.
func (h *EnrollmentHandler) EnrollFree(c *gin.Context) {
	userID := middleware.GetUserID(c)
	courseID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	e, err := h.enrollSvc.EnrollFree(userID, uint(courseID))
	if err != nil {
		respondEnrollError(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	enrollments, err := h.enrollSvc.ListMine(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list enrollments"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enrollments": enrollments})
}

// Progress records a completed lesson and watch time.
func (h *EnrollmentHandler) Progress(c *gin.Context) {
	userID := middleware.GetUserID(c)
	courseID, err := strconv.ParseUint(c.Param("course_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid course id"})
		return
	}
	var req struct {
		LessonID     uint  `json:"lesson_id" binding:"required"`
		WatchSeconds int64 `json:"watch_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lesson_id required"})
		return
	}
	e, err := h.enrollSvc.MarkLessonComplete(userID, uint(courseID), req.LessonID, req.WatchSeconds)
	if err != nil {
		respondEnrollError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func respondEnrollError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrCourseNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_FOUND"})
	case errors.Is(err, service.ErrPaidCourse):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "PAYMENT_REQUIRED", "hint": "initiate a payment for this course"})
	case errors.Is(err, service.ErrOwnCourse):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "OWN_COURSE"})
	case errors.Is(err, service.ErrNotEnrolled):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "NOT_ENROLLED"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "INTERNAL"})
	}
}
