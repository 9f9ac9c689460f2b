package service

import (
	"encoding/json"
	"log"
	"time"

	"coursely/internal/models"
)

// EnrollmentService handles the free-course enrollment path and progress
// tracking. Paid-course enrollment is created by the payment store inside
// the completion transaction, never here.
type EnrollmentService struct {
	enrollments EnrollmentStore
	courses     CourseStore
}

func NewEnrollmentService(enrollments EnrollmentStore, courses CourseStore) *EnrollmentService {
	return &EnrollmentService{enrollments: enrollments, courses: courses}
}

// EnrollFree enrolls a student in a free course directly, without a Payment.
// Re-enrolling is a no-op returning the existing enrollment.
func (s *EnrollmentService) EnrollFree(userID, courseID uint) (*models.Enrollment, error) {
	course, err := s.courses.GetByID(courseID)
	if err != nil || !course.IsPublished {
		return nil, ErrCourseNotFound
	}
	if !course.IsFree() {
		return nil, ErrPaidCourse
	}
	if course.ProfessorID == userID {
		return nil, ErrOwnCourse
	}
	if existing, err := s.enrollments.FindByUserCourse(userID, courseID); err == nil {
		return existing, nil
	}
	e := &models.Enrollment{
		UserID:             userID,
		CourseID:           courseID,
		ProgressPercent:    0,
		CompletedLessonIDs: "[]",
		EnrolledAt:         time.Now(),
	}
	if err := s.enrollments.Create(e); err != nil {
		// Unique index may have caught a concurrent enrollment; re-read.
		if existing, ferr := s.enrollments.FindByUserCourse(userID, courseID); ferr == nil {
			return existing, nil
		}
		return nil, err
	}
	log.Printf("[ENROLL] user=%d enrolled in free course=%d", userID, courseID)
	return e, nil
}

func (s *EnrollmentService) ListMine(userID uint) ([]models.Enrollment, error) {
	return s.enrollments.ListByUser(userID)
}

// MarkLessonComplete records a finished lesson and accumulated watch time,
// recomputing the progress percentage from the course lesson count.
func (s *EnrollmentService) MarkLessonComplete(userID, courseID, lessonID uint, watchSeconds int64) (*models.Enrollment, error) {
	e, err := s.enrollments.FindByUserCourse(userID, courseID)
	if err != nil {
		return nil, ErrNotEnrolled
	}
	var done []uint
	if e.CompletedLessonIDs != "" {
		if err := json.Unmarshal([]byte(e.CompletedLessonIDs), &done); err != nil {
			done = nil
		}
	}
	seen := false
	for _, id := range done {
		if id == lessonID {
			seen = true
			break
		}
	}
	if !seen {
		done = append(done, lessonID)
	}
	raw, _ := json.Marshal(done)
	e.CompletedLessonIDs = string(raw)
	if watchSeconds > 0 {
		e.TotalWatchSeconds += watchSeconds
	}
	if course, err := s.courses.GetByID(courseID); err == nil && course.LessonCount > 0 {
		e.ProgressPercent = float64(len(done)) / float64(course.LessonCount) * 100
		if e.ProgressPercent > 100 {
			e.ProgressPercent = 100
		}
	}
	if err := s.enrollments.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}
