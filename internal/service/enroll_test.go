package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coursely/internal/models"
)

func newEnrollService(t *testing.T) (*EnrollmentService, *fakeStore) {
	t.Helper()
	fs := newFakeStore()
	fs.courses[11] = &models.Course{
		ID:          11,
		ProfessorID: 99,
		Title:       "Intro to Programming",
		Price:       decimal.Zero,
		Currency:    "EGP",
		IsPublished: true,
		LessonCount: 4,
	}
	fs.courses[10] = &models.Course{
		ID:          10,
		ProfessorID: 99,
		Title:       "Advanced Backend Development",
		Price:       decimal.NewFromInt(299),
		Currency:    "EGP",
		IsPublished: true,
		LessonCount: 12,
	}
	return NewEnrollmentService(fakeEnrollments{fs}, fakeCourses{fs}), fs
}

func TestEnrollFree(t *testing.T) {
	svc, fs := newEnrollService(t)

	e, err := svc.EnrollFree(1, 11)
	require.NoError(t, err)
	assert.Equal(t, uint(1), e.UserID)
	assert.Equal(t, uint(11), e.CourseID)
	assert.Nil(t, e.PaymentID)
	assert.Equal(t, 1, fs.enrollmentCount())

	// Re-enrolling returns the existing row.
	again, err := svc.EnrollFree(1, 11)
	require.NoError(t, err)
	assert.Equal(t, e.ID, again.ID)
	assert.Equal(t, 1, fs.enrollmentCount())
}

func TestEnrollFreeRejections(t *testing.T) {
	svc, fs := newEnrollService(t)

	_, err := svc.EnrollFree(1, 404)
	assert.ErrorIs(t, err, ErrCourseNotFound)

	_, err = svc.EnrollFree(1, 10)
	assert.ErrorIs(t, err, ErrPaidCourse)

	_, err = svc.EnrollFree(99, 11)
	assert.ErrorIs(t, err, ErrOwnCourse)

	fs.courses[12] = &models.Course{ID: 12, ProfessorID: 99, Price: decimal.Zero, IsPublished: false}
	_, err = svc.EnrollFree(1, 12)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestMarkLessonComplete(t *testing.T) {
	svc, _ := newEnrollService(t)

	_, err := svc.EnrollFree(1, 11)
	require.NoError(t, err)

	e, err := svc.MarkLessonComplete(1, 11, 101, 300)
	require.NoError(t, err)
	assert.Equal(t, float64(25), e.ProgressPercent)
	assert.Equal(t, int64(300), e.TotalWatchSeconds)
	assert.Equal(t, "[101]", e.CompletedLessonIDs)

	// Completing the same lesson twice does not move progress.
	e, err = svc.MarkLessonComplete(1, 11, 101, 60)
	require.NoError(t, err)
	assert.Equal(t, float64(25), e.ProgressPercent)
	assert.Equal(t, int64(360), e.TotalWatchSeconds)

	e, err = svc.MarkLessonComplete(1, 11, 102, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(50), e.ProgressPercent)
}

func TestMarkLessonCompleteRequiresEnrollment(t *testing.T) {
	svc, _ := newEnrollService(t)

	_, err := svc.MarkLessonComplete(1, 11, 101, 10)
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestListMineEnrollments(t *testing.T) {
	svc, _ := newEnrollService(t)

	_, err := svc.EnrollFree(1, 11)
	require.NoError(t, err)

	list, err := svc.ListMine(1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, uint(11), list[0].CourseID)

	empty, err := svc.ListMine(2)
	require.NoError(t, err)
	assert.Len(t, empty, 0)
}
