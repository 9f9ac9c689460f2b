package service

import "errors"

// Taxonomy errors. Handlers map these to HTTP codes plus a human-readable
// message with a next-action hint; nothing else crosses the service boundary.
var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrFreeCourse           = errors.New("course is free, no payment required")
	ErrPaidCourse           = errors.New("course requires payment to enroll")
	ErrAlreadyEnrolled      = errors.New("already enrolled in this course")
	ErrNotEnrolled          = errors.New("not enrolled in this course")
	ErrOwnCourse            = errors.New("cannot purchase your own course")
	ErrPendingPaymentExists = errors.New("a pending payment already exists for this course")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrNotRetryable         = errors.New("payment is not in a retryable state")
	ErrNotCancellable       = errors.New("payment is not in a cancellable state")
	ErrForbidden            = errors.New("not allowed to access this payment")
	ErrGateway              = errors.New("payment gateway error")
	ErrConflict             = errors.New("payment was modified concurrently")
)
