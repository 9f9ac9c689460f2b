package domain

const (
	RoleStudent   = "STUDENT"
	RoleProfessor = "PROFESSOR"
	RoleAdmin     = "ADMIN"
)

const (
	PaymentPending    = "PENDING"
	PaymentProcessing = "PROCESSING"
	PaymentCompleted  = "COMPLETED"
	PaymentFailed     = "FAILED"
	PaymentCancelled  = "CANCELLED"
)

const (
	ReasonCancelledByUser  = "cancelled by user"
	ReasonCancelledByAdmin = "cancelled by administrator"
	ReasonAbandoned        = "exceeded time limit"
	ReasonGatewayError     = "payment gateway error"
	ReasonGatewayTimeout   = "gateway timeout"
	ReasonDeclined         = "declined by gateway"
)

// IsTerminal reports whether a payment status accepts no further webhook-driven
// transitions. CANCELLED and FAILED can still be re-opened by a manual retry.
func IsTerminal(status string) bool {
	return status == PaymentCompleted || status == PaymentFailed || status == PaymentCancelled
}
