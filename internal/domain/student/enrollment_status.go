package student

// EnrollmentStatus is the lifecycle state of an Enrollment.
type EnrollmentStatus string

const (
	// EnrollmentStatusCreated is the initial state right after an enroll request.
	EnrollmentStatusCreated EnrollmentStatus = "CREATED"

	// EnrollmentStatusPendingPayment means a payment was opened and awaits the gateway.
	EnrollmentStatusPendingPayment EnrollmentStatus = "PENDING_PAYMENT"

	// EnrollmentStatusActive means the student has access to the course.
	EnrollmentStatusActive EnrollmentStatus = "ACTIVE"

	// EnrollmentStatusCompleted means the student finished the course.
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"

	// EnrollmentStatusRejected means the payment was declined. Terminal.
	EnrollmentStatusRejected EnrollmentStatus = "REJECTED"

	// EnrollmentStatusRefunded means the payment was fully refunded. Terminal.
	EnrollmentStatusRefunded EnrollmentStatus = "REFUNDED"
)

func (s EnrollmentStatus) String() string { return string(s) }

// ParseEnrollmentStatus converts a string to an EnrollmentStatus.
func ParseEnrollmentStatus(s string) EnrollmentStatus {
	switch EnrollmentStatus(s) {
	case EnrollmentStatusCreated, EnrollmentStatusPendingPayment, EnrollmentStatusActive,
		EnrollmentStatusCompleted, EnrollmentStatusRejected, EnrollmentStatusRefunded:
		return EnrollmentStatus(s)
	default:
		return "" // represents unspecified
	}
}

// BlocksNewEnrollment reports whether an enrollment in this state prevents the
// same student from enrolling in the same course again.
func (s EnrollmentStatus) BlocksNewEnrollment() bool {
	switch s {
	case EnrollmentStatusCreated, EnrollmentStatusPendingPayment, EnrollmentStatusActive:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s EnrollmentStatus) IsTerminal() bool {
	return s == EnrollmentStatusRejected || s == EnrollmentStatusRefunded
}

// validateTransition checks if the current status can transition to the target status.
func (s EnrollmentStatus) validateTransition(target EnrollmentStatus) bool {
	switch s {
	case EnrollmentStatusCreated:
		// Paid courses wait for payment; free courses activate directly.
		return target == EnrollmentStatusPendingPayment || target == EnrollmentStatusActive
	case EnrollmentStatusPendingPayment:
		return target == EnrollmentStatusActive || target == EnrollmentStatusRejected
	case EnrollmentStatusActive:
		return target == EnrollmentStatusCompleted || target == EnrollmentStatusRefunded
	case EnrollmentStatusCompleted:
		return target == EnrollmentStatusRefunded
	case EnrollmentStatusRejected, EnrollmentStatusRefunded:
		return false
	default:
		return false
	}
}
