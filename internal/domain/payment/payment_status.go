package payment

// Status is the lifecycle state of a Payment.
type Status string

const (
	// StatusPending means the payment is open and has not been sent to the gateway.
	StatusPending Status = "PENDING"

	// StatusConfirmed means the gateway accepted the charge.
	StatusConfirmed Status = "CONFIRMED"

	// StatusRejected means the gateway declined the charge. Terminal.
	StatusRejected Status = "REJECTED"

	// StatusRefunded means at least part of the charge was returned. Further
	// refunds are allowed until the whole amount is refunded.
	StatusRefunded Status = "REFUNDED"
)

func (s Status) String() string { return string(s) }

// ParseStatus converts a string to a Status.
func ParseStatus(s string) Status {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusRejected, StatusRefunded:
		return Status(s)
	default:
		return "" // represents unspecified
	}
}

// validateTransition checks if the current status can transition to the target status.
func (s Status) validateTransition(target Status) bool {
	switch s {
	case StatusPending:
		return target == StatusConfirmed || target == StatusRejected
	case StatusConfirmed:
		return target == StatusRefunded
	case StatusRefunded:
		// Repeated partial refunds.
		return target == StatusRefunded
	case StatusRejected:
		return false
	default:
		return false
	}
}
