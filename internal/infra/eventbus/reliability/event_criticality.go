// Package reliability classifies academy events by how much damage losing
// them downstream would do. The outbox relay uses the classification to mark
// messages and to choose how loudly to report delivery failures.
package reliability

import (
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/payment"
	"github.com/ahrav/academy/internal/domain/student"
)

// IsCriticalEvent reports whether eventType records a money movement or a
// terminal state change that no later message would restate.
//
// Critical events are those that:
// 1. Won't be naturally retransmitted by subsequent messages
// 2. Would leave consumers inconsistent if dropped
func IsCriticalEvent(eventType events.EventType) bool {
	switch eventType {
	case payment.EventTypePaymentConfirmed,
		payment.EventTypePaymentRejected,
		payment.EventTypePaymentRefunded:
		return true

	case student.EventTypeStudentEnrolled,
		student.EventTypeEnrollmentPaymentFailed,
		student.EventTypeEnrollmentRefunded,
		student.EventTypeCourseCompletedForStudent,
		student.EventTypeCertificateIssued:
		return true

	case content.EventTypeCourseDeactivated:
		return true

	// Progress and catalog edits are superseded by later state.
	case student.EventTypeLessonCompleted,
		content.EventTypeLessonAdded,
		content.EventTypeLessonUpdated:
		return false

	default:
		return false
	}
}
