package student

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/events"
)

// Certificate proves a student completed a course. At most one exists per
// (student, course).
type Certificate struct {
	id           uuid.UUID
	studentID    uuid.UUID
	courseID     uuid.UUID
	enrollmentID uuid.UUID
	number       string
	issueDate    time.Time
	score        *float64

	events.Recorder
}

// IssueCertificate creates a certificate for a completed enrollment. Whether
// one already exists for the pair is checked by the caller and the store.
func IssueCertificate(id uuid.UUID, enrollment *Enrollment, issueDate time.Time) (*Certificate, error) {
	if enrollment.Status() != EnrollmentStatusCompleted {
		return nil, enrollment.transitionError("issue certificate for")
	}

	c := &Certificate{
		id:           id,
		studentID:    enrollment.StudentID(),
		courseID:     enrollment.CourseID(),
		enrollmentID: enrollment.ID(),
		number:       CertificateNumber(id, issueDate),
		issueDate:    issueDate,
		score:        enrollment.Score(),
	}
	c.Record(NewCertificateIssuedEvent(c, issueDate))
	return c, nil
}

// CertificateNumber renders the human-facing certificate number,
// CERT-<yyyymmdd>-<first 8 hex digits of the id>.
func CertificateNumber(id uuid.UUID, issueDate time.Time) string {
	hex := strings.ReplaceAll(id.String(), "-", "")
	return fmt.Sprintf("CERT-%s-%s", issueDate.UTC().Format("20060102"), strings.ToUpper(hex[:8]))
}

// ReconstructCertificate rebuilds a Certificate from stored fields.
func ReconstructCertificate(
	id, studentID, courseID, enrollmentID uuid.UUID,
	number string,
	issueDate time.Time,
	score *float64,
) *Certificate {
	return &Certificate{
		id:           id,
		studentID:    studentID,
		courseID:     courseID,
		enrollmentID: enrollmentID,
		number:       number,
		issueDate:    issueDate,
		score:        score,
	}
}

func (c *Certificate) ID() uuid.UUID           { return c.id }
func (c *Certificate) StudentID() uuid.UUID    { return c.studentID }
func (c *Certificate) CourseID() uuid.UUID     { return c.courseID }
func (c *Certificate) EnrollmentID() uuid.UUID { return c.enrollmentID }
func (c *Certificate) Number() string          { return c.number }
func (c *Certificate) IssueDate() time.Time    { return c.issueDate }
func (c *Certificate) Score() *float64         { return c.score }
