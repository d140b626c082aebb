package content

import "github.com/google/uuid"

// Lesson is an entity inside the Course aggregate.
type Lesson struct {
	id              uuid.UUID
	courseID        uuid.UUID
	title           string
	order           int
	required        bool
	completionCount int64
}

// ReconstructLesson rebuilds a Lesson from stored fields.
func ReconstructLesson(id, courseID uuid.UUID, title string, order int, required bool, completionCount int64) *Lesson {
	return &Lesson{
		id:              id,
		courseID:        courseID,
		title:           title,
		order:           order,
		required:        required,
		completionCount: completionCount,
	}
}

func (l *Lesson) ID() uuid.UUID          { return l.id }
func (l *Lesson) CourseID() uuid.UUID    { return l.courseID }
func (l *Lesson) Title() string          { return l.title }
func (l *Lesson) Order() int             { return l.order }
func (l *Lesson) Required() bool         { return l.required }
func (l *Lesson) CompletionCount() int64 { return l.completionCount }
