// Package memory provides in-memory Content context stores for tests and
// local development.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/shared"
)

var _ content.CourseRepository = (*CourseStore)(nil)

// CourseStore keeps courses in a map and hands out reconstructed copies so
// callers never share state with the store.
type CourseStore struct {
	mu      sync.Mutex
	courses map[uuid.UUID]*content.Course
	applied map[content.CounterKey]struct{}
}

// NewCourseStore creates an empty in-memory course store.
func NewCourseStore() *CourseStore {
	return &CourseStore{
		courses: make(map[uuid.UUID]*content.Course),
		applied: make(map[content.CounterKey]struct{}),
	}
}

func (s *CourseStore) GetByID(_ context.Context, id uuid.UUID) (*content.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, shared.NewNotFoundError("course", id)
	}
	return copyCourse(c, c.EnrollmentCount()), nil
}

func (s *CourseStore) Add(_ context.Context, c *content.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[c.ID()]; ok {
		return &shared.ValidationError{Field: "id", Reason: "course already exists"}
	}
	s.courses[c.ID()] = copyCourse(c, c.EnrollmentCount())
	return nil
}

// Update replaces the course's content fields. Counters keep the stored values.
func (s *CourseStore) Update(_ context.Context, c *content.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.courses[c.ID()]
	if !ok {
		return shared.NewNotFoundError("course", c.ID())
	}

	completions := make(map[uuid.UUID]int64, len(stored.Lessons()))
	for _, l := range stored.Lessons() {
		completions[l.ID()] = l.CompletionCount()
	}
	lessons := make([]*content.Lesson, 0, len(c.Lessons()))
	for _, l := range c.Lessons() {
		lessons = append(lessons, content.ReconstructLesson(
			l.ID(), l.CourseID(), l.Title(), l.Order(), l.Required(), completions[l.ID()],
		))
	}

	s.courses[c.ID()] = content.ReconstructCourse(
		c.ID(), c.Name(), c.Price(), c.IsActive(), lessons,
		stored.EnrollmentCount(), c.CreatedAt(), c.UpdatedAt(),
	)
	return nil
}

func (s *CourseStore) IncrementEnrollmentCount(_ context.Context, courseID uuid.UUID, key content.CounterKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return false, shared.NewNotFoundError("course", courseID)
	}
	if _, done := s.applied[key]; done {
		return false, nil
	}

	c.IncrementEnrollmentCount()
	s.applied[key] = struct{}{}
	return true, nil
}

func (s *CourseStore) IncrementLessonCompletionCount(
	_ context.Context,
	courseID, lessonID uuid.UUID,
	key content.CounterKey,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[courseID]
	if !ok {
		return false, shared.NewNotFoundError("course", courseID)
	}
	if _, done := s.applied[key]; done {
		return false, nil
	}

	if err := c.IncrementCompletionCount(lessonID); err != nil {
		return false, err
	}
	s.applied[key] = struct{}{}
	return true, nil
}

func copyCourse(c *content.Course, enrollmentCount int64) *content.Course {
	lessons := make([]*content.Lesson, 0, len(c.Lessons()))
	for _, l := range c.Lessons() {
		lessons = append(lessons, content.ReconstructLesson(
			l.ID(), l.CourseID(), l.Title(), l.Order(), l.Required(), l.CompletionCount(),
		))
	}
	return content.ReconstructCourse(
		c.ID(), c.Name(), c.Price(), c.IsActive(), lessons,
		enrollmentCount, c.CreatedAt(), c.UpdatedAt(),
	)
}
