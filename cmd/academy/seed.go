package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ahrav/academy/internal/app/choreography"
	appcontent "github.com/ahrav/academy/internal/app/content"
	appstudent "github.com/ahrav/academy/internal/app/student"
	"github.com/ahrav/academy/internal/config"
	"github.com/ahrav/academy/pkg/common/logger"
)

// applySeed creates the seed's courses, lessons and students through the
// command services, so seeded data raises the same events as live data.
func applySeed(ctx context.Context, academy *choreography.Academy, seed *config.Seed, log *logger.Logger) error {
	for _, sc := range seed.Courses {
		price, err := decimal.NewFromString(sc.Price)
		if err != nil {
			return fmt.Errorf("course %q: invalid price %q: %w", sc.Name, sc.Price, err)
		}

		course, err := academy.Content.CreateCourse(ctx, appcontent.CreateCourseCommand{Name: sc.Name, Price: price})
		if err != nil {
			return fmt.Errorf("course %q: %w", sc.Name, err)
		}
		for _, sl := range sc.Lessons {
			if _, err := academy.Content.AddLesson(ctx, appcontent.AddLessonCommand{
				CourseID: course.ID(),
				Title:    sl.Title,
				Order:    sl.Order,
				Required: sl.Required,
			}); err != nil {
				return fmt.Errorf("course %q lesson %q: %w", sc.Name, sl.Title, err)
			}
		}
		if sc.Active != nil && !*sc.Active {
			if err := academy.Content.DeactivateCourse(ctx, course.ID()); err != nil {
				return fmt.Errorf("course %q: %w", sc.Name, err)
			}
		}
		log.Info(ctx, "seed", "course_id", course.ID(), "name", sc.Name, "lessons", len(sc.Lessons))
	}

	for _, ss := range seed.Students {
		st, err := academy.Students.RegisterStudent(ctx, appstudent.RegisterStudentCommand{
			FirstName: ss.FirstName,
			LastName:  ss.LastName,
			Email:     ss.Email,
		})
		if err != nil {
			return fmt.Errorf("student %q: %w", ss.Email, err)
		}
		log.Info(ctx, "seed", "student_id", st.ID(), "email", ss.Email)
	}
	return nil
}
