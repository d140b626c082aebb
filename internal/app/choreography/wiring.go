// Package choreography assembles the Content, Student and Payment contexts
// around a single event dispatcher.
package choreography

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"

	appcontent "github.com/ahrav/academy/internal/app/content"
	apppayment "github.com/ahrav/academy/internal/app/payment"
	appstudent "github.com/ahrav/academy/internal/app/student"
	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/internal/domain/payment"
	eventdispatcher "github.com/ahrav/academy/internal/infra/event_dispatcher"
	"github.com/ahrav/academy/pkg/common/logger"
	"github.com/ahrav/academy/pkg/common/timeutil"
)

// Stores groups the repositories of all three contexts.
type Stores struct {
	Courses  content.CourseRepository
	Student  appstudent.Repositories
	Payments payment.Repository
}

// Deps is everything Wire needs besides the dispatcher.
type Deps struct {
	Stores  Stores
	Catalog content.CourseCatalog
	Gateway payment.Gateway

	// OutlineInvalidator, when set, is registered ahead of every other
	// handler so outline reads made later in a chain see fresh data.
	OutlineInvalidator events.EventHandler

	Time   timeutil.Provider
	Logger *logger.Logger
	Tracer trace.Tracer
}

// Academy exposes the command services of the three contexts.
type Academy struct {
	Content  *appcontent.Service
	Students *appstudent.Service
	Payments *apppayment.Service
}

// Wire creates the services and registers their handlers on d. Handlers are
// registered in a fixed order, which is also the order they run in for an
// event several of them subscribe to.
func Wire(ctx context.Context, d *eventdispatcher.Dispatcher, deps Deps) (*Academy, error) {
	tp := deps.Time
	if tp == nil {
		tp = timeutil.Default()
	}

	contentSvc := appcontent.NewService(deps.Stores.Courses, d, tp, deps.Logger, deps.Tracer)
	studentSvc := appstudent.NewService(deps.Stores.Student, deps.Catalog, d, tp, deps.Logger, deps.Tracer)
	paymentSvc := apppayment.NewService(deps.Stores.Payments, deps.Gateway, d, tp, deps.Logger, deps.Tracer)

	var handlers []events.EventHandler
	if deps.OutlineInvalidator != nil {
		handlers = append(handlers, deps.OutlineInvalidator)
	}
	handlers = append(handlers,
		appstudent.NewEnrollmentHandler(studentSvc, deps.Tracer),
		apppayment.NewEnrollmentHandler(paymentSvc, deps.Tracer),
		appcontent.NewCounterHandler(deps.Stores.Courses, deps.Logger, deps.Tracer),
	)
	for _, h := range handlers {
		if err := d.Register(ctx, h); err != nil {
			return nil, fmt.Errorf("register handler %s: %w", h.HandlerName(), err)
		}
	}

	return &Academy{Content: contentSvc, Students: studentSvc, Payments: paymentSvc}, nil
}
