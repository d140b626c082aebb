// Package catalog serves the Content context's course outline to the other
// contexts, optionally through a cache kept fresh by Content events.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/academy/internal/domain/content"
	"github.com/ahrav/academy/internal/domain/events"
	"github.com/ahrav/academy/pkg/common/logger"
)

var _ content.CourseCatalog = (*RepositoryCatalog)(nil)

// RepositoryCatalog builds outlines straight from the course repository.
type RepositoryCatalog struct {
	courses content.CourseRepository
}

// NewRepositoryCatalog creates a catalog reading from courses.
func NewRepositoryCatalog(courses content.CourseRepository) *RepositoryCatalog {
	return &RepositoryCatalog{courses: courses}
}

func (c *RepositoryCatalog) GetCourseOutline(ctx context.Context, courseID uuid.UUID) (content.CourseOutline, error) {
	course, err := c.courses.GetByID(ctx, courseID)
	if err != nil {
		return content.CourseOutline{}, err
	}
	return course.Outline(), nil
}

// ErrCacheMiss is returned by a Cache that does not hold the key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is the byte store behind CachedCatalog.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

const defaultTTL = 10 * time.Minute

var (
	_ content.CourseCatalog = (*CachedCatalog)(nil)
	_ events.EventHandler   = (*CachedCatalog)(nil)
)

// CachedCatalog is a read-through cache in front of another catalog. Cache
// failures degrade to the underlying catalog. It subscribes to the Content
// events that change an outline and drops the stale entry.
type CachedCatalog struct {
	next  content.CourseCatalog
	cache Cache
	ttl   time.Duration

	logger *logger.Logger
	tracer trace.Tracer
}

// NewCachedCatalog wraps next. A non-positive ttl uses ten minutes.
func NewCachedCatalog(
	next content.CourseCatalog,
	cache Cache,
	ttl time.Duration,
	log *logger.Logger,
	tracer trace.Tracer,
) *CachedCatalog {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedCatalog{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: log.With("component", "course_catalog_cache"),
		tracer: tracer,
	}
}

func outlineKey(courseID string) string { return "academy:course_outline:" + courseID }

func (c *CachedCatalog) GetCourseOutline(ctx context.Context, courseID uuid.UUID) (content.CourseOutline, error) {
	ctx, span := c.tracer.Start(ctx, "course_catalog.get_outline",
		trace.WithAttributes(attribute.String("course_id", courseID.String())))
	defer span.End()

	key := outlineKey(courseID.String())
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var outline content.CourseOutline
		if err := json.Unmarshal(raw, &outline); err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return outline, nil
		}
		c.logger.Warn(ctx, "Discarding undecodable cached outline", "course_id", courseID)
	case !errors.Is(err, ErrCacheMiss):
		c.logger.Warn(ctx, "Course outline cache read failed", "course_id", courseID, "error", err)
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	outline, err := c.next.GetCourseOutline(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return content.CourseOutline{}, err
	}

	if raw, err := json.Marshal(outline); err == nil {
		if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
			c.logger.Warn(ctx, "Course outline cache write failed", "course_id", courseID, "error", err)
		}
	}
	return outline, nil
}

// Invalidate drops the cached outline of a course.
func (c *CachedCatalog) Invalidate(ctx context.Context, courseID string) error {
	if err := c.cache.Delete(ctx, outlineKey(courseID)); err != nil {
		return fmt.Errorf("invalidate outline %s: %w", courseID, err)
	}
	return nil
}

func (c *CachedCatalog) HandlerName() string { return "catalog.invalidate_outline" }

func (c *CachedCatalog) SupportedEvents() []events.EventType {
	return []events.EventType{
		content.EventTypeCourseCreated,
		content.EventTypeLessonAdded,
		content.EventTypeLessonUpdated,
		content.EventTypeCourseDeactivated,
		content.EventTypeCourseReactivated,
	}
}

// HandleEvent invalidates the course the event belongs to. Every Content event
// uses the course id as its aggregate id. A failed delete is logged and does
// not fail the chain; the stale entry expires with the TTL.
func (c *CachedCatalog) HandleEvent(ctx context.Context, evt events.EventEnvelope) error {
	courseID := evt.Payload.AggregateID()
	if err := c.Invalidate(ctx, courseID); err != nil {
		c.logger.Warn(ctx, "Course outline invalidation failed",
			"course_id", courseID,
			"event_type", evt.Type,
			"error", err,
		)
	}
	return nil
}
