// Package eventhandler contains the reactions to domain events.
package eventhandler

import (
	"context"
	"time"

	"github.com/learnhub/learnhub-core/internal/application/command"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE ACTIVITY HANDLER
// Keeps the derived course data fresh after ledger writes:
//  1. drops the cached course stats snapshot
//  2. recomputes the course and instructor counters, retrying transient
//     failures within the event's timeout
// ═══════════════════════════════════════════════════════════════════════════

// CourseRefresher recomputes a course's cached counters.
type CourseRefresher interface {
	Handle(ctx context.Context, cmd command.RefreshCourseStatsCommand) (*command.RefreshCourseStatsResult, error)
}

// CacheInvalidator drops cached course snapshots.
type CacheInvalidator interface {
	InvalidateCourseStats(ctx context.Context, courseID string) error
}

// CourseActivityConfig configures OnCourseActivityHandler.
type CourseActivityConfig struct {
	// Timeout bounds one event's work, retries included.
	Timeout time.Duration

	// Retry applies to the recomputation. Not-found and validation errors
	// are never retried.
	Retry retry.Policy

	// RefreshEnabled is consulted per event; nil means enabled.
	RefreshEnabled func() bool
}

// DefaultCourseActivityConfig returns the default configuration.
func DefaultCourseActivityConfig() CourseActivityConfig {
	return CourseActivityConfig{
		Timeout: 10 * time.Second,
		Retry: retry.Policy{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
			Jitter:       0.1,
		},
	}
}

// OnCourseActivityHandler reacts to every course-scoped event.
type OnCourseActivityHandler struct {
	refresher   CourseRefresher
	invalidator CacheInvalidator
	log         *logger.Logger
	config      CourseActivityConfig
}

// NewOnCourseActivityHandler creates the handler. invalidator may be nil.
func NewOnCourseActivityHandler(refresher CourseRefresher, invalidator CacheInvalidator, log *logger.Logger, config CourseActivityConfig) *OnCourseActivityHandler {
	if log == nil {
		log = logger.Nop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultCourseActivityConfig().Timeout
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry = DefaultCourseActivityConfig().Retry
	}

	h := &OnCourseActivityHandler{
		refresher:   refresher,
		invalidator: invalidator,
		log:         log.With(logger.Component("on_course_activity")),
		config:      config,
	}
	if h.config.Retry.OnRetry == nil {
		h.config.Retry.OnRetry = func(attempt int, err error, delay time.Duration) {
			h.log.Warn("refresh course stats failed, retrying",
				logger.Int("attempt", attempt),
				logger.Duration("delay", delay),
				logger.Err(err),
			)
		}
	}
	return h
}

// Events lists the event types the handler subscribes to.
func (h *OnCourseActivityHandler) Events() []shared.EventType {
	return []shared.EventType{
		shared.EventEnrollmentCreated,
		shared.EventProgressUpdated,
		shared.EventEnrollmentCompleted,
		shared.EventCertificateIssued,
		shared.EventStatusChanged,
		shared.EventReviewSubmitted,
	}
}

// Subscribe registers the handler on the bus.
func (h *OnCourseActivityHandler) Subscribe(bus shared.EventSubscriber) error {
	for _, t := range h.Events() {
		if err := bus.Subscribe(t, h.Handle); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (h *OnCourseActivityHandler) Handle(event shared.Event) error {
	scoped, ok := event.(shared.CourseScoped)
	if !ok {
		h.log.Warn("event without course scope", logger.String("event_type", string(event.EventType())))
		return nil
	}
	courseID := scoped.CourseRef()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	if h.invalidator != nil {
		if err := h.invalidator.InvalidateCourseStats(ctx, courseID); err != nil {
			h.log.Warn("invalidate course stats failed", logger.CourseID(courseID), logger.Err(err))
		}
	}

	if h.config.RefreshEnabled != nil && !h.config.RefreshEnabled() {
		return nil
	}
	// Progress reports do not move any cached counter.
	if event.EventType() == shared.EventProgressUpdated {
		return nil
	}

	err := retry.Do(ctx, h.config.Retry, func(ctx context.Context) error {
		_, err := h.refresher.Handle(ctx, command.RefreshCourseStatsCommand{CourseID: courseID})
		if shared.IsNotFound(err) || shared.IsValidation(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		h.log.Error("refresh course stats failed",
			logger.CourseID(courseID),
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return err
	}
	return nil
}
