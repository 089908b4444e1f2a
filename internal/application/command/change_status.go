package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHANGE STATUS COMMAND
// Administrative suspend / reactivate / drop.
// ══════════════════════════════════════════════════════════════════════════════

// ChangeStatusCommand requests an administrative status change.
type ChangeStatusCommand struct {
	EnrollmentID string
	Status       string

	// ActorID is the administrator or instructor performing the change.
	ActorID       string
	CorrelationID string
}

// Validate validates the command.
func (c ChangeStatusCommand) Validate() error {
	if err := required("ChangeStatus", "enrollment_id", c.EnrollmentID); err != nil {
		return err
	}
	_, err := enrollment.ParseStatus(c.Status)
	return err
}

// ChangeStatusResult contains the updated enrollment.
type ChangeStatusResult struct {
	Enrollment     *enrollment.Enrollment
	PreviousStatus enrollment.Status
}

// ChangeStatusHandler handles the ChangeStatusCommand.
type ChangeStatusHandler struct {
	store enrollment.Store
	opts  Options
}

// NewChangeStatusHandler creates a new ChangeStatusHandler.
func NewChangeStatusHandler(store enrollment.Store, opts Options) *ChangeStatusHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("change_status"))
	return &ChangeStatusHandler{store: store, opts: opts}
}

// Handle executes the command.
// Errors: ErrEnrollmentNotFound, ErrInvalidTransition, ErrConcurrencyConflict.
func (h *ChangeStatusHandler) Handle(ctx context.Context, cmd ChangeStatusCommand) (*ChangeStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	target := enrollment.Status(cmd.Status)
	log := h.opts.Logger.With(logger.EnrollmentID(cmd.EnrollmentID), logger.String("actor_id", cmd.ActorID))
	now := h.opts.Clock.Now()

	var result ChangeStatusResult
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx enrollment.Tx) error {
		e, err := tx.Enrollments().GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		result.PreviousStatus = e.Status
		if err := e.ChangeStatus(target, now); err != nil {
			return err
		}
		if err := tx.Enrollments().Update(ctx, e); err != nil {
			return err
		}
		result.Enrollment = e
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, logRejected(log, "ChangeStatus", err)
		}
		return nil, fmt.Errorf("change_status: %w", err)
	}

	e := result.Enrollment
	log.Info("enrollment status changed",
		logger.String("from", string(result.PreviousStatus)),
		logger.String("to", string(e.Status)),
	)
	publish(h.opts.Publisher, log,
		shared.NewStatusChangedEvent(e.ID, e.CourseID, string(result.PreviousStatus), string(e.Status), now))

	return &result, nil
}
