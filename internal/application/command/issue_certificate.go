package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learnhub-core/internal/domain/enrollment"
	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ISSUE CERTIFICATE COMMAND
// Idempotent: a completed enrollment gets exactly one certificate stamp.
// ══════════════════════════════════════════════════════════════════════════════

// IssueCertificateCommand identifies the enrollment to certify.
type IssueCertificateCommand struct {
	EnrollmentID  string
	CorrelationID string
}

// Validate validates the command.
func (c IssueCertificateCommand) Validate() error {
	return required("IssueCertificate", "enrollment_id", c.EnrollmentID)
}

// IssueCertificateResult contains the certified enrollment.
type IssueCertificateResult struct {
	Enrollment *enrollment.Enrollment

	// Issued is false when the certificate already existed.
	Issued bool
}

// IssueCertificateHandler handles the IssueCertificateCommand.
type IssueCertificateHandler struct {
	store enrollment.Store
	opts  Options
}

// NewIssueCertificateHandler creates a new IssueCertificateHandler.
func NewIssueCertificateHandler(store enrollment.Store, opts Options) *IssueCertificateHandler {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.With(logger.Component("issue_certificate"))
	return &IssueCertificateHandler{store: store, opts: opts}
}

// Handle executes the command.
// Errors: ErrEnrollmentNotFound, ErrNotCompleted, ErrConcurrencyConflict.
func (h *IssueCertificateHandler) Handle(ctx context.Context, cmd IssueCertificateCommand) (*IssueCertificateResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	log := h.opts.Logger.With(logger.EnrollmentID(cmd.EnrollmentID))
	now := h.opts.Clock.Now()

	var result IssueCertificateResult
	err := h.store.WithinTx(ctx, func(ctx context.Context, tx enrollment.Tx) error {
		e, err := tx.Enrollments().GetForUpdate(ctx, cmd.EnrollmentID)
		if err != nil {
			return err
		}
		issued, err := e.IssueCertificate(NewCertificateNumber(now), now)
		if err != nil {
			return err
		}
		if issued {
			if err := tx.Enrollments().Update(ctx, e); err != nil {
				return err
			}
		}
		result = IssueCertificateResult{Enrollment: e, Issued: issued}
		return nil
	})
	if err != nil {
		if isBusinessError(err) {
			return nil, logRejected(log, "IssueCertificate", err)
		}
		return nil, fmt.Errorf("issue_certificate: %w", err)
	}

	e := result.Enrollment
	if !result.Issued {
		log.Debug("certificate already issued", logger.String("certificate_number", e.CertificateNumber))
		return &result, nil
	}

	log.Info("certificate issued", logger.String("certificate_number", e.CertificateNumber))
	publish(h.opts.Publisher, log,
		shared.NewCertificateIssuedEvent(e.ID, e.StudentID, e.CourseID, e.CertificateNumber, now))

	return &result, nil
}
