// Package command contains write operations (CQRS - Commands).
//
// Every handler validates its command, performs the write in at most one
// transaction, and publishes domain events only after the transaction
// committed. Handlers never retry; a ConcurrencyConflict is returned to the
// caller as is.
package command

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/learnhub/learnhub-core/internal/domain/shared"
	"github.com/learnhub/learnhub-core/pkg/logger"
	"github.com/learnhub/learnhub-core/pkg/timeutil"
)

// IDGenerator returns a new unique identifier.
type IDGenerator func() string

// NewUUID is the default IDGenerator.
func NewUUID() string {
	return uuid.NewString()
}

// NewCertificateNumber formats CERT-<yyyymmdd>-<8 hex>.
func NewCertificateNumber(issuedAt time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CERT-%s-%s", timeutil.DateStamp(issuedAt), strings.ToUpper(hex[:8]))
}

// Options carries the ambient collaborators every handler shares.
type Options struct {
	Clock     timeutil.Clock
	NewID     IDGenerator
	Publisher shared.EventPublisher
	Logger    *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = timeutil.SystemClock{}
	}
	if o.NewID == nil {
		o.NewID = NewUUID
	}
	if o.Publisher == nil {
		o.Publisher = shared.NopPublisher{}
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	return o
}

// publish delivers events after commit. Delivery failures are logged and do
// not fail the already committed command.
func publish(p shared.EventPublisher, log *logger.Logger, events ...shared.Event) {
	for _, ev := range events {
		if err := p.Publish(ev); err != nil {
			log.Warn("event publish failed",
				logger.String("event_type", string(ev.EventType())),
				logger.String("aggregate_id", ev.AggregateID()),
				logger.Err(err),
			)
		}
	}
}

// logRejected logs a rejected operation at warn and passes err through.
func logRejected(log *logger.Logger, op string, err error, fields ...logger.Field) error {
	fields = append(fields, logger.Operation(op), logger.Err(err))
	log.Warn("operation rejected", fields...)
	return err
}

func required(op, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return shared.NewDomainError("command", op, shared.ErrValidation, field+" is required")
	}
	return nil
}
