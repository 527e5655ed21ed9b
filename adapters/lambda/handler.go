// Package lambda adapts S3 put events to the enrichment pipeline.
package lambda

import (
	"context"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"

	"cdr-cost/core/engine"
	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
	"cdr-cost/internal/logging"
)

// Processor enriches one stored CDR object
type Processor interface {
	ProcessObject(ctx context.Context, loc types.Location) (*engine.Outcome, error)
}

// Handler handles S3 events. One record is processed per invocation.
type Handler struct {
	processor Processor
	logger    *zap.Logger
}

// NewHandler creates a handler
func NewHandler(p Processor, logger *zap.Logger) *Handler {
	return &Handler{processor: p, logger: logging.OrNop(logger)}
}

// Handle processes the first record of event and returns the computed
// cost as a string, or "" when no cost was computed.
func (h *Handler) Handle(ctx context.Context, event events.S3Event) (string, error) {
	log := h.logger
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		log = log.With(zap.String("request_id", lc.AwsRequestID))
	}

	if len(event.Records) == 0 {
		log.Warn("event has no records")
		return "", nil
	}
	if n := len(event.Records); n > 1 {
		log.Warn("event has several records, processing the first only", zap.Int("records", n))
	}

	loc, err := Location(event.Records[0])
	if err != nil {
		log.Error("undecodable object key", zap.Error(err))
		return "", err
	}

	oc, err := h.processor.ProcessObject(ctx, loc)
	if err != nil {
		log.Error("enrichment failed",
			zap.String("location", loc.String()),
			zap.String("error_type", string(errors.TypeOf(err))),
			zap.Error(err),
		)
		return "", err
	}
	return oc.CostString(), nil
}

// Location returns the object a record refers to. S3 delivers keys
// form-encoded, so "+" is a space and "%XX" an escaped byte.
func Location(rec events.S3EventRecord) (types.Location, error) {
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return types.Location{}, errors.InvalidRecord("object key is not form-encoded", err).
			WithContext("key", rec.S3.Object.Key)
	}
	return types.Location{Bucket: rec.S3.Bucket.Name, Key: key}, nil
}
