// Package engine provides the CDR enrichment pipeline.
// The Lambda handler and the CLI are thin wrappers around it.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"cdr-cost/core/cost"
	"cdr-cost/core/output"
	"cdr-cost/core/pricing"
	"cdr-cost/core/types"
	"cdr-cost/core/usage"
	"cdr-cost/internal/errors"
	"cdr-cost/internal/logging"
)

// DefaultKeyMarker is the path segment Voice Connector writes CDRs under
const DefaultKeyMarker = "Amazon-Chime-Voice-Connector-CDRs"

// ObjectStore reads source records and writes artifacts
type ObjectStore interface {
	Get(ctx context.Context, loc types.Location) (*types.Object, error)
	Put(ctx context.Context, loc types.Location, body []byte, contentType string) error
}

// Status is the result class of one record
type Status string

const (
	// StatusEnriched means the record carries PricePerUnitUSD and CostUSD
	StatusEnriched Status = "enriched"

	// StatusNoPrice means the catalog had no entry; the record passed
	// through unenriched
	StatusNoPrice Status = "no_price"

	// StatusSkipped means the record had no usage type; nothing was written
	StatusSkipped Status = "skipped"

	// StatusIgnored means the object key is outside the CDR prefix
	StatusIgnored Status = "ignored"
)

// Options configures a Pipeline
type Options struct {
	Catalog    pricing.Catalog
	Store      ObjectStore
	Calculator *cost.Calculator
	Selection  pricing.Selection
	Format     output.Format

	// TargetBucket receives artifacts written by ProcessObject
	TargetBucket string

	// KeyMarker restricts ProcessObject to keys containing it.
	// Empty accepts every key.
	KeyMarker string

	Logger *zap.Logger
}

// Pipeline enriches records. It holds no per-record state and is safe
// for concurrent use when its collaborators are.
type Pipeline struct {
	catalog      pricing.Catalog
	store        ObjectStore
	calculator   *cost.Calculator
	selection    pricing.Selection
	format       output.Format
	targetBucket string
	keyMarker    string
	logger       *zap.Logger
}

// Outcome describes what happened to one record
type Outcome struct {
	InvocationID string
	Status       Status
	Stages       []Stage

	UsageType usage.UsageType
	Price     *pricing.Price
	Cost      decimal.Decimal
	HasCost   bool

	Record   *types.Record
	Artifact *output.Artifact

	Source            types.Location
	SourceContentType string
	Output            types.Location
}

// CostString returns the computed cost, or "" when none was computed
func (o *Outcome) CostString() string {
	if o == nil || !o.HasCost {
		return ""
	}
	return o.Cost.String()
}

// Stage returns the last stage reached
func (o *Outcome) Stage() Stage {
	if len(o.Stages) == 0 {
		return StageFetching
	}
	return o.Stages[len(o.Stages)-1]
}

// New creates a pipeline
func New(opts Options) (*Pipeline, error) {
	if opts.Catalog == nil {
		return nil, errors.Config("pipeline requires a pricing catalog")
	}
	calc := opts.Calculator
	if calc == nil {
		calc = cost.NewCalculator(cost.ModeQuantity, cost.DefaultPrecision)
	}
	sel := opts.Selection
	if sel == "" {
		sel = pricing.SelectLast
	}
	format := opts.Format
	if format == "" {
		format = output.FormatJSON
	}
	if _, err := output.ForFormat(format); err != nil {
		return nil, errors.Config(err.Error())
	}

	return &Pipeline{
		catalog:      opts.Catalog,
		store:        opts.Store,
		calculator:   calc,
		selection:    sel,
		format:       format,
		targetBucket: opts.TargetBucket,
		keyMarker:    opts.KeyMarker,
		logger:       logging.OrNop(opts.Logger),
	}, nil
}

// Enrich prices one record in place and renders it.
//
// A record without a usage type is skipped. A usage type the catalog
// does not know yields StatusNoPrice with the record rendered as is.
// Every other failure is returned with the failing stage in its context.
func (p *Pipeline) Enrich(ctx context.Context, record *types.Record) (*Outcome, error) {
	oc := &Outcome{InvocationID: uuid.NewString()}
	return oc, p.enrich(ctx, record, oc, p.logger.With(zap.String("invocation_id", oc.InvocationID)))
}

func (p *Pipeline) enrich(ctx context.Context, record *types.Record, oc *Outcome, log *zap.Logger) error {
	oc.Record = record

	raw, skip, err := usageTypeOf(record)
	if err != nil {
		oc.Stages = []Stage{StageError}
		return err
	}
	if skip {
		oc.Status = StatusSkipped
		oc.Stages = []Stage{StageDone}
		log.Info("record has no usage type, skipping")
		return nil
	}

	ut, err := usage.Parse(raw)
	if err != nil {
		oc.Stages = []Stage{StageError}
		return err
	}
	oc.UsageType = ut
	log = log.With(zap.String("usage_type", ut.Raw))

	t := &tracker{}
	defer func() { oc.Stages = t.stages() }()

	// Fetching
	t.enter(StageFetching)
	entries, err := p.catalog.FetchPrices(ctx, pricing.NewQuery(ut.Filter()))
	if err != nil {
		return t.fail(err, errors.TypeCatalogUnavailable)
	}
	log.Debug("price list fetched", zap.Int("entries", len(entries)))

	if len(entries) == 0 {
		oc.Status = StatusNoPrice
		log.Warn("no price found, record passes through unenriched",
			zap.String("region", ut.Region),
			zap.String("direction", string(ut.Direction)),
		)
	} else {
		// Extracting
		t.enter(StageExtracting)
		price, err := pricing.SelectPrice(entries, p.selection)
		if err != nil {
			return t.fail(err, errors.TypeMalformedCatalogEntry)
		}
		oc.Price = &price

		// Computing
		t.enter(StageComputing)
		c, err := p.calculator.Compute(record, price.Text, price.Amount)
		if err != nil {
			return t.fail(err, errors.TypeMissingBillingField)
		}
		oc.Cost = c
		oc.HasCost = true
		oc.Status = StatusEnriched

		log.Info("record priced",
			zap.String("unit_price", price.Text),
			zap.String("unit", price.Unit),
			zap.String("sku", price.SKU),
			zap.String("billing_mode", string(p.calculator.Mode())),
			zap.String("cost", c.String()),
		)
	}

	// Formatting
	t.enter(StageFormatting)
	artifact, err := output.Render(record, p.format)
	if err != nil {
		return t.fail(err, errors.TypeFormat)
	}
	oc.Artifact = artifact

	t.enter(StageDone)
	return nil
}

// ProcessObject reads a CDR object, enriches it and writes the artifact
// to the target bucket: JSON under the source key, CSV under key+".csv".
func (p *Pipeline) ProcessObject(ctx context.Context, loc types.Location) (*Outcome, error) {
	oc := &Outcome{InvocationID: uuid.NewString(), Source: loc}
	log := p.logger.With(
		zap.String("invocation_id", oc.InvocationID),
		zap.String("bucket", loc.Bucket),
		zap.String("key", loc.Key),
	)

	if p.keyMarker != "" && !strings.Contains(loc.Key, p.keyMarker) {
		oc.Status = StatusIgnored
		log.Info("object is not a CDR, ignoring", zap.String("marker", p.keyMarker))
		return oc, nil
	}
	if p.store == nil {
		return oc, errors.Config("pipeline has no object store")
	}
	if p.targetBucket == "" {
		return oc, errors.Config("target bucket is not set")
	}

	data, contentType, err := p.read(ctx, loc, log)
	if err != nil {
		return oc, err
	}
	oc.SourceContentType = contentType
	log.Info("object read", zap.String("content_type", contentType), zap.Int("bytes", len(data)))

	record, err := types.ParseRecord(data)
	if err != nil {
		return oc, errors.InvalidRecord("object is not a single JSON record", err).
			WithContext("key", loc.Key)
	}

	if err := p.enrich(ctx, record, oc, log); err != nil {
		return oc, err
	}
	if oc.Status == StatusSkipped {
		return oc, nil
	}

	out := types.Location{Bucket: p.targetBucket, Key: oc.Artifact.Key(loc.Key)}
	if err := p.store.Put(ctx, out, oc.Artifact.Body, oc.Artifact.ContentType); err != nil {
		if errors.TypeOf(err) == "" {
			err = errors.Format(fmt.Sprintf("write %s", out), err)
		}
		return oc, err
	}
	oc.Output = out

	log.Info("artifact written",
		zap.String("status", string(oc.Status)),
		zap.String("output", out.String()),
		zap.String("content_type", oc.Artifact.ContentType),
		zap.Int64("content_length", oc.Artifact.Len()),
	)
	return oc, nil
}

func (p *Pipeline) read(ctx context.Context, loc types.Location, log *zap.Logger) ([]byte, string, error) {
	obj, err := p.store.Get(ctx, loc)
	if err != nil {
		if errors.TypeOf(err) == "" {
			err = errors.Storage(fmt.Sprintf("get %s", loc), err)
		}
		return nil, "", err
	}
	defer func() {
		if cerr := obj.Body.Close(); cerr != nil {
			log.Warn("failed to close object body", zap.Error(cerr))
		}
	}()

	var buf bytes.Buffer
	if obj.ContentLength > 0 {
		buf.Grow(int(obj.ContentLength))
	}
	if _, err := io.Copy(&buf, obj.Body); err != nil {
		return nil, "", errors.Storage(fmt.Sprintf("read %s", loc), err)
	}
	return buf.Bytes(), obj.ContentType, nil
}

// usageTypeOf returns the record's usage type. skip is true when the
// field is absent, null or blank.
func usageTypeOf(record *types.Record) (raw string, skip bool, err error) {
	if s, ok := record.String(types.FieldUsageType); ok {
		return s, strings.TrimSpace(s) == "", nil
	}
	v, present := record.Raw(types.FieldUsageType)
	if !present || string(v) == "null" {
		return "", true, nil
	}
	return "", false, errors.InvalidUsageType(fmt.Sprintf("UsageType is not a string: %s", v))
}
