package lambda

import (
	"context"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogs "cdr-cost/adapters/pricing"
	"cdr-cost/adapters/storage"
	"cdr-cost/core/engine"
	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
)

func s3Event(bucket string, keys ...string) events.S3Event {
	var ev events.S3Event
	for _, k := range keys {
		ev.Records = append(ev.Records, events.S3EventRecord{
			EventSource: "aws:s3",
			EventName:   "ObjectCreated:Put",
			S3: events.S3Entity{
				Bucket: events.S3Bucket{Name: bucket},
				Object: events.S3Object{Key: k},
			},
		})
	}
	return ev
}

type recorder struct {
	locs []types.Location
}

func (r *recorder) ProcessObject(ctx context.Context, loc types.Location) (*engine.Outcome, error) {
	r.locs = append(r.locs, loc)
	return &engine.Outcome{Status: engine.StatusIgnored}, nil
}

func TestLocationDecodesKeys(t *testing.T) {
	loc, err := Location(s3Event("cdrs", "folder/Amazon-Chime-Voice-Connector-CDRs/json/call+one%3D1.json").Records[0])
	require.NoError(t, err)
	assert.Equal(t, "cdrs", loc.Bucket)
	assert.Equal(t, "folder/Amazon-Chime-Voice-Connector-CDRs/json/call one=1.json", loc.Key)

	_, err = Location(s3Event("cdrs", "bad%zzkey").Records[0])
	assert.True(t, errors.IsType(err, errors.TypeInvalidRecord))
}

func TestHandleProcessesFirstRecordOnly(t *testing.T) {
	r := &recorder{}
	h := NewHandler(r, nil)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "req-1"})
	cost, err := h.Handle(ctx, s3Event("cdrs", "a.json", "b.json"))
	require.NoError(t, err)
	assert.Equal(t, "", cost)
	assert.Equal(t, []types.Location{{Bucket: "cdrs", Key: "a.json"}}, r.locs)

	cost, err = h.Handle(context.Background(), events.S3Event{})
	require.NoError(t, err)
	assert.Equal(t, "", cost)
	assert.Len(t, r.locs, 1)
}

func TestHandleReturnsCost(t *testing.T) {
	catalog := catalogs.NewMemoryCatalog()
	require.NoError(t, catalog.AddPrice("USE1-US-outbound-minutes", "0.0192"))
	store := storage.NewMemoryStore()
	key := "folder/Amazon-Chime-Voice-Connector-CDRs/x.json"
	require.NoError(t, store.Put(context.Background(), types.Location{Bucket: "in", Key: key},
		[]byte(`{"UsageType":"USE1-US-outbound-minutes","BillableDurationMinutes":1.0}`), "application/json"))

	p, err := engine.New(engine.Options{
		Catalog:      catalog,
		Store:        store,
		TargetBucket: "out",
		KeyMarker:    engine.DefaultKeyMarker,
	})
	require.NoError(t, err)

	cost, err := NewHandler(p, nil).Handle(context.Background(), s3Event("in", key))
	require.NoError(t, err)
	assert.Equal(t, "0.0192", cost)

	_, ok := store.Object(types.Location{Bucket: "out", Key: key})
	assert.True(t, ok)
}

func TestHandlePropagatesErrors(t *testing.T) {
	p, err := engine.New(engine.Options{
		Catalog:      catalogs.NewMemoryCatalog(),
		Store:        storage.NewMemoryStore(),
		TargetBucket: "out",
	})
	require.NoError(t, err)

	_, err = NewHandler(p, nil).Handle(context.Background(), s3Event("in", "missing.json"))
	assert.True(t, errors.IsType(err, errors.TypeStorage))
}
