package pricing

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr-cost/core/pricing"
	"cdr-cost/internal/errors"
)

const usageType = "USE1-US-outbound-minutes"

func entryJSON(t *testing.T, usd string) string {
	t.Helper()
	e, err := pricing.NewEntry(pricing.EntryParams{UsageType: usageType, USD: usd})
	require.NoError(t, err)
	return string(e)
}

type fakePriceList struct {
	pages  [][]string
	inputs []*awspricing.GetProductsInput
	err    error
}

func (f *fakePriceList) GetProducts(ctx context.Context, in *awspricing.GetProductsInput, _ ...func(*awspricing.Options)) (*awspricing.GetProductsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	i := 0
	if in.NextToken != nil {
		i = len(aws.ToString(in.NextToken))
	}
	out := &awspricing.GetProductsOutput{FormatVersion: aws.String(pricing.FormatVersion)}
	if i < len(f.pages) {
		out.PriceList = f.pages[i]
	}
	if i+1 < len(f.pages) {
		// token length encodes the next page index
		tok := make([]byte, i+1)
		for j := range tok {
			tok[j] = 'x'
		}
		out.NextToken = aws.String(string(tok))
	}
	return out, nil
}

func TestAWSCatalogSendsQueryAndFollowsPages(t *testing.T) {
	fake := &fakePriceList{pages: [][]string{
		{entryJSON(t, "0.0040000000")},
		{entryJSON(t, "0.0050000000"), entryJSON(t, "0.0060000000")},
	}}
	c := NewAWSCatalog(fake, nil)

	entries, err := c.FetchPrices(context.Background(), pricing.NewQuery(usageType))
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Len(t, fake.inputs, 2)

	in := fake.inputs[0]
	assert.Equal(t, "aws_v1", aws.ToString(in.FormatVersion))
	assert.Equal(t, "AmazonChimeVoiceConnector", aws.ToString(in.ServiceCode))
	require.Len(t, in.Filters, 1)
	assert.Equal(t, "UsageType", aws.ToString(in.Filters[0].Field))
	assert.Equal(t, pricingtypes.FilterTypeTermMatch, in.Filters[0].Type)
	assert.Equal(t, usageType, aws.ToString(in.Filters[0].Value))

	last, err := pricing.ExtractUnitPrice(entries[2])
	require.NoError(t, err)
	assert.Equal(t, "0.006", last.String())
}

func TestAWSCatalogEmptyResult(t *testing.T) {
	c := NewAWSCatalog(&fakePriceList{}, nil)
	entries, err := c.FetchPrices(context.Background(), pricing.NewQuery(usageType))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAWSCatalogFailureIsUnavailable(t *testing.T) {
	c := NewAWSCatalog(&fakePriceList{err: stderrors.New("throttled")}, nil)
	_, err := c.FetchPrices(context.Background(), pricing.NewQuery(usageType))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeCatalogUnavailable))
	assert.Contains(t, err.Error(), "throttled")
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "prices.json")
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestFileCatalogLayouts(t *testing.T) {
	e := entryJSON(t, "0.0192000000")
	quoted := `"` + jsonEscape(e) + `"`

	cases := map[string]string{
		"array":      "[" + e + "]",
		"price list": `{"FormatVersion":"aws_v1","PriceList":[` + quoted + `]}`,
		"offer file": `{"offerCode":"AmazonChimeVoiceConnector","products":{"SKU1":{"sku":"SKU1","attributes":{"usagetype":"` + usageType + `"}}},
			"terms":{"OnDemand":{"SKU1":{"SKU1.JRTCKXETXF":{"priceDimensions":{"SKU1.JRTCKXETXF.6YS6EN2CT7":{"unit":"Minutes","pricePerUnit":{"USD":"0.0192000000"}}}}}}}}`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			c, err := LoadFileCatalog(writeFile(t, content))
			require.NoError(t, err)
			assert.Equal(t, []string{usageType}, c.UsageTypes())

			entries, err := c.FetchPrices(context.Background(), pricing.NewQuery(usageType))
			require.NoError(t, err)
			require.Len(t, entries, 1)

			price, err := pricing.ExtractUnitPrice(entries[0])
			require.NoError(t, err)
			assert.Equal(t, "0.0192", price.String())

			none, err := c.FetchPrices(context.Background(), pricing.NewQuery("USE1-US-inbound-minutes"))
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestFileCatalogErrors(t *testing.T) {
	_, err := LoadFileCatalog(filepath.Join(t.TempDir(), "missing.json"))
	assert.True(t, errors.IsType(err, errors.TypeCatalogUnavailable))

	_, err = LoadFileCatalog(writeFile(t, `{"unexpected":true}`))
	assert.True(t, errors.IsType(err, errors.TypeCatalogUnavailable))
}

func TestMemoryCatalog(t *testing.T) {
	c := NewMemoryCatalog()
	require.NoError(t, c.AddPrice(usageType, "0.0192"))

	q := pricing.NewQuery(usageType)
	entries, err := c.FetchPrices(context.Background(), q)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, []pricing.Query{q}, c.Queries())

	c.FailWith(stderrors.New("down"))
	_, err = c.FetchPrices(context.Background(), q)
	assert.True(t, errors.IsType(err, errors.TypeCatalogUnavailable))
}

func TestStaticCatalog(t *testing.T) {
	_, err := NewStaticCatalog("abc")
	assert.Error(t, err)

	c, err := NewStaticCatalog("0.0125")
	require.NoError(t, err)
	entries, err := c.FetchPrices(context.Background(), pricing.NewQuery("EUC1-DE-inbound-minutes"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	p, err := pricing.ExtractPrice(entries[0])
	require.NoError(t, err)
	assert.Equal(t, "0.0125", p.Text)
}

func TestCatalogFactory(t *testing.T) {
	ctx := context.Background()

	c, err := CatalogFactory(ctx, BackendMemory, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryCatalog{}, c)

	_, err = CatalogFactory(ctx, BackendFile, map[string]string{})
	assert.Error(t, err)

	_, err = CatalogFactory(ctx, Backend("ftp"), nil)
	assert.Error(t, err)
}

func jsonEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
