package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdr-cost/internal/errors"
)

const chimeEntry = `{
  "product": {
    "productFamily": "Voice Connector",
    "attributes": {"usagetype": "USE1-US-outbound-minutes", "servicecode": "AmazonChimeVoiceConnector"},
    "sku": "2X3SKV5N7Q3BR9RN"
  },
  "serviceCode": "AmazonChimeVoiceConnector",
  "terms": {
    "OnDemand": {
      "2X3SKV5N7Q3BR9RN.JRTCKXETXF": {
        "priceDimensions": {
          "2X3SKV5N7Q3BR9RN.JRTCKXETXF.6YS6EN2CT7": {
            "unit": "Minutes",
            "endRange": "Inf",
            "description": "$0.0192 per minute for outbound calls",
            "appliesTo": [],
            "rateCode": "2X3SKV5N7Q3BR9RN.JRTCKXETXF.6YS6EN2CT7",
            "beginRange": "0",
            "pricePerUnit": {"USD": "0.0192000000"}
          }
        },
        "sku": "2X3SKV5N7Q3BR9RN",
        "effectiveDate": "2019-08-01T00:00:00Z",
        "offerTermCode": "JRTCKXETXF",
        "termAttributes": {}
      }
    }
  },
  "version": "20190801000000",
  "publicationDate": "2019-08-01T00:00:00Z"
}`

func mustEntry(t *testing.T, usd string) Entry {
	t.Helper()
	e, err := NewEntry(EntryParams{UsageType: "USE1-US-outbound-minutes", USD: usd})
	require.NoError(t, err)
	return e
}

func TestExtractPriceFromCatalogDocument(t *testing.T) {
	p, err := ExtractPrice(Entry(chimeEntry))
	require.NoError(t, err)

	assert.Equal(t, "0.0192000000", p.Text)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("0.0192")))
	assert.Equal(t, "2X3SKV5N7Q3BR9RN", p.SKU)
	assert.Equal(t, "2X3SKV5N7Q3BR9RN.JRTCKXETXF", p.OfferTermCode)
	assert.Equal(t, "2X3SKV5N7Q3BR9RN.JRTCKXETXF.6YS6EN2CT7", p.RateCode)
	assert.Equal(t, "Minutes", p.Unit)
	assert.Equal(t, CurrencyUSD, p.Currency)
}

func TestExtractUnitPriceReturnsCatalogDecimal(t *testing.T) {
	for _, usd := range []string{"0.0192", "0.004", "1", "0.0000000001"} {
		amount, err := ExtractUnitPrice(mustEntry(t, usd))
		require.NoError(t, err)
		assert.Equal(t, decimal.RequireFromString(usd).String(), amount.String(), usd)
	}
}

func TestExtractPicksLexicographicallyFirstKeys(t *testing.T) {
	entry := Entry(`{"terms":{"OnDemand":{
		"B.TERM":{"priceDimensions":{"B.RATE":{"pricePerUnit":{"USD":"9.0"}}}},
		"A.TERM":{"priceDimensions":{
			"A.RATE.2":{"pricePerUnit":{"USD":"2.0"}},
			"A.RATE.1":{"pricePerUnit":{"USD":"1.0"}}
		}}
	}}}`)

	for i := 0; i < 20; i++ {
		p, err := ExtractPrice(entry)
		require.NoError(t, err)
		assert.Equal(t, "A.TERM", p.OfferTermCode)
		assert.Equal(t, "A.RATE.1", p.RateCode)
		assert.Equal(t, "1.0", p.Text)
	}
}

func TestExtractMalformedEntries(t *testing.T) {
	cases := map[string]string{
		"not json":         `nope`,
		"array":            `[]`,
		"no terms":         `{"product":{}}`,
		"no on demand":     `{"terms":{"Reserved":{}}}`,
		"empty on demand":  `{"terms":{"OnDemand":{}}}`,
		"no dimensions":    `{"terms":{"OnDemand":{"T":{}}}}`,
		"no price":         `{"terms":{"OnDemand":{"T":{"priceDimensions":{"R":{"unit":"Minutes"}}}}}}`,
		"no usd":           `{"terms":{"OnDemand":{"T":{"priceDimensions":{"R":{"pricePerUnit":{"EUR":"1"}}}}}}}`,
		"numeric usd":      `{"terms":{"OnDemand":{"T":{"priceDimensions":{"R":{"pricePerUnit":{"USD":1}}}}}}}`,
		"non decimal usd":  `{"terms":{"OnDemand":{"T":{"priceDimensions":{"R":{"pricePerUnit":{"USD":"abc"}}}}}}}`,
		"term not object":  `{"terms":{"OnDemand":{"T":"x"}}}`,
		"dimension string": `{"terms":{"OnDemand":{"T":{"priceDimensions":{"R":"x"}}}}}`,
	}

	for name, doc := range cases {
		_, err := ExtractUnitPrice(Entry(doc))
		require.Error(t, err, name)
		assert.True(t, errors.IsType(err, errors.TypeMalformedCatalogEntry), "%s: %v", name, err)
	}
}

func TestSelectPricePolicies(t *testing.T) {
	entries := []Entry{mustEntry(t, "0.03"), mustEntry(t, "0.01"), mustEntry(t, "0.02")}

	p, err := SelectPrice(entries, SelectLast)
	require.NoError(t, err)
	assert.Equal(t, "0.02", p.Text)

	p, err = SelectPrice(entries, SelectFirst)
	require.NoError(t, err)
	assert.Equal(t, "0.03", p.Text)

	p, err = SelectPrice(entries, SelectCheapest)
	require.NoError(t, err)
	assert.Equal(t, "0.01", p.Text)
}

func TestSelectPriceFailsOnAnyMalformedEntry(t *testing.T) {
	entries := []Entry{mustEntry(t, "0.03"), Entry(`{"terms":{}}`)}

	_, err := SelectPrice(entries, SelectFirst)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeMalformedCatalogEntry))

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 1, e.Context["entry_index"])
}

func TestSelectPriceEmpty(t *testing.T) {
	_, err := SelectPrice(nil, SelectLast)
	assert.True(t, errors.IsType(err, errors.TypeNoPriceFound))
}

func TestParseSelection(t *testing.T) {
	sel, err := ParseSelection("")
	require.NoError(t, err)
	assert.Equal(t, SelectLast, sel)

	sel, err = ParseSelection(" Cheapest ")
	require.NoError(t, err)
	assert.Equal(t, SelectCheapest, sel)

	_, err = ParseSelection("best")
	assert.Error(t, err)
}

func TestNewQuery(t *testing.T) {
	q := NewQuery("USE1-US-outbound-minutes")

	assert.Equal(t, "aws_v1", q.FormatVersion)
	assert.Equal(t, "AmazonChimeVoiceConnector", q.ServiceCode)
	assert.Equal(t, Filter{Field: "UsageType", Type: "TERM_MATCH", Value: "USE1-US-outbound-minutes"}, q.Filter)
	assert.Equal(t, "USE1-US-outbound-minutes", q.UsageType())
}
