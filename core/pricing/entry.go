package pricing

import (
	"encoding/json"
	"fmt"
)

// EntryParams describes a synthetic on-demand catalog entry
type EntryParams struct {
	SKU       string
	UsageType string
	Unit      string
	USD       string
}

// NewEntry builds a price list entry with a single on-demand term and
// a single price dimension, laid out like the catalog's own documents.
func NewEntry(p EntryParams) (Entry, error) {
	sku := p.SKU
	if sku == "" {
		sku = "LOCAL"
	}
	unit := p.Unit
	if unit == "" {
		unit = "Minutes"
	}
	termCode := sku + ".JRTCKXETXF"
	rateCode := termCode + ".6YS6EN2CT7"

	doc := map[string]interface{}{
		"serviceCode": ServiceCode,
		"product": map[string]interface{}{
			"sku":           sku,
			"productFamily": "Voice Connector",
			"attributes": map[string]string{
				"usagetype":   p.UsageType,
				"servicecode": ServiceCode,
			},
		},
		"terms": map[string]interface{}{
			"OnDemand": map[string]interface{}{
				termCode: map[string]interface{}{
					"offerTermCode": "JRTCKXETXF",
					"sku":           sku,
					"priceDimensions": map[string]interface{}{
						rateCode: map[string]interface{}{
							"rateCode":     rateCode,
							"unit":         unit,
							"beginRange":   "0",
							"endRange":     "Inf",
							"description":  fmt.Sprintf("$%s per %s for %s", p.USD, unit, p.UsageType),
							"pricePerUnit": map[string]string{CurrencyUSD: p.USD},
						},
					},
				},
			},
		},
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return Entry(raw), nil
}
