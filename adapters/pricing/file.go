package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"cdr-cost/core/pricing"
	"cdr-cost/internal/errors"
)

// FileCatalog serves entries from a price list document on disk.
//
// Three layouts are accepted: a JSON array of entries, the GetProducts
// response shape {"PriceList": [...]} (elements may be objects or the
// JSON-encoded strings the API returns), and a bulk offer file with
// top-level "products" and "terms" maps.
type FileCatalog struct {
	path    string
	byUsage map[string][]pricing.Entry
}

type listItem struct {
	ServiceCode string `json:"serviceCode"`
	Product     struct {
		Attributes map[string]string `json:"attributes"`
	} `json:"product"`
}

type offerFile struct {
	OfferCode string `json:"offerCode"`
	Products  map[string]struct {
		SKU        string            `json:"sku"`
		Attributes map[string]string `json:"attributes"`
	} `json:"products"`
	Terms struct {
		OnDemand map[string]json.RawMessage `json:"OnDemand"`
	} `json:"terms"`
}

// LoadFileCatalog reads and indexes a price list file
func LoadFileCatalog(path string) (*FileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.CatalogUnavailable(fmt.Sprintf("read price list %s", path), err)
	}
	entries, err := decodePriceList(data)
	if err != nil {
		return nil, errors.CatalogUnavailable(fmt.Sprintf("decode price list %s", path), err)
	}

	c := &FileCatalog{path: path, byUsage: make(map[string][]pricing.Entry)}
	for _, e := range entries {
		var item listItem
		if err := json.Unmarshal(e, &item); err != nil {
			return nil, errors.CatalogUnavailable(fmt.Sprintf("decode entry in %s", path), err)
		}
		if item.ServiceCode != "" && item.ServiceCode != pricing.ServiceCode {
			continue
		}
		usageType := item.Product.Attributes["usagetype"]
		c.byUsage[usageType] = append(c.byUsage[usageType], e)
	}
	return c, nil
}

// UsageTypes returns the indexed usage types in sorted order
func (c *FileCatalog) UsageTypes() []string {
	out := make([]string, 0, len(c.byUsage))
	for u := range c.byUsage {
		if u != "" {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out
}

// FetchPrices implements pricing.Catalog
func (c *FileCatalog) FetchPrices(ctx context.Context, q pricing.Query) ([]pricing.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.CatalogUnavailable("file catalog", err)
	}
	return append([]pricing.Entry(nil), c.byUsage[q.UsageType()]...), nil
}

func decodePriceList(data []byte) ([]pricing.Entry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		return unwrapDocuments(raw)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, err
	}
	if list, ok := probe["PriceList"]; ok {
		var raw []json.RawMessage
		if err := json.Unmarshal(list, &raw); err != nil {
			return nil, fmt.Errorf("PriceList: %w", err)
		}
		return unwrapDocuments(raw)
	}
	if _, ok := probe["products"]; ok {
		return splitOffer(data)
	}
	return nil, fmt.Errorf("unrecognised price list layout")
}

// unwrapDocuments decodes string elements holding JSON documents
func unwrapDocuments(raw []json.RawMessage) ([]pricing.Entry, error) {
	out := make([]pricing.Entry, 0, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) > 0 && r[0] == '"' {
			var doc string
			if err := json.Unmarshal(r, &doc); err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			r = json.RawMessage(doc)
		}
		out = append(out, pricing.Entry(r))
	}
	return out, nil
}

// splitOffer turns a bulk offer file into one entry per product
func splitOffer(data []byte) ([]pricing.Entry, error) {
	var offer offerFile
	if err := json.Unmarshal(data, &offer); err != nil {
		return nil, err
	}
	serviceCode := offer.OfferCode
	if serviceCode == "" {
		serviceCode = pricing.ServiceCode
	}

	skus := make([]string, 0, len(offer.Products))
	for sku := range offer.Products {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	out := make([]pricing.Entry, 0, len(skus))
	for _, sku := range skus {
		terms, ok := offer.Terms.OnDemand[sku]
		if !ok {
			continue
		}
		p := offer.Products[sku]
		doc, err := json.Marshal(map[string]interface{}{
			"serviceCode": serviceCode,
			"product": map[string]interface{}{
				"sku":        sku,
				"attributes": p.Attributes,
			},
			"terms": map[string]json.RawMessage{"OnDemand": terms},
		})
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", sku, err)
		}
		out = append(out, pricing.Entry(doc))
	}
	return out, nil
}
