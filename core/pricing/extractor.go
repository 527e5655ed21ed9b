package pricing

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"cdr-cost/internal/errors"
)

// CurrencyUSD is the only currency read from price dimensions
const CurrencyUSD = "USD"

// Price is the unit price read from one catalog entry
type Price struct {
	SKU           string
	OfferTermCode string
	RateCode      string
	Unit          string
	Description   string
	Currency      string

	// Text is pricePerUnit.USD exactly as the catalog wrote it
	Text string

	// Amount is Text parsed as an exact decimal
	Amount decimal.Decimal
}

// priceListItem mirrors the parts of a price list product we read.
// Term and dimension maps stay raw so a bad sibling key cannot hide the
// one we select.
type priceListItem struct {
	Product struct {
		SKU string `json:"sku"`
	} `json:"product"`
	Terms *struct {
		OnDemand map[string]json.RawMessage `json:"OnDemand"`
	} `json:"terms"`
}

type onDemandTerm struct {
	OfferTermCode   string                     `json:"offerTermCode"`
	PriceDimensions map[string]json.RawMessage `json:"priceDimensions"`
}

type priceDimension struct {
	RateCode     string                     `json:"rateCode"`
	Description  string                     `json:"description"`
	Unit         string                     `json:"unit"`
	PricePerUnit map[string]json.RawMessage `json:"pricePerUnit"`
}

// ExtractUnitPrice returns the on-demand USD unit price of an entry
func ExtractUnitPrice(entry Entry) (decimal.Decimal, error) {
	p, err := ExtractPrice(entry)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Amount, nil
}

// ExtractPrice navigates terms.OnDemand.<offerTermCode>.priceDimensions.
// <rateCode>.pricePerUnit.USD. When a level holds several keys the
// lexicographically first one is used.
func ExtractPrice(entry Entry) (Price, error) {
	var item priceListItem
	if err := json.Unmarshal(entry, &item); err != nil {
		return Price{}, errors.Wrap(errors.TypeMalformedCatalogEntry, "catalog entry is not a JSON object", err)
	}
	if item.Terms == nil || len(item.Terms.OnDemand) == 0 {
		return Price{}, errors.MalformedCatalogEntry("catalog entry has no terms.OnDemand")
	}

	termKey := firstKey(item.Terms.OnDemand)
	var term onDemandTerm
	if err := json.Unmarshal(item.Terms.OnDemand[termKey], &term); err != nil {
		return Price{}, errors.Wrapf(errors.TypeMalformedCatalogEntry, err, "on-demand term %s", termKey)
	}
	if len(term.PriceDimensions) == 0 {
		return Price{}, errors.MalformedCatalogEntry("on-demand term has no priceDimensions").
			WithContext("offer_term_code", termKey)
	}

	rateKey := firstKey(term.PriceDimensions)
	var dim priceDimension
	if err := json.Unmarshal(term.PriceDimensions[rateKey], &dim); err != nil {
		return Price{}, errors.Wrapf(errors.TypeMalformedCatalogEntry, err, "price dimension %s", rateKey)
	}

	rawUSD, ok := dim.PricePerUnit[CurrencyUSD]
	if !ok {
		return Price{}, errors.MalformedCatalogEntry("price dimension has no pricePerUnit.USD").
			WithContext("rate_code", rateKey)
	}
	var usd string
	if err := json.Unmarshal(rawUSD, &usd); err != nil {
		return Price{}, errors.Wrap(errors.TypeMalformedCatalogEntry, "pricePerUnit.USD is not a string", err)
	}
	amount, err := decimal.NewFromString(usd)
	if err != nil {
		return Price{}, errors.Wrapf(errors.TypeMalformedCatalogEntry, err, "pricePerUnit.USD %q is not a decimal", usd)
	}

	p := Price{
		SKU:           item.Product.SKU,
		OfferTermCode: termKey,
		RateCode:      rateKey,
		Unit:          dim.Unit,
		Description:   dim.Description,
		Currency:      CurrencyUSD,
		Text:          usd,
		Amount:        amount,
	}
	return p, nil
}

func firstKey(m map[string]json.RawMessage) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}
