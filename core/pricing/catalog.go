// Package pricing provides the pricing catalog contract and unit price
// extraction for Voice Connector usage types.
package pricing

import (
	"context"
	"encoding/json"
)

const (
	// FormatVersion is the price list format requested from the catalog
	FormatVersion = "aws_v1"

	// ServiceCode is the catalog service code for Voice Connector
	ServiceCode = "AmazonChimeVoiceConnector"

	// FieldUsageType is the catalog attribute the usage type filter matches
	FieldUsageType = "UsageType"

	// FilterTermMatch returns only products whose field equals the value
	FilterTermMatch = "TERM_MATCH"
)

// Entry is one raw price list product as returned by the catalog
type Entry json.RawMessage

// Filter is an equality filter on a catalog attribute
type Filter struct {
	Field string
	Type  string
	Value string
}

// Query selects catalog entries. Build it with NewQuery; it is passed by
// value and never modified after construction.
type Query struct {
	FormatVersion string
	ServiceCode   string
	Filter        Filter
}

// NewQuery creates the query for a single usage type
func NewQuery(usageType string) Query {
	return Query{
		FormatVersion: FormatVersion,
		ServiceCode:   ServiceCode,
		Filter: Filter{
			Field: FieldUsageType,
			Type:  FilterTermMatch,
			Value: usageType,
		},
	}
}

// UsageType returns the filter value
func (q Query) UsageType() string {
	return q.Filter.Value
}

// Catalog is the pricing catalog collaborator.
//
// FetchPrices returns every entry matching the query. An empty result is
// not an error; it means the catalog has no price for the usage type.
// Transport and service failures are returned as CATALOG_UNAVAILABLE.
type Catalog interface {
	FetchPrices(ctx context.Context, q Query) ([]Entry, error)
}

// CatalogFunc adapts a function to the Catalog interface
type CatalogFunc func(ctx context.Context, q Query) ([]Entry, error)

// FetchPrices implements Catalog
func (f CatalogFunc) FetchPrices(ctx context.Context, q Query) ([]Entry, error) {
	return f(ctx, q)
}
