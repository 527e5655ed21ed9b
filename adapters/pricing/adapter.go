// Package pricing provides pricing catalog backends for Voice Connector
// usage types: the AWS Price List API, a price list file on disk and an
// in-memory catalog.
package pricing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"cdr-cost/core/pricing"
	"cdr-cost/internal/errors"
)

// Backend is a catalog backend type
type Backend string

const (
	BackendAWS    Backend = "aws"
	BackendFile   Backend = "file"
	BackendMemory Backend = "memory"
)

// MemoryCatalog holds entries by usage type (for testing and fixed prices)
type MemoryCatalog struct {
	entries map[string][]pricing.Entry
	queries []pricing.Query
	err     error
	mu      sync.RWMutex
}

// NewMemoryCatalog creates an empty memory catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		entries: make(map[string][]pricing.Entry),
	}
}

// Add appends entries for a usage type
func (c *MemoryCatalog) Add(usageType string, entries ...pricing.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[usageType] = append(c.entries[usageType], entries...)
}

// AddPrice appends a synthetic on-demand entry with the given USD price
func (c *MemoryCatalog) AddPrice(usageType, usd string) error {
	entry, err := pricing.NewEntry(pricing.EntryParams{UsageType: usageType, USD: usd})
	if err != nil {
		return err
	}
	c.Add(usageType, entry)
	return nil
}

// FailWith makes every subsequent fetch fail with err
func (c *MemoryCatalog) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Queries returns the queries received so far
func (c *MemoryCatalog) Queries() []pricing.Query {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pricing.Query(nil), c.queries...)
}

// FetchPrices implements pricing.Catalog
func (c *MemoryCatalog) FetchPrices(ctx context.Context, q pricing.Query) ([]pricing.Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.queries = append(c.queries, q)
	if c.err != nil {
		return nil, errors.CatalogUnavailable("memory catalog", c.err)
	}
	return append([]pricing.Entry(nil), c.entries[q.UsageType()]...), nil
}

// NewStaticCatalog returns a catalog that answers every usage type with
// one entry priced at usd
func NewStaticCatalog(usd string) (pricing.Catalog, error) {
	if _, err := decimal.NewFromString(usd); err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", usd, err)
	}
	return pricing.CatalogFunc(func(ctx context.Context, q pricing.Query) ([]pricing.Entry, error) {
		entry, err := pricing.NewEntry(pricing.EntryParams{UsageType: q.UsageType(), USD: usd})
		if err != nil {
			return nil, errors.CatalogUnavailable("static catalog", err)
		}
		return []pricing.Entry{entry}, nil
	}), nil
}

// CatalogFactory creates catalogs by backend type
func CatalogFactory(ctx context.Context, backend Backend, config map[string]string) (pricing.Catalog, error) {
	switch Backend(strings.ToLower(string(backend))) {
	case BackendAWS, "":
		return NewAWSCatalogFromEnv(ctx, config["region"])
	case BackendFile:
		path := config["path"]
		if path == "" {
			return nil, fmt.Errorf("file catalog requires a path")
		}
		return LoadFileCatalog(path)
	case BackendMemory:
		return NewMemoryCatalog(), nil
	default:
		return nil, fmt.Errorf("unsupported catalog backend: %s", backend)
	}
}

// Ensure interfaces are implemented
var _ pricing.Catalog = (*MemoryCatalog)(nil)
var _ pricing.Catalog = (*FileCatalog)(nil)
var _ pricing.Catalog = (*AWSCatalog)(nil)
