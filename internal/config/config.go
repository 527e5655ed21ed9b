// Package config provides configuration management.
//
// Sources, lowest to highest precedence: Default, an optional HCL file,
// environment variables. Commands may apply flags on top. The result is
// built once per process and passed by value into constructors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"cdr-cost/core/cost"
	"cdr-cost/core/output"
	"cdr-cost/core/pricing"
	"cdr-cost/internal/errors"
	"cdr-cost/internal/logging"
)

// Environment variables
const (
	EnvConfigFile     = "CDR_COST_CONFIG"
	EnvTargetBucket   = "TARGET_BUCKET_NAME"
	EnvOutputFormat   = "OUTPUT_FORMAT"
	EnvBillingMode    = "BILLING_MODE"
	EnvPriceSelection = "PRICE_SELECTION"
	EnvCostPrecision  = "COST_PRECISION"
	EnvPricingRegion  = "PRICING_REGION"
	EnvKeyMarker      = "CDR_KEY_MARKER"
	EnvLogLevel       = "LOG_LEVEL"
	EnvLogFormat      = "LOG_FORMAT"
)

// Config is the main application configuration
type Config struct {
	// TargetBucket receives enriched records
	TargetBucket string `json:"target_bucket"`

	// OutputFormat is "CSV" (any case) or anything else for JSON
	OutputFormat string `json:"output_format"`

	// KeyMarker is the key segment identifying CDR objects
	KeyMarker string `json:"key_marker"`

	// Pricing contains catalog settings
	Pricing PricingConfig `json:"pricing"`

	// Billing contains cost computation settings
	Billing BillingConfig `json:"billing"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// PricingConfig contains pricing catalog settings
type PricingConfig struct {
	// Region is the Price List API endpoint region
	Region string `json:"region" hcl:"region,optional"`

	// Selection is the multi-entry policy: last, first or cheapest
	Selection string `json:"selection" hcl:"selection,optional"`

	// CatalogFile serves prices from a price list file instead of the API
	CatalogFile string `json:"catalog_file,omitempty" hcl:"catalog_file,optional"`
}

// BillingConfig contains cost computation settings
type BillingConfig struct {
	// Mode is quantity (BillableDurationMinutes) or duration (epoch seconds)
	Mode string `json:"mode"`

	// Precision is the number of decimal digits kept in CostUSD
	Precision int `json:"precision"`
}

// file mirrors Config for HCL decoding. Absent attributes stay empty and
// absent blocks stay nil, so only what the file sets overrides defaults.
type file struct {
	TargetBucket string          `hcl:"target_bucket,optional"`
	OutputFormat string          `hcl:"output_format,optional"`
	KeyMarker    string          `hcl:"key_marker,optional"`
	Pricing      *PricingConfig  `hcl:"pricing,block"`
	Billing      *fileBilling    `hcl:"billing,block"`
	Logging      *logging.Config `hcl:"logging,block"`
}

type fileBilling struct {
	Mode      string `hcl:"mode,optional"`
	Precision *int   `hcl:"precision,optional"`
}

// Default returns a default configuration
func Default() Config {
	return Config{
		OutputFormat: string(output.FormatJSON),
		KeyMarker:    "Amazon-Chime-Voice-Connector-CDRs",
		Pricing: PricingConfig{
			Region:    "us-east-1",
			Selection: string(pricing.SelectLast),
		},
		Billing: BillingConfig{
			Mode:      string(cost.ModeQuantity),
			Precision: int(cost.DefaultPrecision),
		},
		Logging: logging.DefaultConfig(),
	}
}

// Lambda returns the defaults for the Lambda runtime, which differ only
// in logging JSON to stdout
func Lambda() Config {
	cfg := Default()
	cfg.Logging = logging.LambdaConfig()
	return cfg
}

// Load returns defaults overlaid with the HCL file at path. An empty
// path or a missing file yields the defaults.
func Load(path string) (Config, error) {
	return LoadOver(Default(), path)
}

// LoadOver overlays the HCL file at path onto base
func LoadOver(base Config, path string) (Config, error) {
	cfg := base
	if path == "" {
		return cfg, nil
	}

	src, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(errors.TypeConfig, "read config file", err)
	}
	if err := cfg.decode(path, src); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) decode(filename string, src []byte) error {
	var f file
	if err := hclsimple.Decode(filename, src, nil, &f); err != nil {
		return errors.Wrap(errors.TypeConfig, "parse config file", err)
	}

	setString(&c.TargetBucket, f.TargetBucket)
	setString(&c.OutputFormat, f.OutputFormat)
	setString(&c.KeyMarker, f.KeyMarker)
	if p := f.Pricing; p != nil {
		setString(&c.Pricing.Region, p.Region)
		setString(&c.Pricing.Selection, p.Selection)
		setString(&c.Pricing.CatalogFile, p.CatalogFile)
	}
	if b := f.Billing; b != nil {
		setString(&c.Billing.Mode, b.Mode)
		if b.Precision != nil {
			c.Billing.Precision = *b.Precision
		}
	}
	if l := f.Logging; l != nil {
		setString(&c.Logging.Level, l.Level)
		setString(&c.Logging.Format, l.Format)
		setString(&c.Logging.Output, l.Output)
		c.Logging.Development = c.Logging.Development || l.Development
	}
	return nil
}

// ApplyEnv overlays environment variables read through lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	if v, ok := get(EnvTargetBucket); ok {
		c.TargetBucket = v
	}
	if v, ok := get(EnvOutputFormat); ok {
		c.OutputFormat = v
	}
	if v, ok := get(EnvKeyMarker); ok {
		c.KeyMarker = v
	}
	if v, ok := get(EnvPricingRegion); ok {
		c.Pricing.Region = v
	}
	if v, ok := get(EnvPriceSelection); ok {
		c.Pricing.Selection = v
	}
	if v, ok := get(EnvBillingMode); ok {
		c.Billing.Mode = v
	}
	if v, ok := get(EnvCostPrecision); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(errors.TypeConfig, err, "%s must be an integer", EnvCostPrecision)
		}
		c.Billing.Precision = n
	}
	if v, ok := get(EnvLogLevel); ok {
		c.Logging.Level = v
	}
	if v, ok := get(EnvLogFormat); ok {
		c.Logging.Format = v
	}
	return nil
}

// FromEnvironment overlays the file named by CDR_COST_CONFIG and the
// process environment onto base and validates the result
func FromEnvironment(base Config) (Config, error) {
	cfg, err := LoadOver(base, os.Getenv(EnvConfigFile))
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks that every setting names a known option
func (c Config) Validate() error {
	if _, err := c.BillingMode(); err != nil {
		return errors.Wrap(errors.TypeConfig, "billing mode", err)
	}
	if _, err := c.Selection(); err != nil {
		return errors.Wrap(errors.TypeConfig, "price selection", err)
	}
	if c.Billing.Precision < int(cost.MinPrecision) {
		return errors.Newf(errors.TypeConfig, "cost precision %d is below the minimum of %d",
			c.Billing.Precision, cost.MinPrecision)
	}
	return nil
}

// RequireTargetBucket fails when no target bucket is configured
func (c Config) RequireTargetBucket() error {
	if c.TargetBucket == "" {
		return errors.Config(fmt.Sprintf("%s is not set", EnvTargetBucket))
	}
	return nil
}

// Format returns the output format
func (c Config) Format() output.Format {
	return output.ParseFormat(c.OutputFormat)
}

// BillingMode returns the parsed billing mode
func (c Config) BillingMode() (cost.Mode, error) {
	return cost.ParseMode(c.Billing.Mode)
}

// Selection returns the parsed price selection policy
func (c Config) Selection() (pricing.Selection, error) {
	return pricing.ParseSelection(c.Pricing.Selection)
}

// Calculator builds the cost calculator for the configured mode
func (c Config) Calculator() (*cost.Calculator, error) {
	mode, err := c.BillingMode()
	if err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "billing mode", err)
	}
	return cost.NewCalculator(mode, int32(c.Billing.Precision)), nil
}

// JSON returns the configuration as indented JSON
func (c Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
