// Package cmd - enrich command
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	catalogs "cdr-cost/adapters/pricing"
	"cdr-cost/adapters/storage"
	"cdr-cost/core/engine"
	"cdr-cost/core/pricing"
	"cdr-cost/core/types"
	"cdr-cost/internal/config"
	"cdr-cost/internal/errors"
	"cdr-cost/internal/logging"
)

var (
	enrichFormat       string
	enrichBillingMode  string
	enrichSelection    string
	enrichPrecision    int
	enrichPrice        string
	enrichCatalogFile  string
	enrichRegion       string
	enrichOut          string
	enrichTargetBucket string
	enrichStoreDir     string
)

// enrichCmd represents the enrich command
var enrichCmd = &cobra.Command{
	Use:   "enrich <file | - | s3://bucket/key>",
	Short: "Price one call detail record",
	Long: `Price one call detail record and write it as JSON or CSV.

A local file (or - for stdin) is written to --out, or stdout. An s3://
location is processed like the Lambda function does: the enriched record
is written to the target bucket under the same key (JSON) or key.csv.

Examples:
  cdr-cost enrich ./record.json
  cdr-cost enrich --price 0.0192 --format csv -o record.csv ./record.json
  cdr-cost enrich --catalog-file prices.json --billing-mode duration ./record.json
  cdr-cost enrich --target-bucket enriched s3://cdrs/Amazon-Chime-Voice-Connector-CDRs/json/x.json
  cdr-cost enrich --store-dir ./buckets --target-bucket out s3://cdrs/Amazon-Chime-Voice-Connector-CDRs/x.json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichFormat, "format", "f", "", "output format (json, csv)")
	enrichCmd.Flags().StringVar(&enrichBillingMode, "billing-mode", "", "billing quantity source (quantity, duration)")
	enrichCmd.Flags().StringVar(&enrichSelection, "selection", "", "price used when several entries match (last, first, cheapest)")
	enrichCmd.Flags().IntVar(&enrichPrecision, "precision", 0, "decimal digits kept in CostUSD")
	enrichCmd.Flags().StringVar(&enrichPrice, "price", "", "fixed USD unit price instead of a catalog lookup")
	enrichCmd.Flags().StringVar(&enrichCatalogFile, "catalog-file", "", "price list file to use instead of the Price List API")
	enrichCmd.Flags().StringVarP(&enrichRegion, "region", "r", "", "Price List API region")
	enrichCmd.Flags().StringVarP(&enrichOut, "out", "o", "", "output file for local records (default stdout)")
	enrichCmd.Flags().StringVar(&enrichTargetBucket, "target-bucket", "", "bucket receiving enriched s3 records")
	enrichCmd.Flags().StringVar(&enrichStoreDir, "store-dir", "", "serve s3:// locations from this directory instead of S3")
}

// enrichConfig applies the command's flags over the loaded configuration
func enrichConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := appConfig
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.OutputFormat = enrichFormat
	}
	if flags.Changed("billing-mode") {
		cfg.Billing.Mode = enrichBillingMode
	}
	if flags.Changed("selection") {
		cfg.Pricing.Selection = enrichSelection
	}
	if flags.Changed("precision") {
		cfg.Billing.Precision = enrichPrecision
	}
	if flags.Changed("catalog-file") {
		cfg.Pricing.CatalogFile = enrichCatalogFile
	}
	if flags.Changed("region") {
		cfg.Pricing.Region = enrichRegion
	}
	if flags.Changed("target-bucket") {
		cfg.TargetBucket = enrichTargetBucket
	}
	return cfg, cfg.Validate()
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := enrichConfig(cmd)
	if err != nil {
		return err
	}
	catalog, err := buildCatalog(ctx, cfg, enrichPrice)
	if err != nil {
		return err
	}

	if types.IsLocation(args[0]) {
		return enrichObject(ctx, cmd, cfg, catalog, args[0])
	}
	return enrichFile(ctx, cmd, cfg, catalog, args[0])
}

func enrichFile(ctx context.Context, cmd *cobra.Command, cfg config.Config, catalog pricing.Catalog, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return errors.Storage(fmt.Sprintf("read %s", path), err)
	}

	record, err := types.ParseRecord(data)
	if err != nil {
		return errors.InvalidRecord(fmt.Sprintf("%s is not a single JSON record", path), err)
	}

	p, err := newPipeline(cfg, catalog, nil)
	if err != nil {
		return err
	}
	oc, err := p.Enrich(ctx, record)
	if err != nil {
		return err
	}
	if oc.Status == engine.StatusSkipped {
		fmt.Fprintln(cmd.ErrOrStderr(), "record has no usage type, nothing written")
		return nil
	}

	body := oc.Artifact.Body
	if enrichOut != "" {
		if err := os.WriteFile(enrichOut, body, 0644); err != nil {
			return errors.Format(fmt.Sprintf("write %s", enrichOut), err)
		}
	} else {
		w := cmd.OutOrStdout()
		if _, err := w.Write(body); err != nil {
			return errors.Format("write stdout", err)
		}
		if len(body) > 0 && body[len(body)-1] != '\n' {
			fmt.Fprintln(w)
		}
	}

	printSummary(cmd, oc)
	return nil
}

func enrichObject(ctx context.Context, cmd *cobra.Command, cfg config.Config, catalog pricing.Catalog, uri string) error {
	loc, err := types.ParseLocation(uri)
	if err != nil {
		return errors.InvalidRecord("bad location", err)
	}
	if err := cfg.RequireTargetBucket(); err != nil {
		return err
	}

	backend, opts := storage.BackendS3, map[string]string{}
	if enrichStoreDir != "" {
		backend, opts = storage.BackendFile, map[string]string{"path": enrichStoreDir}
	}
	store, err := storage.StoreFactory(ctx, backend, opts)
	if err != nil {
		return err
	}

	p, err := newPipeline(cfg, catalog, store)
	if err != nil {
		return err
	}
	oc, err := p.ProcessObject(ctx, loc)
	if err != nil {
		return err
	}

	printSummary(cmd, oc)
	if oc.Output.Bucket != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "written to %s\n", oc.Output)
	}
	return nil
}

func newPipeline(cfg config.Config, catalog pricing.Catalog, store engine.ObjectStore) (*engine.Pipeline, error) {
	calc, err := cfg.Calculator()
	if err != nil {
		return nil, err
	}
	sel, err := cfg.Selection()
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		Catalog:      catalog,
		Store:        store,
		Calculator:   calc,
		Selection:    sel,
		Format:       cfg.Format(),
		TargetBucket: cfg.TargetBucket,
		KeyMarker:    cfg.KeyMarker,
		Logger:       logging.Logger,
	})
}

// buildCatalog picks the price source: a fixed price, a price list file
// or the Price List API
func buildCatalog(ctx context.Context, cfg config.Config, fixedPrice string) (pricing.Catalog, error) {
	switch {
	case fixedPrice != "":
		return catalogs.NewStaticCatalog(fixedPrice)
	case cfg.Pricing.CatalogFile != "":
		return catalogs.CatalogFactory(ctx, catalogs.BackendFile, map[string]string{"path": cfg.Pricing.CatalogFile})
	default:
		return catalogs.CatalogFactory(ctx, catalogs.BackendAWS, map[string]string{"region": cfg.Pricing.Region})
	}
}

func printSummary(cmd *cobra.Command, oc *engine.Outcome) {
	logging.Logger.Debug("enrichment finished",
		zap.String("invocation_id", oc.InvocationID),
		zap.String("status", string(oc.Status)),
	)
	switch oc.Status {
	case engine.StatusEnriched:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s USD per %s, cost %s USD\n",
			oc.UsageType, oc.Price.Text, oc.Price.Unit, oc.CostString())
	case engine.StatusNoPrice:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: no price found, record not enriched\n", oc.UsageType)
	case engine.StatusIgnored:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s is not a CDR object, ignored\n", oc.Source)
	}
}
