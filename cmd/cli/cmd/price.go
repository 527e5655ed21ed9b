// Package cmd - price command
package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cdr-cost/core/pricing"
	"cdr-cost/core/usage"
	"cdr-cost/internal/errors"
)

var (
	priceSelection   string
	priceCatalogFile string
	priceRegion      string
)

// priceCmd prints the catalog prices of a usage type
var priceCmd = &cobra.Command{
	Use:   "price <usage-type>",
	Short: "Show the on-demand prices of a usage type",
	Long: `Query the pricing catalog for a usage type and print every matching
entry along with the price the enrichment would use.

Examples:
  cdr-cost price USE1-US-outbound-minutes
  cdr-cost price --selection cheapest USE1-PA-outbound-minutes
  cdr-cost price --catalog-file prices.json USE1-US-inbound-minutes`,
	Args: cobra.ExactArgs(1),
	RunE: runPrice,
}

func init() {
	priceCmd.Flags().StringVar(&priceSelection, "selection", "", "price used when several entries match (last, first, cheapest)")
	priceCmd.Flags().StringVar(&priceCatalogFile, "catalog-file", "", "price list file to use instead of the Price List API")
	priceCmd.Flags().StringVarP(&priceRegion, "region", "r", "", "Price List API region")
}

func runPrice(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := appConfig
	if cmd.Flags().Changed("selection") {
		cfg.Pricing.Selection = priceSelection
	}
	if cmd.Flags().Changed("catalog-file") {
		cfg.Pricing.CatalogFile = priceCatalogFile
	}
	if cmd.Flags().Changed("region") {
		cfg.Pricing.Region = priceRegion
	}
	sel, err := cfg.Selection()
	if err != nil {
		return errors.Wrap(errors.TypeConfig, "price selection", err)
	}

	ut, err := usage.Parse(args[0])
	if err != nil {
		return err
	}
	catalog, err := buildCatalog(ctx, cfg, "")
	if err != nil {
		return err
	}
	entries, err := catalog.FetchPrices(ctx, pricing.NewQuery(ut.Filter()))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return errors.NoPriceFound(ut.Raw)
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tOFFER TERM\tRATE CODE\tUNIT\tUSD")
	for _, e := range entries {
		p, err := pricing.ExtractPrice(e)
		if err != nil {
			fmt.Fprintf(w, "-\t-\t-\t-\t%v\n", err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.SKU, p.OfferTermCode, p.RateCode, p.Unit, p.Text)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	selected, err := pricing.SelectPrice(entries, sel)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s (%s, %s): %s USD per %s\n", ut.Raw, ut.Region, sel, selected.Text, selected.Unit)
	return nil
}
