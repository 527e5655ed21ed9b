// Lambda entry point: enriches each Voice Connector CDR written to S3.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	cdrlambda "cdr-cost/adapters/lambda"
	catalogs "cdr-cost/adapters/pricing"
	"cdr-cost/adapters/storage"
	"cdr-cost/core/engine"
	"cdr-cost/core/pricing"
	"cdr-cost/internal/config"
	"cdr-cost/internal/logging"
)

func main() {
	handler, err := setup(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()
	lambda.Start(handler.Handle)
}

func setup(ctx context.Context) (*cdrlambda.Handler, error) {
	cfg, err := config.FromEnvironment(config.Lambda())
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireTargetBucket(); err != nil {
		return nil, err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return nil, err
	}
	log := logging.Logger

	var catalog pricing.Catalog
	if cfg.Pricing.CatalogFile != "" {
		catalog, err = catalogs.LoadFileCatalog(cfg.Pricing.CatalogFile)
	} else {
		catalog, err = catalogs.NewAWSCatalogFromEnv(ctx, cfg.Pricing.Region)
	}
	if err != nil {
		return nil, err
	}

	store, err := storage.NewS3StoreFromEnv(ctx, "")
	if err != nil {
		return nil, err
	}

	calc, err := cfg.Calculator()
	if err != nil {
		return nil, err
	}
	sel, err := cfg.Selection()
	if err != nil {
		return nil, err
	}

	p, err := engine.New(engine.Options{
		Catalog:      catalog,
		Store:        store,
		Calculator:   calc,
		Selection:    sel,
		Format:       cfg.Format(),
		TargetBucket: cfg.TargetBucket,
		KeyMarker:    cfg.KeyMarker,
		Logger:       log,
	})
	if err != nil {
		return nil, err
	}

	log.Info("cdr enrichment ready",
		zap.String("target_bucket", cfg.TargetBucket),
		zap.String("format", string(cfg.Format())),
		zap.String("billing_mode", string(calc.Mode())),
		zap.String("selection", string(sel)),
	)
	return cdrlambda.NewHandler(p, log), nil
}
