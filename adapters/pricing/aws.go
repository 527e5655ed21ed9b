package pricing

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"go.uber.org/zap"

	"cdr-cost/core/pricing"
	"cdr-cost/internal/errors"
	"cdr-cost/internal/logging"
)

// DefaultRegion is the Price List API endpoint region
const DefaultRegion = "us-east-1"

// AWSCatalog queries the AWS Price List API
type AWSCatalog struct {
	client awspricing.GetProductsAPIClient
	logger *zap.Logger
}

// NewAWSCatalog wraps a Price List client
func NewAWSCatalog(client awspricing.GetProductsAPIClient, logger *zap.Logger) *AWSCatalog {
	return &AWSCatalog{
		client: client,
		logger: logging.OrNop(logger),
	}
}

// NewAWSCatalogFromEnv builds a client from the default credential chain
func NewAWSCatalogFromEnv(ctx context.Context, region string) (*AWSCatalog, error) {
	if region == "" {
		region = DefaultRegion
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSCatalog(awspricing.NewFromConfig(cfg), logging.Logger), nil
}

// FetchPrices implements pricing.Catalog. Pages are followed until the
// service stops returning a NextToken.
func (c *AWSCatalog) FetchPrices(ctx context.Context, q pricing.Query) ([]pricing.Entry, error) {
	input := &awspricing.GetProductsInput{
		FormatVersion: aws.String(q.FormatVersion),
		ServiceCode:   aws.String(q.ServiceCode),
		Filters: []pricingtypes.Filter{
			{
				Field: aws.String(q.Filter.Field),
				Type:  pricingtypes.FilterType(q.Filter.Type),
				Value: aws.String(q.Filter.Value),
			},
		},
	}

	var entries []pricing.Entry
	pages := awspricing.NewGetProductsPaginator(c.client, input)
	for page := 1; pages.HasMorePages(); page++ {
		out, err := pages.NextPage(ctx)
		if err != nil {
			return nil, errors.CatalogUnavailable(
				fmt.Sprintf("get products for %s", q.UsageType()), err)
		}
		for _, doc := range out.PriceList {
			entries = append(entries, pricing.Entry(doc))
		}
		c.logger.Debug("price list page",
			zap.String("usage_type", q.UsageType()),
			zap.Int("page", page),
			zap.Int("entries", len(out.PriceList)),
		)
	}
	return entries, nil
}
