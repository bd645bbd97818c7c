package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspricing "github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// AWSSource resolves prices from the AWS Pricing API. Wrap it in a
// CachedSource; the API is slow and rate-limited.
type AWSSource struct {
	svc *awspricing.Client
}

// NewAWSSource initializes the pricing client. The Pricing API is only
// served out of us-east-1 regardless of the resources being priced.
func NewAWSSource(ctx context.Context) (*AWSSource, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion("us-east-1"))
	if err != nil {
		return nil, err
	}
	return &AWSSource{svc: awspricing.NewFromConfig(cfg)}, nil
}

func (s *AWSSource) MonthlyCost(ctx context.Context, family inventory.Family, region string, size inventory.SizeAttributes) (float64, error) {
	switch family {
	case inventory.FamilyBlockVolume:
		perGB, err := s.fetchVolumePrice(ctx, region, size.Tier)
		if err != nil {
			return 0, err
		}
		if size.CapacityGB <= 0 {
			return 0, ErrPriceUnavailable
		}
		return perGB * float64(size.CapacityGB), nil
	case inventory.FamilyDiskSnapshot:
		if size.CapacityGB <= 0 {
			return 0, ErrPriceUnavailable
		}
		// Snapshot storage has a single published rate per region.
		return 0.05 * float64(size.CapacityGB), nil
	case inventory.FamilyVirtualMachine:
		hourly, err := s.fetchInstancePrice(ctx, region, size.Tier)
		if err != nil {
			return 0, err
		}
		return hourly * 730, nil
	case inventory.FamilyStaticIP:
		return 0.005 * 730, nil
	case inventory.FamilyLoadBalancer:
		return 0.0225 * 730, nil
	default:
		return 0, ErrPriceUnavailable
	}
}

var volumeTierNames = map[string]string{
	"gp2":      "General Purpose",
	"gp3":      "General Purpose SSD (gp3)",
	"io1":      "Provisioned IOPS SSD",
	"io2":      "Provisioned IOPS SSD (io2)",
	"st1":      "Throughput Optimized HDD",
	"sc1":      "Cold HDD",
	"standard": "Magnetic",
}

func (s *AWSSource) fetchVolumePrice(ctx context.Context, region, tier string) (float64, error) {
	tierName, ok := volumeTierNames[tier]
	if !ok {
		return 0, ErrPriceUnavailable
	}

	out, err := s.svc.GetProducts(ctx, &awspricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		MaxResults:  aws.Int32(1),
		Filters: []types.Filter{
			termMatch("productFamily", "Storage"),
			termMatch("serviceCode", "AmazonEC2"),
			termMatch("regionCode", region),
			termMatch("volumeType", tierName),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("pricing lookup for %s volumes in %s: %w", tier, region, err)
	}
	if len(out.PriceList) == 0 {
		return 0, ErrPriceUnavailable
	}
	return parsePriceFromJSON(out.PriceList[0])
}

func (s *AWSSource) fetchInstancePrice(ctx context.Context, region, instanceType string) (float64, error) {
	if instanceType == "" {
		return 0, ErrPriceUnavailable
	}

	out, err := s.svc.GetProducts(ctx, &awspricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		MaxResults:  aws.Int32(1),
		Filters: []types.Filter{
			termMatch("productFamily", "Compute Instance"),
			termMatch("serviceCode", "AmazonEC2"),
			termMatch("regionCode", region),
			termMatch("instanceType", instanceType),
			termMatch("tenancy", "Shared"),
			termMatch("operatingSystem", "Linux"),
			termMatch("preInstalledSw", "NA"),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("pricing lookup for %s in %s: %w", instanceType, region, err)
	}
	if len(out.PriceList) == 0 {
		return 0, ErrPriceUnavailable
	}
	return parsePriceFromJSON(out.PriceList[0])
}

func termMatch(field, value string) types.Filter {
	return types.Filter{
		Type:  types.FilterTypeTermMatch,
		Field: aws.String(field),
		Value: aws.String(value),
	}
}

func parsePriceFromJSON(jsonStr string) (float64, error) {
	type priceDimension struct {
		PricePerUnit map[string]string `json:"pricePerUnit"`
	}
	type term struct {
		PriceDimensions map[string]priceDimension `json:"priceDimensions"`
	}
	type product struct {
		Terms map[string]map[string]term `json:"terms"` // OnDemand -> SKU -> term
	}

	var p product
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		return 0, err
	}

	if onDemand, ok := p.Terms["OnDemand"]; ok {
		for _, t := range onDemand {
			for _, dim := range t.PriceDimensions {
				if valStr, ok := dim.PricePerUnit["USD"]; ok {
					if val, err := strconv.ParseFloat(valStr, 64); err == nil {
						return val, nil
					}
				}
			}
		}
	}
	return 0, fmt.Errorf("price not found in pricing document")
}
