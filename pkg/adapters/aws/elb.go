package aws

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// LoadBalancerCollector enumerates ALBs/NLBs with their backend target
// count and request volume.
type LoadBalancerCollector struct {
	client  *elbv2.Client
	metrics *MetricsClient
	region  string
	now     func() time.Time
}

func NewLoadBalancerCollector(s *Session, metrics *MetricsClient) *LoadBalancerCollector {
	return &LoadBalancerCollector{
		client:  elbv2.NewFromConfig(s.Config),
		metrics: metrics,
		region:  s.Region,
		now:     time.Now,
	}
}

func (c *LoadBalancerCollector) Family() inventory.Family { return inventory.FamilyLoadBalancer }

func (c *LoadBalancerCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	var out []inventory.Payload
	paginator := elbv2.NewDescribeLoadBalancersPaginator(c.client, &elbv2.DescribeLoadBalancersInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, classify(err)
		}
		for _, lb := range page.LoadBalancers {
			arn := aws.ToString(lb.LoadBalancerArn)

			signals := map[string]*float64{
				inventory.SignalBackendTargets: c.targetCount(ctx, arn),
			}
			if metricName := metricDimension(arn); metricName != "" {
				signals[inventory.SignalRequestCount] = c.metrics.MetricSum(ctx,
					"AWS/ApplicationELB", "RequestCount",
					[]cwtypes.Dimension{dimension("LoadBalancer", metricName)})
			}

			state := ""
			if lb.State != nil {
				state = strings.ToLower(string(lb.State.Code))
			}
			out = append(out, inventory.Payload{
				Family:   inventory.FamilyLoadBalancer,
				Provider: inventory.ProviderAWS,
				Region:   c.region,
				NativeID: arn,
				AgeDays:  ageDays(lb.CreatedTime, c.now()),
				State:    state,
				Signals:  signals,
			})
		}
	}
	return out, nil
}

// targetCount sums registered targets across the balancer's target
// groups. nil means the lookup failed, not that there are no targets.
func (c *LoadBalancerCollector) targetCount(ctx context.Context, lbARN string) *float64 {
	groups, err := c.client.DescribeTargetGroups(ctx, &elbv2.DescribeTargetGroupsInput{
		LoadBalancerArn: aws.String(lbARN),
	})
	if err != nil {
		return nil
	}

	total := 0.0
	for _, tg := range groups.TargetGroups {
		health, err := c.client.DescribeTargetHealth(ctx, &elbv2.DescribeTargetHealthInput{
			TargetGroupArn: tg.TargetGroupArn,
		})
		if err != nil {
			return nil
		}
		total += float64(len(health.TargetHealthDescriptions))
	}
	return &total
}

// metricDimension extracts the CloudWatch dimension value from a
// balancer ARN: everything after "loadbalancer/".
func metricDimension(arn string) string {
	const marker = "loadbalancer/"
	i := strings.Index(arn, marker)
	if i < 0 {
		return ""
	}
	return arn[i+len(marker):]
}
