package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// BucketCollector enumerates S3 buckets homed in the session's region.
// ListBuckets is global, so each regional collector keeps only the
// buckets whose location matches its region; otherwise multi-region
// scans would report every bucket once per region.
type BucketCollector struct {
	client    *s3.Client
	region    string
	staleDays int
	now       func() time.Time
}

// defaultStaleUploadDays matches the object-bucket family's catalog
// default for the stale multipart upload window.
const defaultStaleUploadDays = 7

// NewBucketCollector builds the collector. staleUploadDays is the age at
// which an incomplete multipart upload counts as stale; a non-positive
// value selects the default.
func NewBucketCollector(s *Session, staleUploadDays int) *BucketCollector {
	if staleUploadDays <= 0 {
		staleUploadDays = defaultStaleUploadDays
	}
	return &BucketCollector{
		client:    s3.NewFromConfig(s.Config),
		region:    s.Region,
		staleDays: staleUploadDays,
		now:       time.Now,
	}
}

func (c *BucketCollector) Family() inventory.Family { return inventory.FamilyObjectBucket }

func (c *BucketCollector) Collect(ctx context.Context) ([]inventory.Payload, error) {
	result, err := c.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, classify(err)
	}

	var out []inventory.Payload
	for _, bucket := range result.Buckets {
		name := aws.ToString(bucket.Name)
		if c.bucketRegion(ctx, name) != c.region {
			continue
		}

		signals := map[string]*float64{
			inventory.SignalObjectCount: c.objectCount(ctx, name),
		}
		// Buckets with an abort-incomplete-multipart lifecycle rule clean
		// up after themselves; only the rest get the stale-upload count.
		if !c.hasAbortLifecycle(ctx, name) {
			signals[inventory.SignalStaleUploadCount] = c.staleUploadCount(ctx, name)
		}

		out = append(out, inventory.Payload{
			Family:   inventory.FamilyObjectBucket,
			Provider: inventory.ProviderAWS,
			Region:   c.region,
			NativeID: name,
			AgeDays:  ageDays(bucket.CreationDate, c.now()),
			State:    "active",
			Signals:  signals,
		})
	}
	return out, nil
}

// bucketRegion resolves a bucket's home region. An empty location
// constraint means us-east-1; the legacy "EU" constraint means eu-west-1.
func (c *BucketCollector) bucketRegion(ctx context.Context, name string) string {
	loc, err := c.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: aws.String(name)})
	if err != nil {
		return ""
	}
	switch loc.LocationConstraint {
	case "":
		return "us-east-1"
	case "EU":
		return "eu-west-1"
	default:
		return string(loc.LocationConstraint)
	}
}

// objectCount counts the first listing page only. The empty-bucket
// scenario needs exact zeroes, not exact totals, so one page is enough.
func (c *BucketCollector) objectCount(ctx context.Context, name string) *float64 {
	page, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	if err != nil {
		return nil
	}
	count := float64(aws.ToInt32(page.KeyCount))
	return &count
}

func (c *BucketCollector) hasAbortLifecycle(ctx context.Context, name string) bool {
	lc, err := c.client.GetBucketLifecycleConfiguration(ctx, &s3.GetBucketLifecycleConfigurationInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return false
	}
	for _, rule := range lc.Rules {
		if rule.Status == s3types.ExpirationStatusEnabled && rule.AbortIncompleteMultipartUpload != nil {
			return true
		}
	}
	return false
}

// staleUploadCount counts multipart uploads older than the stale window
// that were never completed or aborted.
func (c *BucketCollector) staleUploadCount(ctx context.Context, name string) *float64 {
	cutoff := c.now().Add(-time.Duration(c.staleDays) * 24 * time.Hour)
	var stale float64
	paginator := s3.NewListMultipartUploadsPaginator(c.client, &s3.ListMultipartUploadsInput{
		Bucket: aws.String(name),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil
		}
		for _, upload := range page.Uploads {
			if upload.Initiated != nil && upload.Initiated.Before(cutoff) {
				stale++
			}
		}
	}
	return &stale
}
