// Package aws adapts the AWS SDK into the collector contract. Each
// collector enumerates one resource family in one region and emits
// normalized payloads; nothing outside this package touches SDK types.
package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"

	"github.com/cloudvigil/cloudvigil/pkg/collect"
	"github.com/cloudvigil/cloudvigil/pkg/inventory"
)

// Session wraps the shared SDK configuration for one region.
type Session struct {
	Config aws.Config
	Region string
}

// NewSession loads the default credential chain for the region.
func NewSession(ctx context.Context, region string) (*Session, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &Session{Config: cfg, Region: region}, nil
}

// VerifyIdentity proves the credentials work before a scan fans out and
// returns the account ID they belong to.
func (s *Session) VerifyIdentity(ctx context.Context) (string, error) {
	out, err := sts.NewFromConfig(s.Config).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", &collect.CredentialError{Provider: inventory.ProviderAWS, Err: err}
	}
	return aws.ToString(out.Account), nil
}

// credentialCodes are API error codes that mean the credentials
// themselves are bad. Retrying cannot fix these.
var credentialCodes = map[string]bool{
	"AccessDenied":                true,
	"AccessDeniedException":       true,
	"AuthFailure":                 true,
	"ExpiredToken":                true,
	"InvalidClientTokenId":        true,
	"UnauthorizedOperation":       true,
	"UnrecognizedClientException": true,
}

var transientCodes = map[string]bool{
	"Throttling":               true,
	"ThrottlingException":      true,
	"RequestLimitExceeded":     true,
	"TooManyRequestsException": true,
	"ServiceUnavailable":       true,
	"InternalError":            true,
	"RequestTimeout":           true,
}

// classify translates an SDK error into the collector error taxonomy.
// Unrecognized errors pass through and fail only their own family.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if credentialCodes[code] {
			return &collect.CredentialError{Provider: inventory.ProviderAWS, Err: err}
		}
		if transientCodes[code] {
			return &collect.TransientError{Err: err}
		}
	}
	return err
}

// ageDays converts a creation timestamp into fractional days of age.
// Unknown creation times stay unknown rather than defaulting to zero.
func ageDays(created *time.Time, now time.Time) *float64 {
	if created == nil {
		return nil
	}
	days := now.Sub(*created).Hours() / 24
	if days < 0 {
		days = 0
	}
	return &days
}
