package aws

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"

	"github.com/cloudvigil/cloudvigil/pkg/collect"
)

type fakeAPIError struct{ code string }

func (e *fakeAPIError) Error() string                 { return e.code }
func (e *fakeAPIError) ErrorCode() string             { return e.code }
func (e *fakeAPIError) ErrorMessage() string          { return e.code }
func (e *fakeAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

func TestClassifyCredentialCodes(t *testing.T) {
	for _, code := range []string{"AccessDenied", "ExpiredToken", "UnauthorizedOperation"} {
		err := classify(&fakeAPIError{code: code})
		var credErr *collect.CredentialError
		if !errors.As(err, &credErr) {
			t.Errorf("%s must classify as credential error, got %T", code, err)
		}
	}
}

func TestClassifyTransientCodes(t *testing.T) {
	for _, code := range []string{"Throttling", "RequestLimitExceeded", "ServiceUnavailable"} {
		err := classify(&fakeAPIError{code: code})
		var transient *collect.TransientError
		if !errors.As(err, &transient) {
			t.Errorf("%s must classify as transient, got %T", code, err)
		}
	}
}

func TestClassifyPassesUnknownThrough(t *testing.T) {
	orig := &fakeAPIError{code: "SomethingNovel"}
	if got := classify(orig); got != error(orig) {
		t.Errorf("unknown codes must pass through, got %v", got)
	}
	if classify(nil) != nil {
		t.Error("nil must stay nil")
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	created := now.Add(-36 * time.Hour)
	got := ageDays(&created, now)
	if got == nil || *got != 1.5 {
		t.Fatalf("expected 1.5 days, got %v", got)
	}

	if ageDays(nil, now) != nil {
		t.Error("unknown creation time must stay unknown")
	}

	future := now.Add(time.Hour)
	if got := ageDays(&future, now); got == nil || *got != 0 {
		t.Errorf("clock skew must clamp to zero, got %v", got)
	}
}

func TestBucketCollectorStaleWindow(t *testing.T) {
	s := &Session{Region: "us-east-1"}
	if got := NewBucketCollector(s, 0).staleDays; got != defaultStaleUploadDays {
		t.Errorf("non-positive window must select the default, got %d", got)
	}
	if got := NewBucketCollector(s, 30).staleDays; got != 30 {
		t.Errorf("expected 30-day window, got %d", got)
	}
}

func TestMetricDimension(t *testing.T) {
	arn := "arn:aws:elasticloadbalancing:us-east-1:123456789:loadbalancer/app/web/50dc6c495c0c9188"
	if got := metricDimension(arn); got != "app/web/50dc6c495c0c9188" {
		t.Errorf("unexpected dimension %q", got)
	}
	if got := metricDimension("not-an-arn"); got != "" {
		t.Errorf("expected empty dimension, got %q", got)
	}
}
