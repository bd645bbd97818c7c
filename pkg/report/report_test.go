package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
	"github.com/cloudvigil/cloudvigil/pkg/findings"
)

func fptr(v float64) *float64 { return &v }

func fixtureFindings() []findings.Finding {
	return []findings.Finding{
		{
			ID:            "f-1",
			AccountID:     "acct-1",
			IdentityKey:   "aws/us-east-1/vol-1",
			Scenario:      "unattached-volume",
			Family:        "block-storage-volume",
			Region:        "us-east-1",
			NativeID:      "vol-1",
			Severity:      90,
			Confidence:    detect.ConfidenceHigh,
			Reason:        "volume has been unattached for 40 days",
			MonthlyWaste:  fptr(8.0),
			AlreadyWasted: fptr(10.67),
			Status:        findings.StatusOpen,
			FirstSeen:     time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:      time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          "f-2",
			AccountID:   "acct-1",
			IdentityKey: "aws/us-east-1/bucket-1",
			Scenario:    "stale-multipart-uploads",
			Family:      "object-storage-bucket",
			Region:      "us-east-1",
			NativeID:    "bucket-1",
			Severity:    40,
			Confidence:  detect.ConfidenceLow,
			Reason:      "37 stale multipart uploads with no abort lifecycle",
			Status:      findings.StatusResolved,
			FirstSeen:   time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			LastSeen:    time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestBuildTotals(t *testing.T) {
	doc := Build("acct-1", fixtureFindings(), time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	if doc.Totals.Open != 1 || doc.Totals.Resolved != 1 {
		t.Fatalf("unexpected totals: %+v", doc.Totals)
	}
	if doc.Totals.MonthlyWaste != 8.0 {
		t.Errorf("expected monthly waste 8.0, got %g", doc.Totals.MonthlyWaste)
	}
	if doc.Totals.AlreadyWasted != 10.67 {
		t.Errorf("expected already wasted 10.67, got %g", doc.Totals.AlreadyWasted)
	}
	if doc.Totals.ByConfidence[detect.ConfidenceHigh] != 1 {
		t.Errorf("resolved findings must not count toward confidence totals: %v", doc.Totals.ByConfidence)
	}
	if doc.Totals.UnpricedFindings != 0 {
		t.Errorf("resolved unpriced finding must not count, got %d", doc.Totals.UnpricedFindings)
	}
}

func TestWriteCSVGolden(t *testing.T) {
	doc := Build("acct-1", fixtureFindings(), time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	if err := WriteCSV(&buf, doc); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	g := goldie.New(t)
	g.Assert(t, "findings_csv", buf.Bytes())
}

func TestWriteJSONRoundTrips(t *testing.T) {
	doc := Build("acct-1", fixtureFindings(), time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC))

	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"account_id": "acct-1"`, `"monthly_waste": 8`, `"unattached-volume"`} {
		if !strings.Contains(out, want) {
			t.Errorf("JSON export missing %s", want)
		}
	}
}

func TestTopWasteOrdersPricedFirst(t *testing.T) {
	all := fixtureFindings()
	unpricedOpen := all[1]
	unpricedOpen.Status = findings.StatusOpen
	all = append(all, unpricedOpen)

	top := TopWaste(all, 10)
	if len(top) != 2 {
		t.Fatalf("resolved findings must be excluded, got %d", len(top))
	}
	if top[0].NativeID != "vol-1" {
		t.Errorf("priced finding must sort first, got %s", top[0].NativeID)
	}
}

func TestSummaryMentionsWaste(t *testing.T) {
	doc := Build("acct-1", fixtureFindings(), time.Now())
	out := Summary(doc)
	if !strings.Contains(out, "1 open findings") {
		t.Errorf("summary missing open count:\n%s", out)
	}
	if !strings.Contains(out, "8.00") {
		t.Errorf("summary missing waste total:\n%s", out)
	}

	empty := Summary(Build("acct-2", nil, time.Now()))
	if !strings.Contains(empty, "No open findings") {
		t.Errorf("empty summary missing message:\n%s", empty)
	}
}
