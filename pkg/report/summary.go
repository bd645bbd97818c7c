package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/cloudvigil/cloudvigil/pkg/detect"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00BFFF"))
	wasteStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0055"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0055"))
	highStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	mediumStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FBBF24"))
)

func confidenceStyle(c detect.Confidence) lipgloss.Style {
	switch c {
	case detect.ConfidenceCritical:
		return criticalStyle
	case detect.ConfidenceHigh:
		return highStyle
	case detect.ConfidenceMedium:
		return mediumStyle
	}
	return dimStyle
}

// Summary renders the terminal report for one account.
func Summary(doc Document) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("CloudVigil: account %s", doc.AccountID)))
	b.WriteString("\n\n")

	if doc.Totals.Open == 0 {
		b.WriteString(dimStyle.Render("No open findings. Nothing looks orphaned right now."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%d open findings (%d resolved)\n", doc.Totals.Open, doc.Totals.Resolved))
	b.WriteString(wasteStyle.Render(fmt.Sprintf("Estimated waste: $%.2f/month", doc.Totals.MonthlyWaste)))
	if doc.Totals.AlreadyWasted > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  (~$%.2f already spent)", doc.Totals.AlreadyWasted)))
	}
	b.WriteString("\n")
	if doc.Totals.UnpricedFindings > 0 {
		b.WriteString(dimStyle.Render(fmt.Sprintf("%d findings have no price estimate\n", doc.Totals.UnpricedFindings)))
	}
	b.WriteString("\n")

	for _, f := range TopWaste(doc.Findings, 15) {
		cost := dimStyle.Render("     n/a")
		if f.MonthlyWaste != nil {
			cost = fmt.Sprintf("$%7.2f", *f.MonthlyWaste)
		}
		b.WriteString(fmt.Sprintf("  %s/mo  %-10s %-28s %s\n",
			cost,
			confidenceStyle(f.Confidence).Render(string(f.Confidence)),
			f.Scenario,
			f.NativeID))
		b.WriteString(dimStyle.Render(fmt.Sprintf("            %s", f.Reason)))
		b.WriteString("\n")
	}
	return b.String()
}
