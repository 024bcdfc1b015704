// Package comment renders stored reviews as provider-agnostic markdown.
package comment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/festy23/pitcrew/internal/config"
	"github.com/festy23/pitcrew/internal/pullrequest/model"
)

// Band is a labelled risk range.
type Band struct {
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

var (
	BandLow    = Band{Label: "Low Risk", Emoji: "✅"}
	BandMedium = Band{Label: "Medium Risk", Emoji: "⚠️"}
	BandHigh   = Band{Label: "High Risk", Emoji: "🚨"}
)

// RiskBand places score against t. Comments and dashboards pass different thresholds.
func RiskBand(score int, t config.Thresholds) Band {
	switch {
	case score < t.Medium:
		return BandLow
	case score < t.High:
		return BandMedium
	default:
		return BandHigh
	}
}

// SortIssues orders issues high to low severity, then by file path. The input is not modified.
func SortIssues(issues []model.ReviewIssue) []model.ReviewIssue {
	sorted := make([]model.ReviewIssue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		if ri, rj := sorted[i].Severity.Rank(), sorted[j].Severity.Rank(); ri != rj {
			return ri > rj
		}
		return sorted[i].FilePath < sorted[j].FilePath
	})
	return sorted
}

// Formatter renders full review comments.
type Formatter struct {
	thresholds config.Thresholds
}

// New creates a Formatter banding risk with thresholds.
func New(thresholds config.Thresholds) *Formatter {
	return &Formatter{thresholds: thresholds}
}

type section struct {
	severity model.Severity
	heading  string
	label    string
}

var sections = []section{
	{model.SeverityHigh, "### 🔴 High Severity Issues", "Issue"},
	{model.SeverityMedium, "### 🟡 Medium Severity Issues", "Issue"},
	{model.SeverityLow, "### 🟢 Low Severity Issues", "Suggestion"},
}

// Full renders the review with its issues as a markdown comment.
func (f *Formatter) Full(review *model.AIReview, issues []model.ReviewIssue) string {
	band := RiskBand(review.RiskScore, f.thresholds)

	var b strings.Builder
	b.WriteString("## 🤖 PitCrew AI Code Review\n\n")
	fmt.Fprintf(&b, "**Risk Score:** %s %d/100 (%s)\n", band.Emoji, review.RiskScore, band.Label)
	fmt.Fprintf(&b, "**Deployment Ready:** %s\n", yesNo(review.DeploymentReady))
	fmt.Fprintf(&b, "**Reviewed at:** %s\n\n", review.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "### 📋 Summary\n%s\n\n", review.Summary)

	writeList(&b, "### 🚨 Deployment Blockers", review.AnalysisData.Strings("blockers"))

	sorted := SortIssues(issues)
	for _, s := range sections {
		n := 0
		for _, issue := range sorted {
			if issue.Severity != s.severity {
				continue
			}
			if n == 0 {
				b.WriteString(s.heading + "\n\n")
			}
			n++
			fmt.Fprintf(&b, "**%d. %s**\n", n, issue.Title)
			fmt.Fprintf(&b, "- **File:** `%s`%s\n", issue.FilePath, lineSuffix(issue.LineNumber))
			fmt.Fprintf(&b, "- **%s:** %s\n\n", s.label, issue.Suggestion)
		}
	}

	writeList(&b, "### 💡 Recommendations", review.AnalysisData.Strings("recommendations"))
	writeList(&b, "### ✨ Strengths", review.AnalysisData.Strings("strengths"))

	b.WriteString("---\n")
	fmt.Fprintf(&b, "*🤖 Powered by [PitCrew AI](https://pitcrew.dev) • Review ID: %d*\n", review.ID)
	return b.String()
}

// Summary renders the one-line status form of a review.
func Summary(review *model.AIReview, issueCount int) string {
	status := "❌ Blocked"
	if review.DeploymentReady {
		status = "✅ Ready"
	}
	return fmt.Sprintf("%s • Risk: %d/100 • Issues: %d", status, review.RiskScore, issueCount)
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(heading + "\n\n")
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
	b.WriteString("\n")
}

func lineSuffix(line *int) string {
	if line == nil {
		return ""
	}
	return fmt.Sprintf(" (Line %d)", *line)
}

func yesNo(ok bool) string {
	if ok {
		return "✅ Yes"
	}
	return "❌ No"
}
