package model

import pullrequestModel "github.com/festy23/pitcrew/internal/pullrequest/model"

// Severity weights used by SeverityScore.
const (
	WeightHigh   = 10
	WeightMedium = 5
	WeightLow    = 2
)

// IssueStatistics counts issues per severity.
type IssueStatistics struct {
	Total         int `json:"total"`
	High          int `json:"high"`
	Medium        int `json:"medium"`
	Low           int `json:"low"`
	FilesAffected int `json:"files_affected"`
	SeverityScore int `json:"severity_score"`
}

// Score weights the severity counts, doubles the sum and caps it at 100.
func Score(high, medium, low int) int {
	return min(100, (high*WeightHigh+medium*WeightMedium+low*WeightLow)*2)
}

// CountIssues summarizes issues. Unknown severities count towards Total only.
func CountIssues(issues []pullrequestModel.ReviewIssue) IssueStatistics {
	stats := IssueStatistics{Total: len(issues)}
	files := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		switch issue.Severity {
		case pullrequestModel.SeverityHigh:
			stats.High++
		case pullrequestModel.SeverityMedium:
			stats.Medium++
		case pullrequestModel.SeverityLow:
			stats.Low++
		}
		files[issue.FilePath] = struct{}{}
	}
	stats.FilesAffected = len(files)
	stats.SeverityScore = Score(stats.High, stats.Medium, stats.Low)
	return stats
}

// GroupByFile maps each file path to its issues in input order.
func GroupByFile(issues []pullrequestModel.ReviewIssue) map[string][]pullrequestModel.ReviewIssue {
	grouped := make(map[string][]pullrequestModel.ReviewIssue)
	for _, issue := range issues {
		grouped[issue.FilePath] = append(grouped[issue.FilePath], issue)
	}
	return grouped
}
