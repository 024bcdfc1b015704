// Package analyzer turns a pull request diff into a structured risk assessment.
// Analyze never fails; model errors and unusable replies produce a fallback result.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/festy23/pitcrew/internal/analyzer/llm"
)

const (
	// FallbackSummary marks a review produced without a usable model reply.
	FallbackSummary = "AI analysis unavailable"
	// FallbackRiskScore is the neutral score of every fallback result.
	FallbackRiskScore = 50

	DefaultDiffLimit = 5000
	DefaultMaxTokens = 1024
	DefaultTimeout   = 20 * time.Second

	rawSummaryLimit = 500
)

// Degradation reasons.
const (
	ReasonLLMError   = "llm_error"
	ReasonParseError = "parse_error"
)

// Metadata is the pull request context given to the model.
type Metadata struct {
	Title       string
	Description string
}

// Issue is a single model finding.
type Issue struct {
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	File       string `json:"file"`
	Line       *int   `json:"line"`
	Suggestion string `json:"suggestion"`
}

// Degraded explains why a fallback result was returned.
type Degraded struct {
	Reason string
	Err    error
}

func (d *Degraded) Error() string {
	return fmt.Sprintf("analysis degraded (%s): %v", d.Reason, d.Err)
}

func (d *Degraded) Unwrap() error { return d.Err }

// Result is the assessment of one pull request.
type Result struct {
	Summary         string   `json:"summary"`
	RiskScore       int      `json:"riskScore"`
	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Blockers        []string `json:"blockers"`
	DeploymentReady bool     `json:"deploymentReady"`
	Strengths       []string `json:"strengths,omitempty"`
	// Degraded is set when the result is a fallback.
	Degraded *Degraded `json:"-"`
}

// Fallback returns the fixed-shape result used when analysis is unusable.
func Fallback(summary string) Result {
	return Result{
		Summary:         summary,
		RiskScore:       FallbackRiskScore,
		Issues:          []Issue{},
		Recommendations: []string{},
		Blockers:        []string{},
		DeploymentReady: false,
	}
}

// Data returns the result as the raw analysis payload stored with a review.
func (r Result) Data() map[string]any {
	issues := make([]any, 0, len(r.Issues))
	for _, issue := range r.Issues {
		item := map[string]any{
			"severity":   issue.Severity,
			"title":      issue.Title,
			"file":       issue.File,
			"suggestion": issue.Suggestion,
		}
		if issue.Line != nil {
			item["line"] = *issue.Line
		}
		issues = append(issues, item)
	}

	data := map[string]any{
		"summary":         r.Summary,
		"riskScore":       r.RiskScore,
		"issues":          issues,
		"recommendations": toAny(r.Recommendations),
		"blockers":        toAny(r.Blockers),
		"deploymentReady": r.DeploymentReady,
	}
	if len(r.Strengths) > 0 {
		data["strengths"] = toAny(r.Strengths)
	}
	if r.Degraded != nil {
		data["degraded"] = r.Degraded.Reason
	}
	return data
}

// Config tunes prompt size and model budget.
type Config struct {
	DiffLimit int
	MaxTokens int
	Timeout   time.Duration
}

// Analyzer prompts a language model and parses its reply.
type Analyzer struct {
	llm    llm.Completer
	cfg    Config
	logger *zap.SugaredLogger
}

// New creates an Analyzer. Zero Config fields take the package defaults.
func New(completer llm.Completer, cfg Config, logger *zap.SugaredLogger) *Analyzer {
	if cfg.DiffLimit <= 0 {
		cfg.DiffLimit = DefaultDiffLimit
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Analyzer{llm: completer, cfg: cfg, logger: logger}
}

// Analyze assesses diff. It always returns a usable Result.
func (a *Analyzer) Analyze(ctx context.Context, meta Metadata, diff string) Result {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	prompt := BuildPrompt(meta, truncate(diff, a.cfg.DiffLimit))
	text, err := a.llm.Complete(ctx, prompt, a.cfg.MaxTokens)
	if err != nil {
		a.logger.Errorw("AI analysis failed, using fallback", "llm", a.llm.Name(), "error", err)
		result := Fallback(FallbackSummary)
		result.Degraded = &Degraded{Reason: ReasonLLMError, Err: err}
		return result
	}

	result := Parse(text)
	if result.Degraded != nil {
		a.logger.Errorw("AI response was not valid JSON, using fallback", "llm", a.llm.Name(), "response_length", len(text))
	}
	return result
}

// Parse decodes a model reply, stripping markdown code fences. Unparseable text
// yields a fallback whose summary is the start of the reply.
func Parse(text string) Result {
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(text, "```json", ""), "```", ""))
	if !gjson.Valid(clean) || !gjson.Parse(clean).IsObject() {
		result := Fallback(truncate(text, rawSummaryLimit))
		result.Degraded = &Degraded{Reason: ReasonParseError, Err: fmt.Errorf("reply is not a JSON object")}
		return result
	}

	doc := gjson.Parse(clean)
	result := Result{
		Summary:         doc.Get("summary").String(),
		RiskScore:       clamp(int(doc.Get("riskScore").Int()), 0, 100),
		Issues:          []Issue{},
		Recommendations: stringList(doc.Get("recommendations")),
		Blockers:        stringList(doc.Get("blockers")),
		DeploymentReady: doc.Get("deploymentReady").Bool(),
		Strengths:       stringList(doc.Get("strengths")),
	}
	if !doc.Get("riskScore").Exists() {
		result.RiskScore = FallbackRiskScore
	}
	if len(result.Strengths) == 0 {
		result.Strengths = nil
	}

	doc.Get("issues").ForEach(func(_, item gjson.Result) bool {
		if !item.IsObject() {
			return true
		}
		issue := Issue{
			Severity:   strings.ToLower(item.Get("severity").String()),
			Title:      item.Get("title").String(),
			File:       item.Get("file").String(),
			Suggestion: item.Get("suggestion").String(),
		}
		if line := item.Get("line"); line.Type == gjson.Number || (line.Type == gjson.String && line.Int() > 0) {
			n := int(line.Int())
			issue.Line = &n
		}
		result.Issues = append(result.Issues, issue)
		return true
	})

	return result
}

// BuildPrompt renders the analysis request for a pull request.
func BuildPrompt(meta Metadata, diff string) string {
	description := meta.Description
	if description == "" {
		description = "No description"
	}

	var b strings.Builder
	b.WriteString("Analyze this pull request and provide a structured review.\n\n")
	fmt.Fprintf(&b, "PR Title: %s\n", meta.Title)
	fmt.Fprintf(&b, "PR Description: %s\n\n", description)
	b.WriteString("Code Changes:\n")
	b.WriteString(diff)
	b.WriteString("\n\nRespond with ONLY a JSON object in this format, no prose:\n")
	b.WriteString(`{
  "summary": "Brief overview",
  "riskScore": 0-100,
  "issues": [
    {
      "severity": "high|medium|low",
      "title": "Issue title",
      "file": "file path",
      "line": line_number,
      "suggestion": "How to fix"
    }
  ],
  "recommendations": ["rec 1", "rec 2"],
  "blockers": ["blocker 1"],
  "strengths": ["strength 1"],
  "deploymentReady": true/false
}`)
	b.WriteString("\n\nFocus on security, performance, and best practices.")
	return b.String()
}

func stringList(r gjson.Result) []string {
	out := []string{}
	r.ForEach(func(_, item gjson.Result) bool {
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
		return true
	})
	return out
}

func toAny(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
