// Package payload normalizes provider webhook bodies into pull request events.
package payload

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/festy23/pitcrew/internal/pullrequest/model"
)

// DefaultMaxDescriptionLength caps stored PR descriptions.
const DefaultMaxDescriptionLength = 5000

var (
	scriptTag     = regexp.MustCompile(`(?is)<script.*?</script>`)
	javascriptURI = regexp.MustCompile(`(?i)javascript:`)
)

var githubRequired = []string{
	"action",
	"pull_request.number",
	"pull_request.title",
	"pull_request.body",
	"pull_request.state",
	"pull_request.user.login",
	"pull_request.head.ref",
	"pull_request.base.ref",
	"pull_request.html_url",
	"pull_request.created_at",
	"pull_request.merged",
	"repository.id",
	"repository.name",
	"repository.full_name",
	"repository.html_url",
}

var bitbucketRequired = []string{
	"pullrequest.id",
	"pullrequest.title",
	"pullrequest.description",
	"pullrequest.state",
	"pullrequest.author.display_name",
	"pullrequest.source.branch.name",
	"pullrequest.destination.branch.name",
	"pullrequest.links.html.href",
	"pullrequest.created_on",
	"repository.uuid",
	"repository.name",
	"repository.full_name",
	"repository.links.html.href",
}

// ValidationError reports the first required field missing from a payload.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Normalizer converts raw webhook JSON into model.PullRequestEvent.
type Normalizer struct {
	maxDescriptionLength int
}

// New creates a Normalizer. A non-positive maxDescriptionLength selects the default.
func New(maxDescriptionLength int) *Normalizer {
	if maxDescriptionLength <= 0 {
		maxDescriptionLength = DefaultMaxDescriptionLength
	}
	return &Normalizer{maxDescriptionLength: maxDescriptionLength}
}

// Normalize validates body against the provider schema and maps it to a canonical event.
// action is used for providers that carry the event kind in a header (Bitbucket X-Event-Key).
func (n *Normalizer) Normalize(body []byte, provider model.Provider, action string) (*model.PullRequestEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, model.ErrInvalidPayload
	}
	doc := gjson.ParseBytes(body)

	switch provider {
	case model.ProviderGitHub:
		return n.github(doc)
	case model.ProviderBitbucket:
		return n.bitbucket(doc, action)
	default:
		return nil, fmt.Errorf("%w: %s", model.ErrUnsupportedProvider, provider)
	}
}

func (n *Normalizer) github(doc gjson.Result) (*model.PullRequestEvent, error) {
	if err := requireFields(doc, githubRequired); err != nil {
		return nil, err
	}

	pr := doc.Get("pull_request")
	createdAt, err := parseTime(pr.Get("created_at").String(), "pull_request.created_at")
	if err != nil {
		return nil, err
	}

	return &model.PullRequestEvent{
		Action: doc.Get("action").String(),
		Repository: model.RepositoryInfo{
			Provider:       model.ProviderGitHub,
			ProviderRepoID: doc.Get("repository.id").String(),
			Name:           doc.Get("repository.name").String(),
			FullName:       doc.Get("repository.full_name").String(),
			URL:            doc.Get("repository.html_url").String(),
		},
		PullRequest: model.PullRequestInfo{
			Number:       int(pr.Get("number").Int()),
			Title:        pr.Get("title").String(),
			Description:  n.Sanitize(pr.Get("body").String()),
			Author:       pr.Get("user.login").String(),
			Status:       githubStatus(pr.Get("state").String(), pr.Get("merged").Bool(), pr.Get("draft").Bool()),
			SourceBranch: pr.Get("head.ref").String(),
			TargetBranch: pr.Get("base.ref").String(),
			URL:          pr.Get("html_url").String(),
			CreatedAt:    createdAt,
		},
	}, nil
}

func (n *Normalizer) bitbucket(doc gjson.Result, action string) (*model.PullRequestEvent, error) {
	if err := requireFields(doc, bitbucketRequired); err != nil {
		return nil, err
	}

	pr := doc.Get("pullrequest")
	createdAt, err := parseTime(pr.Get("created_on").String(), "pullrequest.created_on")
	if err != nil {
		return nil, err
	}

	return &model.PullRequestEvent{
		Action: action,
		Repository: model.RepositoryInfo{
			Provider:       model.ProviderBitbucket,
			ProviderRepoID: doc.Get("repository.uuid").String(),
			Name:           doc.Get("repository.name").String(),
			FullName:       doc.Get("repository.full_name").String(),
			URL:            doc.Get("repository.links.html.href").String(),
		},
		PullRequest: model.PullRequestInfo{
			Number:       int(pr.Get("id").Int()),
			Title:        pr.Get("title").String(),
			Description:  n.Sanitize(pr.Get("description").String()),
			Author:       pr.Get("author.display_name").String(),
			Status:       bitbucketStatus(pr.Get("state").String()),
			SourceBranch: pr.Get("source.branch.name").String(),
			TargetBranch: pr.Get("destination.branch.name").String(),
			URL:          pr.Get("links.html.href").String(),
			CreatedAt:    createdAt,
		},
	}, nil
}

// Sanitize strips script tags and javascript: URIs, then truncates with an ellipsis.
func (n *Normalizer) Sanitize(description string) string {
	if description == "" {
		return ""
	}
	description = scriptTag.ReplaceAllString(description, "")
	description = javascriptURI.ReplaceAllString(description, "")

	if runes := []rune(description); len(runes) > n.maxDescriptionLength {
		description = string(runes[:n.maxDescriptionLength]) + "..."
	}
	return strings.TrimSpace(description)
}

// Summary returns key/value pairs describing the payload, for structured logging.
// It never fails; absent fields are logged empty.
func Summary(body []byte, provider model.Provider) []any {
	doc := gjson.ParseBytes(body)
	switch provider {
	case model.ProviderGitHub:
		return []any{
			"provider", provider,
			"action", doc.Get("action").String(),
			"pr_number", doc.Get("pull_request.number").Int(),
			"pr_title", doc.Get("pull_request.title").String(),
			"repository", doc.Get("repository.full_name").String(),
			"author", doc.Get("pull_request.user.login").String(),
		}
	case model.ProviderBitbucket:
		return []any{
			"provider", provider,
			"pr_number", doc.Get("pullrequest.id").Int(),
			"pr_title", doc.Get("pullrequest.title").String(),
			"repository", doc.Get("repository.full_name").String(),
			"author", doc.Get("pullrequest.author.display_name").String(),
			"state", doc.Get("pullrequest.state").String(),
		}
	default:
		return []any{"provider", provider}
	}
}

func requireFields(doc gjson.Result, fields []string) error {
	for _, field := range fields {
		if !doc.Get(field).Exists() {
			return &ValidationError{Field: field}
		}
	}
	return nil
}

func parseTime(value, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field}
	}
	return t.UTC(), nil
}

// githubStatus maps state and the merged flag; an open draft PR is reported as draft.
func githubStatus(state string, merged, draft bool) model.Status {
	switch {
	case state == "closed" && merged:
		return model.StatusMerged
	case state == "closed":
		return model.StatusClosed
	case draft:
		return model.StatusDraft
	default:
		return model.StatusOpen
	}
}

func bitbucketStatus(state string) model.Status {
	switch strings.ToUpper(state) {
	case "MERGED":
		return model.StatusMerged
	case "DECLINED", "SUPERSEDED":
		return model.StatusClosed
	default:
		return model.StatusOpen
	}
}
