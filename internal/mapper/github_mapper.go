package mapper

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

const githubEventHeader = "X-GitHub-Event"

var (
	githubPullRequestActions = map[string]model.EventType{
		"opened":      model.EventTypePRCreated,
		"synchronize": model.EventTypePRUpdated,
		"reopened":    model.EventTypePRUpdated,
		// "closed" is resolved against pull_request.merged
	}
	githubIssueActions = map[string]model.EventType{
		"opened": model.EventTypeIssueCreated,
		"edited": model.EventTypeIssueUpdated,
		"closed": model.EventTypeIssueClosed,
	}
)

type GitHubEventMapper struct {
	secret string
}

func NewGitHubEventMapper(secret string) *GitHubEventMapper {
	return &GitHubEventMapper{secret: secret}
}

func (m *GitHubEventMapper) Platform() model.Platform {
	return model.PlatformGitHub
}

func (m *GitHubEventMapper) Verify(ctx context.Context, d Delivery) bool {
	if m.secret == "" {
		return acceptUnsigned(ctx, m.Platform())
	}
	return signature.GitHub(m.secret, d.Body, d.Header.Get(signature.GitHubHeader))
}

func (m *GitHubEventMapper) Map(ctx context.Context, d Delivery) (*model.IngestionEvent, error) {
	name := d.Header.Get(githubEventHeader)
	switch name {
	case "pull_request", "pull_request_review", "pull_request_review_comment",
		"push", "issues", "issue_comment", "create", "delete":
	default:
		return nil, notTracked("github event %q", name)
	}

	payload, err := github.ParseWebHook(name, d.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing github %s payload: %w", name, err)
	}

	var event *model.IngestionEvent
	switch p := payload.(type) {
	case *github.PullRequestEvent:
		event, err = m.pullRequest(p)
	case *github.PullRequestReviewEvent:
		event, err = m.review(p)
	case *github.PullRequestReviewCommentEvent:
		event, err = m.reviewComment(p)
	case *github.PushEvent:
		event = m.push(p)
	case *github.IssuesEvent:
		event, err = m.issue(p)
	case *github.IssueCommentEvent:
		event, err = m.issueComment(p)
	case *github.CreateEvent:
		event, err = m.ref(model.EventTypeBranchCreated, p.GetRefType(), p.GetRef(), p.GetRepo(), p.GetSender())
	case *github.DeleteEvent:
		event, err = m.ref(model.EventTypeBranchDeleted, p.GetRefType(), p.GetRef(), p.GetRepo(), p.GetSender())
	default:
		return nil, notTracked("github event %q", name)
	}
	if err != nil {
		return nil, err
	}

	event.Tags = tags(string(model.PlatformGitHub), name, githubAction(payload))
	event.RawPayload = d.Body
	return event, nil
}

func (m *GitHubEventMapper) pullRequest(p *github.PullRequestEvent) (*model.IngestionEvent, error) {
	action := p.GetAction()
	eventType, ok := githubPullRequestActions[action]
	if action == "closed" {
		ok = true
		eventType = model.EventTypePRClosed
		if p.GetPullRequest().GetMerged() {
			eventType = model.EventTypePRMerged
		}
	}
	if !ok {
		return nil, notTracked("github pull_request.%s", action)
	}

	pr := p.GetPullRequest()
	event := m.newEvent(eventType, p.GetRepo(), p.GetSender())
	event.Title = model.Str(pr.GetTitle())
	event.Description = model.Str(pr.GetBody())
	event.Content = model.Str(pr.GetDiffURL())
	return event, nil
}

func (m *GitHubEventMapper) review(p *github.PullRequestReviewEvent) (*model.IngestionEvent, error) {
	if p.GetAction() != "submitted" {
		return nil, notTracked("github pull_request_review.%s", p.GetAction())
	}

	event := m.newEvent(model.EventTypeReviewSubmitted, p.GetRepo(), p.GetSender())
	event.Title = model.Str(p.GetPullRequest().GetTitle())
	event.Description = model.Str(p.GetReview().GetBody())
	event.Content = model.Str(p.GetReview().GetHTMLURL())
	return event, nil
}

func (m *GitHubEventMapper) reviewComment(p *github.PullRequestReviewCommentEvent) (*model.IngestionEvent, error) {
	if p.GetAction() != "created" {
		return nil, notTracked("github pull_request_review_comment.%s", p.GetAction())
	}

	event := m.newEvent(model.EventTypeReviewComment, p.GetRepo(), p.GetSender())
	event.Title = model.Str(p.GetPullRequest().GetTitle())
	event.Description = model.Str(p.GetComment().GetBody())
	event.Content = model.Str(p.GetComment().GetHTMLURL())
	return event, nil
}

func (m *GitHubEventMapper) push(p *github.PushEvent) *model.IngestionEvent {
	repo := p.GetRepo()
	event := model.NewIngestionEvent(model.PlatformGitHub, model.EventTypeCommitPushed)
	event.Context = model.EventContext{
		Repository:   repo.GetFullName(),
		Organisation: repo.GetOwner().GetLogin(),
		URL:          repo.GetHTMLURL(),
	}
	event.Author = githubAuthor(p.GetSender())

	messages := make([]string, 0, len(p.Commits))
	for _, c := range p.Commits {
		messages = append(messages, c.GetMessage())
	}
	event.Title = model.Str("Push to " + p.GetRef())
	event.Description = model.Str(strings.Join(messages, "\n"))
	return event
}

func (m *GitHubEventMapper) issue(p *github.IssuesEvent) (*model.IngestionEvent, error) {
	eventType, ok := githubIssueActions[p.GetAction()]
	if !ok {
		return nil, notTracked("github issues.%s", p.GetAction())
	}

	event := m.newEvent(eventType, p.GetRepo(), p.GetSender())
	event.Title = model.Str(p.GetIssue().GetTitle())
	event.Description = model.Str(p.GetIssue().GetBody())
	return event, nil
}

func (m *GitHubEventMapper) issueComment(p *github.IssueCommentEvent) (*model.IngestionEvent, error) {
	if p.GetAction() != "created" {
		return nil, notTracked("github issue_comment.%s", p.GetAction())
	}

	event := m.newEvent(model.EventTypeIssueCommented, p.GetRepo(), p.GetSender())
	event.Title = model.Str(p.GetIssue().GetTitle())
	event.Description = model.Str(p.GetIssue().GetBody())
	event.Content = model.Str(p.GetComment().GetBody())
	return event, nil
}

// ref handles create/delete, which GitHub also sends for tags.
func (m *GitHubEventMapper) ref(eventType model.EventType, refType, ref string, repo *github.Repository, sender *github.User) (*model.IngestionEvent, error) {
	if refType != "branch" {
		return nil, notTracked("github %s ref_type %q", eventType, refType)
	}

	event := m.newEvent(eventType, repo, sender)
	event.Title = model.Str(ref)
	return event, nil
}

func (m *GitHubEventMapper) newEvent(eventType model.EventType, repo *github.Repository, sender *github.User) *model.IngestionEvent {
	event := model.NewIngestionEvent(model.PlatformGitHub, eventType)
	event.Context = model.EventContext{
		Repository:   repo.GetFullName(),
		Organisation: repo.GetOwner().GetLogin(),
		URL:          repo.GetHTMLURL(),
	}
	event.Author = githubAuthor(sender)
	return event
}

func githubAuthor(u *github.User) *model.EventAuthor {
	author := &model.EventAuthor{
		Name:      firstNonEmpty(u.GetLogin(), model.UnknownAuthor),
		Username:  u.GetLogin(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}
	if u.GetID() != 0 {
		author.PlatformID = strconv.FormatInt(u.GetID(), 10)
	}
	return author
}

func githubAction(payload any) string {
	if a, ok := payload.(interface{ GetAction() string }); ok {
		return a.GetAction()
	}
	return ""
}
