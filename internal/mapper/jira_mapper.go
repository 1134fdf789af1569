package mapper

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

var jiraWebhookEvents = map[string]model.EventType{
	"jira:issue_created": model.EventTypeIssueCreated,
	"jira:issue_updated": model.EventTypeIssueUpdated,
	"jira:issue_deleted": model.EventTypeIssueClosed,
	"comment_created":    model.EventTypeIssueCommented,
	"comment_updated":    model.EventTypeIssueCommented,
	"sprint_started":     model.EventTypeSprintStarted,
	"sprint_closed":      model.EventTypeSprintCompleted,
}

type JiraEventMapper struct {
	secret  string
	baseURL string
}

// NewJiraEventMapper builds the Jira mapper. baseURL is only used to link
// back to issues.
func NewJiraEventMapper(secret, baseURL string) *JiraEventMapper {
	return &JiraEventMapper{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (m *JiraEventMapper) Platform() model.Platform {
	return model.PlatformJira
}

func (m *JiraEventMapper) Verify(ctx context.Context, d Delivery) bool {
	if m.secret == "" {
		return acceptUnsigned(ctx, m.Platform())
	}
	supplied := signature.JiraSecret(d.Query.Get(signature.JiraQueryParam), d.Header.Get(signature.JiraHeader))
	return signature.Jira(m.secret, supplied)
}

func (m *JiraEventMapper) Map(ctx context.Context, d Delivery) (*model.IngestionEvent, error) {
	payload := gjson.ParseBytes(d.Body)
	webhookEvent := payload.Get("webhookEvent").String()

	eventType, ok := jiraWebhookEvents[webhookEvent]
	if !ok {
		return nil, notTracked("jira webhookEvent %q", webhookEvent)
	}

	issue := payload.Get("issue")
	fields := issue.Get("fields")
	projectKey := fields.Get("project.key").String()

	event := model.NewIngestionEvent(model.PlatformJira, eventType)
	event.Context = model.EventContext{
		Project:      projectKey,
		Organisation: fields.Get("project.name").String(),
	}
	if key := issue.Get("key").String(); m.baseURL != "" && key != "" {
		event.Context.URL = m.baseURL + "/browse/" + key
	}

	user := payload.Get("user")
	if !user.Exists() {
		user = payload.Get("comment.author")
	}
	event.Author = &model.EventAuthor{
		Name:       firstNonEmpty(user.Get("displayName").String(), model.UnknownAuthor),
		Email:      user.Get("emailAddress").String(),
		Username:   user.Get("name").String(),
		PlatformID: user.Get("accountId").String(),
		AvatarURL:  user.Get(`avatarUrls.48x48`).String(),
	}

	if sprint := payload.Get("sprint"); sprint.Exists() && !issue.Exists() {
		event.Title = model.Str(sprint.Get("name").String())
		event.Description = model.Str(sprint.Get("goal").String())
	} else {
		event.Title = model.Str(fields.Get("summary").String())
		event.Description = model.Str(jiraText(fields.Get("description")))
	}
	if comment := payload.Get("comment"); comment.Exists() {
		event.Content = model.Str(jiraText(comment.Get("body")))
	}

	event.Tags = tags(string(model.PlatformJira), webhookEvent, projectKey)
	event.RawPayload = d.Body
	return event, nil
}

// jiraText returns plain strings as-is and keeps rich-text documents (Atlassian
// Document Format) as their raw JSON.
func jiraText(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.String()
	case gjson.JSON:
		return r.Raw
	default:
		return ""
	}
}
