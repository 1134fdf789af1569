package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

const gitlabEventHeader = "X-Gitlab-Event"

var (
	gitlabMergeRequestActions = map[string]model.EventType{
		"open":   model.EventTypePRCreated,
		"update": model.EventTypePRUpdated,
		"merge":  model.EventTypePRMerged,
		"close":  model.EventTypePRClosed,
	}
	gitlabIssueActions = map[string]model.EventType{
		"open":   model.EventTypeIssueCreated,
		"update": model.EventTypeIssueUpdated,
		"close":  model.EventTypeIssueClosed,
	}
	// object_kind wins over the X-Gitlab-Event header when both are present.
	gitlabObjectKinds = map[string]gitlab.EventType{
		"merge_request": gitlab.EventTypeMergeRequest,
		"issue":         gitlab.EventTypeIssue,
		"note":          gitlab.EventTypeNote,
		"push":          gitlab.EventTypePush,
	}
	gitlabTrackedHooks = map[gitlab.EventType]bool{
		gitlab.EventTypeMergeRequest:  true,
		gitlab.EventTypeIssue:         true,
		gitlab.EventConfidentialIssue: true,
		gitlab.EventTypeNote:          true,
		gitlab.EventConfidentialNote:  true,
		gitlab.EventTypePush:          true,
	}
)

var errInvalidGitLabPayload = errors.New("payload is not valid JSON")

type GitLabEventMapper struct {
	secret string
}

func NewGitLabEventMapper(secret string) *GitLabEventMapper {
	return &GitLabEventMapper{secret: secret}
}

func (m *GitLabEventMapper) Platform() model.Platform {
	return model.PlatformGitLab
}

func (m *GitLabEventMapper) Verify(ctx context.Context, d Delivery) bool {
	if m.secret == "" {
		return acceptUnsigned(ctx, m.Platform())
	}
	return signature.GitLab(m.secret, d.Header.Get(signature.GitLabHeader))
}

func (m *GitLabEventMapper) Map(ctx context.Context, d Delivery) (*model.IngestionEvent, error) {
	if !gjson.ValidBytes(d.Body) {
		return nil, fmt.Errorf("parsing gitlab payload: %w", errInvalidGitLabPayload)
	}

	hook, err := gitlabHook(d)
	if err != nil {
		return nil, err
	}

	raw, err := gitlab.ParseWebhook(hook, d.Body)
	if err != nil && (hook == gitlab.EventTypeNote || hook == gitlab.EventConfidentialNote) {
		raw, err = decodeGitLabNote(d.Body)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing gitlab payload: %w", err)
	}

	var (
		g         gitlabDelivery
		eventType model.EventType
	)
	switch ev := raw.(type) {
	case *gitlab.MergeEvent:
		t, ok := gitlabMergeRequestActions[ev.ObjectAttributes.Action]
		if !ok {
			return nil, notTracked("gitlab merge_request.%s", ev.ObjectAttributes.Action)
		}
		eventType = t
		g = gitlabDelivery{
			kind:        "merge_request",
			detail:      ev.ObjectAttributes.Action,
			title:       ev.ObjectAttributes.Title,
			description: ev.ObjectAttributes.Description,
			url:         ev.ObjectAttributes.URL,
			project:     gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL},
		}
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.IssueEvent:
		t, ok := gitlabIssueActions[ev.ObjectAttributes.Action]
		if !ok {
			return nil, notTracked("gitlab issue.%s", ev.ObjectAttributes.Action)
		}
		eventType = t
		g = gitlabDelivery{
			kind:        "issue",
			detail:      ev.ObjectAttributes.Action,
			title:       ev.ObjectAttributes.Title,
			description: ev.ObjectAttributes.Description,
			url:         ev.ObjectAttributes.URL,
			project:     gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL},
		}
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.IssueCommentEvent:
		eventType = model.EventTypeIssueCommented
		g = gitlabNote(ev.ObjectAttributes.NoteableType, ev.ObjectAttributes.Note, ev.ObjectAttributes.URL,
			gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL})
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.MergeCommentEvent:
		eventType = model.EventTypeReviewComment
		g = gitlabNote(ev.ObjectAttributes.NoteableType, ev.ObjectAttributes.Note, ev.ObjectAttributes.URL,
			gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL})
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.CommitCommentEvent:
		eventType = model.EventTypeReviewComment
		g = gitlabNote(ev.ObjectAttributes.NoteableType, ev.ObjectAttributes.Note, ev.ObjectAttributes.URL,
			gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL})
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.SnippetCommentEvent:
		eventType = model.EventTypeReviewComment
		g = gitlabNote(ev.ObjectAttributes.NoteableType, ev.ObjectAttributes.Note, ev.ObjectAttributes.URL,
			gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL})
		if u := ev.User; u != nil {
			g.author = gitlabAuthor(u.ID, u.Name, u.Username, u.Email, u.AvatarURL)
		}
	case *gitlab.PushEvent:
		eventType = model.EventTypeCommitPushed
		messages := make([]string, 0, len(ev.Commits))
		for _, c := range ev.Commits {
			if c != nil {
				messages = append(messages, c.Message)
			}
		}
		g = gitlabDelivery{
			kind:        "push",
			title:       "Push to " + ev.Ref,
			description: strings.Join(messages, "\n"),
			project:     gitlabProject{ev.Project.PathWithNamespace, ev.Project.Namespace, ev.Project.WebURL},
			// push deliveries flatten the user onto the root
			author: gitlabAuthor(ev.UserID, ev.UserName, ev.UserUsername, ev.UserEmail, ev.UserAvatar),
		}
	default:
		return nil, notTracked("gitlab %T", raw)
	}

	event := model.NewIngestionEvent(model.PlatformGitLab, eventType)
	event.Context = model.EventContext{
		Repository:   g.project.path,
		Organisation: g.project.namespace,
		URL:          g.project.webURL,
	}
	event.Author = g.author
	if event.Author == nil {
		event.Author = gitlabAuthor(0, "", "", "", "")
	}
	event.Title = model.Str(g.title)
	event.Description = model.Str(g.description)
	event.Content = model.Str(g.url)
	event.Tags = tags(string(model.PlatformGitLab), g.kind, g.detail)
	event.RawPayload = d.Body
	return event, nil
}

// gitlabHook resolves the hook name ParseWebhook expects, from object_kind
// first and the X-Gitlab-Event header second.
func gitlabHook(d Delivery) (gitlab.EventType, error) {
	kind := gjson.GetBytes(d.Body, "object_kind").String()
	if kind != "" {
		hook, ok := gitlabObjectKinds[kind]
		if !ok {
			return "", notTracked("gitlab object_kind %q", kind)
		}
		return hook, nil
	}

	hook := gitlab.EventType(d.Header.Get(gitlabEventHeader))
	if !gitlabTrackedHooks[hook] {
		return "", notTracked("gitlab hook %q", hook)
	}
	return hook, nil
}

// decodeGitLabNote covers notes ParseWebhook refuses: a missing object_kind
// or a noteable type it does not know.
func decodeGitLabNote(body []byte) (any, error) {
	var event any = &gitlab.MergeCommentEvent{}
	if gjson.GetBytes(body, "object_attributes.noteable_type").String() == "Issue" {
		event = &gitlab.IssueCommentEvent{}
	}
	if err := json.Unmarshal(body, event); err != nil {
		return nil, err
	}
	return event, nil
}

type gitlabProject struct {
	path      string
	namespace string
	webURL    string
}

type gitlabDelivery struct {
	kind        string
	detail      string
	title       string
	description string
	url         string
	project     gitlabProject
	author      *model.EventAuthor
}

func gitlabNote(noteableType, note, url string, project gitlabProject) gitlabDelivery {
	return gitlabDelivery{
		kind:        "note",
		detail:      noteableType,
		description: note,
		url:         url,
		project:     project,
	}
}

func gitlabAuthor(id int64, name, username, email, avatar string) *model.EventAuthor {
	a := &model.EventAuthor{
		Name:      firstNonEmpty(name, username, model.UnknownAuthor),
		Username:  username,
		Email:     email,
		AvatarURL: avatar,
	}
	if id != 0 {
		a.PlatformID = strconv.FormatInt(id, 10)
	}
	return a
}
