package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basegraph.app/ingest/common/id"
)

type Platform string

const (
	PlatformGitHub Platform = "github"
	PlatformGitLab Platform = "gitlab"
	PlatformSlack  Platform = "slack"
	PlatformJira   Platform = "jira"
)

// Platforms is the closed set of platforms, in display order.
var Platforms = []Platform{PlatformGitHub, PlatformGitLab, PlatformSlack, PlatformJira}

func (p Platform) Valid() bool {
	switch p {
	case PlatformGitHub, PlatformGitLab, PlatformSlack, PlatformJira:
		return true
	}
	return false
}

type EventType string

const (
	EventTypePRCreated       EventType = "pr_created"
	EventTypePRUpdated       EventType = "pr_updated"
	EventTypePRMerged        EventType = "pr_merged"
	EventTypePRClosed        EventType = "pr_closed"
	EventTypeReviewSubmitted EventType = "review_submitted"
	EventTypeReviewComment   EventType = "review_comment"
	EventTypeCommitPushed    EventType = "commit_pushed"
	EventTypeBranchCreated   EventType = "branch_created"
	EventTypeBranchDeleted   EventType = "branch_deleted"
	EventTypeIssueCreated    EventType = "issue_created"
	EventTypeIssueUpdated    EventType = "issue_updated"
	EventTypeIssueClosed     EventType = "issue_closed"
	EventTypeIssueCommented  EventType = "issue_commented"
	EventTypeMessageSent     EventType = "message_sent"
	EventTypeThreadReply     EventType = "thread_reply"
	EventTypeReactionAdded   EventType = "reaction_added"
	EventTypeSprintStarted   EventType = "sprint_started"
	EventTypeSprintCompleted EventType = "sprint_completed"
	EventTypeUnknown         EventType = "unknown"
)

var eventTypes = map[EventType]struct{}{
	EventTypePRCreated: {}, EventTypePRUpdated: {}, EventTypePRMerged: {}, EventTypePRClosed: {},
	EventTypeReviewSubmitted: {}, EventTypeReviewComment: {}, EventTypeCommitPushed: {},
	EventTypeBranchCreated: {}, EventTypeBranchDeleted: {},
	EventTypeIssueCreated: {}, EventTypeIssueUpdated: {}, EventTypeIssueClosed: {}, EventTypeIssueCommented: {},
	EventTypeMessageSent: {}, EventTypeThreadReply: {}, EventTypeReactionAdded: {},
	EventTypeSprintStarted: {}, EventTypeSprintCompleted: {}, EventTypeUnknown: {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

type EventStatus string

const (
	EventStatusReceived   EventStatus = "received"
	EventStatusQueued     EventStatus = "queued"
	EventStatusProcessing EventStatus = "processing"
	EventStatusProcessed  EventStatus = "processed"
	EventStatusFailed     EventStatus = "failed"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusReceived, EventStatusQueued, EventStatusProcessing, EventStatusProcessed, EventStatusFailed:
		return true
	}
	return false
}

func (s EventStatus) Terminal() bool {
	return s == EventStatusProcessed || s == EventStatusFailed
}

// EventContext locates the event on its platform. Only the fields relevant to
// the originating platform are set.
type EventContext struct {
	Repository   string `json:"repository,omitempty"`
	Project      string `json:"project,omitempty"`
	Channel      string `json:"channel,omitempty"`
	Organisation string `json:"organisation,omitempty"`
	URL          string `json:"url,omitempty"`
}

// Locator returns the repository, project or channel, whichever is set.
func (c EventContext) Locator() string {
	switch {
	case c.Repository != "":
		return c.Repository
	case c.Project != "":
		return c.Project
	default:
		return c.Channel
	}
}

type EventAuthor struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Username   string `json:"username,omitempty"`
	PlatformID string `json:"platform_id,omitempty"`
	AvatarURL  string `json:"avatar_url,omitempty"`
}

const UnknownAuthor = "unknown"

// IngestionEvent is the normalized form of a tracked webhook delivery.
type IngestionEvent struct {
	Timestamp   time.Time    `json:"timestamp"`
	Author      *EventAuthor `json:"author,omitempty"`
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Content     *string      `json:"content,omitempty"`
	Context     EventContext `json:"context"`
	EventID     string       `json:"event_id"`
	Platform    Platform     `json:"platform"`
	EventType   EventType    `json:"event_type"`
	Status      EventStatus  `json:"status"`
	Tags        []string     `json:"tags,omitempty"`
	// RawPayload is kept byte-for-byte; it encodes as base64 so the exact
	// delivery survives a round trip.
	RawPayload []byte `json:"raw_payload,omitempty"`
}

// NewIngestionEvent assigns a fresh id and timestamp. The timestamp is
// truncated to microseconds, the resolution of the event store.
func NewIngestionEvent(platform Platform, eventType EventType) *IngestionEvent {
	return &IngestionEvent{
		EventID:   id.NewString(),
		Platform:  platform,
		EventType: eventType,
		Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		Status:    EventStatusReceived,
	}
}

// Summary picks the best free-text body: content, falling back to description.
func (e *IngestionEvent) Summary() string {
	if e.Content != nil && *e.Content != "" {
		return *e.Content
	}
	if e.Description != nil {
		return *e.Description
	}
	return ""
}

func (e *IngestionEvent) AuthorName() string {
	if e.Author == nil || e.Author.Name == "" {
		return UnknownAuthor
	}
	return e.Author.Name
}

var ErrInvalidEvent = errors.New("invalid ingestion event")

func (e *IngestionEvent) Validate() error {
	switch {
	case e.EventID == "":
		return fmt.Errorf("%w: missing event_id", ErrInvalidEvent)
	case !e.Platform.Valid():
		return fmt.Errorf("%w: platform %q", ErrInvalidEvent, e.Platform)
	case !e.EventType.Valid():
		return fmt.Errorf("%w: event_type %q", ErrInvalidEvent, e.EventType)
	case !e.Status.Valid():
		return fmt.Errorf("%w: status %q", ErrInvalidEvent, e.Status)
	}
	return nil
}

// Encode serializes the event to its storage document.
func (e *IngestionEvent) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event %s: %w", e.EventID, err)
	}
	return data, nil
}

// DecodeIngestionEvent is the inverse of Encode. Identity and timestamp are
// taken from the document, never regenerated.
func DecodeIngestionEvent(data []byte) (*IngestionEvent, error) {
	var e IngestionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Str returns nil for an empty string so absent payload fields stay absent.
func Str(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
