package mapper

import (
	"context"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
	"github.com/tidwall/gjson"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

const slackURLVerification = "url_verification"

type SlackEventMapper struct {
	secret    string
	tolerance time.Duration
	now       func() time.Time
}

func NewSlackEventMapper(signingSecret string, tolerance time.Duration) *SlackEventMapper {
	if tolerance <= 0 {
		tolerance = signature.DefaultSlackTolerance
	}
	return &SlackEventMapper{
		secret:    signingSecret,
		tolerance: tolerance,
		now:       time.Now,
	}
}

func (m *SlackEventMapper) Platform() model.Platform {
	return model.PlatformSlack
}

// Challenge answers the url_verification handshake Slack sends when an
// events endpoint is first registered.
func (m *SlackEventMapper) Challenge(body []byte) (string, bool) {
	payload := gjson.ParseBytes(body)
	if payload.Get("type").String() != slackURLVerification {
		return "", false
	}
	return payload.Get("challenge").String(), true
}

// Verify applies the configured replay window, then lets slack-go check the
// v0 signature. slack-go enforces its own five minute window on top.
func (m *SlackEventMapper) Verify(ctx context.Context, d Delivery) bool {
	timestamp := d.Header.Get(signature.SlackTimestampHeader)
	if timestamp == "" {
		return false
	}
	if m.secret == "" {
		return acceptUnsigned(ctx, m.Platform())
	}
	if !signature.SlackFresh(timestamp, m.now(), m.tolerance) {
		slog.DebugContext(ctx, "slack request timestamp outside replay window", "timestamp", timestamp)
		return false
	}

	verifier, err := slack.NewSecretsVerifier(d.Header, m.secret)
	if err != nil {
		slog.DebugContext(ctx, "slack signature headers rejected", "error", err)
		return false
	}
	if _, err := verifier.Write(d.Body); err != nil {
		return false
	}
	return verifier.Ensure() == nil
}

func (m *SlackEventMapper) Map(ctx context.Context, d Delivery) (*model.IngestionEvent, error) {
	payload := gjson.ParseBytes(d.Body)
	ev := payload.Get("event")
	kind := ev.Get("type").String()

	// Never ingest bot traffic, including our own.
	if botID := ev.Get("bot_id"); (botID.Exists() && botID.Type != gjson.Null) || ev.Get("subtype").String() == "bot_message" {
		return nil, notTracked("slack bot message")
	}

	var eventType model.EventType
	switch kind {
	case "message", "app_mention":
		eventType = model.EventTypeMessageSent
		if ev.Get("thread_ts").String() != "" {
			eventType = model.EventTypeThreadReply
		}
	case "reaction_added":
		eventType = model.EventTypeReactionAdded
	default:
		return nil, notTracked("slack event %q", kind)
	}

	channel := firstNonEmpty(ev.Get("channel").String(), ev.Get("item.channel").String())

	event := model.NewIngestionEvent(model.PlatformSlack, eventType)
	event.Context = model.EventContext{
		Channel:      channel,
		Organisation: payload.Get("team_id").String(),
	}
	event.Author = &model.EventAuthor{
		Name:       firstNonEmpty(ev.Get("user").String(), model.UnknownAuthor),
		PlatformID: ev.Get("user").String(),
	}
	event.Title = model.Str("Slack message in #" + firstNonEmpty(channel, "unknown"))
	event.Content = model.Str(ev.Get("text").String())
	if eventType == model.EventTypeReactionAdded {
		event.Content = model.Str(ev.Get("reaction").String())
	}
	event.Tags = tags(string(model.PlatformSlack), kind)
	event.RawPayload = d.Body
	return event, nil
}
