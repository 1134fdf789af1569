package mapper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"basegraph.app/ingest/internal/model"
)

// ErrEventNotTracked means the delivery is authentic but outside the tracked
// vocabulary. It is acknowledged and dropped, never stored.
var ErrEventNotTracked = errors.New("event not tracked")

// Delivery is one inbound webhook request. Body holds the exact bytes read
// from the wire and is what signatures are checked against.
type Delivery struct {
	Header http.Header
	Query  url.Values
	Body   []byte
}

// EventMapper authenticates and normalizes deliveries for one platform.
type EventMapper interface {
	Platform() model.Platform
	Verify(ctx context.Context, d Delivery) bool
	Map(ctx context.Context, d Delivery) (*model.IngestionEvent, error)
}

// ChallengeResponder is implemented by platforms with an endpoint
// verification handshake that must be answered before authentication.
type ChallengeResponder interface {
	Challenge(body []byte) (string, bool)
}

func notTracked(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrEventNotTracked, fmt.Sprintf(format, args...))
}

func acceptUnsigned(ctx context.Context, platform model.Platform) bool {
	slog.WarnContext(ctx, "webhook secret not configured, accepting unsigned delivery",
		"platform", platform)
	return true
}

func tags(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
