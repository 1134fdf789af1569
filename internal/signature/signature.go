// Package signature holds the per-platform webhook authentication checks.
// Every function is pure: no logging and no secret-presence policy, which is
// left to the caller.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
)

const (
	GitHubHeader          = "X-Hub-Signature-256"
	GitLabHeader          = "X-Gitlab-Token"
	SlackTimestampHeader  = "X-Slack-Request-Timestamp"
	SlackSignatureHeader  = "X-Slack-Signature"
	JiraHeader            = "X-Jira-Webhook-Secret"
	JiraQueryParam        = "secret"
	DefaultSlackTolerance = 300 * time.Second

	githubPrefix = "sha256="
	slackVersion = "v0"
)

// GitHub reports whether header is "sha256=<hex>" over body keyed by secret.
func GitHub(secret string, body []byte, header string) bool {
	if !strings.HasPrefix(header, githubPrefix) {
		return false
	}
	return github.ValidateSignature(header, body, []byte(secret)) == nil
}

// SignGitHub produces the X-Hub-Signature-256 value for body.
func SignGitHub(secret string, body []byte) string {
	return githubPrefix + hexHMAC(secret, body)
}

// GitLab compares the plain shared token.
func GitLab(secret, token string) bool {
	return token != "" && equal(secret, token)
}

// Slack checks the request timestamp against now within tolerance, then the
// v0 signature over "v0:<timestamp>:<body>". A stale timestamp fails even
// when the signature is correct.
func Slack(secret string, body []byte, timestamp, sig string, now time.Time, tolerance time.Duration) bool {
	if sig == "" || !SlackFresh(timestamp, now, tolerance) {
		return false
	}
	return hmac.Equal([]byte(SignSlack(secret, timestamp, body)), []byte(sig))
}

// SlackFresh reports whether timestamp (unix seconds) lies within tolerance
// of now, in either direction.
func SlackFresh(timestamp string, now time.Time, tolerance time.Duration) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultSlackTolerance
	}
	// Bounds are computed in whole seconds around now so that no
	// arithmetic touches the untrusted value.
	window := int64(tolerance / time.Second)
	current := now.Unix()
	return ts >= current-window && ts <= current+window
}

// SignSlack produces the X-Slack-Signature value for body sent at timestamp.
func SignSlack(secret, timestamp string, body []byte) string {
	base := fmt.Sprintf("%s:%s:%s", slackVersion, timestamp, body)
	return slackVersion + "=" + hexHMAC(secret, []byte(base))
}

// JiraSecret picks the query parameter first, then the header.
func JiraSecret(query, header string) string {
	if query != "" {
		return query
	}
	return header
}

// Jira compares the shared secret supplied with the request.
func Jira(secret, supplied string) bool {
	return supplied != "" && equal(secret, supplied)
}

func hexHMAC(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
