package main

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

// defaultEventHeaders names the native event for platforms that carry it in
// a header rather than in the body.
var defaultEventHeaders = map[model.Platform]string{
	model.PlatformGitHub: "X-GitHub-Event",
	model.PlatformGitLab: "X-Gitlab-Event",
}

func signCmd() *cobra.Command {
	var (
		secret string
		file   string
		event  string
	)

	cmd := &cobra.Command{
		Use:   "sign <platform>",
		Short: "Print the authentication headers a platform would send for a payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			headers, err := signedHeaders(model.Platform(args[0]), secret, event, body, time.Now())
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(headers))
			for k := range headers {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", k, headers.Get(k))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Shared secret or signing secret")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON payload")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Native event name (GitHub X-GitHub-Event, GitLab X-Gitlab-Event)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func signedHeaders(platform model.Platform, secret, event string, body []byte, now time.Time) (http.Header, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	if name, ok := defaultEventHeaders[platform]; ok && event != "" {
		h.Set(name, event)
	}

	if secret == "" {
		return h, nil
	}

	switch platform {
	case model.PlatformGitHub:
		h.Set(signature.GitHubHeader, signature.SignGitHub(secret, body))
	case model.PlatformGitLab:
		h.Set(signature.GitLabHeader, secret)
	case model.PlatformSlack:
		ts := strconv.FormatInt(now.Unix(), 10)
		h.Set(signature.SlackTimestampHeader, ts)
		h.Set(signature.SlackSignatureHeader, signature.SignSlack(secret, ts, body))
	case model.PlatformJira:
		h.Set(signature.JiraHeader, secret)
	}
	return h, nil
}
