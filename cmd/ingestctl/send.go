package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"

	"basegraph.app/ingest/internal/model"
)

func sendCmd() *cobra.Command {
	var (
		baseURL string
		secret  string
		file    string
		event   string
	)

	cmd := &cobra.Command{
		Use:   "send <platform>",
		Short: "Sign a payload and POST it to /webhooks/<platform>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform := model.Platform(args[0])

			body, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading payload: %w", err)
			}

			headers, err := signedHeaders(platform, secret, event, body, time.Now())
			if err != nil {
				return err
			}

			url := strings.TrimRight(baseURL, "/") + "/webhooks/" + string(platform)
			req, err := retryablehttp.NewRequestWithContext(cmd.Context(), http.MethodPost, url, body)
			if err != nil {
				return fmt.Errorf("building request: %w", err)
			}
			req.Header = headers

			resp, err := newHTTPClient().Do(req)
			if err != nil {
				return fmt.Errorf("sending webhook: %w", err)
			}
			defer resp.Body.Close()

			payload, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", resp.Status, bytes.TrimSpace(payload))
			if resp.StatusCode >= 400 {
				return fmt.Errorf("webhook rejected with %d", resp.StatusCode)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:8080", "Base URL of the ingestion server")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "Shared secret or signing secret")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Path to the JSON payload")
	cmd.Flags().StringVarP(&event, "event", "e", "", "Native event name (GitHub X-GitHub-Event, GitLab X-Gitlab-Event)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// newHTTPClient retries connection errors and 5xx quietly.
func newHTTPClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.HTTPClient.Timeout = 15 * time.Second
	return client
}
