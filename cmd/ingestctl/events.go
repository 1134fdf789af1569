package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"basegraph.app/ingest/internal/http/dto"
	"basegraph.app/ingest/internal/http/middleware"
)

func eventsCmd() *cobra.Command {
	var (
		baseURL  string
		platform string
		limit    int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recently ingested events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if platform != "" {
				q.Set("platform", platform)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}

			endpoint := strings.TrimRight(baseURL, "/") + "/webhooks/events?" + q.Encode()
			req, err := retryablehttp.NewRequestWithContext(cmd.Context(), http.MethodGet, endpoint, nil)
			if err != nil {
				return fmt.Errorf("building request: %w", err)
			}
			if key := os.Getenv("ADMIN_API_KEY"); key != "" {
				req.Header.Set(middleware.AdminAPIKeyHeader, key)
			}

			resp, err := newHTTPClient().Do(req)
			if err != nil {
				return fmt.Errorf("listing events: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("listing events: server returned %s", resp.Status)
			}

			var list dto.ListEventsResponse
			if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
				return fmt.Errorf("decoding events: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderEvents(list.Events))
			return nil
		},
	}

	cmd.Flags().StringVarP(&baseURL, "url", "u", "http://localhost:8080", "Base URL of the ingestion server")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Only show one platform (github, gitlab, slack, jira)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum events")
	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")

	return cmd
}

func renderEvents(events []dto.EventResponse) string {
	w := table.NewWriter()
	w.SetStyle(table.StyleLight)
	w.AppendHeader(table.Row{"ID", "Platform", "Type", "Status", "Author", "Title", "Timestamp"})
	w.SetColumnConfigs([]table.ColumnConfig{
		{Number: 6, WidthMax: 48},
	})

	for _, e := range events {
		title := ""
		if e.Title != nil {
			title = *e.Title
		}
		w.AppendRow(table.Row{e.ID, e.Platform, e.EventType, e.Status, e.Author, title, e.Timestamp.Format(time.RFC3339)})
	}
	w.AppendFooter(table.Row{"", "", "", "", "", "total", len(events)})

	return w.Render()
}
