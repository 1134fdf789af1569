package main

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/internal/http/dto"
	"basegraph.app/ingest/internal/mapper"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

var _ = Describe("signedHeaders", func() {
	body := []byte(`{"action":"opened"}`)

	DescribeTable("produces headers the matching mapper accepts",
		func(m mapper.EventMapper) {
			headers, err := signedHeaders(m.Platform(), "s3cret", "issues", body, time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Verify(context.Background(), mapper.Delivery{Header: headers, Body: body})).To(BeTrue())
		},
		Entry("github", mapper.NewGitHubEventMapper("s3cret")),
		Entry("gitlab", mapper.NewGitLabEventMapper("s3cret")),
		Entry("slack", mapper.NewSlackEventMapper("s3cret", signature.DefaultSlackTolerance)),
		Entry("jira", mapper.NewJiraEventMapper("s3cret", "")),
	)

	It("sets the native event header", func() {
		headers, err := signedHeaders(model.PlatformGitHub, "", "pull_request", body, time.Now())
		Expect(err).NotTo(HaveOccurred())
		Expect(headers.Get("X-GitHub-Event")).To(Equal("pull_request"))
		Expect(headers.Get(signature.GitHubHeader)).To(BeEmpty())
	})

	It("rejects unknown platforms", func() {
		_, err := signedHeaders("bitbucket", "x", "", body, time.Now())
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("renderEvents", func() {
	It("renders one row per event with a total", func() {
		out := renderEvents([]dto.EventResponse{
			{ID: "1", Platform: "github", EventType: "pr_merged", Status: "processed", Author: "octocat", Title: model.Str("Adopt pgx"), Timestamp: time.Unix(0, 0).UTC()},
			{ID: "2", Platform: "slack", EventType: "message_sent", Status: "queued", Author: "U1"},
		})
		Expect(out).To(ContainSubstring("Adopt pgx"))
		Expect(out).To(ContainSubstring("message_sent"))
		Expect(strings.ToUpper(out)).To(ContainSubstring("TOTAL"))
	})
})
