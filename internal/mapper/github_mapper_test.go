package mapper_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/internal/mapper"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/signature"
)

const githubRepo = `"repository":{"full_name":"acme/api","html_url":"https://github.com/acme/api","owner":{"login":"acme"}},
	"sender":{"login":"octocat","id":583231,"avatar_url":"https://avatars.example/u/583231"}`

var _ = Describe("GitHubEventMapper", func() {
	var (
		m   *mapper.GitHubEventMapper
		ctx context.Context
	)

	BeforeEach(func() {
		m = mapper.NewGitHubEventMapper("")
		ctx = context.Background()
	})

	mapEvent := func(name, body string) (*model.IngestionEvent, error) {
		return m.Map(ctx, delivery(body, map[string]string{"X-GitHub-Event": name}))
	}

	Describe("Map", func() {
		DescribeTable("pull_request actions",
			func(action string, merged bool, expected model.EventType) {
				body := `{"action":"` + action + `","pull_request":{"title":"Add retries","body":"Retries on 5xx","diff_url":"https://github.com/acme/api/pull/7.diff","merged":` +
					map[bool]string{true: "true", false: "false"}[merged] + `},` + githubRepo + `}`

				event, err := mapEvent("pull_request", body)
				Expect(err).NotTo(HaveOccurred())
				Expect(event.EventType).To(Equal(expected))
				Expect(*event.Title).To(Equal("Add retries"))
				Expect(*event.Description).To(Equal("Retries on 5xx"))
				Expect(*event.Content).To(Equal("https://github.com/acme/api/pull/7.diff"))
			},
			Entry("opened", "opened", false, model.EventTypePRCreated),
			Entry("synchronize", "synchronize", false, model.EventTypePRUpdated),
			Entry("reopened", "reopened", false, model.EventTypePRUpdated),
			Entry("closed and merged", "closed", true, model.EventTypePRMerged),
			Entry("closed without merge", "closed", false, model.EventTypePRClosed),
		)

		It("treats closed with no merged flag as pr_closed", func() {
			event, err := mapEvent("pull_request", `{"action":"closed","pull_request":{"title":"x"},`+githubRepo+`}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypePRClosed))
		})

		It("normalizes context, author and tags", func() {
			event, err := mapEvent("pull_request", `{"action":"opened","pull_request":{"title":"x"},`+githubRepo+`}`)
			Expect(err).NotTo(HaveOccurred())

			Expect(event.Platform).To(Equal(model.PlatformGitHub))
			Expect(event.Context).To(Equal(model.EventContext{
				Repository:   "acme/api",
				Organisation: "acme",
				URL:          "https://github.com/acme/api",
			}))
			Expect(*event.Author).To(Equal(model.EventAuthor{
				Name:       "octocat",
				Username:   "octocat",
				PlatformID: "583231",
				AvatarURL:  "https://avatars.example/u/583231",
			}))
			Expect(event.Tags).To(Equal([]string{"github", "pull_request", "opened"}))
			Expect(event.RawPayload).NotTo(BeEmpty())
		})

		It("falls back to unknown when the sender is missing", func() {
			event, err := mapEvent("issues", `{"action":"opened","issue":{"title":"Crash"}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.Author.Name).To(Equal(model.UnknownAuthor))
			Expect(event.Author.PlatformID).To(BeEmpty())
		})

		It("joins push commit messages with newlines", func() {
			body := `{"ref":"refs/heads/main","commits":[{"message":"fix: a"},{"message":"feat: b"}],` +
				`"repository":{"full_name":"acme/api","html_url":"https://github.com/acme/api","owner":{"login":"acme"}},"sender":{"login":"octocat","id":1}}`

			event, err := mapEvent("push", body)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeCommitPushed))
			Expect(*event.Title).To(Equal("Push to refs/heads/main"))
			Expect(*event.Description).To(Equal("fix: a\nfeat: b"))
			Expect(event.Context.Repository).To(Equal("acme/api"))
			Expect(event.Tags).To(Equal([]string{"github", "push"}))
		})

		DescribeTable("issues actions",
			func(action string, expected model.EventType) {
				event, err := mapEvent("issues", `{"action":"`+action+`","issue":{"title":"Crash on save","body":"Steps..."},`+githubRepo+`}`)
				Expect(err).NotTo(HaveOccurred())
				Expect(event.EventType).To(Equal(expected))
				Expect(*event.Title).To(Equal("Crash on save"))
				Expect(*event.Description).To(Equal("Steps..."))
				Expect(event.Content).To(BeNil())
			},
			Entry("opened", "opened", model.EventTypeIssueCreated),
			Entry("edited", "edited", model.EventTypeIssueUpdated),
			Entry("closed", "closed", model.EventTypeIssueClosed),
		)

		It("maps issue comments with the comment body as content", func() {
			event, err := mapEvent("issue_comment", `{"action":"created","issue":{"title":"Crash"},"comment":{"body":"Repro attached"},`+githubRepo+`}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeIssueCommented))
			Expect(*event.Content).To(Equal("Repro attached"))
		})

		It("maps submitted reviews", func() {
			body := `{"action":"submitted","review":{"body":"LGTM","html_url":"https://github.com/acme/api/pull/7#r1"},"pull_request":{"title":"Add retries"},` + githubRepo + `}`
			event, err := mapEvent("pull_request_review", body)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeReviewSubmitted))
			Expect(*event.Title).To(Equal("Add retries"))
			Expect(*event.Description).To(Equal("LGTM"))
			Expect(*event.Content).To(Equal("https://github.com/acme/api/pull/7#r1"))
		})

		It("maps created review comments", func() {
			body := `{"action":"created","comment":{"body":"nit","html_url":"https://github.com/acme/api/pull/7#c1"},"pull_request":{"title":"Add retries"},` + githubRepo + `}`
			event, err := mapEvent("pull_request_review_comment", body)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeReviewComment))
			Expect(*event.Description).To(Equal("nit"))
		})

		It("maps branch creation and deletion but not tags", func() {
			event, err := mapEvent("create", `{"ref":"feature/x","ref_type":"branch",`+githubRepo+`}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeBranchCreated))
			Expect(*event.Title).To(Equal("feature/x"))

			event, err = mapEvent("delete", `{"ref":"feature/x","ref_type":"branch",`+githubRepo+`}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventType).To(Equal(model.EventTypeBranchDeleted))

			_, err = mapEvent("create", `{"ref":"v1.0.0","ref_type":"tag",`+githubRepo+`}`)
			Expect(errors.Is(err, mapper.ErrEventNotTracked)).To(BeTrue())
		})

		DescribeTable("untracked combinations yield no event",
			func(name, body string) {
				event, err := mapEvent(name, body)
				Expect(event).To(BeNil())
				Expect(errors.Is(err, mapper.ErrEventNotTracked)).To(BeTrue())
			},
			Entry("labeled pull request", "pull_request", `{"action":"labeled","pull_request":{}}`),
			Entry("dismissed review", "pull_request_review", `{"action":"dismissed"}`),
			Entry("deleted issue comment", "issue_comment", `{"action":"deleted"}`),
			Entry("assigned issue", "issues", `{"action":"assigned"}`),
			Entry("star event", "star", `{"action":"created"}`),
			Entry("missing event header", "", `{}`),
		)

		It("gives the same decision twice for the same delivery", func() {
			body := `{"action":"closed","pull_request":{"title":"x","merged":true},` + githubRepo + `}`
			first, err := mapEvent("pull_request", body)
			Expect(err).NotTo(HaveOccurred())
			second, err := mapEvent("pull_request", body)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.EventType).To(Equal(first.EventType))
			Expect(second.Title).To(Equal(first.Title))
			Expect(second.Context).To(Equal(first.Context))
			Expect(second.EventID).NotTo(Equal(first.EventID))
		})

		It("fails on payloads that do not match the event shape", func() {
			_, err := mapEvent("pull_request", `{"action":"opened","pull_request":{"merged":"yes"}}`)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, mapper.ErrEventNotTracked)).To(BeFalse())
		})
	})

	Describe("Verify", func() {
		body := []byte(`{"action":"opened"}`)

		It("accepts a valid signature", func() {
			m = mapper.NewGitHubEventMapper("s3cret")
			d := delivery(string(body), map[string]string{signature.GitHubHeader: signature.SignGitHub("s3cret", body)})
			Expect(m.Verify(ctx, d)).To(BeTrue())
		})

		It("rejects a missing signature", func() {
			m = mapper.NewGitHubEventMapper("s3cret")
			Expect(m.Verify(ctx, delivery(string(body), nil))).To(BeFalse())
		})

		It("accepts anything and warns when no secret is configured", func() {
			Expect(m.Verify(ctx, delivery(string(body), nil))).To(BeTrue())
			Expect(logBuf.String()).To(ContainSubstring("webhook secret not configured"))
			Expect(logBuf.String()).To(ContainSubstring(`"platform":"github"`))
		})
	})
})
