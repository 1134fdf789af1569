package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/core/db/sqlc"
	"basegraph.app/ingest/internal/model"
	"basegraph.app/ingest/internal/store"
)

func str(s string) *string { return &s }

var _ = Describe("IngestionEventStore", func() {
	var (
		conn   *fakeConn
		events store.IngestionEventStore
		ctx    context.Context
		at     time.Time
	)

	BeforeEach(func() {
		conn = &fakeConn{execTag: "UPDATE 1"}
		events = store.NewStores(sqlc.New(conn)).IngestionEvents()
		ctx = context.Background()
		at = time.Date(2024, 5, 1, 9, 30, 0, 123000, time.UTC)
	})

	storedRow := func(id string) []any {
		return []any{
			id, "github", "pr_merged", "processed",
			str("Add retries"), nil, str("https://github.com/acme/api/pull/7.diff"),
			[]byte(`{"repository":"acme/api","organisation":"acme"}`),
			[]byte(`{"name":"octocat","platform_id":"1"}`),
			[]string{"github", "pull_request", "closed"},
			[]byte(`{"action":"closed"}`),
			at,
			at.Add(time.Minute),
		}
	}

	Describe("Save", func() {
		It("inserts every column", func() {
			event := &model.IngestionEvent{
				EventID:    "101",
				Platform:   model.PlatformSlack,
				EventType:  model.EventTypeMessageSent,
				Status:     model.EventStatusQueued,
				Content:    str("hello"),
				Context:    model.EventContext{Channel: "C1"},
				Timestamp:  at,
				RawPayload: []byte(`{"event":{}}`),
			}

			Expect(events.Save(ctx, event)).To(Succeed())
			Expect(conn.execs).To(HaveLen(1))

			args := conn.execs[0].args
			Expect(conn.execs[0].sql).To(ContainSubstring("INSERT INTO ingestion_events"))
			Expect(args[0]).To(Equal("101"))
			Expect(args[1]).To(Equal("slack"))
			Expect(args[2]).To(Equal("message_sent"))
			Expect(args[3]).To(Equal("queued"))
			Expect(args[7]).To(MatchJSON(`{"channel":"C1"}`))
			Expect(args[8]).To(BeNil())
			Expect(args[9]).To(Equal([]string{}))
			Expect(args[10]).To(Equal([]byte(`{"event":{}}`)))
			Expect(args[11]).To(Equal(at))
		})

		It("refuses events outside the vocabulary", func() {
			err := events.Save(ctx, &model.IngestionEvent{EventID: "1", Platform: "bitbucket", EventType: model.EventTypePRCreated, Status: model.EventStatusQueued})
			Expect(errors.Is(err, model.ErrInvalidEvent)).To(BeTrue())
			Expect(conn.execs).To(BeEmpty())
		})

		It("wraps database errors", func() {
			conn.execErr = errors.New("connection reset")
			err := events.Save(ctx, &model.IngestionEvent{
				EventID: "1", Platform: model.PlatformJira, EventType: model.EventTypeIssueCreated, Status: model.EventStatusQueued,
			})
			Expect(err).To(MatchError(ContainSubstring("connection reset")))
		})
	})

	Describe("GetByID", func() {
		It("maps the row back into an event", func() {
			conn.rows = [][]any{storedRow("55")}

			event, err := events.GetByID(ctx, "55")
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventID).To(Equal("55"))
			Expect(event.EventType).To(Equal(model.EventTypePRMerged))
			Expect(event.Status).To(Equal(model.EventStatusProcessed))
			Expect(*event.Title).To(Equal("Add retries"))
			Expect(event.Description).To(BeNil())
			Expect(event.Context).To(Equal(model.EventContext{Repository: "acme/api", Organisation: "acme"}))
			Expect(*event.Author).To(Equal(model.EventAuthor{Name: "octocat", PlatformID: "1"}))
			Expect(event.Tags).To(Equal([]string{"github", "pull_request", "closed"}))
			Expect(event.RawPayload).To(Equal([]byte(`{"action":"closed"}`)))
			Expect(event.Timestamp).To(Equal(at))
		})

		It("returns ErrNotFound for a missing id", func() {
			_, err := events.GetByID(ctx, "nope")
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("leaves the author absent when the column is null", func() {
			row := storedRow("56")
			row[8] = nil
			conn.rows = [][]any{row}

			event, err := events.GetByID(ctx, "56")
			Expect(err).NotTo(HaveOccurred())
			Expect(event.Author).To(BeNil())
		})
	})

	Describe("UpdateStatus", func() {
		It("writes the new status", func() {
			Expect(events.UpdateStatus(ctx, "55", model.EventStatusFailed)).To(Succeed())
			Expect(conn.execs[0].args).To(Equal([]any{"55", "failed"}))
		})

		It("returns ErrNotFound when no row matched", func() {
			conn.execTag = "UPDATE 0"
			Expect(events.UpdateStatus(ctx, "55", model.EventStatusFailed)).To(MatchError(store.ErrNotFound))
		})

		It("rejects statuses outside the vocabulary", func() {
			Expect(events.UpdateStatus(ctx, "55", "done")).To(MatchError(model.ErrInvalidEvent))
			Expect(conn.execs).To(BeEmpty())
		})
	})

	Describe("TransitionStatus", func() {
		It("only matches rows still at the expected status", func() {
			moved, err := events.TransitionStatus(ctx, "55", model.EventStatusReceived, model.EventStatusQueued)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeTrue())
			Expect(conn.execs[0].sql).To(ContainSubstring("WHERE id = $2 AND status = $3"))
			Expect(conn.execs[0].args).To(Equal([]any{"queued", "55", "received"}))
		})

		It("reports false when the event already moved on", func() {
			conn.execTag = "UPDATE 0"
			moved, err := events.TransitionStatus(ctx, "55", model.EventStatusReceived, model.EventStatusQueued)
			Expect(err).NotTo(HaveOccurred())
			Expect(moved).To(BeFalse())
		})

		It("rejects statuses outside the vocabulary", func() {
			_, err := events.TransitionStatus(ctx, "55", "pending", model.EventStatusQueued)
			Expect(err).To(MatchError(model.ErrInvalidEvent))
			Expect(conn.execs).To(BeEmpty())
		})
	})

	Describe("listing", func() {
		It("lists a platform newest first with the limit applied", func() {
			conn.rows = [][]any{storedRow("2"), storedRow("1")}

			list, err := events.ListByPlatform(ctx, model.PlatformGitHub, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(2))
			Expect(list[0].EventID).To(Equal("2"))
			Expect(conn.queries[0].sql).To(ContainSubstring("ORDER BY created_at DESC"))
			Expect(conn.queries[0].args).To(Equal([]any{"github", int32(10)}))
		})

		It("lists a status oldest first before a cutoff", func() {
			conn.rows = [][]any{storedRow("1")}
			cutoff := at.Add(time.Hour)

			list, err := events.ListByStatus(ctx, model.EventStatusReceived, cutoff, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(list).To(HaveLen(1))
			Expect(conn.queries[0].sql).To(ContainSubstring("ORDER BY created_at ASC"))
			Expect(conn.queries[0].args).To(Equal([]any{"received", cutoff, int32(5)}))
		})

		It("wraps query errors", func() {
			conn.queryErr = pgx.ErrTxClosed
			_, err := events.ListByPlatform(ctx, model.PlatformJira, 5)
			Expect(errors.Is(err, pgx.ErrTxClosed)).To(BeTrue())
		})
	})
})
