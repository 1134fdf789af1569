package signature_test

import (
	"math"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/internal/signature"
)

var _ = Describe("GitHub", func() {
	const secret = "gh-secret"
	body := []byte(`{"action":"opened","issue":{"title":"Crash on save"}}`)

	It("accepts a correct signature over the exact body", func() {
		Expect(signature.GitHub(secret, body, signature.SignGitHub(secret, body))).To(BeTrue())
	})

	It("rejects when any single body byte changes", func() {
		header := signature.SignGitHub(secret, body)
		for i := range body {
			tampered := append([]byte(nil), body...)
			tampered[i] ^= 0x01
			Expect(signature.GitHub(secret, tampered, header)).To(BeFalse(), "byte %d", i)
		}
	})

	It("rejects when any single signature character changes", func() {
		header := signature.SignGitHub(secret, body)
		for i := len("sha256="); i < len(header); i++ {
			b := []byte(header)
			if b[i] == '0' {
				b[i] = '1'
			} else {
				b[i] = '0'
			}
			Expect(signature.GitHub(secret, body, string(b))).To(BeFalse(), "char %d", i)
		}
	})

	DescribeTable("rejects missing or malformed headers",
		func(header string) {
			Expect(signature.GitHub(secret, body, header)).To(BeFalse())
		},
		Entry("empty", ""),
		Entry("no prefix", signature.SignGitHub(secret, body)[len("sha256="):]),
		Entry("sha1 prefix", "sha1=abcdef"),
		Entry("non hex", "sha256=zzzz"),
	)

	It("rejects a signature made with another secret", func() {
		Expect(signature.GitHub(secret, body, signature.SignGitHub("other", body))).To(BeFalse())
	})
})

var _ = Describe("GitLab", func() {
	It("requires an exact token match", func() {
		Expect(signature.GitLab("tok", "tok")).To(BeTrue())
		Expect(signature.GitLab("tok", "tok ")).To(BeFalse())
		Expect(signature.GitLab("tok", "TOK")).To(BeFalse())
		Expect(signature.GitLab("tok", "")).To(BeFalse())
	})
})

var _ = Describe("Slack", func() {
	const secret = "slack-signing"
	body := []byte(`{"type":"event_callback","event":{"type":"message","text":"hi"}}`)
	now := time.Unix(1_700_000_000, 0)

	sign := func(at time.Time) (string, string) {
		ts := strconv.FormatInt(at.Unix(), 10)
		return ts, signature.SignSlack(secret, ts, body)
	}

	It("accepts a fresh, correctly signed request", func() {
		ts, sig := sign(now.Add(-10 * time.Second))
		Expect(signature.Slack(secret, body, ts, sig, now, 300*time.Second)).To(BeTrue())
	})

	It("accepts the edge of the window", func() {
		ts, sig := sign(now.Add(-300 * time.Second))
		Expect(signature.Slack(secret, body, ts, sig, now, 300*time.Second)).To(BeTrue())
	})

	DescribeTable("rejects timestamps outside the window even when the signature is valid",
		func(offset time.Duration) {
			ts, sig := sign(now.Add(offset))
			Expect(signature.Slack(secret, body, ts, sig, now, 300*time.Second)).To(BeFalse())
		},
		Entry("just stale", -301*time.Second),
		Entry("an hour old", -time.Hour),
		Entry("a day old", -24*time.Hour),
		Entry("far future", 10*time.Minute),
	)

	DescribeTable("rejects correctly signed timestamps centuries away from now",
		func(ts string) {
			sig := signature.SignSlack(secret, ts, body)
			Expect(signature.Slack(secret, body, ts, sig, now, 300*time.Second)).To(BeFalse())
		},
		Entry("far past", strconv.FormatInt(now.Unix()-10_000_000_000, 10)),
		Entry("far future", strconv.FormatInt(now.Unix()+10_000_000_000, 10)),
		Entry("min int64", strconv.FormatInt(math.MinInt64, 10)),
		Entry("max int64", strconv.FormatInt(math.MaxInt64, 10)),
	)

	It("defaults the tolerance to five minutes", func() {
		ts, sig := sign(now.Add(-299 * time.Second))
		Expect(signature.Slack(secret, body, ts, sig, now, 0)).To(BeTrue())
		ts, sig = sign(now.Add(-301 * time.Second))
		Expect(signature.Slack(secret, body, ts, sig, now, 0)).To(BeFalse())
	})

	It("rejects a missing or non-numeric timestamp", func() {
		_, sig := sign(now)
		Expect(signature.Slack(secret, body, "", sig, now, 0)).To(BeFalse())
		Expect(signature.Slack(secret, body, "yesterday", sig, now, 0)).To(BeFalse())
	})

	It("rejects a tampered body", func() {
		ts, sig := sign(now)
		Expect(signature.Slack(secret, append(body, ' '), ts, sig, now, 0)).To(BeFalse())
	})

	It("produces v0-prefixed signatures", func() {
		_, sig := sign(now)
		Expect(sig).To(HavePrefix("v0="))
		Expect(sig).To(HaveLen(3 + 64))
	})
})

var _ = Describe("Jira", func() {
	It("prefers the query parameter over the header", func() {
		Expect(signature.JiraSecret("from-query", "from-header")).To(Equal("from-query"))
		Expect(signature.JiraSecret("", "from-header")).To(Equal("from-header"))
	})

	It("requires an exact match", func() {
		Expect(signature.Jira("s3cret", "s3cret")).To(BeTrue())
		Expect(signature.Jira("s3cret", "nope")).To(BeFalse())
		Expect(signature.Jira("s3cret", "")).To(BeFalse())
	})
})
