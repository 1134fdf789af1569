package config_test

import (
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/core/config"
)

func setEnv(key, value string) {
	prev, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

var _ = Describe("Load", func() {
	BeforeEach(func() {
		// anything but development skips .env loading
		setEnv("RELAY_ENV", "test")
		for _, key := range []string{
			"INFERENCE_PROVIDER", "INFERENCE_URL", "INFERENCE_API_KEY",
			"GITHUB_WEBHOOK_SECRET", "GITLAB_WEBHOOK_SECRET", "SLACK_SIGNING_SECRET", "JIRA_WEBHOOK_SECRET",
			"SLACK_TIMESTAMP_TOLERANCE", "QUEUE_PUBLISH_TIMEOUT",
		} {
			if prev, had := os.LookupEnv(key); had {
				Expect(os.Unsetenv(key)).To(Succeed())
				DeferCleanup(os.Setenv, key, prev)
			}
		}
	})

	It("applies defaults", func() {
		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Port).To(Equal("8080"))
		Expect(cfg.Pipeline.RedisStream).To(Equal("ingestion_events"))
		Expect(cfg.Pipeline.PublishTimeout).To(Equal(2 * time.Second))
		Expect(cfg.Webhooks.SlackTolerance).To(Equal(300 * time.Second))
		Expect(cfg.Inference.Enabled()).To(BeFalse())
		Expect(cfg.OTel.ServiceName).To(Equal("ingest-server"))
	})

	It("accepts durations as Go strings or bare seconds", func() {
		setEnv("SLACK_TIMESTAMP_TOLERANCE", "120")
		setEnv("QUEUE_PUBLISH_TIMEOUT", "750ms")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Webhooks.SlackTolerance).To(Equal(120 * time.Second))
		Expect(cfg.Pipeline.PublishTimeout).To(Equal(750 * time.Millisecond))
	})

	It("reports platforms without a secret", func() {
		setEnv("GITHUB_WEBHOOK_SECRET", "gh")
		setEnv("SLACK_SIGNING_SECRET", "sl")

		cfg, err := config.Load(config.ServiceTypeServer)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Webhooks.UnsignedPlatforms()).To(Equal([]string{"gitlab", "jira"}))
	})

	DescribeTable("inference provider validation",
		func(provider, url, apiKey string, ok bool) {
			setEnv("INFERENCE_PROVIDER", provider)
			setEnv("INFERENCE_URL", url)
			setEnv("INFERENCE_API_KEY", apiKey)

			_, err := config.Load(config.ServiceTypeWorker)
			if ok {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(HaveOccurred())
			}
		},
		Entry("disabled", "", "", "", true),
		Entry("http with url", "http", "http://infer.local/decide", "", true),
		Entry("http without url", "http", "", "", false),
		Entry("openai with key", "openai", "", "sk-test", true),
		Entry("openai without key", "openai", "", "", false),
		Entry("unknown provider", "bedrock", "", "", false),
	)
})

var _ = Describe("LoadOTel", func() {
	BeforeEach(func() {
		for _, key := range []string{"OTEL_SERVICE_NAME", "OTEL_TRACES_SAMPLER_ARG"} {
			if prev, had := os.LookupEnv(key); had {
				Expect(os.Unsetenv(key)).To(Succeed())
				DeferCleanup(os.Setenv, key, prev)
			}
		}
		setEnv("RELAY_ENV", "staging")
	})

	It("uses the given service name and the deployment environment", func() {
		cfg := config.LoadOTel("ingestctl")
		Expect(cfg.ServiceName).To(Equal("ingestctl"))
		Expect(cfg.Environment).To(Equal("staging"))
		Expect(cfg.SampleRatio).To(Equal(1.0))
	})

	It("reads the sampler ratio", func() {
		setEnv("OTEL_TRACES_SAMPLER_ARG", "0.25")
		Expect(config.LoadOTel("ingestctl").SampleRatio).To(Equal(0.25))
	})
})
