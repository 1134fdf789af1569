package dispatch_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/ingest/internal/dispatch"
)

type ctxKey struct{}

var _ = Describe("Pool", func() {
	It("runs submitted tasks", func() {
		pool := dispatch.NewPool(4)
		var ran atomic.Int32

		for i := 0; i < 4; i++ {
			Expect(pool.Submit(context.Background(), "count", func(context.Context) {
				ran.Add(1)
			})).To(BeTrue())
		}

		Expect(pool.Shutdown(context.Background())).To(Succeed())
		Expect(ran.Load()).To(Equal(int32(4)))
	})

	It("detaches tasks from the submitter's cancellation but keeps its values", func() {
		pool := dispatch.NewPool(1)
		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "req-1"))

		result := make(chan string, 1)
		release := make(chan struct{})
		Expect(pool.Submit(ctx, "detached", func(taskCtx context.Context) {
			<-release
			if taskCtx.Err() != nil {
				result <- "cancelled"
				return
			}
			result <- taskCtx.Value(ctxKey{}).(string)
		})).To(BeTrue())

		cancel()
		close(release)
		Eventually(result).Should(Receive(Equal("req-1")))
		Expect(pool.Shutdown(context.Background())).To(Succeed())
	})

	It("rejects work when every slot is busy instead of blocking", func() {
		pool := dispatch.NewPool(2)
		block := make(chan struct{})
		var started sync.WaitGroup
		started.Add(2)

		for _, name := range []string{"first", "second"} {
			Expect(pool.Submit(context.Background(), name, func(context.Context) {
				started.Done()
				<-block
			})).To(BeTrue())
		}
		started.Wait()

		Expect(pool.Submit(context.Background(), "overflow", func(context.Context) {})).To(BeFalse())

		close(block)
		Expect(pool.Shutdown(context.Background())).To(Succeed())
	})

	It("frees a slot once a task finishes", func() {
		pool := dispatch.NewPool(1)
		done := make(chan struct{})

		Expect(pool.Submit(context.Background(), "quick", func(context.Context) { close(done) })).To(BeTrue())
		Eventually(done).Should(BeClosed())
		Eventually(func() bool {
			return pool.Submit(context.Background(), "next", func(context.Context) {})
		}).Should(BeTrue())

		Expect(pool.Shutdown(context.Background())).To(Succeed())
	})

	It("survives panicking tasks", func() {
		pool := dispatch.NewPool(2)
		var ran atomic.Bool

		Expect(pool.Submit(context.Background(), "panics", func(context.Context) {
			panic("boom")
		})).To(BeTrue())
		Expect(pool.Submit(context.Background(), "after", func(context.Context) {
			ran.Store(true)
		})).To(BeTrue())

		Expect(pool.Shutdown(context.Background())).To(Succeed())
		Expect(ran.Load()).To(BeTrue())
	})

	It("refuses work after shutdown", func() {
		pool := dispatch.NewPool(1)
		Expect(pool.Shutdown(context.Background())).To(Succeed())
		Expect(pool.Submit(context.Background(), "late", func(context.Context) {})).To(BeFalse())
		Expect(pool.Shutdown(context.Background())).To(Succeed())
	})

	It("gives up waiting when the shutdown context expires", func() {
		pool := dispatch.NewPool(1)
		block := make(chan struct{})
		DeferCleanup(func() { close(block) })

		Expect(pool.Submit(context.Background(), "stuck", func(context.Context) { <-block })).To(BeTrue())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		Expect(pool.Shutdown(ctx)).To(MatchError(context.DeadlineExceeded))
	})
})
