package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/watchlog/internal/adapters/mq/queue"
	worker "github.com/okian/watchlog/internal/adapters/mq/worker"
	logging "github.com/okian/watchlog/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

func startLoop(capacity int) (*worker.Loop, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	l := worker.NewLoop(queue.NewInMemoryQueue(queue.WithCapacity(capacity)), worker.WithName("test"))
	l.Start(ctx)
	return l, cancel
}

func TestLoopOrdering(t *testing.T) {
	convey.Convey("Given a running loop", t, func() {
		l, cancel := startLoop(64)
		defer cancel()
		ctx := context.Background()

		convey.Convey("When tasks are posted from several goroutines", func() {
			var mu sync.Mutex
			var running, maxRunning int
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 4; j++ {
						_ = l.Submit(ctx, func(context.Context) {
							mu.Lock()
							running++
							if running > maxRunning {
								maxRunning = running
							}
							mu.Unlock()
							time.Sleep(time.Millisecond)
							mu.Lock()
							running--
							mu.Unlock()
						})
					}
				}()
			}
			wg.Wait()
			convey.So(l.Sync(ctx), convey.ShouldBeNil)

			convey.Convey("Then no two tasks ever run at once", func() {
				convey.So(maxRunning, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When tasks are posted in sequence", func() {
			var order []int
			for i := 0; i < 10; i++ {
				convey.So(l.Post(ctx, func(context.Context) { order = append(order, i) }), convey.ShouldBeNil)
			}
			convey.So(l.Sync(ctx), convey.ShouldBeNil)

			convey.Convey("Then they run in FIFO order", func() {
				convey.So(order, convey.ShouldResemble, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
			})
		})
	})
}

func TestLoopCall(t *testing.T) {
	convey.Convey("Given a running loop", t, func() {
		l, cancel := startLoop(8)
		defer cancel()
		ctx := context.Background()

		convey.Convey("When Call is used", func() {
			var inLoop bool
			err := l.Call(ctx, func(taskCtx context.Context) { inLoop = worker.InLoop(taskCtx) })

			convey.Convey("Then the task ran on the loop before Call returned", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(inLoop, convey.ShouldBeTrue)
				convey.So(worker.InLoop(ctx), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When Call is nested inside a loop task", func() {
			inner := false
			err := l.Call(ctx, func(taskCtx context.Context) {
				_ = l.Call(taskCtx, func(context.Context) { inner = true })
			})

			convey.Convey("Then it runs inline instead of deadlocking", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(inner, convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a task panics", func() {
			_ = l.Post(ctx, func(context.Context) { panic("boom") })
			ran := false
			err := l.Call(ctx, func(context.Context) { ran = true })

			convey.Convey("Then the loop keeps running", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(ran, convey.ShouldBeTrue)
			})
		})
	})
}

func TestLoopShutdown(t *testing.T) {
	convey.Convey("Given a running loop", t, func() {
		l, cancel := startLoop(1)
		defer cancel()
		ctx := context.Background()

		convey.Convey("When it is shut down", func() {
			shutdownCtx, done := context.WithTimeout(ctx, time.Second)
			defer done()
			err := l.Shutdown(shutdownCtx)

			convey.Convey("Then it stops and rejects new work", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(l.Post(ctx, func(context.Context) {}), convey.ShouldEqual, worker.ErrStopped)
				convey.So(worker.IsStopped(l.Call(ctx, func(context.Context) {})), convey.ShouldBeTrue)
				convey.So(l.Shutdown(shutdownCtx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When the queue is full", func() {
			block := make(chan struct{})
			_ = l.Post(ctx, func(context.Context) { <-block })
			time.Sleep(10 * time.Millisecond)
			var err error
			for i := 0; i < 5 && err == nil; i++ {
				err = l.Post(ctx, func(context.Context) {})
				time.Sleep(5 * time.Millisecond)
			}
			close(block)

			convey.Convey("Then Post reports it without blocking", func() {
				convey.So(err, convey.ShouldEqual, worker.ErrQueueFull)
			})
		})
	})
}
