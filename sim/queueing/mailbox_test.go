package queueing

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahc/sim/hooking"
)

var _ = Describe("Mailbox", func() {
	var (
		mb *Mailbox[int]
	)

	BeforeEach(func() {
		mb = NewMailbox[int]("Mailbox")
	})

	It("should have a name", func() {
		Expect(mb.Name()).To(Equal("Mailbox"))
	})

	It("should pop in push order", func() {
		for i := 0; i < 5; i++ {
			mb.Push(i)
		}

		Expect(mb.Size()).To(Equal(5))
		for i := 0; i < 5; i++ {
			e, ok := mb.TryPop()
			Expect(ok).To(BeTrue())
			Expect(e).To(Equal(i))
		}

		_, ok := mb.TryPop()
		Expect(ok).To(BeFalse())
	})

	It("should block until an element arrives", func() {
		got := make(chan int)
		go func() {
			e, _ := mb.Pop(context.Background())
			got <- e
		}()

		Consistently(got, 50*time.Millisecond).ShouldNot(Receive())

		mb.Push(7)

		Eventually(got).Should(Receive(Equal(7)))
	})

	It("should return promptly when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		errs := make(chan error)
		go func() {
			_, err := mb.Pop(ctx)
			errs <- err
		}()

		cancel()

		Eventually(errs).Should(Receive(MatchError(context.Canceled)))
	})

	It("should feed several consumers without losing elements", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var lock sync.Mutex
		seen := make(map[int]bool)
		for w := 0; w < 4; w++ {
			go func() {
				for {
					e, err := mb.Pop(ctx)
					if err != nil {
						return
					}
					lock.Lock()
					seen[e] = true
					lock.Unlock()
				}
			}()
		}

		for i := 0; i < 1000; i++ {
			mb.Push(i)
		}

		Eventually(func() int {
			lock.Lock()
			defer lock.Unlock()
			return len(seen)
		}).Should(Equal(1000))
	})

	It("should invoke hooks on push and pop", func() {
		var positions []*hooking.HookPos
		mb.AcceptHook(hooking.NewHookFunc(func(ctx hooking.HookCtx) {
			positions = append(positions, ctx.Pos)
		}))

		mb.Push(1)
		mb.TryPop()

		Expect(positions).To(Equal([]*hooking.HookPos{
			HookPosMailboxPush, HookPosMailboxPop,
		}))
	})
})
