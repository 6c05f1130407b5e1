package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	gomock "go.uber.org/mock/gomock"

	"github.com/sarchlab/ahc/sim/hooking"
)

var kindTest = RegisterEventKind("Test")
var kindUnknown = RegisterEventKind("Unknown")

type testComp struct {
	*ComponentBase

	lock    sync.Mutex
	handled []Event
	onEvent func(e Event) error
}

func newTestComp(r *Registry, name string, instance int) *testComp {
	return newTestCompWithWorkers(r, name, instance, 1)
}

func newTestCompWithWorkers(
	r *Registry,
	name string,
	instance int,
	numWorkers int,
) *testComp {
	c := &testComp{}

	base, err := MakeBuilder().
		WithRegistry(r).
		WithNumWorkers(numWorkers).
		Build(name, instance, c)
	Expect(err).NotTo(HaveOccurred())

	c.ComponentBase = base

	return c
}

func (c *testComp) Handle(e Event) error {
	c.lock.Lock()
	c.handled = append(c.handled, e)
	c.lock.Unlock()

	if c.onEvent != nil {
		return c.onEvent(e)
	}

	switch e.Kind {
	case KindInit, kindTest, KindMsgFromTop, KindMsgFromBottom,
		KindMsgFromPeer, KindTimer:
		return nil
	default:
		return UnhandledEvent(e.Kind)
	}
}

func (c *testComp) Handled() []Event {
	c.lock.Lock()
	defer c.lock.Unlock()

	events := make([]Event, len(c.handled))
	copy(events, c.handled)

	return events
}

func (c *testComp) HandledOfKind(kind EventKind) []Event {
	var events []Event

	for _, e := range c.Handled() {
		if e.Kind == kind {
			events = append(events, e)
		}
	}

	return events
}

func payloads(events []Event) []any {
	ps := make([]any, 0, len(events))
	for _, e := range events {
		ps = append(ps, e.Payload)
	}

	return ps
}

var _ = Describe("ComponentBase", func() {
	var (
		mockCtrl *gomock.Controller
		registry *Registry
		ctx      context.Context
		cancel   context.CancelFunc
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		registry = NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		registry.Stop()
		mockCtrl.Finish()
	})

	It("should have a key and a name", func() {
		c := newTestComp(registry, "Node", 3)

		Expect(c.Key()).To(Equal(Key{Name: "Node", Instance: 3}))
		Expect(c.Name()).To(Equal("Node[3]"))
	})

	It("should handle INIT only after the registry starts", func() {
		c := newTestComp(registry, "Node", 0)

		Consistently(c.Handled, 50*time.Millisecond).Should(BeEmpty())

		registry.Start(ctx)

		Eventually(c.Handled).Should(HaveLen(1))
		Expect(c.Handled()[0].Kind).To(Equal(KindInit))
	})

	It("should handle INIT before any other event", func() {
		c := newTestComp(registry, "Node", 0)
		c.TriggerEvent(c.NewEvent(kindTest, 1))

		registry.Start(ctx)

		Eventually(c.Handled).Should(HaveLen(2))
		Expect(c.Handled()[0].Kind).To(Equal(KindInit))
		Expect(c.Handled()[1].Kind).To(Equal(kindTest))
	})

	It("should handle events in trigger order with one worker", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		expected := make([]any, 0, 100)
		for i := 1; i <= 100; i++ {
			c.TriggerEvent(c.NewEvent(kindTest, i))
			expected = append(expected, i)
		}

		Eventually(func() []any {
			return payloads(c.HandledOfKind(kindTest))
		}).Should(Equal(expected))
	})

	It("should assign event IDs", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		c.TriggerEvent(c.NewEvent(kindTest, nil))

		Eventually(func() []Event { return c.HandledOfKind(kindTest) }).
			Should(HaveLen(1))
		Expect(c.HandledOfKind(kindTest)[0].ID).NotTo(BeEmpty())
	})

	It("should handle every event with several workers", func() {
		c := newTestCompWithWorkers(registry, "Node", 0, 4)
		registry.Start(ctx)

		for i := 0; i < 200; i++ {
			c.TriggerEvent(c.NewEvent(kindTest, i))
		}

		Eventually(func() int { return len(c.HandledOfKind(kindTest)) }).
			Should(Equal(200))
	})

	Context("when connected", func() {
		var (
			top, a, b *testComp
		)

		BeforeEach(func() {
			top = newTestComp(registry, "Top", 0)
			a = newTestComp(registry, "Bottom", 0)
			b = newTestComp(registry, "Bottom", 1)

			Expect(top.Connect(Down, a.Key())).To(Succeed())
			Expect(top.Connect(Down, b.Key())).To(Succeed())
			Expect(a.Connect(Up, top.Key())).To(Succeed())
			Expect(a.Connect(Peer, b.Key())).To(Succeed())

			registry.Start(ctx)
		})

		It("should fan out down to every peer", func() {
			top.SendDown(top.NewEvent(KindMsgFromTop, "hello"))

			Eventually(func() int { return len(a.HandledOfKind(KindMsgFromTop)) }).
				Should(Equal(1))
			Eventually(func() int { return len(b.HandledOfKind(KindMsgFromTop)) }).
				Should(Equal(1))
			Expect(a.HandledOfKind(KindMsgFromTop)[0].Source).To(Equal(top.Key()))
		})

		It("should send up and to peers", func() {
			a.SendUp(a.NewEvent(KindMsgFromBottom, "up"))
			a.SendPeer(a.NewEvent(KindMsgFromPeer, "peer"))

			Eventually(func() []any {
				return payloads(top.HandledOfKind(KindMsgFromBottom))
			}).Should(Equal([]any{"up"}))
			Eventually(func() []any {
				return payloads(b.HandledOfKind(KindMsgFromPeer))
			}).Should(Equal([]any{"peer"}))
		})

		It("should treat a direction without peers as a no-op", func() {
			Expect(func() {
				top.SendUp(top.NewEvent(KindMsgFromBottom, nil))
				b.SendPeer(b.NewEvent(KindMsgFromPeer, nil))
			}).NotTo(Panic())
		})

		It("should send to a single downward peer", func() {
			Expect(top.SendDownTo(b.Key(), top.NewEvent(KindMsgFromTop, 1))).
				To(BeTrue())
			Expect(top.SendDownTo(Key{Name: "Other", Instance: 0},
				top.NewEvent(KindMsgFromTop, 2))).To(BeFalse())

			Eventually(func() []any {
				return payloads(b.HandledOfKind(KindMsgFromTop))
			}).Should(Equal([]any{1}))
			Consistently(func() []Event {
				return a.HandledOfKind(KindMsgFromTop)
			}, 50*time.Millisecond).Should(BeEmpty())
		})

		It("should stop delivering after disconnect", func() {
			Expect(top.Disconnect(Down, a.Key())).To(BeTrue())
			Expect(top.Connectors(Down)).To(Equal([]Key{b.Key()}))

			top.SendDown(top.NewEvent(KindMsgFromTop, nil))

			Eventually(func() int { return len(b.HandledOfKind(KindMsgFromTop)) }).
				Should(Equal(1))
			Expect(a.HandledOfKind(KindMsgFromTop)).To(BeEmpty())
		})
	})

	Context("with faults", func() {
		var (
			hook        *MockHook
			lock        sync.Mutex
			diagnostics []Diagnostic
		)

		BeforeEach(func() {
			diagnostics = nil
			hook = NewMockHook(mockCtrl)
			hook.EXPECT().Func(gomock.Any()).AnyTimes().
				Do(func(ctx hooking.HookCtx) {
					if ctx.Pos != HookPosDiagnostic {
						return
					}

					lock.Lock()
					diagnostics = append(diagnostics, ctx.Detail.(Diagnostic))
					lock.Unlock()
				})
			registry.AcceptHook(hook)
		})

		codes := func() []string {
			lock.Lock()
			defer lock.Unlock()

			var cs []string
			for _, d := range diagnostics {
				cs = append(cs, d.Code)
			}

			return cs
		}

		It("should report initialization", func() {
			newTestComp(registry, "Node", 0)
			registry.Start(ctx)

			Eventually(codes).Should(ContainElement(CodeComponentInitialized))
		})

		It("should drop events without handler and continue", func() {
			c := newTestComp(registry, "Node", 0)
			registry.Start(ctx)

			c.TriggerEvent(c.NewEvent(kindUnknown, nil))
			c.TriggerEvent(c.NewEvent(kindTest, "after"))

			Eventually(codes).Should(ContainElement(CodeHandlerNotImplemented))
			Eventually(func() []any {
				return payloads(c.HandledOfKind(kindTest))
			}).Should(Equal([]any{"after"}))
		})

		It("should isolate a panicking handler", func() {
			c := newTestComp(registry, "Node", 0)
			c.onEvent = func(e Event) error {
				if e.Payload == "boom" {
					panic("boom")
				}

				return nil
			}
			registry.Start(ctx)

			c.TriggerEvent(c.NewEvent(kindTest, "boom"))
			c.TriggerEvent(c.NewEvent(kindTest, "after"))

			Eventually(codes).Should(ContainElement(CodeHandlerFault))
			Eventually(func() []any {
				return payloads(c.HandledOfKind(kindTest))
			}).Should(Equal([]any{"boom", "after"}))
		})

		It("should report handler errors", func() {
			c := newTestComp(registry, "Node", 0)
			c.onEvent = func(e Event) error {
				if e.Kind == kindTest {
					return errors.New("failed")
				}

				return nil
			}
			registry.Start(ctx)

			c.TriggerEvent(c.NewEvent(kindTest, nil))

			Eventually(codes).Should(ContainElement(CodeHandlerFault))
		})
	})

	It("should stop promptly while waiting for events", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)
		Eventually(c.Handled).Should(HaveLen(1))

		c.Stop()

		Eventually(c.Done()).Should(BeClosed())
		Expect(c.Terminated()).To(BeTrue())
	})

	It("should stop when the context is cancelled", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		cancel()

		Eventually(c.Done()).Should(BeClosed())
	})

	It("should close done when stopped before start", func() {
		c := newTestComp(registry, "Node", 0)

		c.Stop()

		Expect(c.Done()).To(BeClosed())
	})

	It("should trigger scheduled events", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		c.ScheduleAfter(10*time.Millisecond, c.NewEvent(KindTimer, "tick"))

		Eventually(func() []any {
			return payloads(c.HandledOfKind(KindTimer))
		}).Should(Equal([]any{"tick"}))
	})

	It("should discard scheduled events after stop", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		c.ScheduleAfter(30*time.Millisecond, c.NewEvent(KindTimer, "tick"))
		c.Stop()

		Consistently(func() []Event {
			return c.HandledOfKind(KindTimer)
		}, 100*time.Millisecond).Should(BeEmpty())
	})

	It("should refuse extra workers after start", func() {
		c := newTestComp(registry, "Node", 0)
		registry.Start(ctx)

		Expect(func() { c.AddWorker(func(context.Context) {}) }).To(Panic())
	})

	It("should run extra workers until stop", func() {
		c := newTestComp(registry, "Node", 0)
		exited := make(chan struct{})
		c.AddWorker(func(ctx context.Context) {
			<-ctx.Done()
			close(exited)
		})

		registry.Start(ctx)
		c.Stop()

		Eventually(exited).Should(BeClosed())
		Eventually(c.Done()).Should(BeClosed())
	})
})

var _ = Describe("Builder", func() {
	var registry *Registry

	BeforeEach(func() {
		registry = NewRegistry()
	})

	It("should reject duplicated keys", func() {
		newTestComp(registry, "Node", 0)

		_, err := MakeBuilder().WithRegistry(registry).Build("Node", 0, &testComp{})

		var cfgErr *ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
		Expect(cfgErr.Component).To(Equal("Node[0]"))
	})

	It("should reject invalid names", func() {
		_, err := MakeBuilder().WithRegistry(registry).Build("node", 0, &testComp{})

		var cfgErr *ConfigurationError
		Expect(errors.As(err, &cfgErr)).To(BeTrue())
	})

	It("should reject a missing registry", func() {
		_, err := MakeBuilder().Build("Node", 0, &testComp{})

		Expect(err).To(HaveOccurred())
	})

	It("should reject a non-positive number of workers", func() {
		_, err := MakeBuilder().
			WithRegistry(registry).
			WithNumWorkers(0).
			Build("Node", 0, &testComp{})

		Expect(err).To(HaveOccurred())
	})

	It("should register the handler when it is a component", func() {
		c := newTestComp(registry, "Node", 0)

		comp, found := registry.Get(c.Key())

		Expect(found).To(BeTrue())
		Expect(comp).To(BeIdenticalTo(c))
	})
})
