package sim

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Probe", func() {
	var (
		registry *Registry
		ctx      context.Context
		cancel   context.CancelFunc
	)

	BeforeEach(func() {
		registry = NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		registry.Stop()
	})

	It("should record everything but INIT", func() {
		p, err := NewProbe(registry, "Probe", 0)
		Expect(err).NotTo(HaveOccurred())

		registry.Start(ctx)
		p.TriggerEvent(p.NewEvent(KindMsgFromBottom, "a"))
		p.TriggerEvent(p.NewEvent(KindTimer, "b"))
		p.TriggerEvent(p.NewEvent(KindMsgFromBottom, "c"))

		Eventually(func() []any { return p.Payloads(KindMsgFromBottom) }).
			Should(Equal([]any{"a", "c"}))
		Expect(p.Received()).To(HaveLen(3))
		Expect(p.ReceivedOfKind(KindInit)).To(BeEmpty())
	})

	It("should fail to build with a duplicated key", func() {
		_, err := NewProbe(registry, "Probe", 0)
		Expect(err).NotTo(HaveOccurred())

		_, err = NewProbe(registry, "Probe", 0)
		Expect(err).To(HaveOccurred())
	})
})
