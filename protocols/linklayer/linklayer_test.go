package linklayer

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahc/sim"
)

var _ = Describe("Link layer", func() {
	var (
		registry     *sim.Registry
		ctx          context.Context
		cancel       context.CancelFunc
		layer        *Comp
		above, below *sim.Probe
	)

	BeforeEach(func() {
		var err error

		registry = sim.NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())

		layer, err = MakeBuilder().WithRegistry(registry).Build(1)
		Expect(err).NotTo(HaveOccurred())
		above, err = sim.NewProbe(registry, "Above", 1)
		Expect(err).NotTo(HaveOccurred())
		below, err = sim.NewProbe(registry, "Below", 1)
		Expect(err).NotTo(HaveOccurred())

		Expect(layer.Connect(sim.Up, above.Key())).To(Succeed())
		Expect(layer.Connect(sim.Down, below.Key())).To(Succeed())

		registry.Start(ctx)
	})

	AfterEach(func() {
		cancel()
		registry.Stop()
	})

	frames := func() []sim.Message {
		var msgs []sim.Message
		for _, e := range below.ReceivedOfKind(sim.KindMsgFromTop) {
			msgs = append(msgs, e.Payload.(sim.Message))
		}

		return msgs
	}

	fromBelow := func(to sim.NodeID, payload any) {
		frame := sim.Message{
			Header:  sim.MessageHeader{Type: FrameType, From: 0, To: to},
			Payload: payload,
		}
		layer.TriggerEvent(sim.NewEvent(below.Key(), sim.KindMsgFromBottom, frame).
			WithChannel("0-1"))
	}

	It("should frame messages for their next hop", func() {
		upper := sim.Message{
			Header: sim.MessageHeader{Type: "NETMSG", From: 1, To: 3, NextHop: 2},
		}
		layer.TriggerEvent(sim.NewEvent(above.Key(), sim.KindMsgFromTop, upper))

		Eventually(frames).Should(HaveLen(1))

		frame := frames()[0]
		Expect(frame.Header.Type).To(Equal(FrameType))
		Expect(frame.Header.From).To(Equal(sim.NodeID(1)))
		Expect(frame.Header.To).To(Equal(sim.NodeID(2)))
		Expect(frame.Payload).To(Equal(upper))
	})

	It("should frame network broadcasts for every neighbor", func() {
		upper := sim.Message{
			Header: sim.MessageHeader{
				Type: "FLOOD", From: 1, To: sim.NetworkLayerBroadcast,
			},
		}
		layer.TriggerEvent(sim.NewEvent(above.Key(), sim.KindMsgFromTop, upper))

		Eventually(frames).Should(HaveLen(1))
		Expect(frames()[0].Header.To).To(Equal(sim.LinkLayerBroadcast))
	})

	It("should pass up frames for this node and broadcasts", func() {
		fromBelow(1, "mine")
		fromBelow(sim.LinkLayerBroadcast, "all")
		fromBelow(5, "other")

		Eventually(func() []any { return above.Payloads(sim.KindMsgFromBottom) }).
			Should(Equal([]any{"mine", "all"}))
		Consistently(func() int {
			return len(above.ReceivedOfKind(sim.KindMsgFromBottom))
		}, 50*time.Millisecond).Should(Equal(2))

		Expect(above.ReceivedOfKind(sim.KindMsgFromBottom)[0].FromChannel).
			To(Equal(sim.ChannelID("0-1")))
	})

	It("should drop payloads that are not frames", func() {
		layer.TriggerEvent(sim.NewEvent(below.Key(), sim.KindMsgFromBottom, 42))
		layer.TriggerEvent(sim.NewEvent(above.Key(), sim.KindMsgFromTop, 42))

		Consistently(func() int {
			return len(above.Received()) + len(below.Received())
		}, 50*time.Millisecond).Should(BeZero())
	})
})
