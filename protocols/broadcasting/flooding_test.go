package broadcasting

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahc/channel"
	"github.com/sarchlab/ahc/protocols/adhocnode"
	"github.com/sarchlab/ahc/protocols/linklayer"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
	"github.com/sarchlab/ahc/topology"
)

func appLayer(r *sim.Registry, id sim.NodeID) (sim.Component, error) {
	p, err := sim.NewProbe(r, "App", int(id))
	if err != nil {
		return nil, err
	}

	return p, nil
}

var _ = Describe("Flooding", func() {
	var (
		registry *sim.Registry
		ctx      context.Context
		cancel   context.CancelFunc

		lock      sync.Mutex
		delivered map[sim.NodeID]int
	)

	BeforeEach(func() {
		registry = sim.NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())

		delivered = make(map[sim.NodeID]int)
		registry.AcceptHook(hooking.NewHookFunc(func(hc hooking.HookCtx) {
			if hc.Pos != HookPosDelivered {
				return
			}

			lock.Lock()
			delivered[hc.Domain.(*Comp).NodeID()]++
			lock.Unlock()
		}))
	})

	AfterEach(func() {
		cancel()
		registry.Stop()
	})

	deliveries := func() map[sim.NodeID]int {
		lock.Lock()
		defer lock.Unlock()

		m := make(map[sim.NodeID]int, len(delivered))
		for k, v := range delivered {
			m[k] = v
		}

		return m
	}

	buildNetwork := func(g *topology.Graph) {
		nodes := adhocnode.MakeBuilder().WithLayers(
			appLayer,
			MakeBuilder().LayerFactory(),
			linklayer.MakeBuilder().LayerFactory(),
		)

		topo := topology.New(registry)
		err := topo.ConstructFromGraph(g,
			nodes.NodeFactory(), channel.MakeBuilder().EdgeFactory())
		Expect(err).NotTo(HaveOccurred())

		topo.Start(ctx)
	}

	flooding := func(id int) *Comp {
		comp, found := registry.Get(sim.Key{Name: "Flooding", Instance: id})
		Expect(found).To(BeTrue())

		return comp.(*Comp)
	}

	app := func(id int) *sim.Probe {
		comp, found := registry.Get(sim.Key{Name: "App", Instance: id})
		Expect(found).To(BeTrue())

		return comp.(*sim.Probe)
	}

	DescribeTable("should deliver a broadcast exactly once at every other node",
		func(g *topology.Graph) {
			buildNetwork(g)
			n := len(g.Nodes())

			flooding(0).Broadcast("hello")

			expected := make(map[sim.NodeID]int)
			for id := 1; id < n; id++ {
				expected[sim.NodeID(id)] = 1
			}

			Eventually(deliveries).Should(Equal(expected))
			Consistently(deliveries, 50*time.Millisecond).Should(Equal(expected))

			for id := 1; id < n; id++ {
				Expect(app(id).Payloads(sim.KindMsgFromBottom)).
					To(Equal([]any{"hello"}))
			}

			Expect(app(0).Received()).To(BeEmpty())
		},
		Entry("on a path", topology.Path(5)),
		Entry("on a ring", topology.Ring(6, false)),
		Entry("on a complete graph", topology.Complete(5)),
	)

	It("should tell broadcasts apart by origin and sequence", func() {
		buildNetwork(topology.Complete(3))

		flooding(0).Broadcast("a")
		flooding(0).Broadcast("b")
		flooding(2).Broadcast("c")

		Eventually(func() []any { return app(1).Payloads(sim.KindMsgFromBottom) }).
			Should(ConsistOf("a", "b", "c"))

		Expect(flooding(1).Seen(sim.UniqueID{From: 0, SequenceID: 1})).To(BeTrue())
		Expect(flooding(1).Seen(sim.UniqueID{From: 0, SequenceID: 2})).To(BeTrue())
		Expect(flooding(1).Seen(sim.UniqueID{From: 2, SequenceID: 1})).To(BeTrue())
		Expect(flooding(1).Seen(sim.UniqueID{From: 1, SequenceID: 1})).To(BeFalse())
	})

	It("should mark its own broadcasts as seen", func() {
		buildNetwork(topology.Path(2))

		flooding(1).Broadcast("x")

		Eventually(func() bool {
			return flooding(1).Seen(sim.UniqueID{From: 1, SequenceID: 1})
		}).Should(BeTrue())
	})
})
