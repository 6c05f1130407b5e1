package adhocnode

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahc/sim"
)

func probeLayer(name string) LayerFactory {
	return func(r *sim.Registry, id sim.NodeID) (sim.Component, error) {
		p, err := sim.NewProbe(r, name, int(id))
		if err != nil {
			return nil, err
		}

		return p, nil
	}
}

var _ = Describe("Ad hoc node", func() {
	var (
		registry *sim.Registry
		ctx      context.Context
		cancel   context.CancelFunc
	)

	BeforeEach(func() {
		registry = sim.NewRegistry()
		ctx, cancel = context.WithCancel(context.Background())
	})

	AfterEach(func() {
		cancel()
		registry.Stop()
	})

	It("should wire the layers from the top to the bottom", func() {
		node, err := MakeBuilder().
			WithRegistry(registry).
			WithLayers(probeLayer("App"), probeLayer("Mid")).
			Build(4)
		Expect(err).NotTo(HaveOccurred())

		app := sim.Key{Name: "App", Instance: 4}
		mid := sim.Key{Name: "Mid", Instance: 4}

		Expect(node.Key()).To(Equal(sim.Key{Name: "Node", Instance: 4}))
		Expect(node.NodeID()).To(Equal(sim.NodeID(4)))
		Expect(node.Layers()).To(HaveLen(2))
		Expect(node.Top().Key()).To(Equal(app))
		Expect(node.Connectors(sim.Up)).To(Equal([]sim.Key{mid}))

		midLayer := node.Layers()[1].(*sim.Probe)
		Expect(midLayer.Connectors(sim.Up)).To(Equal([]sim.Key{app}))
		Expect(midLayer.Connectors(sim.Down)).To(Equal([]sim.Key{node.Key()}))
	})

	It("should bridge the lowest layer and the channels", func() {
		node, err := MakeBuilder().
			WithRegistry(registry).
			WithLayers(probeLayer("Link")).
			Build(0)
		Expect(err).NotTo(HaveOccurred())

		medium, err := sim.NewProbe(registry, "Medium", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(node.Connect(sim.Down, medium.Key())).To(Succeed())

		registry.Start(ctx)

		link := node.Top().(*sim.Probe)
		node.TriggerEvent(sim.NewEvent(link.Key(), sim.KindMsgFromTop, "down"))
		node.TriggerEvent(sim.NewEvent(medium.Key(), sim.KindMsgFromBottom, "up").
			WithChannel("1-0"))

		Eventually(func() []any { return medium.Payloads(sim.KindMsgFromTop) }).
			Should(Equal([]any{"down"}))
		Eventually(func() []any { return link.Payloads(sim.KindMsgFromBottom) }).
			Should(Equal([]any{"up"}))
		Expect(link.ReceivedOfKind(sim.KindMsgFromBottom)[0].FromChannel).
			To(Equal(sim.ChannelID("1-0")))
	})

	It("should fail if a layer cannot be built", func() {
		failing := func(*sim.Registry, sim.NodeID) (sim.Component, error) {
			return nil, errors.New("broken")
		}

		_, err := MakeBuilder().
			WithRegistry(registry).
			WithLayers(probeLayer("App"), failing).
			Build(0)

		Expect(err).To(MatchError(ContainSubstring("broken")))
	})

	It("should build nodes for a topology", func() {
		factory := MakeBuilder().WithLayers(probeLayer("App")).NodeFactory()

		comp, err := factory(registry, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(comp.Name()).To(Equal("Node[2]"))

		_, found := registry.Get(sim.Key{Name: "App", Instance: 2})
		Expect(found).To(BeTrue())
	})
})
