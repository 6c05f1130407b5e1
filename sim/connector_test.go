package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Connectors", func() {
	var (
		connectors *Connectors
		a, b, c    Key
	)

	BeforeEach(func() {
		connectors = &Connectors{}
		a = Key{Name: "Node", Instance: 0}
		b = Key{Name: "Node", Instance: 1}
		c = Key{Name: "Node", Instance: 2}
	})

	It("should keep peers in insertion order", func() {
		connectors.Add(Down, a)
		connectors.Add(Down, b)
		connectors.Add(Up, c)

		Expect(connectors.Get(Down)).To(Equal([]Key{a, b}))
		Expect(connectors.Get(Up)).To(Equal([]Key{c}))
		Expect(connectors.Get(Peer)).To(BeEmpty())
		Expect(connectors.Len(Down)).To(Equal(2))
	})

	It("should return a copy", func() {
		connectors.Add(Down, a)

		peers := connectors.Get(Down)
		peers[0] = b

		Expect(connectors.Get(Down)).To(Equal([]Key{a}))
	})

	It("should remove peers", func() {
		connectors.Add(Peer, a)
		connectors.Add(Peer, b)

		Expect(connectors.Remove(Peer, a)).To(BeTrue())
		Expect(connectors.Remove(Peer, c)).To(BeFalse())
		Expect(connectors.Contains(Peer, a)).To(BeFalse())
		Expect(connectors.Contains(Peer, b)).To(BeTrue())
	})

	It("should name directions", func() {
		Expect(Down.String()).To(Equal("Down"))
		Expect(Up.String()).To(Equal("Up"))
		Expect(Peer.String()).To(Equal("Peer"))
	})
})
