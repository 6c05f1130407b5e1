package naming

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Name", func() {
	It("should compose indexed names", func() {
		Expect(Indexed("Node", 3)).To(Equal("Node[3]"))
		Expect(Indexed("Channel", 0, 1)).To(Equal("Channel[0][1]"))
		Expect(Indexed("Registry")).To(Equal("Registry"))
	})

	It("should parse hierarchical names", func() {
		n, err := ParseName("Node[2].LinkLayer")

		Expect(err).NotTo(HaveOccurred())
		Expect(n.Tokens).To(HaveLen(2))
		Expect(n.Tokens[0].ElemName).To(Equal("Node"))
		Expect(n.Tokens[0].Index).To(Equal([]int{2}))
		Expect(n.Tokens[1].ElemName).To(Equal("LinkLayer"))
	})

	DescribeTable("validation",
		func(name string, valid bool) {
			err := Validate(name)
			if valid {
				Expect(err).NotTo(HaveOccurred())
			} else {
				Expect(err).To(HaveOccurred())
			}
		},
		Entry("simple", "Node", true),
		Entry("indexed", "Node[1]", true),
		Entry("two indices", "Channel[0][1]", true),
		Entry("hierarchical", "Node[1].Snapshot", true),
		Entry("lower case", "node", false),
		Entry("empty element", "A..B", false),
		Entry("dash", "Chan-1", false),
		Entry("unmatched bracket", "Node[1", false),
		Entry("non integer index", "Node[a]", false),
	)
})
