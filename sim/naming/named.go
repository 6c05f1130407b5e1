package naming

import "strconv"

// Named is implemented by every object with a hierarchical name.
type Named interface {
	Name() string
}

// NamedBase stores a name for the types that embed it.
type NamedBase struct {
	name string
}

// Name returns the stored name.
func (b *NamedBase) Name() string {
	return b.name
}

// MakeNamedBase returns a NamedBase holding the name.
func MakeNamedBase(name string) NamedBase {
	return NamedBase{name: name}
}

// Indexed appends series indices to an element name, so that
// Indexed("Node", 3) returns "Node[3]" and Indexed("Channel", 0, 1) returns
// "Channel[0][1]".
func Indexed(elemName string, index ...int) string {
	s := elemName
	for _, i := range index {
		s += "[" + strconv.Itoa(i) + "]"
	}

	return s
}
