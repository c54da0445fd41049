package nodeid

// Segment is one component of an address, e.g. `node[1]`.
type Segment struct {
	Name  string
	Index int // -1 when the segment carries no index.
}

// NewSegment returns a segment without an index.
func NewSegment(name string) Segment {
	return Segment{Name: name, Index: -1}
}

// NewIndexedSegment returns a segment with an index.
func NewIndexedSegment(name string, index int) Segment {
	return Segment{Name: name, Index: index}
}

// HasIndex reports whether the segment carries an index.
func (s Segment) HasIndex() bool {
	return s.Index != -1
}

// Address identifies a flow, step, node or pipeline.
type Address struct {
	Path []Segment
}

const (
	stepSegment     = "step"
	nodeSegment     = "node"
	pipelineSegment = "pipeline"
)
