package primitives

// ResourceID addresses one lockable resource: an object inside a segment.
type ResourceID struct {
	Segment SegmentID
	Object  ObjectID
}

// NewResourceID returns the address of obj in the default segment.
func NewResourceID(obj ObjectID) ResourceID {
	return ResourceID{Segment: DefaultSegment, Object: obj}
}

// Less orders resources by segment, then by object.
func (r ResourceID) Less(other ResourceID) bool {
	if r.Segment != other.Segment {
		return r.Segment < other.Segment
	}
	return r.Object < other.Object
}

func (r ResourceID) Equals(other ResourceID) bool {
	return r == other
}
