package api

// Edge is a directed relation from SourceID to DestinationID, identified
// uniquely by the pair (SourceID, DestinationID). Position is a
// client-supplied ordering key, unique within (SourceID, State).
type Edge struct {
	SourceID      uint64
	DestinationID uint64
	Position      int64
	UpdatedAt     uint32 // seconds since epoch
	Count         uint8
	State         State
}

// Metadata is the per-source aggregate row: the state currently
// attributed to the source as a whole, and the count of edges on that
// source whose State equals Metadata.State.
type Metadata struct {
	SourceID  uint64
	Count     int32
	State     State
	UpdatedAt uint32
}

// Older reports whether (updatedAt, state) is strictly older than
// (otherUpdatedAt, otherState) under the monotonic order
// (updated_at ASC, state-precedence ASC) described in invariant 4.
func Older(updatedAt uint32, state State, otherUpdatedAt uint32, otherState State) bool {
	if updatedAt != otherUpdatedAt {
		return updatedAt < otherUpdatedAt
	}
	return MaxState(state, otherState) == otherState && state != otherState
}
