package domain

// MemoryState is the derived serving classification computed from
// retrievability and inactivity. States are ordered by strictly
// decreasing retrievability; ARCHIVED overrides all of them.
type MemoryState string

const (
	StateHot       MemoryState = "hot"
	StateWarm      MemoryState = "warm"
	StateCold      MemoryState = "cold"
	StateDormant   MemoryState = "dormant"
	StateForgotten MemoryState = "forgotten"
	StateArchived  MemoryState = "archived"
)

func ValidState(s string) bool {
	switch MemoryState(s) {
	case StateHot, StateWarm, StateCold, StateDormant, StateForgotten, StateArchived:
		return true
	}
	return false
}

// ContentDepth is how much of a memory's content a state earns in a
// retrieval response.
type ContentDepth string

const (
	DepthFull    ContentDepth = "full"
	DepthSummary ContentDepth = "summary"
	DepthNone    ContentDepth = "none"
)

// DepthForState maps a serving state to its content depth: HOT gets full
// content, WARM a summary, everything colder nothing.
func DepthForState(s MemoryState) ContentDepth {
	switch s {
	case StateHot:
		return DepthFull
	case StateWarm:
		return DepthSummary
	default:
		return DepthNone
	}
}
