package generate

// State is the lifecycle position of an article generation.
type State int

const (
	StateIdle State = iota
	StateGenerating
	StateDone
	StateErrored
	StateAborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGenerating:
		return "generating"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a generation.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored || s == StateAborted
}

// Phase is the stage of a map generation.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTopics
	PhaseLayout
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTopics:
		return "topics"
	case PhaseLayout:
		return "layout"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}
