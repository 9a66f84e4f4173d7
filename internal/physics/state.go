package physics

// State is the phase a world is in. Observers may read it while a step runs.
type State uint32

const (
	Idle State = iota
	Gather
	BroadPhaseUpdate
	NarrowPhase
	Solve
	Integrate
	Commit
)

var stateNames = [...]string{"idle", "gather", "broad-phase", "narrow-phase", "solve", "integrate", "commit"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}
