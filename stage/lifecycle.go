package stage

// State is the lifecycle tag of a stage.
type State uint8

// Lifecycle states.
const (
	// Active accepts chunks.
	Active State = iota
	// Finished has received end of input.
	Finished
)

// String returns the state name.
func (s State) String() string {
	if s == Finished {
		return "finished"
	}
	return "active"
}

// Lifecycle enforces the "Flush exactly once, last" contract.
// Embed it in a stage and call Enter at the top of Process and Finish at
// the top of Flush. The zero value is Active.
type Lifecycle struct {
	state State
}

// Enter returns ErrStageFinished if the stage has already been flushed.
func (l *Lifecycle) Enter() error {
	if l.state == Finished {
		return ErrStageFinished
	}
	return nil
}

// Finish moves the stage to Finished. A second call returns ErrStageFinished.
func (l *Lifecycle) Finish() error {
	if l.state == Finished {
		return ErrStageFinished
	}
	l.state = Finished
	return nil
}

// State returns the current state.
func (l *Lifecycle) State() State {
	return l.state
}
