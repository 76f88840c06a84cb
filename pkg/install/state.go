// pkg/install/state.go
package install

import "fmt"

// State is a step of the install state machine
type State int

const (
	StateInit State = iota
	StateFetching
	StateBuilding
	StateStaging
	StateComposingEnvironment
	StateLinking
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:                 "Init",
	StateFetching:             "Fetching",
	StateBuilding:             "Building",
	StateStaging:              "Staging",
	StateComposingEnvironment: "ComposingEnvironment",
	StateLinking:              "Linking",
	StateDone:                 "Done",
	StateFailed:               "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Transition is one entry of a run's history
type Transition struct {
	State     State
	Component string // empty for run-wide states
}

// StageError is the cause of a Failed run: the state that was active and
// the component being processed, if any.
type StageError struct {
	Stage     State
	Component string
	Err       error
}

func (e *StageError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Component, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
