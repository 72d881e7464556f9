package sim

import "fmt"

// State is a phase of the generational lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitialization
	StateRun
	StateEvaluation
	StateSelection
	StateCrossover
	StateMutation
	StateDone
)

var stateNames = [...]string{
	StateUninitialized:  "uninitialized",
	StateInitialization: "initialization",
	StateRun:            "run",
	StateEvaluation:     "evaluation",
	StateSelection:      "selection",
	StateCrossover:      "crossover",
	StateMutation:       "mutation",
	StateDone:           "done",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

var transitions = map[State][]State{
	StateUninitialized:  {StateInitialization},
	StateInitialization: {StateRun},
	StateRun:            {StateRun, StateEvaluation},
	StateEvaluation:     {StateSelection},
	StateSelection:      {StateCrossover},
	StateCrossover:      {StateMutation},
	StateMutation:       {StateDone},
	StateDone:           {StateRun},
}

// CanTransition reports whether the lifecycle allows moving from one state to
// the other.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
