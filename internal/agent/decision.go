package agent

import (
	"context"
	"fmt"
)

// Decision is what a Decider makes of the model's latest output: either an
// Action to run or a Finish carrying the final answer.
type Decision interface {
	decision()
}

// Action asks for one tool invocation.
type Action struct {
	Tool    string
	Input   string
	Thought string
	// CallID links the observation back to a native tool call.
	CallID string
	// Log is the raw model text that produced the action, replayed in the
	// ReAct scratchpad.
	Log string
}

// Finish ends the loop with Answer.
type Finish struct {
	Answer  string
	Thought string
}

func (Action) decision() {}
func (Finish) decision() {}

// Step is one executed action and what it returned. Parse failures are
// recorded as steps too, with ParseError set and no tool.
type Step struct {
	Action      Action
	Observation string
	IsError     bool
	ParseError  bool
}

// Decider turns the session state into the next Decision by asking the model.
type Decider interface {
	Name() string
	Decide(ctx context.Context, s *Session) (Decision, error)
}

// ParseError reports model output that is neither a valid action nor a final
// answer. Output is the raw text; Reason is fed back to the model.
type ParseError struct {
	Output string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse model output: %s", e.Reason)
}
