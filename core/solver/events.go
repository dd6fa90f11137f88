package solver

import "time"

// Method names the price update applied in an iteration.
type Method string

const (
	MethodBracket Method = "bracket"
	MethodNewton  Method = "newton"
	MethodHybrid  Method = "newton+bracket"
)

// Event is published on the solver event bus.
type Event interface {
	solverEvent()
}

// IterationEvent reports the state after one solver iteration.
type IterationEvent struct {
	Period                  int
	Iteration               int
	Method                  Method
	Unsolved                int
	MaxRelativeExcessDemand float64
	WorstMarket             string
	Time                    time.Time
}

// PeriodEvent reports the outcome of a period.
type PeriodEvent struct {
	Result Result
	Time   time.Time
}

func (IterationEvent) solverEvent() {}
func (PeriodEvent) solverEvent()    {}
