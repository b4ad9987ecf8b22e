// Package entities contains the core domain objects for the reservoir simulator
package entities

import (
	"fmt"
	"time"
)

// Direction is the way water moves during a flow step.
// Values are stored verbatim in the history table's action column.
type Direction string

const (
	DirectionInflow  Direction = "entrée"
	DirectionOutflow Direction = "sortie"
)

// Label returns a human readable name for the direction
func (d Direction) Label() string {
	switch d {
	case DirectionInflow:
		return "inflow"
	case DirectionOutflow:
		return "outflow"
	default:
		return string(d)
	}
}

// AlertKind identifies which soft threshold the level has crossed
type AlertKind string

const (
	AlertNone      AlertKind = ""
	AlertOverflow  AlertKind = "overflow"
	AlertUnderflow AlertKind = "underflow"
)

// Message renders the warning shown to the user for this alert
func (a AlertKind) Message(level float64) string {
	switch a {
	case AlertOverflow:
		return fmt.Sprintf("Risk of overflow! Level: %.1f L", level)
	case AlertUnderflow:
		return fmt.Sprintf("Critically low level! Level: %.1f L", level)
	default:
		return ""
	}
}

// ReservoirState is a snapshot of the reservoir at one point of the simulation
type ReservoirState struct {
	Capacity          float64 // Hard upper bound in litres
	Level             float64 // Current volume held
	LowThreshold      float64
	HighThreshold     float64
	CumulativeInflow  float64 // Total volume actually added
	CumulativeOutflow float64 // Total volume actually drained
	AlertCount        int
	Running           bool
}

// Percent returns the fill ratio as a percentage of capacity
func (s ReservoirState) Percent() float64 {
	if s.Capacity <= 0 {
		return 0
	}
	return s.Level / s.Capacity * 100
}

// FlowEvent is one logged movement of water
type FlowEvent struct {
	ID             int64 // Assigned by the event log on append
	Timestamp      time.Time
	Direction      Direction
	Volume         float64 // Volume actually moved, always > 0
	ResultingLevel float64
}

// TickResult is what display layers receive after every simulation tick
type TickResult struct {
	Event      *FlowEvent // nil when no water moved
	State      ReservoirState
	Alert      AlertKind
	StorageErr error // set when the event could not be persisted
}
