package pattern

import (
	"fmt"

	"github.com/dwsmith1983/faultline/pkg/types"
)

// Transition table: from -> allowed tos. Resets bypass it.
var validTransitions = map[types.Phase][]types.Phase{
	types.PhaseSteady:  {},
	types.PhaseQuiet:   {types.PhaseBurst},
	types.PhaseBurst:   {types.PhaseQuiet},
	types.PhaseRamping: {types.PhasePlateau},
	types.PhasePlateau: {},
	types.PhaseWalking: {},
}

// initialPhase is the phase a pattern starts in after a reset.
var initialPhase = map[types.PatternType]types.Phase{
	types.PatternSteady: types.PhaseSteady,
	types.PatternBurst:  types.PhaseQuiet,
	types.PatternRamp:   types.PhaseRamping,
	types.PatternRandom: types.PhaseWalking,
}

// CanTransition checks if moving from one phase to another is valid.
func CanTransition(from, to types.Phase) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, p := range allowed {
		if p == to {
			return true
		}
	}
	return false
}

// Transition validates a phase change.
func Transition(from, to types.Phase) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid phase transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal reports whether a phase never advances on its own.
func IsTerminal(phase types.Phase) bool {
	allowed, ok := validTransitions[phase]
	return ok && len(allowed) == 0
}

// InitialPhase returns the starting phase of a pattern.
func InitialPhase(p types.PatternType) types.Phase {
	if phase, ok := initialPhase[p]; ok {
		return phase
	}
	return types.PhaseSteady
}
