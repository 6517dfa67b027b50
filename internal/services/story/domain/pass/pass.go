// Package pass models the per-(scene, character) readiness flag that gates
// phase transitions.
//
// The two tiers differ only in how they clear: Passed is revoked by new
// activity in the scene, HardPassed survives it.
package pass

// State describes a character's readiness within a scene.
type State int

const (
	// StateNone indicates the character has not signalled readiness.
	StateNone State = iota
	// StatePassed indicates the character is satisfied for now; any new post
	// by another occupant revokes it.
	StatePassed
	// StateHardPassed indicates the character is done for the phase; only an
	// explicit un-pass or the next phase reset clears it.
	StateHardPassed
)

// String returns the wire representation of the state.
func (s State) String() string {
	switch s {
	case StateNone:
		return "none"
	case StatePassed:
		return "passed"
	case StateHardPassed:
		return "hard_passed"
	default:
		return "unknown"
	}
}

// Parse maps a wire representation back to a State.
func Parse(value string) (State, bool) {
	switch value {
	case "none":
		return StateNone, true
	case "passed":
		return StatePassed, true
	case "hard_passed":
		return StateHardPassed, true
	default:
		return StateNone, false
	}
}

// Ready reports whether the state counts toward the all-occupants-ready
// aggregate.
func (s State) Ready() bool {
	return s != StateNone
}

// ClearOnPost returns the state after another occupant posts in the scene.
// Passed reverts to None; HardPassed and None are unaffected.
func (s State) ClearOnPost() State {
	if s == StatePassed {
		return StateNone
	}
	return s
}

// UpgradeOnWindowExpiry returns the state after the Write-phase timer
// elapses. Everything below HardPassed becomes HardPassed so a late post
// cannot silently undo the auto-pass.
func (s State) UpgradeOnWindowExpiry() State {
	if s == StateHardPassed {
		return s
	}
	return StateHardPassed
}
