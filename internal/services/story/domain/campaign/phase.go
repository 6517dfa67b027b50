package campaign

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
)

// TransitionEvent names a requested phase change.
type TransitionEvent int

const (
	// EventUnspecified represents an invalid transition event.
	EventUnspecified TransitionEvent = iota
	// EventBeginResolve requests Write -> Resolve, subject to guards.
	EventBeginResolve
	// EventForceResolve requests Write -> Resolve, skipping guards.
	// Operational escape hatch for privileged recovery.
	EventForceResolve
	// EventBeginWrite requests Resolve -> Write.
	EventBeginWrite
)

// Guards carries the campaign-wide facts a transition is judged against.
// The caller gathers them inside the same transaction that applies the
// transition so they cannot go stale.
type Guards struct {
	Paused bool
	// ActiveLockCount is the number of live (non-expired) compose locks
	// campaign-wide.
	ActiveLockCount int
	// PendingRollCount is the number of unresolved roll requests
	// campaign-wide.
	PendingRollCount int
	// UnreadyCharacterIDs lists non-orphaned occupants whose pass state is
	// still None.
	UnreadyCharacterIDs []string
	// WindowExpired is true when the Write-phase timer has elapsed; readiness
	// is then satisfied by the lazy auto-pass upgrade.
	WindowExpired bool
}

// Effects lists the side effects the caller must apply atomically with the
// phase change.
type Effects struct {
	// RunWitnessTransaction assigns default witnesses to every pending post
	// created during the ended Resolve phase, all-or-nothing campaign-wide.
	RunWitnessTransaction bool
	// ResetPassStates clears every pass state in the campaign to None.
	ResetPassStates bool
	// SetWriteWindow stamps phaseExpiresAt = now + configured window.
	SetWriteWindow bool
}

// Transition is the pure phase transition function. It returns the next
// phase and the effects to apply, or a structured guard failure telling the
// actor exactly what blocks the change.
//
// Every phase mutation in the system is routed through this single entry
// point; scene-level code never touches the phase directly.
func Transition(current Phase, event TransitionEvent, guards Guards) (Phase, Effects, error) {
	switch event {
	case EventBeginResolve:
		if current == PhaseResolve {
			return current, Effects{}, apperrors.New(apperrors.CodeAlreadyInPhase, "campaign is already in resolve phase")
		}
		if current != PhaseWrite {
			return current, Effects{}, apperrors.New(apperrors.CodeNotEligiblePhase, "campaign phase does not allow resolving")
		}
		if guards.ActiveLockCount > 0 {
			return current, Effects{}, apperrors.WithMetadata(
				apperrors.CodeActiveLocksExist,
				"compose locks are still held",
				map[string]string{"active_locks": strconv.Itoa(guards.ActiveLockCount)},
			)
		}
		if guards.PendingRollCount > 0 {
			return current, Effects{}, apperrors.WithMetadata(
				apperrors.CodePendingRollsExist,
				"roll requests are still pending",
				map[string]string{"pending_rolls": strconv.Itoa(guards.PendingRollCount)},
			)
		}
		if len(guards.UnreadyCharacterIDs) > 0 && !guards.WindowExpired {
			return current, Effects{}, apperrors.WithMetadata(
				apperrors.CodeNotAllReady,
				"not every occupant has passed",
				map[string]string{"unready_characters": strings.Join(guards.UnreadyCharacterIDs, ",")},
			)
		}
		return PhaseResolve, Effects{}, nil

	case EventForceResolve:
		if current == PhaseResolve {
			return current, Effects{}, apperrors.New(apperrors.CodeAlreadyInPhase, "campaign is already in resolve phase")
		}
		if current != PhaseWrite {
			return current, Effects{}, apperrors.New(apperrors.CodeNotEligiblePhase, "campaign phase does not allow resolving")
		}
		return PhaseResolve, Effects{}, nil

	case EventBeginWrite:
		if current == PhaseWrite {
			return current, Effects{}, apperrors.New(apperrors.CodeAlreadyInPhase, "campaign is already in write phase")
		}
		if current != PhaseResolve {
			return current, Effects{}, apperrors.New(apperrors.CodeNotEligiblePhase, "campaign phase does not allow writing")
		}
		if guards.Paused {
			return current, Effects{}, apperrors.New(apperrors.CodeCampaignPaused, "campaign is paused")
		}
		return PhaseWrite, Effects{
			RunWitnessTransaction: true,
			ResetPassStates:       true,
			SetWriteWindow:        true,
		}, nil

	default:
		return current, Effects{}, fmt.Errorf("unknown transition event %d", event)
	}
}
