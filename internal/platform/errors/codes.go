// Package errors provides structured error handling for the Inkhaven core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Authorization errors
	CodeNotPrivileged Code = "NOT_PRIVILEGED"
	CodeNotController Code = "NOT_CONTROLLER"
	CodeNotMember     Code = "NOT_MEMBER"
	CodeNotEligible   Code = "NOT_ELIGIBLE"

	// State conflict errors
	CodeLockAlreadyHeld  Code = "LOCK_ALREADY_HELD"
	CodeAlreadyInPhase   Code = "ALREADY_IN_PHASE"
	CodeNotEligiblePhase Code = "NOT_ELIGIBLE_PHASE"
	CodeCampaignPaused   Code = "CAMPAIGN_PAUSED"
	CodePostLocked       Code = "POST_LOCKED"
	CodePostRevealed     Code = "POST_ALREADY_REVEALED"
	CodeRollResolved     Code = "ROLL_ALREADY_RESOLVED"

	// Precondition errors
	CodeActiveLocksExist  Code = "ACTIVE_LOCKS_EXIST"
	CodePendingRollsExist Code = "PENDING_ROLLS_EXIST"
	CodeNotAllReady       Code = "NOT_ALL_READY"
	CodeTimeGateExpired   Code = "TIME_GATE_EXPIRED"
	CodeRollPending       Code = "ROLL_PENDING"
	CodeCharacterOrphaned Code = "CHARACTER_ORPHANED"

	// Resource limit errors
	CodeSceneLimitReached   Code = "SCENE_LIMIT_REACHED"
	CodeNoEvictionCandidate Code = "NO_EVICTION_CANDIDATE"
	CodeCampaignFull        Code = "CAMPAIGN_FULL"

	// Not found errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeCampaignNotFound  Code = "CAMPAIGN_NOT_FOUND"
	CodeSceneNotFound     Code = "SCENE_NOT_FOUND"
	CodeCharacterNotFound Code = "CHARACTER_NOT_FOUND"
	CodeLockNotFound      Code = "LOCK_NOT_FOUND"
	CodePostNotFound      Code = "POST_NOT_FOUND"
	CodeRollNotFound      Code = "ROLL_NOT_FOUND"

	// Validation errors
	CodeCampaignNameEmpty    Code = "CAMPAIGN_NAME_EMPTY"
	CodeSceneNameEmpty       Code = "SCENE_NAME_EMPTY"
	CodeCharacterNameEmpty   Code = "CHARACTER_NAME_EMPTY"
	CodeCharacterInvalidKind Code = "CHARACTER_INVALID_KIND"
	CodePostBodyEmpty        Code = "POST_BODY_EMPTY"
	CodeDiceInvalidSpec      Code = "DICE_INVALID_SPEC"
	CodeDiceMissing          Code = "DICE_MISSING"
	CodeInvalidPassState     Code = "INVALID_PASS_STATE"
	CodeWitnessSetEmpty      Code = "WITNESS_SET_EMPTY"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeCampaignNameEmpty,
		CodeSceneNameEmpty,
		CodeCharacterNameEmpty,
		CodeCharacterInvalidKind,
		CodePostBodyEmpty,
		CodeDiceInvalidSpec,
		CodeDiceMissing,
		CodeInvalidPassState,
		CodeWitnessSetEmpty:
		return http.StatusBadRequest

	// Forbidden - caller lacks the required capability
	case CodeNotPrivileged,
		CodeNotController,
		CodeNotMember,
		CodeNotEligible:
		return http.StatusForbidden

	// Conflict - current state does not allow the operation
	case CodeLockAlreadyHeld,
		CodeAlreadyInPhase,
		CodeNotEligiblePhase,
		CodeCampaignPaused,
		CodePostLocked,
		CodePostRevealed,
		CodeRollResolved,
		CodeActiveLocksExist,
		CodePendingRollsExist,
		CodeNotAllReady,
		CodeTimeGateExpired,
		CodeRollPending,
		CodeCharacterOrphaned,
		CodeSceneLimitReached,
		CodeNoEvictionCandidate,
		CodeCampaignFull:
		return http.StatusConflict

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeCampaignNotFound,
		CodeSceneNotFound,
		CodeCharacterNotFound,
		CodeLockNotFound,
		CodePostNotFound,
		CodeRollNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
