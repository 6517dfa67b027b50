// Package storage defines the persistence boundary for the story service.
//
// The store is the single arbiter for concurrent coordination: compose lock
// acquisition is a conditional insert on the unique (scene, character) key,
// and every guarded mutation runs inside a store transaction so client code
// never writes back stale reads.
package storage

import (
	"context"
	"time"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/dice"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/roll"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// CampaignRecord captures campaign metadata and global phase state.
type CampaignRecord struct {
	ID                       string
	Name                     string
	Phase                    campaign.Phase
	PhaseExpiresAt           *time.Time
	Paused                   bool
	LastPrivilegedActivityAt time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// SceneRecord captures scene lifecycle metadata.
type SceneRecord struct {
	ID         string
	CampaignID string
	Name       string
	Archived   bool
	ArchivedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OccupantRecord is one row of the scene occupancy map. Occupancy and pass
// state live on the same row so the two can never drift apart.
type OccupantRecord struct {
	CampaignID    string
	SceneID       string
	CharacterID   string
	PassState     pass.State
	JoinedAt      time.Time
	PassUpdatedAt time.Time
}

// CharacterRecord captures character identity and control state.
type CharacterRecord struct {
	ID               string
	CampaignID       string
	Name             string
	Kind             character.Kind
	ControllerUserID string
	Archived         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PostRecord captures one authored contribution and its frozen witness set.
type PostRecord struct {
	ID                string
	CampaignID        string
	SceneID           string
	AuthorCharacterID string
	AuthorUserID      string
	Body              string
	Hidden            bool
	WitnessIDs        []string
	WitnessesAssigned bool
	Locked            bool
	LockedAt          *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// LockRecord captures a compose lock lease.
type LockRecord struct {
	ID           string
	CampaignID   string
	SceneID      string
	CharacterID  string
	HolderUserID string
	Hidden       bool
	AcquiredAt   time.Time
	ExpiresAt    time.Time
}

// RollRecord captures a roll request and its numeric result.
type RollRecord struct {
	ID                string
	CampaignID        string
	SceneID           string
	CharacterID       string
	RequestedByUserID string
	Dice              []dice.DiceSpec
	Status            roll.Status
	Result            *dice.RollResult
	RequestedAt       time.Time
	ResolvedAt        *time.Time
}

// CampaignPage describes a page of campaign records.
type CampaignPage struct {
	Campaigns     []CampaignRecord
	NextPageToken string
}

// Statistics contains aggregate counters used by dashboards and housekeeping.
type Statistics struct {
	CampaignCount  int64
	SceneCount     int64
	CharacterCount int64
	PostCount      int64
	LockCount      int64
}

// CampaignStore owns campaign metadata and the global phase field.
type CampaignStore interface {
	PutCampaign(ctx context.Context, c CampaignRecord) error
	GetCampaign(ctx context.Context, id string) (CampaignRecord, error)
	// DeleteCampaign removes the campaign and cascades to scenes, characters,
	// posts, locks, and rolls.
	DeleteCampaign(ctx context.Context, id string) error
	// ListCampaigns returns a page of campaign records starting after the page token.
	ListCampaigns(ctx context.Context, pageSize int, pageToken string) (CampaignPage, error)
}

// SceneStore owns scene lifecycle records and the capacity queries the
// eviction policy needs.
type SceneStore interface {
	PutScene(ctx context.Context, s SceneRecord) error
	GetScene(ctx context.Context, campaignID, sceneID string) (SceneRecord, error)
	// ListScenes returns all scenes for a campaign ordered by creation.
	ListScenes(ctx context.Context, campaignID string) ([]SceneRecord, error)
	// DeleteScene removes the scene and cascades to its posts, locks, and
	// occupancy rows.
	DeleteScene(ctx context.Context, campaignID, sceneID string) error
	// CountScenes counts active plus archived scenes for the capacity check.
	CountScenes(ctx context.Context, campaignID string) (int, error)
	// OldestArchivedScene returns the eviction candidate, or ErrNotFound.
	OldestArchivedScene(ctx context.Context, campaignID string) (SceneRecord, error)
}

// OccupancyStore owns scene membership and the pass-state map in lockstep.
type OccupancyStore interface {
	// AddOccupant inserts an occupancy row with pass state None.
	AddOccupant(ctx context.Context, o OccupantRecord) error
	RemoveOccupant(ctx context.Context, sceneID, characterID string) error
	GetOccupant(ctx context.Context, sceneID, characterID string) (OccupantRecord, error)
	// GetOccupantByCharacter finds the character's occupancy anywhere in the
	// campaign; each character occupies at most one scene campaign-wide.
	GetOccupantByCharacter(ctx context.Context, campaignID, characterID string) (OccupantRecord, error)
	ListSceneOccupants(ctx context.Context, sceneID string) ([]OccupantRecord, error)
	ListCampaignOccupants(ctx context.Context, campaignID string) ([]OccupantRecord, error)
	SetPassState(ctx context.Context, sceneID, characterID string, state pass.State, updatedAt time.Time) error
	// ClearPassedExcept reverts Passed to None for every occupant of the
	// scene other than the author. HardPassed rows are untouched.
	ClearPassedExcept(ctx context.Context, sceneID, exceptCharacterID string, updatedAt time.Time) error
	// ResetPassStates clears every pass state in the campaign to None.
	ResetPassStates(ctx context.Context, campaignID string, updatedAt time.Time) error
	// UpgradePassStates raises every pass state in the campaign below
	// HardPassed to HardPassed (lazy write-window auto-pass).
	UpgradePassStates(ctx context.Context, campaignID string, updatedAt time.Time) error
}

// CharacterStore owns character identity and control metadata.
type CharacterStore interface {
	PutCharacter(ctx context.Context, c CharacterRecord) error
	GetCharacter(ctx context.Context, campaignID, characterID string) (CharacterRecord, error)
	ListCharacters(ctx context.Context, campaignID string) ([]CharacterRecord, error)
}

// PostStore owns posts and their frozen witness sets.
type PostStore interface {
	PutPost(ctx context.Context, p PostRecord) error
	GetPost(ctx context.Context, campaignID, postID string) (PostRecord, error)
	// ListScenePosts returns the scene's posts ordered by creation ascending.
	ListScenePosts(ctx context.Context, sceneID string) ([]PostRecord, error)
	// LatestScenePost returns the newest post in the scene, or ErrNotFound.
	LatestScenePost(ctx context.Context, sceneID string) (PostRecord, error)
	DeletePost(ctx context.Context, campaignID, postID string) error
	// ListPendingWitnessPosts returns posts whose witness assignment was
	// deferred, ordered by creation; input to the witness transaction.
	ListPendingWitnessPosts(ctx context.Context, campaignID string) ([]PostRecord, error)
	// WitnessedSceneIDs returns the scenes in which the character witnesses
	// at least one post; this is what makes a scene "exist" for a character.
	WitnessedSceneIDs(ctx context.Context, campaignID, characterID string) ([]string, error)
}

// LockStore owns compose lock leases keyed uniquely by (scene, character).
type LockStore interface {
	// PutLock inserts or replaces a lock for its (scene, character) key.
	PutLock(ctx context.Context, l LockRecord) error
	GetLock(ctx context.Context, lockID string) (LockRecord, error)
	GetLockByKey(ctx context.Context, sceneID, characterID string) (LockRecord, error)
	// DeleteLock removes a lock; deleting an absent lock is not an error.
	DeleteLock(ctx context.Context, lockID string) error
	ListCampaignLocks(ctx context.Context, campaignID string) ([]LockRecord, error)
}

// RollStore owns roll request lifecycle records.
type RollStore interface {
	PutRoll(ctx context.Context, r RollRecord) error
	GetRoll(ctx context.Context, campaignID, rollID string) (RollRecord, error)
	ListPendingRolls(ctx context.Context, campaignID string) ([]RollRecord, error)
	// HasPendingRoll reports whether the character has an unresolved roll.
	HasPendingRoll(ctx context.Context, campaignID, characterID string) (bool, error)
}

// StatisticsStore centralizes aggregate count queries for operational
// observability.
type StatisticsStore interface {
	GetStatistics(ctx context.Context) (Statistics, error)
}

// Store is the composite interface for all persistence concerns.
//
// WithTx runs fn against a store view bound to a single serializable
// transaction; returning an error rolls back every mutation fn made. Phase
// transitions, the witness transaction, and scene creation with eviction all
// run under WithTx.
type Store interface {
	CampaignStore
	SceneStore
	OccupancyStore
	CharacterStore
	PostStore
	LockStore
	RollStore
	StatisticsStore
	WithTx(ctx context.Context, fn func(Store) error) error
	Close() error
}
