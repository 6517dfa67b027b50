package app

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/inkhaven/inkhaven/internal/platform/errors"
	"github.com/inkhaven/inkhaven/internal/services/story/dice"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/campaign"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/character"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/pass"
	"github.com/inkhaven/inkhaven/internal/services/story/domain/scene"
	"github.com/inkhaven/inkhaven/internal/services/story/storage"
	"github.com/inkhaven/inkhaven/internal/services/story/storage/sqlite"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *captureNotifier) Publish(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

type fixture struct {
	svc    *Service
	clock  *testClock
	events *captureNotifier

	gm    Identity
	alice Identity
	bob   Identity

	campaignID string
	sceneID    string
	charA      string
	charB      string
}

// newFixture builds a campaign in the Write phase with one scene occupied by
// two player characters.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "story.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	events := &captureNotifier{}
	svc := New(store, Options{
		Notifier: events,
		Logger:   zerolog.Nop(),
		Now:      clock.Now,
		Seed:     func() int64 { return 42 },
	})

	f := &fixture{
		svc:    svc,
		clock:  clock,
		events: events,
		gm:     Identity{UserID: "gm-user", Privileged: true},
		alice:  Identity{UserID: "alice"},
		bob:    Identity{UserID: "bob"},
	}

	ctx := context.Background()
	campaignRecord, err := svc.CreateCampaign(ctx, f.gm, "The Hollow Crown")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}
	f.campaignID = campaignRecord.ID

	sceneResult, err := svc.CreateScene(ctx, f.gm, CreateSceneInput{CampaignID: f.campaignID, Name: "The Broken Gate"})
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}
	f.sceneID = sceneResult.Scene.ID

	charA, err := svc.CreateCharacter(ctx, f.alice, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "Ashka", Kind: character.KindPrimary,
	})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	f.charA = charA.ID

	charB, err := svc.CreateCharacter(ctx, f.bob, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "Brann", Kind: character.KindPrimary,
	})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	f.charB = charB.ID

	for _, characterID := range []string{f.charA, f.charB} {
		if err := svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, characterID); err != nil {
			t.Fatalf("add occupant: %v", err)
		}
	}

	if _, err := svc.BeginWrite(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin write: %v", err)
	}
	return f
}

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) || appErr.Code != code {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestCreatePost_RequiresComposeLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePost(ctx, f.alice, CreatePostInput{
		CampaignID:        f.campaignID,
		SceneID:           f.sceneID,
		AuthorCharacterID: f.charA,
		Body:              "Ashka steps forward.",
	})
	wantCode(t, err, apperrors.CodeLockNotFound)
}

func TestAcquireLock_IdempotentAndExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	// Re-acquire by the holder renews the same lease.
	f.clock.Advance(time.Minute)
	renewed, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	if err != nil {
		t.Fatalf("re-acquire lock: %v", err)
	}
	if renewed.ID != first.ID {
		t.Fatalf("re-acquire replaced the lock: %s vs %s", renewed.ID, first.ID)
	}
	if !renewed.ExpiresAt.After(first.ExpiresAt) {
		t.Fatal("re-acquire should extend the lease")
	}

	// Eligibility precedes acquisition: a player-controlled primary character
	// is off limits to the privileged actor regardless of the lock's state.
	_, err = f.svc.AcquireLock(ctx, f.gm, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	wantCode(t, err, apperrors.CodeNotEligible)
}

func TestAcquireLock_PrivilegedEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sidekick, err := f.svc.CreateCharacter(ctx, f.gm, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "Moth", Kind: character.KindSecondary,
		ControllerUserID: f.alice.UserID,
	})
	if err != nil {
		t.Fatalf("create secondary character: %v", err)
	}
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, sidekick.ID); err != nil {
		t.Fatalf("add occupant: %v", err)
	}

	// Secondary characters are fair game for the privileged actor.
	gmLock, err := f.svc.AcquireLock(ctx, f.gm, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: sidekick.ID,
	})
	if err != nil {
		t.Fatalf("privileged acquire on secondary: %v", err)
	}

	// Eligibility does not override exclusivity: the controller still cannot
	// take a live lease held by someone else.
	_, err = f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: sidekick.ID,
	})
	wantCode(t, err, apperrors.CodeLockAlreadyHeld)

	if err := f.svc.ForceReleaseLock(ctx, f.gm, f.campaignID, gmLock.ID); err != nil {
		t.Fatalf("force release: %v", err)
	}

	stray, err := f.svc.CreateCharacter(ctx, f.gm, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "The Stray", Kind: character.KindPrimary,
	})
	if err != nil {
		t.Fatalf("create orphan character: %v", err)
	}
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, stray.ID); err != nil {
		t.Fatalf("add occupant: %v", err)
	}

	// Controller-less characters are acquirable by the privileged actor too.
	if _, err := f.svc.AcquireLock(ctx, f.gm, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: stray.ID,
	}); err != nil {
		t.Fatalf("privileged acquire on orphan: %v", err)
	}
}

func TestAcquireLock_ExpiredLeaseIsReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	// An expired lease is logically absent; even its nominal holder gets a
	// fresh grant, not a renewal.
	f.clock.Advance(11 * time.Minute)
	replacement, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	if err != nil {
		t.Fatalf("acquire over expired lease: %v", err)
	}
	if replacement.ID == first.ID {
		t.Fatal("expired lease should be replaced, not renewed")
	}
	if replacement.HolderUserID != f.alice.UserID {
		t.Fatalf("holder = %s, want alice", replacement.HolderUserID)
	}
}

func TestHeartbeat_ExpiredLockIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	lock, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	f.clock.Advance(5 * time.Minute)
	beat, err := f.svc.HeartbeatLock(ctx, f.alice, f.campaignID, lock.ID)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if !beat.ExpiresAt.After(lock.ExpiresAt) {
		t.Fatal("heartbeat should extend the lease")
	}

	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.HeartbeatLock(ctx, f.alice, f.campaignID, lock.ID)
	wantCode(t, err, apperrors.CodeLockNotFound)
}

func TestReleaseLock_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	}); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	if err := f.svc.ReleaseLock(ctx, f.alice, f.campaignID, f.sceneID, f.charA); err != nil {
		t.Fatalf("release lock: %v", err)
	}
	// Releasing again is a no-op, not an error.
	if err := f.svc.ReleaseLock(ctx, f.alice, f.campaignID, f.sceneID, f.charA); err != nil {
		t.Fatalf("second release: %v", err)
	}
}

func TestListLocks_MasksHiddenHolders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ghost, err := f.svc.CreateCharacter(ctx, f.gm, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "The Stranger", Kind: character.KindSecondary,
	})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, ghost.ID); err != nil {
		t.Fatalf("add occupant: %v", err)
	}

	if _, err := f.svc.AcquireLock(ctx, f.gm, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: ghost.ID, Hidden: true,
	}); err != nil {
		t.Fatalf("acquire hidden lock: %v", err)
	}

	forBob, err := f.svc.ListLocks(ctx, f.bob, f.campaignID)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(forBob) != 1 || forBob[0].HolderUserID != "" {
		t.Fatalf("hidden lock should be masked for bob, got %+v", forBob)
	}

	forGM, err := f.svc.ListLocks(ctx, f.gm, f.campaignID)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(forGM) != 1 || forGM[0].HolderUserID != f.gm.UserID {
		t.Fatalf("privileged listing should keep the holder, got %+v", forGM)
	}
}

func postAs(t *testing.T, f *fixture, identity Identity, characterID, body string) storage.PostRecord {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.AcquireLock(ctx, identity, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: characterID,
	}); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	record, err := f.svc.CreatePost(ctx, identity, CreatePostInput{
		CampaignID:        f.campaignID,
		SceneID:           f.sceneID,
		AuthorCharacterID: characterID,
		Body:              body,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return record
}

func TestCreatePost_LocksPredecessorAndConsumesLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := postAs(t, f, f.alice, f.charA, "Ashka opens the gate.")
	second := postAs(t, f, f.bob, f.charB, "Brann follows.")

	got, err := f.svc.GetPost(ctx, f.gm, f.campaignID, first.ID, "")
	if err != nil {
		t.Fatalf("get first post: %v", err)
	}
	if !got.Locked {
		t.Fatal("predecessor should be locked once a successor lands")
	}

	latest, err := f.svc.GetPost(ctx, f.gm, f.campaignID, second.ID, "")
	if err != nil {
		t.Fatalf("get second post: %v", err)
	}
	if latest.Locked {
		t.Fatal("newest post should stay unlocked")
	}

	// Posting consumed bob's lease.
	locks, err := f.svc.ListLocks(ctx, f.gm, f.campaignID)
	if err != nil {
		t.Fatalf("list locks: %v", err)
	}
	if len(locks) != 0 {
		t.Fatalf("locks after posting = %+v, want none", locks)
	}

	// The author cannot edit a locked post; the privileged actor can.
	_, err = f.svc.EditPost(ctx, f.alice, f.campaignID, first.ID, "rewrite")
	wantCode(t, err, apperrors.CodePostLocked)
	if _, err := f.svc.EditPost(ctx, f.gm, f.campaignID, first.ID, "gm rewrite"); err != nil {
		t.Fatalf("privileged edit: %v", err)
	}
}

func TestCreatePost_ClearsSoftPassesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StatePassed); err != nil {
		t.Fatalf("alice passes: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.bob, f.campaignID, f.charB, pass.StateHardPassed); err != nil {
		t.Fatalf("bob hard passes: %v", err)
	}

	postAs(t, f, f.gm, f.charA, "The narrator moves Ashka along.")

	occupants, err := f.svc.store.ListSceneOccupants(ctx, f.sceneID)
	if err != nil {
		t.Fatalf("list occupants: %v", err)
	}
	states := make(map[string]pass.State)
	for _, o := range occupants {
		states[o.CharacterID] = o.PassState
	}
	if states[f.charB] != pass.StateHardPassed {
		t.Fatalf("bob = %v, hard pass should survive activity", states[f.charB])
	}
}

func TestCreatePost_AuthorSoftPassClearedByOtherAuthors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StatePassed); err != nil {
		t.Fatalf("alice passes: %v", err)
	}
	postAs(t, f, f.bob, f.charB, "Brann shouts a warning.")

	occupant, err := f.svc.store.GetOccupant(ctx, f.sceneID, f.charA)
	if err != nil {
		t.Fatalf("get occupant: %v", err)
	}
	if occupant.PassState != pass.StateNone {
		t.Fatalf("alice = %v, soft pass should clear when another occupant posts", occupant.PassState)
	}
}

func TestDeletePost_UnlocksPredecessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := postAs(t, f, f.alice, f.charA, "Ashka opens the gate.")
	second := postAs(t, f, f.bob, f.charB, "Brann follows.")

	if err := f.svc.DeletePost(ctx, f.gm, f.campaignID, second.ID); err != nil {
		t.Fatalf("delete post: %v", err)
	}

	got, err := f.svc.GetPost(ctx, f.gm, f.campaignID, first.ID, "")
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if got.Locked {
		t.Fatal("deleting the newest post should unlock its predecessor")
	}
}

func TestWitnesses_FrozenAtSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := postAs(t, f, f.alice, f.charA, "Ashka whispers.")
	if !record.WitnessesAssigned {
		t.Fatal("write-phase post should freeze witnesses immediately")
	}
	want := []string{f.charA, f.charB}
	if f.charB < f.charA {
		want = []string{f.charB, f.charA}
	}
	if !reflect.DeepEqual(record.WitnessIDs, want) {
		t.Fatalf("witnesses = %v, want occupants %v", record.WitnessIDs, want)
	}

	// A character joining later does not gain visibility of the old post.
	charC, err := f.svc.CreateCharacter(ctx, f.gm, CreateCharacterInput{
		CampaignID: f.campaignID, Name: "Cole", Kind: character.KindSecondary, ControllerUserID: "carol",
	})
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, charC.ID); err != nil {
		t.Fatalf("add occupant: %v", err)
	}

	carol := Identity{UserID: "carol"}
	_, err = f.svc.GetPost(ctx, carol, f.campaignID, record.ID, charC.ID)
	wantCode(t, err, apperrors.CodePostNotFound)

	// Leaving the scene does not revoke what was already witnessed.
	if err := f.svc.RemoveOccupant(ctx, f.gm, f.campaignID, f.sceneID, f.charB); err != nil {
		t.Fatalf("remove occupant: %v", err)
	}
	if _, err := f.svc.GetPost(ctx, f.bob, f.campaignID, record.ID, f.charB); err != nil {
		t.Fatalf("bob should keep witnessed visibility: %v", err)
	}
}

func TestHiddenPost_EmptySentinelAndReveal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hidden, err := f.svc.CreatePost(ctx, f.gm, CreatePostInput{
		CampaignID: f.campaignID,
		SceneID:    f.sceneID,
		Body:       "Something stirs unseen.",
		Hidden:     true,
	})
	if err != nil {
		t.Fatalf("create hidden post: %v", err)
	}
	if !hidden.WitnessesAssigned || len(hidden.WitnessIDs) != 0 {
		t.Fatalf("hidden post should carry the assigned empty set, got %+v", hidden)
	}

	_, err = f.svc.GetPost(ctx, f.alice, f.campaignID, hidden.ID, f.charA)
	wantCode(t, err, apperrors.CodePostNotFound)

	revealed, err := f.svc.RevealPost(ctx, f.gm, f.campaignID, hidden.ID, []string{f.charA})
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if revealed.Hidden {
		t.Fatal("revealed post should no longer be hidden")
	}
	if _, err := f.svc.GetPost(ctx, f.alice, f.campaignID, hidden.ID, f.charA); err != nil {
		t.Fatalf("alice should see the revealed post: %v", err)
	}

	// Reveal is permanent and single-shot.
	_, err = f.svc.RevealPost(ctx, f.gm, f.campaignID, hidden.ID, []string{f.charB})
	wantCode(t, err, apperrors.CodePostRevealed)
}

func TestPhaseRoundTrip_WithDeferredWitnesses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Back to Resolve so the narrator can stage the next beat.
	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StateHardPassed); err != nil {
		t.Fatalf("alice passes: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.bob, f.campaignID, f.charB, pass.StateHardPassed); err != nil {
		t.Fatalf("bob passes: %v", err)
	}
	if _, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin resolve: %v", err)
	}

	// A default-witnessed narrator post during Resolve defers assignment.
	staged, err := f.svc.CreatePost(ctx, f.gm, CreatePostInput{
		CampaignID: f.campaignID,
		SceneID:    f.sceneID,
		Body:       "Dawn breaks over the gate.",
	})
	if err != nil {
		t.Fatalf("narrator post: %v", err)
	}
	if staged.WitnessesAssigned {
		t.Fatal("resolve-phase post should defer witness assignment")
	}
	if _, err := f.svc.GetPost(ctx, f.alice, f.campaignID, staged.ID, f.charA); !apperrors.Is(err, apperrors.CodePostNotFound) {
		t.Fatalf("unassigned post should be invisible to players, got %v", err)
	}

	// The witness transaction at Resolve -> Write freezes it.
	record, err := f.svc.BeginWrite(ctx, f.gm, f.campaignID)
	if err != nil {
		t.Fatalf("begin write: %v", err)
	}
	if record.Phase != campaign.PhaseWrite {
		t.Fatalf("phase = %v, want write", record.Phase)
	}
	if record.PhaseExpiresAt == nil {
		t.Fatal("write phase should carry a window deadline")
	}

	assigned, err := f.svc.GetPost(ctx, f.gm, f.campaignID, staged.ID, "")
	if err != nil {
		t.Fatalf("get staged post: %v", err)
	}
	if !assigned.WitnessesAssigned || len(assigned.WitnessIDs) != 2 {
		t.Fatalf("witness transaction should assign occupants, got %+v", assigned)
	}

	// Pass states reset with the new phase.
	occupants, err := f.svc.store.ListSceneOccupants(ctx, f.sceneID)
	if err != nil {
		t.Fatalf("list occupants: %v", err)
	}
	for _, o := range occupants {
		if o.PassState != pass.StateNone {
			t.Fatalf("%s = %v after begin write, want none", o.CharacterID, o.PassState)
		}
	}
}

func TestBeginResolve_GuardFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Live lock blocks the transition.
	if _, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	}); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	_, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID)
	wantCode(t, err, apperrors.CodeActiveLocksExist)
	if err := f.svc.ReleaseLock(ctx, f.alice, f.campaignID, f.sceneID, f.charA); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	// Pending roll blocks it next.
	requested, err := f.svc.RequestRoll(ctx, f.gm, RequestRollInput{
		CampaignID:  f.campaignID,
		SceneID:     f.sceneID,
		CharacterID: f.charA,
		Dice:        []dice.DiceSpec{{Sides: 20, Count: 1}},
	})
	if err != nil {
		t.Fatalf("request roll: %v", err)
	}
	_, err = f.svc.BeginResolve(ctx, f.gm, f.campaignID)
	wantCode(t, err, apperrors.CodePendingRollsExist)
	if _, err := f.svc.ResolveRoll(ctx, f.alice, f.campaignID, requested.ID); err != nil {
		t.Fatalf("resolve roll: %v", err)
	}

	// Unready occupants block it last.
	_, err = f.svc.BeginResolve(ctx, f.gm, f.campaignID)
	wantCode(t, err, apperrors.CodeNotAllReady)

	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StatePassed); err != nil {
		t.Fatalf("alice passes: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.bob, f.campaignID, f.charB, pass.StateHardPassed); err != nil {
		t.Fatalf("bob passes: %v", err)
	}

	record, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID)
	if err != nil {
		t.Fatalf("begin resolve: %v", err)
	}
	if record.Phase != campaign.PhaseResolve {
		t.Fatalf("phase = %v, want resolve", record.Phase)
	}
	if record.PhaseExpiresAt != nil {
		t.Fatal("resolve phase should clear the window deadline")
	}
}

func TestBeginResolve_OrphansDoNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Orphan bob's character; only alice owes readiness now.
	if _, err := f.svc.AssignController(ctx, f.gm, f.campaignID, f.charB, ""); err != nil {
		t.Fatalf("orphan character: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StateHardPassed); err != nil {
		t.Fatalf("alice passes: %v", err)
	}

	if _, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin resolve with orphan: %v", err)
	}
}

func TestBeginResolve_WindowExpiryAutoPasses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Nobody passes; the write window simply runs out.
	f.clock.Advance(73 * time.Hour)

	if _, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin resolve after expiry: %v", err)
	}

	occupants, err := f.svc.store.ListSceneOccupants(ctx, f.sceneID)
	if err != nil {
		t.Fatalf("list occupants: %v", err)
	}
	for _, o := range occupants {
		if o.PassState != pass.StateHardPassed {
			t.Fatalf("%s = %v, expiry should hard-pass everyone", o.CharacterID, o.PassState)
		}
	}
}

func TestWriteWindowExpiry_BlocksPosting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Advance(73 * time.Hour)
	_, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	wantCode(t, err, apperrors.CodeTimeGateExpired)
}

func TestPendingRollBlocksBothPassTiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requested, err := f.svc.RequestRoll(ctx, f.gm, RequestRollInput{
		CampaignID:  f.campaignID,
		SceneID:     f.sceneID,
		CharacterID: f.charA,
		Dice:        []dice.DiceSpec{{Sides: 6, Count: 2}},
	})
	if err != nil {
		t.Fatalf("request roll: %v", err)
	}

	err = f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StatePassed)
	wantCode(t, err, apperrors.CodeRollPending)
	err = f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StateHardPassed)
	wantCode(t, err, apperrors.CodeRollPending)

	// Un-passing stays allowed, and bob is unaffected.
	if err := f.svc.ClearPass(ctx, f.alice, f.campaignID, f.charA); err != nil {
		t.Fatalf("clear pass: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.bob, f.campaignID, f.charB, pass.StatePassed); err != nil {
		t.Fatalf("bob passes: %v", err)
	}

	resolved, err := f.svc.ResolveRoll(ctx, f.alice, f.campaignID, requested.ID)
	if err != nil {
		t.Fatalf("resolve roll: %v", err)
	}
	if resolved.Result == nil || resolved.Result.Total < 2 || resolved.Result.Total > 12 {
		t.Fatalf("result = %+v, out of range for 2d6", resolved.Result)
	}

	if err := f.svc.SetPass(ctx, f.alice, f.campaignID, f.charA, pass.StatePassed); err != nil {
		t.Fatalf("pass after resolution: %v", err)
	}
}

func TestResolveRoll_OnlyControllerMayRoll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requested, err := f.svc.RequestRoll(ctx, f.gm, RequestRollInput{
		CampaignID:  f.campaignID,
		SceneID:     f.sceneID,
		CharacterID: f.charA,
		Dice:        []dice.DiceSpec{{Sides: 20, Count: 1}},
	})
	if err != nil {
		t.Fatalf("request roll: %v", err)
	}

	_, err = f.svc.ResolveRoll(ctx, f.bob, f.campaignID, requested.ID)
	wantCode(t, err, apperrors.CodeNotController)

	if _, err := f.svc.ResolveRoll(ctx, f.alice, f.campaignID, requested.ID); err != nil {
		t.Fatalf("controller resolve: %v", err)
	}
	_, err = f.svc.ResolveRoll(ctx, f.alice, f.campaignID, requested.ID)
	wantCode(t, err, apperrors.CodeRollResolved)
}

func TestSceneCapacity_EvictionAndFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The fixture made scene 1; fill up to the cap.
	for i := 1; i < scene.MaxPerCampaign; i++ {
		if _, err := f.svc.CreateScene(ctx, f.gm, CreateSceneInput{
			CampaignID: f.campaignID, Name: "Filler",
		}); err != nil {
			t.Fatalf("create scene %d: %v", i, err)
		}
	}

	// At the cap with no archived candidate, creation fails.
	_, err := f.svc.CreateScene(ctx, f.gm, CreateSceneInput{CampaignID: f.campaignID, Name: "One Too Many"})
	wantCode(t, err, apperrors.CodeNoEvictionCandidate)

	// Archive the original scene; the next creation evicts it.
	if _, err := f.svc.ArchiveScene(ctx, f.gm, f.campaignID, f.sceneID); err != nil {
		t.Fatalf("archive scene: %v", err)
	}
	result, err := f.svc.CreateScene(ctx, f.gm, CreateSceneInput{CampaignID: f.campaignID, Name: "Fresh Start"})
	if err != nil {
		t.Fatalf("create scene with eviction: %v", err)
	}
	if result.EvictedSceneID != f.sceneID {
		t.Fatalf("evicted = %s, want %s", result.EvictedSceneID, f.sceneID)
	}

	count, err := f.svc.store.CountScenes(ctx, f.campaignID)
	if err != nil {
		t.Fatalf("count scenes: %v", err)
	}
	if count != scene.MaxPerCampaign {
		t.Fatalf("count = %d, want cap %d", count, scene.MaxPerCampaign)
	}
}

func TestPauseBlocksWriting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.PauseCampaign(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	_, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	})
	wantCode(t, err, apperrors.CodeCampaignPaused)

	// Paused also blocks Resolve -> Write.
	if err := f.svc.SetPass(ctx, f.gm, f.campaignID, f.charA, pass.StateHardPassed); err != nil {
		t.Fatalf("gm passes for alice: %v", err)
	}
	if err := f.svc.SetPass(ctx, f.gm, f.campaignID, f.charB, pass.StateHardPassed); err != nil {
		t.Fatalf("gm passes for bob: %v", err)
	}
	if _, err := f.svc.BeginResolve(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin resolve while paused: %v", err)
	}
	_, err = f.svc.BeginWrite(ctx, f.gm, f.campaignID)
	wantCode(t, err, apperrors.CodeCampaignPaused)

	if _, err := f.svc.UnpauseCampaign(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := f.svc.BeginWrite(ctx, f.gm, f.campaignID); err != nil {
		t.Fatalf("begin write after unpause: %v", err)
	}
}

func TestForceResolve_SkipsGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: f.sceneID, CharacterID: f.charA,
	}); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}

	record, err := f.svc.ForceResolve(ctx, f.gm, f.campaignID)
	if err != nil {
		t.Fatalf("force resolve: %v", err)
	}
	if record.Phase != campaign.PhaseResolve {
		t.Fatalf("phase = %v, want resolve", record.Phase)
	}
}

func TestListScenes_VisibilityForCharacters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A second scene alice has never seen.
	other, err := f.svc.CreateScene(ctx, f.gm, CreateSceneInput{CampaignID: f.campaignID, Name: "The Crypt"})
	if err != nil {
		t.Fatalf("create scene: %v", err)
	}

	visible, err := f.svc.ListScenes(ctx, f.alice, f.campaignID, f.charA)
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if len(visible) != 1 || visible[0].ID != f.sceneID {
		t.Fatalf("alice should only see her scene, got %+v", visible)
	}

	all, err := f.svc.ListScenes(ctx, f.gm, f.campaignID, "")
	if err != nil {
		t.Fatalf("list scenes privileged: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("privileged should see both scenes, got %d", len(all))
	}

	// Witnessing a post in the scene makes it exist for alice even after she
	// moves there and back out.
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, other.Scene.ID, f.charA); err != nil {
		t.Fatalf("move alice: %v", err)
	}
	if _, err := f.svc.AcquireLock(ctx, f.alice, AcquireLockInput{
		CampaignID: f.campaignID, SceneID: other.Scene.ID, CharacterID: f.charA,
	}); err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	if _, err := f.svc.CreatePost(ctx, f.alice, CreatePostInput{
		CampaignID:        f.campaignID,
		SceneID:           other.Scene.ID,
		AuthorCharacterID: f.charA,
		Body:              "Ashka descends.",
	}); err != nil {
		t.Fatalf("post in crypt: %v", err)
	}
	if err := f.svc.AddOccupant(ctx, f.gm, f.campaignID, f.sceneID, f.charA); err != nil {
		t.Fatalf("move alice back: %v", err)
	}

	visible, err = f.svc.ListScenes(ctx, f.alice, f.campaignID, f.charA)
	if err != nil {
		t.Fatalf("list scenes: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("alice should now see both scenes, got %+v", visible)
	}
}

func TestGetPost_ViewerMustBeControlled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record := postAs(t, f, f.alice, f.charA, "Ashka pockets the signet ring.")

	// Naming someone else's witness character does not grant their view.
	mallory := Identity{UserID: "mallory"}
	_, err := f.svc.GetPost(ctx, mallory, f.campaignID, record.ID, f.charA)
	wantCode(t, err, apperrors.CodeNotController)

	// An unknown viewer character fails the same way as any missing character.
	_, err = f.svc.GetPost(ctx, mallory, f.campaignID, record.ID, "no-such-character")
	wantCode(t, err, apperrors.CodeCharacterNotFound)

	// The actual controller still reads through their own character.
	got, err := f.svc.GetPost(ctx, f.alice, f.campaignID, record.ID, f.charA)
	if err != nil {
		t.Fatalf("controller read: %v", err)
	}
	if got.Body != record.Body {
		t.Fatalf("body = %q, want %q", got.Body, record.Body)
	}
}

// putPostFault fails the Nth PutPost once armed, leaving every other store
// operation untouched.
type putPostFault struct {
	armed  bool
	calls  int
	failAt int
	err    error
}

type faultingStore struct {
	storage.Store
	fault *putPostFault
}

func (s *faultingStore) PutPost(ctx context.Context, record storage.PostRecord) error {
	if s.fault.armed {
		s.fault.calls++
		if s.fault.calls == s.fault.failAt {
			return s.fault.err
		}
	}
	return s.Store.PutPost(ctx, record)
}

func (s *faultingStore) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	return s.Store.WithTx(ctx, func(tx storage.Store) error {
		return fn(&faultingStore{Store: tx, fault: s.fault})
	})
}

func TestWitnessTransaction_AllOrNothing(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "story.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	fault := &putPostFault{failAt: 2, err: errors.New("simulated write failure")}
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc := New(&faultingStore{Store: store, fault: fault}, Options{
		Logger: zerolog.Nop(),
		Now:    clock.Now,
	})
	gm := Identity{UserID: "gm-user", Privileged: true}
	ctx := context.Background()

	campaignRecord, err := svc.CreateCampaign(ctx, gm, "Ember Vigil")
	if err != nil {
		t.Fatalf("create campaign: %v", err)
	}

	// Two scenes, each with an occupant and a deferred narrator post staged
	// during the initial Resolve phase.
	var postIDs []string
	for _, name := range []string{"North Gate", "South Gate"} {
		sceneResult, err := svc.CreateScene(ctx, gm, CreateSceneInput{
			CampaignID: campaignRecord.ID, Name: name,
		})
		if err != nil {
			t.Fatalf("create scene %s: %v", name, err)
		}
		occupant, err := svc.CreateCharacter(ctx, gm, CreateCharacterInput{
			CampaignID: campaignRecord.ID, Name: "Watcher of " + name, Kind: character.KindSecondary,
		})
		if err != nil {
			t.Fatalf("create character: %v", err)
		}
		if err := svc.AddOccupant(ctx, gm, campaignRecord.ID, sceneResult.Scene.ID, occupant.ID); err != nil {
			t.Fatalf("add occupant: %v", err)
		}

		staged, err := svc.CreatePost(ctx, gm, CreatePostInput{
			CampaignID: campaignRecord.ID,
			SceneID:    sceneResult.Scene.ID,
			Body:       "The bells ring over " + name + ".",
		})
		if err != nil {
			t.Fatalf("stage post: %v", err)
		}
		if staged.WitnessesAssigned {
			t.Fatal("resolve-phase post should defer witness assignment")
		}
		postIDs = append(postIDs, staged.ID)
	}

	// Fail the second witness write: the first scene's assignment must roll
	// back with it.
	fault.armed = true
	if _, err := svc.BeginWrite(ctx, gm, campaignRecord.ID); err == nil {
		t.Fatal("begin write should fail when a witness write fails")
	}
	fault.armed = false

	for _, postID := range postIDs {
		got, err := svc.GetPost(ctx, gm, campaignRecord.ID, postID, "")
		if err != nil {
			t.Fatalf("get post: %v", err)
		}
		if got.WitnessesAssigned || len(got.WitnessIDs) != 0 {
			t.Fatalf("post %s kept a partial assignment: %+v", postID, got)
		}
	}
	after, err := svc.GetCampaign(ctx, gm, campaignRecord.ID)
	if err != nil {
		t.Fatalf("get campaign: %v", err)
	}
	if after.Phase != campaign.PhaseResolve {
		t.Fatalf("phase = %s, want resolve after rollback", after.Phase)
	}

	// With the fault cleared the retry commits the whole batch.
	if _, err := svc.BeginWrite(ctx, gm, campaignRecord.ID); err != nil {
		t.Fatalf("retry begin write: %v", err)
	}
	for _, postID := range postIDs {
		got, err := svc.GetPost(ctx, gm, campaignRecord.ID, postID, "")
		if err != nil {
			t.Fatalf("get post: %v", err)
		}
		if !got.WitnessesAssigned || len(got.WitnessIDs) != 1 {
			t.Fatalf("post %s missed the witness transaction: %+v", postID, got)
		}
	}
}
