package backup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/kuitang/notewise/internal/db"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/s3client"
	"github.com/kuitang/notewise/internal/testdb"
)

var testMasterKey = bytes.Repeat([]byte{0x24}, 32)

type fixture struct {
	db      *db.DB
	svc     *notes.Service
	objects *s3client.Client
	manager *Manager
	clock   *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := testdb.MustNew(t)
	objects := s3client.TestClient(t, "notewise-backups")
	manager, err := NewManager(database.Notes(), database.Users(), objects, testMasterKey)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	now := time.Date(2026, 2, 3, 4, 5, 6, 789, time.UTC)
	manager.now = func() time.Time { return now }
	return &fixture{
		db:      database,
		svc:     notes.NewService(database.Notes()),
		objects: objects,
		manager: manager,
		clock:   &now,
	}
}

func (f *fixture) addUser(t *testing.T, id string) {
	t.Helper()
	now := time.Now().UTC()
	err := f.db.Users().Create(context.Background(), db.User{
		ID: id, Name: id, Email: id + "@example.com", PasswordHash: "$fake$x", CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
}

func (f *fixture) addNote(t *testing.T, owner, title string, tags ...notes.Tag) notes.Note {
	t.Helper()
	n, err := f.svc.Create(context.Background(), owner, notes.CreateNoteParams{Title: title, Content: "body of " + title, Tags: tags})
	if err != nil {
		t.Fatalf("create note: %v", err)
	}
	return *n
}

func assertSameNotes(t *testing.T, got, want []notes.Note) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d notes, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.ID != w.ID || g.Title != w.Title || g.Content != w.Content || g.OwnerID != w.OwnerID ||
			g.IsPinned != w.IsPinned || g.IsArchived != w.IsArchived ||
			!g.CreatedAt.Equal(w.CreatedAt) || !g.UpdatedAt.Equal(w.UpdatedAt) || len(g.Tags) != len(w.Tags) {
			t.Fatalf("note %d mismatch:\n got  %+v\n want %+v", i, g, w)
		}
		for j := range w.Tags {
			if g.Tags[j] != w.Tags[j] {
				t.Fatalf("note %d tag %d: got %+v, want %+v", i, j, g.Tags[j], w.Tags[j])
			}
		}
	}
}

func TestManager_SnapshotLoadRoundtrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "alice", "Groceries", notes.Tag{ID: "t1", Name: "home", Color: "green"})
	f.addNote(t, "alice", "Taxes")
	f.addNote(t, "bob", "Not alice's")

	key, err := f.manager.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if key != "backups/alice/20260203T040506.000000789Z.json.gz.enc" {
		t.Fatalf("unexpected key %q", key)
	}

	raw, err := f.objects.GetObject(ctx, key)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if bytes.Contains(raw, []byte("Groceries")) {
		t.Fatal("snapshot object contains plaintext")
	}

	snap, err := f.manager.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want, err := f.svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if snap.OwnerID != "alice" || !snap.TakenAt.Equal(*f.clock) {
		t.Fatalf("unexpected snapshot header: %+v", snap)
	}
	assertSameNotes(t, snap.Notes, want)
}

func TestManager_LoadWithWrongKeyFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addNote(t, "alice", "Secret")

	key, err := f.manager.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	other, err := NewManager(f.db.Notes(), f.db.Users(), f.objects, bytes.Repeat([]byte{0x25}, 32))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if _, err := other.Load(ctx, key); err == nil {
		t.Fatal("expected Load with a different master key to fail")
	}
}

func TestManager_SnapshotAllListPrune(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob", "carol"} {
		f.addUser(t, id)
	}
	f.addNote(t, "alice", "A")
	f.addNote(t, "bob", "B")

	for i := 0; i < 3; i++ {
		keys, err := f.manager.SnapshotAll(ctx)
		if err != nil {
			t.Fatalf("SnapshotAll failed: %v", err)
		}
		if len(keys) != 3 {
			t.Fatalf("expected 3 snapshots, got %v", keys)
		}
		*f.clock = f.clock.Add(time.Minute)
	}

	keys, err := f.manager.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("expected 3 alice snapshots, got %v", keys)
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not oldest first: %v", keys)
		}
	}

	// Carol has no notes but still gets an empty snapshot
	carol, err := f.manager.List(ctx, "carol")
	if err != nil || len(carol) != 3 {
		t.Fatalf("carol snapshots = %v, %v", carol, err)
	}
	snap, err := f.manager.Load(ctx, carol[0])
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Notes) != 0 {
		t.Fatalf("expected empty snapshot, got %d notes", len(snap.Notes))
	}

	removed, err := f.manager.Prune(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("Prune removed %d, want 2", removed)
	}
	left, err := f.manager.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(left) != 1 || left[0] != keys[2] {
		t.Fatalf("expected only the newest snapshot to remain, got %v", left)
	}

	if _, err := f.manager.Prune(ctx, "alice", 0); err == nil {
		t.Fatal("expected error for keep=0")
	}
}

func TestManager_PruneAllKeepsNewest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, id := range []string{"alice", "bob"} {
		f.addUser(t, id)
	}
	f.addNote(t, "alice", "A")

	var newest []string
	for i := 0; i < 4; i++ {
		keys, err := f.manager.SnapshotAll(ctx)
		if err != nil {
			t.Fatalf("SnapshotAll failed: %v", err)
		}
		newest = keys
		*f.clock = f.clock.Add(time.Minute)
	}

	removed, err := f.manager.PruneAll(ctx, 1)
	if err != nil {
		t.Fatalf("PruneAll failed: %v", err)
	}
	if removed != 6 {
		t.Fatalf("PruneAll removed %d, want 6", removed)
	}
	for i, owner := range []string{"alice", "bob"} {
		left, err := f.manager.List(ctx, owner)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(left) != 1 || left[0] != newest[i] {
			t.Fatalf("%s snapshots = %v, want [%s]", owner, left, newest[i])
		}
	}

	if _, err := f.manager.PruneAll(ctx, 0); err == nil {
		t.Fatal("expected error for keep=0")
	}
}

func TestManager_RestoreReplacesOwnerNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := f.addNote(t, "alice", "Groceries", notes.Tag{ID: "t1", Name: "home", Color: "green"})
	f.addNote(t, "alice", "Taxes")
	bobs := f.addNote(t, "bob", "Not alice's")

	key, err := f.manager.Snapshot(ctx, "alice")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	want, err := f.svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	// Diverge: edit one note, delete another, add a third
	if _, err := f.svc.Update(ctx, "alice", kept.ID, notes.UpdateNoteParams{Title: ptr("Renamed"), Tags: &[]notes.Tag{}}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	for _, n := range want {
		if n.Title == "Taxes" {
			if err := f.svc.Delete(ctx, "alice", n.ID); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
		}
	}
	f.addNote(t, "alice", "Written later")
	*f.clock = f.clock.Add(time.Minute)

	result, err := f.manager.Restore(ctx, key, f.db.Notes())
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.OwnerID != "alice" || result.Restored != 2 || result.Removed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}

	got, err := f.svc.List(ctx, "alice")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	assertSameNotes(t, got, want)

	if _, err := f.svc.Get(ctx, "bob", bobs.ID); err != nil {
		t.Fatalf("other owners' notes must be untouched: %v", err)
	}

	safety, err := f.manager.Load(ctx, result.SafetyKey)
	if err != nil {
		t.Fatalf("Load safety snapshot failed: %v", err)
	}
	if len(safety.Notes) != 2 {
		t.Fatalf("safety snapshot holds %d notes, want 2", len(safety.Notes))
	}
}

func TestManager_RestoreRejectsBadKey(t *testing.T) {
	f := newFixture(t)
	if _, err := f.manager.Restore(context.Background(), "notes/a.json", f.db.Notes()); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

type failingLister struct{ fail string }

func (l failingLister) ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error) {
	if ownerID == l.fail {
		return nil, errors.New("disk on fire")
	}
	return []notes.Note{}, nil
}

type staticOwners []string

func (o staticOwners) ListIDs(context.Context) ([]string, error) { return o, nil }

func TestManager_SnapshotAllContinuesAfterFailure(t *testing.T) {
	objects := s3client.TestClient(t, "partial")
	manager, err := NewManager(failingLister{fail: "bob"}, staticOwners{"alice", "bob", "carol"}, objects, testMasterKey)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	keys, err := manager.SnapshotAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk on fire") {
		t.Fatalf("expected joined error, got %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected alice and carol snapshots, got %v", keys)
	}
}

func TestManager_LoadRejectsForeignKeys(t *testing.T) {
	f := newFixture(t)
	for _, key := range []string{"", "notes/a.json", "backups/alice", "backups/alice/bad.json.gz.enc", "backups//20260203T040506.000000789Z.json.gz.enc"} {
		if _, err := f.manager.Load(context.Background(), key); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("Load(%q): expected ErrInvalidKey, got %v", key, err)
		}
	}
}

func testSnapshotKey_Roundtrip(t *rapid.T) {
	owner := rapid.StringMatching(`[a-z0-9-]{1,36}`).Draw(t, "owner")
	nanos := rapid.Int64Range(0, 4102444800*int64(time.Second)).Draw(t, "nanos")
	takenAt := time.Unix(0, nanos).UTC()

	key := snapshotKey(owner, takenAt)
	gotOwner, gotTime, err := parseKey(key)
	if err != nil {
		t.Fatalf("parseKey(%q) failed: %v", key, err)
	}
	if gotOwner != owner || !gotTime.Equal(takenAt) {
		t.Fatalf("parseKey(%q) = %q, %v; want %q, %v", key, gotOwner, gotTime, owner, takenAt)
	}
}

func TestSnapshotKey_Roundtrip(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSnapshotKey_Roundtrip)
}

func FuzzSnapshotKey_Roundtrip(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testSnapshotKey_Roundtrip))
}

func TestSnapshotKey_SortsByTime(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	prev := snapshotKey("u", base)
	for i := 1; i < 50; i++ {
		next := snapshotKey("u", base.Add(time.Duration(i*i)*time.Millisecond))
		if prev >= next {
			t.Fatalf("%s should sort before %s", prev, next)
		}
		prev = next
	}
}
