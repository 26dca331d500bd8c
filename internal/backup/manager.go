// Package backup writes encrypted per-user note snapshots to object storage.
//
// A snapshot is the owner's full note list as JSON, gzip-compressed and then
// sealed with AES-256-GCM under a key derived from the master key. Objects are
// stored at backups/<ownerID>/<timestamp>.json.gz.enc so that keys sort by
// time within an owner.
package backup

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/kuitang/notewise/internal/crypto"
	"github.com/kuitang/notewise/internal/notes"
	"github.com/kuitang/notewise/internal/obs"
)

const (
	keyPrefix     = "backups/"
	keySuffix     = ".json.gz.enc"
	timeLayout    = "20060102T150405.000000000Z"
	contentType   = "application/octet-stream"
	formatVersion = 1
)

// ErrInvalidKey is returned for object keys outside the backup layout.
var ErrInvalidKey = errors.New("backup: invalid snapshot key")

// NoteLister reads every note of one owner.
type NoteLister interface {
	ListByOwner(ctx context.Context, ownerID string) ([]notes.Note, error)
}

// OwnerLister enumerates every account that may own notes.
type OwnerLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// NoteWriter is the note store a snapshot is restored into.
type NoteWriter interface {
	NoteLister
	Insert(ctx context.Context, note notes.Note) error
	Update(ctx context.Context, id string, mutate func(*notes.Note) error) (notes.Note, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore is the subset of s3client.Client used for snapshots.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, content []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ListKeys(ctx context.Context, prefix string) ([]string, error)
	DeleteObject(ctx context.Context, key string) error
}

// Snapshot is the decoded content of one backup object.
type Snapshot struct {
	Version int          `json:"version"`
	OwnerID string       `json:"ownerId"`
	TakenAt time.Time    `json:"takenAt"`
	Notes   []notes.Note `json:"notes"`
}

// Manager takes and restores snapshots.
type Manager struct {
	notes   NoteLister
	owners  OwnerLister
	objects ObjectStore
	key     []byte
	now     func() time.Time
}

// NewManager creates a backup manager. masterKey is the 32-byte server master
// key; the sealing key is derived from it.
func NewManager(noteStore NoteLister, owners OwnerLister, objects ObjectStore, masterKey []byte) (*Manager, error) {
	if len(masterKey) != crypto.KeySize {
		return nil, fmt.Errorf("backup: master key must be %d bytes, got %d", crypto.KeySize, len(masterKey))
	}
	return &Manager{
		notes:   noteStore,
		owners:  owners,
		objects: objects,
		key:     crypto.DeriveKey(masterKey, crypto.PurposeBackup),
		now:     time.Now,
	}, nil
}

// Snapshot stores the owner's current notes and returns the object key.
func (m *Manager) Snapshot(ctx context.Context, ownerID string) (string, error) {
	list, err := m.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("backup: list notes for %s: %w", ownerID, err)
	}

	snap := Snapshot{
		Version: formatVersion,
		OwnerID: ownerID,
		TakenAt: m.now().UTC(),
		Notes:   list,
	}
	sealed, err := m.encode(snap)
	if err != nil {
		return "", err
	}

	key := snapshotKey(ownerID, snap.TakenAt)
	if err := m.objects.PutObject(ctx, key, sealed, contentType); err != nil {
		return "", fmt.Errorf("backup: store %s: %w", key, err)
	}

	obs.From(ctx).Info("backup_snapshot", "owner_id", ownerID, "notes", len(list), "bytes", len(sealed), "key", key)
	return key, nil
}

// SnapshotAll snapshots every owner. It keeps going after a failure and
// returns the keys written together with the joined errors.
func (m *Manager) SnapshotAll(ctx context.Context) ([]string, error) {
	owners, err := m.owners.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: list owners: %w", err)
	}

	var keys []string
	var errs []error
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		key, err := m.Snapshot(ctx, ownerID)
		if err != nil {
			obs.From(ctx).Error("backup_snapshot_failed", "owner_id", ownerID, "error", err)
			errs = append(errs, err)
			continue
		}
		keys = append(keys, key)
	}
	return keys, errors.Join(errs...)
}

// Load reads, opens and decodes the snapshot stored at key.
func (m *Manager) Load(ctx context.Context, key string) (*Snapshot, error) {
	ownerID, _, err := parseKey(key)
	if err != nil {
		return nil, err
	}
	sealed, err := m.objects.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("backup: fetch %s: %w", key, err)
	}
	snap, err := m.decode(sealed)
	if err != nil {
		return nil, fmt.Errorf("backup: decode %s: %w", key, err)
	}
	if snap.OwnerID != ownerID {
		return nil, fmt.Errorf("backup: %s holds notes of %q", key, snap.OwnerID)
	}
	return snap, nil
}

// List returns the owner's snapshot keys, oldest first.
func (m *Manager) List(ctx context.Context, ownerID string) ([]string, error) {
	keys, err := m.objects.ListKeys(ctx, ownerPrefix(ownerID))
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", ownerID, err)
	}
	out := keys[:0]
	for _, key := range keys {
		if _, _, err := parseKey(key); err == nil {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Prune deletes all but the newest keep snapshots of the owner and returns
// how many were removed.
func (m *Manager) Prune(ctx context.Context, ownerID string, keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("backup: keep must be at least 1, got %d", keep)
	}
	keys, err := m.List(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	if len(keys) <= keep {
		return 0, nil
	}
	stale := keys[:len(keys)-keep]
	for i, key := range stale {
		if err := m.objects.DeleteObject(ctx, key); err != nil {
			return i, fmt.Errorf("backup: delete %s: %w", key, err)
		}
	}
	return len(stale), nil
}

// PruneAll prunes every owner down to keep snapshots. Like SnapshotAll it
// keeps going after a failure.
func (m *Manager) PruneAll(ctx context.Context, keep int) (int, error) {
	owners, err := m.owners.ListIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("backup: list owners: %w", err)
	}

	removed := 0
	var errs []error
	for _, ownerID := range owners {
		n, err := m.Prune(ctx, ownerID, keep)
		removed += n
		if err != nil {
			obs.From(ctx).Error("backup_prune_failed", "owner_id", ownerID, "error", err)
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// RestoreResult describes a completed Restore.
type RestoreResult struct {
	OwnerID   string
	SafetyKey string // snapshot of the owner's notes taken just before restoring
	Restored  int
	Removed   int
}

// Restore makes the owner's notes in dst equal to the snapshot at key. The
// current notes are snapshotted first, so a restore can itself be undone.
func (m *Manager) Restore(ctx context.Context, key string, dst NoteWriter) (*RestoreResult, error) {
	snap, err := m.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	safetyKey, err := m.Snapshot(ctx, snap.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("backup: safety snapshot before restore: %w", err)
	}

	current, err := dst.ListByOwner(ctx, snap.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("backup: list notes for %s: %w", snap.OwnerID, err)
	}
	existing := make(map[string]bool, len(current))
	for _, n := range current {
		existing[n.ID] = true
	}

	result := &RestoreResult{OwnerID: snap.OwnerID, SafetyKey: safetyKey}
	keep := make(map[string]bool, len(snap.Notes))
	for _, saved := range snap.Notes {
		if saved.OwnerID != snap.OwnerID {
			return result, fmt.Errorf("backup: %s: note %s belongs to %q", key, saved.ID, saved.OwnerID)
		}
		keep[saved.ID] = true
		if existing[saved.ID] {
			_, err = dst.Update(ctx, saved.ID, func(n *notes.Note) error {
				*n = saved.Clone()
				return nil
			})
		} else {
			err = dst.Insert(ctx, saved)
		}
		if err != nil {
			return result, fmt.Errorf("backup: restore note %s: %w", saved.ID, err)
		}
		result.Restored++
	}
	for _, n := range current {
		if keep[n.ID] {
			continue
		}
		if err := dst.Delete(ctx, n.ID); err != nil && !errors.Is(err, notes.ErrNoteNotFound) {
			return result, fmt.Errorf("backup: remove note %s: %w", n.ID, err)
		}
		result.Removed++
	}

	obs.From(ctx).Info("backup_restore", "owner_id", snap.OwnerID, "key", key,
		"restored", result.Restored, "removed", result.Removed, "safety_key", safetyKey)
	return result, nil
}

func (m *Manager) encode(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(snap); err != nil {
		return nil, fmt.Errorf("backup: encode snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("backup: compress snapshot: %w", err)
	}
	sealed, err := crypto.Seal(m.key, buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("backup: seal snapshot: %w", err)
	}
	return sealed, nil
}

func (m *Manager) decode(sealed []byte) (*Snapshot, error) {
	compressed, err := crypto.Open(m.key, sealed)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	if snap.Version != formatVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	return &snap, nil
}

func ownerPrefix(ownerID string) string {
	return keyPrefix + ownerID + "/"
}

func snapshotKey(ownerID string, takenAt time.Time) string {
	return ownerPrefix(ownerID) + takenAt.UTC().Format(timeLayout) + keySuffix
}

func parseKey(key string) (ownerID string, takenAt time.Time, err error) {
	rest, ok := strings.CutPrefix(key, keyPrefix)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	ownerID, stamp, ok := strings.Cut(rest, "/")
	if !ok || ownerID == "" {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	stamp, ok = strings.CutSuffix(stamp, keySuffix)
	if !ok {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	takenAt, err = time.Parse(timeLayout, stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return ownerID, takenAt, nil
}
