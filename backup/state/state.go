// Package state persists per-item backup state across restarts to prevent
// duplicate backups and to drive incremental change detection.
//
// The state document is written to a local file after every mutation and
// mirrored, best-effort, to the backup storage backend so it survives loss of
// the local volume.
package state

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/internal/clock"
	"github.com/gitvault/gitvault/repo/blob"
	"github.com/gitvault/gitvault/repo/logging"
)

var log = logging.Module("state")

// StateFileName is the name of the local state file within the data directory.
const StateFileName = "state.json"

// RepoState is the recorded state of a single tracked item. The field set is
// written atomically on every successful backup of the item.
type RepoState struct {
	// VersionToken is the opaque upstream value recorded at last backup.
	// Change detection is exact string inequality against the current
	// upstream token; it is a heuristic, not a content hash, so two
	// content-changing events resolving to the same token are missed.
	VersionToken string `json:"versionToken"`

	LastBackupTime time.Time `json:"lastBackupTime"`
	LastSnapshotID string    `json:"lastSnapshotId"`
}

// document is the persisted state document. The JSON layout is a stable
// contract; consumers must tolerate additional fields.
type document struct {
	Repositories map[string]RepoState `json:"repositories"`
	LastSyncTime time.Time            `json:"lastSyncTime,omitzero"`
	UpdatedAt    time.Time            `json:"updatedAt,omitzero"`
}

func emptyDocument() document {
	return document{Repositories: map[string]RepoState{}}
}

// Mirror is the remote copy of the state document, used to survive loss of
// local storage. Implemented by store.Store.
type Mirror interface {
	UploadState(ctx context.Context, data []byte) error
	DownloadState(ctx context.Context) ([]byte, error)
	StateExists(ctx context.Context) (bool, error)
}

// Options configures a state Manager.
type Options struct {
	// LocalPath is the path of the local state file.
	LocalPath string

	// Mirror is the optional remote state mirror.
	Mirror Mirror

	// DisableRemoteResetDetection turns off the policy of discarding local
	// state when the mirror holds no state object. By default the mirror's
	// absence outweighs local presence: once a mirror is configured, a
	// missing remote state object is taken as evidence the remote store was
	// reset or replaced and local tracking restarts from empty.
	DisableRemoteResetDetection bool

	// TimeNow overrides the clock, for tests.
	TimeNow func() time.Time
}

// Manager is the authoritative ledger for change detection and cross-restart
// bookkeeping. It has exactly one writer: the active backup run.
type Manager struct {
	mu sync.Mutex

	path    string
	mirror  Mirror
	timeNow func() time.Time

	doc document
}

// Open loads (or bootstraps) the state document and returns a Manager.
func Open(ctx context.Context, opt Options) (*Manager, error) {
	if opt.LocalPath == "" {
		return nil, errors.New("state file path must be specified")
	}

	timeNow := opt.TimeNow
	if timeNow == nil {
		timeNow = clock.Now
	}

	m := &Manager{
		path:    opt.LocalPath,
		mirror:  opt.Mirror,
		timeNow: timeNow,
		doc:     emptyDocument(),
	}

	if err := os.MkdirAll(filepath.Dir(opt.LocalPath), 0o700); err != nil {
		return nil, errors.Wrap(err, "error creating state directory")
	}

	if m.mirror != nil {
		m.reconcileWithMirror(ctx, opt.DisableRemoteResetDetection)
	}

	m.loadLocal(ctx)

	return m, nil
}

// reconcileWithMirror implements the startup half of the durability protocol:
// pull the mirrored document when the local file is missing, and discard the
// local file when the mirror holds no state object at all.
func (m *Manager) reconcileWithMirror(ctx context.Context, disableResetDetection bool) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		log(ctx).Infof("no local state found, checking mirror for saved state")

		data, err := m.mirror.DownloadState(ctx)

		switch {
		case errors.Is(err, blob.ErrBlobNotFound):
			log(ctx).Debugf("no state in mirror (first run)")
		case err != nil:
			log(ctx).Warnf("unable to restore state from mirror: %v", err)
		default:
			if err := atomic.WriteFile(m.path, bytes.NewReader(data)); err != nil {
				log(ctx).Warnf("unable to write restored state: %v", err)
			} else {
				log(ctx).Infof("state restored from mirror")
			}
		}

		return
	}

	if disableResetDetection {
		return
	}

	exists, err := m.mirror.StateExists(ctx)
	if err != nil {
		log(ctx).Warnf("unable to verify mirrored state: %v", err)
		return
	}

	if !exists {
		log(ctx).Warnf("local state exists but mirror has no state - remote storage was likely reset, discarding local state")

		if err := os.Remove(m.path); err != nil {
			log(ctx).Warnf("unable to discard local state: %v", err)
			return
		}

		log(ctx).Infof("local state discarded, starting fresh")
	}
}

// loadLocal reads the local state file. A missing or corrupt file yields
// empty state; corruption is logged but never fatal.
func (m *Manager) loadLocal(ctx context.Context) {
	m.doc = emptyDocument()

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log(ctx).Warnf("failed to read state file: %v", err)
		}

		return
	}

	var doc document

	if err := json.Unmarshal(data, &doc); err != nil {
		log(ctx).Warnf("failed to parse state file, starting fresh: %v", err)
		return
	}

	if doc.Repositories == nil {
		doc.Repositories = map[string]RepoState{}
	}

	m.doc = doc
}

// persistLocked writes the full state document locally (synchronously) and
// then mirrors it best-effort. Mirror failure never fails the local commit.
// Callers must hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) error {
	m.doc.UpdatedAt = m.timeNow()

	data, err := json.MarshalIndent(m.doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "error marshaling state")
	}

	if err := atomic.WriteFile(m.path, bytes.NewReader(data)); err != nil {
		return errors.Wrap(err, "error writing state file")
	}

	if m.mirror != nil {
		if err := m.mirror.UploadState(ctx, data); err != nil {
			log(ctx).Warnf("unable to mirror state: %v", err)
		} else {
			log(ctx).Debugf("state mirrored")
		}
	}

	return nil
}

// HasChanged returns true if the item was never recorded, has no stored
// token, or the stored token differs from the current one.
func (m *Manager) HasChanged(ctx context.Context, itemID, currentVersionToken string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.doc.Repositories[itemID]
	if !ok {
		log(ctx).Debugf("%v: no previous backup, needs backup", itemID)
		return true
	}

	if rs.VersionToken == "" {
		log(ctx).Debugf("%v: no version token in state, needs backup", itemID)
		return true
	}

	if rs.VersionToken != currentVersionToken {
		log(ctx).Debugf("%v: changed (was %v, now %v)", itemID, rs.VersionToken, currentVersionToken)
		return true
	}

	log(ctx).Debugf("%v: unchanged since %v", itemID, rs.LastBackupTime.Format(time.RFC3339))

	return false
}

// RecordSuccess updates the item's state after a successful backup and
// persists the full document.
func (m *Manager) RecordSuccess(ctx context.Context, itemID, versionToken, snapshotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.Repositories[itemID] = RepoState{
		VersionToken:   versionToken,
		LastBackupTime: m.timeNow(),
		LastSnapshotID: snapshotID,
	}

	return m.persistLocked(ctx)
}

// ProtectedSnapshots returns the set of snapshot IDs that are some item's
// most recent successful backup. Retention must never delete them.
func (m *Manager) ProtectedSnapshots() map[string]struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := map[string]struct{}{}

	for _, rs := range m.doc.Repositories {
		if rs.LastSnapshotID != "" {
			result[rs.LastSnapshotID] = struct{}{}
		}
	}

	return result
}

// LastSnapshotID returns the last recorded snapshot ID for an item.
func (m *Manager) LastSnapshotID(itemID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rs, ok := m.doc.Repositories[itemID]
	if !ok || rs.LastSnapshotID == "" {
		return "", false
	}

	return rs.LastSnapshotID, true
}

// TrackedItems returns a copy of the per-item state map.
func (m *Manager) TrackedItems() map[string]RepoState {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]RepoState, len(m.doc.Repositories))
	for k, v := range m.doc.Repositories {
		result[k] = v
	}

	return result
}

// LastSyncTime returns the completion time of the last successful run.
func (m *Manager) LastSyncTime() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.doc.LastSyncTime, !m.doc.LastSyncTime.IsZero()
}

// UpdateSyncTime records the current time as the last successful run time.
func (m *Manager) UpdateSyncTime(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc.LastSyncTime = m.timeNow()

	return m.persistLocked(ctx)
}

// MissedScheduledRun computes the most recent scheduled fire time strictly
// before now and reports whether the last successful run predates it. Used
// after a restart to catch up on a backup missed during downtime.
func (m *Manager) MissedScheduledRun(ctx context.Context, hour, minute int) bool {
	m.mu.Lock()
	lastSync := m.doc.LastSyncTime
	m.mu.Unlock()

	if lastSync.IsZero() {
		log(ctx).Infof("no previous backup found, backup recommended")
		return true
	}

	now := m.timeNow()

	lastScheduled := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.Before(lastScheduled) {
		lastScheduled = lastScheduled.AddDate(0, 0, -1)
	}

	if lastSync.Before(lastScheduled) {
		log(ctx).Infof("missed scheduled backup at %v, last sync was %v",
			lastScheduled.Format(time.RFC3339), lastSync.Format(time.RFC3339))
		return true
	}

	log(ctx).Debugf("no missed backup: last sync %v is after scheduled %v",
		lastSync.Format(time.RFC3339), lastScheduled.Format(time.RFC3339))

	return false
}

// Forget removes the state of a single item.
func (m *Manager) Forget(ctx context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.doc.Repositories[itemID]; !ok {
		return nil
	}

	delete(m.doc.Repositories, itemID)

	return m.persistLocked(ctx)
}

// Clear removes the local state file and resets in-memory state. The mirror
// is left untouched.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.doc = emptyDocument()

	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "error removing state file")
	}

	log(ctx).Debugf("cleared sync state")

	return nil
}
