package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"

	"github.com/gitvault/gitvault/backup"
	"github.com/gitvault/gitvault/backup/manifest"
	"github.com/gitvault/gitvault/backup/retention"
	"github.com/gitvault/gitvault/backup/state"
	"github.com/gitvault/gitvault/backup/store"
	"github.com/gitvault/gitvault/notification"
	"github.com/gitvault/gitvault/repo/blob"
)

// Engine bundles the connected storage and the components built on it for the
// duration of one command.
type Engine struct {
	Storage   blob.Storage
	Store     *store.Store
	State     *state.Manager
	Notifier  *notification.Manager
	Retention *retention.Manager

	// Runner is nil unless a manifest was provided.
	Runner *backup.Runner

	lock *flock.Flock
}

// openEngine connects to storage and wires up the backup components. The data
// directory is locked for the lifetime of the engine so two processes never
// share the same local state file.
func (a *App) openEngine(ctx context.Context) (*Engine, error) {
	if err := os.MkdirAll(a.dataDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "unable to create data directory")
	}

	lock := flock.New(filepath.Join(a.dataDir, "gitvault.lock"))

	locked, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "unable to acquire data directory lock")
	}

	if !locked {
		return nil, errors.Errorf("data directory %v is in use by another gitvault process", a.dataDir)
	}

	st, err := a.storage.connect(ctx)
	if err != nil {
		lock.Unlock() //nolint:errcheck
		return nil, err
	}

	eng, err := a.buildEngine(ctx, st)
	if err != nil {
		st.Close(ctx) //nolint:errcheck
		lock.Unlock() //nolint:errcheck

		return nil, err
	}

	eng.lock = lock

	return eng, nil
}

func (a *App) buildEngine(ctx context.Context, st blob.Storage) (*Engine, error) {
	bs, err := store.New(st, a.namespace)
	if err != nil {
		return nil, err
	}

	sm, err := state.Open(ctx, state.Options{
		LocalPath:                   filepath.Join(a.dataDir, state.StateFileName),
		Mirror:                      bs,
		DisableRemoteResetDetection: a.disableResetDetection,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := a.notify.buildManager(ctx, a.namespace)
	if err != nil {
		return nil, err
	}

	rm, err := retention.NewManager(bs, sm.ProtectedSnapshots, a.retainCount)
	if err != nil {
		return nil, err
	}

	eng := &Engine{
		Storage:   st,
		Store:     bs,
		State:     sm,
		Notifier:  notifier,
		Retention: rm,
	}

	if a.manifestPath != "" {
		src := manifest.NewSource(a.manifestPath)

		eng.Runner = &backup.Runner{
			Source:    src,
			Producer:  src,
			Store:     bs,
			State:     sm,
			Retention: rm,
			WorkDir:   filepath.Join(a.dataDir, "work"),
		}

		if notifier != nil {
			eng.Runner.Notifier = notifier
		}
	}

	return eng, nil
}

// requireRunner returns the engine's runner or an error when no manifest was
// configured.
func (e *Engine) requireRunner() (*backup.Runner, error) {
	if e.Runner == nil {
		return nil, errors.New("--manifest must be provided for backup runs")
	}

	return e.Runner, nil
}

// Close releases the data directory lock and the storage connection.
func (e *Engine) Close(ctx context.Context) {
	if err := e.Storage.Close(ctx); err != nil {
		log(ctx).Warnf("unable to close storage: %v", err)
	}

	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			log(ctx).Warnf("unable to release lock: %v", err)
		}
	}
}
