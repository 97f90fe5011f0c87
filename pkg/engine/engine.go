// Package engine reconciles the desired HUD catalog with the target root on
// disk. It is the only component that mutates the catalog or the visible
// directory namespace.
//
// Concurrency contract: at most one in-flight operation per HUD identifier;
// a second request for the same identifier is rejected immediately with
// OPERATION_IN_PROGRESS. Operations on distinct identifiers run
// concurrently, with downloads bounded by a transfer semaphore. An install
// becomes visible through a single directory rename, so the game client
// never observes a half-extracted HUD.
package engine

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tf2hud/hudman/pkg/archive"
	"github.com/tf2hud/hudman/pkg/catalog"
	"github.com/tf2hud/hudman/pkg/config"
	"github.com/tf2hud/hudman/pkg/errors"
	"github.com/tf2hud/hudman/pkg/fetch"
	"github.com/tf2hud/hudman/pkg/index"
	"github.com/tf2hud/hudman/pkg/internal/hashutil"
	"github.com/tf2hud/hudman/pkg/logging"
	"github.com/tf2hud/hudman/pkg/paths"
	"github.com/tf2hud/hudman/pkg/state"
	"github.com/tf2hud/hudman/pkg/types"
	"lukechampine.com/blake3"
)

// eventBufferSize bounds the event channel. Events are advisory; when no
// consumer keeps up they are dropped rather than stalling operations.
const eventBufferSize = 128

// Engine owns the catalog and executes operations against the target root.
type Engine struct {
	fs      types.FS
	paths   paths.Paths
	fetcher *fetch.Fetcher
	saver   *state.Saver
	indexer *index.Client
	cfg     *config.Config
	logger  zerolog.Logger

	// mu guards catalog, inflight, and closed. Renames into the visible
	// namespace happen under mu so directory-name claims are race free.
	mu       sync.Mutex
	catalog  *catalog.Catalog
	inflight map[string]*Operation
	closed   bool

	sem    chan struct{}
	events chan types.Event
	wg     sync.WaitGroup
}

// New builds an Engine: loads persisted state, reconciles it against the
// directories actually present under the target root, and sweeps any staging
// leftovers from a previous run.
func New(fs types.FS, p paths.Paths, cfg *config.Config) (*Engine, error) {
	logger := logging.GetLogger("engine")

	saver := state.NewSaver(fs, p.StateFilePath())
	persisted, err := saver.Load()
	if err != nil {
		// A malformed state file is not fatal: the scan below rebuilds
		// what can be rebuilt from the directories on disk.
		logger.Warn().Err(err).Msg("State file unreadable, rebuilding from disk")
		persisted = state.PersistedState{}
	}

	cat, err := catalog.Scan(fs, p.TargetRoot(), persisted)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "failed to scan target root")
	}

	transfers := cfg.MaxConcurrentTransfers
	if transfers < 1 {
		transfers = 1
	}

	e := &Engine{
		fs:    fs,
		paths: p,
		fetcher: fetch.New(fetch.Options{
			StagingDir: p.StagingDir(),
			MaxBytes:   cfg.MaxDownloadBytes,
			Timeout:    cfg.FetchTimeout,
		}),
		saver:    saver,
		indexer:  index.New(cfg.FetchTimeout),
		cfg:      cfg,
		logger:   logger,
		catalog:  cat,
		inflight: make(map[string]*Operation),
		sem:      make(chan struct{}, transfers),
		events:   make(chan types.Event, eventBufferSize),
	}

	e.sweepStaging()

	if cat.Dirty() {
		e.mu.Lock()
		e.persistLocked()
		e.mu.Unlock()
	}

	return e, nil
}

// Events returns the engine's notification channel. It is closed by Close.
func (e *Engine) Events() <-chan types.Event { return e.events }

// Snapshot returns a copy of every catalog entry, sorted by identifier.
func (e *Engine) Snapshot() []catalog.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Entries()
}

// Lookup returns a copy of the entry for id.
func (e *Engine) Lookup(id string) (catalog.Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Lookup(id)
}

// Install fetches, extracts and commits the HUD identified by id. It returns
// immediately with an Operation handle; rejection reasons (unknown id,
// already installed, operation in flight) are returned synchronously.
func (e *Engine) Install(ctx context.Context, id string) (*Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New(errors.ErrInternal, "engine is closed")
	}
	entry, ok := e.catalog.Lookup(id)
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "unknown hud %q", id)
	}
	if entry.IsInstalled() {
		return nil, errors.Newf(errors.ErrAlreadyInstalled, "hud %q is already installed", id)
	}
	if entry.Descriptor.Source.IsZero() {
		return nil, errors.Newf(errors.ErrSourceUnreachable, "hud %q has no source", id)
	}
	if _, busy := e.inflight[id]; busy {
		return nil, errors.Newf(errors.ErrOperationInProgress, "an operation on %q is already in progress", id)
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := newOperation(id, types.OpInstall, cancel)
	e.inflight[id] = op

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.complete(op, e.runInstall(opCtx, entry.Descriptor))
	}()

	return op, nil
}

// Uninstall removes the installed HUD identified by id.
func (e *Engine) Uninstall(ctx context.Context, id string) (*Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New(errors.ErrInternal, "engine is closed")
	}
	entry, ok := e.catalog.Lookup(id)
	if !ok || !entry.IsInstalled() {
		return nil, errors.Newf(errors.ErrNotFound, "hud %q is not installed", id)
	}
	if _, busy := e.inflight[id]; busy {
		return nil, errors.Newf(errors.ErrOperationInProgress, "an operation on %q is already in progress", id)
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := newOperation(id, types.OpUninstall, cancel)
	e.inflight[id] = op

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.complete(op, e.runUninstall(opCtx, *entry.Installed))
	}()

	return op, nil
}

// SwitchActive points the active-HUD marker at the installed HUD identified
// by id. A failed switch leaves the previous marker in place.
func (e *Engine) SwitchActive(ctx context.Context, id string) (*Operation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.New(errors.ErrInternal, "engine is closed")
	}
	entry, ok := e.catalog.Lookup(id)
	if !ok {
		return nil, errors.Newf(errors.ErrNotFound, "unknown hud %q", id)
	}
	if !entry.IsInstalled() {
		return nil, errors.Newf(errors.ErrNotInstalled, "hud %q is not installed", id)
	}
	if _, busy := e.inflight[id]; busy {
		return nil, errors.Newf(errors.ErrOperationInProgress, "an operation on %q is already in progress", id)
	}

	opCtx, cancel := context.WithCancel(ctx)
	op := newOperation(id, types.OpSwitchActive, cancel)
	e.inflight[id] = op

	dirName := entry.Installed.DirName
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.complete(op, e.writeActiveMarker(opCtx, dirName))
	}()

	return op, nil
}

// ActiveID returns the identifier of the HUD the active marker points at,
// or "" when no marker is set or it points at nothing we manage.
func (e *Engine) ActiveID() string {
	data, err := e.fs.ReadFile(e.paths.ActiveMarkerPath())
	if err != nil {
		return ""
	}
	dirName := string(data)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, entry := range e.catalog.Entries() {
		if entry.Installed != nil && entry.Installed.DirName == dirName {
			return entry.Descriptor.ID
		}
	}
	return ""
}

// AddHud registers a descriptor without installing it. An existing entry
// for the same identifier gets its descriptor replaced; an existing
// installation is kept.
func (e *Engine) AddHud(desc types.HudDescriptor) error {
	if desc.ID == "" {
		return errors.New(errors.ErrInternal, "descriptor has no id")
	}
	if desc.Source.IsZero() {
		return errors.Newf(errors.ErrSourceUnreachable, "hud %q has no source", desc.ID)
	}

	// Local archives are pinned by digest at registration, so a swapped
	// file is caught at install time.
	if desc.Source.Kind == types.SourceLocal && desc.Checksum == "" {
		digest, err := hashutil.FileDigest(desc.Source.Location)
		if err != nil {
			e.logger.Warn().Err(err).Str("id", desc.ID).Msg("Cannot digest local archive, skipping checksum pin")
		} else {
			desc.Checksum = digest
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New(errors.ErrInternal, "engine is closed")
	}
	e.catalog.Apply(catalog.AddDescriptor(desc))
	e.persistLocked()
	e.emit(types.CatalogChanged{})
	return nil
}

// RemoveHud forgets a HUD that is not installed.
func (e *Engine) RemoveHud(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New(errors.ErrInternal, "engine is closed")
	}
	entry, ok := e.catalog.Lookup(id)
	if !ok {
		return errors.Newf(errors.ErrNotFound, "unknown hud %q", id)
	}
	if entry.IsInstalled() {
		return errors.Newf(errors.ErrAlreadyInstalled, "hud %q is installed; uninstall it first", id)
	}
	if _, busy := e.inflight[id]; busy {
		return errors.Newf(errors.ErrOperationInProgress, "an operation on %q is already in progress", id)
	}

	e.catalog.Apply(catalog.RemoveEntry(id))
	e.persistLocked()
	e.emit(types.CatalogChanged{})
	return nil
}

// Discover fetches and extracts a package without installing it, and
// returns the HUD names found inside. Nothing touches the visible
// namespace; all intermediate files are cleaned up before returning.
func (e *Engine) Discover(ctx context.Context, source types.Source) ([]string, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCancelled, "discover cancelled")
	}

	staged, err := e.fetcher.Fetch(ctx, source, "", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = e.fs.Remove(staged) }()

	extractDir := filepath.Join(e.paths.StagingDir(), fmt.Sprintf("x-discover-%d", time.Now().UnixNano()))
	if err := archive.Extract(staged, extractDir); err != nil {
		return nil, err
	}
	defer func() { _ = e.fs.RemoveAll(extractDir) }()

	huds, err := archive.ScanPackage(extractDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(huds))
	for _, hud := range huds {
		names = append(names, hud.Name)
	}
	return names, nil
}

// Refresh merges the remote index into the catalog. An unreachable index is
// degraded to a warning: the locally known HUDs remain usable.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.cfg.IndexURL == "" {
		e.logger.Debug().Msg("No index URL configured, skipping refresh")
		return nil
	}

	descriptors, err := e.indexer.Fetch(ctx, e.cfg.IndexURL)
	if err != nil {
		if errors.IsErrorCode(err, errors.ErrCancelled) {
			return err
		}
		e.logger.Warn().Err(err).Msg("Index unreachable, keeping locally known huds")
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.New(errors.ErrInternal, "engine is closed")
	}
	var mutations []catalog.Mutation
	for _, desc := range descriptors {
		if entry, ok := e.catalog.Lookup(desc.ID); ok && entry.IsInstalled() {
			// Installed entries win over the index until reinstalled.
			continue
		}
		mutations = append(mutations, catalog.AddDescriptor(desc))
	}
	if len(mutations) > 0 {
		e.catalog.Apply(mutations...)
		e.persistLocked()
		e.emit(types.CatalogChanged{})
	}
	return nil
}

// Close cancels in-flight operations, waits for them, sweeps the staging
// namespace, makes a final save attempt if state is dirty, and closes the
// event channel.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	for _, op := range e.inflight {
		op.cancel()
	}
	e.mu.Unlock()

	e.wg.Wait()
	e.sweepStaging()

	e.mu.Lock()
	var err error
	if e.catalog.Dirty() {
		if saveErr := e.saver.Save(e.catalog.ToPersisted()); saveErr != nil {
			err = saveErr
		} else {
			e.catalog.MarkClean()
		}
	}
	e.mu.Unlock()

	close(e.events)
	return err
}

// runInstall executes the fetch → extract → commit pipeline for one HUD.
func (e *Engine) runInstall(ctx context.Context, desc types.HudDescriptor) error {
	done := logging.LogOperationStart(e.logger, "install "+desc.ID)
	defer done()

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), errors.ErrCancelled, "install cancelled")
	}

	e.emit(types.OperationProgress{ID: desc.ID, Phase: types.StateFetching, Fraction: 0})
	staged, err := e.fetcher.Fetch(ctx, desc.Source, desc.Checksum, func(got, total int64) {
		fraction := -1.0
		if total > 0 {
			fraction = float64(got) / float64(total)
		}
		e.emit(types.OperationProgress{
			ID: desc.ID, Phase: types.StateFetching,
			Fraction: fraction, BytesDone: got, BytesTotal: total,
		})
	})
	if err != nil {
		return err
	}
	defer func() { _ = e.fs.Remove(staged) }()

	e.emit(types.OperationProgress{ID: desc.ID, Phase: types.StateExtracting, Fraction: -1})
	extractDir := filepath.Join(e.paths.StagingDir(), fmt.Sprintf("x-%s-%d", desc.ID, time.Now().UnixNano()))
	if err := archive.Extract(staged, extractDir); err != nil {
		return err
	}
	defer func() { _ = e.fs.RemoveAll(extractDir) }()

	hudDir, err := archive.SelectHudDir(extractDir, desc.ID)
	if err != nil {
		return err
	}

	// Cancellation checkpoint: past this point the install commits.
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrCancelled, "install cancelled")
	}

	return e.commit(desc, hudDir)
}

// commit renames the extracted HUD directory into the visible namespace,
// claiming a directory name under the lock so concurrent installs cannot
// race for it, then records and persists the installation.
func (e *Engine) commit(desc types.HudDescriptor, hudDir string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	dirName, err := e.claimDirNameLocked(desc.ID)
	if err != nil {
		return err
	}

	target := filepath.Join(e.paths.TargetRoot(), dirName)
	if err := e.fs.Rename(hudDir, target); err != nil {
		return errors.Wrapf(err, errors.ErrInternal, "failed to commit hud %q", desc.ID)
	}

	installed := types.InstalledHud{
		HudDescriptor: desc,
		DirName:       dirName,
		InstalledAt:   time.Now().UTC(),
		SizeBytes:     e.treeSize(target),
	}
	e.catalog.Apply(catalog.SetInstalled(installed))
	e.persistLocked()
	e.emit(types.CatalogChanged{})

	e.logger.Info().Str("id", desc.ID).Str("dir", dirName).Msg("Hud installed")
	return nil
}

// claimDirNameLocked picks the visible directory name for an install: the
// HUD id, or the id suffixed with a short hash when the plain name is held
// by a foreign directory or another HUD. Both taken means a genuinely
// conflicting target and the install fails rather than touching it.
func (e *Engine) claimDirNameLocked(id string) (string, error) {
	if !e.dirNameTakenLocked(id) {
		return id, nil
	}
	suffixed := id + "-" + shortHash(id)
	if !e.dirNameTakenLocked(suffixed) {
		e.logger.Warn().Str("id", id).Str("dir", suffixed).Msg("Directory name taken, using suffixed name")
		return suffixed, nil
	}
	return "", errors.Newf(errors.ErrTargetExists, "directory %q already exists and is not managed", id)
}

func (e *Engine) dirNameTakenLocked(name string) bool {
	if e.catalog.DirNameTaken(name) {
		return true
	}
	// A directory can appear behind the catalog's back (the user unpacked
	// something there mid-session). Never overwrite it.
	_, err := e.fs.Stat(filepath.Join(e.paths.TargetRoot(), name))
	return err == nil
}

// runUninstall moves the installed directory into the staging namespace (one
// rename, so the HUD disappears atomically) and then deletes it.
func (e *Engine) runUninstall(ctx context.Context, installed types.InstalledHud) error {
	done := logging.LogOperationStart(e.logger, "uninstall "+installed.ID)
	defer done()

	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrCancelled, "uninstall cancelled")
	}

	visible := filepath.Join(e.paths.TargetRoot(), installed.DirName)
	doomed := filepath.Join(e.paths.StagingDir(), fmt.Sprintf("rm-%s-%d", installed.DirName, time.Now().UnixNano()))

	if err := e.fs.MkdirAll(e.paths.StagingDir(), 0755); err != nil {
		return errors.Wrap(err, errors.ErrUninstallFailed, "failed to create staging directory")
	}
	if err := e.fs.Rename(visible, doomed); err != nil {
		return errors.Wrapf(err, errors.ErrUninstallFailed, "failed to remove hud %q", installed.ID)
	}
	if err := e.fs.RemoveAll(doomed); err != nil {
		// The directory is already out of the visible namespace; the
		// staging sweep picks it up later.
		e.logger.Warn().Err(err).Str("dir", doomed).Msg("Failed to delete uninstalled hud, sweep will retry")
	}

	e.clearActiveMarkerIfPointsAt(installed.DirName)

	e.mu.Lock()
	e.catalog.Apply(catalog.ClearInstalled(installed.ID))
	e.persistLocked()
	e.emit(types.CatalogChanged{})
	e.mu.Unlock()

	e.logger.Info().Str("id", installed.ID).Msg("Hud uninstalled")
	return nil
}

// writeActiveMarker atomically replaces the active marker with dirName.
func (e *Engine) writeActiveMarker(ctx context.Context, dirName string) error {
	if ctx.Err() != nil {
		return errors.Wrap(ctx.Err(), errors.ErrCancelled, "switch cancelled")
	}

	marker := e.paths.ActiveMarkerPath()
	tmp := marker + ".tmp"
	if err := e.fs.WriteFile(tmp, []byte(dirName), 0644); err != nil {
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to write active marker")
	}
	if err := e.fs.Rename(tmp, marker); err != nil {
		_ = e.fs.Remove(tmp)
		return errors.Wrap(err, errors.ErrPersistenceFailed, "failed to write active marker")
	}

	e.logger.Info().Str("dir", dirName).Msg("Active hud switched")
	return nil
}

func (e *Engine) clearActiveMarkerIfPointsAt(dirName string) {
	marker := e.paths.ActiveMarkerPath()
	data, err := e.fs.ReadFile(marker)
	if err != nil || string(data) != dirName {
		return
	}
	if err := e.fs.Remove(marker); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to clear active marker")
	}
}

// complete moves an operation out of the in-flight table and publishes its
// terminal state.
func (e *Engine) complete(op *Operation, err error) {
	e.mu.Lock()
	delete(e.inflight, op.id)
	e.mu.Unlock()

	if err != nil {
		e.logger.Error().Err(err).Str("id", op.id).Str("op", string(op.kind)).Msg("Operation failed")
		e.emit(types.OperationProgress{ID: op.id, Phase: types.StateFailed})
	}
	op.finish(err)
	e.emit(types.OperationCompleted{ID: op.id, Op: op.kind, Err: err})
}

// persistLocked saves the full catalog snapshot. Persistence failure is not
// fatal: the catalog stays dirty and the next save retries the whole
// snapshot. Callers hold mu.
func (e *Engine) persistLocked() {
	if err := e.saver.Save(e.catalog.ToPersisted()); err != nil {
		e.logger.Warn().Err(err).Msg("Failed to persist state, will retry on next change")
		e.emit(types.PersistenceWarning{Err: err})
		return
	}
	e.catalog.MarkClean()
}

// emit publishes an event without ever blocking an operation.
func (e *Engine) emit(ev types.Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug().Msg("Event channel full, dropping event")
	}
}

// sweepStaging clears everything under the staging namespace. Called at
// startup and shutdown; anything in there is a leftover by definition.
func (e *Engine) sweepStaging() {
	staging := e.paths.StagingDir()
	entries, err := e.fs.ReadDir(staging)
	if err != nil {
		return
	}
	for _, entry := range entries {
		leftover := filepath.Join(staging, entry.Name())
		if err := e.fs.RemoveAll(leftover); err != nil {
			e.logger.Warn().Err(err).Str("path", leftover).Msg("Failed to sweep staging leftover")
		} else {
			e.logger.Debug().Str("path", leftover).Msg("Swept staging leftover")
		}
	}
}

// treeSize sums the file sizes under root. Size is informational; an
// unreadable subtree just contributes zero.
func (e *Engine) treeSize(root string) int64 {
	entries, err := e.fs.ReadDir(root)
	if err != nil {
		return 0
	}
	var total int64
	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if entry.IsDir() {
			total += e.treeSize(path)
			continue
		}
		if info, err := e.fs.Lstat(path); err == nil {
			total += info.Size()
		}
	}
	return total
}

func shortHash(id string) string {
	sum := blake3.Sum256([]byte(id))
	return hex.EncodeToString(sum[:4])
}
