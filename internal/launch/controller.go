// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/update"
	"vlaunch-cli/internal/version"
)

// ErrLaunchFailed indicates the chosen version directory could not produce a
// runnable process. This is the single fatal condition of the whole flow:
// there is no further automatic fallback, the installation needs repair.
var ErrLaunchFailed = errors.New("launch failed")

type (
	// ConfirmFunc decides whether an available update should be installed.
	ConfirmFunc func(ctx context.Context, current, latest version.Tag) (bool, error)

	// Options configures a launch flow. Zero values mean: no entrypoint
	// override, default retention, interactive decline, default lock policy.
	Options struct {
		// ProgramID overrides the persisted record's program id when set.
		ProgramID string

		// ServerURL is recorded on promotion when no prior record exists.
		ServerURL string

		// Entrypoint is the executable filename searched for inside the
		// active version directory.
		Entrypoint string

		// RetainCount bounds the finalized version directories kept on disk.
		RetainCount int

		// AutoUpdate installs available updates without prompting.
		AutoUpdate bool

		// LockStaleAfter is the age past which an install lock is broken.
		LockStaleAfter time.Duration

		// CheckTimeout bounds the remote version check. The client's own
		// timeout is sized for downloads and is too generous for a check
		// that must never hold up a launch.
		CheckTimeout time.Duration

		// SkipCheck launches the installed version without contacting the
		// update server at all.
		SkipCheck bool

		// ConfirmUpdate is consulted for available updates when AutoUpdate is
		// off. Nil declines, keeping non-interactive runs on the installed
		// version.
		ConfirmUpdate ConfirmFunc

		// Progress receives download and install progress events.
		Progress update.ProgressFunc
	}

	// Controller drives the state machine over the version store, update
	// client, installer and swap coordinator.
	Controller struct {
		opts      Options
		store     *store.Store
		client    *update.Client
		installer *update.Installer
		coord     *update.Coordinator
		runner    Runner
		logger    *log.Logger
		state     State
	}

	// Result is the terminal outcome of a launch flow.
	Result struct {
		State   State
		Version version.Tag
		PID     int
		Updated bool
	}
)

// NewController wires a Controller. A nil runner spawns real detached
// processes; a nil logger falls back to the package default.
func NewController(s *store.Store, client *update.Client, runner Runner, opts Options, logger *log.Logger) *Controller {
	if runner == nil {
		runner = DetachedRunner{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		opts:      opts,
		store:     s,
		client:    client,
		installer: update.NewInstaller(client, s.Paths(), update.WithProgress(opts.Progress)),
		coord:     update.NewCoordinator(s, logger),
		runner:    runner,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Run executes the full check, update, launch flow and returns the terminal
// result. The returned error is non-nil only for ErrLaunchFailed; every
// update-phase failure is absorbed and the flow continues with the installed
// version.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	c.to(StateChecking)

	rec, installed := c.readRecord()
	var local version.Tag
	if installed {
		local = rec.Version
	}

	if c.opts.SkipCheck {
		c.to(StateUpToDate)
		return c.launch(rec, installed)
	}

	checkCtx := ctx
	if c.opts.CheckTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, c.opts.CheckTimeout)
		defer cancel()
	}
	check, err := c.client.Check(checkCtx, c.programID(rec), local)
	if err != nil {
		c.logger.Warn("update check failed, continuing with installed version", "err", err)
		c.to(StateCheckFailed)
		return c.launch(rec, installed)
	}

	if check.Descriptor == nil {
		c.to(StateUpToDate)
		return c.launch(rec, installed)
	}

	c.to(StateUpdateAvailable)
	c.logger.Info("update available", "current", local.String(), "latest", check.Latest.String())

	c.to(StatePrompting)
	if !c.decide(ctx, local, check.Latest) {
		c.to(StateDeclined)
		return c.launch(rec, installed)
	}
	c.to(StateAccepted)

	if newRec, ok := c.install(ctx, rec, *check.Descriptor); ok {
		rec, installed = newRec, true
	}
	return c.launch(rec, installed)
}

// readRecord loads the persisted current-version record. A corrupt record is
// logged distinctly but treated like a missing one, forcing a fresh install.
func (c *Controller) readRecord() (store.Record, bool) {
	rec, err := c.store.ReadCurrent()
	switch {
	case err == nil:
		return rec, true
	case errors.Is(err, store.ErrCorruptRecord):
		c.logger.Error("current-version record is corrupt, treating as not installed", "err", err)
		return store.Record{}, false
	case errors.Is(err, store.ErrNotInstalled):
		c.logger.Debug("no installed version")
		return store.Record{}, false
	default:
		c.logger.Error("reading current-version record", "err", err)
		return store.Record{}, false
	}
}

// programID prefers the configured id over the persisted one.
func (c *Controller) programID(rec store.Record) string {
	if c.opts.ProgramID != "" {
		return c.opts.ProgramID
	}
	return rec.ProgramID
}

// serverURL prefers the configured URL over the persisted one.
func (c *Controller) serverURL(rec store.Record) string {
	if c.opts.ServerURL != "" {
		return c.opts.ServerURL
	}
	return rec.ServerURL
}

// decide resolves the Prompting state to accepted or declined.
func (c *Controller) decide(ctx context.Context, current, latest version.Tag) bool {
	if c.opts.AutoUpdate {
		return true
	}
	if c.opts.ConfirmUpdate == nil {
		return false
	}

	accepted, err := c.opts.ConfirmUpdate(ctx, current, latest)
	if err != nil {
		c.logger.Warn("update prompt failed, declining", "err", err)
		return false
	}
	return accepted
}

// install runs the staged install under the cross-process install lock and
// promotes the result. It never fails the flow: on any error it reports false
// and the caller launches the prior version, which promotion has not touched.
func (c *Controller) install(ctx context.Context, prior store.Record, desc update.Descriptor) (store.Record, bool) {
	lock, err := store.AcquireInstallLock(c.store.Paths(), c.opts.LockStaleAfter)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			c.logger.Info("another launcher instance is installing, skipping update")
		} else {
			c.logger.Warn("could not acquire install lock, skipping update", "err", err)
		}
		return store.Record{}, false
	}
	defer func() {
		if err := lock.Release(); err != nil {
			c.logger.Warn("releasing install lock", "err", err)
		}
	}()

	sess, err := c.installer.Begin(desc)
	if err != nil {
		c.logger.Error("preparing staging directory", "err", err)
		return store.Record{}, false
	}

	c.to(StateDownloading)
	if err := sess.Download(ctx); err != nil {
		c.logger.Error("downloading update", "version", desc.Version.String(), "err", err)
		return store.Record{}, false
	}

	c.to(StateVerifying)
	if err := sess.Verify(); err != nil {
		c.logger.Error("update artifact failed verification", "version", desc.Version.String(), "err", err)
		return store.Record{}, false
	}

	c.to(StateInstalling)
	if err := sess.Expand(); err != nil {
		c.logger.Error("expanding update artifact", "version", desc.Version.String(), "err", err)
		return store.Record{}, false
	}
	if _, err := sess.Finalize(); err != nil {
		c.logger.Error("finalizing version directory", "version", desc.Version.String(), "err", err)
		return store.Record{}, false
	}

	c.to(StatePromoting)
	rec := store.Record{
		ProgramID: c.programID(prior),
		Version:   desc.Version,
		ServerURL: c.serverURL(prior),
	}
	if err := c.coord.Promote(rec); err != nil {
		// The finalized directory stays on disk; a later attempt can promote
		// it without re-downloading.
		c.logger.Error("promoting version", "version", desc.Version.String(), "err", err)
		return store.Record{}, false
	}

	c.to(StateCleaning)
	pruned, err := c.coord.Prune(desc.Version, c.opts.RetainCount)
	if err != nil {
		c.logger.Warn("retention pruning failed", "err", err)
	}
	for _, tag := range pruned {
		c.logger.Debug("pruned old version", "version", tag.String())
	}

	return rec, true
}

// launch resolves the active version directory and spawns its entrypoint.
func (c *Controller) launch(rec store.Record, installed bool) (Result, error) {
	c.to(StateLaunching)

	fail := func(err error) (Result, error) {
		c.to(StateLaunchFailed)
		return Result{State: StateLaunchFailed, Version: rec.Version}, err
	}

	if !installed {
		return fail(fmt.Errorf("%w: no installed version", ErrLaunchFailed))
	}

	dir := c.store.Paths().VersionDir(rec.Version)
	if !c.store.HasFinalized(rec.Version) {
		return fail(fmt.Errorf("%w: version directory %s is missing", ErrLaunchFailed, dir))
	}

	exe, err := FindEntrypoint(dir, c.opts.Entrypoint)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrLaunchFailed, err))
	}

	pid, err := c.runner.Start(exe, dir)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", ErrLaunchFailed, err))
	}

	c.to(StateRunning)
	c.logger.Info("launched", "version", rec.Version.String(), "pid", pid)
	return Result{State: StateRunning, Version: rec.Version, PID: pid}, nil
}

// to advances the state machine. Illegal transitions indicate a controller
// bug; they are logged loudly but still applied so the flow keeps a coherent
// notion of where it is.
func (c *Controller) to(next State) {
	if !ValidTransition(c.state, next) {
		c.logger.Error("illegal state transition", "from", string(c.state), "to", string(next))
	}
	c.logger.Debug("state transition", "from", string(c.state), "to", string(next))
	c.state = next
}
