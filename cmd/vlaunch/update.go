// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/tui"
	"vlaunch-cli/internal/update"
	"vlaunch-cli/internal/version"
)

// updateParams bundles the dependencies and flags for the update command.
type updateParams struct {
	stdout io.Writer
	stderr io.Writer
	env    *cmdEnv
	yes    bool // --yes: skip confirmation prompt
}

// newUpdateCommand creates the `vlaunch update` command, which installs the
// latest version without launching the application.
func newUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download and install the latest version",
		Long: `Download and install the latest version.

The artifact is downloaded into a staging directory, verified against
the server-reported digest and size, extracted, and atomically renamed
into place before the active-version record is rewritten. Old versions
beyond the retention count are pruned afterwards. The application is
not launched.`,
		Example: `  # Install the latest version, prompting first
  vlaunch update

  # Skip the confirmation prompt
  vlaunch update --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			yes, _ := cmd.Flags().GetBool("yes")

			env, err := newCmdEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			p := updateParams{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				env:    env,
				yes:    yes,
			}

			if err := runUpdate(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	return cmd
}

// runUpdate is the core update logic, separated from Cobra for testability.
//
// Flow:
//  1. Resolve identity and the installed version.
//  2. Ask the server for the latest version; stop if already up to date.
//  3. Confirm with the user (unless --yes or auto_update).
//  4. Under the install lock: download, verify, expand, finalize.
//  5. Promote the new version and prune old ones.
func runUpdate(ctx context.Context, p updateParams) error {
	env := p.env

	programID, serverURL, err := env.identity()
	if err != nil {
		return err
	}

	var local version.Tag
	prior, err := env.store.ReadCurrent()
	switch {
	case err == nil:
		local = prior.Version
	case errors.Is(err, store.ErrNotInstalled):
		// Fresh install.
	case errors.Is(err, store.ErrCorruptRecord):
		env.logger.Error("current-version record is corrupt, treating as not installed", "err", err)
	default:
		return err
	}

	client := update.NewClient(serverURL,
		update.WithTimeout(env.cfg.DownloadTimeout()),
		update.WithUserAgent("vlaunch/"+Version),
	)

	res, err := client.Check(ctx, programID, local)
	if err != nil {
		return fmt.Errorf("checking for update: %w", err)
	}
	if res.Descriptor == nil {
		fmt.Fprintln(p.stdout, SuccessStyle.Render("already up to date")+
			SubtitleStyle.Render(fmt.Sprintf(" (%s)", local)))
		return nil
	}

	if !p.yes && !env.cfg.AutoUpdate {
		accepted, err := tui.Confirm(tui.ConfirmOptions{
			Title:       fmt.Sprintf("Install version %s?", res.Latest),
			Description: fmt.Sprintf("download size: %s", formatSize(res.Descriptor.Size)),
			Default:     true,
		})
		if err != nil {
			return err
		}
		if !accepted {
			fmt.Fprintln(p.stdout, SubtitleStyle.Render("update declined"))
			return nil
		}
	}

	lock, err := store.AcquireInstallLock(env.paths, 0)
	if err != nil {
		if errors.Is(err, store.ErrLockHeld) {
			return errors.New("another launcher instance is installing; try again later")
		}
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			env.logger.Warn("releasing install lock", "err", err)
		}
	}()

	installer := update.NewInstaller(client, env.paths, update.WithProgress(progressPrinter(p.stderr)))
	if _, err := installer.Install(ctx, *res.Descriptor); err != nil {
		return fmt.Errorf("installing %s: %w", res.Latest, err)
	}

	coord := update.NewCoordinator(env.store, env.logger)
	rec := store.Record{ProgramID: programID, Version: res.Latest, ServerURL: serverURL}
	if err := coord.Promote(rec); err != nil {
		return fmt.Errorf("promoting %s: %w", res.Latest, err)
	}
	if _, err := coord.Prune(res.Latest, env.cfg.RetainCount); err != nil {
		env.logger.Warn("retention pruning failed", "err", err)
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render("installed ")+VersionStyle.Render(res.Latest.String()))
	return nil
}

// formatSize renders a byte count for the confirm prompt.
func formatSize(n int64) string {
	const mib = 1 << 20
	if n < mib {
		return fmt.Sprintf("%d KiB", n>>10)
	}
	return fmt.Sprintf("%.1f MiB", float64(n)/float64(mib))
}
