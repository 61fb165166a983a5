// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vlaunch-cli/internal/launch"
	"vlaunch-cli/internal/tui"
	"vlaunch-cli/internal/update"
	"vlaunch-cli/internal/version"
)

// launchParams bundles the dependencies and flags for the launch flow,
// keeping runLaunch testable without a real Cobra command.
type launchParams struct {
	stdout   io.Writer
	stderr   io.Writer
	env      *cmdEnv
	yes      bool // --yes: install available updates without prompting
	noUpdate bool // --no-update: skip the remote check entirely
}

// newLaunchCommand creates the `vlaunch launch` command. Bare `vlaunch` runs
// the same flow.
func newLaunchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Check for updates, then launch the application",
		Long: `Check for updates, then launch the application.

The flow reads the installed version record, asks the update server for
the latest version, and offers to install a newer release before
spawning the application. A failed check, a declined update, or any
install failure falls back to launching the installed version; only a
spawn failure is fatal.`,
		Example: `  # Check, maybe update, then launch
  vlaunch launch

  # Install any available update without prompting
  vlaunch launch --yes

  # Launch immediately without contacting the server
  vlaunch launch --no-update`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunchCommand(cmd)
		},
	}

	cmd.Flags().BoolP("yes", "y", false, "Install available updates without prompting")
	cmd.Flags().Bool("no-update", false, "Skip the update check and launch the installed version")

	return cmd
}

// runLaunchCommand wires flags and environment into runLaunch. It is shared
// by the launch subcommand and the bare root invocation.
func runLaunchCommand(cmd *cobra.Command) error {
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	yes, _ := cmd.Flags().GetBool("yes")
	noUpdate, _ := cmd.Flags().GetBool("no-update")

	env, err := newCmdEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	p := launchParams{
		stdout:   cmd.OutOrStdout(),
		stderr:   cmd.ErrOrStderr(),
		env:      env,
		yes:      yes,
		noUpdate: noUpdate,
	}

	if err := runLaunch(cmd.Context(), p); err != nil {
		fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

// runLaunch is the core launch flow, separated from Cobra for testability.
//
// Flow:
//  1. Show the current server notice, if any (best-effort).
//  2. Run the controller: check, optionally install, then spawn.
//  3. Report the launched version, or the fatal spawn failure.
func runLaunch(ctx context.Context, p launchParams) error {
	env := p.env

	showNotice(ctx, p.stdout, env)

	// Missing identity is not fatal here: the check degrades to CheckFailed
	// and the installed version still launches.
	programID, serverURL, err := env.identity()
	if err != nil {
		env.logger.Warn("update check not possible", "err", err)
	}

	client := update.NewClient(serverURL,
		update.WithTimeout(env.cfg.DownloadTimeout()),
		update.WithUserAgent("vlaunch/"+Version),
	)

	opts := launch.Options{
		ProgramID:    programID,
		ServerURL:    serverURL,
		Entrypoint:   env.cfg.Entrypoint,
		RetainCount:  env.cfg.RetainCount,
		AutoUpdate:   env.cfg.AutoUpdate || p.yes,
		SkipCheck:    p.noUpdate,
		CheckTimeout: env.cfg.CheckTimeout(),
		ConfirmUpdate: func(_ context.Context, current, latest version.Tag) (bool, error) {
			title := fmt.Sprintf("Install version %s?", latest)
			desc := "currently not installed"
			if current != (version.Tag{}) {
				desc = fmt.Sprintf("currently installed: %s", current)
			}
			return tui.Confirm(tui.ConfirmOptions{Title: title, Description: desc, Default: true})
		},
		Progress: progressPrinter(p.stderr),
	}

	ctrl := launch.NewController(env.store, client, nil, opts, env.logger)
	res, err := ctrl.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.stdout, SuccessStyle.Render("launched ")+
		VersionStyle.Render(res.Version.String())+
		SubtitleStyle.Render(fmt.Sprintf(" (pid %d)", res.PID)))
	return nil
}

// progressPrinter renders progress events as an overwriting status line.
func progressPrinter(w io.Writer) update.ProgressFunc {
	var lastPhase update.Phase
	return func(ev update.ProgressEvent) {
		line := tui.FormatProgress(ev)

		if ev.Phase == update.PhaseDownloading {
			fmt.Fprintf(w, "\r\x1b[K%s", line)
			lastPhase = ev.Phase
			return
		}
		if lastPhase == update.PhaseDownloading {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, line)
		lastPhase = ev.Phase
	}
}
