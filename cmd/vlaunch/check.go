// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"vlaunch-cli/internal/store"
	"vlaunch-cli/internal/update"
	"vlaunch-cli/internal/version"
)

// checkParams bundles the dependencies for the check command.
type checkParams struct {
	stdout io.Writer
	stderr io.Writer
	env    *cmdEnv
}

// newCheckCommand creates the `vlaunch check` command, which reports whether
// an update is available without installing anything.
func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report whether an update is available",
		Long: `Report whether an update is available.

The command contacts the update server and compares its latest version
against the installed one. Nothing is downloaded or installed.`,
		Example: `  vlaunch check`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			env, err := newCmdEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			p := checkParams{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				env:    env,
			}

			if err := runCheck(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
}

// runCheck queries the server and prints the comparison outcome.
func runCheck(ctx context.Context, p checkParams) error {
	env := p.env

	programID, serverURL, err := env.identity()
	if err != nil {
		return err
	}

	var local version.Tag
	rec, err := env.store.ReadCurrent()
	switch {
	case err == nil:
		local = rec.Version
	case errors.Is(err, store.ErrNotInstalled):
		// First run: any published version counts as an update.
	default:
		env.logger.Warn("reading installed version", "err", err)
	}

	client := update.NewClient(serverURL,
		update.WithTimeout(env.cfg.CheckTimeout()),
		update.WithUserAgent("vlaunch/"+Version),
	)

	res, err := client.Check(ctx, programID, local)
	if err != nil {
		return fmt.Errorf("checking for update: %w", err)
	}

	if res.Descriptor == nil {
		fmt.Fprintln(p.stdout, SuccessStyle.Render("up to date")+
			SubtitleStyle.Render(fmt.Sprintf(" (%s)", local)))
		return nil
	}

	from := local.String()
	if local == (version.Tag{}) {
		from = "not installed"
	}
	fmt.Fprintln(p.stdout, WarningStyle.Render("update available: ")+
		SubtitleStyle.Render(from)+" → "+VersionStyle.Render(res.Latest.String()))
	return nil
}
