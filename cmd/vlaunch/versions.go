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

// versionsParams bundles the dependencies and flags for the versions command.
type versionsParams struct {
	stdout io.Writer
	stderr io.Writer
	env    *cmdEnv
	prune  bool
}

// newVersionsCommand creates the `vlaunch versions` command, which lists the
// installed version directories and can prune old ones.
func newVersionsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List installed versions",
		Long: `List installed versions.

Every finalized version directory on disk is listed oldest first, with
the active one marked. With --prune, versions beyond the retention
count are removed; the active version is never pruned.`,
		Example: `  # List what is on disk
  vlaunch versions

  # Remove versions beyond the retention count
  vlaunch versions --prune`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			prune, _ := cmd.Flags().GetBool("prune")

			env, err := newCmdEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			p := versionsParams{
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				env:    env,
				prune:  prune,
			}

			if err := runVersions(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("prune", false, "Remove versions beyond the retention count")

	return cmd
}

// runVersions lists the finalized version directories and optionally prunes.
func runVersions(_ context.Context, p versionsParams) error {
	env := p.env

	var active version.Tag
	rec, err := env.store.ReadCurrent()
	switch {
	case err == nil:
		active = rec.Version
	case errors.Is(err, store.ErrNotInstalled):
		// Nothing active yet; listing still works.
	default:
		env.logger.Warn("reading current-version record", "err", err)
	}

	if p.prune {
		if active == (version.Tag{}) {
			return errors.New("cannot prune without an active version record")
		}
		coord := update.NewCoordinator(env.store, env.logger)
		pruned, err := coord.Prune(active, env.cfg.RetainCount)
		if err != nil {
			return fmt.Errorf("pruning versions: %w", err)
		}
		for _, tag := range pruned {
			fmt.Fprintln(p.stdout, WarningStyle.Render("pruned ")+SubtitleStyle.Render(tag.String()))
		}
	}

	tags, err := env.store.ListVersions()
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(p.stdout, SubtitleStyle.Render("no versions installed"))
		return nil
	}

	for _, tag := range tags {
		marker := "  "
		line := SubtitleStyle.Render(tag.String())
		if tag == active {
			marker = SuccessStyle.Render("* ")
			line = VersionStyle.Render(tag.String()) + SubtitleStyle.Render(" (active)")
		}
		fmt.Fprintln(p.stdout, marker+line)
	}
	return nil
}
