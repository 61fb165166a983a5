// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"vlaunch-cli/internal/notice"
	"vlaunch-cli/internal/tui"
)

// noticeTimeout bounds the best-effort notice fetch during launch so a slow
// server cannot delay the application.
const noticeTimeout = 5 * time.Second

// noticeParams bundles the dependencies and flags for the notice command.
type noticeParams struct {
	stdout  io.Writer
	stderr  io.Writer
	env     *cmdEnv
	ack     bool
	hideFor time.Duration
}

// newNoticeCommand creates the `vlaunch notice` command, which shows the
// current server notice and can acknowledge it.
func newNoticeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notice",
		Short: "Show the current server notice",
		Long: `Show the current server notice.

Notices are operator-published messages such as maintenance windows or
release notes. Acknowledged notices stay hidden during launch for a
configurable window; notices marked as forced are always shown.`,
		Example: `  # Show the current notice, even if acknowledged
  vlaunch notice

  # Acknowledge it so launch stops showing it
  vlaunch notice --ack

  # Acknowledge it for a week
  vlaunch notice --ack --hide-for 168h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceErrors = true
			cmd.SilenceUsage = true

			ack, _ := cmd.Flags().GetBool("ack")
			hideFor, _ := cmd.Flags().GetDuration("hide-for")

			env, err := newCmdEnv()
			if err != nil {
				return err
			}
			defer env.Close()

			p := noticeParams{
				stdout:  cmd.OutOrStdout(),
				stderr:  cmd.ErrOrStderr(),
				env:     env,
				ack:     ack,
				hideFor: hideFor,
			}

			if err := runNotice(cmd.Context(), p); err != nil {
				fmt.Fprintln(p.stderr, ErrorStyle.Render("Error: ")+err.Error())
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}

	cmd.Flags().Bool("ack", false, "Acknowledge the notice so launch stops showing it")
	cmd.Flags().Duration("hide-for", notice.DefaultHideFor, "How long an acknowledged notice stays hidden")

	return cmd
}

// runNotice fetches and renders the current notice, acknowledging it when
// requested. Unlike the launch-time display, fetch failures are errors here.
func runNotice(ctx context.Context, p noticeParams) error {
	env := p.env

	programID, serverURL, err := env.identity()
	if err != nil {
		return err
	}

	client := notice.NewClient(serverURL, notice.WithTimeout(env.cfg.CheckTimeout()))
	n, err := client.Latest(ctx, programID)
	if err != nil {
		return fmt.Errorf("fetching notice: %w", err)
	}
	if n == nil {
		fmt.Fprintln(p.stdout, SubtitleStyle.Render("no notice published"))
		return nil
	}

	rendered, err := tui.RenderNotice(n, 0)
	if err != nil {
		return fmt.Errorf("rendering notice: %w", err)
	}
	fmt.Fprintln(p.stdout, rendered)

	if p.ack {
		if err := notice.NewAckStore(env.paths).Acknowledge(n.ID, p.hideFor); err != nil {
			return err
		}
		fmt.Fprintln(p.stdout, SuccessStyle.Render("acknowledged ")+SubtitleStyle.Render(n.ID))
	}
	return nil
}

// showNotice is the best-effort launch-time notice display. Failures are
// logged and swallowed; a broken notice endpoint must never block a launch.
func showNotice(ctx context.Context, w io.Writer, env *cmdEnv) {
	programID, serverURL, err := env.identity()
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, noticeTimeout)
	defer cancel()

	client := notice.NewClient(serverURL, notice.WithTimeout(noticeTimeout))
	n, err := client.Latest(ctx, programID)
	if err != nil {
		env.logger.Debug("fetching notice", "err", err)
		return
	}
	if n == nil {
		return
	}

	if notice.NewAckStore(env.paths).Suppressed(n) {
		env.logger.Debug("notice suppressed by acknowledgement", "id", n.ID)
		return
	}

	rendered, err := tui.RenderNotice(n, 0)
	if err != nil {
		env.logger.Debug("rendering notice", "err", err)
		return
	}
	fmt.Fprintln(w, rendered)
}
