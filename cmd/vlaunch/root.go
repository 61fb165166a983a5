// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for vlaunch.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables debug output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "vlaunch",
		Short: "A self-updating application launcher",
		Long: TitleStyle.Render("vlaunch") + SubtitleStyle.Render(" - A self-updating application launcher") + `

vlaunch keeps a desktop application up to date and starts it. On every
launch it compares the installed version against the update server,
offers to download and install a newer release, and then spawns the
application from its versioned install directory. Update problems never
block launching the installed version.

` + SubtitleStyle.Render("Layout:") + `
  versions/v1_2_3/    installed version directories
  data/current.toml   active version record
  config.cue          launcher configuration (next to the executable)

` + SubtitleStyle.Render("Examples:") + `
  vlaunch                   Check for updates, then launch
  vlaunch check             Report whether an update is available
  vlaunch update --yes      Install the latest version without prompting
  vlaunch versions          List installed versions
  vlaunch notice            Show the current server notice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Bare `vlaunch` is the full launch flow.
			return runLaunchCommand(cmd)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.cue next to the executable)")
	rootCmd.Flags().BoolP("yes", "y", false, "Install available updates without prompting")
	rootCmd.Flags().Bool("no-update", false, "Skip the update check and launch the installed version")

	rootCmd.AddCommand(newLaunchCommand())
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newUpdateCommand())
	rootCmd.AddCommand(newVersionsCommand())
	rootCmd.AddCommand(newNoticeCommand())
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
