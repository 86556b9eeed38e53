// Command warden runs the supervised, verified tool-using agent described in
// SPEC_FULL.md: "build" prepares the sandbox image, "run" drives one task to
// termination, "dashboard" serves a task's artifact files over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is populated by ldflags at build time, mirroring the pack's
// nexus cmd/nexus/main.go build-stamp convention.
var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd assembles the root command and its subcommands, kept
// separate from main for testability (grounded on nexus's
// cmd/nexus/main.go buildRootCmd split).
func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "warden",
		Short:        "Warden — a verified tool-using agent supervisor",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(
		buildBuildCmd(),
		buildRunCmd(),
		buildDashboardCmd(),
	)
	return root
}
