package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"warden/internal/dashboard"
)

// buildDashboardCmd serves a task's artifact files over HTTP: "warden
// dashboard --base-dir <dir> [--host --port]" (spec section 4.7).
func buildDashboardCmd() *cobra.Command {
	var (
		baseDir string
		host    string
		port    int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve a task's artifact files over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseDir == "" {
				return fmt.Errorf("--base-dir is required")
			}
			srv := dashboard.NewServer(baseDir)
			addr := fmt.Sprintf("%s:%d", host, port)
			fmt.Fprintf(cmd.OutOrStdout(), "warden dashboard listening on %s, serving %s\n", addr, baseDir)
			return http.ListenAndServe(addr, srv)
		},
	}

	cmd.Flags().StringVar(&baseDir, "base-dir", "", "work directory of the task to observe")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "address to bind")
	cmd.Flags().IntVar(&port, "port", 8787, "port to bind")

	return cmd
}
