package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultDockerfile = "build/Dockerfile"

// buildBuildCmd prepares the sandbox image: "warden build --image <tag>
// [--dockerfile <path>]". Shells out to the docker CLI rather than
// testcontainers-go's FromDockerfile (that API is start-time, tied to
// launching a container; a standalone image-prepare step has no container
// to attach the build to), matching the ambient assumption that a Docker
// daemon is reachable — the same assumption internal/sandbox.DockerBackend
// makes when it later runs containers from the tag this command produces.
func buildBuildCmd() *cobra.Command {
	var (
		image      string
		dockerfile string
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sandbox image used by warden run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if image == "" {
				return fmt.Errorf("--image is required")
			}
			df := dockerfile
			if df == "" {
				df = defaultDockerfile
			}
			contextDir := filepath.Dir(df)
			return runDockerBuild(cmd, image, df, contextDir)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "tag to build, e.g. warden-sandbox:latest")
	cmd.Flags().StringVar(&dockerfile, "dockerfile", "", "path to a Dockerfile (default: bundled "+defaultDockerfile+")")
	return cmd
}

func runDockerBuild(cmd *cobra.Command, image, dockerfile, contextDir string) error {
	build := exec.CommandContext(cmd.Context(), "docker", "build", "-t", image, "-f", dockerfile, contextDir)
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr
	if err := build.Run(); err != nil {
		return fmt.Errorf("docker build: %w", err)
	}
	return nil
}
