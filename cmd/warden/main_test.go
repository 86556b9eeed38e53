package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"build", "run", "dashboard"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestRunCmdRequiresTask(t *testing.T) {
	cmd := buildRootCmd()
	cmd.SetArgs([]string{"run", "--work-dir", t.TempDir()})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --task is omitted")
	}
}

func TestRunCmdRequiresWorkDir(t *testing.T) {
	cmd := buildRootCmd()
	cmd.SetArgs([]string{"run", "--task", "do something"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --work-dir is omitted")
	}
}

func TestBuildCmdRequiresImage(t *testing.T) {
	cmd := buildRootCmd()
	cmd.SetArgs([]string{"build"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --image is omitted")
	}
}

func TestDashboardCmdRequiresBaseDir(t *testing.T) {
	cmd := buildRootCmd()
	cmd.SetArgs([]string{"dashboard"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error when --base-dir is omitted")
	}
}
