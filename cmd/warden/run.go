package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"warden/internal/config"
	"warden/internal/ledger"
	"warden/internal/llm"
	"warden/internal/loop"
	"warden/internal/loop/prompts"
	"warden/internal/policy"
	"warden/internal/sandbox"
	"warden/internal/streamer"
	"warden/internal/trace"
)

// buildRunCmd wires every collaborator and drives one task to termination
// (spec section 4.1). Flags override the corresponding environment variable
// only when set, so "warden run" without flags behaves exactly like the
// env-only configuration spec section 6 describes.
func buildRunCmd() *cobra.Command {
	var (
		task          string
		workDir       string
		inputDir      string
		modelBaseURL  string
		modelAPIKey   string
		modelName     string
		braveAPIKey   string
		temperature   float64
		maxSteps      int
		promptProfile string
		systemRole    string
		image         string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one task to termination",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return fmt.Errorf("--task is required")
			}
			if workDir == "" {
				return fmt.Errorf("--work-dir is required")
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			applyRunFlagOverrides(&cfg, cmd, modelBaseURL, modelAPIKey, modelName, braveAPIKey, promptProfile, systemRole, temperature, maxSteps)

			if err := os.MkdirAll(workDir, 0o755); err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}

			answer, err := runTask(cmd.Context(), cfg, task, workDir, inputDir, image)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "the task text")
	cmd.Flags().StringVar(&workDir, "work-dir", "", "host directory mounted at /work")
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "optional host directory mounted read-only at /input")
	cmd.Flags().StringVar(&modelBaseURL, "model-base-url", "", "override MODEL_BASE_URL")
	cmd.Flags().StringVar(&modelAPIKey, "model-api-key", "", "override MODEL_API_KEY")
	cmd.Flags().StringVar(&modelName, "model-name", "", "override MODEL_NAME")
	cmd.Flags().StringVar(&braveAPIKey, "brave-api-key", "", "override BRAVE_API_KEY")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "override TEMPERATURE")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "override MAX_STEPS")
	cmd.Flags().StringVar(&promptProfile, "prompt-profile", "", "override PROMPT_PROFILE")
	cmd.Flags().StringVar(&systemRole, "system-role", "", "override SYSTEM_ROLE")
	cmd.Flags().StringVar(&image, "image", "warden-sandbox:latest", "sandbox image to launch")

	return cmd
}

func applyRunFlagOverrides(cfg *config.Config, cmd *cobra.Command, modelBaseURL, modelAPIKey, modelName, braveAPIKey, promptProfile, systemRole string, temperature float64, maxSteps int) {
	if cmd.Flags().Changed("model-base-url") {
		cfg.ModelBaseURL = modelBaseURL
	}
	if cmd.Flags().Changed("model-api-key") {
		cfg.ModelAPIKey = modelAPIKey
	}
	if cmd.Flags().Changed("model-name") {
		cfg.ModelName = modelName
	}
	if cmd.Flags().Changed("brave-api-key") {
		cfg.BraveAPIKey = braveAPIKey
	}
	if cmd.Flags().Changed("temperature") {
		cfg.Temperature = temperature
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if cmd.Flags().Changed("prompt-profile") {
		cfg.PromptProfile = promptProfile
	}
	if cmd.Flags().Changed("system-role") {
		cfg.SystemRole = systemRole
	}
}

func runTask(ctx context.Context, cfg config.Config, taskText, workDir, inputDir, image string) (string, error) {
	backend := sandbox.NewDockerBackend(image)
	sb, err := backend.Start(ctx, inputDir, workDir, cfg.BraveAPIKey != "")
	if err != nil {
		return "", fmt.Errorf("start sandbox: %w", err)
	}
	defer backend.Stop(ctx, sb)

	ledgers, err := ledger.NewLedgers(workDir)
	if err != nil {
		return "", fmt.Errorf("open ledgers: %w", err)
	}
	defer ledgers.Close()

	tr, err := trace.Open(workDir)
	if err != nil {
		return "", fmt.Errorf("open trace: %w", err)
	}
	defer tr.Close()

	notes, err := loop.NewNotesWriter(workDir)
	if err != nil {
		return "", fmt.Errorf("open notes: %w", err)
	}

	streamCtx, cancelStreams := context.WithCancel(ctx)
	defer cancelStreams()
	go (&streamer.LogStreamer{Backend: backend, Sandbox: sb, WorkDir: workDir, Trace: tr}).Run(streamCtx)
	go (&streamer.EventStreamer{Backend: backend, Sandbox: sb, WorkDir: workDir, Trace: tr}).Run(streamCtx)

	client := llm.NewOpenAIChatClient(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.ModelName)

	engine := &policy.Engine{
		StagnationLimit:             cfg.StagnationLimit,
		FailureEscalationLimit:      cfg.FailureEscalationLimit,
		QueryMutationBudget:         cfg.QueryMutationBudget,
		MoveRepeatLimit:             cfg.MoveRepeatLimit,
		DomainShiftLimit:            cfg.DomainShiftLimit,
		NegativeClaimMinOfficial:    cfg.NegativeClaimMinOfficial,
		NegativeClaimMinIndependent: cfg.NegativeClaimMinIndependent,
		NegativeClaimThresholdPct:   cfg.NegativeClaimThresholdPct,
		MaxSteps:                    cfg.MaxSteps,
	}

	systemPrompt := prompts.Get(cfg.PromptProfile)
	l := loop.NewLoop(cfg, engine, client, backend, sb, ledgers, tr, notes, systemPrompt)

	return l.Run(ctx, loop.NewTask(taskText))
}
