// Package config loads Warden's run configuration from the environment. All
// values are read once at process start; nothing here is re-read mid-task so
// a task's behavior can be reproduced from a single snapshot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ObsConfig carries the observability knobs read alongside the rest of Config.
type ObsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLP           string
	LogPath        string
	LogLevel       string
}

// Config is the immutable, process-wide snapshot of every environment
// variable the loop, policy engine, and verifier consult.
type Config struct {
	ModelBaseURL string
	ModelAPIKey  string
	ModelName    string
	ModelTimeout int // seconds

	ContextMaxChars     int
	ActionTailMessages  int
	NotesUpdateInterval int

	StagnationLimit        int
	FailureEscalationLimit int
	QueryMutationBudget    int
	MoveRepeatLimit        int
	DomainShiftLimit       int

	NegativeClaimMinOfficial    int
	NegativeClaimMinIndependent int
	NegativeClaimThresholdPct   float64
	NegativeClaimMaxSteps       int

	MaxSteps       int
	PromptProfile  string
	SystemRole     string
	MaxToolSeconds int

	MaxVerifierRounds   int
	VerifierMiniSteps   int
	VerifierLoopKillerN int

	BraveAPIKey string
	Temperature float64

	Obs ObsConfig
}

// Load reads an optional .env overlay (godotenv.Overload, matching the
// teacher's pattern) then populates Config from the process environment,
// applying the defaults named throughout spec section 4 and 6.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		ModelBaseURL: firstNonEmpty(os.Getenv("MODEL_BASE_URL"), "http://localhost:11434"),
		ModelAPIKey:  os.Getenv("MODEL_API_KEY"),
		ModelName:    firstNonEmpty(os.Getenv("MODEL_NAME"), "gpt-4o-mini"),
		ModelTimeout: intFromEnv("MODEL_TIMEOUT", 120),

		ContextMaxChars:     intFromEnv("CONTEXT_MAX_CHARS", 24000),
		ActionTailMessages:  intFromEnv("ACTION_TAIL_MESSAGES", 20),
		NotesUpdateInterval: intFromEnv("NOTES_UPDATE_INTERVAL", 5),

		StagnationLimit:        intFromEnv("STAGNATION_LIMIT", 3),
		FailureEscalationLimit: intFromEnv("FAILURE_ESCALATION_LIMIT", 3),
		QueryMutationBudget:    intFromEnv("QUERY_MUTATION_BUDGET", 2),
		MoveRepeatLimit:        intFromEnv("MOVE_REPEAT_LIMIT", 3),
		DomainShiftLimit:       intFromEnv("DOMAIN_SHIFT_LIMIT", 2),

		NegativeClaimMinOfficial:    intFromEnv("NEGATIVE_CLAIM_MIN_OFFICIAL", 2),
		NegativeClaimMinIndependent: intFromEnv("NEGATIVE_CLAIM_MIN_INDEPENDENT", 1),
		NegativeClaimThresholdPct:   floatFromEnv("NEGATIVE_CLAIM_THRESHOLD_PCT", 0.6),
		NegativeClaimMaxSteps:       intFromEnv("NEGATIVE_CLAIM_MAX_STEPS", 40),

		MaxSteps:       intFromEnv("MAX_STEPS", 40),
		PromptProfile:  firstNonEmpty(os.Getenv("PROMPT_PROFILE"), "default"),
		SystemRole:     firstNonEmpty(os.Getenv("SYSTEM_ROLE"), "system"),
		MaxToolSeconds: intFromEnv("MAX_TOOL_SECONDS", 900),

		MaxVerifierRounds:   intFromEnv("MAX_VERIFIER_ROUNDS", 8),
		VerifierMiniSteps:   intFromEnv("VERIFIER_MINI_STEPS", 4),
		VerifierLoopKillerN: intFromEnv("VERIFIER_LOOP_KILLER_N", 3),

		BraveAPIKey: os.Getenv("BRAVE_API_KEY"),
		Temperature: floatFromEnv("TEMPERATURE", 0.2),

		Obs: ObsConfig{
			ServiceName:    firstNonEmpty(os.Getenv("OTEL_SERVICE_NAME"), "warden"),
			ServiceVersion: firstNonEmpty(os.Getenv("OTEL_SERVICE_VERSION"), "dev"),
			Environment:    firstNonEmpty(os.Getenv("OTEL_ENVIRONMENT"), "local"),
			OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			LogPath:        os.Getenv("LOG_PATH"),
			LogLevel:       firstNonEmpty(os.Getenv("LOG_LEVEL"), "info"),
		},
	}

	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func intFromEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := parseInt(raw)
	if err != nil {
		return def
	}
	return n
}

func floatFromEnv(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := parseFloat(raw)
	if err != nil {
		return def
	}
	return f
}

func parseInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse int %q: %w", s, err)
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float %q: %w", s, err)
	}
	return f, nil
}
