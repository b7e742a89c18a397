package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/ByBren-LLC/bigroom/cmd/bigroom/internal"
	"github.com/ByBren-LLC/bigroom/internal/config"
)

const scenarioYAML = `name: PI-2026.1
items:
  - key: ST-1
    kind: story
    title: Persist cart between sessions
    points: 3
    team: platform
    acceptance_criteria:
      - Cart survives a new session
      - Anonymous carts merge on sign-in
  - key: ST-2
    kind: story
    title: Checkout accepts saved cards
    description: Depends on ST-1 for the persisted cart.
    points: 5
    team: platform
    acceptance_criteria:
      - Saved cards list on the payment step
      - Removing a card takes one click
iterations:
  - name: I1
    start: 2026-01-05
    end: 2026-01-16
    capacities:
      - team: platform
        total: 25
        confidence: 0.9
  - name: I2
    start: 2026-01-19
    end: 2026-01-30
    capacities:
      - team: platform
        total: 25
        confidence: 0.9
teams:
  - id: platform
    name: Platform
    members: 5
    velocity: 23
    confidence: 0.9
`

const overloadedYAML = `name: overloaded
items:
  - key: ST-HUGE
    kind: story
    title: Rebuild the storefront
    points: 40
    team: platform
    acceptance_criteria:
      - Storefront renders
      - Orders complete
iterations:
  - name: I1
    start: 2026-01-05
    end: 2026-01-16
    capacities:
      - team: platform
        total: 25
        confidence: 0.9
teams:
  - id: platform
    name: Platform
    confidence: 0.9
`

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backlog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setupApp(t *testing.T, format string) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	appConfig = config.DefaultConfig()
	appLogger = appConfig.Logging.Logger(&bytes.Buffer{})

	origFormat := globalFlags.OutputFormat
	globalFlags.OutputFormat = format
	t.Cleanup(func() { globalFlags.OutputFormat = origFormat })

	cmd := &cobra.Command{Use: "test"}
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}

func TestRunPlanText(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, buf := setupApp(t, "text")

	if err := runPlan(cmd, []string{path}); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Plan for PI-2026.1", "I1", "ST-1", "ST-2", "Readiness", "overall"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunPlanHonorsDependencyOrder(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, buf := setupApp(t, "text")

	if err := runPlan(cmd, []string{path}); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	out := buf.String()
	if strings.Index(out, "ST-1") > strings.Index(out, "ST-2") {
		t.Errorf("expected prerequisite ST-1 listed before ST-2:\n%s", out)
	}
}

func TestRunPlanJSON(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, buf := setupApp(t, "json")

	if err := runPlan(cmd, []string{path}); err != nil {
		t.Fatalf("plan failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded["status"] != "final" {
		t.Errorf("expected final status, got %v", decoded["status"])
	}
}

func TestRunPlanNotReadyExitCode(t *testing.T) {
	path := writeScenario(t, overloadedYAML)
	cmd, _ := setupApp(t, "text")

	err := runPlan(cmd, []string{path})
	if err == nil {
		t.Fatal("expected a not-ready error")
	}
	var cliErr *internal.CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}
	if cliErr.Code != internal.ExitNotReady {
		t.Errorf("expected exit code %d, got %d", internal.ExitNotReady, cliErr.Code)
	}
}

func TestRunPlanRejectsPartialDocument(t *testing.T) {
	path := writeScenario(t, `name: items-only
items:
  - key: ST-1
    kind: story
    title: Lone story
    points: 3
`)
	cmd, _ := setupApp(t, "text")

	err := runPlan(cmd, []string{path})
	var cliErr *internal.CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}
	if cliErr.Code != internal.ExitBacklogError {
		t.Errorf("expected exit code %d, got %d", internal.ExitBacklogError, cliErr.Code)
	}
}

func TestRunAnalyze(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, buf := setupApp(t, "text")

	if err := runAnalyze(cmd, []string{path}); err != nil {
		t.Fatalf("analyze failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ST-2") || !strings.Contains(out, "requires") {
		t.Errorf("expected a detected requires edge in output:\n%s", out)
	}
}

func TestRunScore(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, buf := setupApp(t, "text")

	if err := runScore(cmd, []string{path}); err != nil {
		t.Fatalf("score failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"WSJF", "ST-1", "ST-2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDecompose(t *testing.T) {
	path := writeScenario(t, `name: split-me
items:
  - key: ST-BIG
    kind: story
    title: Rework the checkout pipeline
    points: 13
    team: platform
    acceptance_criteria:
      - Totals include tax
      - Errors surface retries
      - Receipts are emailed
      - Refunds post within a day
teams:
  - id: platform
    name: Platform
`)
	cmd, buf := setupApp(t, "text")

	if err := runDecompose(cmd, []string{path}); err != nil {
		t.Fatalf("decompose failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "ST-BIG-1") {
		t.Errorf("expected sub-item keys in output:\n%s", out)
	}
}

func TestRunDecomposeUnknownItem(t *testing.T) {
	path := writeScenario(t, scenarioYAML)
	cmd, _ := setupApp(t, "text")

	decomposeItemKey = "ST-MISSING"
	t.Cleanup(func() { decomposeItemKey = "" })

	err := runDecompose(cmd, []string{path})
	var cliErr *internal.CLIError
	if !errors.As(err, &cliErr) {
		t.Fatalf("expected CLIError, got %T: %v", err, err)
	}
	if cliErr.Code != internal.ExitBacklogError {
		t.Errorf("expected exit code %d, got %d", internal.ExitBacklogError, cliErr.Code)
	}
}

func TestParseGlobalFlagsRejectsBadFormat(t *testing.T) {
	origFormat := globalFlags.OutputFormat
	globalFlags.OutputFormat = "xml"
	t.Cleanup(func() { globalFlags.OutputFormat = origFormat })

	cmd := &cobra.Command{Use: "test"}
	if _, err := ParseGlobalFlags(cmd); err == nil {
		t.Error("expected an error for unsupported output format")
	}
}
