package cmd

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/harborworks/lighter/cli/config"
	"github.com/harborworks/lighter/pipeline"
	"github.com/harborworks/lighter/store"
	"github.com/harborworks/lighter/types"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil is success", err: nil, want: exitSuccess},
		{
			name: "authentication",
			err:  &pipeline.StageError{Stage: pipeline.StageCredential, Project: "site", Err: store.ErrAuthentication},
			want: exitAuthentication,
		},
		{
			name: "invalid input",
			err:  &pipeline.StageError{Stage: pipeline.StageScan, Project: "site", Err: store.ErrInvalidInput},
			want: exitInvalidInput,
		},
		{
			name: "remote service",
			err:  &pipeline.StageError{Stage: pipeline.StageDiff, Project: "site", Err: store.ErrRemoteService},
			want: exitFailure,
		},
		{
			name: "partial upload",
			err:  &pipeline.StageError{Stage: pipeline.StageUpload, Project: "site", Err: store.ErrPartialUpload},
			want: exitFailure,
		},
		{name: "plain error", err: errors.New("boom"), want: exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

// newPipelineContext builds a cli.Context with the pipeline flags applied,
// the given flags set, and the given positional args.
func newPipelineContext(t *testing.T, flagValues map[string]string, args []string) *cli.Context {
	t.Helper()

	app := cli.NewApp()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for _, f := range pipelineFlags() {
		if err := f.Apply(fs); err != nil {
			t.Fatalf("apply flag: %v", err)
		}
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lighter.yaml")
	content := `project: from-file
endpoint: https://file.example.com
concurrency: 4
ignore:
  - .cache
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	c := newPipelineContext(t, map[string]string{
		"config":  path,
		"project": "from-flag",
		"ignore":  "tmp",
	}, []string{"./public"})

	cfg, err := resolveConfig(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Project != "from-flag" {
		t.Errorf("expected flag to win for project, got %q", cfg.Project)
	}
	if cfg.Endpoint != "https://file.example.com" {
		t.Errorf("expected file endpoint to survive, got %q", cfg.Endpoint)
	}
	if cfg.Concurrency != 4 {
		t.Errorf("expected concurrency 4 from file, got %d", cfg.Concurrency)
	}
	if cfg.Root != "./public" {
		t.Errorf("expected positional arg as root, got %q", cfg.Root)
	}
	if len(cfg.Ignore) != 2 || cfg.Ignore[0] != ".cache" || cfg.Ignore[1] != "tmp" {
		t.Errorf("expected ignore entries merged, got %v", cfg.Ignore)
	}
}

func TestResolveConfig_TokenFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lighter.yaml")
	content := `project: site
token: file-token
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LIGHTER_TOKEN", "env-token")

	c := newPipelineContext(t, map[string]string{"config": path}, nil)

	cfg, err := resolveConfig(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Token != "env-token" {
		t.Errorf("expected LIGHTER_TOKEN to win, got %q", cfg.Token)
	}
}

func TestResolveConfig_RequiresProject(t *testing.T) {
	c := newPipelineContext(t, nil, nil)

	_, err := resolveConfig(c)
	if err == nil {
		t.Fatal("expected error for missing project")
	}
	if !strings.Contains(err.Error(), "--project") {
		t.Errorf("error %q should mention --project", err.Error())
	}
}

func TestResolveConfig_DefaultsRootToCurrentDir(t *testing.T) {
	c := newPipelineContext(t, map[string]string{"project": "site"}, nil)

	cfg, err := resolveConfig(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Root != "." {
		t.Errorf("expected root to default to ., got %q", cfg.Root)
	}
}

// testConfig builds a minimal valid config for store and notifier tests.
func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		Project:  "site",
		Backend:  backend,
		Endpoint: "https://api.example.com",
	}
}

func TestBuildStore_APIRequiresEndpoint(t *testing.T) {
	cfg := testConfig(t, "api")
	cfg.Endpoint = ""

	_, err := buildStore(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
	if !strings.Contains(err.Error(), "endpoint") {
		t.Errorf("error %q should mention endpoint", err.Error())
	}
}

func TestBuildStore_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "gcs")

	_, err := buildStore(context.Background(), cfg, nil)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !strings.Contains(err.Error(), "gcs") {
		t.Errorf("error %q should name the backend", err.Error())
	}
}

func TestBuildNotifiers_EmptyConfigBuildsNone(t *testing.T) {
	cfg := testConfig(t, "api")

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifiers) != 0 {
		t.Errorf("expected no notifiers, got %d", len(notifiers))
	}
}

func TestBuildNotifiers_WebhookFromConfig(t *testing.T) {
	cfg := testConfig(t, "api")
	cfg.Notifiers.Webhook.URL = "https://hooks.example.com/deploys"

	notifiers, err := buildNotifiers(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifiers) != 1 {
		t.Fatalf("expected 1 notifier, got %d", len(notifiers))
	}
	for _, n := range notifiers {
		_ = n.Close()
	}
}

func TestCommands_HaveExpectedNames(t *testing.T) {
	tests := []struct {
		cmd  *cli.Command
		name string
	}{
		{DeployCommand(), "deploy"},
		{PlanCommand(), "plan"},
		{HistoryCommand(), "history"},
		{VersionCommand("abc123", "2026-01-01"), "version"},
	}

	for _, tt := range tests {
		if tt.cmd.Name != tt.name {
			t.Errorf("expected command name %q, got %q", tt.name, tt.cmd.Name)
		}
		if tt.cmd.Action == nil {
			t.Errorf("command %q has no action", tt.name)
		}
	}
}

func TestVersionResponse_UsesPackageVersion(t *testing.T) {
	resp := VersionResponse{Version: types.Version, Commit: "deadbeef"}
	if resp.Version != types.Version {
		t.Errorf("expected version %q, got %q", types.Version, resp.Version)
	}
}
