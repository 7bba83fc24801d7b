// Package pipeline orchestrates a deployment run: scan, hash, manifest,
// diff, upload, deploy. Stages execute in strict sequence; each stage
// either returns a complete result or fails the run with a StageError.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborworks/lighter/adapter"
	"github.com/harborworks/lighter/digest"
	"github.com/harborworks/lighter/journal"
	"github.com/harborworks/lighter/log"
	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/metrics"
	"github.com/harborworks/lighter/scan"
	"github.com/harborworks/lighter/store"
	"github.com/harborworks/lighter/types"
)

// Stage identifies one pipeline stage for error reporting.
type Stage string

// Pipeline stages, in execution order.
const (
	StageScan       Stage = "scan"
	StageHash       Stage = "hash"
	StageManifest   Stage = "manifest"
	StageCredential Stage = "credential"
	StageDiff       Stage = "diff"
	StageUpload     Stage = "upload"
	StageDeploy     Stage = "deploy"
)

// StageError reports which stage of a run failed and why.
type StageError struct {
	Stage   Stage
	Project string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed for project %s: %v", e.Stage, e.Project, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Config configures one deployment run.
type Config struct {
	// Project is the target project name (required).
	Project string
	// Root is the site directory to deploy (required).
	Root string
	// Store is the artifact-store client (required).
	Store store.Store
	// RunID identifies the run. Empty generates a UUID.
	RunID string
	// Ignore entries are appended to the scanner's default ignore list.
	Ignore []string
	// Concurrency bounds the hash worker pool (default 8).
	Concurrency int
	// MaxFileSize is the per-file size guard in bytes (default 25 MiB).
	MaxFileSize int64
	// Logger receives run logs. Nil constructs one bound to the run.
	Logger *log.Logger
	// Collector receives run metrics. Optional (nil disables metrics).
	Collector *metrics.Collector
	// Journal records finished runs. Optional.
	Journal *journal.Journal
	// Notifiers receive a deploy_completed event after the run. Optional.
	Notifiers []adapter.Adapter
}

// Runner executes deployment runs for one configuration.
type Runner struct {
	cfg    Config
	logger *log.Logger

	stageStart time.Time
	timings    map[Stage]time.Duration
}

// NewRunner validates the config and creates a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("%w: project is required", store.ErrInvalidInput)
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("%w: root directory is required", store.ErrInvalidInput)
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", store.ErrInvalidInput)
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewLogger(cfg.RunID, cfg.Project)
	}

	return &Runner{
		cfg:     cfg,
		logger:  logger,
		timings: make(map[Stage]time.Duration),
	}, nil
}

// RunID returns the identifier of this runner's run.
func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// Timings returns per-stage wall-clock durations for completed stages.
func (r *Runner) Timings() map[Stage]time.Duration {
	out := make(map[Stage]time.Duration, len(r.timings))
	for k, v := range r.timings {
		out[k] = v
	}
	return out
}

// Run executes the full pipeline: scan, hash, manifest, diff, upload,
// deploy. On success the returned Result carries the deployment identity
// and content stats. On failure the error is a *StageError naming the
// failed stage; no deployment is created past the first failure.
//
// Finished runs (either way) are appended to the journal and published to
// notifiers; failures there are logged, never returned.
func (r *Runner) Run(ctx context.Context) (*types.Result, error) {
	started := time.Now()

	result := &types.Result{
		RunID:   r.cfg.RunID,
		Project: r.cfg.Project,
		Status:  types.StatusFailure,
	}

	err := r.execute(ctx, result)
	result.Duration = time.Since(started)
	result.DurationMs = result.Duration.Milliseconds()
	if err != nil {
		result.Status = types.StatusFailure
	}

	r.finish(ctx, result, started, err)

	if err != nil {
		return nil, err
	}
	return result, nil
}

// execute advances through the stages, filling result as it goes.
func (r *Runner) execute(ctx context.Context, result *types.Result) error {
	build, err := r.prepare(ctx, result)
	if err != nil {
		return err
	}

	// Credential + project. The credential lives only for this run's
	// diff and upload calls.
	r.beginStage(StageCredential)
	if err := r.cfg.Store.EnsureProject(ctx, r.cfg.Project); err != nil {
		return r.fail(StageCredential, err)
	}
	cred, err := r.cfg.Store.IssueCredential(ctx, r.cfg.Project)
	if err != nil {
		return r.fail(StageCredential, err)
	}
	r.endStage(StageCredential)

	// Diff. A transport failure here fails the run; it is never treated
	// as "nothing missing".
	r.beginStage(StageDiff)
	keys := build.Manifest.ContentKeys()
	missing, err := r.cfg.Store.MissingKeys(ctx, cred, keys)
	if err != nil {
		return r.fail(StageDiff, err)
	}
	r.endStage(StageDiff)
	r.cfg.Collector.SetKeyCounts(int64(len(keys)), int64(len(missing)))

	result.UploadedKeys = len(missing)
	result.ReusedKeys = len(keys) - len(missing)

	r.logger.Info("diff check complete", map[string]any{
		"keys_total":   len(keys),
		"keys_missing": len(missing),
	})

	// Upload only what the store reported missing. Skipped entirely when
	// nothing is missing.
	if len(missing) > 0 {
		r.beginStage(StageUpload)
		if err := r.upload(ctx, cred, build.Records, missing); err != nil {
			return err
		}
		r.endStage(StageUpload)
	} else {
		r.logger.Info("upload skipped, store holds all content", nil)
	}

	// Never submit a manifest after cancellation.
	if err := ctx.Err(); err != nil {
		return r.fail(StageDeploy, err)
	}

	r.beginStage(StageDeploy)
	deployment, err := r.cfg.Store.CreateDeployment(ctx, r.cfg.Project, build.Manifest)
	if err != nil {
		return r.fail(StageDeploy, err)
	}
	r.endStage(StageDeploy)

	result.DeploymentID = deployment.ID
	result.URL = deployment.URL
	result.Status = deployment.Status

	if deployment.Status == types.StatusFailure {
		return r.fail(StageDeploy, fmt.Errorf("deployment failed: %s", deployment.Error))
	}

	r.logger.Info("deployment created", map[string]any{
		"deployment_id": deployment.ID,
		"status":        string(deployment.Status),
		"url":           deployment.URL,
	})
	return nil
}

// prepare runs the local stages: scan, hash, manifest build.
func (r *Runner) prepare(ctx context.Context, result *types.Result) (*manifest.BuildResult, error) {
	r.beginStage(StageScan)
	scanned, err := scan.Dir(r.cfg.Root, r.cfg.Ignore)
	if err != nil {
		return nil, r.fail(StageScan, err)
	}
	r.endStage(StageScan)
	r.cfg.Collector.AddScanned(int64(len(scanned.Files)), scanned.Ignored)

	if len(scanned.Files) == 0 {
		return nil, r.fail(StageScan, fmt.Errorf("%w: no deployable files under %s", store.ErrInvalidInput, r.cfg.Root))
	}

	r.logger.Info("scan complete", map[string]any{
		"files":   len(scanned.Files),
		"ignored": scanned.Ignored,
	})

	r.beginStage(StageHash)
	records, err := hashFiles(ctx, r.cfg.Root, scanned.Files, r.cfg.MaxFileSize, r.cfg.Concurrency, r.cfg.Collector)
	if err != nil {
		return nil, r.fail(StageHash, err)
	}
	r.endStage(StageHash)

	r.beginStage(StageManifest)
	build := manifest.Build(records)
	r.endStage(StageManifest)

	for _, dup := range build.Duplicates {
		r.logger.Warn("duplicate logical path, later entry wins", map[string]any{"path": dup})
	}
	r.recordDedup(build.Records)

	result.Stats = build.Stats
	return build, nil
}

// upload builds payloads for the missing keys and transmits them in one
// batch. Any unsuccessful key fails the run before the deploy stage.
func (r *Runner) upload(ctx context.Context, cred store.Credential, records []manifest.FileRecord, missing []string) error {
	byKey := manifest.RecordsByKey(records)

	payloads := make([]store.UploadPayload, 0, len(missing))
	var uploadBytes int64
	for _, key := range missing {
		rec, ok := byKey[key]
		if !ok {
			return r.fail(StageUpload, fmt.Errorf("%w: store reported unknown key %s missing", store.ErrInvalidInput, key))
		}
		payloads = append(payloads, store.NewPayload(rec))
		uploadBytes += int64(len(rec.Content))
	}

	receipt, err := r.cfg.Store.UploadBatch(ctx, cred, payloads)
	if err != nil {
		return r.fail(StageUpload, err)
	}

	if len(receipt.UnsuccessfulKeys) > 0 {
		r.cfg.Collector.SetUnsuccessfulKeys(int64(len(receipt.UnsuccessfulKeys)))
		return r.fail(StageUpload, fmt.Errorf("%w: %d of %d keys rejected: %v",
			store.ErrPartialUpload, len(receipt.UnsuccessfulKeys), len(payloads), receipt.UnsuccessfulKeys))
	}

	r.cfg.Collector.AddUploaded(int64(len(payloads)), uploadBytes)
	r.logger.Info("upload complete", map[string]any{
		"payloads": len(payloads),
		"bytes":    uploadBytes,
	})
	return nil
}

// finish records the run in the journal and publishes notifier events.
// Neither can fail the run; errors are logged and counted.
func (r *Runner) finish(ctx context.Context, result *types.Result, started time.Time, runErr error) {
	// Side effects survive caller cancellation but not indefinitely.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if r.cfg.Journal != nil {
		rec := journal.FromResult(*result, started, runErr)
		if err := r.cfg.Journal.Append(rec); err != nil {
			r.cfg.Collector.IncJournalFailure()
			r.logger.Warn("journal append failed", map[string]any{"error": err.Error()})
		}
	}

	if len(r.cfg.Notifiers) == 0 {
		return
	}

	event := &adapter.DeployCompletedEvent{
		SchemaVersion: types.Version,
		EventType:     "deploy_completed",
		RunID:         result.RunID,
		Project:       result.Project,
		DeploymentID:  result.DeploymentID,
		URL:           result.URL,
		Status:        string(result.Status),
		Timestamp:     started.UTC().Format(time.RFC3339),
		TotalFiles:    result.Stats.TotalFiles,
		TotalBytes:    result.Stats.TotalBytes,
		UploadedKeys:  result.UploadedKeys,
		ReusedKeys:    result.ReusedKeys,
		DurationMs:    result.DurationMs,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}

	for _, notifier := range r.cfg.Notifiers {
		if err := notifier.Publish(ctx, event); err != nil {
			r.cfg.Collector.IncNotifierFailure()
			r.logger.Warn("notifier publish failed", map[string]any{"error": err.Error()})
		}
	}
}

// recordDedup counts records whose content key was already produced by an
// earlier path in the same run.
func (r *Runner) recordDedup(records []manifest.FileRecord) {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ContentKey]; dup {
			r.cfg.Collector.IncDedupHit()
			continue
		}
		seen[rec.ContentKey] = struct{}{}
	}
}

func (r *Runner) beginStage(stage Stage) {
	r.stageStart = time.Now()
	r.logger.Debug("stage started", map[string]any{"stage": string(stage)})
}

func (r *Runner) endStage(stage Stage) {
	r.timings[stage] = time.Since(r.stageStart)
}

func (r *Runner) fail(stage Stage, err error) error {
	r.timings[stage] = time.Since(r.stageStart)
	r.logger.Error("stage failed", map[string]any{
		"stage": string(stage),
		"error": err.Error(),
	})
	return &StageError{Stage: stage, Project: r.cfg.Project, Err: err}
}

// PlanResult is the outcome of a dry run: what a deploy would upload.
type PlanResult struct {
	// Project is the target project name.
	Project string `json:"project"`
	// Files is the number of deployable files.
	Files int `json:"files"`
	// KeysTotal is the number of distinct content keys.
	KeysTotal int `json:"keys_total"`
	// KeysMissing is the number of keys the store does not hold.
	KeysMissing int `json:"keys_missing"`
	// MissingKeys lists the keys that a deploy would upload.
	MissingKeys []string `json:"missing_keys,omitempty"`
	// UploadBytes is the content volume a deploy would transmit.
	UploadBytes int64 `json:"upload_bytes"`
	// Stats describes the full content set.
	Stats types.Stats `json:"stats"`
}

// Plan runs the local stages plus the diff check and reports what a
// deploy would upload. No content is transmitted and no deployment is
// created.
func (r *Runner) Plan(ctx context.Context) (*PlanResult, error) {
	result := &types.Result{RunID: r.cfg.RunID, Project: r.cfg.Project}

	build, err := r.prepare(ctx, result)
	if err != nil {
		return nil, err
	}

	r.beginStage(StageCredential)
	if err := r.cfg.Store.EnsureProject(ctx, r.cfg.Project); err != nil {
		return nil, r.fail(StageCredential, err)
	}
	cred, err := r.cfg.Store.IssueCredential(ctx, r.cfg.Project)
	if err != nil {
		return nil, r.fail(StageCredential, err)
	}
	r.endStage(StageCredential)

	r.beginStage(StageDiff)
	keys := build.Manifest.ContentKeys()
	missing, err := r.cfg.Store.MissingKeys(ctx, cred, keys)
	if err != nil {
		return nil, r.fail(StageDiff, err)
	}
	r.endStage(StageDiff)
	r.cfg.Collector.SetKeyCounts(int64(len(keys)), int64(len(missing)))

	byKey := manifest.RecordsByKey(build.Records)
	var uploadBytes int64
	for _, key := range missing {
		if rec, ok := byKey[key]; ok {
			uploadBytes += int64(len(rec.Content))
		}
	}

	return &PlanResult{
		Project:     r.cfg.Project,
		Files:       build.Stats.TotalFiles,
		KeysTotal:   len(keys),
		KeysMissing: len(missing),
		MissingKeys: missing,
		UploadBytes: uploadBytes,
		Stats:       build.Stats,
	}, nil
}

// IsAuthenticationError reports whether the run failed on credentials.
func IsAuthenticationError(err error) bool {
	return errors.Is(err, store.ErrAuthentication)
}

// IsInvalidInput reports whether the run failed on caller input, including
// the local file-size guard.
func IsInvalidInput(err error) bool {
	return errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, scan.ErrNotFound) ||
		errors.Is(err, scan.ErrNotDirectory) ||
		errors.Is(err, digest.ErrFileTooLarge)
}
