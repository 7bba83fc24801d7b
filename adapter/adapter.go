// Package adapter defines the deploy notifier boundary.
//
// Notifiers publish deploy completion events to downstream systems after a
// pipeline run finishes. A notifier failure never fails the run; the
// pipeline logs it and moves on.
package adapter

import "context"

// DeployCompletedEvent is the payload published when a deployment run
// finishes, successfully or not.
type DeployCompletedEvent struct {
	SchemaVersion string `json:"schema_version"`
	EventType     string `json:"event_type"` // always "deploy_completed"
	RunID         string `json:"run_id"`
	Project       string `json:"project"`
	DeploymentID  string `json:"deployment_id,omitempty"`
	URL           string `json:"url,omitempty"`
	Status        string `json:"status"` // normalized deploy status
	Error         string `json:"error,omitempty"`
	Timestamp     string `json:"timestamp"` // ISO 8601
	TotalFiles    int    `json:"total_files"`
	TotalBytes    int64  `json:"total_bytes"`
	UploadedKeys  int    `json:"uploaded_keys"`
	ReusedKeys    int    `json:"reused_keys"`
	DurationMs    int64  `json:"duration_ms"`
}

// Adapter publishes deploy completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a deploy completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *DeployCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
