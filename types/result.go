package types

import "time"

// Stats summarizes the content set of one deployment run.
type Stats struct {
	// TotalFiles is the number of files in the manifest.
	TotalFiles int `json:"total_files"`
	// TotalBytes is the sum of file sizes in bytes.
	TotalBytes int64 `json:"total_bytes"`
	// FileTypes is a histogram of file count by extension
	// (extension without the dot; "" for files without one).
	FileTypes map[string]int `json:"file_types"`
}

// Deployment is the remote store's view of a created deployment.
type Deployment struct {
	ID     string       `json:"id"`
	URL    string       `json:"url,omitempty"`
	Status DeployStatus `json:"status"`
	// Error is the remote failure message. Non-empty iff Status is failure.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of one full pipeline run.
type Result struct {
	// RunID identifies this pipeline run (not the remote deployment).
	RunID string `json:"run_id"`
	// Project is the target project name.
	Project string `json:"project"`
	// DeploymentID is the remote deployment identifier.
	DeploymentID string `json:"deployment_id"`
	// URL is the public deployment URL, when the store reports one.
	URL string `json:"url,omitempty"`
	// Status is the normalized deployment status.
	Status DeployStatus `json:"status"`
	// Stats describes the full content set, uploaded or not.
	Stats Stats `json:"stats"`
	// UploadedKeys is the number of content keys transmitted this run.
	UploadedKeys int `json:"uploaded_keys"`
	// ReusedKeys is the number of keys the store already held.
	ReusedKeys int `json:"reused_keys"`
	// Duration is the wall-clock time of the whole run.
	Duration time.Duration `json:"-"`
	// DurationMs mirrors Duration for serialized output.
	DurationMs int64 `json:"duration_ms"`
}
