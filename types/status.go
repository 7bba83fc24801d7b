package types

import "strings"

// DeployStatus is the normalized deployment status vocabulary.
// Remote stores report a wider and less stable set of stage/status strings;
// everything the pipeline exposes is collapsed into this closed set.
type DeployStatus string

const (
	// StatusQueued means the deployment is accepted but not yet building.
	StatusQueued DeployStatus = "queued"
	// StatusBuilding means the remote store is processing the manifest.
	StatusBuilding DeployStatus = "building"
	// StatusDeploying means content is being published to the edge.
	StatusDeploying DeployStatus = "deploying"
	// StatusSuccess means the deployment is live.
	StatusSuccess DeployStatus = "success"
	// StatusFailure means the deployment failed; Deployment.Error is set.
	StatusFailure DeployStatus = "failure"
)

// Terminal reports whether the status is a final state.
func (s DeployStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// statusAliases maps remote status/stage strings to the closed set.
// Keys are lowercase; lookup is case-insensitive.
var statusAliases = map[string]DeployStatus{
	"queued":   StatusQueued,
	"queue":    StatusQueued,
	"pending":  StatusQueued,
	"created":  StatusQueued,
	"accepted": StatusQueued,
	"idle":     StatusQueued,

	"building":     StatusBuilding,
	"build":        StatusBuilding,
	"initialize":   StatusBuilding,
	"initializing": StatusBuilding,
	"processing":   StatusBuilding,

	"deploying":  StatusDeploying,
	"deploy":     StatusDeploying,
	"publishing": StatusDeploying,
	"uploading":  StatusDeploying,

	"success":   StatusSuccess,
	"succeeded": StatusSuccess,
	"active":    StatusSuccess,
	"ready":     StatusSuccess,
	"live":      StatusSuccess,
	"complete":  StatusSuccess,
	"completed": StatusSuccess,

	"failure":   StatusFailure,
	"failed":    StatusFailure,
	"error":     StatusFailure,
	"errored":   StatusFailure,
	"canceled":  StatusFailure,
	"cancelled": StatusFailure,
}

// NormalizeStatus collapses a remote status string into the closed set.
// Unknown strings normalize to StatusQueued: the deployment exists and is
// in flight, and StatusFailure would require an error message we do not have.
func NormalizeStatus(raw string) DeployStatus {
	if s, ok := statusAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return StatusQueued
}
