// Package store provides clients for the remote artifact store.
//
// Two implementations exist: APIClient speaks the HTTPS JSON API, S3Store
// writes directly to an S3-compatible bucket. Both satisfy Store and both
// classify failures with the sentinel errors in this package.
package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/types"
)

// Store is the artifact-store client used by the deployment pipeline.
type Store interface {
	// EnsureProject creates the project if it does not exist.
	// An already-existing project is success.
	EnsureProject(ctx context.Context, project string) error

	// IssueCredential obtains a short-lived, project-scoped upload
	// credential. Requested once per run, used only for MissingKeys and
	// UploadBatch, discarded afterward.
	IssueCredential(ctx context.Context, project string) (Credential, error)

	// MissingKeys returns the subset of keys the store does not hold.
	MissingKeys(ctx context.Context, cred Credential, keys []string) ([]string, error)

	// UploadBatch transmits payloads in a single batch. The receipt
	// reports per-key failures; callers must treat any unsuccessful key
	// as fatal to the run.
	UploadBatch(ctx context.Context, cred Credential, payloads []UploadPayload) (UploadReceipt, error)

	// CreateDeployment submits the manifest and returns the normalized
	// deployment result.
	CreateDeployment(ctx context.Context, project string, m manifest.Manifest) (types.Deployment, error)
}

// Credential is a short-lived, project-scoped upload authorization.
// It lives only in memory for the duration of one run: never logged,
// never written to disk, never reused across runs.
type Credential struct {
	// Token is the bearer token for content operations. Empty when
	// Ambient is set.
	Token string
	// Project is the project the credential is scoped to.
	Project string
	// IssuedAt is when the credential was obtained.
	IssuedAt time.Time
	// ExpiresAt is the remote-reported expiry, when available.
	ExpiresAt time.Time
	// Ambient marks credentials supplied by the environment (the S3
	// credential chain) rather than carried in-process.
	Ambient bool
}

// String redacts the token so a Credential can never leak through
// formatted output or log fields.
func (c Credential) String() string {
	mode := "bearer"
	if c.Ambient {
		mode = "ambient"
	}
	return fmt.Sprintf("credential(project=%s, mode=%s)", c.Project, mode)
}

// UploadPayload is one missing content record, wire-shaped for upload.
type UploadPayload struct {
	Key      string          `json:"key"`
	Base64   bool            `json:"base64"`
	Value    string          `json:"value"`
	Metadata PayloadMetadata `json:"metadata"`
}

// PayloadMetadata carries per-payload content metadata.
type PayloadMetadata struct {
	ContentType string `json:"contentType"`
}

// UploadReceipt is the store's answer to an upload batch.
type UploadReceipt struct {
	SuccessCount     int      `json:"success_count"`
	UnsuccessfulKeys []string `json:"unsuccessful_keys"`
}

// NewPayload builds the UploadPayload for a file record.
func NewPayload(rec manifest.FileRecord) UploadPayload {
	return UploadPayload{
		Key:    rec.ContentKey,
		Base64: true,
		Value:  base64.StdEncoding.EncodeToString(rec.Content),
		Metadata: PayloadMetadata{
			ContentType: rec.ContentType,
		},
	}
}

// ValidateKeys rejects an empty key list or any empty-string key before a
// network call is made.
func ValidateKeys(keys []string) error {
	if len(keys) == 0 {
		return &RequestError{Kind: ErrInvalidInput, Op: "check-missing", Err: fmt.Errorf("key list is empty")}
	}
	for i, key := range keys {
		if key == "" {
			return &RequestError{Kind: ErrInvalidInput, Op: "check-missing", Err: fmt.Errorf("key at index %d is empty", i)}
		}
	}
	return nil
}

// ValidatePayloads enforces the upload preconditions before any network
// call: non-empty key, value, and contentType, and base64 set.
func ValidatePayloads(payloads []UploadPayload) error {
	if len(payloads) == 0 {
		return &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("no payloads to upload")}
	}
	for i, p := range payloads {
		switch {
		case p.Key == "":
			return &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("payload %d has empty key", i)}
		case p.Value == "":
			return &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("payload %d (%s) has empty value", i, p.Key)}
		case p.Metadata.ContentType == "":
			return &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("payload %d (%s) has empty contentType", i, p.Key)}
		case !p.Base64:
			return &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("payload %d (%s) is not base64-flagged", i, p.Key)}
		}
	}
	return nil
}
