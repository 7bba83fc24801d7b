package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/harborworks/lighter/iox"
	"github.com/harborworks/lighter/log"
	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/types"
)

// Default per-call timeouts. Upload is deliberately the longest: batch
// payload volume varies, while the diff check carries only key strings.
const (
	DefaultCheckTimeout  = 30 * time.Second
	DefaultUploadTimeout = 5 * time.Minute
	DefaultDeployTimeout = 60 * time.Second
)

// maxErrorBody caps how much of a remote error payload is read for
// diagnostics.
const maxErrorBody = 64 * 1024

// APIConfig configures the HTTPS JSON API client.
type APIConfig struct {
	// Endpoint is the base URL of the artifact store API (required).
	Endpoint string
	// Token is the account token for project and deployment operations.
	// Content operations use the per-run upload credential instead.
	Token string
	// CheckTimeout bounds the check-missing call (default 30s).
	CheckTimeout time.Duration
	// UploadTimeout bounds the upload call (default 5m). Must exceed
	// CheckTimeout.
	UploadTimeout time.Duration
	// DeployTimeout bounds ensure-project, credential issuance, and
	// deployment submission (default 60s).
	DeployTimeout time.Duration
	// HTTPClient overrides the transport, for tests.
	HTTPClient *http.Client
	// Logger receives per-operation logs. Optional.
	Logger *log.Logger
}

// APIClient talks to the artifact store API.
type APIClient struct {
	endpoint string
	token    string
	check    time.Duration
	upload   time.Duration
	deploy   time.Duration
	client   *http.Client
	logger   *log.Logger
}

// Verify APIClient implements the store interface.
var _ Store = (*APIClient)(nil)

// NewAPIClient creates an API client from the given config.
func NewAPIClient(cfg APIConfig) (*APIClient, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(cfg.Endpoint)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q is not an absolute URL", ErrInvalidInput, cfg.Endpoint)
	}

	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	if cfg.DeployTimeout <= 0 {
		cfg.DeployTimeout = DefaultDeployTimeout
	}
	if cfg.UploadTimeout <= cfg.CheckTimeout {
		return nil, fmt.Errorf("%w: upload timeout (%s) must exceed check timeout (%s)",
			ErrInvalidInput, cfg.UploadTimeout, cfg.CheckTimeout)
	}

	client := cfg.HTTPClient
	if client == nil {
		// Per-call deadlines come from contexts; no global client timeout.
		client = &http.Client{}
	}

	return &APIClient{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		check:    cfg.CheckTimeout,
		upload:   cfg.UploadTimeout,
		deploy:   cfg.DeployTimeout,
		client:   client,
		logger:   cfg.Logger,
	}, nil
}

// EnsureProject creates the project, tolerating "already exists" (409).
func (c *APIClient) EnsureProject(ctx context.Context, project string) error {
	if project == "" {
		return &RequestError{Kind: ErrInvalidInput, Op: "ensure-project", Err: fmt.Errorf("project name is empty")}
	}

	body := map[string]string{"name": project}
	status, _, err := c.do(ctx, "ensure-project", http.MethodPost, "/v1/projects", c.token, body, nil, c.deploy)
	if err != nil {
		var reqErr *RequestError
		// 409 means the project already exists — success for our purposes.
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusConflict {
			c.logf("project already exists", map[string]any{"project": project})
			return nil
		}
		return err
	}

	c.logf("project ensured", map[string]any{"project": project, "status": status})
	return nil
}

// credentialResponse is the wire shape of an issued upload credential.
type credentialResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// IssueCredential obtains a short-lived upload credential for the project.
func (c *APIClient) IssueCredential(ctx context.Context, project string) (Credential, error) {
	if project == "" {
		return Credential{}, &RequestError{Kind: ErrInvalidInput, Op: "issue-credential", Err: fmt.Errorf("project name is empty")}
	}

	var resp credentialResponse
	path := fmt.Sprintf("/v1/projects/%s/upload-credentials", url.PathEscape(project))
	_, _, err := c.do(ctx, "issue-credential", http.MethodPost, path, c.token, nil, &resp, c.deploy)
	if err != nil {
		return Credential{}, err
	}
	if resp.Token == "" {
		return Credential{}, &RequestError{Kind: ErrRemoteService, Op: "issue-credential", Err: fmt.Errorf("store returned an empty credential")}
	}

	cred := Credential{
		Token:    resp.Token,
		Project:  project,
		IssuedAt: time.Now().UTC(),
	}
	if resp.ExpiresAt != "" {
		if expires, parseErr := time.Parse(time.RFC3339, resp.ExpiresAt); parseErr == nil {
			cred.ExpiresAt = expires
		}
	}

	c.logf("upload credential issued", map[string]any{"project": project})
	return cred, nil
}

// MissingKeys asks the store which keys it does not hold.
func (c *APIClient) MissingKeys(ctx context.Context, cred Credential, keys []string) ([]string, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	if cred.Token == "" {
		return nil, &RequestError{Kind: ErrAuthentication, Op: "check-missing", Err: fmt.Errorf("upload credential is empty")}
	}

	body := map[string][]string{"keys": keys}
	var resp struct {
		Missing []string `json:"missing"`
	}
	_, _, err := c.do(ctx, "check-missing", http.MethodPost, "/v1/artifacts/check-missing", cred.Token, body, &resp, c.check)
	if err != nil {
		return nil, err
	}

	c.logf("diff check complete", map[string]any{
		"keys_total":   len(keys),
		"keys_missing": len(resp.Missing),
	})
	return resp.Missing, nil
}

// UploadBatch transmits all payloads in one call and returns the receipt.
// A receipt with unsuccessful keys is returned without error; the caller
// decides the run's fate (and must treat it as fatal).
func (c *APIClient) UploadBatch(ctx context.Context, cred Credential, payloads []UploadPayload) (UploadReceipt, error) {
	if err := ValidatePayloads(payloads); err != nil {
		return UploadReceipt{}, err
	}
	if cred.Token == "" {
		return UploadReceipt{}, &RequestError{Kind: ErrAuthentication, Op: "upload", Err: fmt.Errorf("upload credential is empty")}
	}

	var receipt UploadReceipt
	_, _, err := c.do(ctx, "upload", http.MethodPost, "/v1/artifacts/upload", cred.Token, payloads, &receipt, c.upload)
	if err != nil {
		return UploadReceipt{}, err
	}

	c.logf("upload batch complete", map[string]any{
		"payloads":     len(payloads),
		"success":      receipt.SuccessCount,
		"unsuccessful": len(receipt.UnsuccessfulKeys),
	})
	return receipt, nil
}

// deploymentResponse is the wire shape of a created deployment.
type deploymentResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
	Error  string `json:"error"`
}

// CreateDeployment submits the manifest and normalizes the result.
func (c *APIClient) CreateDeployment(ctx context.Context, project string, m manifest.Manifest) (types.Deployment, error) {
	if project == "" {
		return types.Deployment{}, &RequestError{Kind: ErrInvalidInput, Op: "create-deployment", Err: fmt.Errorf("project name is empty")}
	}
	if len(m) == 0 {
		return types.Deployment{}, &RequestError{Kind: ErrInvalidInput, Op: "create-deployment", Err: fmt.Errorf("manifest is empty")}
	}

	body := map[string]any{"manifest": m}
	var resp deploymentResponse
	path := fmt.Sprintf("/v1/projects/%s/deployments", url.PathEscape(project))
	_, _, err := c.do(ctx, "create-deployment", http.MethodPost, path, c.token, body, &resp, c.deploy)
	if err != nil {
		return types.Deployment{}, err
	}

	deployment := types.Deployment{
		ID:     resp.ID,
		URL:    resp.URL,
		Status: types.NormalizeStatus(resp.Status),
		Error:  resp.Error,
	}
	if deployment.Status == types.StatusFailure && deployment.Error == "" {
		deployment.Error = "deployment failed (no detail from store)"
	}

	c.logf("deployment created", map[string]any{
		"project":       project,
		"deployment_id": deployment.ID,
		"status":        string(deployment.Status),
	})
	return deployment, nil
}

// do performs one JSON request. Returns the response status code, the
// decoded body length, and a classified error on any non-2xx response or
// transport failure.
func (c *APIClient) do(ctx context.Context, op, method, path, auth string, body, out any, timeout time.Duration) (int, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, 0, &RequestError{Kind: ErrInvalidInput, Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return 0, 0, &RequestError{Kind: ErrInvalidInput, Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, 0, &RequestError{Kind: ErrNetwork, Op: op, Err: err}
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remote := remoteMessage(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, 0, &RequestError{
			Kind:   classifyStatus(resp.StatusCode),
			Op:     op,
			Status: resp.StatusCode,
			Remote: remote,
		}
	}

	var n int64
	if out != nil {
		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return resp.StatusCode, 0, &RequestError{Kind: ErrNetwork, Op: op, Err: fmt.Errorf("read response: %w", readErr)}
		}
		n = int64(len(data))
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, n, &RequestError{Kind: ErrRemoteService, Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	} else {
		// Drain to allow connection reuse.
		_, _ = io.Copy(io.Discard, resp.Body)
	}

	return resp.StatusCode, n, nil
}

// remoteMessage extracts a human-readable message from a remote error
// payload. Tries {"error": {"message": ...}}, then {"error": "..."}, then
// falls back to the raw body.
func remoteMessage(r io.Reader) string {
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return ""
	}

	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}

	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &flat) == nil && flat.Error != "" {
		return flat.Error
	}

	return strings.TrimSpace(string(raw))
}

func (c *APIClient) logf(message string, fields map[string]any) {
	if c.logger != nil {
		c.logger.Info(message, fields)
	}
}
