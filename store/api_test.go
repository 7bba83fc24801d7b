package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/types"
)

func newTestClient(t *testing.T, srv *httptest.Server) *APIClient {
	t.Helper()
	client, err := NewAPIClient(APIConfig{
		Endpoint: srv.URL,
		Token:    "account-token",
	})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	return client
}

func TestNewAPIClientConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     APIConfig
		wantErr bool
	}{
		{name: "empty endpoint", cfg: APIConfig{}, wantErr: true},
		{name: "relative endpoint", cfg: APIConfig{Endpoint: "/v1"}, wantErr: true},
		{name: "upload not above check", cfg: APIConfig{Endpoint: "https://store.example.com", CheckTimeout: time.Minute, UploadTimeout: time.Second}, wantErr: true},
		{name: "valid", cfg: APIConfig{Endpoint: "https://store.example.com"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewAPIClient(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewAPIClient: %v", err)
			}
			if client.check != DefaultCheckTimeout {
				t.Errorf("check timeout = %v, want default %v", client.check, DefaultCheckTimeout)
			}
			if client.upload != DefaultUploadTimeout {
				t.Errorf("upload timeout = %v, want default %v", client.upload, DefaultUploadTimeout)
			}
			if client.upload <= client.check {
				t.Error("upload timeout must exceed check timeout")
			}
		})
	}
}

func TestEnsureProject(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if err := client.EnsureProject(context.Background(), "docs-site"); err != nil {
		t.Fatalf("EnsureProject: %v", err)
	}

	if gotPath != "/v1/projects" {
		t.Errorf("path = %q, want /v1/projects", gotPath)
	}
	if gotAuth != "Bearer account-token" {
		t.Errorf("auth = %q, want the account token", gotAuth)
	}
	if gotBody["name"] != "docs-site" {
		t.Errorf("body name = %q, want docs-site", gotBody["name"])
	}
}

func TestEnsureProjectToleratesConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = io.WriteString(w, `{"error":"project already exists"}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if err := client.EnsureProject(context.Background(), "docs-site"); err != nil {
		t.Fatalf("expected 409 to be tolerated, got %v", err)
	}
}

func TestEnsureProjectErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrAuthentication},
		{name: "forbidden", status: http.StatusForbidden, want: ErrAuthentication},
		{name: "server error", status: http.StatusInternalServerError, want: ErrRemoteService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := newTestClient(t, srv)
			err := client.EnsureProject(context.Background(), "docs-site")
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestEnsureProjectEmptyName(t *testing.T) {
	client, err := NewAPIClient(APIConfig{Endpoint: "https://store.example.com"})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	if err := client.EnsureProject(context.Background(), ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want %v", err, ErrInvalidInput)
	}
}

func TestIssueCredential(t *testing.T) {
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/docs-site/upload-credentials" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"token":      "short-lived-upload-token",
			"expires_at": expires.Format(time.RFC3339),
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	cred, err := client.IssueCredential(context.Background(), "docs-site")
	if err != nil {
		t.Fatalf("IssueCredential: %v", err)
	}

	if cred.Token != "short-lived-upload-token" {
		t.Errorf("token = %q", cred.Token)
	}
	if cred.Project != "docs-site" {
		t.Errorf("project = %q", cred.Project)
	}
	if !cred.ExpiresAt.Equal(expires) {
		t.Errorf("expiry = %v, want %v", cred.ExpiresAt, expires)
	}
	if cred.Ambient {
		t.Error("API credentials are bearer, not ambient")
	}
}

func TestIssueCredentialEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	if _, err := client.IssueCredential(context.Background(), "docs-site"); !errors.Is(err, ErrRemoteService) {
		t.Errorf("error = %v, want %v", err, ErrRemoteService)
	}
}

func TestMissingKeysUsesUploadCredential(t *testing.T) {
	var gotAuth string
	var gotBody map[string][]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string][]string{"missing": {"bbbb"}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	cred := Credential{Token: "upload-token", Project: "docs-site"}

	missing, err := client.MissingKeys(context.Background(), cred, []string{"aaaa", "bbbb"})
	if err != nil {
		t.Fatalf("MissingKeys: %v", err)
	}

	if gotAuth != "Bearer upload-token" {
		t.Errorf("auth = %q, want the upload credential, not the account token", gotAuth)
	}
	if len(gotBody["keys"]) != 2 {
		t.Errorf("sent %d keys, want 2", len(gotBody["keys"]))
	}
	if len(missing) != 1 || missing[0] != "bbbb" {
		t.Errorf("missing = %v, want [bbbb]", missing)
	}
}

func TestMissingKeysValidation(t *testing.T) {
	client, err := NewAPIClient(APIConfig{Endpoint: "https://store.example.com"})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}

	if _, err := client.MissingKeys(context.Background(), Credential{Token: "x"}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty key list: error = %v, want %v", err, ErrInvalidInput)
	}
	if _, err := client.MissingKeys(context.Background(), Credential{}, []string{"aaaa"}); !errors.Is(err, ErrAuthentication) {
		t.Errorf("empty credential: error = %v, want %v", err, ErrAuthentication)
	}
}

func TestUploadBatchReceipt(t *testing.T) {
	var gotPayloads []UploadPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayloads)
		_ = json.NewEncoder(w).Encode(UploadReceipt{
			SuccessCount:     1,
			UnsuccessfulKeys: []string{"bbbb"},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	cred := Credential{Token: "upload-token"}
	payloads := []UploadPayload{
		{Key: "aaaa", Base64: true, Value: "aGVsbG8=", Metadata: PayloadMetadata{ContentType: "text/html"}},
		{Key: "bbbb", Base64: true, Value: "d29ybGQ=", Metadata: PayloadMetadata{ContentType: "text/css"}},
	}

	receipt, err := client.UploadBatch(context.Background(), cred, payloads)
	if err != nil {
		t.Fatalf("UploadBatch: %v", err)
	}

	// Unsuccessful keys come back as data; deciding the run's fate is the
	// caller's job.
	if receipt.SuccessCount != 1 {
		t.Errorf("success count = %d, want 1", receipt.SuccessCount)
	}
	if len(receipt.UnsuccessfulKeys) != 1 || receipt.UnsuccessfulKeys[0] != "bbbb" {
		t.Errorf("unsuccessful keys = %v, want [bbbb]", receipt.UnsuccessfulKeys)
	}
	if len(gotPayloads) != 2 {
		t.Fatalf("server saw %d payloads, want 2", len(gotPayloads))
	}
	if !gotPayloads[0].Base64 {
		t.Error("payloads must declare base64 transfer encoding")
	}
}

func TestUploadBatchValidation(t *testing.T) {
	client, err := NewAPIClient(APIConfig{Endpoint: "https://store.example.com"})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}

	tests := []struct {
		name     string
		payloads []UploadPayload
	}{
		{name: "empty batch", payloads: nil},
		{name: "empty key", payloads: []UploadPayload{{Base64: true, Value: "aGk=", Metadata: PayloadMetadata{ContentType: "text/plain"}}}},
		{name: "empty value", payloads: []UploadPayload{{Key: "aaaa", Base64: true, Metadata: PayloadMetadata{ContentType: "text/plain"}}}},
		{name: "not base64", payloads: []UploadPayload{{Key: "aaaa", Value: "hi", Metadata: PayloadMetadata{ContentType: "text/plain"}}}},
		{name: "no content type", payloads: []UploadPayload{{Key: "aaaa", Base64: true, Value: "aGk="}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := client.UploadBatch(context.Background(), Credential{Token: "x"}, tt.payloads); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error = %v, want %v", err, ErrInvalidInput)
			}
		})
	}
}

func TestCreateDeployment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/docs-site/deployments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]manifest.Manifest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body["manifest"]) != 1 {
			t.Errorf("manifest entries = %d, want 1", len(body["manifest"]))
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":     "dep-123",
			"url":    "https://docs-site.example.app",
			"status": "SUCCEEDED",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	m := manifest.Manifest{"/index.html": "aaaa"}

	deployment, err := client.CreateDeployment(context.Background(), "docs-site", m)
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	if deployment.ID != "dep-123" {
		t.Errorf("id = %q", deployment.ID)
	}
	if deployment.URL != "https://docs-site.example.app" {
		t.Errorf("url = %q", deployment.URL)
	}
	if deployment.Status != types.StatusSuccess {
		t.Errorf("status = %q, want the normalized success status", deployment.Status)
	}
}

func TestCreateDeploymentFailureFillsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "dep-9", "status": "failed"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	deployment, err := client.CreateDeployment(context.Background(), "docs-site", manifest.Manifest{"/a": "k"})
	if err != nil {
		t.Fatalf("CreateDeployment: %v", err)
	}

	if deployment.Status != types.StatusFailure {
		t.Errorf("status = %q, want failure", deployment.Status)
	}
	if deployment.Error == "" {
		t.Error("a failed deployment must carry an error message")
	}
}

func TestCreateDeploymentEmptyManifest(t *testing.T) {
	client, err := NewAPIClient(APIConfig{Endpoint: "https://store.example.com"})
	if err != nil {
		t.Fatalf("NewAPIClient: %v", err)
	}
	if _, err := client.CreateDeployment(context.Background(), "docs-site", nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("error = %v, want %v", err, ErrInvalidInput)
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newTestClient(t, srv)
	srv.Close()

	err := client.EnsureProject(context.Background(), "docs-site")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("error = %v, want %v", err, ErrNetwork)
	}
}

func TestRemoteErrorMessageSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"manifest path must start with /"}}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.CreateDeployment(context.Background(), "docs-site", manifest.Manifest{"/a": "k"})
	if err == nil {
		t.Fatal("expected an error")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type = %T, want *RequestError", err)
	}
	if reqErr.Remote != "manifest path must start with /" {
		t.Errorf("remote = %q, want the nested message", reqErr.Remote)
	}
	if reqErr.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", reqErr.Status)
	}
}
