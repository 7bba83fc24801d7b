package store

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"

	"github.com/harborworks/lighter/log"
	"github.com/harborworks/lighter/manifest"
	"github.com/harborworks/lighter/types"
)

// S3Config holds configuration for the S3-compatible direct backend.
type S3Config struct {
	// Bucket is the bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
	// PublicURL is the public base URL reported on deployments, when the
	// bucket fronts a website or CDN. Optional.
	PublicURL string
	// CheckTimeout bounds the whole missing-keys pass (default 30s).
	CheckTimeout time.Duration
	// UploadTimeout bounds the whole upload pass (default 5m).
	UploadTimeout time.Duration
}

// Validate checks that required configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("%w: s3 bucket is required", ErrInvalidInput)
	}
	return nil
}

// ParseBucketPath parses a path in format "bucket/prefix" or "bucket".
func ParseBucketPath(path string) (bucket, prefix string) {
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// S3Store deploys directly to an S3-compatible bucket. Content objects are
// keyed by content key under content/; each deployment writes a manifest
// document under projects/<project>/deployments/.
type S3Store struct {
	client s3API
	cfg    S3Config
	logger *log.Logger
}

// s3API is the subset of the S3 client the store uses. Narrowed for test
// injection.
type s3API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Verify S3Store implements the store interface.
var _ Store = (*S3Store)(nil)

// NewS3Store creates a direct S3 backend.
// Uses the AWS SDK default credential chain (env vars, shared config, IAM
// role); no credential material passes through this process's config.
func NewS3Store(ctx context.Context, cfg S3Config, logger *log.Logger) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &RequestError{Kind: ErrAuthentication, Op: "init", Err: fmt.Errorf("load AWS config: %w", err)}
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return newS3StoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg, logger), nil
}

// newS3StoreWithClient wires an explicit client, for tests.
func newS3StoreWithClient(client s3API, cfg S3Config, logger *log.Logger) *S3Store {
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = DefaultUploadTimeout
	}
	return &S3Store{client: client, cfg: cfg, logger: logger}
}

// contentObjectKey is the object key for a content key.
func (s *S3Store) contentObjectKey(key string) string {
	return s.joinPrefix("content/" + key)
}

// deploymentObjectKey is the object key for a deployment document.
func (s *S3Store) deploymentObjectKey(project, id string) string {
	return s.joinPrefix(fmt.Sprintf("projects/%s/deployments/%s.json", project, id))
}

// latestObjectKey is the object key of the rolling latest-deployment pointer.
func (s *S3Store) latestObjectKey(project string) string {
	return s.joinPrefix(fmt.Sprintf("projects/%s/deployments/latest.json", project))
}

func (s *S3Store) joinPrefix(key string) string {
	if s.cfg.Prefix == "" {
		return key
	}
	return strings.TrimRight(s.cfg.Prefix, "/") + "/" + key
}

// EnsureProject verifies the bucket is reachable. Projects are plain key
// prefixes in this backend, so there is nothing to create.
func (s *S3Store) EnsureProject(ctx context.Context, project string) error {
	if project == "" {
		return &RequestError{Kind: ErrInvalidInput, Op: "ensure-project", Err: fmt.Errorf("project name is empty")}
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.cfg.Bucket)})
	if err != nil {
		return s.wrap("ensure-project", err)
	}
	return nil
}

// IssueCredential returns an ambient-chain marker: S3 authorization comes
// from the SDK credential chain, not from a token carried in-process.
func (s *S3Store) IssueCredential(ctx context.Context, project string) (Credential, error) {
	if project == "" {
		return Credential{}, &RequestError{Kind: ErrInvalidInput, Op: "issue-credential", Err: fmt.Errorf("project name is empty")}
	}
	return Credential{
		Project:  project,
		IssuedAt: time.Now().UTC(),
		Ambient:  true,
	}, nil
}

// MissingKeys heads every content object and reports those not found.
// A transport failure is never treated as "nothing missing".
func (s *S3Store) MissingKeys(ctx context.Context, cred Credential, keys []string) ([]string, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CheckTimeout)
	defer cancel()

	missing := make([]string, 0, len(keys))
	for _, key := range keys {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.cfg.Bucket),
			Key:    aws.String(s.contentObjectKey(key)),
		})
		if err == nil {
			continue
		}
		if isNotFound(err) {
			missing = append(missing, key)
			continue
		}
		return nil, s.wrap("check-missing", err)
	}

	s.logf("diff check complete", map[string]any{
		"keys_total":   len(keys),
		"keys_missing": len(missing),
	})
	return missing, nil
}

// UploadBatch puts each payload's content object. Authorization failures
// abort immediately; other per-object failures are collected into the
// receipt's unsuccessful keys so the caller fails the run with full
// knowledge of what is absent.
func (s *S3Store) UploadBatch(ctx context.Context, cred Credential, payloads []UploadPayload) (UploadReceipt, error) {
	if err := ValidatePayloads(payloads); err != nil {
		return UploadReceipt{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.UploadTimeout)
	defer cancel()

	receipt := UploadReceipt{}
	for _, payload := range payloads {
		content, err := base64.StdEncoding.DecodeString(payload.Value)
		if err != nil {
			return UploadReceipt{}, &RequestError{Kind: ErrInvalidInput, Op: "upload", Err: fmt.Errorf("payload %s is not valid base64: %w", payload.Key, err)}
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(s.contentObjectKey(payload.Key)),
			Body:        bytes.NewReader(content),
			ContentType: aws.String(payload.Metadata.ContentType),
		})
		if err == nil {
			receipt.SuccessCount++
			continue
		}
		if isAuthError(err) || ctx.Err() != nil {
			return UploadReceipt{}, s.wrap("upload", err)
		}
		receipt.UnsuccessfulKeys = append(receipt.UnsuccessfulKeys, payload.Key)
	}

	s.logf("upload batch complete", map[string]any{
		"payloads":     len(payloads),
		"success":      receipt.SuccessCount,
		"unsuccessful": len(receipt.UnsuccessfulKeys),
	})
	return receipt, nil
}

// deploymentDocument is the manifest record written per deployment.
type deploymentDocument struct {
	ID        string            `json:"id"`
	Project   string            `json:"project"`
	CreatedAt time.Time         `json:"created_at"`
	Manifest  manifest.Manifest `json:"manifest"`
}

// CreateDeployment writes the deployment document and updates the latest
// pointer. The backend has no build phase, so a written manifest is live.
func (s *S3Store) CreateDeployment(ctx context.Context, project string, m manifest.Manifest) (types.Deployment, error) {
	if project == "" {
		return types.Deployment{}, &RequestError{Kind: ErrInvalidInput, Op: "create-deployment", Err: fmt.Errorf("project name is empty")}
	}
	if len(m) == 0 {
		return types.Deployment{}, &RequestError{Kind: ErrInvalidInput, Op: "create-deployment", Err: fmt.Errorf("manifest is empty")}
	}

	doc := deploymentDocument{
		ID:        uuid.New().String(),
		Project:   project,
		CreatedAt: time.Now().UTC(),
		Manifest:  m,
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return types.Deployment{}, &RequestError{Kind: ErrInvalidInput, Op: "create-deployment", Err: fmt.Errorf("marshal deployment: %w", err)}
	}

	for _, objectKey := range []string{
		s.deploymentObjectKey(project, doc.ID),
		s.latestObjectKey(project),
	} {
		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.cfg.Bucket),
			Key:         aws.String(objectKey),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			return types.Deployment{}, s.wrap("create-deployment", err)
		}
	}

	s.logf("deployment created", map[string]any{
		"project":       project,
		"deployment_id": doc.ID,
	})
	return types.Deployment{
		ID:     doc.ID,
		URL:    s.cfg.PublicURL,
		Status: types.StatusSuccess,
	}, nil
}

// wrap classifies an SDK error into the store taxonomy.
func (s *S3Store) wrap(op string, err error) error {
	kind := ErrNetwork
	status := 0

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			kind = ErrAuthentication
		default:
			kind = ErrRemoteService
		}
		return &RequestError{Kind: kind, Op: op, Status: status, Remote: apiErr.ErrorCode(), Err: err}
	}

	return &RequestError{Kind: kind, Op: op, Err: err}
}

// isNotFound reports whether err is an object-missing answer rather than a
// failure. HeadObject reports 404 as code "NotFound".
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey"
	}
	return false
}

// isAuthError reports whether err is an authorization failure.
func isAuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "TokenRefreshRequired":
			return true
		}
	}
	return false
}

func (s *S3Store) logf(message string, fields map[string]any) {
	if s.logger != nil {
		s.logger.Info(message, fields)
	}
}
