package stores

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/pkg/secretstore"
)

// GCPClientAPI defines the interface for GCP Secret Manager operations.
// The signatures match *secretmanager.Client so the real client satisfies
// it directly; tests inject a fake.
type GCPClientAPI interface {
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	GetSecret(ctx context.Context, req *secretmanagerpb.GetSecretRequest, opts ...gax.CallOption) (*secretmanagerpb.Secret, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest, opts ...gax.CallOption) error
}

// GCPStore implements both boundary interfaces on Google Cloud Secret
// Manager. Each coordinate maps to one secret whose latest version holds
// the payload.
type GCPStore struct {
	name      string
	client    GCPClientAPI
	projectID string
}

// GCPConfig holds GCP Secret Manager-specific configuration.
type GCPConfig struct {
	ProjectID             string
	ServiceAccountKeyPath string
}

// GCPStoreOption is a functional option for configuring the GCP backend.
type GCPStoreOption func(*GCPStore)

// WithGCPClient sets a custom Secret Manager client (for testing).
func WithGCPClient(client GCPClientAPI) GCPStoreOption {
	return func(s *GCPStore) {
		s.client = client
	}
}

// NewGCPStore creates a GCP Secret Manager backend.
func NewGCPStore(name string, configMap map[string]interface{}, opts ...GCPStoreOption) (*GCPStore, error) {
	config := GCPConfig{}

	if projectID, ok := configMap["project_id"].(string); ok {
		config.ProjectID = projectID
	}
	if keyPath, ok := configMap["service_account_key_path"].(string); ok {
		config.ServiceAccountKeyPath = keyPath
	}

	if config.ProjectID == "" {
		if projectID := getGCPProjectID(); projectID != "" {
			config.ProjectID = projectID
		} else {
			return nil, cserrors.ConfigError{
				Field:      "project_id",
				Message:    "project_id is required for GCP Secret Manager",
				Suggestion: "Set project_id in config or GOOGLE_CLOUD_PROJECT environment variable",
			}
		}
	}

	s := &GCPStore{
		name:      name,
		projectID: config.ProjectID,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createGCPClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// createGCPClient creates a GCP Secret Manager client.
func createGCPClient(config GCPConfig) (*secretmanager.Client, error) {
	ctx := context.Background()

	var clientOptions []option.ClientOption

	if config.ServiceAccountKeyPath != "" {
		keyPath := config.ServiceAccountKeyPath
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}

	return secretmanager.NewClient(ctx, clientOptions...)
}

// getGCPProjectID attempts to get the GCP project ID from the environment.
func getGCPProjectID() string {
	if projectID := os.Getenv("GOOGLE_CLOUD_PROJECT"); projectID != "" {
		return projectID
	}
	if projectID := os.Getenv("GCLOUD_PROJECT"); projectID != "" {
		return projectID
	}
	if projectID := os.Getenv("GCP_PROJECT"); projectID != "" {
		return projectID
	}
	return ""
}

// secretResource builds the full resource name for a secret.
func (s *GCPStore) secretResource(name string) string {
	return fmt.Sprintf("projects/%s/secrets/%s", s.projectID, name)
}

// Write persists the payload as a new version of the secret named by the
// coordinate, creating the secret first if it does not exist.
func (s *GCPStore) Write(ctx context.Context, coordinate string, value string) error {
	if err := s.ensureSecret(ctx, coordinate); err != nil {
		return secretstore.WriteError{Backend: s.name, Key: coordinate, Err: err}
	}

	_, err := s.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent: s.secretResource(coordinate),
		Payload: &secretmanagerpb.SecretPayload{
			Data: []byte(value),
		},
	})
	if err != nil {
		return secretstore.WriteError{
			Backend: s.name,
			Key:     coordinate,
			Err:     fmt.Errorf("%s: %w", gcpErrorSuggestion(err), err),
		}
	}
	return nil
}

// ensureSecret creates the secret container if it is missing.
func (s *GCPStore) ensureSecret(ctx context.Context, name string) error {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretResource(name),
	})
	if err == nil {
		return nil
	}
	if !isGCPNotFound(err) {
		return err
	}

	_, err = s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   fmt.Sprintf("projects/%s", s.projectID),
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
		},
	})
	return err
}

// Read returns the latest version of the secret named by the coordinate.
func (s *GCPStore) Read(ctx context.Context, coordinate string) (string, error) {
	result, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("%s/versions/latest", s.secretResource(coordinate)),
	})
	if err != nil {
		if isGCPNotFound(err) {
			return "", secretstore.NotFoundError{Backend: s.name, Key: coordinate}
		}
		return "", cserrors.UserError{
			Message:    fmt.Sprintf("Failed to access secret: %s", coordinate),
			Details:    err.Error(),
			Suggestion: gcpErrorSuggestion(err),
			Err:        err,
		}
	}

	if result.Payload == nil || result.Payload.Data == nil {
		return "", fmt.Errorf("secret '%s' has no data", coordinate)
	}
	return string(result.Payload.Data), nil
}

// Delete removes the secret and all its versions. Absent coordinates are
// not an error.
func (s *GCPStore) Delete(ctx context.Context, coordinate string) error {
	err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{
		Name: s.secretResource(coordinate),
	})
	if err != nil {
		if isGCPNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete secret '%s': %w", coordinate, err)
	}
	return nil
}

// Exists reports whether a secret with the given name is present, for the
// external manager boundary.
func (s *GCPStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetSecret(ctx, &secretmanagerpb.GetSecretRequest{
		Name: s.secretResource(name),
	})
	if err != nil {
		if isGCPNotFound(err) {
			return false, nil
		}
		return false, cserrors.UserError{
			Message:    fmt.Sprintf("Failed to check secret: %s", name),
			Details:    err.Error(),
			Suggestion: gcpErrorSuggestion(err),
			Err:        err,
		}
	}
	return true, nil
}

// isGCPNotFound checks for the Secret Manager not-found error.
func isGCPNotFound(err error) bool {
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "not found")
}

// gcpErrorSuggestion provides helpful suggestions based on GCP errors.
func gcpErrorSuggestion(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PermissionDenied"):
		return "Check IAM permissions: secretmanager.secrets.create, secretmanager.versions.access, secretmanager.secrets.delete"
	case strings.Contains(errStr, "Unauthenticated"):
		return "Check authentication: set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
	case strings.Contains(errStr, "InvalidArgument"):
		return "Check the secret name format"
	case strings.Contains(errStr, "ResourceExhausted"):
		return "Request was throttled. Consider adding exponential backoff"
	case strings.Contains(errStr, "project"):
		return "Check that the project ID is correct and the project exists"
	default:
		return "Check GCP credentials, project ID, and IAM permissions for Secret Manager"
	}
}

// NewGCPStoreFactory creates a GCP Secret Manager store factory.
func NewGCPStoreFactory(name string, config map[string]interface{}) (secretstore.Store, error) {
	return NewGCPStore(name, config)
}

// NewGCPManagerFactory creates a GCP Secret Manager manager factory.
func NewGCPManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	return NewGCPStore(name, config)
}
