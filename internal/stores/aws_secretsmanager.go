package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/pkg/secretstore"
)

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager
// operations. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// AWSStore implements both boundary interfaces on AWS Secrets Manager:
// Store for managed payloads (each coordinate is one AWS secret) and
// Manager for externally managed secrets addressed by name.
type AWSStore struct {
	name     string
	client   SecretsManagerClientAPI
	region   string
	endpoint string // Optional custom endpoint for LocalStack or testing
}

// AWSStoreOption is a functional option for configuring the AWS backend.
type AWSStoreOption func(*AWSStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing).
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSStoreOption {
	return func(s *AWSStore) {
		s.client = client
	}
}

// NewAWSStore creates an AWS Secrets Manager backend.
func NewAWSStore(name string, backendConfig map[string]interface{}, opts ...AWSStoreOption) (*AWSStore, error) {
	region := "us-east-1" // Default region
	if r, ok := backendConfig["region"].(string); ok && r != "" {
		region = r
	}

	var endpoint string
	if e, ok := backendConfig["endpoint"].(string); ok && e != "" {
		endpoint = e
	}

	var accessKeyID, secretAccessKey string
	if ak, ok := backendConfig["access_key_id"].(string); ok && ak != "" {
		accessKeyID = ak
	}
	if sk, ok := backendConfig["secret_access_key"].(string); ok && sk != "" {
		secretAccessKey = sk
	}

	s := &AWSStore{
		name:     name,
		region:   region,
		endpoint: endpoint,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))

		// Static credentials are for LocalStack/testing
		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = &endpoint
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// Write persists the payload as its own AWS secret named by the coordinate.
// A repeated write to the same coordinate becomes a PutSecretValue.
func (s *AWSStore) Write(ctx context.Context, coordinate string, value string) error {
	_, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(coordinate),
		SecretString: aws.String(value),
	})
	if err == nil {
		return nil
	}

	var exists *types.ResourceExistsException
	if errors.As(err, &exists) {
		_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(coordinate),
			SecretString: aws.String(value),
		})
		if err == nil {
			return nil
		}
	}

	return secretstore.WriteError{
		Backend: s.name,
		Key:     coordinate,
		Err:     fmt.Errorf("%s: %w", awsErrorSuggestion(err), err),
	}
}

// Read returns the payload of the secret named by the coordinate.
func (s *AWSStore) Read(ctx context.Context, coordinate string) (string, error) {
	return s.getSecretString(ctx, coordinate)
}

// Delete schedules the secret for immediate deletion without a recovery
// window; v-versioned coordinates are never reused, so recovery is
// meaningless. Absent coordinates are not an error.
func (s *AWSStore) Delete(ctx context.Context, coordinate string) error {
	_, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(coordinate),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to delete secret '%s': %w", coordinate, err)
	}
	return nil
}

// Exists reports whether a secret with the given name is present, for the
// external manager boundary.
func (s *AWSStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, cserrors.UserError{
			Message:    fmt.Sprintf("Failed to check secret: %s", name),
			Details:    err.Error(),
			Suggestion: awsErrorSuggestion(err),
			Err:        err,
		}
	}
	return true, nil
}

// getSecretString fetches the current version of a secret by id.
func (s *AWSStore) getSecretString(ctx context.Context, id string) (string, error) {
	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", secretstore.NotFoundError{Backend: s.name, Key: id}
		}
		return "", cserrors.UserError{
			Message:    fmt.Sprintf("Failed to access secret: %s", id),
			Details:    err.Error(),
			Suggestion: awsErrorSuggestion(err),
			Err:        err,
		}
	}

	if result.SecretString != nil {
		return *result.SecretString, nil
	}
	if result.SecretBinary != nil {
		return string(result.SecretBinary), nil
	}
	return "", fmt.Errorf("secret '%s' has no value", id)
}

// awsErrorSuggestion provides helpful suggestions based on AWS errors.
func awsErrorSuggestion(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "AccessDenied"):
		return "Check IAM permissions for secretsmanager:GetSecretValue, CreateSecret, PutSecretValue, DeleteSecret"
	case strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization"):
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	case strings.Contains(errStr, "ThrottlingException"):
		return "AWS rate limit exceeded. Wait a moment and try again"
	case strings.Contains(errStr, "InvalidRequestException"):
		return "The secret may be scheduled for deletion. Check its status in the AWS console"
	default:
		return "Check AWS credentials, region, and IAM permissions for Secrets Manager"
	}
}

// NewAWSStoreFactory creates an AWS Secrets Manager store factory.
func NewAWSStoreFactory(name string, config map[string]interface{}) (secretstore.Store, error) {
	return NewAWSStore(name, config)
}

// NewAWSManagerFactory creates an AWS Secrets Manager manager factory.
func NewAWSManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	return NewAWSStore(name, config)
}
