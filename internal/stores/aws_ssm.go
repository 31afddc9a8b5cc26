package stores

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/pkg/secretstore"
)

// SSMClientAPI defines the interface for AWS SSM Parameter Store operations.
// This allows for mocking in tests.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	DescribeParameters(ctx context.Context, params *ssm.DescribeParametersInput, optFns ...func(*ssm.Options)) (*ssm.DescribeParametersOutput, error)
}

// SSMManager reads externally managed secrets from AWS Systems Manager
// Parameter Store. It is a read-only external manager; obfuscated
// payloads are never written here.
type SSMManager struct {
	name   string
	client SSMClientAPI
	config SSMConfig
}

// SSMConfig holds AWS SSM-specific configuration.
type SSMConfig struct {
	Region          string
	Profile         string
	WithDecryption  bool
	ParameterPrefix string
}

// SSMManagerOption is a functional option for configuring the SSM manager.
type SSMManagerOption func(*SSMManager)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) SSMManagerOption {
	return func(m *SSMManager) {
		m.client = client
	}
}

// NewSSMManager creates an AWS SSM Parameter Store external manager.
func NewSSMManager(name string, configMap map[string]interface{}, opts ...SSMManagerOption) (*SSMManager, error) {
	config := SSMConfig{
		WithDecryption: true, // Default to decrypting SecureString parameters
	}

	if region, ok := configMap["region"].(string); ok {
		config.Region = region
	}
	if profile, ok := configMap["profile"].(string); ok {
		config.Profile = profile
	}
	if decrypt, ok := configMap["with_decryption"].(bool); ok {
		config.WithDecryption = decrypt
	}
	if prefix, ok := configMap["parameter_prefix"].(string); ok {
		config.ParameterPrefix = prefix
	}

	m := &SSMManager{
		name:   name,
		config: config,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.client == nil {
		client, err := createSSMClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create SSM client: %w", err)
		}
		m.client = client
	}

	return m, nil
}

// createSSMClient creates an AWS SSM client with the given configuration.
func createSSMClient(config SSMConfig) (*ssm.Client, error) {
	ctx := context.Background()

	var configOpts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(config.Region))
	}
	if config.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(config.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return ssm.NewFromConfig(cfg), nil
}

// parameterName applies the configured prefix to an external secret name.
func (m *SSMManager) parameterName(name string) string {
	if m.config.ParameterPrefix != "" {
		return m.config.ParameterPrefix + name
	}
	return name
}

// Exists reports whether the named parameter is present without fetching
// its value.
func (m *SSMManager) Exists(ctx context.Context, name string) (bool, error) {
	input := &ssm.DescribeParametersInput{
		ParameterFilters: []types.ParameterStringFilter{
			{
				Key:    aws.String("Name"),
				Values: []string{m.parameterName(name)},
			},
		},
	}

	result, err := m.client.DescribeParameters(ctx, input)
	if err != nil {
		return false, cserrors.UserError{
			Message:    fmt.Sprintf("Failed to describe parameter: %s", name),
			Details:    err.Error(),
			Suggestion: ssmErrorSuggestion(err),
			Err:        err,
		}
	}

	return len(result.Parameters) > 0, nil
}

// Read fetches a parameter value from SSM Parameter Store.
func (m *SSMManager) Read(ctx context.Context, name string) (string, error) {
	parameterName := m.parameterName(name)

	input := &ssm.GetParameterInput{
		Name:           aws.String(parameterName),
		WithDecryption: aws.Bool(m.config.WithDecryption),
	}

	result, err := m.client.GetParameter(ctx, input)
	if err != nil {
		if isParameterNotFoundError(err) {
			return "", secretstore.NotFoundError{Backend: m.name, Key: name}
		}
		return "", cserrors.UserError{
			Message:    fmt.Sprintf("Failed to get parameter: %s", name),
			Details:    err.Error(),
			Suggestion: ssmErrorSuggestion(err),
			Err:        err,
		}
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", fmt.Errorf("parameter '%s' has no value", parameterName)
	}

	return *result.Parameter.Value, nil
}

// isParameterNotFoundError checks for the SSM parameter-not-found error.
func isParameterNotFoundError(err error) bool {
	return strings.Contains(err.Error(), "ParameterNotFound")
}

// ssmErrorSuggestion provides helpful suggestions based on SSM errors.
func ssmErrorSuggestion(err error) string {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "AccessDenied"):
		return "Check IAM permissions for ssm:GetParameter and ssm:DescribeParameters"
	case strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization"):
		return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
	case strings.Contains(errStr, "ThrottlingException"):
		return "AWS rate limit exceeded. Wait a moment and try again"
	default:
		return "Check AWS credentials, region, and IAM permissions for Parameter Store"
	}
}

// NewSSMManagerFactory creates an SSM Parameter Store manager factory.
func NewSSMManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	return NewSSMManager(name, config)
}
