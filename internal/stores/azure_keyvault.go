package stores

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	cserrors "github.com/systmms/confseal/internal/errors"
	"github.com/systmms/confseal/pkg/secretstore"
)

// AzureClientAPI defines the interface for Azure Key Vault operations.
// This allows for mocking in tests.
type AzureClientAPI interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
}

// AzureStore implements both boundary interfaces on Azure Key Vault.
// Key Vault secret names cannot contain underscores, so coordinates are
// stored under a dash-mangled name; the mapping is deterministic because
// coordinate segments never contain dashes next to underscores.
type AzureStore struct {
	name     string
	client   AzureClientAPI
	vaultURL string
}

// AzureConfig holds Azure Key Vault-specific configuration.
type AzureConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// AzureStoreOption is a functional option for configuring the Azure backend.
type AzureStoreOption func(*AzureStore)

// WithAzureClient sets a custom Key Vault client (for testing).
func WithAzureClient(client AzureClientAPI) AzureStoreOption {
	return func(s *AzureStore) {
		s.client = client
	}
}

// NewAzureStore creates an Azure Key Vault backend.
func NewAzureStore(name string, configMap map[string]interface{}, opts ...AzureStoreOption) (*AzureStore, error) {
	config := AzureConfig{}

	if vaultURL, ok := configMap["vault_url"].(string); ok {
		config.VaultURL = vaultURL
	}
	if tenantID, ok := configMap["tenant_id"].(string); ok {
		config.TenantID = tenantID
	}
	if clientID, ok := configMap["client_id"].(string); ok {
		config.ClientID = clientID
	}
	if clientSecret, ok := configMap["client_secret"].(string); ok {
		config.ClientSecret = clientSecret
	}
	if useMI, ok := configMap["use_managed_identity"].(bool); ok {
		config.UseManagedIdentity = useMI
	}
	if userAssignedID, ok := configMap["user_assigned_identity_id"].(string); ok {
		config.UserAssignedID = userAssignedID
	}

	if config.VaultURL == "" {
		return nil, cserrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if _, err := url.Parse(config.VaultURL); err != nil {
		return nil, cserrors.ConfigError{
			Field:      "vault_url",
			Message:    "Invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	s := &AzureStore{
		name:     name,
		vaultURL: config.VaultURL,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		client, err := createAzureClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Key Vault client: %w", err)
		}
		s.client = client
	}

	return s, nil
}

// createAzureClient creates an Azure Key Vault client with appropriate
// authentication.
func createAzureClient(config AzureConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case config.UseManagedIdentity:
		if config.UserAssignedID != "" {
			cred, err = azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(config.UserAssignedID),
			})
		} else {
			cred, err = azidentity.NewManagedIdentityCredential(nil)
		}
	case config.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(config.VaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

// vaultName mangles a coordinate into a valid Key Vault secret name.
// Key Vault only allows alphanumerics and dashes.
func vaultName(coordinate string) string {
	return strings.ReplaceAll(coordinate, "_", "-")
}

// Write persists the payload under the mangled coordinate name.
func (s *AzureStore) Write(ctx context.Context, coordinate string, value string) error {
	_, err := s.client.SetSecret(ctx, vaultName(coordinate), azsecrets.SetSecretParameters{
		Value: &value,
	}, nil)
	if err != nil {
		return secretstore.WriteError{
			Backend: s.name,
			Key:     coordinate,
			Err:     fmt.Errorf("%s: %w", azureErrorSuggestion(err), err),
		}
	}
	return nil
}

// Read returns the current version of the secret stored for the coordinate.
func (s *AzureStore) Read(ctx context.Context, coordinate string) (string, error) {
	resp, err := s.client.GetSecret(ctx, vaultName(coordinate), "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return "", secretstore.NotFoundError{Backend: s.name, Key: coordinate}
		}
		return "", cserrors.UserError{
			Message:    fmt.Sprintf("Failed to access secret: %s", coordinate),
			Details:    err.Error(),
			Suggestion: azureErrorSuggestion(err),
			Err:        err,
		}
	}

	if resp.Value == nil {
		return "", fmt.Errorf("secret '%s' has no value", coordinate)
	}
	return *resp.Value, nil
}

// Delete removes the secret. Absent coordinates are not an error.
func (s *AzureStore) Delete(ctx context.Context, coordinate string) error {
	_, err := s.client.DeleteSecret(ctx, vaultName(coordinate), nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete secret '%s': %w", coordinate, err)
	}
	return nil
}

// Exists reports whether a secret with the given name is present, for the
// external manager boundary. External names are used verbatim; they must
// already be valid Key Vault names.
func (s *AzureStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return false, nil
		}
		return false, cserrors.UserError{
			Message:    fmt.Sprintf("Failed to check secret: %s", name),
			Details:    err.Error(),
			Suggestion: azureErrorSuggestion(err),
			Err:        err,
		}
	}
	return true, nil
}

// isAzureNotFoundError checks if the error indicates a secret was not found.
func isAzureNotFoundError(err error) bool {
	return strings.Contains(err.Error(), "SecretNotFound") || strings.Contains(err.Error(), "404")
}

// azureErrorSuggestion provides helpful suggestions based on Azure errors.
func azureErrorSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "forbidden") || strings.Contains(errStr, "access denied"):
		return "Check Key Vault access policies: 'Get', 'Set', and 'Delete' permissions are required for secrets"
	case strings.Contains(errStr, "secretnotfound") || strings.Contains(errStr, "404"):
		return "Verify the secret name exists in the Key Vault. Secret names are case-sensitive"
	case strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "401"):
		return "Check authentication: verify managed identity, service principal, or Azure CLI login"
	case strings.Contains(errStr, "throttled") || strings.Contains(errStr, "429"):
		return "Request was throttled. Consider adding exponential backoff or reducing request rate"
	case strings.Contains(errStr, "tenant"):
		return "Check that the tenant ID is correct and the application is registered"
	default:
		return "Check Azure credentials, Key Vault URL, and access policies"
	}
}

// NewAzureStoreFactory creates an Azure Key Vault store factory.
func NewAzureStoreFactory(name string, config map[string]interface{}) (secretstore.Store, error) {
	return NewAzureStore(name, config)
}

// NewAzureManagerFactory creates an Azure Key Vault manager factory.
func NewAzureManagerFactory(name string, config map[string]interface{}) (secretstore.Manager, error) {
	return NewAzureStore(name, config)
}
