// Package secrets resolves the ERP feed credentials from Azure Key Vault,
// with an environment-variable fallback for local development.
package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"go.uber.org/zap"
)

// Provider retrieves secrets from one Key Vault with optional caching.
type Provider struct {
	client       *azsecrets.Client
	logger       *zap.Logger
	mu           sync.Mutex
	cache        map[string]cachedSecret
	cacheTTL     time.Duration
	cacheEnabled bool
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// ProviderConfig holds the vault name and cache settings.
type ProviderConfig struct {
	VaultName    string
	CacheEnabled bool
	CacheTTL     time.Duration
}

// NewProvider creates a provider against the named vault. Authentication
// uses DefaultAzureCredential (env vars, managed identity, azure CLI).
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	if cfg.VaultName == "" {
		return nil, fmt.Errorf("vault name is required")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	vaultURL := fmt.Sprintf("https://%s.vault.azure.net/", cfg.VaultName)
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	logger.Info("key vault client initialized", zap.String("vault_url", vaultURL))

	return &Provider{
		client:       client,
		logger:       logger,
		cache:        make(map[string]cachedSecret),
		cacheTTL:     cacheTTL,
		cacheEnabled: cfg.CacheEnabled,
	}, nil
}

// GetSecret retrieves a secret from the vault.
func (p *Provider) GetSecret(ctx context.Context, name string) (string, error) {
	if p.cacheEnabled {
		p.mu.Lock()
		if cached, ok := p.cache[name]; ok && time.Now().Before(cached.expiresAt) {
			p.mu.Unlock()
			return cached.value, nil
		}
		p.mu.Unlock()
	}

	resp, err := p.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("failed to get secret %q: %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("secret %q has no value", name)
	}
	value := *resp.Value

	if p.cacheEnabled {
		p.mu.Lock()
		p.cache[name] = cachedSecret{value: value, expiresAt: time.Now().Add(p.cacheTTL)}
		p.mu.Unlock()
	}
	return value, nil
}

// GetSecretOrEnv tries the vault first and falls back to an environment
// variable when the lookup fails or returns empty.
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	value, err := p.GetSecret(ctx, secretName)
	if err == nil && value != "" {
		return value, nil
	}
	if env := os.Getenv(envName); env != "" {
		p.logger.Debug("secret resolved from environment",
			zap.String("secret_name", secretName),
			zap.String("env_name", envName))
		return env, nil
	}
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("secret %q not found in vault or environment", secretName)
}
