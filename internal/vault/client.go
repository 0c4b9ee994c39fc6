package vault

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"evento/internal/config"

	"github.com/hashicorp/vault/api"
)

// CredentialKey is the transit key protecting tenant payment credentials
const CredentialKey = "tenant-credentials"

// Client wraps HashiCorp Vault API
type Client struct {
	client       *api.Client
	transitMount string
}

// NewClient creates a new Vault client and makes sure the transit engine
// and the credential key exist
func NewClient(ctx context.Context, cfg config.VaultConfig) (*Client, error) {
	apiConfig := api.DefaultConfig()
	apiConfig.Address = cfg.Address

	client, err := api.NewClient(apiConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	vaultClient := &Client{
		client:       client,
		transitMount: cfg.TransitMount,
	}

	if err := vaultClient.initTransitEngine(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize transit engine: %w", err)
	}
	if err := vaultClient.EnsureKey(ctx, CredentialKey); err != nil {
		return nil, err
	}

	return vaultClient, nil
}

// initTransitEngine enables the transit secrets engine if not already enabled
func (c *Client) initTransitEngine(ctx context.Context) error {
	mounts, err := c.client.Sys().ListMountsWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to list mounts: %w", err)
	}

	if _, exists := mounts[c.transitMount+"/"]; exists {
		return nil
	}

	err = c.client.Sys().MountWithContext(ctx, c.transitMount, &api.MountInput{
		Type:        "transit",
		Description: "Transit encryption for evento",
	})
	if err != nil {
		return fmt.Errorf("failed to mount transit engine: %w", err)
	}
	return nil
}

// EnsureKey creates a derived aes256-gcm96 key unless it already exists.
// Derived keys need a context on every call; the tenant id is used.
func (c *Client) EnsureKey(ctx context.Context, keyName string) error {
	path := fmt.Sprintf("%s/keys/%s", c.transitMount, keyName)

	existing, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to read key %s: %w", keyName, err)
	}
	if existing != nil {
		return nil
	}

	_, err = c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"type":       "aes256-gcm96",
		"exportable": false,
		"derived":    true,
	})
	if err != nil {
		return fmt.Errorf("failed to create key %s: %w", keyName, err)
	}
	return nil
}

// Encrypt encrypts plaintext with keyName, bound to tenantID
func (c *Client) Encrypt(ctx context.Context, keyName string, tenantID int64, plaintext []byte) (string, error) {
	path := fmt.Sprintf("%s/encrypt/%s", c.transitMount, keyName)

	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"plaintext": base64.StdEncoding.EncodeToString(plaintext),
		"context":   tenantContext(tenantID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("empty encrypt response")
	}

	ciphertext, ok := secret.Data["ciphertext"].(string)
	if !ok {
		return "", fmt.Errorf("invalid ciphertext response")
	}
	return ciphertext, nil
}

// Decrypt reverses Encrypt. A ciphertext of another tenant fails to decrypt.
func (c *Client) Decrypt(ctx context.Context, keyName string, tenantID int64, ciphertext string) ([]byte, error) {
	path := fmt.Sprintf("%s/decrypt/%s", c.transitMount, keyName)

	secret, err := c.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"ciphertext": ciphertext,
		"context":    tenantContext(tenantID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if secret == nil {
		return nil, fmt.Errorf("empty decrypt response")
	}

	encodedPlaintext, ok := secret.Data["plaintext"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid plaintext response")
	}

	plaintext, err := base64.StdEncoding.DecodeString(encodedPlaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode plaintext: %w", err)
	}
	return plaintext, nil
}

// Health checks Vault health status
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	health, err := c.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if !health.Initialized {
		return fmt.Errorf("vault is not initialized")
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func tenantContext(tenantID int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("tenant=%d", tenantID)))
}
