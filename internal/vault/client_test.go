package vault_test

import (
	"context"
	"testing"

	"evento/internal/config"
	"evento/internal/testutil"
	"evento/internal/vault"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_EncryptDecrypt(t *testing.T) {
	vc := testutil.SetupVault(t)
	ctx := context.Background()

	client, err := vault.NewClient(ctx, config.VaultConfig{
		Address:      vc.Addr,
		Token:        vc.Token,
		TransitMount: "transit",
		Enabled:      true,
	})
	require.NoError(t, err)
	require.NoError(t, client.Health(ctx))

	ciphertext, err := client.Encrypt(ctx, vault.CredentialKey, 7, []byte("APP_USR-token"))
	require.NoError(t, err)
	assert.Contains(t, ciphertext, "vault:v1:")
	assert.NotContains(t, ciphertext, "APP_USR-token")

	plaintext, err := client.Decrypt(ctx, vault.CredentialKey, 7, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "APP_USR-token", string(plaintext))

	_, err = client.Decrypt(ctx, vault.CredentialKey, 8, ciphertext)
	assert.Error(t, err, "another tenant's context must not decrypt")

	// a second client finds the existing mount and key
	_, err = vault.NewClient(ctx, config.VaultConfig{Address: vc.Addr, Token: vc.Token, TransitMount: "transit"})
	require.NoError(t, err)
}
