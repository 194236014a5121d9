package ssh

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateConfigValidation(t *testing.T) {
	_, err := createConfig("", "10.1.1.21", 22, "secret", "", "", 0)
	assert.ErrorContains(t, err, "username")

	_, err = createConfig("root", "", 22, "secret", "", "", 0)
	assert.ErrorContains(t, err, "address")

	_, err = createConfig("root", "not a host!!", 22, "secret", "", "", 0)
	assert.ErrorContains(t, err, "not a valid ip or domain")

	_, err = createConfig("root", "10.1.1.21", 22, "", "", "", 0)
	assert.ErrorContains(t, err, "password or private key")
}

func TestCreateConfigDefaults(t *testing.T) {
	c, err := createConfig("root", "10.1.1.21", 0, "secret", "", "", 0)
	require.NoError(t, err)
	assert.Equal(t, uint(DefaultSSHPort), c.Port)
	assert.Equal(t, DefaultTimeout, c.Timeout)
	assert.Len(t, c.Auth, 1)
}

// TestSSHRunLive exercises a real SSH round trip against a compute host
// reachable in the test environment. It is skipped unless
// NETHOST_SSH_TEST_HOST is set, since no such host exists in CI.
func TestSSHRunLive(t *testing.T) {
	host := os.Getenv("NETHOST_SSH_TEST_HOST")
	if host == "" {
		t.Skip("NETHOST_SSH_TEST_HOST not set")
	}

	client, err := New("root", host, DefaultSSHPort,
		os.Getenv("NETHOST_SSH_TEST_PASSWORD"), "", "", "", 0, false, false)
	require.NoError(t, err)

	output, err := client.Run("ls -al")
	require.NoError(t, err)
	t.Log(string(output))
}
