// Package ssh wraps golang.org/x/crypto/ssh for the host bootstrap admin
// command, which installs and configures the bridge/VLAN prerequisites on a
// newly added compute host before it is allowed to register with the
// network coordinator.
package ssh

import (
	"os"

	"golang.org/x/crypto/ssh"
)

// Auth is an ordered list of ssh auth methods to offer the server.
type Auth []ssh.AuthMethod

// Password returns a password auth method.
func Password(pass string) ssh.AuthMethod {
	return ssh.Password(pass)
}

// Key returns a public-key auth method backed by the private key file at
// privateFile, optionally encrypted with passphrase.
func Key(privateFile, passphrase string) (ssh.AuthMethod, error) {
	signer, err := GetSigner(privateFile, passphrase)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// RawKey is like Key but takes the PEM-encoded key material directly,
// for keys supplied inline through nethost's host inventory config.
func RawKey(privateKey, passphrase string) (ssh.AuthMethod, error) {
	signer, err := GetSignerForRawKey([]byte(privateKey), passphrase)
	if err != nil {
		return nil, err
	}
	return ssh.PublicKeys(signer), nil
}

// GetSigner parses the private key file at privateFile.
func GetSigner(privateFile, passphrase string) (ssh.Signer, error) {
	privateKey, err := os.ReadFile(privateFile)
	if err != nil {
		return nil, err
	}
	return GetSignerForRawKey(privateKey, passphrase)
}

// GetSignerForRawKey parses PEM-encoded key material held in memory.
func GetSignerForRawKey(privateKey []byte, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	}
	return ssh.ParsePrivateKey(privateKey)
}
