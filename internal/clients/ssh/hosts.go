package ssh

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"nethost.io/nethost/internal/log"
)

// KnownHosts returns a HostKeyCallback backed by the known_hosts file at
// file.
func KnownHosts(file string) (ssh.HostKeyCallback, error) {
	return knownhosts.New(file)
}

// DefaultKnownHostsPath returns the operator's default known_hosts path.
func DefaultKnownHostsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ssh", "known_hosts"), nil
}

// VerifyHost returns a HostKeyCallback that consults knownFile and, for a
// host it has never seen, either records the key (when askAddKnownHost is
// false) or prompts the operator to accept it.
func VerifyHost(knownFile string, askAddKnownHost bool) ssh.HostKeyCallback {
	return func(host string, remote net.Addr, key ssh.PublicKey) error {
		hostFound, err := CheckKnownHost(host, remote, key, knownFile)

		var keyErr *knownhosts.KeyError

		// host known but key mismatch: possible man-in-the-middle.
		if hostFound && err != nil {
			return err
		}

		// public key never seen for this host.
		if !hostFound && err != nil && errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return AddKnownHost(host, remote, key, knownFile, askAddKnownHost)
		}

		return err
	}
}

// CheckKnownHost reports whether host appears in knownFile. When it does
// and err is non-nil, the stored key no longer matches.
func CheckKnownHost(host string, remote net.Addr, key ssh.PublicKey, knownFile string) (found bool, err error) {
	var keyErr *knownhosts.KeyError

	if knownFile == "" {
		path, perr := DefaultKnownHostsPath()
		if perr != nil {
			return false, perr
		}
		knownFile = path
	}

	callback, err := KnownHosts(knownFile)
	if err != nil {
		return false, err
	}

	err = callback(host, remote, key)
	if err != nil {
		if errors.As(err, &keyErr) && len(keyErr.Want) > 0 {
			return true, keyErr
		}
		if errors.As(err, &keyErr) && len(keyErr.Want) == 0 {
			return false, keyErr
		}
		return true, err
	}

	return true, nil
}

// AddKnownHost appends host's key to knownFile, optionally after an
// interactive fingerprint confirmation.
func AddKnownHost(host string, remote net.Addr, key ssh.PublicKey, knownFile string, askAddKnownHost bool) (err error) {
	if knownFile == "" {
		path, perr := DefaultKnownHostsPath()
		if perr != nil {
			return perr
		}
		knownFile = path
	}

	f, err := os.OpenFile(knownFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}(f)

	remoteNormalized := knownhosts.Normalize(remote.String())
	hostNormalized := knownhosts.Normalize(host)
	addresses := []string{remoteNormalized}
	if hostNormalized != remoteNormalized {
		addresses = append(addresses, hostNormalized)
	}

	if askAddKnownHost && !askIsHostTrusted(host, key) {
		return errors.New("host key not trusted, aborted")
	}

	_, err = f.WriteString(knownhosts.Line(addresses, key) + "\n")
	return err
}

func askIsHostTrusted(host string, key ssh.PublicKey) bool {
	reader := bufio.NewReader(os.Stdin)

	fmt.Printf("Unknown host: %s\nFingerprint: %s\n", host, ssh.FingerprintSHA256(key))
	fmt.Print("Add it to known_hosts? type yes or no: ")

	a, err := reader.ReadString('\n')
	if err != nil {
		log.Fatalf("reading confirmation: %v", err)
	}
	return strings.ToLower(strings.TrimSpace(a)) == "yes"
}
