package ssh

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"

	"nethost.io/nethost/internal/utils/iputils"
	termutil "nethost.io/nethost/internal/utils/term"
)

const (
	DefaultSSHPort = 22
	DefaultTimeout = 20 * time.Second
)

// Client is a single SSH connection to a compute host.
type Client struct {
	mu sync.Mutex
	*ssh.Client
	Config *Config
}

// Config holds the parameters used to dial and authenticate a Client.
type Config struct {
	User           string
	Addr           string
	Port           uint
	Auth           Auth
	Timeout        time.Duration
	Callback       ssh.HostKeyCallback
	BannerCallback ssh.BannerCallback
}

// New dials a compute host for the bootstrap command. knownHostCheck
// selects whether the host key is verified against knownFile (with
// askAddKnownHost controlling whether an unknown key is recorded silently
// or only after operator confirmation) or accepted unconditionally, which
// is only appropriate for first-contact bootstrap of a freshly provisioned
// host on a trusted network.
func New(
	user, addr string,
	port uint,
	passwd, privateKey, privateKeyRaw, knownFile string,
	timeout time.Duration,
	knownHostCheck, askAddKnownHost bool,
) (*Client, error) {
	config, err := createConfig(user, addr, port, passwd, privateKey, privateKeyRaw, timeout)
	if err != nil {
		return nil, err
	}

	if knownHostCheck {
		config.Callback = VerifyHost(knownFile, askAddKnownHost)
	} else {
		config.Callback = ssh.InsecureIgnoreHostKey()
	}

	return NewConn(config)
}

// NewConn dials using an already-built Config.
func NewConn(config *Config) (*Client, error) {
	c := &Client{Config: config}
	sshClient, err := Dial("tcp", config)
	if err != nil {
		return nil, err
	}
	c.Client = sshClient
	return c, nil
}

// Dial opens the underlying *ssh.Client connection.
func Dial(proto string, c *Config) (*ssh.Client, error) {
	return ssh.Dial(proto, net.JoinHostPort(c.Addr, fmt.Sprint(c.Port)), &ssh.ClientConfig{
		User:            c.User,
		Auth:            c.Auth,
		Timeout:         c.Timeout,
		HostKeyCallback: c.Callback,
		BannerCallback:  c.BannerCallback,
	})
}

func (c *Client) session() (*ssh.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Client == nil {
		return nil, errors.New("ssh client not initialized")
	}

	session, err := c.Client.NewSession()
	if err != nil {
		return nil, err
	}

	width, height, err := termutil.Size(os.Stdout)
	if err != nil {
		width, height = 100, 50
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty("xterm", height, width, modes); err != nil {
		_ = session.Close()
		return nil, err
	}

	if err := session.Setenv("LANG", "en_US.UTF-8"); err != nil {
		// not every sshd accepts arbitrary env vars; non-fatal.
	}

	return session, nil
}

// Run executes cmd on the host and returns its combined stdout/stderr.
func (c *Client) Run(cmd string) (output []byte, err error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}
	defer func(session *ssh.Session) {
		if cErr := session.Close(); cErr != nil && cErr != io.EOF && err == nil {
			err = cErr
		}
	}(session)

	return session.CombinedOutput(strings.TrimSpace(cmd))
}

func createConfig(
	user, addr string,
	port uint,
	passwd, privateKey, privateKeyRaw string,
	timeout time.Duration,
) (*Config, error) {
	if len(user) == 0 {
		return nil, errors.New("username is required for ssh connection")
	}
	if len(addr) == 0 {
		return nil, errors.New("address is required for ssh connection")
	}
	if !iputils.IsValidIP(addr) && !iputils.IsValidDomain(addr) {
		return nil, errors.Errorf("address is not a valid ip or domain: %s", addr)
	}
	if len(passwd) == 0 && len(privateKey) == 0 && len(privateKeyRaw) == 0 {
		return nil, errors.New("a password or private key is required")
	}

	c := &Config{
		User: user,
		Addr: addr,
		Port: setSSHPort(port),
	}

	c.Timeout = timeout
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	var auth Auth
	if len(passwd) > 0 {
		auth = append(auth, Password(passwd))
	}
	if len(privateKey) > 0 {
		keyAuth, err := Key(privateKey, "")
		if err != nil {
			return nil, errors.Wrap(err, "parsing private key file")
		}
		auth = append(auth, keyAuth)
	}
	if len(privateKey) == 0 && len(privateKeyRaw) > 0 {
		keyAuth, err := RawKey(privateKeyRaw, "")
		if err != nil {
			return nil, errors.Wrap(err, "parsing inline private key")
		}
		auth = append(auth, keyAuth)
	}
	c.Auth = auth

	return c, nil
}

func setSSHPort(port uint) uint {
	if port > 0 && port < 65535 {
		return port
	}
	return DefaultSSHPort
}
