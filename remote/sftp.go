package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const defaultSFTPPort = 22

// ensure interface is implemented
var _ Dialer = (*SFTPDialer)(nil)

// SFTPDialer establishes SFTP sessions over SSH.
type SFTPDialer struct {
	// HostKeyCallback verifies the server host key. When nil, host keys
	// are not checked; operators pinning keys should supply a callback
	// built from their known_hosts file.
	HostKeyCallback ssh.HostKeyCallback

	// Timeout bounds the TCP and SSH handshake when the caller's context
	// carries no deadline.
	Timeout time.Duration
}

// NewSFTPDialer creates an SFTPDialer with a 30 second handshake timeout.
func NewSFTPDialer() *SFTPDialer {
	return &SFTPDialer{Timeout: 30 * time.Second}
}

// Dial opens the SSH connection and starts an SFTP subsystem on it.
func (d *SFTPDialer) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	auth, err := authMethods(ep)
	if err != nil {
		return nil, err
	}

	hostKeyCallback := d.HostKeyCallback
	if hostKeyCallback == nil {
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	}

	cfg := &ssh.ClientConfig{
		User:            ep.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         d.Timeout,
	}

	port := ep.Port
	if port == 0 {
		port = defaultSFTPPort
	}
	addr := net.JoinHostPort(ep.Host, fmt.Sprintf("%d", port))

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem on %s: %w", addr, err)
	}

	return &sftpSession{ssh: sshClient, sftp: sftpClient}, nil
}

// authMethods builds the SSH auth chain from the endpoint: private key
// when a key path is set, password otherwise.
func authMethods(ep Endpoint) ([]ssh.AuthMethod, error) {
	if ep.KeyPath != "" {
		keyBytes, err := os.ReadFile(ep.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read key %s: %w", ep.KeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse key %s: %w", ep.KeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}

	if ep.Password != "" {
		return []ssh.AuthMethod{ssh.Password(ep.Password)}, nil
	}

	return nil, fmt.Errorf("no authentication material for %s: need a key path or a password", ep.Host)
}

type sftpSession struct {
	ssh  *ssh.Client
	sftp *sftp.Client

	closeOnce sync.Once
	closeErr  error
}

func (s *sftpSession) Verify(ctx context.Context, path string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	info, err := s.sftp.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat remote %s: %w", path, err)
	}
	return info.IsDir(), nil
}

func (s *sftpSession) Put(ctx context.Context, path string, r io.Reader) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	f, err := s.sftp.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create remote %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write remote %s: %w", path, err)
	}

	return f.Close()
}

func (s *sftpSession) Close() error {
	s.closeOnce.Do(func() {
		sftpErr := s.sftp.Close()
		sshErr := s.ssh.Close()
		if sftpErr != nil {
			s.closeErr = sftpErr
			return
		}
		s.closeErr = sshErr
	})
	return s.closeErr
}
