package remote

import (
	"context"
	"io"
)

// Endpoint identifies the remote server and the material needed to
// authenticate against it. Credential lifecycle (rotation, vaulting) is
// the caller's concern; the endpoint only carries what one dial needs.
type Endpoint struct {
	// Host is the remote server address, or the bucket name for
	// object-store backends.
	Host string

	// Port is the remote port. Zero means the backend default.
	Port int

	// User is the account to authenticate as.
	User string

	// KeyPath is the path to a private key file. Takes precedence over
	// Password when both are set.
	KeyPath string

	// Password is used when no key is available.
	Password string
}

// Session is one stateful authenticated connection to the remote server,
// reused across every file in a batch. A Session is not safe for
// concurrent use; the batch engine drives it from a single goroutine.
type Session interface {
	// Verify reports whether the remote destination directory exists.
	// A missing destination is reported as (false, nil), not an error.
	Verify(ctx context.Context, path string) (bool, error)

	// Put streams the reader's contents to the remote path.
	Put(ctx context.Context, path string, r io.Reader) error

	// Close releases the session. It is idempotent.
	Close() error
}

// Dialer establishes Sessions. Implementations cover specific transports;
// the orchestration core only sees this interface.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Session, error)
}
